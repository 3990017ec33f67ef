package friends

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberforge/socialcore/social"
	"github.com/emberforge/socialcore/testutil"
)

func newTestGraph(t *testing.T) (*Graph, *testutil.CaptureTransport, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	transport := testutil.NewCaptureTransport()
	g := NewGraph(transport, testutil.Logger(), Options{
		RequestTTL: 30 * 24 * time.Hour,
		Now:        clock.Now,
	})
	return g, transport, clock
}

func befriend(t *testing.T, g *Graph, a, b string) {
	t.Helper()
	req, err := g.SendFriendRequest(a, b, "")
	require.NoError(t, err)
	_, err = g.RespondFriendRequest(req.ID, b, ResponseAccept)
	require.NoError(t, err)
}

func TestSendFriendRequest(t *testing.T) {
	g, transport, clock := newTestGraph(t)

	req, err := g.SendFriendRequest("alice", "bob", "hi")
	require.NoError(t, err)
	assert.Equal(t, RequestPending, req.Status)
	assert.Equal(t, "hi", req.Message)
	assert.Equal(t, clock.Now().Add(30*24*time.Hour), req.ExpiresAt)

	received := transport.OfType(social.EventRequestReceived)
	require.Len(t, received, 1)
	assert.Equal(t, "bob", received[0].AccountID)

	_, err = g.SendFriendRequest("alice", "bob", "hi again")
	assert.ErrorIs(t, err, social.ErrConflict)

	_, err = g.SendFriendRequest("alice", "alice", "")
	assert.ErrorIs(t, err, social.ErrInvalidArgument)
}

func TestSendFriendRequestAlreadyFriends(t *testing.T) {
	g, _, _ := newTestGraph(t)
	befriend(t, g, "alice", "bob")

	_, err := g.SendFriendRequest("alice", "bob", "")
	assert.ErrorIs(t, err, social.ErrConflict)
	_, err = g.SendFriendRequest("bob", "alice", "")
	assert.ErrorIs(t, err, social.ErrConflict)
}

func TestSendFriendRequestBlocked(t *testing.T) {
	g, _, _ := newTestGraph(t)
	require.NoError(t, g.BlockUser("bob", "alice"))

	// The recipient blocked the sender.
	_, err := g.SendFriendRequest("alice", "bob", "")
	assert.ErrorIs(t, err, social.ErrUnauthorized)

	// The sender blocking the recipient is also final.
	_, err = g.SendFriendRequest("bob", "alice", "")
	assert.ErrorIs(t, err, social.ErrUnauthorized)
}

func TestMutualRequestsAutoAccept(t *testing.T) {
	g, transport, _ := newTestGraph(t)

	_, err := g.SendFriendRequest("alice", "bob", "")
	require.NoError(t, err)
	transport.Reset()

	// Bob answers with a request of his own before responding.
	req, err := g.SendFriendRequest("bob", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, RequestAccepted, req.Status)

	assert.True(t, g.AreFriends("alice", "bob"))
	assert.Empty(t, g.Requests("alice", DirectionIncoming))
	assert.Empty(t, g.Requests("alice", DirectionOutgoing))
	assert.Empty(t, g.Requests("bob", DirectionIncoming))
	assert.Empty(t, g.Requests("bob", DirectionOutgoing))

	responded := transport.OfType(social.EventRequestResponded)
	require.Len(t, responded, 2)
	assert.ElementsMatch(t, []string{"alice", "bob"},
		[]string{responded[0].AccountID, responded[1].AccountID})
	assert.Empty(t, transport.OfType(social.EventRequestReceived))
}

func TestRespondFriendRequestAccept(t *testing.T) {
	g, transport, _ := newTestGraph(t)

	req, err := g.SendFriendRequest("alice", "bob", "")
	require.NoError(t, err)
	transport.Reset()

	got, err := g.RespondFriendRequest(req.ID, "bob", ResponseAccept)
	require.NoError(t, err)
	assert.Equal(t, RequestAccepted, got.Status)
	assert.True(t, g.AreFriends("alice", "bob"))
	assert.True(t, g.AreFriends("bob", "alice"))

	responded := transport.OfType(social.EventRequestResponded)
	require.Len(t, responded, 1)
	assert.Equal(t, "alice", responded[0].AccountID)

	// Finalized requests are gone.
	_, err = g.RespondFriendRequest(req.ID, "bob", ResponseAccept)
	assert.ErrorIs(t, err, social.ErrNotFound)
}

func TestRespondFriendRequestDecline(t *testing.T) {
	g, _, _ := newTestGraph(t)

	req, err := g.SendFriendRequest("alice", "bob", "")
	require.NoError(t, err)

	got, err := g.RespondFriendRequest(req.ID, "bob", ResponseDecline)
	require.NoError(t, err)
	assert.Equal(t, RequestDeclined, got.Status)
	assert.False(t, g.AreFriends("alice", "bob"))

	// Declining clears the pending slot, so a new request may follow.
	_, err = g.SendFriendRequest("alice", "bob", "second try")
	assert.NoError(t, err)
}

func TestRespondFriendRequestGuards(t *testing.T) {
	g, _, _ := newTestGraph(t)

	req, err := g.SendFriendRequest("alice", "bob", "")
	require.NoError(t, err)

	_, err = g.RespondFriendRequest(req.ID, "mallory", ResponseAccept)
	assert.ErrorIs(t, err, social.ErrUnauthorized)

	_, err = g.RespondFriendRequest(req.ID, "bob", Response("MAYBE"))
	assert.ErrorIs(t, err, social.ErrInvalidArgument)

	_, err = g.RespondFriendRequest("no-such-request", "bob", ResponseAccept)
	assert.ErrorIs(t, err, social.ErrNotFound)
}

func TestRespondFriendRequestExpired(t *testing.T) {
	g, _, clock := newTestGraph(t)

	req, err := g.SendFriendRequest("alice", "bob", "")
	require.NoError(t, err)

	clock.Advance(30*24*time.Hour + time.Second)

	_, err = g.RespondFriendRequest(req.ID, "bob", ResponseAccept)
	assert.ErrorIs(t, err, social.ErrExpired)
	assert.False(t, g.AreFriends("alice", "bob"))

	// Finalized by the lazy check, not merely hidden.
	_, err = g.RespondFriendRequest(req.ID, "bob", ResponseAccept)
	assert.ErrorIs(t, err, social.ErrNotFound)
}

func TestRemoveFriend(t *testing.T) {
	g, transport, _ := newTestGraph(t)
	befriend(t, g, "alice", "bob")
	transport.Reset()

	require.NoError(t, g.RemoveFriend("alice", "bob"))
	assert.False(t, g.AreFriends("alice", "bob"))
	assert.False(t, g.AreFriends("bob", "alice"))

	removed := transport.OfType(social.EventFriendRemoved)
	require.Len(t, removed, 2)

	err := g.RemoveFriend("alice", "bob")
	assert.ErrorIs(t, err, social.ErrConflict)
}

func TestBlockUserSeversEverything(t *testing.T) {
	g, _, _ := newTestGraph(t)
	befriend(t, g, "alice", "bob")
	_, err := g.SendFriendRequest("carol", "alice", "")
	require.NoError(t, err)
	_, err = g.SendFriendRequest("alice", "dave", "")
	require.NoError(t, err)

	require.NoError(t, g.BlockUser("alice", "bob"))
	assert.False(t, g.AreFriends("alice", "bob"))
	assert.True(t, g.IsBlocked("alice", "bob"))
	assert.False(t, g.IsBlocked("bob", "alice"))

	// Blocking carol cancels her pending request to alice.
	require.NoError(t, g.BlockUser("alice", "carol"))
	assert.Empty(t, g.Requests("alice", DirectionIncoming))

	// Blocking dave cancels alice's own pending request to him.
	require.NoError(t, g.BlockUser("alice", "dave"))
	assert.Empty(t, g.Requests("alice", DirectionOutgoing))

	// Blocking twice is a no-op.
	require.NoError(t, g.BlockUser("alice", "bob"))
}

func TestBlockThenRequestFails(t *testing.T) {
	g, _, _ := newTestGraph(t)

	require.NoError(t, g.BlockUser("alice", "bob"))
	_, err := g.SendFriendRequest("bob", "alice", "")
	assert.ErrorIs(t, err, social.ErrUnauthorized)
}

func TestUnblockUser(t *testing.T) {
	g, _, _ := newTestGraph(t)
	befriend(t, g, "alice", "bob")

	require.NoError(t, g.BlockUser("alice", "bob"))
	require.NoError(t, g.UnblockUser("alice", "bob"))
	assert.False(t, g.IsBlocked("alice", "bob"))

	// The friendship stays severed after unblocking.
	assert.False(t, g.AreFriends("alice", "bob"))

	err := g.UnblockUser("alice", "bob")
	assert.ErrorIs(t, err, social.ErrConflict)
	err = g.UnblockUser("nobody", "bob")
	assert.ErrorIs(t, err, social.ErrConflict)
}

func TestMutualFriends(t *testing.T) {
	g, _, _ := newTestGraph(t)
	befriend(t, g, "alice", "carol")
	befriend(t, g, "bob", "carol")
	befriend(t, g, "alice", "dave")

	assert.ElementsMatch(t, []string{"carol"}, g.MutualFriends("alice", "bob"))
	assert.Empty(t, g.MutualFriends("alice", "nobody"))
}

func TestFriendsAndBlockedLists(t *testing.T) {
	g, _, _ := newTestGraph(t)
	befriend(t, g, "alice", "bob")
	befriend(t, g, "alice", "carol")
	require.NoError(t, g.BlockUser("alice", "mallory"))

	assert.ElementsMatch(t, []string{"bob", "carol"}, g.Friends("alice"))
	assert.ElementsMatch(t, []string{"alice"}, g.Friends("bob"))
	assert.ElementsMatch(t, []string{"mallory"}, g.Blocked("alice"))
	assert.Empty(t, g.Friends("nobody"))
}

func TestRequestsListing(t *testing.T) {
	g, _, clock := newTestGraph(t)

	_, err := g.SendFriendRequest("alice", "bob", "first")
	require.NoError(t, err)
	clock.Advance(15 * 24 * time.Hour)
	fresh, err := g.SendFriendRequest("carol", "bob", "second")
	require.NoError(t, err)

	incoming := g.Requests("bob", DirectionIncoming)
	assert.Len(t, incoming, 2)
	assert.Len(t, g.Requests("alice", DirectionOutgoing), 1)

	// Past the first request's TTL the listing prunes it lazily.
	clock.Advance(16 * 24 * time.Hour)
	incoming = g.Requests("bob", DirectionIncoming)
	require.Len(t, incoming, 1)
	assert.Equal(t, fresh.ID, incoming[0].ID)
}

func TestSweepExpiredRequests(t *testing.T) {
	g, _, clock := newTestGraph(t)

	_, err := g.SendFriendRequest("alice", "bob", "")
	require.NoError(t, err)
	_, err = g.SendFriendRequest("carol", "dave", "")
	require.NoError(t, err)

	assert.Equal(t, 0, g.SweepExpiredRequests())

	clock.Advance(30*24*time.Hour + time.Second)
	assert.Equal(t, 2, g.SweepExpiredRequests())

	_, requests, _ := g.Stats()
	assert.Equal(t, 0, requests)

	// A fresh request after expiry of the old one is allowed.
	_, err = g.SendFriendRequest("alice", "bob", "again")
	assert.NoError(t, err)
}
