package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberforge/socialcore/social"
	"github.com/emberforge/socialcore/social/friends"
	"github.com/emberforge/socialcore/social/party"
	"github.com/emberforge/socialcore/social/presence"
	"github.com/emberforge/socialcore/testutil"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *testutil.CaptureTransport, *testutil.Clock) {
	t.Helper()
	clock := testutil.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	transport := testutil.NewCaptureTransport()
	logger := testutil.Logger()

	parties := party.NewRegistry(party.NewMemoryStore(), transport, logger, party.Options{Now: clock.Now})
	dir := presence.NewDirectory(transport, logger, presence.Options{Now: clock.Now})
	graph := friends.NewGraph(transport, logger, friends.Options{Now: clock.Now})
	return New(parties, dir, graph, logger), transport, clock
}

func TestAcceptGrantsReciprocalSubscriptions(t *testing.T) {
	c, transport, _ := newTestCoordinator(t)

	req, err := c.SendFriendRequest("alice", "bob", "")
	require.NoError(t, err)
	_, err = c.RespondFriendRequest(req.ID, "bob", friends.ResponseAccept)
	require.NoError(t, err)
	transport.Reset()

	_, err = c.Presence.SetPresence("alice", presence.StatusOnline, "lobby", nil)
	require.NoError(t, err)
	_, err = c.Presence.SetPresence("bob", presence.StatusDND, "", nil)
	require.NoError(t, err)

	updates := transport.OfType(social.EventPresenceUpdated)
	require.Len(t, updates, 2)
	assert.Equal(t, "bob", updates[0].AccountID)
	assert.Equal(t, "alice", updates[1].AccountID)
}

func TestMutualRequestGrantsSubscriptions(t *testing.T) {
	c, transport, _ := newTestCoordinator(t)

	_, err := c.SendFriendRequest("alice", "bob", "")
	require.NoError(t, err)
	req, err := c.SendFriendRequest("bob", "alice", "")
	require.NoError(t, err)
	assert.Equal(t, friends.RequestAccepted, req.Status)
	transport.Reset()

	_, err = c.Presence.SetPresence("alice", presence.StatusOnline, "", nil)
	require.NoError(t, err)
	require.Len(t, transport.OfType(social.EventPresenceUpdated), 1)
}

func TestRemoveFriendTearsDownSubscriptions(t *testing.T) {
	c, transport, _ := newTestCoordinator(t)

	req, err := c.SendFriendRequest("alice", "bob", "")
	require.NoError(t, err)
	_, err = c.RespondFriendRequest(req.ID, "bob", friends.ResponseAccept)
	require.NoError(t, err)

	require.NoError(t, c.RemoveFriend("alice", "bob"))
	transport.Reset()

	_, err = c.Presence.SetPresence("alice", presence.StatusOnline, "", nil)
	require.NoError(t, err)
	assert.Empty(t, transport.OfType(social.EventPresenceUpdated))
}

func TestBlockTearsDownSubscriptions(t *testing.T) {
	c, transport, _ := newTestCoordinator(t)

	req, err := c.SendFriendRequest("alice", "bob", "")
	require.NoError(t, err)
	_, err = c.RespondFriendRequest(req.ID, "bob", friends.ResponseAccept)
	require.NoError(t, err)

	require.NoError(t, c.BlockUser("alice", "bob"))
	assert.False(t, c.Friends.AreFriends("alice", "bob"))
	transport.Reset()

	_, err = c.Presence.SetPresence("bob", presence.StatusOnline, "", nil)
	require.NoError(t, err)
	assert.Empty(t, transport.OfType(social.EventPresenceUpdated))
}

func TestConnectDisconnectLifecycle(t *testing.T) {
	c, transport, _ := newTestCoordinator(t)

	req, err := c.SendFriendRequest("alice", "bob", "")
	require.NoError(t, err)
	_, err = c.RespondFriendRequest(req.ID, "bob", friends.ResponseAccept)
	require.NoError(t, err)

	c.HandleDisconnect("alice")
	transport.Reset()

	// Bob still watches alice, so bob hears nothing of his own updates
	// but alice going online after reconnect reaches bob.
	c.HandleConnect("alice")
	updates := transport.OfType(social.EventPresenceUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, "bob", updates[0].AccountID)
	assert.Equal(t, presence.StatusOnline, c.Presence.GetPresence("alice").Status)

	// And alice's subscription to bob was rebuilt on connect.
	transport.Reset()
	_, err = c.Presence.SetPresence("bob", presence.StatusOnline, "", nil)
	require.NoError(t, err)
	updates = transport.OfType(social.EventPresenceUpdated)
	require.Len(t, updates, 1)
	assert.Equal(t, "alice", updates[0].AccountID)
}

func TestDisconnectKeepsPartyMembership(t *testing.T) {
	c, _, _ := newTestCoordinator(t)

	p, err := c.Parties.CreateParty("alice", "Alice", nil, party.ConnInfo{})
	require.NoError(t, err)

	c.HandleDisconnect("alice")

	got, ok := c.Parties.PartyOf("alice")
	require.True(t, ok)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, presence.StatusOffline, c.Presence.GetPresence("alice").Status)
}
