package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/emberforge/socialcore/api/rest"
	"github.com/emberforge/socialcore/identity"
	mw "github.com/emberforge/socialcore/middleware"
	"github.com/emberforge/socialcore/scheduler"
	"github.com/emberforge/socialcore/social/coordinator"
	"github.com/emberforge/socialcore/social/friends"
	"github.com/emberforge/socialcore/social/party"
	"github.com/emberforge/socialcore/social/presence"
	"github.com/emberforge/socialcore/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stubProvider resolves fixed tokens to fixed identities, so handler
// tests do not need a full login round trip.
type stubProvider map[string]identity.Identity

func (p stubProvider) ResolveAccount(_ context.Context, credential string) (identity.Identity, error) {
	id, ok := p[credential]
	if !ok {
		return identity.Identity{}, identity.ErrInvalidCredential
	}
	return id, nil
}

// socialSetup is the full handler stack over in-memory directories.
type socialSetup struct {
	engine    *gin.Engine
	coord     *coordinator.Coordinator
	transport *testutil.CaptureTransport
	clock     *testutil.Clock
}

// tokenFor is the stub credential convention used by newSocialSetup.
func tokenFor(accountID string) string { return "token-" + accountID }

func newSocialSetup(t *testing.T, accounts ...string) *socialSetup {
	t.Helper()
	clock := testutil.NewClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	transport := testutil.NewCaptureTransport()
	logger := testutil.Logger()

	parties := party.NewRegistry(party.NewMemoryStore(), transport, logger,
		party.Options{MaxPartySize: 4, InviteTTL: 300 * time.Second, Now: clock.Now})
	dir := presence.NewDirectory(transport, logger, presence.Options{Now: clock.Now})
	graph := friends.NewGraph(transport, logger, friends.Options{Now: clock.Now})
	coord := coordinator.New(parties, dir, graph, logger)

	provider := stubProvider{}
	for _, id := range accounts {
		provider[tokenFor(id)] = identity.Identity{AccountID: id, DisplayName: id}
	}

	partyH := rest.NewPartyHandler(parties)
	presenceH := rest.NewPresenceHandler(dir)
	friendsH := rest.NewFriendsHandler(coord)
	adminH := rest.NewAdminHandler(coord, scheduler.New(logger), logger)

	r := gin.New()
	api := r.Group("/api", mw.Auth(provider))
	api.POST("/parties", partyH.Create)
	api.GET("/parties/mine", partyH.Mine)
	api.GET("/parties/:id", partyH.Get)
	api.POST("/parties/:id/members", partyH.Join)
	api.DELETE("/parties/:id/members/me", partyH.Leave)
	api.PUT("/parties/:id/members/me/ready", partyH.SetReady)
	api.POST("/parties/:id/invitations", partyH.Invite)
	api.GET("/invitations", partyH.ListInvitations)
	api.POST("/invitations/:id/response", partyH.RespondInvitation)
	api.PUT("/presence", presenceH.Set)
	api.GET("/presence/:id", presenceH.Get)
	api.POST("/presence/bulk", presenceH.GetBulk)
	api.POST("/presence/subscriptions", presenceH.Subscribe)
	api.DELETE("/presence/subscriptions", presenceH.Unsubscribe)
	api.GET("/friends", friendsH.List)
	api.POST("/friends/requests", friendsH.SendRequest)
	api.GET("/friends/requests", friendsH.ListRequests)
	api.POST("/friends/requests/:id/response", friendsH.RespondRequest)
	api.GET("/friends/blocks", friendsH.ListBlocked)
	api.POST("/friends/blocks/:id", friendsH.Block)
	api.DELETE("/friends/blocks/:id", friendsH.Unblock)
	api.GET("/friends/mutual/:id", friendsH.Mutual)
	api.DELETE("/friends/:id", friendsH.Remove)

	admin := r.Group("/api/admin", rest.AdminAuth("test-admin-key"))
	admin.GET("/metrics", adminH.Metrics)
	admin.POST("/sweep", adminH.Sweep)

	return &socialSetup{engine: r, coord: coord, transport: transport, clock: clock}
}

// do performs a request as the given account and decodes the JSON body.
func (s *socialSetup) do(t *testing.T, method, path, accountID string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if accountID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(accountID))
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	resp := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

// doRaw performs a prepared request and decodes the JSON body.
func (s *socialSetup) doRaw(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	resp := map[string]any{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

// createParty makes a party as accountID and returns its id.
func (s *socialSetup) createParty(t *testing.T, accountID string) string {
	t.Helper()
	code, resp := s.do(t, http.MethodPost, "/api/parties", accountID, map[string]any{})
	require.Equal(t, http.StatusCreated, code)
	p := resp["party"].(map[string]any)
	return p["id"].(string)
}
