// Package friends owns the relationship graph: accepted edges, pending
// requests, and blocks. It is a read-only collaborator for the other
// directories and never mutates them.
package friends

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emberforge/socialcore/social"
)

var (
	ErrRequestNotFound  = social.NewError(social.ErrNotFound, "friend request not found")
	ErrAlreadyFriends   = social.NewError(social.ErrConflict, "accounts are already friends")
	ErrBlocked          = social.NewError(social.ErrUnauthorized, "account is blocked")
	ErrDuplicateRequest = social.NewError(social.ErrConflict, "a pending request to this account already exists")
	ErrNotRecipient     = social.NewError(social.ErrUnauthorized, "account is not the request recipient")
	ErrRequestExpired   = social.NewError(social.ErrExpired, "friend request has expired")
	ErrNotFriends       = social.NewError(social.ErrConflict, "accounts are not friends")
	ErrNotBlocked       = social.NewError(social.ErrConflict, "account is not blocked")
	ErrSelfRelation     = social.NewError(social.ErrInvalidArgument, "cannot target own account")
	ErrBadResponse      = social.NewError(social.ErrInvalidArgument, "response must be ACCEPT or DECLINE")
)

// RequestStatus tracks the lifecycle of a friend request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "PENDING"
	RequestAccepted RequestStatus = "ACCEPTED"
	RequestDeclined RequestStatus = "DECLINED"
	RequestExpired  RequestStatus = "EXPIRED"
)

// Response is the recipient's answer to a friend request.
type Response string

const (
	ResponseAccept  Response = "ACCEPT"
	ResponseDecline Response = "DECLINE"
)

// Direction selects which side of the request index to list.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Request is a pending offer of friendship. At most one PENDING request
// exists per ordered (from, to) pair.
type Request struct {
	ID            string        `json:"id"`
	FromAccountID string        `json:"from_account_id"`
	ToAccountID   string        `json:"to_account_id"`
	Message       string        `json:"message"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
}

type pair struct {
	from string
	to   string
}

// Options tune graph behaviour. Zero values fall back to defaults.
type Options struct {
	RequestTTL time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Graph holds friendship edges (stored as two directed pointers so both
// lookups are O(1)), pending requests, and block lists, all under one
// lock.
type Graph struct {
	mu      sync.RWMutex
	edges   map[string]map[string]struct{} // account -> set of friends
	blocks  map[string]map[string]struct{} // blocker -> set of blocked
	byID    map[string]*Request
	pending map[pair]string              // ordered (from, to) -> request id
	byTo    map[string]map[string]string // recipient -> request id -> from
	byFrom  map[string]map[string]string // sender -> request id -> to

	transport social.Transport
	logger    *zap.Logger

	requestTTL time.Duration
	now        func() time.Time
}

func NewGraph(transport social.Transport, logger *zap.Logger, opts Options) *Graph {
	if opts.RequestTTL <= 0 {
		opts.RequestTTL = 30 * 24 * time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if transport == nil {
		transport = social.NopTransport{}
	}
	return &Graph{
		edges:      make(map[string]map[string]struct{}),
		blocks:     make(map[string]map[string]struct{}),
		byID:       make(map[string]*Request),
		pending:    make(map[pair]string),
		byTo:       make(map[string]map[string]string),
		byFrom:     make(map[string]map[string]string),
		transport:  transport,
		logger:     logger,
		requestTTL: opts.RequestTTL,
		now:        opts.Now,
	}
}

// SendFriendRequest opens a pending request from one account to another.
// If the recipient already has a live pending request going the other
// way, both requests resolve as accepted in the same step and the edge
// materializes immediately.
func (g *Graph) SendFriendRequest(fromID, toID, message string) (*Request, error) {
	if fromID == toID {
		return nil, ErrSelfRelation
	}

	events := &social.EventBuffer{}
	g.mu.Lock()
	if g.areFriendsLocked(fromID, toID) {
		g.mu.Unlock()
		return nil, ErrAlreadyFriends
	}
	if g.isBlockedLocked(toID, fromID) || g.isBlockedLocked(fromID, toID) {
		g.mu.Unlock()
		return nil, ErrBlocked
	}

	now := g.now()
	if id, ok := g.pending[pair{fromID, toID}]; ok {
		req := g.byID[id]
		if now.Before(req.ExpiresAt) {
			g.mu.Unlock()
			return nil, ErrDuplicateRequest
		}
		// Lapsed duplicate: finalize it and fall through to a new one.
		req.Status = RequestExpired
		g.detachLocked(req)
	}

	// A live request already going the other way means both sides want
	// the friendship: accept it now instead of stacking a second one.
	if id, ok := g.pending[pair{toID, fromID}]; ok {
		reverse := g.byID[id]
		if now.Before(reverse.ExpiresAt) {
			reverse.Status = RequestAccepted
			g.detachLocked(reverse)
			g.addEdgeLocked(fromID, toID)
			accepted := *reverse
			payload := map[string]any{
				"request_id": reverse.ID,
				"account_id": fromID,
				"status":     RequestAccepted,
			}
			events.Add(toID, social.EventRequestResponded, payload)
			events.Add(fromID, social.EventRequestResponded, payload)
			g.mu.Unlock()
			events.Flush(g.transport)
			return &accepted, nil
		}
		reverse.Status = RequestExpired
		g.detachLocked(reverse)
	}

	req := &Request{
		ID:            uuid.New().String(),
		FromAccountID: fromID,
		ToAccountID:   toID,
		Message:       message,
		Status:        RequestPending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(g.requestTTL),
	}
	g.attachLocked(req)

	events.Add(toID, social.EventRequestReceived, map[string]any{
		"request_id":      req.ID,
		"from_account_id": fromID,
		"message":         message,
		"expires_at":      req.ExpiresAt,
	})
	result := *req
	g.mu.Unlock()

	events.Flush(g.transport)
	return &result, nil
}

// RespondFriendRequest resolves a pending request. Only the recipient
// may answer; a lapsed request is finalized here and reported as
// expired. ACCEPT materializes the edge in both directions.
func (g *Graph) RespondFriendRequest(requestID, responderID string, resp Response) (*Request, error) {
	if resp != ResponseAccept && resp != ResponseDecline {
		return nil, ErrBadResponse
	}

	events := &social.EventBuffer{}
	g.mu.Lock()
	req, ok := g.byID[requestID]
	if !ok {
		g.mu.Unlock()
		return nil, ErrRequestNotFound
	}
	if req.ToAccountID != responderID {
		g.mu.Unlock()
		return nil, ErrNotRecipient
	}

	now := g.now()
	if !now.Before(req.ExpiresAt) {
		req.Status = RequestExpired
		g.detachLocked(req)
		g.mu.Unlock()
		return nil, ErrRequestExpired
	}

	if resp == ResponseAccept {
		req.Status = RequestAccepted
		g.addEdgeLocked(req.FromAccountID, req.ToAccountID)
	} else {
		req.Status = RequestDeclined
	}
	g.detachLocked(req)

	events.Add(req.FromAccountID, social.EventRequestResponded, map[string]any{
		"request_id": req.ID,
		"account_id": responderID,
		"status":     req.Status,
	})
	result := *req
	g.mu.Unlock()

	events.Flush(g.transport)
	return &result, nil
}

// RemoveFriend severs the edge in both directions as one step.
func (g *Graph) RemoveFriend(aID, bID string) error {
	events := &social.EventBuffer{}
	g.mu.Lock()
	if !g.areFriendsLocked(aID, bID) {
		g.mu.Unlock()
		return ErrNotFriends
	}
	g.removeEdgeLocked(aID, bID)

	payload := map[string]any{"account_id": aID, "friend_id": bID}
	events.Add(aID, social.EventFriendRemoved, payload)
	events.Add(bID, social.EventFriendRemoved, payload)
	g.mu.Unlock()

	events.Flush(g.transport)
	return nil
}

// BlockUser blocks the target. Blocking again is a no-op. Any existing
// friendship is severed and pending requests between the pair, in
// either direction, are cancelled.
func (g *Graph) BlockUser(accountID, targetID string) error {
	if accountID == targetID {
		return ErrSelfRelation
	}

	events := &social.EventBuffer{}
	g.mu.Lock()
	set, ok := g.blocks[accountID]
	if !ok {
		set = make(map[string]struct{})
		g.blocks[accountID] = set
	}
	set[targetID] = struct{}{}

	if g.areFriendsLocked(accountID, targetID) {
		g.removeEdgeLocked(accountID, targetID)
		payload := map[string]any{"account_id": accountID, "friend_id": targetID}
		events.Add(accountID, social.EventFriendRemoved, payload)
		events.Add(targetID, social.EventFriendRemoved, payload)
	}
	for _, p := range []pair{{accountID, targetID}, {targetID, accountID}} {
		if id, ok := g.pending[p]; ok {
			req := g.byID[id]
			req.Status = RequestDeclined
			g.detachLocked(req)
		}
	}
	g.mu.Unlock()

	events.Flush(g.transport)
	return nil
}

// UnblockUser lifts a block. The severed friendship does not come back.
func (g *Graph) UnblockUser(accountID, targetID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	set, ok := g.blocks[accountID]
	if !ok {
		return ErrNotBlocked
	}
	if _, blocked := set[targetID]; !blocked {
		return ErrNotBlocked
	}
	delete(set, targetID)
	if len(set) == 0 {
		delete(g.blocks, accountID)
	}
	return nil
}

// AreFriends reports whether an accepted edge exists between the two.
func (g *Graph) AreFriends(aID, bID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.areFriendsLocked(aID, bID)
}

// IsBlocked reports whether accountID has blocked targetID.
func (g *Graph) IsBlocked(accountID, targetID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isBlockedLocked(accountID, targetID)
}

// Friends lists the account's accepted friends.
func (g *Graph) Friends(accountID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return keys(g.edges[accountID])
}

// Blocked lists the accounts this account has blocked.
func (g *Graph) Blocked(accountID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return keys(g.blocks[accountID])
}

// MutualFriends lists accounts befriended by both.
func (g *Graph) MutualFriends(aID, bID string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, b := g.edges[aID], g.edges[bID]
	if len(b) < len(a) {
		a, b = b, a
	}
	var out []string
	for id := range a {
		if _, ok := b[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Requests lists the account's live pending requests in the given
// direction. Lapsed requests found on the way are finalized and skipped.
func (g *Graph) Requests(accountID string, dir Direction) []Request {
	g.mu.Lock()
	defer g.mu.Unlock()

	var index map[string]string
	switch dir {
	case DirectionIncoming:
		index = g.byTo[accountID]
	case DirectionOutgoing:
		index = g.byFrom[accountID]
	default:
		return nil
	}

	now := g.now()
	var out []Request
	for id := range index {
		req := g.byID[id]
		if req == nil {
			continue
		}
		if !now.Before(req.ExpiresAt) {
			req.Status = RequestExpired
			g.detachLocked(req)
			continue
		}
		out = append(out, *req)
	}
	return out
}

// SweepExpiredRequests finalizes every request whose TTL lapsed.
// Intended to run on a scheduler tick.
func (g *Graph) SweepExpiredRequests() int {
	g.mu.Lock()
	now := g.now()
	expired := 0
	for _, req := range g.byID {
		if !now.Before(req.ExpiresAt) {
			req.Status = RequestExpired
			g.detachLocked(req)
			expired++
		}
	}
	g.mu.Unlock()

	if expired > 0 {
		g.logger.Info("swept expired friend requests", zap.Int("count", expired))
	}
	return expired
}

// Stats reports counters for the admin surface.
func (g *Graph) Stats() (edges, requests, blocks int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, set := range g.edges {
		edges += len(set)
	}
	edges /= 2
	requests = len(g.byID)
	for _, set := range g.blocks {
		blocks += len(set)
	}
	return
}

func (g *Graph) areFriendsLocked(aID, bID string) bool {
	_, ok := g.edges[aID][bID]
	return ok
}

func (g *Graph) isBlockedLocked(accountID, targetID string) bool {
	_, ok := g.blocks[accountID][targetID]
	return ok
}

func (g *Graph) addEdgeLocked(aID, bID string) {
	for _, e := range [][2]string{{aID, bID}, {bID, aID}} {
		set, ok := g.edges[e[0]]
		if !ok {
			set = make(map[string]struct{})
			g.edges[e[0]] = set
		}
		set[e[1]] = struct{}{}
	}
}

func (g *Graph) removeEdgeLocked(aID, bID string) {
	for _, e := range [][2]string{{aID, bID}, {bID, aID}} {
		if set, ok := g.edges[e[0]]; ok {
			delete(set, e[1])
			if len(set) == 0 {
				delete(g.edges, e[0])
			}
		}
	}
}

func (g *Graph) attachLocked(req *Request) {
	g.byID[req.ID] = req
	g.pending[pair{req.FromAccountID, req.ToAccountID}] = req.ID
	to, ok := g.byTo[req.ToAccountID]
	if !ok {
		to = make(map[string]string)
		g.byTo[req.ToAccountID] = to
	}
	to[req.ID] = req.FromAccountID
	from, ok := g.byFrom[req.FromAccountID]
	if !ok {
		from = make(map[string]string)
		g.byFrom[req.FromAccountID] = from
	}
	from[req.ID] = req.ToAccountID
}

// detachLocked removes a finalized request from every index.
func (g *Graph) detachLocked(req *Request) {
	delete(g.byID, req.ID)
	delete(g.pending, pair{req.FromAccountID, req.ToAccountID})
	if to, ok := g.byTo[req.ToAccountID]; ok {
		delete(to, req.ID)
		if len(to) == 0 {
			delete(g.byTo, req.ToAccountID)
		}
	}
	if from, ok := g.byFrom[req.FromAccountID]; ok {
		delete(from, req.ID)
		if len(from) == 0 {
			delete(g.byFrom, req.FromAccountID)
		}
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
