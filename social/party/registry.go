package party

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/emberforge/socialcore/social"
)

var (
	ErrPartyNotFound  = social.NewError(social.ErrNotFound, "party not found")
	ErrInviteNotFound = social.NewError(social.ErrNotFound, "invitation not found")
	ErrAlreadyMember  = social.NewError(social.ErrConflict, "account is already a member of this party")
	ErrAlreadyInParty = social.NewError(social.ErrConflict, "account is already in another party")
	ErrPartyFull      = social.NewError(social.ErrConflict, "party is full")
	ErrNotMember      = social.NewError(social.ErrConflict, "account is not a member of this party")
	ErrSenderNotIn    = social.NewError(social.ErrUnauthorized, "sender is not a member of this party")
	ErrNotInvitee     = social.NewError(social.ErrUnauthorized, "account is not the invitation recipient")
	ErrInviteExpired  = social.NewError(social.ErrExpired, "invitation has expired")
	ErrBadResponse    = social.NewError(social.ErrInvalidArgument, "response must be ACCEPT or DECLINE")
)

// Options tune registry behaviour. Zero values fall back to sane defaults.
type Options struct {
	MaxPartySize int
	InviteTTL    time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Registry owns every live party and its invitations. All mutations run
// under one write lock; reads share a read lock. Event delivery and
// persistence always happen after the lock is released.
type Registry struct {
	mu          sync.RWMutex
	parties     map[string]*Party
	byAccount   map[string]string            // account id -> party id
	inviteIndex map[string]string            // invitation id -> party id
	byRecipient map[string]map[string]string // account id -> invitation id -> party id

	store     Store
	transport social.Transport
	logger    *zap.Logger

	maxSize   int
	inviteTTL time.Duration
	now       func() time.Time
}

func NewRegistry(store Store, transport social.Transport, logger *zap.Logger, opts Options) *Registry {
	if opts.MaxPartySize <= 0 {
		opts.MaxPartySize = 4
	}
	if opts.InviteTTL <= 0 {
		opts.InviteTTL = 300 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if transport == nil {
		transport = social.NopTransport{}
	}
	return &Registry{
		parties:     make(map[string]*Party),
		byAccount:   make(map[string]string),
		inviteIndex: make(map[string]string),
		byRecipient: make(map[string]map[string]string),
		store:       store,
		transport:   transport,
		logger:      logger,
		maxSize:     opts.MaxPartySize,
		inviteTTL:   opts.InviteTTL,
		now:         opts.Now,
	}
}

// CreateParty makes a new party with the founder as captain. The founder
// must not belong to any other party.
func (r *Registry) CreateParty(accountID, displayName string, cfg *Config, conn ConnInfo) (*Party, error) {
	now := r.now()

	c := Config{Privacy: PrivacyPrivate, MaxSize: r.maxSize, JoinConfirmation: true}
	if cfg != nil {
		if cfg.Privacy == PrivacyPublic || cfg.Privacy == PrivacyPrivate {
			c.Privacy = cfg.Privacy
		}
		if cfg.MaxSize > 0 && cfg.MaxSize <= r.maxSize {
			c.MaxSize = cfg.MaxSize
		}
		c.JoinConfirmation = cfg.JoinConfirmation
	}

	r.mu.Lock()
	if _, in := r.byAccount[accountID]; in {
		r.mu.Unlock()
		return nil, ErrAlreadyInParty
	}

	p := &Party{
		ID:     uuid.New().String(),
		Config: c,
		Members: []Member{{
			AccountID:   accountID,
			DisplayName: displayName,
			Role:        RoleCaptain,
			JoinedAt:    now,
			Platform:    conn.Platform,
			Location:    conn.Location,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.parties[p.ID] = p
	r.byAccount[accountID] = p.ID
	snapshot := p.clone()
	r.mu.Unlock()

	r.store.SaveParty(snapshot)
	r.logger.Info("party created",
		zap.String("party_id", snapshot.ID),
		zap.String("captain", accountID))
	return snapshot, nil
}

// GetParty returns a snapshot of the party. On a registry miss it falls
// back to the persistence store and installs the loaded party, so state
// survives a restart.
func (r *Registry) GetParty(ctx context.Context, partyID string) (*Party, error) {
	r.mu.RLock()
	if p, ok := r.parties[partyID]; ok {
		snapshot := p.clone()
		r.mu.RUnlock()
		return snapshot, nil
	}
	r.mu.RUnlock()

	loaded, err := r.store.LoadParty(ctx, partyID)
	if err != nil {
		if errors.Is(err, social.ErrNotFound) {
			return nil, ErrPartyNotFound
		}
		return nil, err
	}

	r.mu.Lock()
	if p, ok := r.parties[partyID]; ok {
		// Lost the race with another loader.
		snapshot := p.clone()
		r.mu.Unlock()
		return snapshot, nil
	}
	r.installLocked(loaded)
	snapshot := loaded.clone()
	r.mu.Unlock()
	return snapshot, nil
}

// installLocked registers a loaded party and rebuilds its indices.
// Caller holds the write lock.
func (r *Registry) installLocked(p *Party) {
	r.parties[p.ID] = p
	for i := range p.Members {
		id := p.Members[i].AccountID
		if _, taken := r.byAccount[id]; taken {
			r.logger.Warn("loaded party member already tracked elsewhere",
				zap.String("party_id", p.ID),
				zap.String("account_id", id))
			continue
		}
		r.byAccount[id] = p.ID
	}
	for _, inv := range p.Invitations {
		if inv.Status != InvitePending {
			continue
		}
		r.inviteIndex[inv.ID] = p.ID
		r.addRecipientLocked(inv)
	}
}

// JoinParty adds the account to the party roster.
func (r *Registry) JoinParty(partyID, accountID, displayName string, conn ConnInfo) (*Party, error) {
	events := &social.EventBuffer{}

	r.mu.Lock()
	p, ok := r.parties[partyID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrPartyNotFound
	}
	if err := r.joinLocked(p, accountID, displayName, conn, events); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	snapshot := p.clone()
	r.mu.Unlock()

	r.store.SaveParty(snapshot)
	events.Flush(r.transport)
	return snapshot, nil
}

// joinLocked performs the membership checks and mutation shared by
// JoinParty and invitation acceptance. Caller holds the write lock.
func (r *Registry) joinLocked(p *Party, accountID, displayName string, conn ConnInfo, events *social.EventBuffer) error {
	if p.memberIndex(accountID) >= 0 {
		return ErrAlreadyMember
	}
	if len(p.Members) >= p.Config.MaxSize {
		return ErrPartyFull
	}
	if _, in := r.byAccount[accountID]; in {
		return ErrAlreadyInParty
	}

	now := r.now()
	member := Member{
		AccountID:   accountID,
		DisplayName: displayName,
		Role:        RoleMember,
		JoinedAt:    now,
		Platform:    conn.Platform,
		Location:    conn.Location,
	}
	p.Members = append(p.Members, member)
	p.UpdatedAt = now
	r.byAccount[accountID] = p.ID

	payload := map[string]any{
		"party_id":     p.ID,
		"account_id":   accountID,
		"display_name": displayName,
		"member_count": len(p.Members),
	}
	for i := range p.Members {
		events.Add(p.Members[i].AccountID, social.EventMemberJoined, payload)
	}
	return nil
}

// LeaveParty removes the account from its party. The earliest remaining
// joiner becomes captain when the captain leaves; an emptied party is
// deleted outright.
func (r *Registry) LeaveParty(partyID, accountID string) error {
	events := &social.EventBuffer{}
	var snapshot *Party
	deleted := false

	r.mu.Lock()
	p, ok := r.parties[partyID]
	if !ok {
		r.mu.Unlock()
		return ErrPartyNotFound
	}
	idx := p.memberIndex(accountID)
	if idx < 0 {
		r.mu.Unlock()
		return ErrNotMember
	}

	wasCaptain := p.Members[idx].Role == RoleCaptain
	p.Members = append(p.Members[:idx], p.Members[idx+1:]...)
	p.UpdatedAt = r.now()
	delete(r.byAccount, accountID)

	leftPayload := map[string]any{
		"party_id":     p.ID,
		"account_id":   accountID,
		"member_count": len(p.Members),
	}
	events.Add(accountID, social.EventMemberLeft, leftPayload)
	for i := range p.Members {
		events.Add(p.Members[i].AccountID, social.EventMemberLeft, leftPayload)
	}

	if len(p.Members) == 0 {
		r.dropPartyLocked(p)
		deleted = true
	} else {
		if wasCaptain {
			// Members keep join order, so index 0 is the earliest joiner.
			p.Members[0].Role = RoleCaptain
			payload := map[string]any{
				"party_id":   p.ID,
				"account_id": p.Members[0].AccountID,
			}
			for i := range p.Members {
				events.Add(p.Members[i].AccountID, social.EventCaptainChanged, payload)
			}
		}
		snapshot = p.clone()
	}
	r.mu.Unlock()

	if deleted {
		r.store.DeleteParty(partyID)
		r.logger.Info("party deleted", zap.String("party_id", partyID))
	} else {
		r.store.SaveParty(snapshot)
	}
	events.Flush(r.transport)
	return nil
}

// dropPartyLocked removes a party and every index pointing at it.
// Caller holds the write lock.
func (r *Registry) dropPartyLocked(p *Party) {
	for _, inv := range p.Invitations {
		delete(r.inviteIndex, inv.ID)
		r.removeRecipientLocked(inv)
	}
	for i := range p.Members {
		if r.byAccount[p.Members[i].AccountID] == p.ID {
			delete(r.byAccount, p.Members[i].AccountID)
		}
	}
	delete(r.parties, p.ID)
}

// SendInvitation creates a pending invitation from a member to an
// outside account. A live duplicate is returned as-is rather than
// recreated, so retries are harmless.
func (r *Registry) SendInvitation(partyID, fromAccountID, toAccountID string) (*Invitation, error) {
	events := &social.EventBuffer{}
	var snapshot *Party

	r.mu.Lock()
	p, ok := r.parties[partyID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrPartyNotFound
	}
	if p.memberIndex(fromAccountID) < 0 {
		r.mu.Unlock()
		return nil, ErrSenderNotIn
	}
	if _, in := r.byAccount[toAccountID]; in {
		r.mu.Unlock()
		return nil, ErrAlreadyInParty
	}

	now := r.now()
	for _, inv := range p.Invitations {
		if inv.Status == InvitePending && inv.ToAccountID == toAccountID && now.Before(inv.ExpiresAt) {
			dup := *inv
			r.mu.Unlock()
			return &dup, nil
		}
	}

	inv := &Invitation{
		ID:            uuid.New().String(),
		PartyID:       p.ID,
		FromAccountID: fromAccountID,
		ToAccountID:   toAccountID,
		Status:        InvitePending,
		CreatedAt:     now,
		ExpiresAt:     now.Add(r.inviteTTL),
	}
	p.Invitations = append(p.Invitations, inv)
	p.UpdatedAt = now
	r.inviteIndex[inv.ID] = p.ID
	r.addRecipientLocked(inv)

	events.Add(toAccountID, social.EventInviteReceived, map[string]any{
		"invitation_id":   inv.ID,
		"party_id":        p.ID,
		"from_account_id": fromAccountID,
		"expires_at":      inv.ExpiresAt,
	})
	result := *inv
	snapshot = p.clone()
	r.mu.Unlock()

	r.store.SaveParty(snapshot)
	events.Flush(r.transport)
	return &result, nil
}

// RespondInvitation resolves a pending invitation. ACCEPT runs the same
// checks as a direct join; either answer removes the invitation from
// every index. A lapsed invitation is finalized here and reported as
// expired.
func (r *Registry) RespondInvitation(invitationID, accountID, displayName string, resp Response) (*Party, error) {
	if resp != ResponseAccept && resp != ResponseDecline {
		return nil, ErrBadResponse
	}

	events := &social.EventBuffer{}
	var snapshot *Party
	var joinErr error

	r.mu.Lock()
	partyID, ok := r.inviteIndex[invitationID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrInviteNotFound
	}
	p := r.parties[partyID]
	inv := r.findInviteLocked(p, invitationID)
	if inv == nil {
		delete(r.inviteIndex, invitationID)
		r.mu.Unlock()
		return nil, ErrInviteNotFound
	}
	if inv.ToAccountID != accountID {
		r.mu.Unlock()
		return nil, ErrNotInvitee
	}

	now := r.now()
	if !now.Before(inv.ExpiresAt) {
		inv.Status = InviteExpired
		r.detachInviteLocked(p, inv)
		snapshot = p.clone()
		r.mu.Unlock()
		r.store.SaveParty(snapshot)
		return nil, ErrInviteExpired
	}

	if resp == ResponseAccept {
		joinErr = r.joinLocked(p, accountID, displayName, ConnInfo{}, events)
		if joinErr == nil {
			inv.Status = InviteAccepted
		} else {
			inv.Status = InviteDeclined
		}
	} else {
		inv.Status = InviteDeclined
	}
	finalStatus := inv.Status
	r.detachInviteLocked(p, inv)
	p.UpdatedAt = now

	events.Add(inv.FromAccountID, social.EventInviteResponded, map[string]any{
		"invitation_id": inv.ID,
		"party_id":      p.ID,
		"account_id":    accountID,
		"status":        finalStatus,
	})
	snapshot = p.clone()
	r.mu.Unlock()

	r.store.SaveParty(snapshot)
	events.Flush(r.transport)
	if joinErr != nil {
		return nil, joinErr
	}
	if resp == ResponseDecline {
		return nil, nil
	}
	return snapshot, nil
}

// UpdateReadyState flips a member's ready flag. Setting the same value
// again is a no-op and emits nothing.
func (r *Registry) UpdateReadyState(partyID, accountID string, ready bool) error {
	events := &social.EventBuffer{}
	var snapshot *Party

	r.mu.Lock()
	p, ok := r.parties[partyID]
	if !ok {
		r.mu.Unlock()
		return ErrPartyNotFound
	}
	idx := p.memberIndex(accountID)
	if idx < 0 {
		r.mu.Unlock()
		return ErrNotMember
	}
	if p.Members[idx].Ready == ready {
		r.mu.Unlock()
		return nil
	}
	p.Members[idx].Ready = ready
	p.UpdatedAt = r.now()

	payload := map[string]any{
		"party_id":   p.ID,
		"account_id": accountID,
		"ready":      ready,
	}
	for i := range p.Members {
		events.Add(p.Members[i].AccountID, social.EventReadyChanged, payload)
	}
	snapshot = p.clone()
	r.mu.Unlock()

	r.store.SaveParty(snapshot)
	events.Flush(r.transport)
	return nil
}

// PartyOf returns a snapshot of the party the account belongs to, if any.
func (r *Registry) PartyOf(accountID string) (*Party, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	partyID, ok := r.byAccount[accountID]
	if !ok {
		return nil, false
	}
	p, ok := r.parties[partyID]
	if !ok {
		return nil, false
	}
	return p.clone(), true
}

// ListInvitations returns the live pending invitations addressed to the
// account. Lapsed ones encountered on the way are finalized and dropped.
func (r *Registry) ListInvitations(accountID string) []Invitation {
	r.mu.Lock()
	now := r.now()
	var out []Invitation
	touched := make(map[string]*Party)
	for invID, partyID := range r.byRecipient[accountID] {
		p, ok := r.parties[partyID]
		if !ok {
			continue
		}
		inv := r.findInviteLocked(p, invID)
		if inv == nil {
			continue
		}
		if !now.Before(inv.ExpiresAt) {
			inv.Status = InviteExpired
			r.detachInviteLocked(p, inv)
			touched[p.ID] = p
			continue
		}
		out = append(out, *inv)
	}
	snapshots := make([]*Party, 0, len(touched))
	for _, p := range touched {
		snapshots = append(snapshots, p.clone())
	}
	r.mu.Unlock()

	for _, s := range snapshots {
		r.store.SaveParty(s)
	}
	return out
}

// SweepExpiredInvitations walks every party and finalizes invitations
// whose TTL lapsed. Intended to run on a scheduler tick.
func (r *Registry) SweepExpiredInvitations() int {
	r.mu.Lock()
	now := r.now()
	expired := 0
	var snapshots []*Party
	for _, p := range r.parties {
		// Detaching mutates p.Invitations, so collect first.
		var lapsed []*Invitation
		for _, inv := range p.Invitations {
			if inv.Status == InvitePending && !now.Before(inv.ExpiresAt) {
				lapsed = append(lapsed, inv)
			}
		}
		for _, inv := range lapsed {
			inv.Status = InviteExpired
			r.detachInviteLocked(p, inv)
			expired++
		}
		if len(lapsed) > 0 {
			snapshots = append(snapshots, p.clone())
		}
	}
	r.mu.Unlock()

	for _, s := range snapshots {
		r.store.SaveParty(s)
	}
	if expired > 0 {
		r.logger.Info("swept expired invitations", zap.Int("count", expired))
	}
	return expired
}

// Stats reports counters for the admin surface.
func (r *Registry) Stats() (parties, members, invitations int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	parties = len(r.parties)
	members = len(r.byAccount)
	invitations = len(r.inviteIndex)
	return
}

func (r *Registry) findInviteLocked(p *Party, invitationID string) *Invitation {
	for _, inv := range p.Invitations {
		if inv.ID == invitationID {
			return inv
		}
	}
	return nil
}

// detachInviteLocked removes a resolved invitation from the party and
// both lookup indices. Caller holds the write lock.
func (r *Registry) detachInviteLocked(p *Party, inv *Invitation) {
	for i, cand := range p.Invitations {
		if cand.ID == inv.ID {
			p.Invitations = append(p.Invitations[:i], p.Invitations[i+1:]...)
			break
		}
	}
	delete(r.inviteIndex, inv.ID)
	r.removeRecipientLocked(inv)
}

func (r *Registry) addRecipientLocked(inv *Invitation) {
	set, ok := r.byRecipient[inv.ToAccountID]
	if !ok {
		set = make(map[string]string)
		r.byRecipient[inv.ToAccountID] = set
	}
	set[inv.ID] = inv.PartyID
}

func (r *Registry) removeRecipientLocked(inv *Invitation) {
	set, ok := r.byRecipient[inv.ToAccountID]
	if !ok {
		return
	}
	delete(set, inv.ID)
	if len(set) == 0 {
		delete(r.byRecipient, inv.ToAccountID)
	}
}
