package party

import "time"

// Privacy controls whether a party is discoverable by non-members.
type Privacy string

const (
	PrivacyPublic  Privacy = "PUBLIC"
	PrivacyPrivate Privacy = "PRIVATE"
)

// Role of a member inside a party. Exactly one member holds RoleCaptain.
type Role string

const (
	RoleCaptain Role = "CAPTAIN"
	RoleMember  Role = "MEMBER"
)

// InviteStatus tracks the lifecycle of an invitation.
type InviteStatus string

const (
	InvitePending  InviteStatus = "PENDING"
	InviteAccepted InviteStatus = "ACCEPTED"
	InviteDeclined InviteStatus = "DECLINED"
	InviteExpired  InviteStatus = "EXPIRED"
)

// Response is the recipient's answer to an invitation.
type Response string

const (
	ResponseAccept  Response = "ACCEPT"
	ResponseDecline Response = "DECLINE"
)

// Config holds the per-party settings chosen by the founder.
type Config struct {
	Privacy          Privacy `json:"privacy"`
	MaxSize          int     `json:"max_size"`
	JoinConfirmation bool    `json:"join_confirmation"`
}

// ConnInfo describes how a member is connected, for roster display.
type ConnInfo struct {
	Platform string `json:"platform"`
	Location string `json:"location"`
}

// Member is one account's seat in a party.
type Member struct {
	AccountID   string    `json:"account_id"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
	Ready       bool      `json:"ready"`
	Platform    string    `json:"platform"`
	Location    string    `json:"location"`
}

// Invitation is a pending offer to join a party. It lives inside the
// party that issued it and expires after a fixed window.
type Invitation struct {
	ID            string       `json:"id"`
	PartyID       string       `json:"party_id"`
	FromAccountID string       `json:"from_account_id"`
	ToAccountID   string       `json:"to_account_id"`
	Status        InviteStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	ExpiresAt     time.Time    `json:"expires_at"`
}

// Party is the full state of one party: config, roster, and its
// outstanding invitations.
type Party struct {
	ID          string        `json:"id"`
	Config      Config        `json:"config"`
	Members     []Member      `json:"members"`
	Invitations []*Invitation `json:"invitations"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// clone returns a deep copy safe to hand to callers or the store
// outside the registry lock.
func (p *Party) clone() *Party {
	cp := *p
	cp.Members = make([]Member, len(p.Members))
	copy(cp.Members, p.Members)
	cp.Invitations = make([]*Invitation, 0, len(p.Invitations))
	for _, inv := range p.Invitations {
		c := *inv
		cp.Invitations = append(cp.Invitations, &c)
	}
	return &cp
}

func (p *Party) memberIndex(accountID string) int {
	for i := range p.Members {
		if p.Members[i].AccountID == accountID {
			return i
		}
	}
	return -1
}

func (p *Party) captainIndex() int {
	for i := range p.Members {
		if p.Members[i].Role == RoleCaptain {
			return i
		}
	}
	return -1
}
