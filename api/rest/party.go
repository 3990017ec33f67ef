package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	mw "github.com/emberforge/socialcore/middleware"
	"github.com/emberforge/socialcore/social/party"
)

// PartyHandler exposes the party registry over REST.
type PartyHandler struct {
	registry *party.Registry
}

// NewPartyHandler creates a new PartyHandler.
func NewPartyHandler(registry *party.Registry) *PartyHandler {
	return &PartyHandler{registry: registry}
}

type createPartyRequest struct {
	Privacy          string `json:"privacy" binding:"omitempty,oneof=PUBLIC PRIVATE"`
	MaxSize          int    `json:"max_size" binding:"omitempty,min=1"`
	JoinConfirmation *bool  `json:"join_confirmation"`
	Platform         string `json:"platform" binding:"omitempty,max=32"`
	Location         string `json:"location" binding:"omitempty,max=64"`
}

// Create handles POST /api/parties.
func (h *PartyHandler) Create(c *gin.Context) {
	var req createPartyRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var cfg *party.Config
	if req.Privacy != "" || req.MaxSize > 0 || req.JoinConfirmation != nil {
		cfg = &party.Config{
			Privacy:          party.Privacy(req.Privacy),
			MaxSize:          req.MaxSize,
			JoinConfirmation: req.JoinConfirmation == nil || *req.JoinConfirmation,
		}
	}

	p, err := h.registry.CreateParty(mw.GetAccountID(c), mw.GetDisplayName(c), cfg,
		party.ConnInfo{Platform: req.Platform, Location: req.Location})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"party": p})
}

// Get handles GET /api/parties/:id.
func (h *PartyHandler) Get(c *gin.Context) {
	p, err := h.registry.GetParty(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"party": p})
}

// Mine handles GET /api/parties/mine.
func (h *PartyHandler) Mine(c *gin.Context) {
	p, ok := h.registry.PartyOf(mw.GetAccountID(c))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not in a party"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"party": p})
}

type joinPartyRequest struct {
	Platform string `json:"platform" binding:"omitempty,max=32"`
	Location string `json:"location" binding:"omitempty,max=64"`
}

// Join handles POST /api/parties/:id/members.
func (h *PartyHandler) Join(c *gin.Context) {
	var req joinPartyRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.registry.JoinParty(c.Param("id"), mw.GetAccountID(c), mw.GetDisplayName(c),
		party.ConnInfo{Platform: req.Platform, Location: req.Location})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"party": p})
}

// Leave handles DELETE /api/parties/:id/members/me.
func (h *PartyHandler) Leave(c *gin.Context) {
	if err := h.registry.LeaveParty(c.Param("id"), mw.GetAccountID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "left party"})
}

type inviteRequest struct {
	ToAccountID string `json:"to_account_id" binding:"required,max=36"`
}

// Invite handles POST /api/parties/:id/invitations.
func (h *PartyHandler) Invite(c *gin.Context) {
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	inv, err := h.registry.SendInvitation(c.Param("id"), mw.GetAccountID(c), req.ToAccountID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"invitation": inv})
}

// ListInvitations handles GET /api/invitations.
func (h *PartyHandler) ListInvitations(c *gin.Context) {
	invs := h.registry.ListInvitations(mw.GetAccountID(c))
	if invs == nil {
		invs = []party.Invitation{}
	}
	c.JSON(http.StatusOK, gin.H{"invitations": invs})
}

type respondInviteRequest struct {
	Response string `json:"response" binding:"required,oneof=ACCEPT DECLINE"`
}

// RespondInvitation handles POST /api/invitations/:id/response.
func (h *PartyHandler) RespondInvitation(c *gin.Context) {
	var req respondInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := h.registry.RespondInvitation(c.Param("id"), mw.GetAccountID(c),
		mw.GetDisplayName(c), party.Response(req.Response))
	if err != nil {
		fail(c, err)
		return
	}
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"message": "invitation declined"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"party": p})
}

type readyRequest struct {
	Ready *bool `json:"ready" binding:"required"`
}

// SetReady handles PUT /api/parties/:id/members/me/ready.
func (h *PartyHandler) SetReady(c *gin.Context) {
	var req readyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.registry.UpdateReadyState(c.Param("id"), mw.GetAccountID(c), *req.Ready); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": *req.Ready})
}
