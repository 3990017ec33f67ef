package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	mw "github.com/emberforge/socialcore/middleware"
	"github.com/emberforge/socialcore/social/presence"
)

// PresenceHandler exposes the presence directory over REST.
type PresenceHandler struct {
	directory *presence.Directory
}

// NewPresenceHandler creates a new PresenceHandler.
func NewPresenceHandler(directory *presence.Directory) *PresenceHandler {
	return &PresenceHandler{directory: directory}
}

type setPresenceRequest struct {
	Status     string         `json:"status" binding:"required"`
	Activity   string         `json:"activity" binding:"omitempty,max=128"`
	Properties map[string]any `json:"properties"`
}

// Set handles PUT /api/presence.
func (h *PresenceHandler) Set(c *gin.Context) {
	var req setPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rec, err := h.directory.SetPresence(mw.GetAccountID(c),
		presence.Status(req.Status), req.Activity, req.Properties)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": rec})
}

// Get handles GET /api/presence/:id.
func (h *PresenceHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"presence": h.directory.GetPresence(c.Param("id"))})
}

type bulkPresenceRequest struct {
	AccountIDs []string `json:"account_ids" binding:"required,min=1,max=100"`
}

// GetBulk handles POST /api/presence/bulk.
func (h *PresenceHandler) GetBulk(c *gin.Context) {
	var req bulkPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": h.directory.GetBulk(req.AccountIDs)})
}

type subscriptionRequest struct {
	Targets []string `json:"targets" binding:"required,min=1,max=100"`
}

// Subscribe handles POST /api/presence/subscriptions.
func (h *PresenceHandler) Subscribe(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.directory.Subscribe(mw.GetAccountID(c), req.Targets...)
	c.JSON(http.StatusOK, gin.H{"message": "subscribed"})
}

// Unsubscribe handles DELETE /api/presence/subscriptions.
// A body listing targets removes those edges; "all=true" removes every
// edge where the caller is the subscriber.
func (h *PresenceHandler) Unsubscribe(c *gin.Context) {
	if c.Query("all") == "true" {
		h.directory.UnsubscribeAll(mw.GetAccountID(c))
		c.JSON(http.StatusOK, gin.H{"message": "unsubscribed"})
		return
	}
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.directory.Unsubscribe(mw.GetAccountID(c), req.Targets...)
	c.JSON(http.StatusOK, gin.H{"message": "unsubscribed"})
}
