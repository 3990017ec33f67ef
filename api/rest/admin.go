package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emberforge/socialcore/scheduler"
	"github.com/emberforge/socialcore/social/coordinator"
	"github.com/emberforge/socialcore/social/presence"
)

// AdminHandler handles admin-only REST endpoints.
// Routes should be protected by AdminAuth middleware.
type AdminHandler struct {
	coord  *coordinator.Coordinator
	sched  *scheduler.Scheduler
	logger *zap.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(coord *coordinator.Coordinator, sched *scheduler.Scheduler, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{coord: coord, sched: sched, logger: logger}
}

// Metrics returns directory counters and scheduler state.
// GET /api/admin/metrics
func (h *AdminHandler) Metrics(c *gin.Context) {
	parties, members, invitations := h.coord.Parties.Stats()
	edges, requests, blocks := h.coord.Friends.Stats()
	summary := h.coord.Presence.Summary()

	c.JSON(http.StatusOK, gin.H{
		"parties": gin.H{
			"count":       parties,
			"members":     members,
			"invitations": invitations,
		},
		"friends": gin.H{
			"edges":    edges,
			"requests": requests,
			"blocks":   blocks,
		},
		"presence": gin.H{
			"online":        summary[presence.StatusOnline],
			"away":          summary[presence.StatusAway],
			"dnd":           summary[presence.StatusDND],
			"offline":       summary[presence.StatusOffline],
			"subscriptions": h.coord.Presence.SubscriptionCount(),
		},
		"scheduler_tasks": h.sched.ListTickers(),
	})
}

// Sweep forces an immediate expiry pass over every directory.
// POST /api/admin/sweep
func (h *AdminHandler) Sweep(c *gin.Context) {
	invitations := h.coord.Parties.SweepExpiredInvitations()
	requests := h.coord.Friends.SweepExpiredRequests()
	demoted, removed := h.coord.Presence.Sweep()

	h.logger.Info("manual sweep",
		zap.Int("invitations", invitations),
		zap.Int("requests", requests),
		zap.Int("presence_demoted", demoted),
		zap.Int("presence_removed", removed))

	c.JSON(http.StatusOK, gin.H{
		"expired_invitations": invitations,
		"expired_requests":    requests,
		"presence_demoted":    demoted,
		"presence_removed":    removed,
	})
}

// DisconnectAccount forces the social disconnect path for an account.
// POST /api/admin/disconnect/:id
func (h *AdminHandler) DisconnectAccount(c *gin.Context) {
	accountID := c.Param("id")
	h.coord.HandleDisconnect(accountID)
	c.JSON(http.StatusOK, gin.H{"message": "disconnected", "account_id": accountID})
}

// AdminAuth returns a middleware that checks the X-Admin-Key header.
// WARNING: if adminKey is empty all admin endpoints are disabled (503) so the
// server cannot be accidentally deployed without protection. Set a non-empty
// server.admin_key in config to enable admin routes.
func AdminAuth(adminKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if adminKey == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable,
				gin.H{"error": "admin endpoints disabled: set server.admin_key in config"})
			return
		}
		key := c.GetHeader("X-Admin-Key")
		if key != adminKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
