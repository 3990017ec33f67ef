package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	mw "github.com/emberforge/socialcore/middleware"
	"github.com/emberforge/socialcore/social/coordinator"
	"github.com/emberforge/socialcore/social/friends"
	"github.com/emberforge/socialcore/social/presence"
)

// FriendsHandler exposes the friend graph over REST. Mutations go
// through the coordinator so presence subscriptions follow the
// friendship lifecycle.
type FriendsHandler struct {
	coord *coordinator.Coordinator
}

// NewFriendsHandler creates a new FriendsHandler.
func NewFriendsHandler(coord *coordinator.Coordinator) *FriendsHandler {
	return &FriendsHandler{coord: coord}
}

// List handles GET /api/friends. Each friend comes with their current
// presence so the roster renders in one round trip.
func (h *FriendsHandler) List(c *gin.Context) {
	ids := h.coord.Friends.Friends(mw.GetAccountID(c))
	records := h.coord.Presence.GetBulk(ids)

	type friendInfo struct {
		AccountID string          `json:"account_id"`
		Presence  presence.Record `json:"presence"`
	}
	result := make([]friendInfo, 0, len(ids))
	for _, id := range ids {
		result = append(result, friendInfo{AccountID: id, Presence: records[id]})
	}
	c.JSON(http.StatusOK, gin.H{"friends": result})
}

type friendRequestBody struct {
	ToAccountID string `json:"to_account_id" binding:"required,max=36"`
	Message     string `json:"message" binding:"omitempty,max=256"`
}

// SendRequest handles POST /api/friends/requests.
func (h *FriendsHandler) SendRequest(c *gin.Context) {
	var req friendRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fr, err := h.coord.SendFriendRequest(mw.GetAccountID(c), req.ToAccountID, req.Message)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"request": fr})
}

// ListRequests handles GET /api/friends/requests?direction=incoming|outgoing.
func (h *FriendsHandler) ListRequests(c *gin.Context) {
	dir := friends.Direction(c.DefaultQuery("direction", string(friends.DirectionIncoming)))
	if dir != friends.DirectionIncoming && dir != friends.DirectionOutgoing {
		c.JSON(http.StatusBadRequest, gin.H{"error": "direction must be incoming or outgoing"})
		return
	}
	reqs := h.coord.Friends.Requests(mw.GetAccountID(c), dir)
	if reqs == nil {
		reqs = []friends.Request{}
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

type respondRequestBody struct {
	Response string `json:"response" binding:"required,oneof=ACCEPT DECLINE"`
}

// RespondRequest handles POST /api/friends/requests/:id/response.
func (h *FriendsHandler) RespondRequest(c *gin.Context) {
	var req respondRequestBody
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fr, err := h.coord.RespondFriendRequest(c.Param("id"), mw.GetAccountID(c),
		friends.Response(req.Response))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": fr})
}

// Remove handles DELETE /api/friends/:id.
func (h *FriendsHandler) Remove(c *gin.Context) {
	if err := h.coord.RemoveFriend(mw.GetAccountID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "friend removed"})
}

// Block handles POST /api/friends/blocks/:id.
func (h *FriendsHandler) Block(c *gin.Context) {
	if err := h.coord.BlockUser(mw.GetAccountID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "blocked"})
}

// Unblock handles DELETE /api/friends/blocks/:id.
func (h *FriendsHandler) Unblock(c *gin.Context) {
	if err := h.coord.Friends.UnblockUser(mw.GetAccountID(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unblocked"})
}

// ListBlocked handles GET /api/friends/blocks.
func (h *FriendsHandler) ListBlocked(c *gin.Context) {
	blocked := h.coord.Friends.Blocked(mw.GetAccountID(c))
	if blocked == nil {
		blocked = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"blocked": blocked})
}

// Mutual handles GET /api/friends/mutual/:id.
func (h *FriendsHandler) Mutual(c *gin.Context) {
	mutual := h.coord.Friends.MutualFriends(mw.GetAccountID(c), c.Param("id"))
	if mutual == nil {
		mutual = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"mutual": mutual})
}
