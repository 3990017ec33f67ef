package sse

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emberforge/socialcore/cache"
	"github.com/emberforge/socialcore/identity"
	"github.com/emberforge/socialcore/notify"
)

// Handler handles the SSE endpoint. It is the fallback notification
// stream for clients that cannot hold a WebSocket: the same per-account
// envelopes are delivered as server-sent events.
type Handler struct {
	pubsub   cache.PubSub
	provider identity.Provider
	logger   *zap.Logger
}

// NewHandler creates a new SSE Handler.
func NewHandler(pubsub cache.PubSub, provider identity.Provider, logger *zap.Logger) *Handler {
	return &Handler{pubsub: pubsub, provider: provider, logger: logger}
}

// ServeSSE handles GET /sse?token=<jwt>.
// It streams the caller's notification events as server-sent events.
func (h *Handler) ServeSSE(c *gin.Context) {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	id, err := h.provider.ResolveAccount(c.Request.Context(), tokenStr)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	// Set SSE headers.
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	subCtx, subCancel := context.WithCancel(c.Request.Context())
	defer subCancel()

	msgCh, unsub, err := h.pubsub.Subscribe(subCtx, notify.Channel(id.AccountID))
	if err != nil {
		h.logger.Error("sse subscribe failed", zap.Error(err),
			zap.String("account_id", id.AccountID))
		c.Status(http.StatusInternalServerError)
		return
	}
	defer unsub()

	// Send initial connected event.
	fmt.Fprintf(c.Writer, "event: connected\ndata: {}\n\n")
	c.Writer.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				return
			}
			fmt.Fprintf(c.Writer, "event: notification\ndata: %s\n\n", msg.Payload)
			c.Writer.Flush()

		case <-ticker.C:
			// Keepalive comment to prevent proxy timeouts.
			fmt.Fprintf(c.Writer, ": keepalive\n\n")
			c.Writer.Flush()

		case <-c.Request.Context().Done():
			return
		}
	}
}
