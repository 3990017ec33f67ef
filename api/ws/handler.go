package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/emberforge/socialcore/cache"
	"github.com/emberforge/socialcore/config"
	"github.com/emberforge/socialcore/identity"
	"github.com/emberforge/socialcore/notify"
	"github.com/emberforge/socialcore/social/coordinator"
)

// Handler is the Gin handler for GET /ws.
type Handler struct {
	provider identity.Provider
	coord    *coordinator.Coordinator
	pubsub   cache.PubSub
	sm       *SessionManager
	router   *Router
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates a new WebSocket Handler.
// sec.AllowedOrigins controls which WebSocket origins are accepted.
// An empty slice permits all origins (development only).
func NewHandler(
	provider identity.Provider,
	coord *coordinator.Coordinator,
	pubsub cache.PubSub,
	sm *SessionManager,
	router *Router,
	sec config.SecurityConfig,
	logger *zap.Logger,
) *Handler {
	h := &Handler{
		provider: provider,
		coord:    coord,
		pubsub:   pubsub,
		sm:       sm,
		router:   router,
		logger:   logger,
	}
	allowed := sec.AllowedOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true // dev mode: allow all
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowed {
				if o == origin {
					return true
				}
			}
			return false
		},
	}
	return h
}

// ServeWS handles GET /ws?token=<jwt>.
func (h *Handler) ServeWS(c *gin.Context) {
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

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", zap.Error(err))
		return
	}

	sess := NewSession(id.AccountID, id.DisplayName, conn, h.logger)
	h.sm.Register(sess)

	// Bridge the account's notification channel into the session before
	// going online, so nothing emitted by HandleConnect is missed.
	notifyCh, cancel, err := h.pubsub.Subscribe(context.Background(), notify.Channel(id.AccountID))
	if err != nil {
		h.logger.Error("notify subscribe failed", zap.Error(err),
			zap.String("account_id", id.AccountID))
		sess.Close()
		h.sm.Unregister(sess)
		return
	}
	go h.forwardNotifications(sess, notifyCh)

	h.coord.HandleConnect(id.AccountID)
	h.logger.Info("account connected",
		zap.String("account_id", id.AccountID))

	h.readPump(sess, cancel)
}

// forwardNotifications pushes published notification envelopes into the
// session's send channel until the subscription closes.
func (h *Handler) forwardNotifications(s *Session, ch <-chan *cache.Message) {
	for msg := range ch {
		s.SendRaw([]byte(msg.Payload))
	}
}

// readPump reads messages from the WebSocket connection and dispatches them.
func (h *Handler) readPump(s *Session, cancelNotify func()) {
	defer h.handleDisconnect(s, cancelNotify)

	s.SetReadDeadline()
	s.Conn.SetPongHandler(func(string) error {
		s.SetReadDeadline()
		return nil
	})

	for {
		_, raw, err := s.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure,
				websocket.CloseNoStatusReceived) {
				h.logger.Warn("ws unexpected close",
					zap.String("account_id", s.AccountID),
					zap.Error(err))
			}
			return
		}
		// Reset read deadline on any message (heartbeat or otherwise).
		s.SetReadDeadline()
		h.router.Dispatch(s, raw)
	}
}

// handleDisconnect cleans up after the connection closes.
func (h *Handler) handleDisconnect(s *Session, cancelNotify func()) {
	cancelNotify()
	s.Close()
	h.sm.Unregister(s)

	// Only run the social disconnect path if this was still the
	// account's current session; a displaced session must not mark the
	// replacement offline.
	if !h.sm.IsOnline(s.AccountID) {
		h.coord.HandleDisconnect(s.AccountID)
	}
	h.logger.Info("account disconnected",
		zap.String("account_id", s.AccountID))
}
