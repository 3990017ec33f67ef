package ws

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/emberforge/socialcore/social/coordinator"
	"github.com/emberforge/socialcore/social/presence"
)

// SocialHandlers implements the WS operations a connected client uses
// for lightweight state changes; anything heavier goes over REST.
type SocialHandlers struct {
	coord  *coordinator.Coordinator
	logger *zap.Logger
}

// NewSocialHandlers creates the WS social handlers.
func NewSocialHandlers(coord *coordinator.Coordinator, logger *zap.Logger) *SocialHandlers {
	return &SocialHandlers{coord: coord, logger: logger}
}

// RegisterHandlers registers all social ops on the router.
func (h *SocialHandlers) RegisterHandlers(r *Router) {
	r.On("ping", h.HandlePing)
	r.On("presence_set", h.HandlePresenceSet)
	r.On("presence_subscribe", h.HandlePresenceSubscribe)
	r.On("presence_unsubscribe", h.HandlePresenceUnsubscribe)
	r.On("party_ready", h.HandlePartyReady)
}

// HandlePing answers a client heartbeat.
func (h *SocialHandlers) HandlePing(_ context.Context, s *Session, _ json.RawMessage) error {
	s.Send(&Packet{Type: "pong"})
	return nil
}

type presenceSetPayload struct {
	Status     string         `json:"status"`
	Activity   string         `json:"activity"`
	Properties map[string]any `json:"properties"`
}

// HandlePresenceSet updates the caller's presence record.
func (h *SocialHandlers) HandlePresenceSet(_ context.Context, s *Session, payload json.RawMessage) error {
	var req presenceSetPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	_, err := h.coord.Presence.SetPresence(s.AccountID,
		presence.Status(req.Status), req.Activity, req.Properties)
	return err
}

type presenceSubscribePayload struct {
	Targets []string `json:"targets"`
	All     bool     `json:"all"`
}

// HandlePresenceSubscribe adds the caller as a watcher of the targets.
func (h *SocialHandlers) HandlePresenceSubscribe(_ context.Context, s *Session, payload json.RawMessage) error {
	var req presenceSubscribePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	h.coord.Presence.Subscribe(s.AccountID, req.Targets...)
	return nil
}

// HandlePresenceUnsubscribe removes the caller's watch on the targets,
// or all of them when the all flag is set.
func (h *SocialHandlers) HandlePresenceUnsubscribe(_ context.Context, s *Session, payload json.RawMessage) error {
	var req presenceSubscribePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	if req.All {
		h.coord.Presence.UnsubscribeAll(s.AccountID)
		return nil
	}
	h.coord.Presence.Unsubscribe(s.AccountID, req.Targets...)
	return nil
}

type partyReadyPayload struct {
	PartyID string `json:"party_id"`
	Ready   bool   `json:"ready"`
}

// HandlePartyReady flips the caller's ready flag in their party.
func (h *SocialHandlers) HandlePartyReady(_ context.Context, s *Session, payload json.RawMessage) error {
	var req partyReadyPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return err
	}
	return h.coord.Parties.UpdateReadyState(req.PartyID, s.AccountID, req.Ready)
}
