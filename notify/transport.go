// Package notify carries addressed domain events from the directories
// to connected client sessions over the pub/sub fabric. Each account
// has its own channel; whatever session layer the account is connected
// through (WebSocket, SSE) subscribes to that channel and forwards.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/emberforge/socialcore/cache"
)

const channelPrefix = "notify:"

// Channel returns the pub/sub channel name for one account.
func Channel(accountID string) string {
	return channelPrefix + accountID
}

// Envelope is the wire form of one delivered event.
type Envelope struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// PubSubTransport publishes events to per-account channels. Delivery is
// fire-and-forget: publish failures are logged and dropped, never
// surfaced to the directory that emitted the event.
type PubSubTransport struct {
	ps     cache.PubSub
	logger *zap.Logger
	now    func() time.Time
}

func NewPubSubTransport(ps cache.PubSub, logger *zap.Logger) *PubSubTransport {
	return &PubSubTransport{ps: ps, logger: logger, now: time.Now}
}

func (t *PubSubTransport) Deliver(accountID, eventType string, payload any) {
	data, err := json.Marshal(Envelope{
		Type:      eventType,
		Payload:   payload,
		Timestamp: t.now().UTC(),
	})
	if err != nil {
		t.logger.Error("marshal notification", zap.Error(err),
			zap.String("event_type", eventType))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := t.ps.Publish(ctx, Channel(accountID), string(data)); err != nil {
		t.logger.Warn("publish notification", zap.Error(err),
			zap.String("account_id", accountID),
			zap.String("event_type", eventType))
	}
}
