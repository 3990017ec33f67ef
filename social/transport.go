package social

// Transport delivers addressed domain events to connected clients.
// Delivery is fire-and-forget: the core never blocks waiting for an
// acknowledgement, and a failed delivery is the transport's problem.
// Directories call Deliver only after their own lock is released.
type Transport interface {
	Deliver(accountID, eventType string, payload any)
}

// NopTransport discards every event. Useful as a default and in tests
// that do not assert on notifications.
type NopTransport struct{}

func (NopTransport) Deliver(string, string, any) {}

// event is a pending delivery collected while a directory lock is held.
type event struct {
	accountID string
	eventType string
	payload   any
}

// EventBuffer accumulates events during a mutation so they can be
// flushed after the directory lock is released.
type EventBuffer struct {
	events []event
}

// Add queues one addressed event.
func (b *EventBuffer) Add(accountID, eventType string, payload any) {
	b.events = append(b.events, event{accountID: accountID, eventType: eventType, payload: payload})
}

// Flush delivers all queued events in order and clears the buffer.
func (b *EventBuffer) Flush(t Transport) {
	if t == nil {
		return
	}
	for _, e := range b.events {
		t.Deliver(e.accountID, e.eventType, e.payload)
	}
	b.events = nil
}
