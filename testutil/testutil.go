// Package testutil provides shared fixtures for package tests: an
// in-memory database, a recording notification transport, and a
// controllable clock for TTL behaviour.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/emberforge/socialcore/db/sqlite"
	"github.com/emberforge/socialcore/model"
)

// SetupTestDB opens a fresh in-memory database with all tables migrated.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := sqlite.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(gdb))
	return gdb
}

// Logger returns a no-op logger for constructors that require one.
func Logger() *zap.Logger {
	return zap.NewNop()
}

// Delivery is one recorded transport event.
type Delivery struct {
	AccountID string
	EventType string
	Payload   any
}

// CaptureTransport records every delivered event so tests can assert on
// fan-out without a real client connection.
type CaptureTransport struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func NewCaptureTransport() *CaptureTransport {
	return &CaptureTransport{}
}

func (c *CaptureTransport) Deliver(accountID, eventType string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries = append(c.deliveries, Delivery{AccountID: accountID, EventType: eventType, Payload: payload})
}

// Deliveries returns a copy of everything recorded so far.
func (c *CaptureTransport) Deliveries() []Delivery {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Delivery, len(c.deliveries))
	copy(out, c.deliveries)
	return out
}

// For returns the recorded events addressed to one account.
func (c *CaptureTransport) For(accountID string) []Delivery {
	var out []Delivery
	for _, d := range c.Deliveries() {
		if d.AccountID == accountID {
			out = append(out, d)
		}
	}
	return out
}

// OfType returns the recorded events with the given type.
func (c *CaptureTransport) OfType(eventType string) []Delivery {
	var out []Delivery
	for _, d := range c.Deliveries() {
		if d.EventType == eventType {
			out = append(out, d)
		}
	}
	return out
}

// Reset discards everything recorded so far.
func (c *CaptureTransport) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deliveries = nil
}

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
