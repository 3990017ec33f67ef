package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestSession() *Session {
	// No connection: Dispatch never touches Conn, and Send drops safely
	// once the session is closed.
	return &Session{
		AccountID: "acc-1",
		SendChan:  make(chan []byte, 8),
		Done:      make(chan struct{}),
		logger:    zap.NewNop(),
	}
}

func TestDispatchRoutesByType(t *testing.T) {
	r := NewRouter(zap.NewNop())
	s := newTestSession()

	var calls int64
	r.On("hello", func(_ context.Context, _ *Session, payload json.RawMessage) error {
		atomic.AddInt64(&calls, 1)
		var body map[string]string
		require.NoError(t, json.Unmarshal(payload, &body))
		assert.Equal(t, "world", body["name"])
		return nil
	})

	r.Dispatch(s, []byte(`{"type":"hello","payload":{"name":"world"}}`))
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))

	// Unknown types and malformed packets are dropped quietly.
	r.Dispatch(s, []byte(`{"type":"unknown"}`))
	r.Dispatch(s, []byte(`not json`))
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestDispatchSeqReplayRejected(t *testing.T) {
	r := NewRouter(zap.NewNop())
	s := newTestSession()

	var calls int64
	r.On("op", func(_ context.Context, _ *Session, _ json.RawMessage) error {
		atomic.AddInt64(&calls, 1)
		return nil
	})

	r.Dispatch(s, []byte(`{"seq":5,"type":"op"}`))
	r.Dispatch(s, []byte(`{"seq":5,"type":"op"}`))
	r.Dispatch(s, []byte(`{"seq":4,"type":"op"}`))
	r.Dispatch(s, []byte(`{"seq":6,"type":"op"}`))
	assert.Equal(t, int64(2), atomic.LoadInt64(&calls))

	// Seq 0 means no tracking and always dispatches.
	r.Dispatch(s, []byte(`{"type":"op"}`))
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestDispatchHandlerErrorSendsErrorPacket(t *testing.T) {
	r := NewRouter(zap.NewNop())
	s := newTestSession()

	r.On("bad", func(_ context.Context, _ *Session, _ json.RawMessage) error {
		return assert.AnError
	})
	r.Dispatch(s, []byte(`{"type":"bad"}`))

	select {
	case data := <-s.SendChan:
		var pkt Packet
		require.NoError(t, json.Unmarshal(data, &pkt))
		assert.Equal(t, "error", pkt.Type)
	default:
		t.Fatal("expected an error packet")
	}
}

func TestSessionManagerDisplacesDuplicate(t *testing.T) {
	m := NewSessionManager(zap.NewNop())

	first := newTestSession()
	m.Register(first)
	assert.True(t, m.IsOnline("acc-1"))
	assert.Equal(t, 1, m.Count())

	second := newTestSession()
	m.Register(second)
	assert.True(t, first.IsClosed())
	assert.Equal(t, 1, m.Count())

	// The displaced session's unregister must not evict the new one.
	m.Unregister(first)
	got, ok := m.Get("acc-1")
	require.True(t, ok)
	assert.Same(t, second, got)

	m.Unregister(second)
	assert.False(t, m.IsOnline("acc-1"))
}

func TestSessionSendAfterClose(t *testing.T) {
	s := newTestSession()
	s.Close()
	// Safe no-ops.
	s.Send(&Packet{Type: "pong"})
	s.SendRaw([]byte("x"))
	s.Close()
	assert.True(t, s.IsClosed())
	assert.Empty(t, s.SendChan)
}
