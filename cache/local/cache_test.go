package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	t.Helper()
	c, err := NewCache(Config{GCInterval: 50 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestSetGetDel(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	require.NoError(t, c.Del(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 20*time.Millisecond))
	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err = c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetNX(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "lock", "a", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(ctx, "lock", "b", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := c.Get(ctx, "lock")
	require.NoError(t, err)
	assert.Equal(t, "a", got)
}

func TestExpire(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	require.NoError(t, c.Expire(ctx, "k", 20*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, c.Expire(ctx, "missing", time.Second), ErrNotFound)
}

func TestPubSubFanOut(t *testing.T) {
	ps := NewPubSub(8)
	ctx := context.Background()

	ch1, cancel1, err := ps.Subscribe(ctx, "room")
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := ps.Subscribe(ctx, "room")
	require.NoError(t, err)

	require.NoError(t, ps.Publish(ctx, "room", "hello"))
	for _, ch := range []<-chan *LocalMessage{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, "hello", msg.Payload)
			assert.Equal(t, "room", msg.Channel)
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}

	// After cancel the subscriber's channel closes and deliveries stop.
	cancel2()
	_, open := <-ch2
	assert.False(t, open)
	require.NoError(t, ps.Publish(ctx, "room", "again"))
	select {
	case msg := <-ch1:
		assert.Equal(t, "again", msg.Payload)
	case <-time.After(time.Second):
		t.Fatal("message not delivered after cancel of other subscriber")
	}
}

func TestPubSubMultipleChannels(t *testing.T) {
	ps := NewPubSub(8)
	ctx := context.Background()

	ch, cancel, err := ps.Subscribe(ctx, "a", "b")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "a", "1"))
	require.NoError(t, ps.Publish(ctx, "b", "2"))

	got := map[string]string{}
	for i := 0; i < 2; i++ {
		select {
		case msg := <-ch:
			got[msg.Channel] = msg.Payload
		case <-time.After(time.Second):
			t.Fatal("missing message")
		}
	}
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}
