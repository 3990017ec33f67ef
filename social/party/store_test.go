package party

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberforge/socialcore/social"
	"github.com/emberforge/socialcore/testutil"
)

func TestGormStoreRoundTrip(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	store := NewGormStore(gdb, testutil.Logger(), 16)

	p := &Party{
		ID:     "p-1",
		Config: Config{Privacy: PrivacyPrivate, MaxSize: 4},
		Members: []Member{{
			AccountID:   "alice",
			DisplayName: "Alice",
			Role:        RoleCaptain,
			JoinedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}},
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	store.SaveParty(p)

	// A later snapshot of the same party wins.
	p2 := p.clone()
	p2.Members[0].Ready = true
	store.SaveParty(p2)
	store.Stop()

	got, err := store.LoadParty(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, got.Members, 1)
	assert.True(t, got.Members[0].Ready)
	assert.Equal(t, RoleCaptain, got.Members[0].Role)
}

func TestGormStoreDelete(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	store := NewGormStore(gdb, testutil.Logger(), 16)

	p := &Party{ID: "p-2", Config: Config{MaxSize: 4}}
	store.SaveParty(p)
	store.DeleteParty("p-2")
	store.Stop()

	_, err := store.LoadParty(context.Background(), "p-2")
	assert.ErrorIs(t, err, social.ErrNotFound)
}

func TestGormStoreLoadMissing(t *testing.T) {
	gdb := testutil.SetupTestDB(t)
	store := NewGormStore(gdb, testutil.Logger(), 16)
	defer store.Stop()

	_, err := store.LoadParty(context.Background(), "nope")
	assert.ErrorIs(t, err, social.ErrNotFound)
}
