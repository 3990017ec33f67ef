package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberforge/socialcore/cache/local"
)

func TestGenerateAndParseToken(t *testing.T) {
	token, err := GenerateToken("acc-1", "Alice", "secret", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.AccountID)
	assert.Equal(t, "Alice", claims.DisplayName)

	_, err = ParseToken(token, "other-secret")
	assert.Error(t, err)
}

func TestTokensAreUnique(t *testing.T) {
	a, err := GenerateToken("acc-1", "Alice", "secret", time.Hour)
	require.NoError(t, err)
	b, err := GenerateToken("acc-1", "Alice", "secret", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestExpiredTokenRejected(t *testing.T) {
	token, err := GenerateToken("acc-1", "Alice", "secret", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, "secret")
	assert.Error(t, err)
}

func TestResolveAccountWithoutSessions(t *testing.T) {
	p := NewJWTProvider("secret", nil)
	token, err := GenerateToken("acc-1", "Alice", "secret", time.Hour)
	require.NoError(t, err)

	id, err := p.ResolveAccount(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id.AccountID)
	assert.Equal(t, "Alice", id.DisplayName)

	_, err = p.ResolveAccount(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrInvalidCredential)
}

func TestResolveAccountChecksSession(t *testing.T) {
	kv, err := local.NewCache(local.Config{})
	require.NoError(t, err)
	defer kv.Close()

	p := NewJWTProvider("secret", kv)
	token, err := GenerateToken("acc-1", "Alice", "secret", time.Hour)
	require.NoError(t, err)

	// A valid JWT without a live session entry is a revoked credential.
	_, err = p.ResolveAccount(context.Background(), token)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	require.NoError(t, kv.Set(context.Background(), SessionKey(token), "acc-1", time.Hour))
	id, err := p.ResolveAccount(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", id.AccountID)
}
