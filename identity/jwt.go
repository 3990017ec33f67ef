package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/emberforge/socialcore/cache"
)

// ErrInvalidCredential is returned for malformed, forged, or revoked tokens.
var ErrInvalidCredential = errors.New("identity: invalid credential")

// Claims is the JWT payload.
type Claims struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// JWTProvider resolves HS256 bearer tokens. If a session cache is set,
// the token must also have a live session entry (logout revokes it).
type JWTProvider struct {
	secret   string
	sessions cache.Cache
}

// NewJWTProvider creates a JWTProvider. sessions may be nil to skip the
// revocation check (tests).
func NewJWTProvider(secret string, sessions cache.Cache) *JWTProvider {
	return &JWTProvider{secret: secret, sessions: sessions}
}

// ResolveAccount implements Provider.
func (p *JWTProvider) ResolveAccount(ctx context.Context, credential string) (Identity, error) {
	claims, err := ParseToken(credential, p.secret)
	if err != nil {
		return Identity{}, ErrInvalidCredential
	}
	if p.sessions != nil {
		cacheCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		exists, err := p.sessions.Exists(cacheCtx, SessionKey(credential))
		if err != nil || !exists {
			return Identity{}, ErrInvalidCredential
		}
	}
	return Identity{AccountID: claims.AccountID, DisplayName: claims.DisplayName}, nil
}

// SessionKey is the cache key under which a live token is recorded.
func SessionKey(token string) string {
	return "session:" + token
}

// GenerateToken signs a JWT for the given account with the given secret
// and TTL. Each token carries a unique id so two tokens minted in the
// same second are still distinct strings (session entries are keyed by
// the token itself).
func GenerateToken(accountID, displayName, secret string, ttl time.Duration) (string, error) {
	claims := &Claims{
		AccountID:   accountID,
		DisplayName: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken validates a JWT string and returns the claims.
func ParseToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
