package identity

import "context"

// Identity is the resolved principal behind a bearer credential.
type Identity struct {
	AccountID   string
	DisplayName string
}

// Provider resolves a bearer credential to a stable account identifier
// and display name. The social directories trust the resolved id
// completely and never re-validate its format or lifetime.
type Provider interface {
	ResolveAccount(ctx context.Context, credential string) (Identity, error)
}
