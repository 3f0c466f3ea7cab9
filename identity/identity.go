// Package identity resolves opaque caller credentials to a user identity.
//
// The engine never inspects credential material itself; it consumes a
// Provider and receives back a user id and role, or an authentication
// failure.
package identity

import (
	"context"
	"errors"

	"github.com/xraph/metered/id"
	"github.com/xraph/metered/user"
)

// ErrUnauthenticated is returned when a credential cannot be resolved.
var ErrUnauthenticated = errors.New("identity: unauthenticated")

// Identity is a resolved caller.
type Identity struct {
	UserID id.UserID
	Role   user.Role
}

// Provider maps a caller credential to an Identity.
type Provider interface {
	Resolve(ctx context.Context, credential string) (Identity, error)
}

// ProviderFunc adapts a plain function to a Provider.
type ProviderFunc func(ctx context.Context, credential string) (Identity, error)

// Resolve implements Provider.
func (f ProviderFunc) Resolve(ctx context.Context, credential string) (Identity, error) {
	return f(ctx, credential)
}

// Static is a fixed credential→identity table. Intended for tests and
// single-tenant tooling.
type Static map[string]Identity

// Resolve implements Provider.
func (s Static) Resolve(_ context.Context, credential string) (Identity, error) {
	ident, ok := s[credential]
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return ident, nil
}
