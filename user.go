package metered

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xraph/metered/id"
	"github.com/xraph/metered/types"
	"github.com/xraph/metered/user"
)

// RegisterUser creates a new user with a zero credit balance. Username and
// email must be unique; violations fail with ErrDuplicateUsername or
// ErrDuplicateEmail. An empty role defaults to RoleUser.
func (e *Engine) RegisterUser(ctx context.Context, username, email string, role user.Role) (*user.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" {
		return nil, &ValidationError{Field: "username", Message: "must not be empty"}
	}
	if email == "" {
		return nil, &ValidationError{Field: "email", Message: "must not be empty"}
	}
	if role == "" {
		role = user.RoleUser
	}
	if !role.Valid() {
		return nil, &ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}

	u := &user.User{
		Entity:   types.NewEntity(),
		ID:       id.NewUserID(),
		Username: username,
		Email:    email,
		Role:     role,
		Active:   true,
	}

	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	if err := e.store.CreateUser(sctx, u); err != nil {
		return nil, storeErr(err)
	}

	e.logger.Info("user registered",
		slog.String("user_id", u.ID.String()),
		slog.String("username", u.Username),
		slog.String("role", string(u.Role)))
	return u, nil
}

// GetUser fetches a user by id.
func (e *Engine) GetUser(ctx context.Context, userID id.UserID) (*user.User, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	u, err := e.store.GetUser(sctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	return u, nil
}

// GetUserByUsername fetches a user by username.
func (e *Engine) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	u, err := e.store.GetUserByUsername(sctx, username)
	if err != nil {
		return nil, storeErr(err)
	}
	return u, nil
}

// ListUsers returns users in insertion order.
func (e *Engine) ListUsers(ctx context.Context, opts user.ListOpts) ([]*user.User, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	users, err := e.store.ListUsers(sctx, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	return users, nil
}

// UpdateUser changes a user's username, email or role. Zero-value fields
// are left unchanged. Uniqueness is enforced the same way as at
// registration.
func (e *Engine) UpdateUser(ctx context.Context, userID id.UserID, update user.Update) (*user.User, error) {
	unlock := e.locks.Lock(userID.String())
	defer unlock()

	sctx, cancel := e.opCtx(ctx)
	defer cancel()

	u, err := e.store.GetUser(sctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	if update.Username != "" {
		u.Username = strings.TrimSpace(update.Username)
	}
	if update.Email != "" {
		u.Email = strings.TrimSpace(update.Email)
	}
	if update.Role != "" {
		if !update.Role.Valid() {
			return nil, &ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", update.Role)}
		}
		u.Role = update.Role
	}
	u.Touch()
	if err := e.store.UpdateUser(sctx, u); err != nil {
		return nil, storeErr(err)
	}
	return u, nil
}

// DeactivateUser marks a user inactive. Inactive users keep their balance
// and history but fail chat admission.
func (e *Engine) DeactivateUser(ctx context.Context, userID id.UserID) error {
	unlock := e.locks.Lock(userID.String())
	defer unlock()

	sctx, cancel := e.opCtx(ctx)
	defer cancel()

	u, err := e.store.GetUser(sctx, userID)
	if err != nil {
		return storeErr(err)
	}
	if !u.Active {
		return nil
	}
	u.Active = false
	u.Touch()
	if err := e.store.UpdateUser(sctx, u); err != nil {
		return storeErr(err)
	}
	e.logger.Info("user deactivated", slog.String("user_id", u.ID.String()))
	return nil
}

// Authenticate resolves a credential (for example a bearer token) through
// the configured identity provider and loads the matching user. Fails with
// ErrUnauthenticated when no provider is configured, the credential does
// not verify, or the identity names a user that no longer exists.
func (e *Engine) Authenticate(ctx context.Context, credential string) (*user.User, error) {
	if e.identity == nil {
		return nil, fmt.Errorf("%w: no identity provider configured", ErrUnauthenticated)
	}
	ident, err := e.identity.Resolve(ctx, credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	u, err := e.GetUser(ctx, ident.UserID)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: unknown subject", ErrUnauthenticated)
		}
		return nil, err
	}
	return u, nil
}
