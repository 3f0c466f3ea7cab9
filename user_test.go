package metered_test

import (
	"context"
	"errors"
	"testing"

	metered "github.com/xraph/metered"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/identity"
	"github.com/xraph/metered/user"
)

func TestRegisterUser(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	u, err := e.RegisterUser(ctx, "alice", "alice@example.com", "")
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if u.Role != user.RoleUser {
		t.Errorf("empty role = %s, want default %s", u.Role, user.RoleUser)
	}
	if !u.Active {
		t.Error("new user should be active")
	}
	if !u.Balance.IsZero() {
		t.Errorf("new user balance = %s, want 0", u.Balance)
	}

	got, err := e.GetUserByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("lookup returned %s, want %s", got.ID, u.ID)
	}
}

func TestRegisterUserValidation(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		email    string
		role     user.Role
	}{
		{"empty username", "", "a@example.com", user.RoleUser},
		{"empty email", "alice", "", user.RoleUser},
		{"unknown role", "alice", "a@example.com", "superuser"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.RegisterUser(ctx, tt.username, tt.email, tt.role)
			var verr *metered.ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("RegisterUser = %v, want ValidationError", err)
			}
		})
	}
}

func TestRegisterUserDuplicates(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	registerUser(t, e, "alice", user.RoleUser)

	_, err := e.RegisterUser(ctx, "alice", "other@example.com", user.RoleUser)
	if !errors.Is(err, metered.ErrDuplicateUsername) {
		t.Errorf("duplicate username = %v, want ErrDuplicateUsername", err)
	}
	if !metered.IsConflict(err) {
		t.Error("duplicate username should classify as conflict")
	}

	_, err = e.RegisterUser(ctx, "alice2", "alice@example.com", user.RoleUser)
	if !errors.Is(err, metered.ErrDuplicateEmail) {
		t.Errorf("duplicate email = %v, want ErrDuplicateEmail", err)
	}
}

func TestUpdateUserPartial(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)

	got, err := e.UpdateUser(ctx, u.ID, user.Update{Role: user.RoleVIP})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got.Role != user.RoleVIP {
		t.Errorf("Role = %s, want vip", got.Role)
	}
	if got.Username != "alice" || got.Email != "alice@example.com" {
		t.Errorf("zero-value fields changed: %s / %s", got.Username, got.Email)
	}

	if _, err := e.UpdateUser(ctx, u.ID, user.Update{Role: "wizard"}); err == nil {
		t.Error("unknown role should fail")
	}
}

func TestDeactivateUserIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)

	if err := e.DeactivateUser(ctx, u.ID); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}
	if err := e.DeactivateUser(ctx, u.ID); err != nil {
		t.Fatalf("second DeactivateUser: %v", err)
	}

	got, err := e.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Active {
		t.Error("user still active")
	}
}

func TestGetUserNotFound(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.GetUser(context.Background(), id.NewUserID())
	if !metered.IsNotFound(err) {
		t.Errorf("GetUser = %v, want not-found", err)
	}
}

func TestAuthenticateStatic(t *testing.T) {
	store := identity.Static{}
	e := newTestEngine(t, metered.WithIdentity(store))
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)
	store["token-alice"] = identity.Identity{UserID: u.ID, Role: u.Role}

	got, err := e.Authenticate(ctx, "token-alice")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Errorf("authenticated as %s, want %s", got.ID, u.ID)
	}

	if _, err := e.Authenticate(ctx, "bogus"); !errors.Is(err, metered.ErrUnauthenticated) {
		t.Errorf("bad credential = %v, want ErrUnauthenticated", err)
	}
}

func TestAuthenticateJWT(t *testing.T) {
	secret := []byte("test-secret")
	provider := identity.NewJWT(secret, identity.WithIssuer("gateway"))
	e := newTestEngine(t, metered.WithIdentity(provider))
	ctx := context.Background()
	u := registerUser(t, e, "alice", user.RoleUser)

	token, err := provider.Issue(u.ID, u.Role)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	got, err := e.Authenticate(ctx, token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.Username != "alice" {
		t.Errorf("authenticated as %s, want alice", got.Username)
	}

	// Token for a subject the store has never seen.
	ghost, err := provider.Issue(id.NewUserID(), user.RoleUser)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := e.Authenticate(ctx, ghost); !errors.Is(err, metered.ErrUnauthenticated) {
		t.Errorf("ghost subject = %v, want ErrUnauthenticated", err)
	}
}

func TestAuthenticateWithoutProvider(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.Authenticate(context.Background(), "anything"); !errors.Is(err, metered.ErrUnauthenticated) {
		t.Errorf("Authenticate = %v, want ErrUnauthenticated", err)
	}
}
