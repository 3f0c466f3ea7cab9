package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/metered/id"
	"github.com/xraph/metered/user"
)

func TestJWTIssueResolve(t *testing.T) {
	p := NewJWT([]byte("test-secret"), WithIssuer("metered-test"))
	userID := id.NewUserID()

	token, err := p.Issue(userID, user.RoleVIP)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	ident, err := p.Resolve(context.Background(), token)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if ident.UserID.String() != userID.String() {
		t.Errorf("UserID: got %s, want %s", ident.UserID, userID)
	}
	if ident.Role != user.RoleVIP {
		t.Errorf("Role: got %s, want %s", ident.Role, user.RoleVIP)
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	issuer := NewJWT([]byte("secret-a"))
	verifier := NewJWT([]byte("secret-b"))

	token, err := issuer.Issue(id.NewUserID(), user.RoleUser)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := verifier.Resolve(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestJWTRejectsExpired(t *testing.T) {
	p := NewJWT([]byte("test-secret"), WithLifetime(-time.Minute))

	token, err := p.Issue(id.NewUserID(), user.RoleUser)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := p.Resolve(context.Background(), token); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestJWTRejectsGarbage(t *testing.T) {
	p := NewJWT([]byte("test-secret"))

	for _, cred := range []string{"", "not.a.token", "bearer xyz"} {
		if _, err := p.Resolve(context.Background(), cred); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("Resolve(%q): expected ErrUnauthenticated, got %v", cred, err)
		}
	}
}

func TestJWTUnknownRoleDefaultsToUser(t *testing.T) {
	p := NewJWT([]byte("test-secret"))
	userID := id.NewUserID()

	// Issue with an invalid role string by going through the claims path.
	token, err := p.Issue(userID, user.Role("superuser"))
	if err != nil {
		t.Fatal(err)
	}

	ident, err := p.Resolve(context.Background(), token)
	if err != nil {
		t.Fatal(err)
	}
	if ident.Role != user.RoleUser {
		t.Errorf("unknown role should default to %s, got %s", user.RoleUser, ident.Role)
	}
}

func TestStaticProvider(t *testing.T) {
	userID := id.NewUserID()
	p := Static{"key-1": {UserID: userID, Role: user.RoleAdmin}}

	ident, err := p.Resolve(context.Background(), "key-1")
	if err != nil {
		t.Fatal(err)
	}
	if ident.Role != user.RoleAdmin {
		t.Errorf("Role: got %s", ident.Role)
	}

	if _, err := p.Resolve(context.Background(), "key-2"); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}
