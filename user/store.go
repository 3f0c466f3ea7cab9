package user

import (
	"context"

	"github.com/xraph/metered/id"
)

// Store is the persistence contract for users.
type Store interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, userID id.UserID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, opts ListOpts) ([]*User, error)
	Update(ctx context.Context, u *User) error
	Delete(ctx context.Context, userID id.UserID) error
}

// ListOpts controls pagination for user listings.
type ListOpts struct {
	Limit  int
	Offset int
}
