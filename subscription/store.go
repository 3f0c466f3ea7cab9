package subscription

import (
	"context"
	"time"

	"github.com/xraph/metered/id"
)

// Store is the persistence contract for subscriptions.
type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	GetActive(ctx context.Context, userID id.UserID) (*Subscription, error)
	List(ctx context.Context, userID id.UserID, opts ListOpts) ([]*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
	// ListOverdue returns active subscriptions whose end date precedes asOf,
	// up to limit. Used by the expiry sweeper.
	ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]*Subscription, error)
}

// ListOpts controls filtering and pagination for subscription listings.
// Results are in insertion order, ascending by creation time.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
