package chat

import (
	"context"
	"time"

	"github.com/xraph/metered/id"
)

// Store is the persistence contract for chat usage records.
type Store interface {
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, chatID id.ChatID) (*Record, error)
	List(ctx context.Context, userID id.UserID, opts ListOpts) ([]*Record, error)
	// CountSince returns the number of records for the user stamped at or
	// after since. Drives the rolling-hour chat quota.
	CountSince(ctx context.Context, userID id.UserID, since time.Time) (int64, error)
	// SumTokensSince returns input+output tokens over records stamped at or
	// after since. Drives the calendar-month token quota.
	SumTokensSince(ctx context.Context, userID id.UserID, since time.Time) (int64, error)
}

// ListOpts controls pagination for chat listings. Results are in insertion
// order, ascending by creation time.
type ListOpts struct {
	Limit  int
	Offset int
}
