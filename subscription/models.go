package subscription

import (
	"time"

	"github.com/xraph/metered/id"
	"github.com/xraph/metered/types"
)

type Status string

const (
	// StatusActive is the single live subscription a user may hold.
	StatusActive Status = "active"
	// StatusExpired means the end date passed; set lazily on read or by
	// the background sweeper.
	StatusExpired Status = "expired"
	// StatusReplaced means a later subscription superseded this one.
	StatusReplaced Status = "replaced"
)

// Subscription ties a user to a plan for a fixed term.
// At most one subscription per user is StatusActive at any time.
type Subscription struct {
	types.Entity
	ID      id.SubscriptionID `json:"id"`
	UserID  id.UserID         `json:"user_id"`
	PlanID  id.PlanID         `json:"plan_id"`
	Status  Status            `json:"status"`
	StartAt time.Time         `json:"start_at"`
	EndAt   time.Time         `json:"end_at"`
}

// Expired reports whether the subscription term has ended as of now.
func (s *Subscription) Expired(now time.Time) bool {
	return now.After(s.EndAt)
}
