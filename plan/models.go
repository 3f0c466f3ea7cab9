package plan

import (
	"time"

	"github.com/xraph/metered/id"
	"github.com/xraph/metered/types"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Plan is a subscription plan definition: what it costs, how long it runs,
// and what quotas it grants. Names are unique across the catalog.
//
// A plan referenced by an active subscription is conceptually immutable;
// the catalog does not enforce this on behalf of callers.
type Plan struct {
	types.Entity
	ID                id.PlanID     `json:"id"`
	Name              string        `json:"name"`
	Description       string        `json:"description"`
	Price             types.Credits `json:"price"`
	DurationDays      int           `json:"duration_days"`
	MaxChatsPerHour   int64         `json:"max_chats_per_hour"`
	MaxTokensPerMonth int64         `json:"max_tokens_per_month"`
	VIPModels         bool          `json:"vip_models"`
	Status            Status        `json:"status"`
}

// Duration returns the subscription term as a time.Duration.
func (p *Plan) Duration() time.Duration {
	return time.Duration(p.DurationDays) * 24 * time.Hour
}
