package plan

import (
	"context"

	"github.com/xraph/metered/id"
)

// Store is the persistence contract for the plan catalog.
// Create must fail when another plan already uses the same name.
type Store interface {
	Create(ctx context.Context, p *Plan) error
	Get(ctx context.Context, planID id.PlanID) (*Plan, error)
	GetByName(ctx context.Context, name string) (*Plan, error)
	List(ctx context.Context, opts ListOpts) ([]*Plan, error)
	Update(ctx context.Context, p *Plan) error
	Archive(ctx context.Context, planID id.PlanID) error
}

// ListOpts controls filtering and pagination for plan listings.
type ListOpts struct {
	Status Status
	Limit  int
	Offset int
}
