package metered

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xraph/metered/id"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/types"
)

// CreatePlan adds a plan to the catalog. The name must be unique among all
// plans; a taken name fails with ErrDuplicatePlan. Price may be zero for
// free tiers but never negative.
func (e *Engine) CreatePlan(ctx context.Context, p *plan.Plan) error {
	if p == nil {
		return fmt.Errorf("%w: nil plan", ErrInvalidInput)
	}
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return &ValidationError{Field: "name", Message: "must not be empty"}
	}
	if p.Price < 0 {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	if p.DurationDays <= 0 {
		return &ValidationError{Field: "duration_days", Message: "must be positive"}
	}
	if p.MaxChatsPerHour < 0 || p.MaxTokensPerMonth < 0 {
		return &ValidationError{Field: "limits", Message: "must not be negative"}
	}

	p.Entity = types.NewEntity()
	p.ID = id.NewPlanID()
	p.Status = plan.StatusActive

	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	if err := e.store.CreatePlan(sctx, p); err != nil {
		return storeErr(err)
	}

	e.plugins.EmitPlanCreated(ctx, p)
	e.logger.Info("plan created",
		slog.String("plan_id", p.ID.String()),
		slog.String("name", p.Name),
		slog.String("price", p.Price.String()))
	return nil
}

// GetPlan fetches a plan by id.
func (e *Engine) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	p, err := e.store.GetPlan(sctx, planID)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// GetPlanByName fetches a plan by its unique name.
func (e *Engine) GetPlanByName(ctx context.Context, name string) (*plan.Plan, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	p, err := e.store.GetPlanByName(sctx, name)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// Plans lists the catalog, optionally filtered by status.
func (e *Engine) Plans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	plans, err := e.store.ListPlans(sctx, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	return plans, nil
}

// UpdatePlan persists changes to a plan's description, price or limits.
// Limits are read live by admission checks, so changes apply to existing
// subscribers immediately.
func (e *Engine) UpdatePlan(ctx context.Context, p *plan.Plan) error {
	if p == nil {
		return fmt.Errorf("%w: nil plan", ErrInvalidInput)
	}
	if p.Price < 0 {
		return &ValidationError{Field: "price", Message: "must not be negative"}
	}
	p.Touch()

	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	if err := e.store.UpdatePlan(sctx, p); err != nil {
		return storeErr(err)
	}
	return nil
}

// ArchivePlan retires a plan from sale. Existing subscriptions on the plan
// run to their end date; new Subscribe calls fail with ErrPlanArchived.
func (e *Engine) ArchivePlan(ctx context.Context, planID id.PlanID) error {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	if err := e.store.ArchivePlan(sctx, planID); err != nil {
		return storeErr(err)
	}
	e.plugins.EmitPlanArchived(ctx, planID)
	e.logger.Info("plan archived", slog.String("plan_id", planID.String()))
	return nil
}
