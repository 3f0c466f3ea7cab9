package metered

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/subscription"
	"github.com/xraph/metered/types"
)

// Usage is a snapshot of a user's consumption against their plan limits.
// Plan is nil when the user has no active subscription.
type Usage struct {
	Plan            *plan.Plan    `json:"plan,omitempty"`
	ChatsThisHour   int64         `json:"chats_this_hour"`
	TokensThisMonth int64         `json:"tokens_this_month"`
	PeriodEnd       time.Time     `json:"period_end,omitzero"`
	Balance         types.Credits `json:"balance"`
}

// Subscribe purchases the given plan for the user. The plan price is
// debited up front; any prior active subscription is replaced and the new
// one runs from now for the plan's duration. The operation is atomic per
// user: if any step fails, the balance and the prior subscription are
// restored.
func (e *Engine) Subscribe(ctx context.Context, userID id.UserID, planID id.PlanID) (*subscription.Subscription, error) {
	sctx, cancel := e.opCtx(ctx)
	p, err := e.store.GetPlan(sctx, planID)
	cancel()
	if err != nil {
		return nil, storeErr(err)
	}
	if p.Status == plan.StatusArchived {
		return nil, fmt.Errorf("%w: %s", ErrPlanArchived, p.Name)
	}

	unlock := e.locks.Lock(userID.String())
	defer unlock()

	now := time.Now().UTC()
	prev, err := e.activeSubscriptionLocked(ctx, userID, now)
	if err != nil {
		return nil, err
	}

	// Charge first. A short balance fails here before any subscription
	// state has moved.
	var txn *ledger.Transaction
	if p.Price > 0 {
		txn, err = e.debitLocked(ctx, userID, p.Price, ledger.KindSubscription, "subscription: "+p.Name)
		if err != nil {
			return nil, err
		}
	}

	if prev != nil {
		prev.Status = subscription.StatusReplaced
		prev.Touch()
		sctx, cancel := e.opCtx(ctx)
		err := e.store.UpdateSubscription(sctx, prev)
		cancel()
		if err != nil {
			if txn != nil {
				e.refundLocked(ctx, userID, p.Price, "subscription: "+p.Name)
			}
			return nil, storeErr(err)
		}
	}

	sub := &subscription.Subscription{
		Entity:  types.NewEntity(),
		ID:      id.NewSubscriptionID(),
		UserID:  userID,
		PlanID:  p.ID,
		Status:  subscription.StatusActive,
		StartAt: now,
		EndAt:   now.Add(p.Duration()),
	}
	sctx, cancel = e.opCtx(ctx)
	err = e.store.CreateSubscription(sctx, sub)
	cancel()
	if err != nil {
		// Put the prior subscription back and reverse the charge.
		if prev != nil {
			prev.Status = subscription.StatusActive
			prev.Touch()
			rctx, rcancel := e.opCtx(ctx)
			if rbErr := e.store.UpdateSubscription(rctx, prev); rbErr != nil {
				e.logger.Error("subscription rollback failed",
					slog.String("subscription_id", prev.ID.String()),
					slog.Any("error", rbErr))
			}
			rcancel()
		}
		if txn != nil {
			e.refundLocked(ctx, userID, p.Price, "subscription: "+p.Name)
		}
		return nil, storeErr(err)
	}

	if txn != nil {
		e.plugins.EmitDebited(ctx, txn)
	}
	e.plugins.EmitSubscriptionActivated(ctx, sub)
	e.logger.Info("subscription activated",
		slog.String("user_id", userID.String()),
		slog.String("plan", p.Name),
		slog.Time("end_at", sub.EndAt))
	return sub, nil
}

// CurrentSubscription returns the user's active subscription. A
// subscription found past its end date is marked expired on the spot and
// the call fails with ErrNoActiveSubscription.
func (e *Engine) CurrentSubscription(ctx context.Context, userID id.UserID) (*subscription.Subscription, error) {
	unlock := e.locks.Lock(userID.String())
	defer unlock()

	sub, err := e.activeSubscriptionLocked(ctx, userID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrNoActiveSubscription
	}
	return sub, nil
}

// IsSubscriptionActive reports whether the user currently holds an
// unexpired subscription.
func (e *Engine) IsSubscriptionActive(ctx context.Context, userID id.UserID) (bool, error) {
	_, err := e.CurrentSubscription(ctx, userID)
	if errors.Is(err, ErrNoActiveSubscription) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Subscriptions returns the user's subscription history, newest last.
func (e *Engine) Subscriptions(ctx context.Context, userID id.UserID, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	subs, err := e.store.ListSubscriptions(sctx, userID, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	return subs, nil
}

// CurrentUsage reports the user's consumption against their plan limits:
// chats in the rolling last hour and tokens since the start of the
// calendar month (UTC). Without an active subscription the counters are
// zero and Plan is nil.
func (e *Engine) CurrentUsage(ctx context.Context, userID id.UserID) (*Usage, error) {
	unlock := e.locks.Lock(userID.String())
	defer unlock()
	return e.usageLocked(ctx, userID, time.Now().UTC())
}

func (e *Engine) usageLocked(ctx context.Context, userID id.UserID, now time.Time) (*Usage, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()

	u, err := e.store.GetUser(sctx, userID)
	if err != nil {
		return nil, storeErr(err)
	}
	usage := &Usage{Balance: u.Balance}

	sub, err := e.activeSubscriptionLocked(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return usage, nil
	}

	p, err := e.store.GetPlan(sctx, sub.PlanID)
	if err != nil {
		return nil, storeErr(err)
	}
	usage.Plan = p
	usage.PeriodEnd = sub.EndAt

	chats, err := e.store.CountChatsSince(sctx, userID, now.Add(-time.Hour))
	if err != nil {
		return nil, storeErr(err)
	}
	usage.ChatsThisHour = chats

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	tokens, err := e.store.SumChatTokensSince(sctx, userID, monthStart)
	if err != nil {
		return nil, storeErr(err)
	}
	usage.TokensThisMonth = tokens
	return usage, nil
}

// CanAccessModel reports whether the user may use the named model. Admins
// may use anything. Everyone else needs an active subscription; VIP-flagged
// models additionally require the plan to include them, and admin-only
// models are closed to non-admins outright.
func (e *Engine) CanAccessModel(ctx context.Context, userID id.UserID, model string) (bool, error) {
	unlock := e.locks.Lock(userID.String())
	defer unlock()
	return e.canAccessModelLocked(ctx, userID, model, time.Now().UTC())
}

func (e *Engine) canAccessModelLocked(ctx context.Context, userID id.UserID, model string, now time.Time) (bool, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()

	u, err := e.store.GetUser(sctx, userID)
	if err != nil {
		return false, storeErr(err)
	}
	if u.IsAdmin() {
		return true, nil
	}

	m, known := e.pricing.Lookup(model)
	if known && m.AdminOnly {
		return false, nil
	}

	sub, err := e.activeSubscriptionLocked(ctx, userID, now)
	if err != nil {
		return false, err
	}
	if sub == nil {
		return false, nil
	}
	if known && m.RequiresVIP {
		p, err := e.store.GetPlan(sctx, sub.PlanID)
		if err != nil {
			return false, storeErr(err)
		}
		return p.VIPModels, nil
	}
	return true, nil
}

// CanSendChat reports whether the user is under both plan limits. It is
// false without an active subscription, for any role. The quota boundary
// is inclusive: a user at exactly the limit is over it.
func (e *Engine) CanSendChat(ctx context.Context, userID id.UserID) (bool, error) {
	unlock := e.locks.Lock(userID.String())
	defer unlock()
	ok, _, err := e.canSendChatLocked(ctx, userID, time.Now().UTC())
	return ok, err
}

// quotaBreach describes which limit stopped a chat, for hooks and logs.
type quotaBreach struct {
	limit string
	used  int64
	max   int64
}

func (e *Engine) canSendChatLocked(ctx context.Context, userID id.UserID, now time.Time) (bool, *quotaBreach, error) {
	sub, err := e.activeSubscriptionLocked(ctx, userID, now)
	if err != nil {
		return false, nil, err
	}
	if sub == nil {
		return false, nil, nil
	}

	sctx, cancel := e.opCtx(ctx)
	defer cancel()

	p, err := e.store.GetPlan(sctx, sub.PlanID)
	if err != nil {
		return false, nil, storeErr(err)
	}

	if p.MaxChatsPerHour > 0 {
		chats, err := e.store.CountChatsSince(sctx, userID, now.Add(-time.Hour))
		if err != nil {
			return false, nil, storeErr(err)
		}
		if chats >= p.MaxChatsPerHour {
			return false, &quotaBreach{limit: "chats_per_hour", used: chats, max: p.MaxChatsPerHour}, nil
		}
	}
	if p.MaxTokensPerMonth > 0 {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		tokens, err := e.store.SumChatTokensSince(sctx, userID, monthStart)
		if err != nil {
			return false, nil, storeErr(err)
		}
		if tokens >= p.MaxTokensPerMonth {
			return false, &quotaBreach{limit: "tokens_per_month", used: tokens, max: p.MaxTokensPerMonth}, nil
		}
	}
	return true, nil, nil
}

// activeSubscriptionLocked fetches the user's active subscription,
// expiring it lazily if its end date has passed. Returns nil when the user
// has none. Caller must hold the user's lock.
func (e *Engine) activeSubscriptionLocked(ctx context.Context, userID id.UserID, now time.Time) (*subscription.Subscription, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()

	sub, err := e.store.GetActiveSubscription(sctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoActiveSubscription) || IsNotFound(err) {
			return nil, nil
		}
		return nil, storeErr(err)
	}
	if !sub.Expired(now) {
		return sub, nil
	}

	sub.Status = subscription.StatusExpired
	sub.Touch()
	if err := e.store.UpdateSubscription(sctx, sub); err != nil {
		return nil, storeErr(err)
	}
	e.plugins.EmitSubscriptionExpired(ctx, sub)
	e.logger.Debug("subscription expired",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("user_id", userID.String()))
	return nil, nil
}

// expireIfOverdue transitions a single subscription to expired if it is
// still active and past its end date. Returns the expired subscription, or
// nil if it no longer needed expiring. Caller must hold the user's lock.
func (e *Engine) expireIfOverdue(ctx context.Context, subID id.SubscriptionID, now time.Time) (*subscription.Subscription, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()

	sub, err := e.store.GetSubscription(sctx, subID)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, storeErr(err)
	}
	if sub.Status != subscription.StatusActive || !sub.Expired(now) {
		return nil, nil
	}
	sub.Status = subscription.StatusExpired
	sub.Touch()
	if err := e.store.UpdateSubscription(sctx, sub); err != nil {
		return nil, storeErr(err)
	}
	return sub, nil
}
