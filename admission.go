package metered

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/pricing"
)

// RateLimitStatus reports a user's standing against their plan limits.
type RateLimitStatus struct {
	Usage       *Usage `json:"usage"`
	CanSendChat bool   `json:"can_send_chat"`
}

// AdmitChat is the gate every chat request passes through. It verifies the
// user is active, may use the model, and is under both plan limits, then
// prices the request, charges the balance and writes the usage record. A
// denial at any step leaves balance and history untouched.
//
// Checks run in a fixed order, so the error reports the first failure:
// ErrUserInactive, then ErrAccessDenied, then ErrRateLimitExceeded, then
// ErrInsufficientBalance.
func (e *Engine) AdmitChat(ctx context.Context, userID id.UserID, model string, inputTokens, outputTokens int64) (*chat.Record, error) {
	unlock := e.locks.Lock(userID.String())
	defer unlock()

	now := time.Now().UTC()

	sctx, cancel := e.opCtx(ctx)
	u, err := e.store.GetUser(sctx, userID)
	cancel()
	if err != nil {
		return nil, storeErr(err)
	}
	if !u.Active {
		e.plugins.EmitAdmissionDenied(ctx, userID, model, ErrUserInactive)
		return nil, ErrUserInactive
	}

	ok, err := e.canAccessModelLocked(ctx, userID, model, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		e.plugins.EmitAdmissionDenied(ctx, userID, model, ErrAccessDenied)
		e.logger.Debug("chat denied: model access",
			slog.String("user_id", userID.String()),
			slog.String("model", model))
		return nil, fmt.Errorf("%w: model %s", ErrAccessDenied, model)
	}

	ok, breach, err := e.canSendChatLocked(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		if breach != nil {
			e.plugins.EmitQuotaExceeded(ctx, userID, breach.limit, breach.used, breach.max)
		}
		e.plugins.EmitAdmissionDenied(ctx, userID, model, ErrRateLimitExceeded)
		e.logger.Debug("chat denied: rate limit",
			slog.String("user_id", userID.String()),
			slog.String("model", model))
		return nil, ErrRateLimitExceeded
	}

	cost, err := e.pricing.Cost(model, inputTokens, outputTokens)
	if err != nil {
		if errors.Is(err, pricing.ErrNegativeTokens) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, err
	}

	var txn *ledger.Transaction
	if cost > 0 {
		txn, err = e.debitLocked(ctx, userID, cost, ledger.KindChatCost, "chat: "+model)
		if err != nil {
			if errors.Is(err, ErrInsufficientBalance) {
				e.plugins.EmitAdmissionDenied(ctx, userID, model, ErrInsufficientBalance)
			}
			return nil, err
		}
	}

	rec := &chat.Record{
		ID:           id.NewChatID(),
		UserID:       userID,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Cost:         cost,
		CreatedAt:    now,
	}
	sctx, cancel = e.opCtx(ctx)
	err = e.store.CreateChat(sctx, rec)
	cancel()
	if err != nil {
		if txn != nil {
			e.refundLocked(ctx, userID, cost, "chat: "+model)
		}
		return nil, storeErr(err)
	}

	if txn != nil {
		e.plugins.EmitDebited(ctx, txn)
	}
	e.plugins.EmitChatAdmitted(ctx, rec)
	e.logger.Debug("chat admitted",
		slog.String("user_id", userID.String()),
		slog.String("model", model),
		slog.Int64("tokens", rec.TotalTokens()),
		slog.String("cost", cost.String()))
	return rec, nil
}

// AvailableModels returns the registry entries the user may use right now:
// the open models, plus VIP models when the active plan includes them,
// plus admin-only models for admins. Sorted by name.
func (e *Engine) AvailableModels(ctx context.Context, userID id.UserID) ([]pricing.Model, error) {
	sctx, cancel := e.opCtx(ctx)
	u, err := e.store.GetUser(sctx, userID)
	cancel()
	if err != nil {
		return nil, storeErr(err)
	}

	vip := false
	sub, err := e.CurrentSubscription(ctx, userID)
	if err != nil && !errors.Is(err, ErrNoActiveSubscription) {
		return nil, err
	}
	if sub != nil {
		sctx, cancel := e.opCtx(ctx)
		p, err := e.store.GetPlan(sctx, sub.PlanID)
		cancel()
		if err != nil {
			return nil, storeErr(err)
		}
		vip = p.VIPModels
	}

	var models []pricing.Model
	for _, m := range e.pricing.Models() {
		switch {
		case m.AdminOnly:
			if u.IsAdmin() {
				models = append(models, m)
			}
		case m.RequiresVIP:
			if vip || u.IsAdmin() {
				models = append(models, m)
			}
		default:
			models = append(models, m)
		}
	}
	return models, nil
}

// RateLimits reports the user's current usage and whether the next chat
// would pass the quota checks.
func (e *Engine) RateLimits(ctx context.Context, userID id.UserID) (*RateLimitStatus, error) {
	unlock := e.locks.Lock(userID.String())
	defer unlock()

	now := time.Now().UTC()
	usage, err := e.usageLocked(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	ok, _, err := e.canSendChatLocked(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	return &RateLimitStatus{Usage: usage, CanSendChat: ok}, nil
}

// Chats returns the caller's chat history in insertion order.
func (e *Engine) Chats(ctx context.Context, userID id.UserID, opts chat.ListOpts) ([]*chat.Record, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()
	recs, err := e.store.ListChats(sctx, userID, opts)
	if err != nil {
		return nil, storeErr(err)
	}
	return recs, nil
}

// Chat fetches a single chat record on behalf of callerID. Only the
// record's owner and admins may read it; anyone else gets ErrForbidden.
func (e *Engine) Chat(ctx context.Context, callerID id.UserID, chatID id.ChatID) (*chat.Record, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()

	rec, err := e.store.GetChat(sctx, chatID)
	if err != nil {
		return nil, storeErr(err)
	}
	if rec.UserID != callerID {
		caller, err := e.store.GetUser(sctx, callerID)
		if err != nil {
			return nil, storeErr(err)
		}
		if !caller.IsAdmin() {
			return nil, fmt.Errorf("%w: not your chat", ErrForbidden)
		}
	}
	return rec, nil
}

// ChatStats aggregates the user's full chat history: totals overall and
// broken down per model.
func (e *Engine) ChatStats(ctx context.Context, userID id.UserID) (*chat.Stats, error) {
	sctx, cancel := e.opCtx(ctx)
	defer cancel()

	recs, err := e.store.ListChats(sctx, userID, chat.ListOpts{})
	if err != nil {
		return nil, storeErr(err)
	}

	stats := &chat.Stats{ByModel: make(map[string]chat.ModelStats)}
	for _, r := range recs {
		stats.TotalChats++
		stats.TotalTokens += r.TotalTokens()
		stats.TotalCost += r.Cost

		ms := stats.ByModel[r.Model]
		ms.Chats++
		ms.Tokens += r.TotalTokens()
		ms.Cost += r.Cost
		stats.ByModel[r.Model] = ms
	}
	return stats, nil
}
