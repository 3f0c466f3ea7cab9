// Package audithook bridges metered lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit system. Callers inject a RecorderFunc adapter that
// bridges to their backend at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/plugin"
	"github.com/xraph/metered/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                  = (*Extension)(nil)
	_ plugin.OnPlanCreated           = (*Extension)(nil)
	_ plugin.OnPlanArchived          = (*Extension)(nil)
	_ plugin.OnSubscriptionActivated = (*Extension)(nil)
	_ plugin.OnSubscriptionExpired   = (*Extension)(nil)
	_ plugin.OnCredited              = (*Extension)(nil)
	_ plugin.OnDebited               = (*Extension)(nil)
	_ plugin.OnChatAdmitted          = (*Extension)(nil)
	_ plugin.OnAdmissionDenied       = (*Extension)(nil)
	_ plugin.OnQuotaExceeded         = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges metered lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Plan lifecycle hooks
// ──────────────────────────────────────────────────

// OnPlanCreated implements plugin.OnPlanCreated.
func (e *Extension) OnPlanCreated(ctx context.Context, p *plan.Plan) error {
	return e.record(ctx, ActionPlanCreated, SeverityInfo, OutcomeSuccess,
		ResourcePlan, p.ID.String(), CategoryBilling, nil,
		"plan_name", p.Name,
		"price", p.Price.String(),
	)
}

// OnPlanArchived implements plugin.OnPlanArchived.
func (e *Extension) OnPlanArchived(ctx context.Context, planID id.PlanID) error {
	return e.record(ctx, ActionPlanArchived, SeverityInfo, OutcomeSuccess,
		ResourcePlan, planID.String(), CategoryBilling, nil,
		"plan_id", planID.String(),
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionActivated implements plugin.OnSubscriptionActivated.
func (e *Extension) OnSubscriptionActivated(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionActivated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"user_id", sub.UserID.String(),
		"plan_id", sub.PlanID.String(),
		"end_at", sub.EndAt,
	)
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (e *Extension) OnSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionExpired, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"user_id", sub.UserID.String(),
		"plan_id", sub.PlanID.String(),
	)
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCredited implements plugin.OnCredited.
func (e *Extension) OnCredited(ctx context.Context, txn *ledger.Transaction) error {
	return e.record(ctx, ActionCredited, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, txn.ID.String(), CategoryLedger, nil,
		"user_id", txn.UserID.String(),
		"kind", string(txn.Kind),
		"amount", txn.Amount.String(),
		"balance_after", txn.BalanceAfter.String(),
	)
}

// OnDebited implements plugin.OnDebited.
func (e *Extension) OnDebited(ctx context.Context, txn *ledger.Transaction) error {
	return e.record(ctx, ActionDebited, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, txn.ID.String(), CategoryLedger, nil,
		"user_id", txn.UserID.String(),
		"kind", string(txn.Kind),
		"amount", txn.Amount.String(),
		"balance_after", txn.BalanceAfter.String(),
	)
}

// ──────────────────────────────────────────────────
// Admission hooks
// ──────────────────────────────────────────────────

// OnChatAdmitted implements plugin.OnChatAdmitted.
func (e *Extension) OnChatAdmitted(ctx context.Context, rec *chat.Record) error {
	return e.record(ctx, ActionChatAdmitted, SeverityInfo, OutcomeSuccess,
		ResourceChat, rec.ID.String(), CategoryAccess, nil,
		"user_id", rec.UserID.String(),
		"model", rec.Model,
		"tokens", rec.TotalTokens(),
		"cost", rec.Cost.String(),
	)
}

// OnAdmissionDenied implements plugin.OnAdmissionDenied.
func (e *Extension) OnAdmissionDenied(ctx context.Context, userID id.UserID, model string, reason error) error {
	return e.record(ctx, ActionAdmissionDenied, SeverityWarning, OutcomeFailure,
		ResourceChat, userID.String(), CategoryAccess, reason,
		"user_id", userID.String(),
		"model", model,
	)
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (e *Extension) OnQuotaExceeded(ctx context.Context, userID id.UserID, limit string, used, max int64) error {
	return e.record(ctx, ActionQuotaExceeded, SeverityWarning, OutcomeFailure,
		ResourceQuota, userID.String(), CategoryAccess, nil,
		"user_id", userID.String(),
		"limit", limit,
		"used", used,
		"max", max,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
