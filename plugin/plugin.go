// Package plugin provides an extensible plugin system for the metered
// engine. Plugins can hook into ledger, subscription and admission
// lifecycle events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/subscription"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. The engine is passed as
// interface{} to avoid an import cycle with the root package.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Plan lifecycle hooks
// ──────────────────────────────────────────────────

// OnPlanCreated is called when a new plan is created.
type OnPlanCreated interface {
	Plugin
	OnPlanCreated(ctx context.Context, p *plan.Plan) error
}

// OnPlanArchived is called when a plan is archived.
type OnPlanArchived interface {
	Plugin
	OnPlanArchived(ctx context.Context, planID id.PlanID) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionActivated is called when a subscription is activated,
// including when it replaces a prior one.
type OnSubscriptionActivated interface {
	Plugin
	OnSubscriptionActivated(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionExpired is called when a subscription expires, whether
// detected lazily on read or by the background sweeper.
type OnSubscriptionExpired interface {
	Plugin
	OnSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCredited is called after credits are added to a user's balance.
type OnCredited interface {
	Plugin
	OnCredited(ctx context.Context, txn *ledger.Transaction) error
}

// OnDebited is called after credits are deducted from a user's balance.
type OnDebited interface {
	Plugin
	OnDebited(ctx context.Context, txn *ledger.Transaction) error
}

// ──────────────────────────────────────────────────
// Admission hooks
// ──────────────────────────────────────────────────

// OnChatAdmitted is called after a chat request is admitted, charged
// and recorded.
type OnChatAdmitted interface {
	Plugin
	OnChatAdmitted(ctx context.Context, rec *chat.Record) error
}

// OnAdmissionDenied is called when a chat request is rejected. The
// reason is the sentinel error that denied it.
type OnAdmissionDenied interface {
	Plugin
	OnAdmissionDenied(ctx context.Context, userID id.UserID, model string, reason error) error
}

// OnQuotaExceeded is called when a user hits a plan usage limit.
type OnQuotaExceeded interface {
	Plugin
	OnQuotaExceeded(ctx context.Context, userID id.UserID, limit string, used, max int64) error
}
