// Package observability provides a metrics extension for metered that records
// lifecycle event counts via a pluggable MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/plugin"
	"github.com/xraph/metered/subscription"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                  = (*MetricsExtension)(nil)
	_ plugin.OnInit                  = (*MetricsExtension)(nil)
	_ plugin.OnPlanCreated           = (*MetricsExtension)(nil)
	_ plugin.OnPlanArchived          = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionActivated = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionExpired   = (*MetricsExtension)(nil)
	_ plugin.OnCredited              = (*MetricsExtension)(nil)
	_ plugin.OnDebited               = (*MetricsExtension)(nil)
	_ plugin.OnChatAdmitted          = (*MetricsExtension)(nil)
	_ plugin.OnAdmissionDenied       = (*MetricsExtension)(nil)
	_ plugin.OnQuotaExceeded         = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a metered plugin to automatically track admission
// and billing metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Plan metrics
	PlanCreated  Counter
	PlanArchived Counter

	// Subscription metrics
	SubscriptionActivated Counter
	SubscriptionExpired   Counter

	// Ledger metrics
	Credited       Counter
	Debited        Counter
	CreditedAmount Histogram
	DebitedAmount  Histogram

	// Admission metrics
	ChatsAdmitted   Counter
	ChatTokens      Histogram
	ChatCost        Histogram
	AdmissionDenied Counter
	QuotaExceeded   Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Plan metrics
		PlanCreated:  factory.Counter("metered.plan.created"),
		PlanArchived: factory.Counter("metered.plan.archived"),

		// Subscription metrics
		SubscriptionActivated: factory.Counter("metered.subscription.activated"),
		SubscriptionExpired:   factory.Counter("metered.subscription.expired"),

		// Ledger metrics
		Credited:       factory.Counter("metered.ledger.credited"),
		Debited:        factory.Counter("metered.ledger.debited"),
		CreditedAmount: factory.Histogram("metered.ledger.credited.amount"),
		DebitedAmount:  factory.Histogram("metered.ledger.debited.amount"),

		// Admission metrics
		ChatsAdmitted:   factory.Counter("metered.chat.admitted"),
		ChatTokens:      factory.Histogram("metered.chat.tokens"),
		ChatCost:        factory.Histogram("metered.chat.cost"),
		AdmissionDenied: factory.Counter("metered.admission.denied"),
		QuotaExceeded:   factory.Counter("metered.quota.exceeded"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Plan lifecycle hooks
// ──────────────────────────────────────────────────

// OnPlanCreated implements plugin.OnPlanCreated.
func (m *MetricsExtension) OnPlanCreated(_ context.Context, _ *plan.Plan) error {
	m.PlanCreated.Inc()
	return nil
}

// OnPlanArchived implements plugin.OnPlanArchived.
func (m *MetricsExtension) OnPlanArchived(_ context.Context, _ id.PlanID) error {
	m.PlanArchived.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionActivated implements plugin.OnSubscriptionActivated.
func (m *MetricsExtension) OnSubscriptionActivated(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionActivated.Inc()
	return nil
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (m *MetricsExtension) OnSubscriptionExpired(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionExpired.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnCredited implements plugin.OnCredited.
func (m *MetricsExtension) OnCredited(_ context.Context, txn *ledger.Transaction) error {
	m.Credited.Inc()
	m.CreditedAmount.Observe(txn.Amount.Float64())
	return nil
}

// OnDebited implements plugin.OnDebited.
func (m *MetricsExtension) OnDebited(_ context.Context, txn *ledger.Transaction) error {
	m.Debited.Inc()
	m.DebitedAmount.Observe(txn.Amount.Neg().Float64())
	return nil
}

// ──────────────────────────────────────────────────
// Admission hooks
// ──────────────────────────────────────────────────

// OnChatAdmitted implements plugin.OnChatAdmitted.
func (m *MetricsExtension) OnChatAdmitted(_ context.Context, rec *chat.Record) error {
	m.ChatsAdmitted.Inc()
	m.ChatTokens.Observe(float64(rec.TotalTokens()))
	m.ChatCost.Observe(rec.Cost.Float64())
	return nil
}

// OnAdmissionDenied implements plugin.OnAdmissionDenied.
func (m *MetricsExtension) OnAdmissionDenied(_ context.Context, _ id.UserID, _ string, _ error) error {
	m.AdmissionDenied.Inc()
	return nil
}

// OnQuotaExceeded implements plugin.OnQuotaExceeded.
func (m *MetricsExtension) OnQuotaExceeded(_ context.Context, _ id.UserID, _ string, _, _ int64) error {
	m.QuotaExceeded.Inc()
	return nil
}
