package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/metered/chat"
	"github.com/xraph/metered/id"
	"github.com/xraph/metered/ledger"
	"github.com/xraph/metered/plan"
	"github.com/xraph/metered/subscription"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                  []OnInit
	onShutdown              []OnShutdown
	onPlanCreated           []OnPlanCreated
	onPlanArchived          []OnPlanArchived
	onSubscriptionActivated []OnSubscriptionActivated
	onSubscriptionExpired   []OnSubscriptionExpired
	onCredited              []OnCredited
	onDebited               []OnDebited
	onChatAdmitted          []OnChatAdmitted
	onAdmissionDenied       []OnAdmissionDenied
	onQuotaExceeded         []OnQuotaExceeded
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger: slog.Default(),
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnPlanCreated); ok {
		r.onPlanCreated = append(r.onPlanCreated, v)
	}
	if v, ok := p.(OnPlanArchived); ok {
		r.onPlanArchived = append(r.onPlanArchived, v)
	}
	if v, ok := p.(OnSubscriptionActivated); ok {
		r.onSubscriptionActivated = append(r.onSubscriptionActivated, v)
	}
	if v, ok := p.(OnSubscriptionExpired); ok {
		r.onSubscriptionExpired = append(r.onSubscriptionExpired, v)
	}
	if v, ok := p.(OnCredited); ok {
		r.onCredited = append(r.onCredited, v)
	}
	if v, ok := p.(OnDebited); ok {
		r.onDebited = append(r.onDebited, v)
	}
	if v, ok := p.(OnChatAdmitted); ok {
		r.onChatAdmitted = append(r.onChatAdmitted, v)
	}
	if v, ok := p.(OnAdmissionDenied); ok {
		r.onAdmissionDenied = append(r.onAdmissionDenied, v)
	}
	if v, ok := p.(OnQuotaExceeded); ok {
		r.onQuotaExceeded = append(r.onQuotaExceeded, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	// Check each interface
	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnPlanCreated)(nil)).Elem(), "OnPlanCreated")
	checkInterface(reflect.TypeOf((*OnPlanArchived)(nil)).Elem(), "OnPlanArchived")
	checkInterface(reflect.TypeOf((*OnSubscriptionActivated)(nil)).Elem(), "OnSubscriptionActivated")
	checkInterface(reflect.TypeOf((*OnSubscriptionExpired)(nil)).Elem(), "OnSubscriptionExpired")
	checkInterface(reflect.TypeOf((*OnCredited)(nil)).Elem(), "OnCredited")
	checkInterface(reflect.TypeOf((*OnDebited)(nil)).Elem(), "OnDebited")
	checkInterface(reflect.TypeOf((*OnChatAdmitted)(nil)).Elem(), "OnChatAdmitted")
	checkInterface(reflect.TypeOf((*OnAdmissionDenied)(nil)).Elem(), "OnAdmissionDenied")
	checkInterface(reflect.TypeOf((*OnQuotaExceeded)(nil)).Elem(), "OnQuotaExceeded")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, engine)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitPlanCreated emits a plan created event.
func (r *Registry) EmitPlanCreated(ctx context.Context, p *plan.Plan) {
	r.mu.RLock()
	plugins := r.onPlanCreated
	r.mu.RUnlock()

	for _, pl := range plugins {
		if err := r.callWithTimeout(ctx, pl.Name(), func() error {
			return pl.OnPlanCreated(ctx, p)
		}); err != nil {
			r.logger.Warn("plugin OnPlanCreated failed",
				"plugin", pl.Name(),
				"error", err,
			)
		}
	}
}

// EmitPlanArchived emits a plan archived event.
func (r *Registry) EmitPlanArchived(ctx context.Context, planID id.PlanID) {
	r.mu.RLock()
	plugins := r.onPlanArchived
	r.mu.RUnlock()

	for _, pl := range plugins {
		if err := r.callWithTimeout(ctx, pl.Name(), func() error {
			return pl.OnPlanArchived(ctx, planID)
		}); err != nil {
			r.logger.Warn("plugin OnPlanArchived failed",
				"plugin", pl.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionActivated emits a subscription activated event.
func (r *Registry) EmitSubscriptionActivated(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionActivated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionActivated(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionActivated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSubscriptionExpired emits a subscription expired event.
func (r *Registry) EmitSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionExpired
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSubscriptionExpired(ctx, sub)
		}); err != nil {
			r.logger.Warn("plugin OnSubscriptionExpired failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitCredited emits a credit transaction event.
func (r *Registry) EmitCredited(ctx context.Context, txn *ledger.Transaction) {
	r.mu.RLock()
	plugins := r.onCredited
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnCredited(ctx, txn)
		}); err != nil {
			r.logger.Warn("plugin OnCredited failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitDebited emits a debit transaction event.
func (r *Registry) EmitDebited(ctx context.Context, txn *ledger.Transaction) {
	r.mu.RLock()
	plugins := r.onDebited
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnDebited(ctx, txn)
		}); err != nil {
			r.logger.Warn("plugin OnDebited failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitChatAdmitted emits a chat admitted event.
func (r *Registry) EmitChatAdmitted(ctx context.Context, rec *chat.Record) {
	r.mu.RLock()
	plugins := r.onChatAdmitted
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnChatAdmitted(ctx, rec)
		}); err != nil {
			r.logger.Warn("plugin OnChatAdmitted failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitAdmissionDenied emits an admission denied event.
func (r *Registry) EmitAdmissionDenied(ctx context.Context, userID id.UserID, model string, reason error) {
	r.mu.RLock()
	plugins := r.onAdmissionDenied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnAdmissionDenied(ctx, userID, model, reason)
		}); err != nil {
			r.logger.Warn("plugin OnAdmissionDenied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitQuotaExceeded emits a quota exceeded event.
func (r *Registry) EmitQuotaExceeded(ctx context.Context, userID id.UserID, limit string, used, max int64) {
	r.mu.RLock()
	plugins := r.onQuotaExceeded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnQuotaExceeded(ctx, userID, limit, used, max)
		}); err != nil {
			r.logger.Warn("plugin OnQuotaExceeded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the admission pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
