package metered

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/metered/identity"
	"github.com/xraph/metered/plugin"
	"github.com/xraph/metered/pricing"
	"github.com/xraph/metered/store"
)

const (
	defaultStoreTimeout   = 5 * time.Second
	defaultSweepInterval  = time.Minute
	defaultSweepBatchSize = 100
)

// Engine is the metered-access control layer. It owns the credit ledger,
// the plan catalog, subscription lifecycle and chat admission, backed by a
// pluggable store. All mutations for a single user are serialized through
// a per-user lock, so concurrent operations can never overdraw a balance
// or double-activate a subscription.
//
// Construct with New, call Start before use, and Stop on shutdown.
type Engine struct {
	store    store.Store
	pricing  *pricing.Calculator
	identity identity.Provider
	plugins  *plugin.Registry
	logger   *slog.Logger

	locks keyedMutex

	storeTimeout   time.Duration
	sweepInterval  time.Duration
	sweepBatchSize int
	skipMigrate    bool

	mu      sync.Mutex
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPricing replaces the default model pricing calculator.
func WithPricing(c *pricing.Calculator) Option {
	return func(e *Engine) {
		if c != nil {
			e.pricing = c
		}
	}
}

// WithIdentity sets the provider used by Authenticate to resolve
// credentials into user identities. Without one, Authenticate fails.
func WithIdentity(p identity.Provider) Option {
	return func(e *Engine) { e.identity = p }
}

// WithPlugin registers a plugin. May be given multiple times.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithStoreTimeout bounds every store call made by the engine. A call that
// exceeds the bound fails with ErrStoreUnavailable. Defaults to 5s.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.storeTimeout = d
		}
	}
}

// WithoutMigrate skips store migration during Start. Use when migrations
// are run out of band.
func WithoutMigrate() Option {
	return func(e *Engine) { e.skipMigrate = true }
}

// WithSweepInterval sets how often the background sweeper marks overdue
// subscriptions expired. Zero disables the sweeper; expiry then happens
// lazily on read. Defaults to one minute.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Engine) { e.sweepInterval = d }
}

// New creates an Engine backed by s. The store is not touched until Start.
func New(s store.Store, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	e := &Engine{
		store:          s,
		pricing:        pricing.New(),
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		storeTimeout:   defaultStoreTimeout,
		sweepInterval:  defaultSweepInterval,
		sweepBatchSize: defaultSweepBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.plugins.WithLogger(e.logger)
	return e, nil
}

// Start migrates the store, initializes plugins and launches the expiry
// sweeper. It is an error to start an engine twice.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return errors.New("metered: engine already started")
	}

	if !e.skipMigrate {
		mctx, cancel := e.opCtx(ctx)
		err := e.store.Migrate(mctx)
		cancel()
		if err != nil {
			return fmt.Errorf("migrate store: %w", storeErr(err))
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.stopCh = make(chan struct{})
	if e.sweepInterval > 0 {
		e.wg.Add(1)
		go e.sweepLoop()
	}
	e.started = true
	e.logger.Info("metered engine started",
		slog.Duration("store_timeout", e.storeTimeout),
		slog.Duration("sweep_interval", e.sweepInterval))
	return nil
}

// Stop halts the sweeper, shuts down plugins and closes the store.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.started {
		return nil
	}
	close(e.stopCh)
	e.wg.Wait()
	e.started = false

	e.plugins.EmitShutdown(ctx)
	if err := e.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	e.logger.Info("metered engine stopped")
	return nil
}

// Pricing returns the engine's model pricing calculator.
func (e *Engine) Pricing() *pricing.Calculator { return e.pricing }

// Store returns the underlying store. Intended for plugins and tests;
// callers going around the engine bypass per-user serialization.
func (e *Engine) Store() store.Store { return e.store }

// Logger returns the engine's logger.
func (e *Engine) Logger() *slog.Logger { return e.logger }

func (e *Engine) sweepLoop() {
	defer e.wg.Done()
	t := time.NewTicker(e.sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-t.C:
			e.sweepExpired(context.Background())
		}
	}
}

// sweepExpired marks overdue subscriptions expired in batches. Each
// subscription is re-checked under its user's lock so a concurrent
// Subscribe cannot race the sweep.
func (e *Engine) sweepExpired(ctx context.Context) {
	now := time.Now().UTC()
	sctx, cancel := e.opCtx(ctx)
	overdue, err := e.store.ListOverdueSubscriptions(sctx, now, e.sweepBatchSize)
	cancel()
	if err != nil {
		e.logger.Error("list overdue subscriptions", slog.Any("error", err))
		return
	}
	for _, sub := range overdue {
		unlock := e.locks.Lock(sub.UserID.String())
		expired, err := e.expireIfOverdue(ctx, sub.ID, now)
		unlock()
		if err != nil {
			e.logger.Error("expire subscription",
				slog.String("subscription_id", sub.ID.String()),
				slog.Any("error", err))
			continue
		}
		if expired != nil {
			e.plugins.EmitSubscriptionExpired(ctx, expired)
			e.logger.Debug("subscription expired",
				slog.String("subscription_id", expired.ID.String()),
				slog.String("user_id", expired.UserID.String()))
		}
	}
}

// opCtx bounds a store call with the configured timeout.
func (e *Engine) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.storeTimeout)
}

// storeErr maps a timed-out store call to the retryable
// ErrStoreUnavailable. Other errors pass through unchanged.
func storeErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
