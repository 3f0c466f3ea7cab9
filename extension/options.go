package extension

import (
	"time"

	metered "github.com/xraph/metered"
	"github.com/xraph/metered/plugin"
	"github.com/xraph/metered/store"
)

// Option configures the Metered Forge extension.
type Option func(*Extension)

// WithStore sets the store for the metered engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithEngineOption passes a metered.Option through to the underlying engine.
func WithEngineOption(opt metered.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a metered plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, metered.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableSweep disables the background subscription expiry sweeper.
func WithDisableSweep() Option {
	return func(e *Extension) { e.config.DisableSweep = true }
}

// WithStoreTimeout bounds each store call made by the engine.
func WithStoreTimeout(d time.Duration) Option {
	return func(e *Extension) { e.config.StoreTimeout = d }
}

// WithSweepInterval sets how frequently overdue subscriptions are expired.
func WithSweepInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.SweepInterval = d }
}

// WithJWTSecret enables the JWT identity provider with the given HMAC secret.
func WithJWTSecret(secret string) Option {
	return func(e *Extension) { e.config.JWTSecret = secret }
}

// WithJWTIssuer sets the expected issuer on JWT credentials.
func WithJWTIssuer(issuer string) Option {
	return func(e *Extension) { e.config.JWTIssuer = issuer }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}
