// Package extension provides the Forge extension adapter for Metered.
//
// It implements the forge.Extension interface to integrate Metered
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.metered" or "metered" keys.
package extension

import (
	"context"
	"errors"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	metered "github.com/xraph/metered"
	"github.com/xraph/metered/identity"
	"github.com/xraph/metered/store"
	"github.com/xraph/metered/store/memory"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "metered"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Metered-access control layer for chat and LLM gateways"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Metered as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *metered.Engine
	store      store.Store
	engineOpts []metered.Option
}

// New creates a new Metered Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Metered engine.
// This is nil until Register is called.
func (e *Extension) Engine() *metered.Engine { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the metered engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}

	opts := e.buildEngineOpts()

	eng, err := metered.New(e.store, opts...)
	if err != nil {
		return err
	}
	e.engine = eng

	return vessel.Provide(fapp.Container(), func() (*metered.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("metered: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(ctx context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(ctx); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("metered: store not initialized")
	}
	return e.store.Ping(ctx)
}

// buildEngineOpts constructs metered.Option values from the resolved config.
func (e *Extension) buildEngineOpts() []metered.Option {
	opts := make([]metered.Option, 0, len(e.engineOpts)+3)

	if e.config.DisableMigrate {
		opts = append(opts, metered.WithoutMigrate())
	}
	if e.config.StoreTimeout > 0 {
		opts = append(opts, metered.WithStoreTimeout(e.config.StoreTimeout))
	}
	if e.config.DisableSweep {
		opts = append(opts, metered.WithSweepInterval(0))
	} else if e.config.SweepInterval > 0 {
		opts = append(opts, metered.WithSweepInterval(e.config.SweepInterval))
	}
	if e.config.JWTSecret != "" {
		jwtOpts := []identity.JWTOption{}
		if e.config.JWTIssuer != "" {
			jwtOpts = append(jwtOpts, identity.WithIssuer(e.config.JWTIssuer))
		}
		opts = append(opts, metered.WithIdentity(identity.NewJWT([]byte(e.config.JWTSecret), jwtOpts...)))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("metered: configuration is required but not found in config files; " +
				"ensure 'extensions.metered' or 'metered' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = e.mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = e.mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("metered: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("store_timeout", e.config.StoreTimeout),
		forge.F("sweep_interval", e.config.SweepInterval),
		forge.F("disable_sweep", e.config.DisableSweep),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.metered" first (namespaced pattern).
	if cm.IsSet("extensions.metered") {
		if err := cm.Bind("extensions.metered", &cfg); err == nil {
			e.Logger().Debug("metered: loaded config from file",
				forge.F("key", "extensions.metered"),
			)
			return cfg, true
		}
		e.Logger().Warn("metered: failed to bind extensions.metered config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "metered" key.
	if cm.IsSet("metered") {
		if err := cm.Bind("metered", &cfg); err == nil {
			e.Logger().Debug("metered: loaded config from file",
				forge.F("key", "metered"),
			)
			return cfg, true
		}
		e.Logger().Warn("metered: failed to bind metered config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func (e *Extension) mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.StoreTimeout == 0 {
		cfg.StoreTimeout = defaults.StoreTimeout
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic bool flags fill gaps.
func (e *Extension) mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableSweep {
		yamlConfig.DisableSweep = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.JWTSecret == "" && programmaticConfig.JWTSecret != "" {
		yamlConfig.JWTSecret = programmaticConfig.JWTSecret
	}
	if yamlConfig.JWTIssuer == "" && programmaticConfig.JWTIssuer != "" {
		yamlConfig.JWTIssuer = programmaticConfig.JWTIssuer
	}

	// Duration fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.StoreTimeout == 0 && programmaticConfig.StoreTimeout != 0 {
		yamlConfig.StoreTimeout = programmaticConfig.StoreTimeout
	}
	if yamlConfig.SweepInterval == 0 && programmaticConfig.SweepInterval != 0 {
		yamlConfig.SweepInterval = programmaticConfig.SweepInterval
	}

	// Fill remaining zeros with defaults.
	return e.mergeWithDefaults(yamlConfig)
}
