package extension

import "time"

// Config holds the Metered extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.metered" or "metered" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// StoreTimeout bounds every store call made by the engine (default: 5s).
	StoreTimeout time.Duration `json:"store_timeout" mapstructure:"store_timeout" yaml:"store_timeout"`

	// SweepInterval is how often expired subscriptions are swept in the
	// background (default: 1m). Zero in YAML leaves the engine default;
	// use DisableSweep to turn the sweeper off.
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval" yaml:"sweep_interval"`

	// DisableSweep turns off the background expiry sweeper. Subscriptions
	// then expire lazily on read.
	DisableSweep bool `json:"disable_sweep" mapstructure:"disable_sweep" yaml:"disable_sweep"`

	// JWTSecret, when set, configures the built-in JWT identity provider.
	JWTSecret string `json:"jwt_secret" mapstructure:"jwt_secret" yaml:"jwt_secret"`

	// JWTIssuer is the issuer claim checked by the JWT provider.
	JWTIssuer string `json:"jwt_issuer" mapstructure:"jwt_issuer" yaml:"jwt_issuer"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StoreTimeout:  5 * time.Second,
		SweepInterval: time.Minute,
	}
}
