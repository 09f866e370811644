// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Engine  EngineConfig  `mapstructure:"engine"`
	Cache   CacheConfig   `mapstructure:"cache"`
	GitHub  GitHubConfig  `mapstructure:"github"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// EngineConfig holds fan-out and freshness settings for the aggregation engine.
type EngineConfig struct {
	// DefaultMaxAgeSeconds is applied when a caller's cache policy omits one.
	DefaultMaxAgeSeconds int `mapstructure:"default_max_age_seconds"`
	// OuterConcurrency bounds the cross-organization fan-out. Default 1:
	// each organization fetch already consumes per-organization rate-limit
	// budget, so the default trades latency for predictable low-burst load.
	OuterConcurrency int `mapstructure:"outer_concurrency"`
	// InnerConcurrency bounds the per-entity nested fetches within one
	// organization. Default 1.
	InnerConcurrency int `mapstructure:"inner_concurrency"`
	// DefaultPerPage is injected into per-organization calls when the
	// options template leaves it unset.
	DefaultPerPage int `mapstructure:"default_per_page"`
	// WarmIntervalSeconds drives the daemon's periodic cache-warming loop.
	// Zero disables warming.
	WarmIntervalSeconds int    `mapstructure:"warm_interval_seconds"`
	JobRegistryPath     string `mapstructure:"job_registry_path"`
}

// CacheConfig selects and configures the cache-aside store backend.
type CacheConfig struct {
	// Backend is "redis" or "memory".
	Backend string      `mapstructure:"backend"`
	Redis   RedisConfig `mapstructure:"redis"`
	// TTLFactor multiplies the freshness bound to obtain the Redis entry
	// TTL, so stale entries survive long enough to be served under
	// background refresh. Default 6 (an hour for the default 600s bound).
	TTLFactor int `mapstructure:"ttl_factor"`
	// MaxEntries caps the in-memory backend. Zero means unbounded.
	MaxEntries int `mapstructure:"max_entries"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// GitHubConfig holds the upstream API settings and the per-organization
// token set. Tokens arrive already resolved; acquisition is out of scope.
type GitHubConfig struct {
	// BaseURL overrides api.github.com, for GHE or tests.
	BaseURL string `mapstructure:"base_url"`
	// Tokens maps organization login to its API token. Lookup is
	// case-insensitive.
	Tokens map[string]string `mapstructure:"tokens"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
