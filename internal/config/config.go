// Package config provides configuration types and loading for TenantGate.
package config

import "time"

// RootTenantID is the tenant ID of the primary (root) tenant.
// The API-token credential channel is only honored for this tenant.
const RootTenantID int64 = 1

// Config is the top-level node configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// MetricsListen is the listen address for the metrics and probe
	// endpoints. Empty disables the metrics server.
	MetricsListen string `yaml:"metricsListen"`

	// TmpPath is the directory for encrypted upload temp files.
	TmpPath string `yaml:"tmpPath"`

	// FilesPath is the directory served by static file routes.
	FilesPath string `yaml:"filesPath"`

	// AttachmentsPath is the destination directory for assembled
	// uploads.
	AttachmentsPath string `yaml:"attachmentsPath"`

	// FileChunkSize is the block size in bytes used when streaming
	// files to responses.
	FileChunkSize int `yaml:"fileChunkSize"`

	// APITokenLength is the exact length of a valid API token.
	APITokenLength int `yaml:"apiTokenLength"`

	// SideChannelGuard is the minimum response latency enforced on
	// routes flagged for uniform answer time.
	SideChannelGuard Duration `yaml:"sideChannelGuard"`

	// HandlerExecThreshold is the elapsed-time threshold above which a
	// handler is reported as slow.
	HandlerExecThreshold Duration `yaml:"handlerExecThreshold"`

	// UploadFlowTTL is how long an inactive upload flow is retained
	// before eviction.
	UploadFlowTTL Duration `yaml:"uploadFlowTTL"`

	// MaxBodySize is the request body ceiling in bytes.
	MaxBodySize int64 `yaml:"maxBodySize"`

	// RateLimit configures request rate limiting.
	RateLimit RateLimitConfig `yaml:"rateLimit"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`

	// Sessions configures the session registry backend.
	Sessions SessionConfig `yaml:"sessions"`

	// Tenants is the static tenant table. It may be reloaded at
	// runtime through the config watcher.
	Tenants []TenantConfig `yaml:"tenants"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SessionConfig configures the session registry.
type SessionConfig struct {
	// Backend selects the registry backend: "memory" or "redis".
	Backend string `yaml:"backend"`

	// TTL is the session lifetime.
	TTL Duration `yaml:"ttl"`

	// Redis configures the Redis backend.
	Redis RedisConfig `yaml:"redis"`
}

// RateLimitConfig configures the request rate limiter.
type RateLimitConfig struct {
	// Enabled turns the limiter on.
	Enabled bool `yaml:"enabled"`

	// RPS is the sustained requests-per-second budget.
	RPS int `yaml:"rps"`

	// Burst is the burst allowance.
	Burst int `yaml:"burst"`

	// PerClient keys the limiter by client address instead of
	// globally.
	PerClient bool `yaml:"perClient"`
}

// RedisConfig configures a Redis connection.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

// TenantConfig is the per-tenant settings snapshot consumed on every
// request. Instances handed out by the tenant cache are immutable.
type TenantConfig struct {
	// ID identifies the tenant.
	ID int64 `yaml:"id"`

	// Hostname maps request hosts to this tenant.
	Hostname string `yaml:"hostname"`

	// BasicAuth enables the basic-auth gate for this tenant.
	BasicAuth         bool   `yaml:"basicAuth"`
	BasicAuthUsername string `yaml:"basicAuthUsername"`
	BasicAuthPassword string `yaml:"basicAuthPassword"`

	// MaxFileSize is the upload size ceiling in megabytes.
	MaxFileSize int64 `yaml:"maxFileSize"`

	// AdminAPITokenDigest is the hex SHA-512 digest of the admin API
	// token. Empty disables the API-token channel for this tenant.
	AdminAPITokenDigest string `yaml:"adminApiTokenDigest"`

	// Features holds per-tenant feature flags.
	Features map[string]bool `yaml:"features"`
}

// Default values applied by ApplyDefaults.
const (
	DefaultListen               = ":8080"
	DefaultFileChunkSize        = 64 * 1024
	DefaultAPITokenLength       = 32
	DefaultSideChannelGuard     = 150 * time.Millisecond
	DefaultHandlerExecThreshold = 120 * time.Second
	DefaultUploadFlowTTL        = time.Hour
	DefaultSessionTTL           = 30 * time.Minute
	DefaultMaxFileSize          = 30 // MB
	DefaultMaxBodySize          = 64 << 20
	DefaultRateLimitRPS         = 100
	DefaultRateLimitBurst       = 200
)

// ApplyDefaults fills zero-valued fields with defaults.
func (c *Config) ApplyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.TmpPath == "" {
		c.TmpPath = "/tmp/tenantgate"
	}
	if c.FileChunkSize <= 0 {
		c.FileChunkSize = DefaultFileChunkSize
	}
	if c.APITokenLength <= 0 {
		c.APITokenLength = DefaultAPITokenLength
	}
	if c.SideChannelGuard <= 0 {
		c.SideChannelGuard = Duration(DefaultSideChannelGuard)
	}
	if c.HandlerExecThreshold <= 0 {
		c.HandlerExecThreshold = Duration(DefaultHandlerExecThreshold)
	}
	if c.UploadFlowTTL <= 0 {
		c.UploadFlowTTL = Duration(DefaultUploadFlowTTL)
	}
	if c.FilesPath == "" {
		c.FilesPath = "files"
	}
	if c.AttachmentsPath == "" {
		c.AttachmentsPath = "attachments"
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = DefaultRateLimitRPS
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = DefaultRateLimitBurst
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Sessions.Backend == "" {
		c.Sessions.Backend = "memory"
	}
	if c.Sessions.TTL <= 0 {
		c.Sessions.TTL = Duration(DefaultSessionTTL)
	}
	for i := range c.Tenants {
		if c.Tenants[i].MaxFileSize <= 0 {
			c.Tenants[i].MaxFileSize = DefaultMaxFileSize
		}
	}
}
