package config

import "time"

// Config is the root configuration for the gateway
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Access    AccessConfig    `mapstructure:"access"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Storage   StorageConfig   `mapstructure:"storage"`
}

type ServerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	TrustProxyHeaders bool          `mapstructure:"trust_proxy_headers"`
	TrustedProxyCIDRs []string      `mapstructure:"trusted_proxy_cidrs"`
}

// UpstreamConfig covers the default backend plus the proxy behaviour that
// applies to every backend.
type UpstreamConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	APIToken            string        `mapstructure:"api_token"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`
}

type RateLimitConfig struct {
	Global RateLimitScopeConfig `mapstructure:"global"`
	IP     RateLimitScopeConfig `mapstructure:"ip"`
	Token  RateLimitScopeConfig `mapstructure:"token"`
}

type RateLimitScopeConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Max     int           `mapstructure:"max"`
	Window  time.Duration `mapstructure:"window"`
}

// AccessConfig controls the IP filter. Mode is one of disabled, whitelist
// or blacklist.
type AccessConfig struct {
	Mode      string   `mapstructure:"mode"`
	Whitelist []string `mapstructure:"whitelist"`
	Blacklist []string `mapstructure:"blacklist"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Theme      string `mapstructure:"theme"`
	Dir        string `mapstructure:"dir"`
	FileOutput bool   `mapstructure:"file_output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type StorageConfig struct {
	DataDir            string        `mapstructure:"data_dir"`
	FlushDebounce      time.Duration `mapstructure:"flush_debounce"`
	StatsRetentionDays int           `mapstructure:"stats_retention_days"`
}
