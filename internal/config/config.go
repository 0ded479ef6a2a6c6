package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DefaultPort = 3000
	DefaultHost = "0.0.0.0"

	AccessModeDisabled  = "disabled"
	AccessModeWhitelist = "whitelist"
	AccessModeBlacklist = "blacklist"
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    0, // streaming responses manage their own deadlines
			ShutdownTimeout: 10 * time.Second,
		},
		Upstream: UpstreamConfig{
			BaseURL:             "http://localhost:11434",
			ConnectTimeout:      30 * time.Second,  // first byte for streams
			ResponseTimeout:     300 * time.Second, // whole body for non-streams
			MaxRetries:          2,
			HealthCheckInterval: 60 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Global: RateLimitScopeConfig{Enabled: false, Max: 100, Window: time.Minute},
			IP:     RateLimitScopeConfig{Enabled: false, Max: 20, Window: time.Minute},
			Token:  RateLimitScopeConfig{Enabled: false, Max: 60, Window: time.Minute},
		},
		Access: AccessConfig{
			Mode: AccessModeDisabled,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Theme:      "default",
			Dir:        "./logs",
			FileOutput: false,
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Storage: StorageConfig{
			DataDir:            "./data",
			FlushDebounce:      500 * time.Millisecond,
			StatsRetentionDays: 30,
		},
	}
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("OLLAGATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindLegacyEnv()
	setDefaults(config)

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, check if we have OLLAGATE_CONFIG_FILE env var
		if configFile := os.Getenv("OLLAGATE_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	viper.WatchConfig()

	return config, nil
}

// OnReload registers a callback invoked with the freshly parsed configuration
// whenever the watched config file changes. Parse failures keep the old config.
func OnReload(fn func(*Config)) {
	viper.OnConfigChange(func(fsnotify.Event) {
		fresh := DefaultConfig()
		if err := viper.Unmarshal(fresh); err != nil {
			return
		}
		if err := fresh.Validate(); err != nil {
			return
		}
		fn(fresh)
	})
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	switch c.Access.Mode {
	case AccessModeDisabled, AccessModeWhitelist, AccessModeBlacklist:
	default:
		return fmt.Errorf("invalid access mode %q", c.Access.Mode)
	}
	if c.Upstream.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	for _, scope := range []RateLimitScopeConfig{c.RateLimit.Global, c.RateLimit.IP, c.RateLimit.Token} {
		if scope.Enabled && (scope.Max <= 0 || scope.Window <= 0) {
			return fmt.Errorf("rate limit scopes need a positive max and window")
		}
	}
	return nil
}

// bindLegacyEnv wires the short environment names operators know from
// single-binary deployments onto the structured keys.
func bindLegacyEnv() {
	aliases := map[string]string{
		"server.port":                    "PORT",
		"server.host":                    "HOST",
		"server.trust_proxy_headers":     "TRUST_PROXY",
		"upstream.base_url":              "OLLAMA_BASE_URL",
		"upstream.api_token":             "API_TOKEN",
		"upstream.connect_timeout":       "CONNECT_TIMEOUT",
		"upstream.response_timeout":      "REQUEST_TIMEOUT",
		"upstream.max_retries":           "MAX_RETRIES",
		"upstream.health_check_interval": "HEALTH_CHECK_INTERVAL",
		"rate_limit.global.enabled":      "RATE_LIMIT_GLOBAL_ENABLED",
		"rate_limit.global.max":          "RATE_LIMIT_GLOBAL_MAX",
		"rate_limit.global.window":       "RATE_LIMIT_GLOBAL_WINDOW",
		"rate_limit.ip.enabled":          "RATE_LIMIT_IP_ENABLED",
		"rate_limit.ip.max":              "RATE_LIMIT_IP_MAX",
		"rate_limit.ip.window":           "RATE_LIMIT_IP_WINDOW",
		"rate_limit.token.enabled":       "RATE_LIMIT_TOKEN_ENABLED",
		"rate_limit.token.max":           "RATE_LIMIT_TOKEN_MAX",
		"rate_limit.token.window":        "RATE_LIMIT_TOKEN_WINDOW",
		"access.mode":                    "IP_ACCESS_MODE",
		"access.whitelist":               "IP_WHITELIST",
		"access.blacklist":               "IP_BLACKLIST",
		"logging.level":                  "LOG_LEVEL",
		"storage.data_dir":               "DATA_DIR",
	}
	for key, alias := range aliases {
		_ = viper.BindEnv(key, "OLLAGATE_"+strings.ToUpper(strings.NewReplacer(".", "_").Replace(key)), alias)
	}
}

// setDefaults registers every key so Unmarshal sees the OLLAGATE_-prefixed
// overrides AutomaticEnv resolves
func setDefaults(c *Config) {
	viper.SetDefault("server.host", c.Server.Host)
	viper.SetDefault("server.port", c.Server.Port)
	viper.SetDefault("server.read_timeout", c.Server.ReadTimeout)
	viper.SetDefault("server.write_timeout", c.Server.WriteTimeout)
	viper.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	viper.SetDefault("server.trust_proxy_headers", c.Server.TrustProxyHeaders)
	viper.SetDefault("server.trusted_proxy_cidrs", c.Server.TrustedProxyCIDRs)
	viper.SetDefault("upstream.base_url", c.Upstream.BaseURL)
	viper.SetDefault("upstream.api_token", c.Upstream.APIToken)
	viper.SetDefault("upstream.connect_timeout", c.Upstream.ConnectTimeout)
	viper.SetDefault("upstream.response_timeout", c.Upstream.ResponseTimeout)
	viper.SetDefault("upstream.max_retries", c.Upstream.MaxRetries)
	viper.SetDefault("upstream.health_check_interval", c.Upstream.HealthCheckInterval)
	viper.SetDefault("rate_limit.global.enabled", c.RateLimit.Global.Enabled)
	viper.SetDefault("rate_limit.global.max", c.RateLimit.Global.Max)
	viper.SetDefault("rate_limit.global.window", c.RateLimit.Global.Window)
	viper.SetDefault("rate_limit.ip.enabled", c.RateLimit.IP.Enabled)
	viper.SetDefault("rate_limit.ip.max", c.RateLimit.IP.Max)
	viper.SetDefault("rate_limit.ip.window", c.RateLimit.IP.Window)
	viper.SetDefault("rate_limit.token.enabled", c.RateLimit.Token.Enabled)
	viper.SetDefault("rate_limit.token.max", c.RateLimit.Token.Max)
	viper.SetDefault("rate_limit.token.window", c.RateLimit.Token.Window)
	viper.SetDefault("access.mode", c.Access.Mode)
	viper.SetDefault("access.whitelist", c.Access.Whitelist)
	viper.SetDefault("access.blacklist", c.Access.Blacklist)
	viper.SetDefault("logging.level", c.Logging.Level)
	viper.SetDefault("logging.theme", c.Logging.Theme)
	viper.SetDefault("logging.dir", c.Logging.Dir)
	viper.SetDefault("logging.file_output", c.Logging.FileOutput)
	viper.SetDefault("logging.max_size", c.Logging.MaxSize)
	viper.SetDefault("logging.max_backups", c.Logging.MaxBackups)
	viper.SetDefault("logging.max_age", c.Logging.MaxAge)
	viper.SetDefault("storage.data_dir", c.Storage.DataDir)
	viper.SetDefault("storage.flush_debounce", c.Storage.FlushDebounce)
	viper.SetDefault("storage.stats_retention_days", c.Storage.StatsRetentionDays)
}
