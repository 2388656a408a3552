package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	FMP          FMPConfig          `yaml:"fmp" mapstructure:"fmp"`
	AlphaVantage AlphaVantageConfig `yaml:"alphavantage" mapstructure:"alphavantage"`
	SECEdgar     SECEdgarConfig     `yaml:"secedgar" mapstructure:"secedgar"`
	Anthropic    AnthropicConfig    `yaml:"anthropic" mapstructure:"anthropic"`
	Fetch        FetchConfig        `yaml:"fetch" mapstructure:"fetch"`
	Routing      RoutingConfig      `yaml:"routing" mapstructure:"routing"`
	Audit        AuditConfig        `yaml:"audit" mapstructure:"audit"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
}

// FMPConfig holds Financial Modeling Prep API settings.
type FMPConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// AlphaVantageConfig holds Alpha Vantage API settings.
type AlphaVantageConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SECEdgarConfig holds SEC EDGAR access settings. UserAgent is mandatory
// under the SEC fair-access policy.
type SECEdgarConfig struct {
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// AnthropicConfig holds Anthropic API settings for document extraction.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// FetchConfig tunes the orchestration core.
type FetchConfig struct {
	CacheTTLSecs             int `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
	CallTimeoutSecs          int `yaml:"call_timeout_secs" mapstructure:"call_timeout_secs"`
	ThrottleCooldownSecs     int `yaml:"throttle_cooldown_secs" mapstructure:"throttle_cooldown_secs"`
	UnauthorizedCooldownSecs int `yaml:"unauthorized_cooldown_secs" mapstructure:"unauthorized_cooldown_secs"`
}

// CacheTTL returns the response cache TTL as a duration.
func (c FetchConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSecs) * time.Second
}

// CallTimeout returns the per-provider-call timeout as a duration.
func (c FetchConfig) CallTimeout() time.Duration {
	return time.Duration(c.CallTimeoutSecs) * time.Second
}

// ThrottleCooldown returns the default throttle cool-down as a duration.
func (c FetchConfig) ThrottleCooldown() time.Duration {
	return time.Duration(c.ThrottleCooldownSecs) * time.Second
}

// UnauthorizedCooldown returns the auth-failure cool-down as a duration.
func (c FetchConfig) UnauthorizedCooldown() time.Duration {
	return time.Duration(c.UnauthorizedCooldownSecs) * time.Second
}

// RoutingConfig points at an optional provider routing override file.
type RoutingConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// AuditConfig configures the session audit store.
type AuditConfig struct {
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	// viper >= 1.21 binds env vars to struct fields during Unmarshal by
	// default; with viper 1.20 the same behavior needs this option.
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FINSIGHT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("fmp.base_url", "https://financialmodelingprep.com/stable")
	v.SetDefault("alphavantage.base_url", "https://www.alphavantage.co")
	v.SetDefault("secedgar.user_agent", "FinSight Labs research@finsight-labs.io")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("fetch.cache_ttl_secs", 300)
	v.SetDefault("fetch.call_timeout_secs", 20)
	v.SetDefault("fetch.throttle_cooldown_secs", 120)
	v.SetDefault("fetch.unauthorized_cooldown_secs", 3600)
	v.SetDefault("audit.database_path", "finsight.db")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for a run mode. Provider keys are not
// required: a missing key just leaves that provider unregistered and the
// fallback chain skips it.
func (c *Config) Validate(mode string) error {
	var problems []string

	if c.Fetch.CacheTTLSecs <= 0 {
		problems = append(problems, "fetch.cache_ttl_secs must be > 0")
	}
	if c.Fetch.CallTimeoutSecs <= 0 {
		problems = append(problems, "fetch.call_timeout_secs must be > 0")
	}
	if c.Fetch.ThrottleCooldownSecs <= 0 {
		problems = append(problems, "fetch.throttle_cooldown_secs must be > 0")
	}
	if c.Fetch.UnauthorizedCooldownSecs <= 0 {
		problems = append(problems, "fetch.unauthorized_cooldown_secs must be > 0")
	}
	if c.SECEdgar.UserAgent == "" {
		problems = append(problems, "secedgar.user_agent is required")
	}

	switch mode {
	case "analyze":
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be between 1 and 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
