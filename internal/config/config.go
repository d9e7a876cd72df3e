package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/legis-analyzer/internal/cost"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Analysis  AnalysisConfig  `yaml:"analysis" mapstructure:"analysis"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Pricing   cost.Rates      `yaml:"pricing" mapstructure:"pricing"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key                  string  `yaml:"key" mapstructure:"key"`
	Model                string  `yaml:"model" mapstructure:"model"`
	MaxOutputTokens      int64   `yaml:"max_output_tokens" mapstructure:"max_output_tokens"`
	Temperature          float64 `yaml:"temperature" mapstructure:"temperature"`
	RequestsPerMinute    int     `yaml:"requests_per_minute" mapstructure:"requests_per_minute"`
	ThinkingBudgetTokens int64   `yaml:"thinking_budget_tokens" mapstructure:"thinking_budget_tokens"`
}

// AnalysisConfig tunes the analysis pipeline.
type AnalysisConfig struct {
	MaxContextTokens int `yaml:"max_context_tokens" mapstructure:"max_context_tokens"`
	SafetyBuffer     int `yaml:"safety_buffer" mapstructure:"safety_buffer"`
	HardTokenLimit   int `yaml:"hard_token_limit" mapstructure:"hard_token_limit"`
	MaxRetries       int `yaml:"max_retries" mapstructure:"max_retries"`
	RetryBaseDelayMS int `yaml:"retry_base_delay_ms" mapstructure:"retry_base_delay_ms"`
	CacheTTLMinutes  int `yaml:"cache_ttl_minutes" mapstructure:"cache_ttl_minutes"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentBills int `yaml:"max_concurrent_bills" mapstructure:"max_concurrent_bills"`
}

// ServerConfig configures the webhook server.
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
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.sqlite_path", "legis.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent_bills", 3)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_output_tokens", 8000)
	v.SetDefault("anthropic.temperature", 0.2)
	v.SetDefault("anthropic.requests_per_minute", 0)
	v.SetDefault("anthropic.thinking_budget_tokens", 0)
	v.SetDefault("analysis.max_context_tokens", 180000)
	v.SetDefault("analysis.safety_buffer", 20000)
	v.SetDefault("analysis.hard_token_limit", 500000)
	v.SetDefault("analysis.max_retries", 3)
	v.SetDefault("analysis.retry_base_delay_ms", 1000)
	v.SetDefault("analysis.cache_ttl_minutes", 30)
	for model, rate := range cost.DefaultRates().Anthropic {
		v.SetDefault("pricing.anthropic."+model+".input", rate.Input)
		v.SetDefault("pricing.anthropic."+model+".output", rate.Output)
		v.SetDefault("pricing.anthropic."+model+".cache_write_mul", rate.CacheWriteMul)
		v.SetDefault("pricing.anthropic."+model+".cache_read_mul", rate.CacheReadMul)
	}

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
