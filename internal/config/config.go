package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration. Load returns a value that is
// passed down explicitly; there is no package-level config state.
type Config struct {
	Explorer   ExplorerConfig   `mapstructure:"explorer"`
	Analyzer   AnalyzerConfig   `mapstructure:"analyzer"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ExplorerConfig holds the crawl-loop policy knobs.
type ExplorerConfig struct {
	MaxPages        int      `mapstructure:"max_pages"`
	KeepThreshold   float64  `mapstructure:"keep_threshold"`
	ScopeMode       string   `mapstructure:"scope_mode"`     // "path" or "host"
	FrontierOrder   string   `mapstructure:"frontier_order"` // "priority" or "fifo"
	CheckpointEvery int      `mapstructure:"checkpoint_every"`
	CoreTopics      []string `mapstructure:"core_topics"`
}

// AnalyzerConfig holds the deep-analysis pass configuration.
type AnalyzerConfig struct {
	MinScore float64 `mapstructure:"min_score"`
}

// ClassifierConfig holds the LLM classifier configuration.
type ClassifierConfig struct {
	APIKey             string  `mapstructure:"api_key"`
	BaseURL            string  `mapstructure:"base_url"`
	Model              string  `mapstructure:"model"`
	Temperature        float64 `mapstructure:"temperature"`
	MaxRetries         int     `mapstructure:"max_retries"`
	TokensPerMinute    int     `mapstructure:"tokens_per_minute"`
	ContentCharBudget  int     `mapstructure:"content_char_budget"`
	AnalysisCharBudget int     `mapstructure:"analysis_char_budget"`
}

// FetcherConfig holds HTTP fetcher configuration.
type FetcherConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
	RespectRobots     bool          `mapstructure:"respect_robots"`
}

// StorageConfig holds artifact storage configuration.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load loads configuration from file and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.sitescout")
	}

	setDefaults(v)
	bindEnvVars(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error, we'll use defaults and env
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.Classifier.APIKey = apiKey
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Explorer defaults
	v.SetDefault("explorer.max_pages", 500)
	v.SetDefault("explorer.keep_threshold", 0.3)
	v.SetDefault("explorer.scope_mode", "path")
	v.SetDefault("explorer.frontier_order", "priority")
	v.SetDefault("explorer.checkpoint_every", 25)
	v.SetDefault("explorer.core_topics", []string{})

	// Classifier defaults
	v.SetDefault("classifier.base_url", "https://api.openai.com/v1")
	v.SetDefault("classifier.model", "gpt-4o-mini")
	v.SetDefault("classifier.temperature", 0.1)
	v.SetDefault("classifier.max_retries", 3)
	v.SetDefault("classifier.tokens_per_minute", 30000)
	v.SetDefault("classifier.content_char_budget", 8000)
	v.SetDefault("classifier.analysis_char_budget", 24000)

	// Analyzer defaults
	v.SetDefault("analyzer.min_score", 0.0)

	// Fetcher defaults
	v.SetDefault("fetcher.timeout", "15s")
	v.SetDefault("fetcher.requests_per_second", 4)
	v.SetDefault("fetcher.respect_robots", true)

	// Storage defaults
	v.SetDefault("storage.path", "./data")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

func bindEnvVars(v *viper.Viper) {
	v.SetEnvPrefix("SITESCOUT")
	v.AutomaticEnv()

	v.BindEnv("classifier.api_key", "OPENAI_API_KEY")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Explorer.MaxPages <= 0 {
		return fmt.Errorf("explorer.max_pages must be positive")
	}
	if c.Explorer.ScopeMode != "path" && c.Explorer.ScopeMode != "host" {
		return fmt.Errorf("explorer.scope_mode must be %q or %q", "path", "host")
	}
	if c.Explorer.FrontierOrder != "priority" && c.Explorer.FrontierOrder != "fifo" {
		return fmt.Errorf("explorer.frontier_order must be %q or %q", "priority", "fifo")
	}
	if c.Classifier.TokensPerMinute <= 0 {
		return fmt.Errorf("classifier.tokens_per_minute must be positive")
	}
	if c.Classifier.ContentCharBudget <= 0 {
		return fmt.Errorf("classifier.content_char_budget must be positive")
	}
	if c.Classifier.AnalysisCharBudget <= 0 {
		return fmt.Errorf("classifier.analysis_char_budget must be positive")
	}
	if c.Fetcher.RequestsPerSecond <= 0 {
		return fmt.Errorf("fetcher.requests_per_second must be positive")
	}
	return nil
}
