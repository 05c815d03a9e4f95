package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	SerpAPI     ProviderConfig    `yaml:"serpapi" mapstructure:"serpapi"`
	Autosuggest ProviderConfig    `yaml:"autosuggest" mapstructure:"autosuggest"`
	Trends      ProviderConfig    `yaml:"trends" mapstructure:"trends"`
	Fetcher     FetcherConfig     `yaml:"fetcher" mapstructure:"fetcher"`
	Expansion   ExpansionConfig   `yaml:"expansion" mapstructure:"expansion"`
	Scoring     ScoringConfig     `yaml:"scoring" mapstructure:"scoring"`
	Clustering  ClusteringConfig  `yaml:"clustering" mapstructure:"clustering"`
	Briefs      BriefConfig       `yaml:"briefs" mapstructure:"briefs"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistence backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ProviderConfig holds per-provider API settings. RPM is the requests-per-
// minute ceiling enforced by the fetcher's token bucket; CostPerCall feeds
// the quota ledger.
type ProviderConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RPM         int     `yaml:"rpm" mapstructure:"rpm"`
	CostPerCall float64 `yaml:"cost_per_call" mapstructure:"cost_per_call"`
}

// FetcherConfig configures the rate-limited call layer.
type FetcherConfig struct {
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxConcurrent     int     `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	MaxAttempts       int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMS  int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMS      int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	JitterFraction    float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// ExpansionConfig configures the expansion stage.
type ExpansionConfig struct {
	MaxKeywords    int  `yaml:"max_keywords" mapstructure:"max_keywords"`
	MaxSuggestSeeds int `yaml:"max_suggest_seeds" mapstructure:"max_suggest_seeds"`
	IncludePAA     bool `yaml:"include_paa" mapstructure:"include_paa"`
	IncludeRelated bool `yaml:"include_related" mapstructure:"include_related"`
}

// ScoringConfig holds difficulty weights and the CTR target rank. Weights
// must sum to 1; Validate enforces this.
type ScoringConfig struct {
	SerpStrengthWeight float64 `yaml:"serp_strength_weight" mapstructure:"serp_strength_weight"`
	CompetitionWeight  float64 `yaml:"competition_weight" mapstructure:"competition_weight"`
	CrowdingWeight     float64 `yaml:"crowding_weight" mapstructure:"crowding_weight"`
	ContentDepthWeight float64 `yaml:"content_depth_weight" mapstructure:"content_depth_weight"`
	TargetRank         int     `yaml:"target_rank" mapstructure:"target_rank"`
}

// ClusteringConfig holds the similarity thresholds for topic and page-group
// formation. The similarity function itself is injectable in code.
type ClusteringConfig struct {
	TopicThreshold     float64 `yaml:"topic_threshold" mapstructure:"topic_threshold"`
	PageGroupThreshold float64 `yaml:"page_group_threshold" mapstructure:"page_group_threshold"`
}

// BriefConfig configures brief generation.
type BriefConfig struct {
	MaxFAQs     int `yaml:"max_faqs" mapstructure:"max_faqs"`
	MaxEntities int `yaml:"max_entities" mapstructure:"max_entities"`
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
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("KEYWORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "keyword.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("serpapi.base_url", "https://serpapi.com/search")
	v.SetDefault("serpapi.rpm", 30)
	v.SetDefault("serpapi.cost_per_call", 0.01)
	v.SetDefault("autosuggest.base_url", "https://suggestqueries.google.com/complete/search")
	v.SetDefault("autosuggest.rpm", 20)
	v.SetDefault("autosuggest.cost_per_call", 0)
	v.SetDefault("trends.base_url", "https://trends.googleapis.com/trends/api")
	v.SetDefault("trends.rpm", 60)
	v.SetDefault("trends.cost_per_call", 0)
	v.SetDefault("fetcher.timeout_secs", 30)
	v.SetDefault("fetcher.max_concurrent", 8)
	v.SetDefault("fetcher.max_attempts", 3)
	v.SetDefault("fetcher.initial_backoff_ms", 500)
	v.SetDefault("fetcher.max_backoff_ms", 30000)
	v.SetDefault("fetcher.backoff_multiplier", 2.0)
	v.SetDefault("fetcher.jitter_fraction", 0.25)
	v.SetDefault("expansion.max_keywords", 500)
	v.SetDefault("expansion.max_suggest_seeds", 5)
	v.SetDefault("expansion.include_paa", true)
	v.SetDefault("expansion.include_related", true)
	v.SetDefault("scoring.serp_strength_weight", 0.4)
	v.SetDefault("scoring.competition_weight", 0.3)
	v.SetDefault("scoring.crowding_weight", 0.2)
	v.SetDefault("scoring.content_depth_weight", 0.1)
	v.SetDefault("scoring.target_rank", 3)
	v.SetDefault("clustering.topic_threshold", 0.40)
	v.SetDefault("clustering.page_group_threshold", 0.60)
	v.SetDefault("briefs.max_faqs", 10)
	v.SetDefault("briefs.max_entities", 20)

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

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	sum := c.Scoring.SerpStrengthWeight + c.Scoring.CompetitionWeight +
		c.Scoring.CrowdingWeight + c.Scoring.ContentDepthWeight
	if sum < 0.999 || sum > 1.001 {
		return eris.Errorf("config: scoring weights must sum to 1, got %.3f", sum)
	}
	if c.Clustering.PageGroupThreshold < c.Clustering.TopicThreshold {
		return eris.New("config: page_group_threshold must be >= topic_threshold")
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
