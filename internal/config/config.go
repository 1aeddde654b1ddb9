package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Quote      QuoteConfig      `yaml:"quote" mapstructure:"quote"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Oracle     OracleConfig     `yaml:"oracle" mapstructure:"oracle"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Tracing    TracingConfig    `yaml:"tracing" mapstructure:"tracing"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// GenerationConfig holds text-generation (Anthropic) settings.
type GenerationConfig struct {
	Key         string  `yaml:"key" mapstructure:"key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Model       string  `yaml:"model" mapstructure:"model"`
	JudgeModel  string  `yaml:"judge_model" mapstructure:"judge_model"`
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// SearchConfig holds web-search (Tavily) settings.
type SearchConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	Depth      string  `yaml:"depth" mapstructure:"depth"`
	MaxResults int     `yaml:"max_results" mapstructure:"max_results"`
	RatePerSec float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
}

// QuoteConfig toggles the market snapshot lookup.
type QuoteConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// PipelineConfig configures stage thresholds and flow.
type PipelineConfig struct {
	// ConfidenceThreshold gates the analysis self-check.
	ConfidenceThreshold           float64 `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	FaithfulnessThreshold         float64 `yaml:"faithfulness_threshold" mapstructure:"faithfulness_threshold"`
	RelevancyThreshold            float64 `yaml:"relevancy_threshold" mapstructure:"relevancy_threshold"`
	AnalysisFaithfulnessThreshold float64 `yaml:"analysis_faithfulness_threshold" mapstructure:"analysis_faithfulness_threshold"`
	MaxTickers                    int     `yaml:"max_tickers" mapstructure:"max_tickers"`
	ParallelAnalysis              bool    `yaml:"parallel_analysis" mapstructure:"parallel_analysis"`
	CompileEvidence               bool    `yaml:"compile_evidence" mapstructure:"compile_evidence"`
	MaxSteps                      int     `yaml:"max_steps" mapstructure:"max_steps"`
}

// OracleConfig bounds every external call.
type OracleConfig struct {
	TimeoutSecs      int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	BreakerFailures  int `yaml:"breaker_failures" mapstructure:"breaker_failures"`
	BreakerResetSecs int `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	Tavily    TavilyPricing           `yaml:"tavily" mapstructure:"tavily"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// TavilyPricing holds per-search pricing in USD.
type TavilyPricing struct {
	Basic    float64 `yaml:"basic" mapstructure:"basic"`
	Advanced float64 `yaml:"advanced" mapstructure:"advanced"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the web front-end.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	Pretty  bool `yaml:"pretty" mapstructure:"pretty"`
}

// MonitoringConfig configures run-health alerts in serve mode. Alerts are
// off unless WebhookURL is set.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	PassRateThreshold    float64 `yaml:"pass_rate_threshold" mapstructure:"pass_rate_threshold"`
	CostThresholdUSD     float64 `yaml:"cost_threshold_usd" mapstructure:"cost_threshold_usd"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RESEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets accept the provider's conventional names too. The first set
	// variable wins.
	for key, envs := range map[string][]string{
		"generation.key":      {"RESEARCH_GENERATION_KEY", "ANTHROPIC_API_KEY"},
		"generation.base_url": {"RESEARCH_GENERATION_BASE_URL", "ANTHROPIC_BASE_URL"},
		"search.key":          {"RESEARCH_SEARCH_KEY", "TAVILY_API_KEY"},
	} {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, eris.Wrapf(err, "config: bind env %s", key)
		}
	}

	// Defaults
	v.SetDefault("generation.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("generation.judge_model", "claude-haiku-4-5-20251001")
	v.SetDefault("generation.max_tokens", 2048)
	v.SetDefault("generation.temperature", 0.0)
	v.SetDefault("search.base_url", "https://api.tavily.com")
	v.SetDefault("search.depth", "advanced")
	v.SetDefault("search.max_results", 7)
	v.SetDefault("search.rate_per_sec", 5.0)
	v.SetDefault("quote.enabled", true)
	v.SetDefault("pipeline.confidence_threshold", 0.7)
	v.SetDefault("pipeline.faithfulness_threshold", 0.7)
	v.SetDefault("pipeline.relevancy_threshold", 0.7)
	v.SetDefault("pipeline.analysis_faithfulness_threshold", 0.7)
	v.SetDefault("pipeline.max_tickers", 2)
	v.SetDefault("pipeline.parallel_analysis", true)
	v.SetDefault("pipeline.compile_evidence", true)
	v.SetDefault("pipeline.max_steps", 16)
	v.SetDefault("oracle.timeout_secs", 60)
	v.SetDefault("oracle.max_attempts", 3)
	v.SetDefault("oracle.initial_backoff_ms", 500)
	v.SetDefault("oracle.max_backoff_ms", 10000)
	v.SetDefault("oracle.breaker_failures", 5)
	v.SetDefault("oracle.breaker_reset_secs", 30)
	v.SetDefault("pricing.anthropic", map[string]any{
		"claude-sonnet-4-5-20250929": map[string]any{"input": 3.0, "output": 15.0},
		"claude-haiku-4-5-20251001":  map[string]any{"input": 1.0, "output": 5.0},
	})
	v.SetDefault("pricing.tavily.basic", 0.008)
	v.SetDefault("pricing.tavily.advanced", 0.016)
	v.SetDefault("store.enabled", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "stock-researcher.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.pretty", false)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.pass_rate_threshold", 0.5)
	v.SetDefault("monitoring.cost_threshold_usd", 0.0)

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

// ValidateSecrets fails fast when either oracle credential is missing.
func (c *Config) ValidateSecrets() error {
	var missing []string
	if strings.TrimSpace(c.Search.Key) == "" {
		missing = append(missing, "search key (RESEARCH_SEARCH_KEY or TAVILY_API_KEY)")
	}
	if strings.TrimSpace(c.Generation.Key) == "" {
		missing = append(missing, "generation key (RESEARCH_GENERATION_KEY or ANTHROPIC_API_KEY)")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// Validate checks value ranges. Secrets are checked separately so commands
// that never call an oracle can run without them.
func (c *Config) Validate() error {
	thresholds := map[string]float64{
		"pipeline.confidence_threshold":            c.Pipeline.ConfidenceThreshold,
		"pipeline.faithfulness_threshold":          c.Pipeline.FaithfulnessThreshold,
		"pipeline.relevancy_threshold":             c.Pipeline.RelevancyThreshold,
		"pipeline.analysis_faithfulness_threshold": c.Pipeline.AnalysisFaithfulnessThreshold,
	}
	for name, v := range thresholds {
		if v < 0 || v > 1 {
			return eris.Errorf("config: %s must be within [0,1], got %v", name, v)
		}
	}
	if c.Pipeline.MaxTickers < 1 || c.Pipeline.MaxTickers > 2 {
		return eris.Errorf("config: pipeline.max_tickers must be 1 or 2, got %d", c.Pipeline.MaxTickers)
	}
	// Zero falls back to the engine default. Anything else must fit the
	// longest legal run: parse, gather, analysis, then two synthesize and
	// validate rounds.
	if floor := minSteps(c.Pipeline.ParallelAnalysis); c.Pipeline.MaxSteps != 0 && c.Pipeline.MaxSteps < floor {
		return eris.Errorf("config: pipeline.max_steps must be at least %d, got %d", floor, c.Pipeline.MaxSteps)
	}
	switch c.Search.Depth {
	case "basic", "advanced":
	default:
		return eris.Errorf("config: search.depth must be basic or advanced, got %q", c.Search.Depth)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		return eris.Errorf("config: unsupported store.driver %q", c.Store.Driver)
	}
	return nil
}

// minSteps is the node count of a run that retries once. Sequential analysis
// runs sentiment and risk as two nodes.
func minSteps(parallel bool) int {
	if parallel {
		return 7
	}
	return 8
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
