package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Crawl       CrawlConfig       `yaml:"crawl" mapstructure:"crawl"`
	Scan        ScanConfig        `yaml:"scan" mapstructure:"scan"`
	Competitors CompetitorsConfig `yaml:"competitors" mapstructure:"competitors"`
	Embed       EmbedConfig       `yaml:"embed" mapstructure:"embed"`
	Ingest      IngestConfig      `yaml:"ingest" mapstructure:"ingest"`
	Insight     InsightConfig     `yaml:"insight" mapstructure:"insight"`
	Anthropic   AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI      OpenAIConfig      `yaml:"openai" mapstructure:"openai"`
	Gemini      GeminiConfig      `yaml:"gemini" mapstructure:"gemini"`
	Jina        JinaConfig        `yaml:"jina" mapstructure:"jina"`
	Pipeline    PipelineConfig    `yaml:"pipeline" mapstructure:"pipeline"`
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	Server      ServerConfig      `yaml:"server" mapstructure:"server"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// FetchConfig configures single-page fetching.
type FetchConfig struct {
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes    int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	BrowserFallback bool   `yaml:"browser_fallback" mapstructure:"browser_fallback"`
	BrowserTimeout  int    `yaml:"browser_timeout_secs" mapstructure:"browser_timeout_secs"`
}

// CrawlConfig configures secondary-page discovery.
type CrawlConfig struct {
	MaxSecondaryPages int     `yaml:"max_secondary_pages" mapstructure:"max_secondary_pages"`
	RatePerSec        float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	RespectRobots     bool    `yaml:"respect_robots" mapstructure:"respect_robots"`
	Enabled           bool    `yaml:"enabled" mapstructure:"enabled"`
}

// ScanConfig configures competitor mention scanning.
type ScanConfig struct {
	ContextChars int `yaml:"context_chars" mapstructure:"context_chars"`
}

// CompetitorsConfig points at an optional knowledge-base override file.
type CompetitorsConfig struct {
	KnowledgeBasePath string `yaml:"knowledge_base_path" mapstructure:"knowledge_base_path"`
}

// EmbedConfig configures section embeddings.
type EmbedConfig struct {
	Provider        string  `yaml:"provider" mapstructure:"provider"` // "local", "gemini", "jina"
	Dimensions      int     `yaml:"dimensions" mapstructure:"dimensions"`
	MaxChars        int     `yaml:"max_chars" mapstructure:"max_chars"`
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
	SearchThreshold float64 `yaml:"search_threshold" mapstructure:"search_threshold"`
}

// IngestConfig configures PDF text extraction.
type IngestConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"` // "local" or "pdftotext"
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MaxBytes      int64  `yaml:"max_bytes" mapstructure:"max_bytes"`
}

// InsightConfig configures report generation.
type InsightConfig struct {
	Provider       string  `yaml:"provider" mapstructure:"provider"` // "anthropic" or "openai"
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature    float64 `yaml:"temperature" mapstructure:"temperature"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	MaxPromptChars int     `yaml:"max_prompt_chars" mapstructure:"max_prompt_chars"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GeminiConfig holds Google Gemini embedding settings.
type GeminiConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
}

// JinaConfig holds Jina Reader and embeddings settings.
type JinaConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	EmbedBaseURL   string `yaml:"embed_base_url" mapstructure:"embed_base_url"`
	EmbeddingModel string `yaml:"embedding_model" mapstructure:"embedding_model"`
}

// PipelineConfig configures request-level behavior.
type PipelineConfig struct {
	MaxCompetitors int `yaml:"max_competitors" mapstructure:"max_competitors"`
	TimeoutSecs    int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "sqlite", "postgres", "none"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SALES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("fetch.timeout_secs", 15)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36")
	v.SetDefault("fetch.max_body_bytes", 2<<20)
	v.SetDefault("fetch.browser_fallback", false)
	v.SetDefault("fetch.browser_timeout_secs", 30)
	v.SetDefault("crawl.enabled", true)
	v.SetDefault("crawl.max_secondary_pages", 3)
	v.SetDefault("crawl.rate_per_sec", 2.0)
	v.SetDefault("crawl.respect_robots", true)
	v.SetDefault("scan.context_chars", 100)
	v.SetDefault("competitors.knowledge_base_path", "")
	v.SetDefault("embed.provider", "local")
	v.SetDefault("embed.dimensions", 384)
	v.SetDefault("embed.max_chars", 5000)
	v.SetDefault("embed.concurrency", 4)
	v.SetDefault("embed.search_threshold", 0.4)
	v.SetDefault("ingest.provider", "local")
	v.SetDefault("ingest.pdftotext_path", "pdftotext")
	v.SetDefault("ingest.max_bytes", 20<<20)
	v.SetDefault("insight.provider", "anthropic")
	v.SetDefault("insight.max_tokens", 2000)
	v.SetDefault("insight.temperature", 0.3)
	v.SetDefault("insight.timeout_secs", 60)
	v.SetDefault("insight.max_attempts", 2)
	v.SetDefault("insight.max_prompt_chars", 12000)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("openai.model", "gpt-4o")
	v.SetDefault("gemini.embedding_model", "text-embedding-004")
	v.SetDefault("jina.base_url", "https://r.jina.ai")

	// Credentials have no default but must be known keys so SALES_* env
	// vars (and .env) reach them through AutomaticEnv.
	for _, key := range []string{"anthropic.key", "openai.key", "openai.base_url", "gemini.key", "jina.key"} {
		v.SetDefault(key, "")
	}

	v.SetDefault("jina.embed_base_url", "https://api.jina.ai")
	v.SetDefault("jina.embedding_model", "jina-embeddings-v3")
	v.SetDefault("pipeline.max_competitors", 5)
	v.SetDefault("pipeline.timeout_secs", 180)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "sales-assistant.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate checks the settings a command mode depends on. Modes: "insight", "serve", "runs".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "insight", "serve":
		switch c.Insight.Provider {
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required")
			}
		case "openai":
			if c.OpenAI.Key == "" {
				errs = append(errs, "openai.key is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("insight.provider %q is not supported", c.Insight.Provider))
		}
		switch c.Embed.Provider {
		case "local":
		case "gemini":
			if c.Gemini.Key == "" {
				errs = append(errs, "gemini.key is required")
			}
		case "jina":
			if c.Jina.Key == "" {
				errs = append(errs, "jina.key is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("embed.provider %q is not supported", c.Embed.Provider))
		}
		if c.Fetch.TimeoutSecs <= 0 {
			errs = append(errs, "fetch.timeout_secs must be > 0")
		}
		if c.Insight.TimeoutSecs <= 0 {
			errs = append(errs, "insight.timeout_secs must be > 0")
		}
		if c.Insight.MaxPromptChars < 1000 {
			errs = append(errs, "insight.max_prompt_chars must be >= 1000")
		}
		if c.Pipeline.MaxCompetitors < 0 || c.Pipeline.MaxCompetitors > 10 {
			errs = append(errs, "pipeline.max_competitors must be between 0 and 10")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "runs":
		if c.Store.Driver == "none" {
			errs = append(errs, "store.driver must not be none")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
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
