package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bilgisen/wastewatch/internal/models"
	"github.com/joho/godotenv"
)

// Config is the static configuration snapshot read once at process start.
type Config struct {
	// Server configuration
	Port            string        `json:"port"`
	Env             string        `json:"env"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	HTTPTimeout     time.Duration `json:"http_timeout"`

	// Database
	DBDriver    string `json:"db_driver"`
	DatabaseURL string `json:"database_url"`

	// Redis configuration
	RedisURL    string        `json:"redis_url"`
	RedisPrefix string        `json:"redis_prefix"`
	CacheTTL    time.Duration `json:"cache_ttl"`

	// Generation service
	AIApiKey           string        `json:"-"`
	AIBaseURL          string        `json:"ai_base_url"`
	AIModel            string        `json:"ai_model"`
	AITimeout          time.Duration `json:"ai_timeout"`
	AIMaxTokens        int           `json:"ai_max_tokens"`
	AITemperature      float64       `json:"ai_temperature"`
	GenerationFallback bool          `json:"generation_fallback"`

	// WordPress
	WordPressURL         string        `json:"wordpress_url"`
	WordPressUsername    string        `json:"wordpress_username"`
	WordPressAppPassword string        `json:"-"`
	WordPressTimeout     time.Duration `json:"wordpress_timeout"`

	// Pipeline
	ScrapeInterval     time.Duration `json:"scrape_interval"`
	MaxArticlesPerRun  int           `json:"max_articles_per_run"`
	MaxItemsPerFeed    int           `json:"max_items_per_feed"`
	AutoGenerate       bool          `json:"auto_generate"`
	AutoPublish        bool          `json:"auto_publish"`
	SchedulerAutostart bool          `json:"scheduler_autostart"`
	RunTimeout         time.Duration `json:"run_timeout"`
	SeedDemoOnEmpty    bool          `json:"seed_demo_on_empty"`

	// Ingestion
	FeedSourcePath string              `json:"feed_source_path"`
	Feeds          []models.FeedSource `json:"feeds"`
	RelevanceTerms []string            `json:"relevance_terms"`
	FeedTimeout    time.Duration       `json:"feed_timeout"`
	MaxArticleAge  time.Duration       `json:"max_article_age"`
	ExtractContent bool                `json:"extract_content"`
	MaxConcurrency int                 `json:"max_concurrency"`

	// Export and CloudFlare R2
	ExportDir   string `json:"export_dir"`
	R2Endpoint  string `json:"r2_endpoint"`
	R2AccessKey string `json:"-"`
	R2SecretKey string `json:"-"`
	R2Bucket    string `json:"r2_bucket"`
	R2PublicURL string `json:"r2_public_url"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`
}

// Load loads configuration from environment variables and validates it
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := FromEnv()

	if cfg.FeedSourcePath != "" {
		sources, err := LoadSources(cfg.FeedSourcePath)
		if err != nil {
			return nil, fmt.Errorf("load feed sources: %w", err)
		}
		if len(sources.Feeds) > 0 {
			cfg.Feeds = sources.Feeds
		}
		if len(sources.Terms) > 0 {
			cfg.RelevanceTerms = sources.Terms
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// FromEnv builds a Config from the process environment without touching files.
func FromEnv() *Config {
	cfg := &Config{
		Port:            getEnv("PORT", "5000"),
		Env:             getEnv("APP_ENV", "development"),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		HTTPTimeout:     getEnvAsDuration("HTTP_TIMEOUT", 30*time.Second),

		DBDriver:    strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		DatabaseURL: getEnv("DATABASE_URL", "./data/wastewatch.db"),

		RedisURL:    getEnv("REDIS_URL", ""),
		RedisPrefix: getEnv("REDIS_PREFIX", "wastewatch:seen:"),
		CacheTTL:    getEnvAsDuration("CACHE_TTL", 720*time.Hour), // 30 days

		AIApiKey:           getEnv("PERPLEXITY_API_KEY", ""),
		AIBaseURL:          getEnv("AI_BASE_URL", "https://api.perplexity.ai"),
		AIModel:            getEnv("AI_MODEL", "sonar-pro"),
		AITimeout:          getEnvAsDuration("AI_TIMEOUT", 90*time.Second),
		AIMaxTokens:        getEnvAsInt("AI_MAX_TOKENS", 4000),
		AITemperature:      getEnvAsFloat("AI_TEMPERATURE", 0.7),
		GenerationFallback: getEnvAsBool("GENERATION_FALLBACK", true),

		WordPressURL:         strings.TrimRight(getEnv("WORDPRESS_URL", ""), "/"),
		WordPressUsername:    getEnv("WORDPRESS_USERNAME", ""),
		WordPressAppPassword: getEnv("WORDPRESS_APP_PASSWORD", ""),
		WordPressTimeout:     getEnvAsDuration("WORDPRESS_TIMEOUT", 30*time.Second),

		ScrapeInterval:     time.Duration(getEnvAsInt("SCRAPE_INTERVAL_MINUTES", 60)) * time.Minute,
		MaxArticlesPerRun:  getEnvAsInt("MAX_ARTICLES_PER_RUN", 10),
		AutoGenerate:       getEnvAsBool("AUTO_GENERATE_BLOGS", true),
		AutoPublish:        getEnvAsBool("AUTO_PUBLISH_DRAFTS", false),
		SchedulerAutostart: getEnvAsBool("SCHEDULER_AUTOSTART", false),
		RunTimeout:         getEnvAsDuration("RUN_TIMEOUT", 30*time.Minute),
		SeedDemoOnEmpty:    getEnvAsBool("SEED_DEMO_ON_EMPTY", false),

		FeedSourcePath: getEnv("FEED_SOURCE_PATH", ""),
		Feeds:          DefaultFeeds(),
		RelevanceTerms: getEnvAsList("RELEVANCE_TERMS", DefaultRelevanceTerms()),
		FeedTimeout:    getEnvAsDuration("FEED_TIMEOUT", 15*time.Second),
		MaxArticleAge:  getEnvAsDuration("MAX_ARTICLE_AGE", 7*24*time.Hour),
		ExtractContent: getEnvAsBool("EXTRACT_CONTENT", true),
		MaxConcurrency: getEnvAsInt("MAX_CONCURRENCY", 5),

		ExportDir:   getEnv("EXPORT_DIR", "generated_posts"),
		R2Endpoint:  getEnv("R2_ENDPOINT", ""),
		R2AccessKey: getEnv("R2_ACCESS_KEY", ""),
		R2SecretKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:    getEnv("R2_BUCKET", ""),
		R2PublicURL: strings.TrimRight(getEnv("R2_PUBLIC_URL", ""), "/"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
	// Each feed contributes at most one run's worth of items unless set apart.
	cfg.MaxItemsPerFeed = getEnvAsInt("MAX_ITEMS_PER_FEED", cfg.MaxArticlesPerRun)
	return cfg
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ScrapeInterval <= 0 {
		return fmt.Errorf("SCRAPE_INTERVAL_MINUTES must be positive")
	}
	if c.MaxArticlesPerRun <= 0 {
		return fmt.Errorf("MAX_ARTICLES_PER_RUN must be positive")
	}
	if c.MaxItemsPerFeed <= 0 {
		return fmt.Errorf("MAX_ITEMS_PER_FEED must be positive")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("MAX_CONCURRENCY must be positive")
	}
	switch c.DBDriver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.DBDriver != "memory" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for driver %s", c.DBDriver)
	}
	if len(c.RelevanceTerms) == 0 {
		return fmt.Errorf("at least one relevance term is required")
	}
	if c.WordPressURL != "" && !strings.HasPrefix(c.WordPressURL, "http") {
		return fmt.Errorf("WORDPRESS_URL must be an http(s) URL")
	}
	return nil
}

// GenerationServiceAvailable is resolved once and threaded into the generation stage.
func (c *Config) GenerationServiceAvailable() bool {
	return c.AIApiKey != ""
}

// ContentSystemAvailable reports whether WordPress credentials are present.
func (c *Config) ContentSystemAvailable() bool {
	return c.WordPressURL != "" && c.WordPressUsername != "" && c.WordPressAppPassword != ""
}

func (c *Config) ObjectStorageEnabled() bool {
	return c.R2Endpoint != "" && c.R2AccessKey != "" && c.R2SecretKey != "" && c.R2Bucket != ""
}

// IsDevelopment switches on pretty console logging.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Helper functions for environment variable handling
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultVal int) int {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %d", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid %s value: %v, using default: %v", name, err, defaultVal)
		return defaultVal
	}
	return value
}

func getEnvAsList(name string, defaultVal []string) []string {
	valueStr := getEnv(name, "")
	if valueStr == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
