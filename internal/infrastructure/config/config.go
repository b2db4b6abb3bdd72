package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig        `mapstructure:"app"`
	Server      ServerConfig     `mapstructure:"server"`
	OpenRouter  OpenRouterConfig `mapstructure:"openrouter"`
	AI          AIConfig         `mapstructure:"ai"`
	Weather     WeatherConfig    `mapstructure:"weather"`
	Cache       CacheConfig      `mapstructure:"cache"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Planner     PlannerConfig    `mapstructure:"planner"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	DedupWindow time.Duration    `mapstructure:"dedup_window"`
	LogLevel    string           `mapstructure:"log_level"`
	LogDir      string           `mapstructure:"log_dir"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// OpenRouterConfig OpenRouter 配置
type OpenRouterConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`
	MaxTokens  int           `mapstructure:"max_tokens"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

// AIConfig AI 產生設定
type AIConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	EnableCache    bool          `mapstructure:"enable_cache"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CandidateCount int           `mapstructure:"candidate_count"`
	Temperature    float64       `mapstructure:"temperature"`
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
}

// WeatherConfig 天氣查詢設定
type WeatherConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig 緩存配置；RedisAddr 有值時改用 Redis
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
}

// DatabaseConfig 資料庫設定
type DatabaseConfig struct {
	Path        string `mapstructure:"path"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
	LogQueries  bool   `mapstructure:"log_queries"`
}

// PlannerConfig 計畫產生設定
type PlannerConfig struct {
	AllowGenericFallback bool `mapstructure:"allow_generic_fallback"`
	DefaultDays          int  `mapstructure:"default_days"`
	MinSuitable          int  `mapstructure:"min_suitable"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定；.env 不存在時只讀環境變數
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	bindings := map[string]string{
		"openrouter.api_key":             "OPENROUTER_API_KEY",
		"openrouter.model":               "OPENROUTER_MODEL",
		"openrouter.max_tokens":          "MODEL_MAX_TOKENS",
		"cache.enabled":                  "CACHE_ENABLED",
		"cache.redis_addr":               "REDIS_ADDR",
		"database.path":                  "DATABASE_PATH",
		"planner.allow_generic_fallback": "PLANNER_ALLOW_GENERIC_FALLBACK",
		"rate_limit.enabled":             "RATE_LIMIT_ENABLED",
		"rate_limit.requests":            "RATE_LIMIT_REQUESTS",
		"rate_limit.window":              "RATE_LIMIT_WINDOW",
		"dedup_window":                   "DEDUP_WINDOW",
		"log_level":                      "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// OpenRouter 沒有金鑰時視為停用
	if config.OpenRouter.APIKey == "" {
		config.OpenRouter.Enabled = false
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// MaskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func MaskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", true)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "meal-planner")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 1<<20)

	// OpenRouter 設定
	v.SetDefault("openrouter.enabled", true)
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "qwen/qwen-2.5-72b-instruct:free")
	v.SetDefault("openrouter.max_tokens", 4000)
	v.SetDefault("openrouter.timeout", "60s")
	v.SetDefault("openrouter.max_retries", 2)

	// AI 設定
	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.enable_cache", true)
	v.SetDefault("ai.timeout", "45s")
	v.SetDefault("ai.candidate_count", 6)
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.workers", 2)
	v.SetDefault("ai.queue_size", 16)

	// 天氣設定
	v.SetDefault("weather.enabled", true)
	v.SetDefault("weather.base_url", "https://api.open-meteo.com/v1")
	v.SetDefault("weather.timeout", "5s")

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)

	// 資料庫設定
	v.SetDefault("database.path", "meal_planner.db")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.log_queries", false)

	// 計畫設定
	v.SetDefault("planner.allow_generic_fallback", true)
	v.SetDefault("planner.default_days", 7)
	v.SetDefault("planner.min_suitable", 10)

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "logs")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
	}

	if config.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if config.Planner.DefaultDays <= 0 || config.Planner.DefaultDays > 14 {
		return fmt.Errorf("planner default days must be between 1 and 14")
	}

	if config.AI.Timeout <= 0 || config.Weather.Timeout <= 0 {
		return fmt.Errorf("ai and weather timeouts must be positive")
	}

	if config.AI.Workers <= 0 || config.AI.QueueSize < config.AI.Workers {
		return fmt.Errorf("ai queue needs at least one worker and a queue no smaller than the worker count")
	}

	return nil
}
