package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// セッションストアの種別。
const (
	SessionStorePostgres = "postgres"
	SessionStoreMemory   = "memory"
	SessionStoreRedis    = "redis"
)

// パイプライン通知の種別。
const (
	PipelineNotifierLog   = "log"
	PipelineNotifierHTTP  = "http"
	PipelineNotifierRedis = "redis"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL   string
	DBWaitRetries int
	DBWaitDelay   time.Duration

	// Session
	SessionStore           string
	SessionMaxAge          int
	SessionCleanupInterval time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string

	// DynamoDB
	AWSRegion       string
	DynamoEndpoint  string
	EventsTable     string
	UserEventsTable string
	WatchlistTable  string

	// Webhook
	WebhookURLPrefix   string
	WebhookTestTimeout time.Duration

	// Pipeline
	PipelineNotifier     string
	PipelineInterestURL  string
	PipelineRedisChannel string
	PipelineTimeout      time.Duration

	// Rate Limit
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS / CSRF
	CORSAllowedOrigin string
	CSRFEnabled       bool
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合や列挙値が不正な場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	// Optional fields with defaults
	cfg.DBWaitRetries = getEnvInt("DB_WAIT_RETRIES", 10)
	cfg.DBWaitDelay = getEnvDuration("DB_WAIT_DELAY", 2*time.Second)
	cfg.SessionStore = strings.ToLower(getEnvString("SESSION_STORE", SessionStorePostgres))
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.AWSRegion = getEnvString("AWS_REGION", "us-east-1")
	cfg.DynamoEndpoint = getEnvString("DYNAMODB_ENDPOINT", "")
	cfg.EventsTable = getEnvString("DYNAMODB_TABLE_NAME", "portfolio-events")
	cfg.UserEventsTable = getEnvString("DYNAMODB_USER_EVENTS_TABLE", "portfolio-user-events")
	cfg.WatchlistTable = getEnvString("WATCHLIST_TABLE_NAME", "portfolio-watchlists")
	cfg.WebhookURLPrefix = getEnvString("WEBHOOK_URL_PREFIX", "https://hooks.slack.com/services/")
	cfg.WebhookTestTimeout = getEnvDuration("WEBHOOK_TEST_TIMEOUT", 5*time.Second)
	cfg.PipelineNotifier = strings.ToLower(getEnvString("PIPELINE_NOTIFIER", PipelineNotifierLog))
	cfg.PipelineInterestURL = getEnvString("PIPELINE_INTEREST_URL", "")
	cfg.PipelineRedisChannel = getEnvString("PIPELINE_REDIS_CHANNEL", "portfolio:interest-registration")
	cfg.PipelineTimeout = getEnvDuration("PIPELINE_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:5000")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:5000")
	cfg.CSRFEnabled = getEnvBool("CSRF_ENABLED", true)

	switch cfg.SessionStore {
	case SessionStorePostgres, SessionStoreMemory:
	case SessionStoreRedis:
		if cfg.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	default:
		return nil, fmt.Errorf("invalid SESSION_STORE %q (allowed: postgres, memory, redis)", cfg.SessionStore)
	}

	switch cfg.PipelineNotifier {
	case PipelineNotifierLog:
	case PipelineNotifierHTTP:
		if cfg.PipelineInterestURL == "" {
			missing = append(missing, "PIPELINE_INTEREST_URL")
		}
	case PipelineNotifierRedis:
		if cfg.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	default:
		return nil, fmt.Errorf("invalid PIPELINE_NOTIFIER %q (allowed: log, http, redis)", cfg.PipelineNotifier)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	return cfg, nil
}

// UsesRedis はRedis接続が必要な構成かどうかを返す。
func (c *Config) UsesRedis() bool {
	return c.SessionStore == SessionStoreRedis || c.PipelineNotifier == PipelineNotifierRedis
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
