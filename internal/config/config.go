package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Telegram  TelegramConfig
	Referral  ReferralConfig
	Dashboard DashboardConfig
}

type ServerConfig struct {
	Port         string
	Environment  string
	AllowOrigins string
}

type DatabaseConfig struct {
	Driver   string // postgres or memory
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type AuthConfig struct {
	JWTSecret string
}

// TelegramConfig configures operator alerts. Alerts are disabled when
// BotToken or AlertChatID is empty.
type TelegramConfig struct {
	BotToken    string
	AlertChatID int64
}

type ReferralConfig struct {
	BaseURL           string // prefix of generated referral URLs
	SiteURL           string // fallback redirect for the click path
	Location          *time.Location
	ReconcileInterval time.Duration
}

type DashboardConfig struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	alertChatID, _ := strconv.ParseInt(getEnv("TELEGRAM_ALERT_CHAT_ID", "0"), 10, 64)
	retries, _ := strconv.Atoi(getEnv("DASHBOARD_MAX_RETRIES", "2"))

	loc := time.Local
	if tz := getEnv("ANALYTICS_TIMEZONE", ""); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, err
		}
		loc = l
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Environment:  getEnv("ENVIRONMENT", "development"),
			AllowOrigins: getEnv("ALLOW_ORIGINS", "*"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("STORAGE_DRIVER", "postgres"),
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "virion"),
			Password: getEnv("DB_PASSWORD", "virion"),
			Name:     getEnv("DB_NAME", "virion"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			CacheTTL: getDuration("CACHE_TTL", time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:   getEnv("KAFKA_TOPIC", "referral-events"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "your-secret-key-change-in-production"),
		},
		Telegram: TelegramConfig{
			BotToken:    getEnv("TELEGRAM_BOT_TOKEN", ""),
			AlertChatID: alertChatID,
		},
		Referral: ReferralConfig{
			BaseURL:           strings.TrimRight(getEnv("REFERRAL_BASE_URL", "http://localhost:8080/referral"), "/"),
			SiteURL:           getEnv("SITE_URL", "/"),
			Location:          loc,
			ReconcileInterval: getDuration("RECONCILE_INTERVAL", 15*time.Minute),
		},
		Dashboard: DashboardConfig{
			Timeout:      getDuration("DASHBOARD_TIMEOUT", 10*time.Second),
			MaxRetries:   retries,
			RetryBackoff: getDuration("DASHBOARD_RETRY_BACKOFF", time.Second),
		},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
