package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uma-arai/sbcntr-calendar/internal/common/database"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Env         string
	StoreDriver string
	DB          database.Config
	HTTP        HTTPConfig
	Mail        MailConfig
	Telegram    TelegramConfig
	NATS        NATSConfig
	SFN         SFNConfig
	Reminder    ReminderConfig
	Seed        SeedConfig

	EnableTracing bool
}

type HTTPConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	AllowedOrigins  []string
	PublicRateRPS   float64
	PublicRateBurst int
	// TrustProxyHeaders はプロキシのヘッダーから送信元IPを決めるかどうかです
	TrustProxyHeaders bool
}

type MailConfig struct {
	MailerSendAPIKey string
	FromName         string
	FromEmail        string
}

type TelegramConfig struct {
	BotToken string
	BaseURL  string
}

type NATSConfig struct {
	URL string
}

type SFNConfig struct {
	StateMachineARN string
}

type ReminderConfig struct {
	Schedule string
	Timeout  time.Duration
	// Embedded はAPIプロセス内でリマインドを動かすかどうかです
	Embedded bool
}

// SeedConfig はメモリストア起動時に登録する開発者です
type SeedConfig struct {
	DeveloperID    string
	DisplayName    string
	Email          string
	PublicToken    string
	TelegramChatID string
}

// LoadConfig は設定を読み込みます
// .envが存在する場合は先に読み込みますが、既存の環境変数は上書きしません
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env file: %v", err)
	}

	cfg := &Config{
		Env:         getEnvOrDefault("ENV", "LOCAL"),
		StoreDriver: strings.ToLower(getEnvOrDefault("STORE_DRIVER", StoreDriverPostgres)),
		DB: database.Config{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvAsIntOrDefault("DB_PORT", 5432),
			UserName: getEnvOrDefault("DB_USERNAME", "sbcntrapp"),
			Password: getEnvOrDefault("DB_PASSWORD", "password"),
			DBName:   getEnvOrDefault("DB_NAME", "calendar"),
			SSLMode:  os.Getenv("DB_SSL_MODE"),
		},
		HTTP: HTTPConfig{
			Addr:              getEnvOrDefault("HTTP_ADDR", ":8080"),
			ReadTimeout:       getEnvAsDurationOrDefault("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:      getEnvAsDurationOrDefault("HTTP_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:       getEnvAsDurationOrDefault("HTTP_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins:    getEnvAsListOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			PublicRateRPS:     getEnvAsFloatOrDefault("PUBLIC_BOOKING_RATE_RPS", 0.2),
			PublicRateBurst:   getEnvAsIntOrDefault("PUBLIC_BOOKING_RATE_BURST", 5),
			TrustProxyHeaders: getEnvAsBoolOrDefault("TRUST_PROXY_HEADERS", false),
		},
		Mail: MailConfig{
			MailerSendAPIKey: os.Getenv("MAILERSEND_API_KEY"),
			FromName:         getEnvOrDefault("MAILER_FROM_NAME", "Interview Calendar"),
			FromEmail:        os.Getenv("MAILER_FROM"),
		},
		Telegram: TelegramConfig{
			BotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
			BaseURL:  getEnvOrDefault("TELEGRAM_API_BASE_URL", "https://api.telegram.org"),
		},
		NATS: NATSConfig{
			URL: os.Getenv("NATS_URL"),
		},
		SFN: SFNConfig{
			StateMachineARN: os.Getenv("SFN_NOTIFICATION_STATE_MACHINE_ARN"),
		},
		Reminder: ReminderConfig{
			Schedule: getEnvOrDefault("REMINDER_SCHEDULE", "*/15 * * * *"),
			Timeout:  getEnvAsDurationOrDefault("REMINDER_TIMEOUT", 5*time.Minute),
			Embedded: getEnvAsBoolOrDefault("REMINDER_EMBEDDED", false),
		},
		Seed: SeedConfig{
			DeveloperID:    os.Getenv("SEED_DEVELOPER_ID"),
			DisplayName:    getEnvOrDefault("SEED_DEVELOPER_NAME", "Developer"),
			Email:          getEnvOrDefault("SEED_DEVELOPER_EMAIL", "dev@example.com"),
			PublicToken:    getEnvOrDefault("SEED_DEVELOPER_TOKEN", "local-dev-token"),
			TelegramChatID: os.Getenv("SEED_DEVELOPER_TELEGRAM_CHAT_ID"),
		},
		EnableTracing: false,
	}

	// メモリストアは同一プロセスでしか参照できないため、リマインドも同居させる
	if cfg.StoreDriver == StoreDriverMemory {
		cfg.Reminder.Embedded = true
	}

	// 環境変数[SBCNTR_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("SBCNTR_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

// IsLocal reports whether the process runs outside AWS.
func (c *Config) IsLocal() bool {
	return c.Env == "LOCAL"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Printf("Environment variable %s is not set, using default value", key)
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Printf("Environment variable %s is not an integer, using default value", key)
	}
	return defaultValue
}

func getEnvAsFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		log.Printf("Environment variable %s is not a number, using default value", key)
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Environment variable %s is not a boolean, using default value", key)
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Environment variable %s is not a duration, using default value", key)
	}
	return defaultValue
}

func getEnvAsListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
