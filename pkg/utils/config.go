package utils

import (
	"errors"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	Email     EmailConfig
	Gateway   GatewayConfig
	Engine    EngineConfig
	RateLimit RateLimitConfig
}

type AppConfig struct {
	Name          string
	Port          string
	Debug         bool
	LogPath       string
	StorageDriver string // postgres | memory
}

type DatabaseConfig struct {
	Host          string
	Port          string
	Name          string
	User          string
	Password      string
	MaxConns      int32
	MigrationsDir string
}

type JWTConfig struct {
	Secret string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type EmailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	NotifyTo string
}

type GatewayConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
	OnboardingURL string
}

type EngineConfig struct {
	PlatformFeePercent float64
	IntentTTL          time.Duration
	SweepInterval      time.Duration
	AutoCompleteGrace  time.Duration
}

type RateLimitConfig struct {
	Webhook    string
	Withdrawal string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "gig-booking")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("STORAGE_DRIVER", "postgres")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_MIGRATIONS_DIR", "migrations")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("RABBITMQ_EXCHANGE", "gig.events")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("GATEWAY_CURRENCY", "INR")
	viper.SetDefault("GATEWAY_TIMEOUT", "10s")
	viper.SetDefault("PLATFORM_FEE_PERCENT", 10.0)
	viper.SetDefault("INTENT_TTL", "30m")
	viper.SetDefault("SWEEP_INTERVAL", "1m")
	viper.SetDefault("AUTO_COMPLETE_GRACE", "24h")
	viper.SetDefault("RATE_LIMIT_WEBHOOK", "120-1m")
	viper.SetDefault("RATE_LIMIT_WITHDRAWAL", "5-1m")

	// .env is optional, the environment alone is enough
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:          viper.GetString("APP_NAME"),
			Port:          viper.GetString("PORT"),
			Debug:         viper.GetBool("DEBUG"),
			LogPath:       viper.GetString("LOG_PATH"),
			StorageDriver: viper.GetString("STORAGE_DRIVER"),
		},
		Database: DatabaseConfig{
			Host:          viper.GetString("DB_HOST"),
			Port:          viper.GetString("DB_PORT"),
			Name:          viper.GetString("DB_NAME"),
			User:          viper.GetString("DB_USER"),
			Password:      viper.GetString("DB_PASS"),
			MaxConns:      viper.GetInt32("DB_MAX_CONNS"),
			MigrationsDir: viper.GetString("DB_MIGRATIONS_DIR"),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      viper.GetString("RABBITMQ_URL"),
			Exchange: viper.GetString("RABBITMQ_EXCHANGE"),
		},
		Email: EmailConfig{
			Host:     viper.GetString("SMTP_HOST"),
			Port:     viper.GetInt("SMTP_PORT"),
			User:     viper.GetString("SMTP_USER"),
			Password: viper.GetString("SMTP_PASS"),
			From:     viper.GetString("EMAIL_FROM"),
			NotifyTo: viper.GetString("EMAIL_NOTIFY_TO"),
		},
		Gateway: GatewayConfig{
			KeyID:         viper.GetString("GATEWAY_KEY_ID"),
			KeySecret:     viper.GetString("GATEWAY_KEY_SECRET"),
			WebhookSecret: viper.GetString("GATEWAY_WEBHOOK_SECRET"),
			Currency:      viper.GetString("GATEWAY_CURRENCY"),
			Timeout:       viper.GetDuration("GATEWAY_TIMEOUT"),
			OnboardingURL: viper.GetString("GATEWAY_ONBOARDING_URL"),
		},
		Engine: EngineConfig{
			PlatformFeePercent: viper.GetFloat64("PLATFORM_FEE_PERCENT"),
			IntentTTL:          viper.GetDuration("INTENT_TTL"),
			SweepInterval:      viper.GetDuration("SWEEP_INTERVAL"),
			AutoCompleteGrace:  viper.GetDuration("AUTO_COMPLETE_GRACE"),
		},
		RateLimit: RateLimitConfig{
			Webhook:    viper.GetString("RATE_LIMIT_WEBHOOK"),
			Withdrawal: viper.GetString("RATE_LIMIT_WITHDRAWAL"),
		},
	}

	return config, nil
}
