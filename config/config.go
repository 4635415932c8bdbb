package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Port        string     `yaml:"port" env:"PORT" env-default:"8080"`
	Environment string     `yaml:"environment" env:"ENVIRONMENT" env-default:"development"`
	Database    Database   `yaml:"database"`
	Redis       Redis      `yaml:"redis"`
	Kafka       Kafka      `yaml:"kafka"`
	Dispatcher  Dispatcher `yaml:"dispatcher"`
	Worker      Worker     `yaml:"worker"`
	Channels    Channels   `yaml:"channels"`
}

type Channels struct {
	SMS      SMSChannel      `yaml:"sms"`
	Telegram TelegramChannel `yaml:"telegram"`
	Whatsapp WhatsappChannel `yaml:"whatsapp"`
}

type SMSChannel struct {
	AccountSID string `yaml:"account_sid" env:"SMS_ACCOUNT_SID" env-default:""`
	AuthToken  string `yaml:"auth_token" env:"SMS_AUTH_TOKEN" env-default:""`
	FromNumber string `yaml:"from_number" env:"SMS_FROM_NUMBER" env-default:""`
	BaseURL    string `yaml:"base_url" env:"SMS_BASE_URL" env-default:"https://api.twilio.com"`
}

type TelegramChannel struct {
	BotToken string `yaml:"bot_token" env:"TELEGRAM_BOT_TOKEN" env-default:""`
	BaseURL  string `yaml:"base_url" env:"TELEGRAM_BASE_URL" env-default:"https://api.telegram.org"`
}

type WhatsappChannel struct {
	APIKey  string `yaml:"api_key" env:"WHATSAPP_API_KEY" env-default:""`
	BaseURL string `yaml:"base_url" env:"WHATSAPP_BASE_URL" env-default:""`
}

type Worker struct {
	MaxWorkers           int `yaml:"max_workers" env:"WORKER_MAX_WORKERS" env-default:"20"`
	RecoverySweepSeconds int `yaml:"recovery_sweep_seconds" env:"WORKER_RECOVERY_SWEEP" env-default:"60"`
	RecoveryMinAgeSecs   int `yaml:"recovery_min_age_seconds" env:"WORKER_RECOVERY_MIN_AGE" env-default:"120"`
}

type Dispatcher struct {
	MaxAttempts        int `yaml:"max_attempts" env:"DISPATCH_MAX_ATTEMPTS" env-default:"3"`
	BackoffBaseMillis  int `yaml:"backoff_base_millis" env:"DISPATCH_BACKOFF_BASE_MS" env-default:"500"`
	SendTimeoutSeconds int `yaml:"send_timeout_seconds" env:"DISPATCH_SEND_TIMEOUT" env-default:"10"`
}

type Database struct {
	User         string `yaml:"user" env:"DB_USER" env-required:"true"`
	Password     string `yaml:"password" env:"DB_PASSWORD" env-required:"true"`
	DatabaseName string `yaml:"database_name" env:"DB_NAME" env-required:"true"`
	Host         string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port         string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	SSLMode      string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`

	// Connection Pool Settings
	MaxOpenConns    int `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	MaxIdleConns    int `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime_minutes" env:"DB_CONN_MAX_LIFETIME" env-default:"30"`
}

func (d *Database) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DatabaseName, d.SSLMode)
}

type Redis struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

func (r *Redis) GetRedisURL() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

type Kafka struct {
	Brokers           []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092" env-separator:","`
	NotificationTopic string   `yaml:"notification_topic" env:"KAFKA_NOTIFICATION_TOPIC" env-default:"booking-notifications"`
	ConsumerGroup     string   `yaml:"consumer_group" env:"KAFKA_CONSUMER_GROUP" env-default:"roomreserve-notifier"`
}

func Initialise(configPath string, useEnv bool) (*Config, error) {
	cfg := &Config{}

	if useEnv {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment variables: %w", err)
		}
		return cfg, nil
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
			return cfg, nil
		}
	}

	// Fallback to environment variables
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}

	return cfg, nil
}
