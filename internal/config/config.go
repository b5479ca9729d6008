package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"

	"github.com/hfiles/clinic-api/internal/calendar"
	"github.com/hfiles/clinic-api/internal/email"
	"github.com/hfiles/clinic-api/internal/service/consent"
	"github.com/hfiles/clinic-api/internal/storage"
	redisbroker "github.com/hfiles/clinic-api/pkg/messaging/redis"
	"github.com/hfiles/clinic-api/pkg/worker"
)

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

type SchedulingConfig struct {
	HookTimeout time.Duration `mapstructure:"hook_timeout"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `mapstructure:"prometheus_enabled"`
	MetricsPath       string `mapstructure:"metrics_path"`
}

type Config struct {
	Server     ServerConfig                 `mapstructure:"server"`
	Database   DatabaseConfig               `mapstructure:"database"`
	Redis      redisbroker.Config           `mapstructure:"redis"`
	SMTP       email.SMTPConfig             `mapstructure:"smtp"`
	Calendar   calendar.Config              `mapstructure:"calendar"`
	Links      consent.LinkConfig           `mapstructure:"links"`
	JWT        JWTConfig                    `mapstructure:"jwt"`
	RateLimit  RateLimitConfig              `mapstructure:"rate_limit"`
	Scheduling SchedulingConfig             `mapstructure:"scheduling"`
	Storage    storage.LocalConfig          `mapstructure:"storage"`
	Outbox     worker.OutboxProcessorConfig `mapstructure:"outbox"`
	Monitoring MonitoringConfig             `mapstructure:"monitoring"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// env overrides for container deployments
	if host := os.Getenv("DB_HOST"); host != "" {
		config.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		config.Database.Port, _ = strconv.Atoi(port)
	}
	if url := os.Getenv("REDIS_URL"); url != "" {
		config.Redis.URL = url
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		config.JWT.Secret = secret
	}

	return &config, nil
}
