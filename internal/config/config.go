package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

type DBConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
	AutoMigrate     bool
}

type AuthConfig struct {
	AccessSecret string
}

type PaymentsConfig struct {
	DepositLimitRatio decimal.Decimal
	LockTimeout       time.Duration
	DepositSelfOnly   bool
}

type ReportsConfig struct {
	DefaultClientLimit int
	AdminProfileIDs    []uuid.UUID
}

type Config struct {
	Environment string
	HTTP        HTTPConfig
	DB          DBConfig
	Auth        AuthConfig
	Payments    PaymentsConfig
	Reports     ReportsConfig
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("./deploy")
	v.AddConfigPath("./internal/config")
	v.AutomaticEnv()

	v.SetDefault("DB_AUTO_MIGRATE", true)
	v.SetDefault("REPORTS_DEFAULT_CLIENT_LIMIT", 2)

	_ = v.ReadInConfig()

	cfg := &Config{
		Environment: v.GetString("APP_ENV"),
		HTTP: HTTPConfig{
			Host:           v.GetString("HTTP_HOST"),
			Port:           v.GetInt("HTTP_PORT"),
			AllowedOrigins: parseList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		DB: DBConfig{
			DSN:             v.GetString("DB_DSN"),
			MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnMaxLifetime: v.GetString("DB_CONN_MAX_LIFETIME"),
			AutoMigrate:     v.GetBool("DB_AUTO_MIGRATE"),
		},
		Auth: AuthConfig{
			AccessSecret: v.GetString("JWT_ACCESS_SECRET"),
		},
		Payments: PaymentsConfig{
			DepositSelfOnly: v.GetBool("PAYMENTS_DEPOSIT_SELF_ONLY"),
		},
		Reports: ReportsConfig{
			DefaultClientLimit: v.GetInt("REPORTS_DEFAULT_CLIENT_LIMIT"),
		},
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTP.Host == "" {
		cfg.HTTP.Host = "0.0.0.0"
	}
	if cfg.HTTP.Port == 0 {
		cfg.HTTP.Port = 3001
	}

	ratio, err := parseRatio(v.GetString("PAYMENTS_DEPOSIT_LIMIT_RATIO"))
	if err != nil {
		return nil, err
	}
	cfg.Payments.DepositLimitRatio = ratio

	lockTimeout, err := parseDuration(v.GetString("PAYMENTS_LOCK_TIMEOUT"), 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PAYMENTS_LOCK_TIMEOUT: %w", err)
	}
	cfg.Payments.LockTimeout = lockTimeout

	adminIDs, err := parseIDs(parseList(v.GetString("ADMIN_PROFILE_IDS")))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_PROFILE_IDS: %w", err)
	}
	cfg.Reports.AdminProfileIDs = adminIDs

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DB.DSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if cfg.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.Payments.LockTimeout < 0 || (cfg.Payments.LockTimeout > 0 && cfg.Payments.LockTimeout < time.Millisecond) {
		return fmt.Errorf("PAYMENTS_LOCK_TIMEOUT must be 0 or at least 1ms")
	}
	if cfg.Payments.DepositLimitRatio.IsNegative() {
		return fmt.Errorf("PAYMENTS_DEPOSIT_LIMIT_RATIO must not be negative")
	}
	if cfg.Reports.DefaultClientLimit < 0 {
		return fmt.Errorf("REPORTS_DEFAULT_CLIENT_LIMIT must not be negative")
	}
	return nil
}

func parseRatio(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.RequireFromString("0.25"), nil
	}
	ratio, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("PAYMENTS_DEPOSIT_LIMIT_RATIO: %w", err)
	}
	return ratio, nil
}

func parseDuration(raw string, fallback time.Duration) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}

func parseIDs(items []string) ([]uuid.UUID, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		id, err := uuid.Parse(item)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	items := strings.Split(raw, ",")
	result := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
