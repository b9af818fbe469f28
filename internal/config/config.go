// Package config reads process configuration from the environment. A .env file in
// the working directory, when present, fills in variables that are not already set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type StoreDriver string

const (
	StoreMemory   StoreDriver = "memory"
	StoreSQLite   StoreDriver = "sqlite"
	StorePostgres StoreDriver = "postgres"
)

type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string

	StoreDriver StoreDriver
	DatabaseURL string
	RedisAddr   string

	KafkaBrokers     []string
	OrderEventsTopic string

	GatewayBaseURL       string
	GatewayAPIKey        string
	GatewayTimeout       time.Duration
	GatewayWebhookSecret string

	JWTSecret       string
	DefaultCurrency string

	TaxFallbackRates        string
	TaxFallbackOnStoreError bool
	PaymentPendingTTL       time.Duration

	SendGridAPIKey   string
	ReceiptFromEmail string
}

// Load reads .env (if any) and then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		ServiceName:      getenvDefault("SERVICE_NAME", "minishop-checkout"),
		Env:              getenvDefault("ENV", "dev"),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		StoreDriver:      StoreDriver(strings.ToLower(getenvDefault("STORE_DRIVER", string(StoreMemory)))),
		DatabaseURL:      getenvDefault("DATABASE_URL", "file:checkout.db"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		OrderEventsTopic: getenvDefault("ORDER_EVENTS_TOPIC", "order-events"),
		GatewayBaseURL:   os.Getenv("GATEWAY_BASE_URL"),
		GatewayAPIKey:    os.Getenv("GATEWAY_API_KEY"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		DefaultCurrency:  strings.ToUpper(getenvDefault("DEFAULT_CURRENCY", "USD")),
		TaxFallbackRates: os.Getenv("TAX_FALLBACK_RATES"),
		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		ReceiptFromEmail: os.Getenv("RECEIPT_FROM_EMAIL"),
	}

	cfg.GatewayWebhookSecret = os.Getenv("GATEWAY_WEBHOOK_SECRET")

	var err error
	if cfg.GatewayTimeout, err = durationEnv("GATEWAY_TIMEOUT", 10*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.PaymentPendingTTL, err = durationEnv("PAYMENT_PENDING_TTL", time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.TaxFallbackOnStoreError, err = boolEnv("TAX_FALLBACK_ON_STORE_ERROR", false); err != nil {
		return Config{}, err
	}

	switch cfg.StoreDriver {
	case StoreMemory, StoreSQLite, StorePostgres:
	default:
		return Config{}, fmt.Errorf("config: STORE_DRIVER must be memory, sqlite or postgres, got %q", cfg.StoreDriver)
	}
	if cfg.StoreDriver == StorePostgres && os.Getenv("DATABASE_URL") == "" {
		return Config{}, fmt.Errorf("config: DATABASE_URL is required for the postgres store")
	}
	if cfg.JWTSecret == "" && cfg.Env != "dev" {
		return Config{}, fmt.Errorf("config: JWT_SECRET is required outside dev")
	}
	if cfg.GatewayWebhookSecret == "" && cfg.Env != "dev" {
		return Config{}, fmt.Errorf("config: GATEWAY_WEBHOOK_SECRET is required outside dev")
	}
	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("config: %s must not be negative", key)
	}
	return d, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
