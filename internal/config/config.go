package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"ENV" validate:"oneof=dev prod"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	HTTPAddr string `mapstructure:"HTTP_ADDR" validate:"required"`
	GRPCAddr string `mapstructure:"GRPC_ADDR" validate:"required"`

	MySQLDSN          string `mapstructure:"MYSQL_DSN" validate:"required"`
	MySQLMaxOpenConns int    `mapstructure:"MYSQL_MAX_OPEN_CONNS" validate:"min=1"`

	// RedisAddr and NATSURL are optional; empty disables the barcode cache,
	// idempotency keys and event publishing.
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	NATSURL     string `mapstructure:"NATS_URL"`
	NATSSubject string `mapstructure:"NATS_SUBJECT" validate:"required"`

	FailurePolicy    string `mapstructure:"CHECKOUT_FAILURE_POLICY" validate:"oneof=halt continue continue_remaining rollback rollback_all"`
	StockReconcile   string `mapstructure:"STOCK_RECONCILE" validate:"oneof=optimistic refetch"`
	RequantityPolicy string `mapstructure:"CART_REQUANTITY" validate:"oneof=keep drop"`

	BarcodeCacheTTL time.Duration `mapstructure:"BARCODE_CACHE_TTL" validate:"gte=0"`
	IdempotencyTTL  time.Duration `mapstructure:"IDEMPOTENCY_TTL" validate:"gt=0"`
	SaleTimeout     time.Duration `mapstructure:"SALE_TIMEOUT" validate:"gt=0"`
}

var defaults = map[string]any{
	"ENV":                     "dev",
	"LOG_LEVEL":               "info",
	"HTTP_ADDR":               ":8080",
	"GRPC_ADDR":               ":50051",
	"MYSQL_DSN":               "root:root@tcp(localhost:3306)/pos?parseTime=true",
	"MYSQL_MAX_OPEN_CONNS":    50,
	"REDIS_ADDR":              "localhost:6379",
	"NATS_URL":                "",
	"NATS_SUBJECT":            "pos",
	"CHECKOUT_FAILURE_POLICY": "halt",
	"STOCK_RECONCILE":         "optimistic",
	"CART_REQUANTITY":         "keep",
	"BARCODE_CACHE_TTL":       "5m",
	"IDEMPOTENCY_TTL":         "24h",
	"SALE_TIMEOUT":            "5s",
}

// Load reads .env (current directory or up to two parents), then the
// environment, then defaults.
func Load() (*Config, error) {
	loadDotEnv()
	return FromViper(viper.New())
}

// FromViper resolves the configuration from v, which may carry overrides.
func FromViper(v *viper.Viper) (*Config, error) {
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv() {
	if err := godotenv.Load(); err == nil {
		return
	}
	dir, _ := os.Getwd()
	for i := 0; i < 2; i++ {
		dir = filepath.Join(dir, "..")
		if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
			return
		}
	}
}
