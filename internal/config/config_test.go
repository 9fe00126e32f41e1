package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "halt", cfg.FailurePolicy)
	assert.Equal(t, 5*time.Minute, cfg.BarcodeCacheTTL)
	assert.Equal(t, 24*time.Hour, cfg.IdempotencyTTL)
	assert.Equal(t, 50, cfg.MySQLMaxOpenConns)
}

func TestFromViper_Env(t *testing.T) {
	t.Setenv("CHECKOUT_FAILURE_POLICY", "rollback")
	t.Setenv("STOCK_RECONCILE", "refetch")
	t.Setenv("IDEMPOTENCY_TTL", "90s")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "rollback", cfg.FailurePolicy)
	assert.Equal(t, "refetch", cfg.StockReconcile)
	assert.Equal(t, 90*time.Second, cfg.IdempotencyTTL)
}

func TestFromViper_Invalid(t *testing.T) {
	tests := map[string]string{
		"ENV":                     "staging",
		"CHECKOUT_FAILURE_POLICY": "retry",
		"STOCK_RECONCILE":         "never",
		"CART_REQUANTITY":         "halve",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			v := viper.New()
			v.Set(key, value)
			_, err := FromViper(v)
			assert.Error(t, err)
		})
	}
}
