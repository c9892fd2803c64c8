package config

import (
	"testing"
	"time"

	"github.com/Yusufzhafir/escrow-orderbook/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.App.TokenTTL)
	assert.Equal(t, LedgerTigerBeetle, cfg.App.Ledger)
	assert.Equal(t, AssetList{{Symbol: "USD", Decimals: 2}, {Symbol: "BTC", Decimals: 2}, {Symbol: "ETH", Decimals: 2}}, cfg.App.Assets)
	assert.Equal(t, []string{"3000"}, cfg.TigerBeetle.Addresses)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "user=postgres password= host=localhost port=5432 dbname=orderbook sslmode=disable", cfg.DB.DSN())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_JWT_SECRET", "s3cret")
	t.Setenv("APP_LEDGER", "memory")
	t.Setenv("APP_ASSETS", "sol:9, usdc:9")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, LedgerMemory, cfg.App.Ledger)
	assert.Equal(t, AssetList{{Symbol: "SOL", Decimals: 9}, {Symbol: "USDC", Decimals: 9}}, cfg.App.Assets)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("APP_JWT_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("unknown ledger", func(t *testing.T) {
		t.Setenv("APP_JWT_SECRET", "x")
		t.Setenv("APP_LEDGER", "sqlite")
		_, err := Load()
		assert.ErrorContains(t, err, "APP_LEDGER")
	})
	t.Run("bad asset", func(t *testing.T) {
		t.Setenv("APP_JWT_SECRET", "x")
		t.Setenv("APP_ASSETS", "BTC")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestAssetListSkipsBlanks(t *testing.T) {
	var l AssetList
	require.NoError(t, l.UnmarshalText([]byte("BTC:8,,")))
	assert.Equal(t, AssetList{model.Asset{Symbol: "BTC", Decimals: 8}}, l)
}
