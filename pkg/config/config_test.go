package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.StoragePostgres, cfg.App.Storage)
	assert.Equal(t, 24*time.Hour, cfg.Stock.IdempotencyTTL)
	assert.Equal(t, 5*time.Second, cfg.Stock.LockTimeout)
	assert.Equal(t, 2*time.Minute, cfg.Stock.IdempotencyLease)
	assert.Equal(t, "stock-b2b", cfg.JWT.Issuer)
	assert.Equal(t, []string{"admin", "encargado"}, cfg.Stock.OverrideRoles)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTP.Addr())
}

func TestLoad_DesdeVariablesDeEntorno(t *testing.T) {
	t.Setenv("APP_STORAGE", "MEMORY")
	t.Setenv("STOCK_DEFAULT_WAREHOUSE_ID", "W1")
	t.Setenv("STOCK_IDEMPOTENCY_TTL", "2h")
	t.Setenv("STOCK_LOCK_TIMEOUT", "3")
	t.Setenv("STOCK_OVERRIDE_ROLES", "admin, supervisor ,")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HTTP_PORT", "9090")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.StorageMemory, cfg.App.Storage)
	assert.Equal(t, "W1", cfg.Stock.DefaultWarehouseID)
	assert.Equal(t, 2*time.Hour, cfg.Stock.IdempotencyTTL)
	assert.Equal(t, 3*time.Second, cfg.Stock.LockTimeout)
	assert.Equal(t, []string{"admin", "supervisor"}, cfg.Stock.OverrideRoles)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 9090, cfg.HTTP.Port)
}

func TestLoad_StorageInvalido(t *testing.T) {
	t.Setenv("APP_STORAGE", "mongo")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestLoad_LeaseDebeSuperarLockTimeout(t *testing.T) {
	t.Setenv("STOCK_LOCK_TIMEOUT", "10s")
	t.Setenv("STOCK_IDEMPOTENCY_LEASE", "10s")
	_, err := config.Load()
	assert.Error(t, err)

	t.Setenv("STOCK_IDEMPOTENCY_LEASE", "45s")
	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Stock.IdempotencyLease)
}

func TestDBConfig_DSNEscapaPassword(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "u", Password: "p@ss:word", DBName: "stock", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p%40ss%3Aword@db:5432/stock?sslmode=disable", c.DSN())

	c.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", c.ConnectionString())
}

func TestLoad_PoolDeConexiones(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "10")
	t.Setenv("DB_MIN_CONNS", "1")
	t.Setenv("DB_FORCE_IPV4", "true")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.DB.MaxConns)
	assert.Equal(t, 1, cfg.DB.MinConns)
	assert.True(t, cfg.DB.ForceIPv4)

	t.Setenv("DB_MIN_CONNS", "20")
	_, err = config.Load()
	assert.Error(t, err)
}
