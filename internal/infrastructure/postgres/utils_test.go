package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/pkg/config"
)

func TestTranslateConcurrency_CodigosDeConflicto(t *testing.T) {
	for _, code := range []string{codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure} {
		err := fmt.Errorf("get lot for update: %w", &pgconn.PgError{Code: code})
		got := translateConcurrency(err)
		assert.True(t, errors.Is(got, domain.ErrNotEnoughStock), "código %s", code)
	}
}

func TestTranslateConcurrency_OtrosErroresSinCambios(t *testing.T) {
	assert.Nil(t, translateConcurrency(nil))

	other := &pgconn.PgError{Code: "42P01"}
	assert.Same(t, error(other), translateConcurrency(other))

	plain := errors.New("conexión cerrada")
	assert.Equal(t, plain, translateConcurrency(plain))
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert lot: %w", &pgconn.PgError{Code: codeUniqueViolation})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: codeCheckViolation}))
}

func TestValidID(t *testing.T) {
	assert.True(t, validID("7f0c2a9e-2b1f-4c55-9f0e-4a5d2c3b1a00"))
	assert.False(t, validID("nope"))
	assert.False(t, validID(""))
}

func TestMigrationsEmbebidas(t *testing.T) {
	script, err := migrationsFS.ReadFile("migrations/001_stock.sql")
	assert.NoError(t, err)
	assert.Contains(t, string(script), "CREATE TABLE IF NOT EXISTS stock_lots")
	assert.Contains(t, string(script), "idempotency_keys")
}

func TestPoolConfigFor_TomaTamañoYForzadoIPv4(t *testing.T) {
	cfg := config.DBConfig{
		Host: "db", Port: 5432, User: "u", Password: "p", DBName: "stock", SSLMode: "disable",
		MaxConns: 7, MinConns: 1, ForceIPv4: true,
	}
	pc, err := poolConfigFor(cfg)
	require.NoError(t, err)
	assert.Equal(t, int32(7), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.NotNil(t, pc.ConnConfig.DialFunc)
	assert.NotNil(t, pc.AfterConnect)
	assert.Equal(t, "stock-b2b", pc.ConnConfig.RuntimeParams["application_name"])
}

func TestPoolConfigFor_DSNInvalido(t *testing.T) {
	_, err := poolConfigFor(config.DBConfig{DatabaseURL: "postgres://%zz"})
	assert.Error(t, err)
}
