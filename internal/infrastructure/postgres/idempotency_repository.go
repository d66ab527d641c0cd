package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/repository"
)

var _ repository.IdempotencyRepository = (*IdempotencyRepo)(nil)

// IdempotencyRepo claves de idempotencia sobre PostgreSQL. Se usa con el pool, fuera de
// la transacción de negocio: la clave no se pierde si la operación hace rollback.
type IdempotencyRepo struct {
	q Querier
}

// NewIdempotencyRepository construye el adaptador.
func NewIdempotencyRepository(q Querier) *IdempotencyRepo {
	return &IdempotencyRepo{q: q}
}

// Get obtiene la clave o nil si no existe.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*entity.IdempotencyKey, error) {
	query := `
		SELECT key, operation, request_hash, status_code, response_body, created_by, created_at, expires_at
		FROM idempotency_keys WHERE key = $1`
	var k entity.IdempotencyKey
	err := r.q.QueryRow(ctx, query, key).Scan(
		&k.Key, &k.Operation, &k.RequestHash, &k.StatusCode, &k.ResponseBody, &k.CreatedBy, &k.CreatedAt, &k.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}
	return &k, nil
}

// Insert reserva la clave con status_code 0 (en curso). ON CONFLICT DO NOTHING evita
// abortar la conexión; la colisión se informa como domain.ErrDuplicate.
func (r *IdempotencyRepo) Insert(ctx context.Context, k *entity.IdempotencyKey) error {
	query := `
		INSERT INTO idempotency_keys (key, operation, request_hash, status_code, created_by, created_at, expires_at)
		VALUES ($1, $2, $3, 0, $4, $5, $6)
		ON CONFLICT (key) DO NOTHING`
	cmd, err := r.q.Exec(ctx, query, k.Key, k.Operation, k.RequestHash, k.CreatedBy, k.CreatedAt, k.ExpiresAt)
	if err != nil {
		return fmt.Errorf("insert idempotency key: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

// Complete guarda la respuesta final.
func (r *IdempotencyRepo) Complete(ctx context.Context, key string, statusCode int, body []byte) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE idempotency_keys SET status_code = $2, response_body = $3 WHERE key = $1`,
		key, statusCode, body,
	)
	if err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete libera la clave.
func (r *IdempotencyRepo) Delete(ctx context.Context, key string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete idempotency key: %w", err)
	}
	return nil
}

// ReleaseStale libera una reserva abandonada. El filtro por created_at evita borrar la
// reserva nueva de otra solicitud que llegó antes.
func (r *IdempotencyRepo) ReleaseStale(ctx context.Context, key string, claimedBefore time.Time) (bool, error) {
	cmd, err := r.q.Exec(ctx,
		`DELETE FROM idempotency_keys WHERE key = $1 AND status_code = 0 AND created_at <= $2`,
		key, claimedBefore,
	)
	if err != nil {
		return false, fmt.Errorf("release idempotency key: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

// PurgeExpired borra las claves con expires_at <= now.
func (r *IdempotencyRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	cmd, err := r.q.Exec(ctx, `DELETE FROM idempotency_keys WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("purge idempotency keys: %w", err)
	}
	return cmd.RowsAffected(), nil
}
