package repository

import (
	"context"
	"time"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// IdempotencyRepository define el puerto para claves de idempotencia.
type IdempotencyRepository interface {
	Get(ctx context.Context, key string) (*entity.IdempotencyKey, error)
	// Insert falla con domain.ErrDuplicate si la clave ya existe.
	Insert(ctx context.Context, k *entity.IdempotencyKey) error
	Complete(ctx context.Context, key string, statusCode int, body []byte) error
	Delete(ctx context.Context, key string) error
	// ReleaseStale borra la clave solo si sigue en curso y fue reservada en claimedBefore o antes.
	// Devuelve false si otra solicitud ya la completó o la volvió a reservar.
	ReleaseStale(ctx context.Context, key string, claimedBefore time.Time) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
