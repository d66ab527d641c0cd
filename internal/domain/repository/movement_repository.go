package repository

import (
	"context"
	"time"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// MovementRepository define el puerto del libro mayor de movimientos (solo inserción).
type MovementRepository interface {
	Create(ctx context.Context, movement *entity.Movement) error
	ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.Movement, error)
	ListByOrder(ctx context.Context, orderID string) ([]*entity.Movement, error)
}
