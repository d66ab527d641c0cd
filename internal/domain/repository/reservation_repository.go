package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// ReservationRepository define el puerto de persistencia para reservas blandas.
type ReservationRepository interface {
	Create(ctx context.Context, r *entity.Reservation) error
	GetByID(ctx context.Context, id string) (*entity.Reservation, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Reservation, error)
	UpdateStatus(ctx context.Context, id, status string, now time.Time) error
	DeleteByOrderAndLot(ctx context.Context, orderID, lotID string) error
	ListActiveByOrder(ctx context.Context, orderID string) ([]*entity.Reservation, error)
	// SumActiveByLots suma las reservas PENDING/APPLIED por lote. Si excludeOrderID no es vacío,
	// se ignoran las reservas de ese pedido. Los lotes sin reservas no aparecen en el mapa.
	SumActiveByLots(ctx context.Context, lotIDs []string, excludeOrderID string) (map[string]decimal.Decimal, error)
}
