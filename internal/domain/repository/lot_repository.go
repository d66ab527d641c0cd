package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// LotRepository define el puerto de persistencia para StockLot.
// Los métodos *ForUpdate bloquean la fila (SELECT FOR UPDATE) y solo tienen sentido dentro de una transacción.
type LotRepository interface {
	GetByID(ctx context.Context, id string) (*entity.StockLot, error)
	GetForUpdate(ctx context.Context, id string) (*entity.StockLot, error)
	FindByCodeForUpdate(ctx context.Context, productID, lotCode, warehouseID string) (*entity.StockLot, error)
	Create(ctx context.Context, lot *entity.StockLot) error
	UpdateQty(ctx context.Context, id string, qty decimal.Decimal, now time.Time) error
	UpdateCost(ctx context.Context, id string, unitCost decimal.Decimal, now time.Time) error
	// ListEligible devuelve los lotes elegibles por flags y fecha (sin cuarentena, sin bloqueo,
	// vencimiento >= today, qty_on_hand > 0) ordenados por expiry_date, id. warehouseID vacío = todas.
	ListEligible(ctx context.Context, productID, warehouseID string, today time.Time) ([]*entity.StockLot, error)
	// ListByProduct devuelve todos los lotes del producto, sin filtrar, ordenados por expiry_date, id.
	ListByProduct(ctx context.Context, productID, warehouseID string) ([]*entity.StockLot, error)
}
