package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockLot es un lote físico de un producto en una bodega, con un único vencimiento y costo.
// (product_id, lot_code, warehouse_id) es único.
type StockLot struct {
	ID            string
	ProductID     string
	WarehouseID   string
	LotCode       string
	ExpiryDate    time.Time       // fecha (sin hora), UTC
	QtyOnHand     decimal.Decimal // nunca negativo, 3 decimales
	UnitCost      decimal.Decimal // > 0, 2 decimales
	IsQuarantined bool
	IsReserved    bool // bloqueo duro, distinto de las reservas blandas
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsBlocked indica si el lote está en cuarentena o con bloqueo duro.
func (l *StockLot) IsBlocked() bool {
	return l.IsQuarantined || l.IsReserved
}

// IsExpired indica si el lote venció respecto de today (comparación por fecha).
func (l *StockLot) IsExpired(today time.Time) bool {
	return l.ExpiryDate.Before(today)
}
