package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotOverrideAudit es la traza durable de que un operador eligió un lote fuera de FEFO.
type LotOverrideAudit struct {
	ID        string
	ProductID string
	LotID     string
	LotCode   string
	Qty       decimal.Decimal // cantidad tomada del lote elegido
	Reason    string
	OrderID   string // pedido o venta POS
	Actor     string
	CreatedAt time.Time
}
