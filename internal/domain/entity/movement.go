package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de movimiento del libro mayor de stock.
const (
	MovementTypeEntry = "ENTRY"
	MovementTypeExit  = "EXIT"
)

// Motivos de movimiento.
const (
	ReasonPurchase   = "purchase"
	ReasonSale       = "sale"
	ReasonAdjustment = "adjustment"
	ReasonReturn     = "return"
	ReasonWaste      = "waste"
)

// ValidReason indica si r es un motivo conocido.
func ValidReason(r string) bool {
	switch r {
	case ReasonPurchase, ReasonSale, ReasonAdjustment, ReasonReturn, ReasonWaste:
		return true
	}
	return false
}

// Movement es un registro inmutable de un cambio de cantidad sobre un lote.
// Qty siempre es positiva; el signo lo da Type. UnitCost es obligatorio en ENTRY.
type Movement struct {
	ID        string
	Type      string
	ProductID string
	LotID     string
	LotCode   string
	Qty       decimal.Decimal
	UnitCost  *decimal.Decimal
	Reason    string
	OrderID   string // opcional
	CreatedBy string
	CreatedAt time.Time
}
