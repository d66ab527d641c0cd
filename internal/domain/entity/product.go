package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product es dato de referencia de otro módulo; el núcleo de stock no lo modifica.
type Product struct {
	ID        string
	SKU       string
	Name      string
	Price     decimal.Decimal // precio de venta
	TaxRate   decimal.Decimal // ej. 0.21
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
