package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una reserva.
const (
	ReservationPending   = "PENDING"
	ReservationApplied   = "APPLIED"
	ReservationCancelled = "CANCELLED"
)

// Reservation retiene cantidad de un lote para un pedido antes del movimiento físico.
// Hay a lo sumo una por (order_id, lot_id).
type Reservation struct {
	ID        string
	OrderID   string
	LotID     string
	Qty       decimal.Decimal
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive indica si la reserva descuenta disponibilidad (PENDING o APPLIED).
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationPending || r.Status == ReservationApplied
}
