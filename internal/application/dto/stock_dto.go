package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/application/inventory"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// DateLayout formato de fechas de vencimiento en la API.
const DateLayout = "2006-01-02"

// EntryRequest body para POST /api/stock/entries.
type EntryRequest struct {
	ProductID   string          `json:"product_id"`
	LotCode     string          `json:"lot_code"`
	ExpiryDate  string          `json:"expiry_date"` // YYYY-MM-DD
	Qty         decimal.Decimal `json:"qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	WarehouseID string          `json:"warehouse_id,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	OrderID     string          `json:"order_id,omitempty"`
}

// ExitRequest body para POST /api/stock/exits. Con lot_id se trata como override
// y lot_override_reason pasa a ser obligatorio.
type ExitRequest struct {
	ProductID         string          `json:"product_id"`
	Qty               decimal.Decimal `json:"qty"`
	OrderID           string          `json:"order_id,omitempty"`
	WarehouseID       string          `json:"warehouse_id,omitempty"`
	MinShelfLifeDays  *int            `json:"min_shelf_life_days,omitempty"`
	Reason            string          `json:"reason,omitempty"`
	LotID             string          `json:"lot_id,omitempty"`
	LotOverrideReason string          `json:"lot_override_reason,omitempty"`
}

// IsOverride indica si el operador eligió un lote.
func (r ExitRequest) IsOverride() bool {
	return r.LotID != ""
}

// MovementDTO movimiento del libro mayor.
type MovementDTO struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	ProductID string           `json:"product_id"`
	LotID     string           `json:"lot_id"`
	LotCode   string           `json:"lot_code"`
	Qty       decimal.Decimal  `json:"qty"`
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
	Reason    string           `json:"reason"`
	OrderID   string           `json:"order_id,omitempty"`
	CreatedBy string           `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
}

// MovementsResponse respuesta de una salida (uno o más movimientos en orden FEFO).
type MovementsResponse struct {
	Movements []MovementDTO   `json:"movements"`
	Total     decimal.Decimal `json:"total"`
}

// ReservationLineRequest línea de reserva por lote.
type ReservationLineRequest struct {
	LotID string          `json:"lot_id"`
	Qty   decimal.Decimal `json:"qty"`
}

// CreateReservationsRequest body para POST /api/stock/reservations.
type CreateReservationsRequest struct {
	OrderID string                   `json:"order_id"`
	Lines   []ReservationLineRequest `json:"lines"`
}

// ReservationDTO reserva blanda de un lote.
type ReservationDTO struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	LotID     string          `json:"lot_id"`
	Qty       decimal.Decimal `json:"qty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CancelOrderResponse resultado de cancelar las reservas de un pedido.
type CancelOrderResponse struct {
	OrderID   string `json:"order_id"`
	Cancelled int    `json:"cancelled"`
}

// QtyAvailableResponse disponible de un lote.
type QtyAvailableResponse struct {
	LotID        string          `json:"lot_id"`
	QtyAvailable decimal.Decimal `json:"qty_available"`
}

// LotAvailabilityDTO lote con disponible y elegibilidad.
type LotAvailabilityDTO struct {
	LotID         string          `json:"lot_id"`
	LotCode       string          `json:"lot_code"`
	WarehouseID   string          `json:"warehouse_id"`
	ExpiryDate    string          `json:"expiry_date"`
	DaysToExpiry  int             `json:"days_to_expiry"`
	QtyOnHand     decimal.Decimal `json:"qty_on_hand"`
	QtyReserved   decimal.Decimal `json:"qty_reserved"`
	QtyAvailable  decimal.Decimal `json:"qty_available"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	IsQuarantined bool            `json:"is_quarantined"`
	IsReserved    bool            `json:"is_reserved"`
	Eligible      bool            `json:"eligible"`
}

// LotSummaryResponse existencias y valorización de un producto.
type LotSummaryResponse struct {
	ProductID      string               `json:"product_id"`
	Lots           []LotAvailabilityDTO `json:"lots"`
	TotalOnHand    decimal.Decimal      `json:"total_on_hand"`
	TotalAvailable decimal.Decimal      `json:"total_available"`
	AverageCost    decimal.Decimal      `json:"average_cost"`
	TotalCost      decimal.Decimal      `json:"total_cost"`
}

// OverrideAuditDTO traza de un override de lote.
type OverrideAuditDTO struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	LotID     string          `json:"lot_id"`
	LotCode   string          `json:"lot_code"`
	Qty       decimal.Decimal `json:"qty"`
	Reason    string          `json:"reason"`
	OrderID   string          `json:"order_id,omitempty"`
	Actor     string          `json:"actor"`
	CreatedAt time.Time       `json:"created_at"`
}

// ListResponse envoltorio de listados paginados.
type ListResponse[T any] struct {
	Items []T          `json:"items"`
	Page  PageResponse `json:"page"`
}

// MovementFromEntity mapea un movimiento al DTO.
func MovementFromEntity(m *entity.Movement) MovementDTO {
	return MovementDTO{
		ID:        m.ID,
		Type:      m.Type,
		ProductID: m.ProductID,
		LotID:     m.LotID,
		LotCode:   m.LotCode,
		Qty:       m.Qty,
		UnitCost:  m.UnitCost,
		Reason:    m.Reason,
		OrderID:   m.OrderID,
		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
	}
}

// MovementsFromEntities mapea una lista y suma las cantidades.
func MovementsFromEntities(list []*entity.Movement) MovementsResponse {
	out := MovementsResponse{Movements: make([]MovementDTO, 0, len(list)), Total: decimal.Zero}
	for _, m := range list {
		out.Movements = append(out.Movements, MovementFromEntity(m))
		out.Total = out.Total.Add(m.Qty)
	}
	return out
}

// ReservationFromEntity mapea una reserva al DTO.
func ReservationFromEntity(r *entity.Reservation) ReservationDTO {
	return ReservationDTO{
		ID:        r.ID,
		OrderID:   r.OrderID,
		LotID:     r.LotID,
		Qty:       r.Qty,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// OverrideFromEntity mapea una traza de override al DTO.
func OverrideFromEntity(a *entity.LotOverrideAudit) OverrideAuditDTO {
	return OverrideAuditDTO{
		ID:        a.ID,
		ProductID: a.ProductID,
		LotID:     a.LotID,
		LotCode:   a.LotCode,
		Qty:       a.Qty,
		Reason:    a.Reason,
		OrderID:   a.OrderID,
		Actor:     a.Actor,
		CreatedAt: a.CreatedAt,
	}
}

// LotSummaryFromResult mapea el resumen de lotes.
func LotSummaryFromResult(s *inventory.LotSummary) LotSummaryResponse {
	out := LotSummaryResponse{
		ProductID:      s.ProductID,
		Lots:           make([]LotAvailabilityDTO, 0, len(s.Lots)),
		TotalOnHand:    s.TotalOnHand,
		TotalAvailable: s.TotalAvailable,
		AverageCost:    s.Valuation.AverageCost,
		TotalCost:      s.Valuation.TotalCost,
	}
	for _, la := range s.Lots {
		out.Lots = append(out.Lots, LotAvailabilityDTO{
			LotID:         la.Lot.ID,
			LotCode:       la.Lot.LotCode,
			WarehouseID:   la.Lot.WarehouseID,
			ExpiryDate:    la.Lot.ExpiryDate.Format(DateLayout),
			DaysToExpiry:  la.DaysToExpiry,
			QtyOnHand:     la.Lot.QtyOnHand,
			QtyReserved:   la.Reserved,
			QtyAvailable:  la.Available,
			UnitCost:      la.Lot.UnitCost,
			IsQuarantined: la.Lot.IsQuarantined,
			IsReserved:    la.Lot.IsReserved,
			Eligible:      la.Eligible,
		})
	}
	return out
}
