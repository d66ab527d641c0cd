package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/inventory"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/repository"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// QueryUseCase expone consultas de solo lectura: existencias por lote, libro mayor y overrides.
type QueryUseCase struct {
	lots         repository.LotRepository
	reservations repository.ReservationRepository
	movements    repository.MovementRepository
	overrides    repository.OverrideAuditRepository
	now          func() time.Time
}

// NewQueryUseCase construye el caso de uso de consultas.
func NewQueryUseCase(
	lots repository.LotRepository,
	reservations repository.ReservationRepository,
	movements repository.MovementRepository,
	overrides repository.OverrideAuditRepository,
	now func() time.Time,
) *QueryUseCase {
	if now == nil {
		now = time.Now
	}
	return &QueryUseCase{lots: lots, reservations: reservations, movements: movements, overrides: overrides, now: now}
}

// LotAvailability es un lote con su disponible calculado.
type LotAvailability struct {
	Lot          *entity.StockLot
	Reserved     decimal.Decimal
	Available    decimal.Decimal
	Eligible     bool
	DaysToExpiry int
}

// LotSummary resume las existencias de un producto.
type LotSummary struct {
	ProductID      string
	Lots           []LotAvailability
	TotalOnHand    decimal.Decimal
	TotalAvailable decimal.Decimal // solo lotes elegibles
	Valuation      inventory.Valuation
}

// LotSummary lista todos los lotes del producto en orden FEFO, con su disponible y valorización.
func (uc *QueryUseCase) LotSummary(ctx context.Context, productID, warehouseID string) (*LotSummary, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, domain.Validation("product_id es obligatorio")
	}
	lots, err := uc.lots.ListByProduct(ctx, productID, warehouseID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(lots))
	for i, l := range lots {
		ids[i] = l.ID
	}
	reserved := map[string]decimal.Decimal{}
	if len(ids) > 0 {
		if reserved, err = uc.reservations.SumActiveByLots(ctx, ids, ""); err != nil {
			return nil, err
		}
	}

	today := inventory.DateOf(uc.now())
	out := &LotSummary{ProductID: productID, TotalOnHand: decimal.Zero, TotalAvailable: decimal.Zero}
	for _, l := range lots {
		available := availableOf(l, reserved)
		eligible := inventory.IsEligible(l, available, today)
		out.Lots = append(out.Lots, LotAvailability{
			Lot:          l,
			Reserved:     reserved[l.ID],
			Available:    available,
			Eligible:     eligible,
			DaysToExpiry: inventory.DaysUntil(l.ExpiryDate, today),
		})
		out.TotalOnHand = out.TotalOnHand.Add(l.QtyOnHand)
		if eligible {
			out.TotalAvailable = out.TotalAvailable.Add(available)
		}
	}
	out.Valuation = inventory.ValueLots(lots)
	return out, nil
}

// MovementFilter filtros del libro mayor por producto.
type MovementFilter struct {
	ProductID string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// ListMovements devuelve los movimientos del producto, más recientes primero.
func (uc *QueryUseCase) ListMovements(ctx context.Context, f MovementFilter) ([]*entity.Movement, error) {
	if strings.TrimSpace(f.ProductID) == "" {
		return nil, domain.Validation("product_id es obligatorio")
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, domain.Validation("rango de fechas inválido")
	}
	limit, offset := pageOf(f.Limit, f.Offset)
	return uc.movements.ListByProduct(ctx, f.ProductID, f.From, f.To, limit, offset)
}

// ListOrderMovements devuelve los movimientos de un pedido en orden de registro.
func (uc *QueryUseCase) ListOrderMovements(ctx context.Context, orderID string) ([]*entity.Movement, error) {
	if strings.TrimSpace(orderID) == "" {
		return nil, domain.Validation("order_id es obligatorio")
	}
	return uc.movements.ListByOrder(ctx, orderID)
}

// ListOverrides devuelve las trazas de override del producto.
func (uc *QueryUseCase) ListOverrides(ctx context.Context, productID string, limit, offset int) ([]*entity.LotOverrideAudit, error) {
	if strings.TrimSpace(productID) == "" {
		return nil, domain.Validation("product_id es obligatorio")
	}
	limit, offset = pageOf(limit, offset)
	return uc.overrides.ListByProduct(ctx, productID, limit, offset)
}

func pageOf(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
