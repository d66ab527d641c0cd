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

// Allocator arma planes FEFO a partir del estado actual de lotes y reservas.
// Solo lee y sin bloqueos: el plan se revalida bajo lock al aplicarlo.
type Allocator struct {
	lots         repository.LotRepository
	reservations repository.ReservationRepository
	now          func() time.Time
}

// NewAllocator construye el planificador. now nil = time.Now.
func NewAllocator(
	lots repository.LotRepository,
	reservations repository.ReservationRepository,
	now func() time.Time,
) *Allocator {
	if now == nil {
		now = time.Now
	}
	return &Allocator{lots: lots, reservations: reservations, now: now}
}

// PlanRequest entrada del planificador. OrderID, si viene, hace que las reservas
// de ese mismo pedido no descuenten disponibilidad.
type PlanRequest struct {
	ProductID        string
	Qty              decimal.Decimal
	WarehouseID      string
	OrderID          string
	MinShelfLifeDays *int
	ExcludedLotIDs   []string
}

// Plan devuelve el plan FEFO (también sirve como sugerencia de picking).
func (a *Allocator) Plan(ctx context.Context, req PlanRequest) (inventory.Plan, error) {
	return planWith(ctx, a.lots, a.reservations, req, a.now())
}

func validatePlanRequest(req PlanRequest) error {
	if strings.TrimSpace(req.ProductID) == "" {
		return domain.Validation("product_id es obligatorio")
	}
	if req.MinShelfLifeDays != nil && *req.MinShelfLifeDays < 0 {
		return domain.Validation("min_shelf_life_days no puede ser negativo")
	}
	return inventory.ValidateQty(req.Qty, "qty")
}

// planWith es la planificación sobre repos arbitrarios (pool o tx).
func planWith(
	ctx context.Context,
	lots repository.LotRepository,
	reservations repository.ReservationRepository,
	req PlanRequest,
	now time.Time,
) (inventory.Plan, error) {
	if err := validatePlanRequest(req); err != nil {
		return inventory.Plan{}, err
	}
	today := inventory.DateOf(now)

	list, err := lots.ListEligible(ctx, req.ProductID, req.WarehouseID, today)
	if err != nil {
		return inventory.Plan{}, err
	}
	candidates, err := withAvailability(ctx, reservations, list, req.OrderID)
	if err != nil {
		return inventory.Plan{}, err
	}
	return inventory.Allocate(candidates, req.Qty, inventory.AllocateOptions{
		ProductID:        req.ProductID,
		Today:            today,
		MinShelfLifeDays: req.MinShelfLifeDays,
		ExcludedLotIDs:   req.ExcludedLotIDs,
	})
}

// withAvailability descuenta a cada lote las reservas activas de otros pedidos.
func withAvailability(
	ctx context.Context,
	reservations repository.ReservationRepository,
	lots []*entity.StockLot,
	orderID string,
) ([]inventory.Candidate, error) {
	if len(lots) == 0 {
		return nil, nil
	}
	ids := make([]string, len(lots))
	for i, l := range lots {
		ids[i] = l.ID
	}
	reserved, err := reservations.SumActiveByLots(ctx, ids, orderID)
	if err != nil {
		return nil, err
	}
	out := make([]inventory.Candidate, len(lots))
	for i, l := range lots {
		out[i] = inventory.Candidate{Lot: l, Available: availableOf(l, reserved)}
	}
	return out, nil
}

func availableOf(lot *entity.StockLot, reserved map[string]decimal.Decimal) decimal.Decimal {
	return lot.QtyOnHand.Sub(reserved[lot.ID])
}
