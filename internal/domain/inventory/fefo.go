package inventory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// Candidate es un lote junto con su cantidad disponible (on_hand menos reservas activas de otros pedidos).
type Candidate struct {
	Lot       *entity.StockLot
	Available decimal.Decimal
}

// AllocateOptions parámetros de política para Allocate.
type AllocateOptions struct {
	ProductID        string
	Today            time.Time
	MinShelfLifeDays *int
	ExcludedLotIDs   []string
}

// PlanLine es una línea del plan: cuánto tomar de qué lote.
type PlanLine struct {
	LotID       string          `json:"lot_id"`
	LotCode     string          `json:"lot_code"`
	WarehouseID string          `json:"warehouse_id"`
	ExpiryDate  time.Time       `json:"expiry_date"`
	Qty         decimal.Decimal `json:"qty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

// Plan es el resultado ordenado (FEFO) de una asignación.
type Plan struct {
	ProductID string          `json:"product_id"`
	Requested decimal.Decimal `json:"requested"`
	Lines     []PlanLine      `json:"lines"`
}

// Total suma las cantidades de todas las líneas.
func (p Plan) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range p.Lines {
		total = total.Add(l.Qty)
	}
	return total
}

// IsEligible aplica las reglas de elegibilidad FEFO sobre un lote y su disponible.
func IsEligible(lot *entity.StockLot, available decimal.Decimal, today time.Time) bool {
	if lot.IsBlocked() || lot.IsExpired(today) {
		return false
	}
	return available.GreaterThan(decimal.Zero)
}

// SortFEFO ordena por vencimiento ascendente y, a igual vencimiento, por id de lote.
func SortFEFO(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i].Lot, cs[j].Lot
		if !a.ExpiryDate.Equal(b.ExpiryDate) {
			return a.ExpiryDate.Before(b.ExpiryDate)
		}
		return a.ID < b.ID
	})
}

// Allocate calcula el plan FEFO para cubrir needed. No tiene efectos: solo lee candidates.
// Consume cada lote por completo antes de pasar al siguiente; nunca devuelve un plan parcial.
func Allocate(candidates []Candidate, needed decimal.Decimal, opts AllocateOptions) (Plan, error) {
	if !needed.GreaterThan(decimal.Zero) {
		return Plan{}, domain.Validation("la cantidad solicitada debe ser mayor a cero")
	}
	today := DateOf(opts.Today)

	excluded := make(map[string]struct{}, len(opts.ExcludedLotIDs))
	for _, id := range opts.ExcludedLotIDs {
		excluded[id] = struct{}{}
	}

	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Lot == nil {
			continue
		}
		if _, skip := excluded[c.Lot.ID]; skip {
			continue
		}
		if opts.ProductID != "" && c.Lot.ProductID != opts.ProductID {
			continue
		}
		if IsEligible(c.Lot, c.Available, today) {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return Plan{}, &domain.StockError{
			Kind:      domain.KindNoLotsAvailable,
			Message:   "no hay lotes disponibles",
			ProductID: opts.ProductID,
			Requested: needed,
			Available: decimal.Zero,
		}
	}
	SortFEFO(eligible)

	rawTotal := sumAvailable(eligible)
	pool := eligible
	if opts.MinShelfLifeDays != nil && *opts.MinShelfLifeDays > 0 {
		pool = make([]Candidate, 0, len(eligible))
		for _, c := range eligible {
			if HasShelfLife(c.Lot, today, *opts.MinShelfLifeDays) {
				pool = append(pool, c)
			}
		}
	}

	total := sumAvailable(pool)
	if total.LessThan(needed) {
		// La vida útil es la causa solo si sin el filtro alcanzaba.
		if len(pool) < len(eligible) && !rawTotal.LessThan(needed) {
			return Plan{}, &domain.StockError{
				Kind:      domain.KindInsufficientShelfLife,
				Message:   "los lotes disponibles no cumplen la vida útil mínima",
				ProductID: opts.ProductID,
				Requested: needed,
				Available: total,
			}
		}
		return Plan{}, domain.NotEnoughStock(opts.ProductID, needed, total)
	}

	plan := Plan{ProductID: opts.ProductID, Requested: needed}
	remaining := needed
	for _, c := range pool {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		take := decimal.Min(remaining, c.Available)
		plan.Lines = append(plan.Lines, PlanLine{
			LotID:       c.Lot.ID,
			LotCode:     c.Lot.LotCode,
			WarehouseID: c.Lot.WarehouseID,
			ExpiryDate:  c.Lot.ExpiryDate,
			Qty:         take,
			UnitCost:    c.Lot.UnitCost,
		})
		remaining = remaining.Sub(take)
	}
	return plan, nil
}

func sumAvailable(cs []Candidate) decimal.Decimal {
	total := decimal.Zero
	for _, c := range cs {
		total = total.Add(c.Available)
	}
	return total
}
