package inventory

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/inventory"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/repository"
)

// Operaciones, usadas como etiqueta de métricas y como tipo de operación idempotente.
const (
	OpRecordEntry   = "record_entry"
	OpRecordExit    = "record_exit_fefo"
	OpOverrideExit  = "record_exit_with_override"
	OpReserve       = "create_reservations"
	OpApplyReserve  = "apply_reservation"
	OpCancelReserve = "cancel_reservation"
	OpCancelOrder   = "cancel_order_reservations"
)

// StockServiceConfig dependencias opcionales del servicio de mutación.
type StockServiceConfig struct {
	DefaultWarehouseID string
	Observer           Observer
	Publisher          EventPublisher
	Logger             zerolog.Logger
	Now                func() time.Time
}

// StockService aplica entradas y salidas de stock como una única unidad de trabajo:
// bloquea lotes (SELECT FOR UPDATE), revalida, escribe movimientos y actualiza cantidades.
type StockService struct {
	txRunner      TxRunner
	allocator     *Allocator
	productRepo   repository.ProductRepository
	warehouseRepo repository.WarehouseRepository

	defaultWarehouseID string
	observer           Observer
	publisher          EventPublisher
	log                zerolog.Logger
	now                func() time.Time
}

// NewStockService construye el servicio.
func NewStockService(
	txRunner TxRunner,
	allocator *Allocator,
	productRepo repository.ProductRepository,
	warehouseRepo repository.WarehouseRepository,
	cfg StockServiceConfig,
) *StockService {
	s := &StockService{
		txRunner:           txRunner,
		allocator:          allocator,
		productRepo:        productRepo,
		warehouseRepo:      warehouseRepo,
		defaultWarehouseID: cfg.DefaultWarehouseID,
		observer:           cfg.Observer,
		publisher:          cfg.Publisher,
		log:                cfg.Logger,
		now:                cfg.Now,
	}
	if s.observer == nil {
		s.observer = NopObserver{}
	}
	if s.publisher == nil {
		s.publisher = NopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// EntryInput entrada de RecordEntry.
type EntryInput struct {
	ProductID   string
	LotCode     string
	ExpiryDate  time.Time
	Qty         decimal.Decimal
	UnitCost    decimal.Decimal
	WarehouseID string // vacío = bodega por defecto
	Actor       string
	Reason      string // vacío = purchase
	OrderID     string
}

// ExitInput entrada de RecordExitFEFO.
type ExitInput struct {
	ProductID        string
	Qty              decimal.Decimal
	Actor            string
	OrderID          string
	WarehouseID      string // vacío = todas las bodegas
	MinShelfLifeDays *int
	Reason           string // vacío = sale
}

// OverrideExitInput entrada de RecordExitWithOverride.
type OverrideExitInput struct {
	ProductID        string
	Qty              decimal.Decimal
	LotID            string
	OverrideReason   string
	Actor            string
	OrderID          string
	WarehouseID      string
	MinShelfLifeDays *int
	Reason           string // motivo del movimiento; vacío = sale
}

// RecordEntry registra una ENTRY. Si el lote (producto, código, bodega) existe acumula,
// siempre que coincida el vencimiento; si no existe lo crea.
func (s *StockService) RecordEntry(ctx context.Context, in EntryInput) (mov *entity.Movement, err error) {
	started := time.Now()
	defer func() { observe(s.observer, OpRecordEntry, started, err) }()

	in.LotCode = strings.TrimSpace(in.LotCode)
	if in.WarehouseID == "" {
		in.WarehouseID = s.defaultWarehouseID
	}
	if in.Reason == "" {
		in.Reason = entity.ReasonPurchase
	}
	if err := s.validateEntry(in); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, in.ProductID, in.WarehouseID); err != nil {
		return nil, err
	}

	// Dos entradas concurrentes pueden crear el mismo lote; la perdedora reintenta y acumula.
	for attempt := 0; attempt < 2; attempt++ {
		mov, err = s.recordEntryTx(ctx, in)
		if !errors.Is(err, domain.ErrDuplicate) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	s.publish(ctx, []*entity.Movement{mov})
	return mov, nil
}

func (s *StockService) validateEntry(in EntryInput) error {
	switch {
	case strings.TrimSpace(in.ProductID) == "":
		return domain.Validation("product_id es obligatorio")
	case in.LotCode == "":
		return domain.Validation("lot_code es obligatorio")
	case in.ExpiryDate.IsZero():
		return domain.Validation("expiry_date es obligatorio")
	case strings.TrimSpace(in.Actor) == "":
		return domain.Validation("actor es obligatorio")
	case in.WarehouseID == "":
		return domain.Validation("warehouse_id es obligatorio (no hay bodega por defecto)")
	case !entity.ValidReason(in.Reason):
		return domain.Validation("motivo desconocido: %s", in.Reason)
	}
	if err := inventory.ValidateQty(in.Qty, "qty"); err != nil {
		return err
	}
	return inventory.ValidateMoney(in.UnitCost, "unit_cost")
}

func (s *StockService) checkReferences(ctx context.Context, productID, warehouseID string) error {
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return err
	}
	if product == nil {
		return domain.Validation("producto no encontrado: %s", productID)
	}
	if warehouseID == "" {
		return nil
	}
	wh, err := s.warehouseRepo.GetByID(ctx, warehouseID)
	if err != nil {
		return err
	}
	if wh == nil || !wh.IsActive {
		return domain.Validation("bodega inexistente o inactiva: %s", warehouseID)
	}
	return nil
}

func (s *StockService) recordEntryTx(ctx context.Context, in EntryInput) (*entity.Movement, error) {
	now := s.now()
	expiry := inventory.DateOf(in.ExpiryDate)
	var mov *entity.Movement

	err := s.txRunner.Run(ctx, func(repos TxRepos) error {
		lot, err := repos.Lots.FindByCodeForUpdate(ctx, in.ProductID, in.LotCode, in.WarehouseID)
		if err != nil {
			return err
		}
		if lot == nil {
			lot = &entity.StockLot{
				ID:          uuid.New().String(),
				ProductID:   in.ProductID,
				WarehouseID: in.WarehouseID,
				LotCode:     in.LotCode,
				ExpiryDate:  expiry,
				QtyOnHand:   in.Qty,
				UnitCost:    in.UnitCost,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			if err := repos.Lots.Create(ctx, lot); err != nil {
				return err
			}
		} else {
			if !inventory.DateOf(lot.ExpiryDate).Equal(expiry) {
				return &domain.StockError{
					Kind:      domain.KindInconsistentLot,
					Message:   "el vencimiento no coincide con el del lote existente",
					ProductID: in.ProductID,
					LotID:     lot.ID,
					LotCode:   lot.LotCode,
				}
			}
			newCost := inventory.CostCalculator(lot.QtyOnHand, lot.UnitCost, in.Qty, in.UnitCost).Round(inventory.MoneyScale)
			if !newCost.Equal(lot.UnitCost) {
				if err := repos.Lots.UpdateCost(ctx, lot.ID, newCost, now); err != nil {
					return err
				}
			}
			if err := repos.Lots.UpdateQty(ctx, lot.ID, lot.QtyOnHand.Add(in.Qty), now); err != nil {
				return err
			}
		}

		unitCost := in.UnitCost
		mov = &entity.Movement{
			ID:        uuid.New().String(),
			Type:      entity.MovementTypeEntry,
			ProductID: in.ProductID,
			LotID:     lot.ID,
			LotCode:   lot.LotCode,
			Qty:       in.Qty,
			UnitCost:  &unitCost,
			Reason:    in.Reason,
			OrderID:   in.OrderID,
			CreatedBy: in.Actor,
			CreatedAt: now,
		}
		return repos.Movements.Create(ctx, mov)
	})
	if err != nil {
		return nil, err
	}
	return mov, nil
}

// RecordExitFEFO planifica con el Allocator (sin locks) y aplica el plan en una transacción,
// bloqueando cada lote y revalidando su disponible. Cualquier lote insuficiente aborta todo.
func (s *StockService) RecordExitFEFO(ctx context.Context, in ExitInput) (movs []*entity.Movement, err error) {
	started := time.Now()
	defer func() { observe(s.observer, OpRecordExit, started, err) }()

	if in.Reason == "" {
		in.Reason = entity.ReasonSale
	}
	if err := validateExit(in.ProductID, in.Actor, in.Reason); err != nil {
		return nil, err
	}

	plan, err := s.allocator.Plan(ctx, PlanRequest{
		ProductID:        in.ProductID,
		Qty:              in.Qty,
		WarehouseID:      in.WarehouseID,
		OrderID:          in.OrderID,
		MinShelfLifeDays: in.MinShelfLifeDays,
	})
	if err != nil {
		return nil, err
	}

	meta := exitMeta{productID: in.ProductID, orderID: in.OrderID, actor: in.Actor, reason: in.Reason, now: s.now()}
	err = s.txRunner.Run(ctx, func(repos TxRepos) error {
		var err error
		movs, err = applyPlan(ctx, repos, plan, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.observer.IncCounter(MetricLotsAllocated, map[string]string{"operation": OpRecordExit, "lots": strconv.Itoa(len(movs))})
	s.publish(ctx, movs)
	return movs, nil
}

// RecordExitWithOverride consume primero del lote elegido por el operador y completa el
// resto con FEFO excluyendo ese lote. Escribe siempre una traza de override.
func (s *StockService) RecordExitWithOverride(ctx context.Context, in OverrideExitInput) (movs []*entity.Movement, err error) {
	started := time.Now()
	defer func() { observe(s.observer, OpOverrideExit, started, err) }()

	if in.Reason == "" {
		in.Reason = entity.ReasonSale
	}
	in.OverrideReason = strings.TrimSpace(in.OverrideReason)
	if err := validateExit(in.ProductID, in.Actor, in.Reason); err != nil {
		return nil, err
	}
	switch {
	case strings.TrimSpace(in.LotID) == "":
		return nil, domain.Validation("lot_id es obligatorio en un override")
	case in.OverrideReason == "":
		return nil, domain.Validation("lot_override_reason es obligatorio")
	case in.MinShelfLifeDays != nil && *in.MinShelfLifeDays < 0:
		return nil, domain.Validation("min_shelf_life_days no puede ser negativo")
	}
	if err := inventory.ValidateQty(in.Qty, "qty"); err != nil {
		return nil, err
	}

	now := s.now()
	today := inventory.DateOf(now)
	meta := exitMeta{productID: in.ProductID, orderID: in.OrderID, actor: in.Actor, reason: in.Reason, now: now}

	err = s.txRunner.Run(ctx, func(repos TxRepos) error {
		lot, err := repos.Lots.GetForUpdate(ctx, in.LotID)
		if err != nil {
			return err
		}
		if lot == nil || lot.ProductID != in.ProductID {
			return &domain.StockError{
				Kind:      domain.KindInvalidLot,
				Message:   "el lote no existe o pertenece a otro producto",
				ProductID: in.ProductID,
				LotID:     in.LotID,
			}
		}
		if in.WarehouseID != "" && lot.WarehouseID != in.WarehouseID {
			return &domain.StockError{
				Kind:      domain.KindInvalidLot,
				Message:   "el lote pertenece a otra bodega",
				ProductID: in.ProductID,
				LotID:     in.LotID,
			}
		}
		if lot.IsBlocked() {
			return &domain.StockError{
				Kind:      domain.KindLotBlocked,
				Message:   "el lote está en cuarentena o bloqueado",
				ProductID: in.ProductID,
				LotID:     lot.ID,
				LotCode:   lot.LotCode,
			}
		}
		minDays := 0
		if in.MinShelfLifeDays != nil {
			minDays = *in.MinShelfLifeDays
		}
		if !inventory.HasShelfLife(lot, today, minDays) {
			return &domain.StockError{
				Kind:      domain.KindInsufficientShelfLife,
				Message:   "el lote elegido no cumple la vida útil requerida",
				ProductID: in.ProductID,
				LotID:     lot.ID,
				LotCode:   lot.LotCode,
			}
		}

		reserved, err := repos.Reservations.SumActiveByLots(ctx, []string{lot.ID}, in.OrderID)
		if err != nil {
			return err
		}
		available := availableOf(lot, reserved)
		if !available.GreaterThan(decimal.Zero) {
			se := domain.NotEnoughStock(in.ProductID, in.Qty, decimal.Zero)
			se.LotID, se.LotCode = lot.ID, lot.LotCode
			return se
		}
		take := decimal.Min(in.Qty, available)

		plan := inventory.Plan{ProductID: in.ProductID, Requested: in.Qty}
		plan.Lines = append(plan.Lines, inventory.PlanLine{
			LotID:       lot.ID,
			LotCode:     lot.LotCode,
			WarehouseID: lot.WarehouseID,
			ExpiryDate:  lot.ExpiryDate,
			Qty:         take,
			UnitCost:    lot.UnitCost,
		})

		if remaining := in.Qty.Sub(take); remaining.GreaterThan(decimal.Zero) {
			fallback, err := planWith(ctx, repos.Lots, repos.Reservations, PlanRequest{
				ProductID:        in.ProductID,
				Qty:              remaining,
				WarehouseID:      in.WarehouseID,
				OrderID:          in.OrderID,
				MinShelfLifeDays: in.MinShelfLifeDays,
				ExcludedLotIDs:   []string{lot.ID},
			}, now)
			if err != nil {
				return overrideShortage(err, in.ProductID, in.Qty, take)
			}
			plan.Lines = append(plan.Lines, fallback.Lines...)
		}

		movs, err = applyPlan(ctx, repos, plan, meta)
		if err != nil {
			return err
		}
		return repos.Overrides.Create(ctx, &entity.LotOverrideAudit{
			ID:        uuid.New().String(),
			ProductID: in.ProductID,
			LotID:     lot.ID,
			LotCode:   lot.LotCode,
			Qty:       take,
			Reason:    in.OverrideReason,
			OrderID:   in.OrderID,
			Actor:     in.Actor,
			CreatedAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	s.observer.IncCounter(MetricLotsAllocated, map[string]string{"operation": OpOverrideExit, "lots": strconv.Itoa(len(movs))})
	s.publish(ctx, movs)
	return movs, nil
}

// overrideShortage expresa la falta del complemento FEFO respecto del total pedido.
func overrideShortage(err error, productID string, requested, taken decimal.Decimal) error {
	var se *domain.StockError
	if !errors.As(err, &se) {
		return err
	}
	switch se.Kind {
	case domain.KindNoLotsAvailable:
		return domain.NotEnoughStock(productID, requested, taken)
	case domain.KindNotEnoughStock:
		return domain.NotEnoughStock(productID, requested, taken.Add(se.Available))
	}
	return err
}

func validateExit(productID, actor, reason string) error {
	switch {
	case strings.TrimSpace(productID) == "":
		return domain.Validation("product_id es obligatorio")
	case strings.TrimSpace(actor) == "":
		return domain.Validation("actor es obligatorio")
	case !entity.ValidReason(reason):
		return domain.Validation("motivo desconocido: %s", reason)
	}
	return nil
}

type exitMeta struct {
	productID string
	orderID   string
	actor     string
	reason    string
	now       time.Time
}

// applyPlan bloquea los lotes en el orden del plan, revalida bajo lock y recién entonces
// descuenta y escribe un EXIT por línea, en el mismo orden FEFO.
func applyPlan(ctx context.Context, repos TxRepos, plan inventory.Plan, meta exitMeta) ([]*entity.Movement, error) {
	today := inventory.DateOf(meta.now)
	locked := make([]*entity.StockLot, len(plan.Lines))
	ids := make([]string, len(plan.Lines))
	for i, line := range plan.Lines {
		lot, err := repos.Lots.GetForUpdate(ctx, line.LotID)
		if err != nil {
			return nil, err
		}
		if lot == nil || lot.ProductID != meta.productID || lot.IsBlocked() || lot.IsExpired(today) {
			se := domain.NotEnoughStock(meta.productID, line.Qty, decimal.Zero)
			se.LotID, se.LotCode = line.LotID, line.LotCode
			se.Message = "el lote dejó de estar disponible"
			return nil, se
		}
		locked[i] = lot
		ids[i] = lot.ID
	}

	reserved, err := repos.Reservations.SumActiveByLots(ctx, ids, meta.orderID)
	if err != nil {
		return nil, err
	}

	// Un mismo lote puede aparecer una sola vez por plan, pero se acumula por si acaso.
	taken := make(map[string]decimal.Decimal, len(locked))
	for i, line := range plan.Lines {
		lot := locked[i]
		need := taken[lot.ID].Add(line.Qty)
		if available := availableOf(lot, reserved); available.LessThan(need) {
			se := domain.NotEnoughStock(meta.productID, line.Qty, available.Sub(taken[lot.ID]))
			se.LotID, se.LotCode = lot.ID, lot.LotCode
			se.Message = "stock insuficiente al confirmar"
			return nil, se
		}
		taken[lot.ID] = need
	}

	movs := make([]*entity.Movement, 0, len(plan.Lines))
	onHand := make(map[string]decimal.Decimal, len(locked))
	for _, lot := range locked {
		onHand[lot.ID] = lot.QtyOnHand
	}
	for i, line := range plan.Lines {
		lot := locked[i]
		newQty := onHand[lot.ID].Sub(line.Qty)
		if err := repos.Lots.UpdateQty(ctx, lot.ID, newQty, meta.now); err != nil {
			return nil, err
		}
		onHand[lot.ID] = newQty

		unitCost := lot.UnitCost
		mov := &entity.Movement{
			ID:        uuid.New().String(),
			Type:      entity.MovementTypeExit,
			ProductID: meta.productID,
			LotID:     lot.ID,
			LotCode:   lot.LotCode,
			Qty:       line.Qty,
			UnitCost:  &unitCost,
			Reason:    meta.reason,
			OrderID:   meta.orderID,
			CreatedBy: meta.actor,
			CreatedAt: meta.now,
		}
		if err := repos.Movements.Create(ctx, mov); err != nil {
			return nil, err
		}
		movs = append(movs, mov)
	}
	return movs, nil
}

func (s *StockService) publish(ctx context.Context, movs []*entity.Movement) {
	if err := s.publisher.PublishMovements(ctx, movs); err != nil {
		s.log.Warn().Err(err).Int("movements", len(movs)).Msg("publicar movimientos")
	}
}
