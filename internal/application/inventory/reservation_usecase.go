package inventory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/inventory"
)

// ReservationUseCase administra reservas blandas: reducen el disponible sin mover stock.
type ReservationUseCase struct {
	txRunner TxRunner
	observer Observer
	now      func() time.Time
}

// NewReservationUseCase construye el caso de uso. observer y now pueden ser nil.
func NewReservationUseCase(txRunner TxRunner, observer Observer, now func() time.Time) *ReservationUseCase {
	if observer == nil {
		observer = NopObserver{}
	}
	if now == nil {
		now = time.Now
	}
	return &ReservationUseCase{txRunner: txRunner, observer: observer, now: now}
}

// ReservationLine pide reservar Qty del lote LotID.
type ReservationLine struct {
	LotID string
	Qty   decimal.Decimal
}

// CreateReservations valida todas las líneas contra el disponible (bajo lock de los lotes) y,
// si todas pasan, reemplaza la reserva previa de cada (pedido, lote) por una nueva PENDING.
// Si alguna falla devuelve un único error con todas las líneas faltantes.
func (uc *ReservationUseCase) CreateReservations(ctx context.Context, orderID string, lines []ReservationLine) (out []*entity.Reservation, err error) {
	started := time.Now()
	defer func() { observe(uc.observer, OpReserve, started, err) }()

	if err := validateReservationLines(orderID, lines); err != nil {
		return nil, err
	}

	// Lock en orden de id para que dos pedidos concurrentes no se bloqueen mutuamente.
	ordered := make([]ReservationLine, len(lines))
	copy(ordered, lines)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].LotID < ordered[j].LotID })

	now := uc.now()
	err = uc.txRunner.Run(ctx, func(repos TxRepos) error {
		lots := make(map[string]*entity.StockLot, len(ordered))
		ids := make([]string, 0, len(ordered))
		for _, line := range ordered {
			lot, err := repos.Lots.GetForUpdate(ctx, line.LotID)
			if err != nil {
				return err
			}
			if lot == nil {
				return &domain.StockError{Kind: domain.KindInvalidLot, Message: "lote inexistente", LotID: line.LotID}
			}
			if lot.IsBlocked() {
				return &domain.StockError{
					Kind:      domain.KindLotBlocked,
					Message:   "el lote está en cuarentena o bloqueado",
					ProductID: lot.ProductID,
					LotID:     lot.ID,
					LotCode:   lot.LotCode,
				}
			}
			lots[lot.ID] = lot
			ids = append(ids, lot.ID)
		}

		reserved, err := repos.Reservations.SumActiveByLots(ctx, ids, orderID)
		if err != nil {
			return err
		}
		var shortages []domain.LotShortage
		for _, line := range lines {
			lot := lots[line.LotID]
			available := availableOf(lot, reserved)
			if line.Qty.GreaterThan(available) {
				shortages = append(shortages, domain.LotShortage{
					LotID:     lot.ID,
					LotCode:   lot.LotCode,
					Requested: line.Qty,
					Available: decimal.Max(available, decimal.Zero),
				})
			}
		}
		if len(shortages) > 0 {
			return &domain.StockError{
				Kind:      domain.KindReservationInsufficient,
				Message:   "disponible insuficiente para reservar",
				Shortages: shortages,
			}
		}

		out = make([]*entity.Reservation, 0, len(lines))
		for _, line := range lines {
			if err := repos.Reservations.DeleteByOrderAndLot(ctx, orderID, line.LotID); err != nil {
				return err
			}
			r := &entity.Reservation{
				ID:        uuid.New().String(),
				OrderID:   orderID,
				LotID:     line.LotID,
				Qty:       line.Qty,
				Status:    entity.ReservationPending,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := repos.Reservations.Create(ctx, r); err != nil {
				return err
			}
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func validateReservationLines(orderID string, lines []ReservationLine) error {
	if strings.TrimSpace(orderID) == "" {
		return domain.Validation("order_id es obligatorio")
	}
	if len(lines) == 0 {
		return domain.Validation("se requiere al menos una línea")
	}
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line.LotID) == "" {
			return domain.Validation("lot_id es obligatorio")
		}
		if _, dup := seen[line.LotID]; dup {
			return domain.Validation("lote repetido en la solicitud: %s", line.LotID)
		}
		seen[line.LotID] = struct{}{}
		if err := inventory.ValidateQty(line.Qty, "qty"); err != nil {
			return err
		}
	}
	return nil
}

// Apply pasa la reserva a APPLIED cuando el EXIT físico ya se registró. Aplicar dos veces no falla.
func (uc *ReservationUseCase) Apply(ctx context.Context, id string) (r *entity.Reservation, err error) {
	started := time.Now()
	defer func() { observe(uc.observer, OpApplyReserve, started, err) }()
	return uc.transition(ctx, id, entity.ReservationApplied)
}

// Cancel pasa la reserva a CANCELLED (terminal). No toca qty_on_hand.
func (uc *ReservationUseCase) Cancel(ctx context.Context, id string) (r *entity.Reservation, err error) {
	started := time.Now()
	defer func() { observe(uc.observer, OpCancelReserve, started, err) }()
	return uc.transition(ctx, id, entity.ReservationCancelled)
}

func (uc *ReservationUseCase) transition(ctx context.Context, id, target string) (*entity.Reservation, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.Validation("id de reserva obligatorio")
	}
	var out *entity.Reservation
	err := uc.txRunner.Run(ctx, func(repos TxRepos) error {
		r, err := repos.Reservations.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if r == nil {
			return &domain.StockError{Kind: domain.KindReservationNotFound, Message: "reserva inexistente: " + id}
		}
		out = r
		if r.Status == target {
			return nil
		}
		if r.Status == entity.ReservationCancelled {
			return &domain.StockError{
				Kind:    domain.KindInvalidTransition,
				Message: "la reserva está cancelada",
				LotID:   r.LotID,
			}
		}
		now := uc.now()
		if err := repos.Reservations.UpdateStatus(ctx, r.ID, target, now); err != nil {
			return err
		}
		r.Status = target
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelOrder cancela en cascada todas las reservas activas del pedido y devuelve cuántas cambió.
func (uc *ReservationUseCase) CancelOrder(ctx context.Context, orderID string) (n int, err error) {
	started := time.Now()
	defer func() { observe(uc.observer, OpCancelOrder, started, err) }()

	if strings.TrimSpace(orderID) == "" {
		return 0, domain.Validation("order_id es obligatorio")
	}
	err = uc.txRunner.Run(ctx, func(repos TxRepos) error {
		active, err := repos.Reservations.ListActiveByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		now := uc.now()
		for _, r := range active {
			if err := repos.Reservations.UpdateStatus(ctx, r.ID, entity.ReservationCancelled, now); err != nil {
				return err
			}
		}
		n = len(active)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// QtyAvailable devuelve qty_on_hand menos todas las reservas activas del lote,
// leído con el lote bloqueado para ser consistente con reservas concurrentes.
func (uc *ReservationUseCase) QtyAvailable(ctx context.Context, lotID string) (decimal.Decimal, error) {
	var available decimal.Decimal
	err := uc.txRunner.Run(ctx, func(repos TxRepos) error {
		lot, err := repos.Lots.GetForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		if lot == nil {
			return &domain.StockError{Kind: domain.KindInvalidLot, Message: "lote inexistente", LotID: lotID}
		}
		reserved, err := repos.Reservations.SumActiveByLots(ctx, []string{lot.ID}, "")
		if err != nil {
			return err
		}
		available = availableOf(lot, reserved)
		return nil
	})
	return available, err
}
