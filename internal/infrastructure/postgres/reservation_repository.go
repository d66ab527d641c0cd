package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/repository"
)

var _ repository.ReservationRepository = (*ReservationRepo)(nil)

const reservationColumns = `id, order_id, lot_id, qty, status, created_at, updated_at`

// ReservationRepo reservas blandas sobre PostgreSQL (usable con pool o tx).
type ReservationRepo struct {
	q Querier
}

// NewReservationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReservationRepository(q Querier) *ReservationRepo {
	return &ReservationRepo{q: q}
}

func scanReservation(row scanner) (*entity.Reservation, error) {
	var r entity.Reservation
	if err := row.Scan(&r.ID, &r.OrderID, &r.LotID, &r.Qty, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Create persiste una reserva. (order_id, lot_id) es único.
func (r *ReservationRepo) Create(ctx context.Context, res *entity.Reservation) error {
	query := `
		INSERT INTO stock_reservations (id, order_id, lot_id, qty, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, query, res.ID, res.OrderID, res.LotID, res.Qty, res.Status, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepo) getOne(ctx context.Context, op, query, id string) (*entity.Reservation, error) {
	if !validID(id) {
		return nil, nil
	}
	res, err := scanReservation(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return res, nil
}

// GetByID obtiene una reserva por ID.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	return r.getOne(ctx, "get reservation", `SELECT `+reservationColumns+` FROM stock_reservations WHERE id = $1`, id)
}

// GetForUpdate obtiene la reserva y bloquea la fila.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, id string) (*entity.Reservation, error) {
	return r.getOne(ctx, "get reservation for update", `SELECT `+reservationColumns+` FROM stock_reservations WHERE id = $1 FOR UPDATE`, id)
}

// UpdateStatus cambia el estado de la reserva.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id, status string, now time.Time) error {
	cmd, err := r.q.Exec(ctx, `UPDATE stock_reservations SET status = $2, updated_at = $3 WHERE id = $1`, id, status, now)
	if err != nil {
		return fmt.Errorf("update reservation status: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteByOrderAndLot borra la reserva previa del pedido sobre el lote (si existe).
func (r *ReservationRepo) DeleteByOrderAndLot(ctx context.Context, orderID, lotID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM stock_reservations WHERE order_id = $1 AND lot_id = $2`, orderID, lotID)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	return nil
}

// ListActiveByOrder lista las reservas PENDING/APPLIED del pedido.
func (r *ReservationRepo) ListActiveByOrder(ctx context.Context, orderID string) ([]*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM stock_reservations
		WHERE order_id = $1 AND status IN ('PENDING', 'APPLIED')
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	var list []*entity.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

// SumActiveByLots agrega en una sola consulta las reservas activas por lote.
func (r *ReservationRepo) SumActiveByLots(ctx context.Context, lotIDs []string, excludeOrderID string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(lotIDs))
	if len(lotIDs) == 0 {
		return out, nil
	}
	query := `
		SELECT lot_id, SUM(qty)
		FROM stock_reservations
		WHERE lot_id = ANY($1::uuid[])
		  AND status IN ('PENDING', 'APPLIED')
		  AND order_id <> $2
		GROUP BY lot_id`
	rows, err := r.q.Query(ctx, query, lotIDs, excludeOrderID)
	if err != nil {
		return nil, fmt.Errorf("sum reservations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lotID string
		var sum decimal.Decimal
		if err := rows.Scan(&lotID, &sum); err != nil {
			return nil, fmt.Errorf("scan reservation sum: %w", err)
		}
		out[lotID] = sum
	}
	return out, rows.Err()
}
