package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

const movementColumns = `id, type, product_id, lot_id, lot_code, qty, unit_cost, reason,
	COALESCE(order_id, ''), created_by, created_at`

// MovementRepo libro mayor de movimientos sobre PostgreSQL. Solo inserta y lee.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

func scanMovement(row scanner) (*entity.Movement, error) {
	var m entity.Movement
	var cost decimal.NullDecimal
	err := row.Scan(
		&m.ID, &m.Type, &m.ProductID, &m.LotID, &m.LotCode, &m.Qty, &cost, &m.Reason,
		&m.OrderID, &m.CreatedBy, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if cost.Valid {
		m.UnitCost = &cost.Decimal
	}
	return &m, nil
}

// Create inserta un movimiento. seq (BIGSERIAL) conserva el orden de inserción.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	var cost decimal.NullDecimal
	if m.UnitCost != nil {
		cost = decimal.NewNullDecimal(*m.UnitCost)
	}
	query := `
		INSERT INTO stock_movements (id, type, product_id, lot_id, lot_code, qty, unit_cost, reason, order_id, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.Type, m.ProductID, m.LotID, m.LotCode, m.Qty, cost, m.Reason,
		nullIfEmpty(m.OrderID), m.CreatedBy, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// ListByProduct lista los movimientos del producto, más recientes primero.
// from/to nil = sin límite; limit 0 = sin límite.
func (r *MovementRepo) ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.Movement, error) {
	if !validID(productID) {
		return nil, nil
	}
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE product_id = $1`
	args := []any{productID}
	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(` AND created_at <= $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if limit > 0 {
		args = append(args, limit, offset)
		query += fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))
	}
	return r.list(ctx, query, args...)
}

// ListByOrder lista los movimientos de un pedido en orden de inserción.
func (r *MovementRepo) ListByOrder(ctx context.Context, orderID string) ([]*entity.Movement, error) {
	return r.list(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE order_id = $1 ORDER BY seq`, orderID)
}

func (r *MovementRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Movement, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	var list []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
