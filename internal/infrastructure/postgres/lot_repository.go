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

var _ repository.LotRepository = (*LotRepo)(nil)

const lotColumns = `id, product_id, warehouse_id, lot_code, expiry_date, qty_on_hand, unit_cost,
	is_quarantined, is_reserved, created_at, updated_at`

// LotRepo implementación de LotRepository sobre PostgreSQL (usable con pool o tx).
type LotRepo struct {
	q Querier
}

// NewLotRepository construye el adaptador de lotes. Pasar pool o tx (Querier).
func NewLotRepository(q Querier) *LotRepo {
	return &LotRepo{q: q}
}

func scanLot(row scanner) (*entity.StockLot, error) {
	var l entity.StockLot
	err := row.Scan(
		&l.ID, &l.ProductID, &l.WarehouseID, &l.LotCode, &l.ExpiryDate, &l.QtyOnHand, &l.UnitCost,
		&l.IsQuarantined, &l.IsReserved, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	l.ExpiryDate = l.ExpiryDate.UTC()
	return &l, nil
}

func (r *LotRepo) getOne(ctx context.Context, query string, args ...any) (*entity.StockLot, error) {
	l, err := scanLot(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return l, nil
}

// GetByID obtiene un lote sin bloquearlo.
func (r *LotRepo) GetByID(ctx context.Context, id string) (*entity.StockLot, error) {
	if !validID(id) {
		return nil, nil
	}
	l, err := r.getOne(ctx, `SELECT `+lotColumns+` FROM stock_lots WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("get lot: %w", err)
	}
	return l, nil
}

// GetForUpdate obtiene el lote y bloquea la fila (SELECT FOR UPDATE).
func (r *LotRepo) GetForUpdate(ctx context.Context, id string) (*entity.StockLot, error) {
	if !validID(id) {
		return nil, nil
	}
	l, err := r.getOne(ctx, `SELECT `+lotColumns+` FROM stock_lots WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, fmt.Errorf("get lot for update: %w", err)
	}
	return l, nil
}

// FindByCodeForUpdate busca el lote por su clave natural y lo bloquea.
func (r *LotRepo) FindByCodeForUpdate(ctx context.Context, productID, lotCode, warehouseID string) (*entity.StockLot, error) {
	if !validID(productID) || !validID(warehouseID) {
		return nil, nil
	}
	query := `SELECT ` + lotColumns + ` FROM stock_lots
		WHERE product_id = $1 AND lot_code = $2 AND warehouse_id = $3
		FOR UPDATE`
	l, err := r.getOne(ctx, query, productID, lotCode, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("find lot by code: %w", err)
	}
	return l, nil
}

// Create persiste un lote nuevo. Devuelve domain.ErrDuplicate si la clave natural ya existe.
func (r *LotRepo) Create(ctx context.Context, lot *entity.StockLot) error {
	query := `
		INSERT INTO stock_lots (id, product_id, warehouse_id, lot_code, expiry_date, qty_on_hand, unit_cost,
			is_quarantined, is_reserved, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		lot.ID, lot.ProductID, lot.WarehouseID, lot.LotCode, lot.ExpiryDate, lot.QtyOnHand, lot.UnitCost,
		lot.IsQuarantined, lot.IsReserved, lot.CreatedAt, lot.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert lot: %w", err)
	}
	return nil
}

// UpdateQty fija qty_on_hand. El CHECK de la tabla impide valores negativos.
func (r *LotRepo) UpdateQty(ctx context.Context, id string, qty decimal.Decimal, now time.Time) error {
	if qty.IsNegative() {
		return domain.NotEnoughStock("", qty.Neg(), decimal.Zero)
	}
	cmd, err := r.q.Exec(ctx, `UPDATE stock_lots SET qty_on_hand = $2, updated_at = $3 WHERE id = $1`, id, qty, now)
	if err != nil {
		if pgCode(err) == codeCheckViolation {
			return &domain.StockError{Kind: domain.KindNotEnoughStock, Message: "la operación dejaría stock negativo", LotID: id}
		}
		return fmt.Errorf("update lot qty: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateCost fija el costo unitario del lote.
func (r *LotRepo) UpdateCost(ctx context.Context, id string, unitCost decimal.Decimal, now time.Time) error {
	cmd, err := r.q.Exec(ctx, `UPDATE stock_lots SET unit_cost = $2, updated_at = $3 WHERE id = $1`, id, unitCost, now)
	if err != nil {
		return fmt.Errorf("update lot cost: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListEligible usa el índice parcial idx_stock_lots_fefo.
func (r *LotRepo) ListEligible(ctx context.Context, productID, warehouseID string, today time.Time) ([]*entity.StockLot, error) {
	if !validID(productID) {
		return nil, nil
	}
	query := `SELECT ` + lotColumns + ` FROM stock_lots
		WHERE product_id = $1
		  AND NOT is_quarantined AND NOT is_reserved
		  AND qty_on_hand > 0
		  AND expiry_date >= $2::date`
	args := []any{productID, today}
	if warehouseID != "" {
		if !validID(warehouseID) {
			return nil, nil
		}
		query += ` AND warehouse_id = $3`
		args = append(args, warehouseID)
	}
	query += ` ORDER BY expiry_date, id`
	return r.list(ctx, "list eligible lots", query, args...)
}

// ListByProduct devuelve todos los lotes del producto en orden FEFO.
func (r *LotRepo) ListByProduct(ctx context.Context, productID, warehouseID string) ([]*entity.StockLot, error) {
	if !validID(productID) {
		return nil, nil
	}
	query := `SELECT ` + lotColumns + ` FROM stock_lots WHERE product_id = $1`
	args := []any{productID}
	if warehouseID != "" {
		if !validID(warehouseID) {
			return nil, nil
		}
		query += ` AND warehouse_id = $2`
		args = append(args, warehouseID)
	}
	query += ` ORDER BY expiry_date, id`
	return r.list(ctx, "list lots", query, args...)
}

func (r *LotRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.StockLot, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var list []*entity.StockLot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
