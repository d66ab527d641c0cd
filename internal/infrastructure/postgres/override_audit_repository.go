package postgres

import (
	"context"
	"fmt"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/repository"
)

var _ repository.OverrideAuditRepository = (*OverrideAuditRepo)(nil)

// OverrideAuditRepo trazas de override de lote (solo inserción).
type OverrideAuditRepo struct {
	q Querier
}

// NewOverrideAuditRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOverrideAuditRepository(q Querier) *OverrideAuditRepo {
	return &OverrideAuditRepo{q: q}
}

// Create inserta la traza.
func (r *OverrideAuditRepo) Create(ctx context.Context, a *entity.LotOverrideAudit) error {
	query := `
		INSERT INTO lot_override_audits (id, product_id, lot_id, lot_code, qty, reason, order_id, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.q.Exec(ctx, query,
		a.ID, a.ProductID, a.LotID, a.LotCode, a.Qty, a.Reason, nullIfEmpty(a.OrderID), a.Actor, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert override audit: %w", err)
	}
	return nil
}

// ListByProduct lista las trazas del producto, más recientes primero.
func (r *OverrideAuditRepo) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.LotOverrideAudit, error) {
	if !validID(productID) {
		return nil, nil
	}
	query := `
		SELECT id, product_id, lot_id, lot_code, qty, reason, COALESCE(order_id, ''), actor, created_at
		FROM lot_override_audits WHERE product_id = $1
		ORDER BY created_at DESC, id`
	args := []any{productID}
	if limit > 0 {
		query += ` LIMIT $2 OFFSET $3`
		args = append(args, limit, offset)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list override audits: %w", err)
	}
	defer rows.Close()
	var list []*entity.LotOverrideAudit
	for rows.Next() {
		var a entity.LotOverrideAudit
		if err := rows.Scan(&a.ID, &a.ProductID, &a.LotID, &a.LotCode, &a.Qty, &a.Reason, &a.OrderID, &a.Actor, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan override audit: %w", err)
		}
		list = append(list, &a)
	}
	return list, rows.Err()
}
