package repository

import (
	"context"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// OverrideAuditRepository persiste las trazas de selección manual de lote.
type OverrideAuditRepository interface {
	Create(ctx context.Context, audit *entity.LotOverrideAudit) error
	ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.LotOverrideAudit, error)
}
