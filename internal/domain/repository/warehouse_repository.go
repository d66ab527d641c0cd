package repository

import (
	"context"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// WarehouseRepository define el puerto de lectura para Warehouse.
type WarehouseRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Warehouse, error)
}
