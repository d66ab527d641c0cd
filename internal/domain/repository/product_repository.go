package repository

import (
	"context"

	"github.com/Gvives15/o11ce-stock-b2b-sub000/internal/domain/entity"
)

// ProductRepository define el puerto de lectura para Product.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}
