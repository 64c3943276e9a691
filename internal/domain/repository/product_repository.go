package repository

import (
	"context"

	"github.com/jhoicas/retail-ops/internal/domain/entity"
)

// ProductRepository datos de referencia de productos.
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}

// SupplierRepository datos de referencia de proveedores.
type SupplierRepository interface {
	Create(ctx context.Context, supplier *entity.Supplier) error
	GetByID(ctx context.Context, id string) (*entity.Supplier, error)
}
