package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
)

var (
	_ repository.StockMovementRepository = (*StockMovementRepo)(nil)
	_ repository.StockBalanceRepository  = (*StockBalanceRepo)(nil)
	_ repository.ProductRepository       = (*ProductRepo)(nil)
	_ repository.SupplierRepository      = (*SupplierRepo)(nil)
)

// StockMovementRepo ledger append-only.
type StockMovementRepo struct{ db access }

func (r *StockMovementRepo) Append(_ context.Context, m *entity.StockMovement) error {
	return r.db.with(func(st *state) error {
		for i := range st.movements {
			if st.movements[i].ID == m.ID {
				return fmt.Errorf("movement %s: duplicado", m.ID)
			}
		}
		st.movements = append(st.movements, *m)
		return nil
	})
}

func (r *StockMovementRepo) GetByID(_ context.Context, id string) (*entity.StockMovement, error) {
	var out *entity.StockMovement
	err := r.db.with(func(st *state) error {
		for i := range st.movements {
			if st.movements[i].ID == id {
				m := st.movements[i]
				out = &m
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *StockMovementRepo) ListByProduct(_ context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := r.db.with(func(st *state) error {
		skipped := 0
		for i := range st.movements {
			m := st.movements[i]
			if m.ProductID != productID {
				continue
			}
			if from != nil && m.Date.Before(*from) {
				continue
			}
			if to != nil && m.Date.After(*to) {
				continue
			}
			if skipped < offset {
				skipped++
				continue
			}
			out = append(out, &m)
			if limit > 0 && len(out) == limit {
				break
			}
		}
		return nil
	})
	return out, err
}

func (r *StockMovementRepo) ListByReference(_ context.Context, reference string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := r.db.with(func(st *state) error {
		for i := range st.movements {
			if st.movements[i].Reference == reference {
				m := st.movements[i]
				out = append(out, &m)
			}
		}
		return nil
	})
	return out, err
}

// StockBalanceRepo saldo materializado por producto.
type StockBalanceRepo struct{ db access }

func (r *StockBalanceRepo) Get(_ context.Context, productID string) (*entity.StockBalance, error) {
	var out *entity.StockBalance
	err := r.db.with(func(st *state) error {
		if b, ok := st.balances[productID]; ok {
			out = &b
		}
		return nil
	})
	return out, err
}

// GetForUpdate en memoria el lock lo da el mutex del store; crea el saldo en cero si no existe.
func (r *StockBalanceRepo) GetForUpdate(_ context.Context, productID string) (*entity.StockBalance, error) {
	var out *entity.StockBalance
	err := r.db.with(func(st *state) error {
		b, ok := st.balances[productID]
		if !ok {
			b = entity.StockBalance{ProductID: productID, UpdatedAt: r.db.now()}
			st.balances[productID] = b
		}
		out = &b
		return nil
	})
	return out, err
}

func (r *StockBalanceRepo) Save(_ context.Context, b *entity.StockBalance) error {
	if b.Quantity < 0 {
		return fmt.Errorf("%w: saldo %d para %s", domain.ErrInsufficientStock, b.Quantity, b.ProductID)
	}
	return r.db.with(func(st *state) error {
		cur, ok := st.balances[b.ProductID]
		if ok && cur.Version != b.Version {
			return domain.ErrConcurrentModification
		}
		b.Version++
		st.balances[b.ProductID] = *b
		return nil
	})
}

// ProductRepo catálogo mínimo de productos.
type ProductRepo struct{ db access }

func (r *ProductRepo) Create(_ context.Context, p *entity.Product) error {
	return r.db.with(func(st *state) error {
		if _, ok := st.products[p.ID]; ok {
			return fmt.Errorf("%w: producto %s ya existe", domain.ErrValidation, p.ID)
		}
		st.products[p.ID] = *p
		return nil
	})
}

func (r *ProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	var out *entity.Product
	err := r.db.with(func(st *state) error {
		if p, ok := st.products[id]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

// SupplierRepo proveedores.
type SupplierRepo struct{ db access }

func (r *SupplierRepo) Create(_ context.Context, s *entity.Supplier) error {
	return r.db.with(func(st *state) error {
		if _, ok := st.suppliers[s.ID]; ok {
			return fmt.Errorf("%w: proveedor %s ya existe", domain.ErrValidation, s.ID)
		}
		st.suppliers[s.ID] = *s
		return nil
	})
}

func (r *SupplierRepo) GetByID(_ context.Context, id string) (*entity.Supplier, error) {
	var out *entity.Supplier
	err := r.db.with(func(st *state) error {
		if s, ok := st.suppliers[id]; ok {
			out = &s
		}
		return nil
	})
	return out, err
}
