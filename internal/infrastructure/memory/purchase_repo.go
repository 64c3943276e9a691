package memory

import (
	"context"
	"fmt"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
)

var _ repository.PurchaseOrderRepository = (*PurchaseOrderRepo)(nil)

// PurchaseOrderRepo órdenes de compra y sus líneas.
type PurchaseOrderRepo struct{ db access }

func (r *PurchaseOrderRepo) Create(_ context.Context, po *entity.PurchaseOrder, items []*entity.PurchaseOrderItem) error {
	return r.db.with(func(st *state) error {
		if _, ok := st.purchases[po.ID]; ok {
			return fmt.Errorf("%w: orden de compra %s ya existe", domain.ErrValidation, po.ID)
		}
		st.purchases[po.ID] = *po
		lines := make([]entity.PurchaseOrderItem, 0, len(items))
		for _, it := range items {
			lines = append(lines, *it)
		}
		st.purchaseItems[po.ID] = lines
		return nil
	})
}

func (r *PurchaseOrderRepo) GetByID(_ context.Context, id string) (*entity.PurchaseOrder, error) {
	var out *entity.PurchaseOrder
	err := r.db.with(func(st *state) error {
		if po, ok := st.purchases[id]; ok {
			out = &po
		}
		return nil
	})
	return out, err
}

// GetForUpdate el lock lo da el mutex del store.
func (r *PurchaseOrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return r.GetByID(ctx, id)
}

func (r *PurchaseOrderRepo) GetItems(_ context.Context, id string) ([]*entity.PurchaseOrderItem, error) {
	var out []*entity.PurchaseOrderItem
	err := r.db.with(func(st *state) error {
		for _, it := range st.purchaseItems[id] {
			it := it
			out = append(out, &it)
		}
		return nil
	})
	return out, err
}

func (r *PurchaseOrderRepo) UpdateItemReceived(_ context.Context, id, productID string, quantityReceived int64) error {
	return r.db.with(func(st *state) error {
		lines := st.purchaseItems[id]
		for i := range lines {
			if lines[i].ProductID == productID {
				if quantityReceived > lines[i].QuantityReceived {
					lines[i].QuantityReceived = quantityReceived
				}
				return nil
			}
		}
		return domain.ErrNotFound
	})
}

func (r *PurchaseOrderRepo) UpdateStatus(_ context.Context, id, expected, next string) error {
	return r.db.with(func(st *state) error {
		po, ok := st.purchases[id]
		if !ok {
			return domain.ErrNotFound
		}
		if po.Status != expected {
			return fmt.Errorf("%w: orden de compra %s", domain.ErrConcurrentModification, id)
		}
		po.Status = next
		po.Version++
		po.UpdatedAt = r.db.now()
		st.purchases[id] = po
		return nil
	})
}
