package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
)

var _ repository.PurchaseOrderRepository = (*PurchaseOrderRepo)(nil)

// PurchaseOrderRepo órdenes de compra sobre PostgreSQL.
type PurchaseOrderRepo struct {
	q Querier
}

// NewPurchaseOrderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPurchaseOrderRepository(q Querier) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{q: q}
}

const purchaseColumns = `id, supplier_id, status, notes, version, created_at, updated_at, created_by`

// Create persiste la orden y sus líneas.
func (r *PurchaseOrderRepo) Create(ctx context.Context, po *entity.PurchaseOrder, items []*entity.PurchaseOrderItem) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO purchase_orders (`+purchaseColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		po.ID, po.SupplierID, po.Status, po.Notes, po.Version, po.CreatedAt, po.UpdatedAt, po.CreatedBy)
	if err != nil {
		return mapError("create purchase order", err)
	}
	for _, it := range items {
		_, err := r.q.Exec(ctx, `
			INSERT INTO purchase_order_items (purchase_order_id, product_id, quantity_ordered, quantity_received, unit_cost)
			VALUES ($1, $2, $3, $4, $5)`,
			po.ID, it.ProductID, it.QuantityOrdered, it.QuantityReceived, it.UnitCost)
		if err != nil {
			return mapError("create purchase order item", err)
		}
	}
	return nil
}

// GetByID obtiene la orden; nil si no existe.
func (r *PurchaseOrderRepo) GetByID(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return r.get(ctx, `SELECT `+purchaseColumns+` FROM purchase_orders WHERE id = $1`, id)
}

// GetForUpdate obtiene la orden bloqueando la fila (SELECT FOR UPDATE).
func (r *PurchaseOrderRepo) GetForUpdate(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	return r.get(ctx, `SELECT `+purchaseColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id)
}

func (r *PurchaseOrderRepo) get(ctx context.Context, query, id string) (*entity.PurchaseOrder, error) {
	var po entity.PurchaseOrder
	err := r.q.QueryRow(ctx, query, id).Scan(
		&po.ID, &po.SupplierID, &po.Status, &po.Notes, &po.Version, &po.CreatedAt, &po.UpdatedAt, &po.CreatedBy,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, mapError("get purchase order", err)
	}
	return &po, nil
}

// GetItems líneas de la orden.
func (r *PurchaseOrderRepo) GetItems(ctx context.Context, id string) ([]*entity.PurchaseOrderItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT purchase_order_id, product_id, quantity_ordered, quantity_received, unit_cost
		FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY product_id`, id)
	if err != nil {
		return nil, fmt.Errorf("list purchase order items: %w", err)
	}
	defer rows.Close()
	var out []*entity.PurchaseOrderItem
	for rows.Next() {
		var it entity.PurchaseOrderItem
		if err := rows.Scan(&it.PurchaseOrderID, &it.ProductID, &it.QuantityOrdered, &it.QuantityReceived, &it.UnitCost); err != nil {
			return nil, fmt.Errorf("scan purchase order item: %w", err)
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

// UpdateItemReceived el acumulado recibido nunca disminuye (GREATEST).
func (r *PurchaseOrderRepo) UpdateItemReceived(ctx context.Context, id, productID string, quantityReceived int64) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE purchase_order_items SET quantity_received = GREATEST(quantity_received, $3)
		WHERE purchase_order_id = $1 AND product_id = $2`, id, productID, quantityReceived)
	if err != nil {
		return mapError("update purchase order item", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateStatus cambia el estado si sigue siendo expected.
func (r *PurchaseOrderRepo) UpdateStatus(ctx context.Context, id, expected, next string) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE purchase_orders SET status = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND status = $2`, id, expected, next)
	if err != nil {
		return mapError("update purchase order status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("orden de compra %s: %w", id, domain.ErrConcurrentModification)
	}
	return nil
}
