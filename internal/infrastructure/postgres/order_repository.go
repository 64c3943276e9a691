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

var _ repository.OrderRepository = (*OrderRepo)(nil)

// OrderRepo pedidos y sus líneas sobre PostgreSQL.
type OrderRepo struct {
	q Querier
}

// NewOrderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOrderRepository(q Querier) *OrderRepo {
	return &OrderRepo{q: q}
}

// Create persiste la cabecera y las líneas. Debe llamarse dentro de una tx.
func (r *OrderRepo) Create(ctx context.Context, o *entity.Order, items []*entity.OrderItem) error {
	query := `
		INSERT INTO orders (uuid, status, customer_name, customer_email, discount, order_total,
			storefront_id, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		o.UUID, o.Status, o.CustomerName, o.CustomerEmail, o.Discount, o.OrderTotal,
		o.StorefrontID, o.Version, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return mapError("create order", err)
	}
	for _, it := range items {
		_, err := r.q.Exec(ctx, `
			INSERT INTO order_items (order_uuid, product_id, quantity, unit_price, discount)
			VALUES ($1, $2, $3, $4, $5)`,
			o.UUID, it.ProductID, it.Quantity, it.UnitPrice, it.Discount)
		if err != nil {
			return mapError("create order item", err)
		}
	}
	return nil
}

// GetByUUID obtiene un pedido; nil si no existe.
func (r *OrderRepo) GetByUUID(ctx context.Context, uuid string) (*entity.Order, error) {
	query := `
		SELECT uuid, status, customer_name, customer_email, discount, order_total,
			storefront_id, version, created_at, updated_at
		FROM orders WHERE uuid = $1`
	var o entity.Order
	err := r.q.QueryRow(ctx, query, uuid).Scan(
		&o.UUID, &o.Status, &o.CustomerName, &o.CustomerEmail, &o.Discount, &o.OrderTotal,
		&o.StorefrontID, &o.Version, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &o, nil
}

// GetItems líneas del pedido en orden de creación.
func (r *OrderRepo) GetItems(ctx context.Context, uuid string) ([]*entity.OrderItem, error) {
	rows, err := r.q.Query(ctx, `
		SELECT order_uuid, product_id, quantity, unit_price, discount
		FROM order_items WHERE order_uuid = $1 ORDER BY id`, uuid)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer rows.Close()
	var out []*entity.OrderItem
	for rows.Next() {
		var it entity.OrderItem
		if err := rows.Scan(&it.OrderUUID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Discount); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

// CompareAndSetStatus actualiza el estado solo si (status, version) siguen siendo los leídos.
// El UPDATE toma el lock de la fila hasta el fin de la tx.
func (r *OrderRepo) CompareAndSetStatus(ctx context.Context, uuid string, expected entity.OrderStatus, version int64, next entity.OrderStatus) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE orders SET status = $4, version = version + 1, updated_at = now()
		WHERE uuid = $1 AND status = $2 AND version = $3`,
		uuid, expected, version, next)
	if err != nil {
		return mapError("update order status", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE uuid = $1)`, uuid).Scan(&exists); err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return fmt.Errorf("pedido %s: %w", uuid, domain.ErrConcurrentModification)
}
