package memory

import (
	"context"
	"fmt"

	"github.com/jhoicas/retail-ops/internal/domain"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
)

var (
	_ repository.OrderRepository      = (*OrderRepo)(nil)
	_ repository.OrderEventRepository = (*OrderEventRepo)(nil)
)

// OrderRepo pedidos y sus líneas.
type OrderRepo struct{ db access }

func (r *OrderRepo) Create(_ context.Context, o *entity.Order, items []*entity.OrderItem) error {
	return r.db.with(func(st *state) error {
		if _, ok := st.orders[o.UUID]; ok {
			return fmt.Errorf("%w: pedido %s ya existe", domain.ErrValidation, o.UUID)
		}
		st.orders[o.UUID] = *o
		lines := make([]entity.OrderItem, 0, len(items))
		for _, it := range items {
			lines = append(lines, *it)
		}
		st.orderItems[o.UUID] = lines
		return nil
	})
}

func (r *OrderRepo) GetByUUID(_ context.Context, uuid string) (*entity.Order, error) {
	var out *entity.Order
	err := r.db.with(func(st *state) error {
		if o, ok := st.orders[uuid]; ok {
			out = &o
		}
		return nil
	})
	return out, err
}

func (r *OrderRepo) GetItems(_ context.Context, uuid string) ([]*entity.OrderItem, error) {
	var out []*entity.OrderItem
	err := r.db.with(func(st *state) error {
		for _, it := range st.orderItems[uuid] {
			it := it
			out = append(out, &it)
		}
		return nil
	})
	return out, err
}

func (r *OrderRepo) CompareAndSetStatus(_ context.Context, uuid string, expected entity.OrderStatus, version int64, next entity.OrderStatus) error {
	return r.db.with(func(st *state) error {
		o, ok := st.orders[uuid]
		if !ok {
			return domain.ErrNotFound
		}
		if o.Status != expected || o.Version != version {
			return fmt.Errorf("%w: pedido %s", domain.ErrConcurrentModification, uuid)
		}
		o.Status = next
		o.Version++
		o.UpdatedAt = r.db.now()
		st.orders[uuid] = o
		return nil
	})
}

// OrderEventRepo event log append-only de pedidos.
type OrderEventRepo struct{ db access }

func (r *OrderEventRepo) Append(_ context.Context, e *entity.OrderEvent) error {
	return r.db.with(func(st *state) error {
		if _, ok := st.orders[e.OrderUUID]; !ok {
			return domain.ErrNotFound
		}
		st.events = append(st.events, *e)
		return nil
	})
}

func (r *OrderEventRepo) GetByID(_ context.Context, id string) (*entity.OrderEvent, error) {
	var out *entity.OrderEvent
	err := r.db.with(func(st *state) error {
		for i := range st.events {
			if st.events[i].ID == id {
				e := st.events[i]
				out = &e
				return nil
			}
		}
		return nil
	})
	return out, err
}

// ListByOrder más recientes primero (orden inverso de inserción).
func (r *OrderEventRepo) ListByOrder(_ context.Context, orderUUID string) ([]*entity.OrderEvent, error) {
	var out []*entity.OrderEvent
	err := r.db.with(func(st *state) error {
		for i := len(st.events) - 1; i >= 0; i-- {
			if st.events[i].OrderUUID == orderUUID {
				e := st.events[i]
				out = append(out, &e)
			}
		}
		return nil
	})
	return out, err
}

func (r *OrderEventRepo) LatestStatusChange(_ context.Context, orderUUID string) (*entity.OrderEvent, error) {
	var out *entity.OrderEvent
	err := r.db.with(func(st *state) error {
		for i := len(st.events) - 1; i >= 0; i-- {
			e := st.events[i]
			if e.OrderUUID == orderUUID && e.EventType == entity.EventTypeStatusChange {
				out = &e
				return nil
			}
		}
		return nil
	})
	return out, err
}
