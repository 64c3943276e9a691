package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
	"github.com/jhoicas/retail-ops/internal/domain/repository"
)

var _ repository.OrderEventRepository = (*OrderEventRepo)(nil)

// OrderEventRepo event log de pedidos. seq fija el orden entre eventos con el mismo created_at.
type OrderEventRepo struct {
	q Querier
}

// NewOrderEventRepository construye el adaptador. Pasar pool o tx (Querier).
func NewOrderEventRepository(q Querier) *OrderEventRepo {
	return &OrderEventRepo{q: q}
}

const eventColumns = `id, order_uuid, event_type, event_data, created_at, created_by, title, description`

// Append agrega un evento.
func (r *OrderEventRepo) Append(ctx context.Context, e *entity.OrderEvent) error {
	data := e.EventData
	if len(data) == 0 {
		data = []byte(`{}`)
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO order_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.OrderUUID, e.EventType, string(data), e.CreatedAt, e.CreatedBy, e.Title, e.Description)
	if err != nil {
		return mapError("append order event", err)
	}
	return nil
}

// GetByID obtiene un evento; nil si no existe.
func (r *OrderEventRepo) GetByID(ctx context.Context, id string) (*entity.OrderEvent, error) {
	e, err := scanEvent(r.q.QueryRow(ctx, `SELECT `+eventColumns+` FROM order_events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order event: %w", err)
	}
	return e, nil
}

// ListByOrder eventos del pedido, más recientes primero.
func (r *OrderEventRepo) ListByOrder(ctx context.Context, orderUUID string) ([]*entity.OrderEvent, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+eventColumns+` FROM order_events
		WHERE order_uuid = $1 ORDER BY seq DESC`, orderUUID)
	if err != nil {
		return nil, fmt.Errorf("list order events: %w", err)
	}
	defer rows.Close()
	var out []*entity.OrderEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LatestStatusChange último status_change del pedido.
func (r *OrderEventRepo) LatestStatusChange(ctx context.Context, orderUUID string) (*entity.OrderEvent, error) {
	e, err := scanEvent(r.q.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM order_events
		WHERE order_uuid = $1 AND event_type = $2
		ORDER BY seq DESC LIMIT 1`, orderUUID, entity.EventTypeStatusChange))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest status change: %w", err)
	}
	return e, nil
}

func scanEvent(row pgx.Row) (*entity.OrderEvent, error) {
	var e entity.OrderEvent
	var data []byte
	err := row.Scan(&e.ID, &e.OrderUUID, &e.EventType, &data, &e.CreatedAt, &e.CreatedBy, &e.Title, &e.Description)
	if err != nil {
		return nil, err
	}
	e.EventData = data
	return &e, nil
}
