// Package memory implementa los repositorios en memoria (desarrollo y tests).
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jhoicas/retail-ops/internal/application/ports"
	"github.com/jhoicas/retail-ops/internal/domain/entity"
)

type state struct {
	products      map[string]entity.Product
	suppliers     map[string]entity.Supplier
	movements     []entity.StockMovement // orden de inserción
	balances      map[string]entity.StockBalance
	orders        map[string]entity.Order
	orderItems    map[string][]entity.OrderItem
	events        []entity.OrderEvent // orden de inserción
	purchases     map[string]entity.PurchaseOrder
	purchaseItems map[string][]entity.PurchaseOrderItem
	idempotency   map[string]entity.IdempotencyRecord
}

func newState() *state {
	return &state{
		products:      make(map[string]entity.Product),
		suppliers:     make(map[string]entity.Supplier),
		balances:      make(map[string]entity.StockBalance),
		orders:        make(map[string]entity.Order),
		orderItems:    make(map[string][]entity.OrderItem),
		purchases:     make(map[string]entity.PurchaseOrder),
		purchaseItems: make(map[string][]entity.PurchaseOrderItem),
		idempotency:   make(map[string]entity.IdempotencyRecord),
	}
}

// clone copia profunda para el snapshot transaccional. Los json.RawMessage se comparten: son inmutables.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.suppliers {
		c.suppliers[k] = v
	}
	c.movements = append(make([]entity.StockMovement, 0, len(s.movements)), s.movements...)
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]entity.OrderItem(nil), v...)
	}
	c.events = append(make([]entity.OrderEvent, 0, len(s.events)), s.events...)
	for k, v := range s.purchases {
		c.purchases[k] = v
	}
	for k, v := range s.purchaseItems {
		c.purchaseItems[k] = append([]entity.PurchaseOrderItem(nil), v...)
	}
	for k, v := range s.idempotency {
		c.idempotency[k] = v
	}
	return c
}

// access ejecuta fn sobre el estado: con el lock del store (autocommit) o sobre el snapshot de una tx.
type access interface {
	with(fn func(st *state) error) error
	now() time.Time
}

// Store almacenamiento en memoria. Las transacciones se serializan con un único mutex y se
// simulan con snapshot: fn trabaja sobre una copia que reemplaza al estado solo si no hay error.
type Store struct {
	mu    sync.Mutex
	st    *state
	clock func() time.Time
}

var _ ports.TxRunner = (*Store)(nil)

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{st: newState(), clock: time.Now}
}

func (s *Store) with(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.st)
}

func (s *Store) now() time.Time { return s.clock() }

// Run ejecuta fn en una transacción simulada. Dentro de fn solo deben usarse los repos recibidos:
// los repos autocommit del mismo store bloquearían.
func (s *Store) Run(ctx context.Context, fn func(repos ports.TxRepos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txView{st: s.st.clone(), clock: s.clock}
	if err := fn(reposFor(tx)); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

// Repos repositorios autocommit del store.
func (s *Store) Repos() ports.TxRepos {
	return reposFor(s)
}

// SupplierRepo repositorio de proveedores.
func (s *Store) SupplierRepo() *SupplierRepo {
	return &SupplierRepo{db: s}
}

type txView struct {
	st    *state
	clock func() time.Time
}

func (t *txView) with(fn func(st *state) error) error { return fn(t.st) }
func (t *txView) now() time.Time                      { return t.clock() }

func reposFor(db access) ports.TxRepos {
	return ports.TxRepos{
		Movements:      &StockMovementRepo{db: db},
		Balances:       &StockBalanceRepo{db: db},
		Products:       &ProductRepo{db: db},
		Orders:         &OrderRepo{db: db},
		Events:         &OrderEventRepo{db: db},
		PurchaseOrders: &PurchaseOrderRepo{db: db},
		Idempotency:    &IdempotencyRepo{db: db},
	}
}
