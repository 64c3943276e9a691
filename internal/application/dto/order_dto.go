package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderItemRequest línea del pedido.
type CreateOrderItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"` // cero = precio del producto
	Discount  decimal.Decimal `json:"discount"`
}

// CreateOrderRequest body para POST /api/orders.
type CreateOrderRequest struct {
	CustomerName  string                   `json:"customer_name"`
	CustomerEmail string                   `json:"customer_email"`
	Discount      decimal.Decimal          `json:"discount"`
	Items         []CreateOrderItemRequest `json:"items"`
}

// CheckoutPayload datos de pago simulado para DRAFT → PAID.
type CheckoutPayload struct {
	PaymentMethod string          `json:"payment_method"`
	Amount        decimal.Decimal `json:"amount"`
}

// TransitionRequest body para POST /api/orders/:uuid/transitions.
type TransitionRequest struct {
	TargetStatus   string           `json:"target_status"`
	ExpectedStatus string           `json:"expected_status,omitempty"`
	Notes          string           `json:"notes,omitempty"`
	Checkout       *CheckoutPayload `json:"checkout,omitempty"`
}

// RecordEventRequest body para POST /api/orders/:uuid/events.
type RecordEventRequest struct {
	EventType   string          `json:"event_type"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// OrderItemResponse línea del pedido.
type OrderItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
}

// OrderResponse pedido con sus líneas y los estados alcanzables.
type OrderResponse struct {
	UUID          string              `json:"uuid"`
	Status        string              `json:"status"`
	CustomerName  string              `json:"customer_name"`
	CustomerEmail string              `json:"customer_email,omitempty"`
	Discount      decimal.Decimal     `json:"discount"`
	OrderTotal    decimal.Decimal     `json:"order_total"`
	StorefrontID  string              `json:"storefront_id"`
	Version       int64               `json:"version"`
	NextStatuses  []string            `json:"next_statuses"`
	Items         []OrderItemResponse `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// OrderEventResponse evento del timeline.
type OrderEventResponse struct {
	ID          string          `json:"id"`
	OrderUUID   string          `json:"order_uuid"`
	EventType   string          `json:"event_type"`
	EventData   json.RawMessage `json:"event_data,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CreatedBy   string          `json:"created_by"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
}

// TransitionResponse resultado de una transición.
type TransitionResponse struct {
	Event    OrderEventResponse `json:"event"`
	Status   string             `json:"status"`
	Replayed bool               `json:"replayed"`
}

// TimelineResponse eventos del pedido, más recientes primero.
type TimelineResponse struct {
	OrderUUID    string               `json:"order_uuid"`
	Status       string               `json:"status"`
	StatusInSync bool                 `json:"status_in_sync"`
	Events       []OrderEventResponse `json:"events"`
}
