package entity

import (
	"encoding/json"
	"time"
)

// Tipos de evento del timeline del pedido.
const (
	EventTypeStatusChange    = "status_change"
	EventTypeEmailSent       = "email_sent"
	EventTypePaymentReceived = "payment_received"
	EventTypeShippingUpdate  = "shipping_update"
	EventTypeSupportTicket   = "support_ticket"
	EventTypeNote            = "note"
)

// OrderEvent registro inmutable del event log. La historia autoritativa de estados es la
// subsecuencia con EventType = status_change.
type OrderEvent struct {
	ID          string
	OrderUUID   string
	EventType   string
	EventData   json.RawMessage
	CreatedAt   time.Time
	CreatedBy   string
	Title       string
	Description string
}

// StatusChangeData payload de un evento status_change.
type StatusChangeData struct {
	OldStatus OrderStatus `json:"old_status"`
	NewStatus OrderStatus `json:"new_status"`
	Notes     string      `json:"notes,omitempty"`
}

// StatusChange decodifica el payload si el evento es un cambio de estado.
func (e *OrderEvent) StatusChange() (StatusChangeData, bool) {
	var d StatusChangeData
	if e.EventType != EventTypeStatusChange {
		return d, false
	}
	if err := json.Unmarshal(e.EventData, &d); err != nil {
		return d, false
	}
	return d, true
}
