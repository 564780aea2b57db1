package repository

import (
	"time"

	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is the payload written to the outbox and published on the order events topic.
type OrderEvent struct {
	EventType      string             `json:"event_type"`
	OrderID        string             `json:"order_id"`
	OrderNumber    string             `json:"order_number"`
	UserID         string             `json:"user_id"`
	CustomerEmail  string             `json:"customer_email,omitempty"`
	Status         domain.OrderStatus `json:"status"`
	PreviousStatus domain.OrderStatus `json:"previous_status,omitempty"`
	ChangedBy      string             `json:"changed_by,omitempty"`
	Reason         string             `json:"reason,omitempty"`
	TrackingNumber string             `json:"tracking_number,omitempty"`
	EstimatedAt    *time.Time         `json:"estimated_delivery_date,omitempty"`
	Total          domain.Money       `json:"total"`
	Currency       string             `json:"currency"`
	Items          []domain.OrderItem `json:"items,omitempty"`
	OccurredAt     time.Time          `json:"occurred_at"`
}

func placedEvent(o *domain.Order) OrderEvent {
	return OrderEvent{
		EventType:     EventOrderPlaced,
		OrderID:       o.ID.String(),
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		CustomerEmail: o.ShippingAddress.Email,
		Status:        o.Status,
		EstimatedAt:   o.EstimatedDelivery,
		Total:         o.TotalPrice,
		Currency:      o.Currency,
		Items:         o.Items,
		OccurredAt:    o.CreatedAt,
	}
}

func statusChangedEvent(o *domain.Order, change domain.StatusChange) OrderEvent {
	return OrderEvent{
		EventType:      EventOrderStatusChanged,
		OrderID:        o.ID.String(),
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		CustomerEmail:  o.ShippingAddress.Email,
		Status:         change.To,
		PreviousStatus: change.From,
		ChangedBy:      change.ChangedBy,
		Reason:         change.Reason,
		TrackingNumber: o.TrackingNumber,
		EstimatedAt:    o.EstimatedDelivery,
		Total:          o.TotalPrice,
		Currency:       o.Currency,
		OccurredAt:     change.CreatedAt,
	}
}
