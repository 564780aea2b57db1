package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusFailed     OrderStatus = "failed"
)

var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCompleted,
	OrderStatusCancelled,
	OrderStatusFailed,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	for _, st := range AllOrderStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled || s == OrderStatusFailed
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentStatusSucceeded      PaymentStatus = "succeeded"
	PaymentStatusRequiresAction PaymentStatus = "requires_action"
	PaymentStatusFailed         PaymentStatus = "failed"
)

type OrderItem struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   Money  `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	LineTotal   Money  `json:"line_total"`
}

// Order is immutable after creation except for Status, the fulfilment fields and InternalNotes.
// InternalNotes are staff-only and never shown to customers.
type Order struct {
	ID                 uuid.UUID     `json:"id"`
	OrderNumber        string        `json:"order_number"`
	CheckoutID         uuid.UUID     `json:"checkout_id"`
	UserID             string        `json:"user_id"`
	Items              []OrderItem   `json:"items"`
	Subtotal           Money         `json:"subtotal"`
	TaxAmount          Money         `json:"tax_amount"`
	ShippingAmount     Money         `json:"shipping_amount"`
	DiscountAmount     Money         `json:"discount_amount"`
	TotalPrice         Money         `json:"total_price"`
	Currency           string        `json:"currency"`
	PromoCode          string        `json:"promo_code,omitempty"`
	ShippingAddress    Address       `json:"shipping_address"`
	BillingAddress     Address       `json:"billing_address"`
	ShippingMethodID   string        `json:"shipping_method_id"`
	ShippingMethodName string        `json:"shipping_method_name"`
	TrackingNumber     string        `json:"tracking_number,omitempty"`
	EstimatedDelivery  *time.Time    `json:"estimated_delivery_date,omitempty"`
	OrderNotes         string        `json:"order_notes,omitempty"`
	InternalNotes      string        `json:"internal_notes,omitempty"`
	PaymentReference   string        `json:"payment_reference"`
	PaymentStatus      PaymentStatus `json:"payment_status"`
	Status             OrderStatus   `json:"status"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	ShippedAt          *time.Time    `json:"shipped_at,omitempty"`
	DeliveredAt        *time.Time    `json:"delivered_at,omitempty"`
}

// RecomputedTotal derives the total from the stored components.
func (o *Order) RecomputedTotal() Money {
	return (o.Subtotal + o.TaxAmount + o.ShippingAmount - o.DiscountAmount).NonNegative()
}

func (o *Order) ItemCount() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// StatusChange is one row of an order's audit trail.
type StatusChange struct {
	OrderNumber string      `json:"order_number" db:"order_number"`
	From        OrderStatus `json:"from_status" db:"from_status"`
	To          OrderStatus `json:"to_status" db:"to_status"`
	ChangedBy   string      `json:"changed_by" db:"changed_by"`
	Reason      string      `json:"reason,omitempty" db:"change_reason"`
	// TrackingNumber is only set on the move to shipped.
	TrackingNumber string    `json:"tracking_number,omitempty" db:"tracking_number"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
