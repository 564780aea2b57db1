package domain

import (
	"maps"
	"time"
)

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"user_id"`
	Items     []CartItem `bson:"items" json:"items"`
	PromoCode string     `bson:"promo_code,omitempty" json:"promo_code,omitempty"`
	Version   int64      `bson:"version" json:"version"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// CartItem holds the catalog price captured when the product was added.
type CartItem struct {
	ProductID   int64           `bson:"product_id" json:"product_id"`
	ProductName string          `bson:"product_name" json:"product_name"`
	UnitPrice   Money           `bson:"unit_price" json:"unit_price"`
	Quantity    int             `bson:"quantity" json:"quantity"`
	Metadata    ProductMetadata `bson:"metadata" json:"metadata"`
	AddedAt     time.Time       `bson:"added_at" json:"added_at"`
}

type ProductMetadata struct {
	SKU           string            `bson:"sku,omitempty" json:"sku,omitempty"`
	ImageURL      string            `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Category      string            `bson:"category,omitempty" json:"category,omitempty"`
	CustomOptions map[string]string `bson:"custom_options,omitempty" json:"custom_options,omitempty"`
}

func (i CartItem) LineTotal() Money {
	return i.UnitPrice.Times(i.Quantity)
}

// Clone returns a deep copy so callers can derive a new cart without touching the original.
func (c Cart) Clone() Cart {
	out := c
	out.Items = make([]CartItem, len(c.Items))
	for i, item := range c.Items {
		item.Metadata.CustomOptions = maps.Clone(item.Metadata.CustomOptions)
		out.Items[i] = item
	}
	return out
}

// IndexOf returns the position of the line for productID or -1.
func (c Cart) IndexOf(productID int64) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// ItemCount is the total number of units across all lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}
