package catalog

import (
	"time"

	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
)

type Product struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	SKU         string       `json:"sku"`
	Category    string       `json:"category"`
	Price       domain.Money `json:"price"`
	ImageURL    string       `json:"image_url"`
	Available   bool         `json:"available"`
	CreatedAt   time.Time    `json:"created_at"`
}
