package cart

import (
	"time"

	"github.com/jyush98/jason-co-ecom-sub003/internal/config"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
)

// Aggregator applies line-item mutations to a cart. It never mutates its input and
// always returns a fresh cart that satisfies the configured limits.
type Aggregator struct {
	limits config.CartLimits
	now    func() time.Time
}

func NewAggregator(limits config.CartLimits) *Aggregator {
	return &Aggregator{limits: limits, now: time.Now}
}

// AddItem merges item into an existing line for the same product, clamping the summed quantity
// to the per-item maximum, or appends a new line when the cart has room.
func (a *Aggregator) AddItem(cart domain.Cart, item domain.CartItem) (domain.Cart, error) {
	if item.Quantity <= 0 {
		return domain.Cart{}, &domain.InvalidQuantityError{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Max:       a.limits.MaxQuantityPerItem,
		}
	}

	out := cart.Clone()
	now := a.now()

	if idx := out.IndexOf(item.ProductID); idx >= 0 {
		out.Items[idx].Quantity = min(out.Items[idx].Quantity+item.Quantity, a.limits.MaxQuantityPerItem)
		out.UpdatedAt = now
		return out, nil
	}

	if len(out.Items) >= a.limits.MaxItemsInCart {
		return domain.Cart{}, &domain.CartSizeExceededError{Count: len(out.Items) + 1, Max: a.limits.MaxItemsInCart}
	}

	item.Quantity = min(item.Quantity, a.limits.MaxQuantityPerItem)
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}
	out.Items = append(out.Items, item)
	out.UpdatedAt = now
	return out, nil
}

// UpdateQuantity sets the quantity of an existing line. Zero removes the line.
func (a *Aggregator) UpdateQuantity(cart domain.Cart, productID int64, quantity int) (domain.Cart, error) {
	if quantity == 0 {
		return a.RemoveItem(cart, productID)
	}
	if quantity < 0 || quantity > a.limits.MaxQuantityPerItem {
		return domain.Cart{}, &domain.InvalidQuantityError{
			ProductID: productID,
			Quantity:  quantity,
			Max:       a.limits.MaxQuantityPerItem,
		}
	}

	idx := cart.IndexOf(productID)
	if idx < 0 {
		return domain.Cart{}, domain.ErrItemNotFound
	}

	out := cart.Clone()
	out.Items[idx].Quantity = quantity
	out.UpdatedAt = a.now()
	return out, nil
}

func (a *Aggregator) RemoveItem(cart domain.Cart, productID int64) (domain.Cart, error) {
	idx := cart.IndexOf(productID)
	if idx < 0 {
		return domain.Cart{}, domain.ErrItemNotFound
	}

	out := cart.Clone()
	out.Items = append(out.Items[:idx], out.Items[idx+1:]...)
	out.UpdatedAt = a.now()
	return out, nil
}

// Subtract takes the ordered quantities out of cart, matching lines by product.
// Lines that reach zero are dropped. The promo code goes too when it is the one that was ordered.
func (a *Aggregator) Subtract(cart domain.Cart, ordered domain.Cart) domain.Cart {
	taken := make(map[int64]int, len(ordered.Items))
	for _, it := range ordered.Items {
		taken[it.ProductID] += it.Quantity
	}

	out := cart.Clone()
	out.Items = make([]domain.CartItem, 0, len(cart.Items))
	for _, it := range cart.Items {
		it.Quantity -= taken[it.ProductID]
		if it.Quantity > 0 {
			out.Items = append(out.Items, it)
		}
	}
	if out.PromoCode == ordered.PromoCode {
		out.PromoCode = ""
	}
	out.UpdatedAt = a.now()
	return out
}

// Clear empties the cart and drops any attached promo code.
func (a *Aggregator) Clear(cart domain.Cart) domain.Cart {
	out := cart.Clone()
	out.Items = []domain.CartItem{}
	out.PromoCode = ""
	out.UpdatedAt = a.now()
	return out
}
