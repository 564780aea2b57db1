package pricing

import (
	"fmt"

	"github.com/jyush98/jason-co-ecom-sub003/internal/config"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/jyush98/jason-co-ecom-sub003/internal/promo"
	"github.com/shopspring/decimal"
)

// Result is a full price breakdown. Total always equals
// max(0, Subtotal + Tax + Shipping - Discount).
type Result struct {
	Currency     string          `json:"currency"`
	ItemCount    int             `json:"item_count"`
	Subtotal     domain.Money    `json:"subtotal"`
	Discount     domain.Money    `json:"discount"`
	Taxable      domain.Money    `json:"taxable"`
	Tax          domain.Money    `json:"tax"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	Jurisdiction string          `json:"jurisdiction"`
	TaxFallback  bool            `json:"tax_fallback"`
	Shipping     domain.Money    `json:"shipping"`
	FreeShipping bool            `json:"free_shipping"`
	Total        domain.Money    `json:"total"`
	Promo        *promo.Result   `json:"promo,omitempty"`
}

// CheckIdentity verifies the total identity holds for r.
func (r *Result) CheckIdentity() error {
	want := (r.Subtotal + r.Tax + r.Shipping - r.Discount).NonNegative()
	if r.Total != want {
		return fmt.Errorf("total %s does not match components %s", r.Total, want)
	}
	return nil
}

type Engine struct {
	cfg    config.Pricing
	taxes  *TaxTable
	promos *promo.Validator
}

func NewEngine(cfg config.Pricing, taxes *TaxTable, promos *promo.Validator) *Engine {
	return &Engine{cfg: cfg, taxes: taxes, promos: promos}
}

// NewEngineFromConfig wires the tax table and promo registry declared in cfg.
func NewEngineFromConfig(cfg config.Pricing) *Engine {
	return NewEngine(cfg,
		NewTaxTable(cfg.TaxRates, cfg.FallbackTaxRate),
		promo.NewValidator(cfg.Promos))
}

func (e *Engine) Promos() *promo.Validator {
	return e.promos
}

func (e *Engine) Taxes() *TaxTable {
	return e.taxes
}

// Price computes the breakdown for cart shipped with method to address. It is a pure function of
// its inputs and the engine's configuration. An empty promoCode means no promotion.
func (e *Engine) Price(cart domain.Cart, method domain.ShippingMethod, address domain.Address, promoCode string) (*Result, error) {
	if err := e.validateCart(cart); err != nil {
		return nil, err
	}

	res := &Result{
		Currency:     e.cfg.Currency,
		ItemCount:    cart.ItemCount(),
		Jurisdiction: address.Jurisdiction(),
		Subtotal:     Subtotal(cart),
	}

	if promoCode != "" {
		outcome := e.promos.Validate(promoCode, res.Subtotal)
		res.Promo = &outcome
		res.Discount = domain.Min(outcome.Discount, res.Subtotal).NonNegative()
	}

	res.Shipping = method.Price.NonNegative()
	if e.cfg.FreeShippingThreshold > 0 && res.Subtotal >= e.cfg.FreeShippingThreshold {
		res.Shipping = 0
		res.FreeShipping = true
	}

	res.Taxable = res.Subtotal
	if e.cfg.TaxPolicy == config.TaxSubtotalAndShipping {
		res.Taxable += res.Shipping
	}

	rate, known := e.taxes.Lookup(res.Jurisdiction)
	res.TaxRate = rate
	res.TaxFallback = !known
	res.Tax = res.Taxable.ApplyRate(rate)

	res.Total = (res.Subtotal + res.Tax + res.Shipping - res.Discount).NonNegative()
	return res, nil
}

// Subtotal sums the cart lines without validating limits.
func Subtotal(cart domain.Cart) domain.Money {
	var total domain.Money
	for _, item := range cart.Items {
		total += item.LineTotal()
	}
	return total
}

func (e *Engine) validateCart(cart domain.Cart) error {
	if cart.IsEmpty() {
		return &domain.EmptyCartError{}
	}
	if len(cart.Items) > e.cfg.Limits.MaxItemsInCart {
		return &domain.CartSizeExceededError{Count: len(cart.Items), Max: e.cfg.Limits.MaxItemsInCart}
	}
	for _, item := range cart.Items {
		if item.Quantity < 1 || item.Quantity > e.cfg.Limits.MaxQuantityPerItem {
			return &domain.InvalidQuantityError{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Max:       e.cfg.Limits.MaxQuantityPerItem,
			}
		}
	}
	return nil
}
