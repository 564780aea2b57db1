package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jyush98/jason-co-ecom-sub003/internal/cache"
	"github.com/jyush98/jason-co-ecom-sub003/internal/catalog"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/jyush98/jason-co-ecom-sub003/internal/pricing"
	"github.com/jyush98/jason-co-ecom-sub003/internal/promo"
	"github.com/jyush98/jason-co-ecom-sub003/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var ErrProductUnavailable = fmt.Errorf("%w: product is not available", domain.ErrValidation)

const (
	cacheFillTimeout = time.Second
	maxClearAttempts = 3
)

// ProductLookup is the catalog as seen by the cart.
type ProductLookup interface {
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
}

const (
	StaleRemoved      = "removed"
	StaleUnavailable  = "unavailable"
	StalePriceChanged = "price_changed"
)

// StaleItem is a cart line whose snapshot no longer matches the catalog.
type StaleItem struct {
	ProductID    int64        `json:"product_id"`
	ProductName  string       `json:"product_name"`
	Reason       string       `json:"reason"`
	CartPrice    domain.Money `json:"cart_price"`
	CatalogPrice domain.Money `json:"catalog_price,omitempty"`
}

type Service struct {
	repo     repository.CartRepository
	cache    cache.CartCache
	products ProductLookup
	agg      *Aggregator
	promos   *promo.Validator
	locks    *keyedMutex
	sfg      singleflight.Group // Prevents cache stampede
}

func NewService(repo repository.CartRepository, c cache.CartCache, products ProductLookup, agg *Aggregator, promos *promo.Validator) *Service {
	return &Service{
		repo:     repo,
		cache:    c,
		products: products,
		agg:      agg,
		promos:   promos,
		locks:    newKeyedMutex(),
	}
}

func (s *Service) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (any, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Str("user_id", userID).Msg("cart cache get failed")
		}

		return s.fillCache(ctx, userID)
	})
	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

// fillCache loads the stored cart and caches it under the per-user lock, so a concurrent
// mutation cannot invalidate the cache before a stale copy is written back.
func (s *Service) fillCache(ctx context.Context, userID string) (*domain.Cart, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	setCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cacheFillTimeout)
	defer cancel()
	c := cart.Clone()
	if err := s.cache.Set(setCtx, userID, &c); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("cart cache set failed")
	}
	return cart, nil
}

// LoadCart reads the stored cart, bypassing the cache.
func (s *Service) LoadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.load(ctx, userID)
}

// AddItem snapshots the current catalog price of productID into the cart.
func (s *Service) AddItem(ctx context.Context, userID string, productID int64, quantity int, options map[string]string) (*domain.Cart, error) {
	p, err := s.lookup(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Available {
		return nil, ErrProductUnavailable
	}

	item := domain.CartItem{
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitPrice:   p.Price,
		Quantity:    quantity,
		Metadata: domain.ProductMetadata{
			SKU:           p.SKU,
			ImageURL:      p.ImageURL,
			Category:      p.Category,
			CustomOptions: options,
		},
	}

	return s.mutate(ctx, userID, func(c domain.Cart) (domain.Cart, error) {
		return s.agg.AddItem(c, item)
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, userID string, productID int64, quantity int) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(c domain.Cart) (domain.Cart, error) {
		return s.agg.UpdateQuantity(c, productID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID string, productID int64) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(c domain.Cart) (domain.Cart, error) {
		return s.agg.RemoveItem(c, productID)
	})
}

// ApplyPromo validates code against the current subtotal and attaches it when valid.
// A rejected code leaves the cart unchanged and is reported through the result.
func (s *Service) ApplyPromo(ctx context.Context, userID, code string) (*domain.Cart, promo.Result, error) {
	var res promo.Result
	cart, err := s.mutate(ctx, userID, func(c domain.Cart) (domain.Cart, error) {
		res = s.promos.Validate(code, pricing.Subtotal(c))
		if !res.Valid {
			return c, errUnchanged
		}
		out := c.Clone()
		out.PromoCode = res.Code
		return out, nil
	})
	if err != nil {
		return nil, promo.Result{}, err
	}
	return cart, res, nil
}

func (s *Service) RemovePromo(ctx context.Context, userID string) (*domain.Cart, error) {
	return s.mutate(ctx, userID, func(c domain.Cart) (domain.Cart, error) {
		if c.PromoCode == "" {
			return c, errUnchanged
		}
		out := c.Clone()
		out.PromoCode = ""
		return out, nil
	})
}

// ClearCart deletes the cart. Clearing a cart that does not exist is not an error.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	return s.clear(ctx, userID, func(current domain.Cart) domain.Cart {
		return s.agg.Clear(current)
	})
}

// ClearOrdered removes what was ordered from the cart. When the cart is still at the
// version that was ordered it is deleted; otherwise only the ordered quantities are taken
// out and lines added during checkout stay.
func (s *Service) ClearOrdered(ctx context.Context, userID string, ordered domain.Cart) error {
	return s.clear(ctx, userID, func(current domain.Cart) domain.Cart {
		if current.Version == ordered.Version {
			return s.agg.Clear(current)
		}
		log.Info().
			Str("user_id", userID).
			Int64("ordered_version", ordered.Version).
			Int64("current_version", current.Version).
			Msg("cart changed during checkout, keeping newer lines")
		return s.agg.Subtract(current, ordered)
	})
}

// clear writes rest(current) back, deleting the cart when nothing is left. Writes are
// guarded by the version read, so a writer on another instance makes us re-read.
func (s *Service) clear(ctx context.Context, userID string, rest func(domain.Cart) domain.Cart) error {
	unlock := s.locks.Lock(userID)
	defer unlock()
	defer s.invalidateCache(userID)

	var err error
	for range maxClearAttempts {
		var current *domain.Cart
		current, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		next := rest(*current)
		if next.IsEmpty() {
			err = s.repo.DeleteCart(ctx, userID, current.Version)
		} else {
			err = s.repo.SaveCart(ctx, &next)
		}
		if errors.Is(err, repository.ErrCartNotFound) {
			return nil
		}
		if !errors.Is(err, repository.ErrCartConflict) {
			break
		}
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("cart clear failed")
	}
	return err
}

func (s *Service) ItemCount(ctx context.Context, userID string) (int, error) {
	c, err := s.GetCart(ctx, userID)
	if err != nil {
		return 0, err
	}
	return c.ItemCount(), nil
}

// Revalidate compares every cart line with the live catalog and reports the lines that went stale.
// The cart itself is not modified.
func (s *Service) Revalidate(ctx context.Context, userID string) ([]StaleItem, error) {
	c, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	stale := []StaleItem{}
	for _, item := range c.Items {
		p, err := s.products.GetProduct(ctx, item.ProductID)
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			stale = append(stale, StaleItem{ProductID: item.ProductID, ProductName: item.ProductName, Reason: StaleRemoved, CartPrice: item.UnitPrice})
		case err != nil:
			return nil, &domain.CollaboratorError{Service: "catalog", Err: err}
		case !p.Available:
			stale = append(stale, StaleItem{ProductID: item.ProductID, ProductName: item.ProductName, Reason: StaleUnavailable, CartPrice: item.UnitPrice, CatalogPrice: p.Price})
		case p.Price != item.UnitPrice:
			stale = append(stale, StaleItem{ProductID: item.ProductID, ProductName: item.ProductName, Reason: StalePriceChanged, CartPrice: item.UnitPrice, CatalogPrice: p.Price})
		}
	}
	return stale, nil
}

var errUnchanged = errors.New("cart unchanged")

// mutate runs fn on the stored cart under the per-user lock and persists the result.
// fn may return errUnchanged to skip the write.
func (s *Service) mutate(ctx context.Context, userID string, fn func(domain.Cart) (domain.Cart, error)) (*domain.Cart, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	current, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	next, err := fn(*current)
	if errors.Is(err, errUnchanged) {
		return current, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.repo.SaveCart(ctx, &next); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("cart save failed")
		return nil, err
	}

	s.invalidateCache(userID)
	return &next, nil
}

func (s *Service) load(ctx context.Context, userID string) (*domain.Cart, error) {
	c, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, repository.ErrCartNotFound) {
		now := time.Now()
		return &domain.Cart{UserID: userID, Items: []domain.CartItem{}, CreatedAt: now, UpdatedAt: now}, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) lookup(ctx context.Context, productID int64) (*catalog.Product, error) {
	p, err := s.products.GetProduct(ctx, productID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, &domain.CollaboratorError{Service: "catalog", Err: err}
	}
	return p, nil
}

func (s *Service) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("cart cache invalidate failed")
	}
}
