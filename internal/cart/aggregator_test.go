package cart

import (
	"testing"

	"github.com/jyush98/jason-co-ecom-sub003/internal/config"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() config.CartLimits {
	return config.CartLimits{MaxQuantityPerItem: 10, MaxItemsInCart: 3}
}

func TestAddItem_AppendsNewLine(t *testing.T) {
	a := NewAggregator(testLimits())
	in := domain.Cart{UserID: "u1"}

	out, err := a.AddItem(in, domain.CartItem{ProductID: 1, UnitPrice: 500, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, 2, out.Items[0].Quantity)
	assert.False(t, out.Items[0].AddedAt.IsZero())
	assert.Empty(t, in.Items, "input cart must not change")
}

func TestAddItem_MergesAndClamps(t *testing.T) {
	a := NewAggregator(testLimits())
	in := domain.Cart{Items: []domain.CartItem{{ProductID: 1, Quantity: 8}}}

	out, err := a.AddItem(in, domain.CartItem{ProductID: 1, Quantity: 5})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, 10, out.Items[0].Quantity)
	assert.Equal(t, 8, in.Items[0].Quantity, "input cart must not change")
}

func TestAddItem_RejectsWhenCartFull(t *testing.T) {
	a := NewAggregator(testLimits())
	in := domain.Cart{Items: []domain.CartItem{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 1}, {ProductID: 3, Quantity: 1}}}

	_, err := a.AddItem(in, domain.CartItem{ProductID: 4, Quantity: 1})
	var sizeErr *domain.CartSizeExceededError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, 3, sizeErr.Max)

	// merging into an existing line is still allowed at capacity
	out, err := a.AddItem(in, domain.CartItem{ProductID: 2, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Items[1].Quantity)
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	a := NewAggregator(testLimits())
	_, err := a.AddItem(domain.Cart{}, domain.CartItem{ProductID: 1, Quantity: 0})
	assert.ErrorAs(t, err, new(*domain.InvalidQuantityError))
}

func TestAddItem_ClampsFirstAdd(t *testing.T) {
	a := NewAggregator(testLimits())
	out, err := a.AddItem(domain.Cart{}, domain.CartItem{ProductID: 1, Quantity: 25})
	require.NoError(t, err)
	assert.Equal(t, 10, out.Items[0].Quantity)
}

func TestAddItem_PreservesInsertionOrder(t *testing.T) {
	a := NewAggregator(testLimits())
	c := domain.Cart{}
	var err error
	for _, id := range []int64{3, 1, 2} {
		c, err = a.AddItem(c, domain.CartItem{ProductID: id, Quantity: 1})
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{3, 1, 2}, []int64{c.Items[0].ProductID, c.Items[1].ProductID, c.Items[2].ProductID})
}

func TestUpdateQuantity(t *testing.T) {
	a := NewAggregator(testLimits())
	in := domain.Cart{Items: []domain.CartItem{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 4}}}

	out, err := a.UpdateQuantity(in, 2, 7)
	require.NoError(t, err)
	assert.Equal(t, 7, out.Items[1].Quantity)

	out, err = a.UpdateQuantity(in, 1, 0)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(2), out.Items[0].ProductID)

	_, err = a.UpdateQuantity(in, 1, 11)
	assert.ErrorAs(t, err, new(*domain.InvalidQuantityError))

	_, err = a.UpdateQuantity(in, 1, -1)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = a.UpdateQuantity(in, 99, 1)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	assert.Len(t, in.Items, 2)
}

func TestRemoveItem(t *testing.T) {
	a := NewAggregator(testLimits())
	in := domain.Cart{Items: []domain.CartItem{{ProductID: 1, Quantity: 1}, {ProductID: 2, Quantity: 1}}}

	out, err := a.RemoveItem(in, 1)
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, int64(2), out.Items[0].ProductID)
	assert.Equal(t, int64(1), in.Items[0].ProductID)

	_, err = a.RemoveItem(in, 42)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestSubtract(t *testing.T) {
	a := NewAggregator(testLimits())
	ordered := domain.Cart{PromoCode: "SAVE10", Items: []domain.CartItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}}
	current := domain.Cart{UserID: "u1", Version: 4, PromoCode: "SAVE10", Items: []domain.CartItem{
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 1},
		{ProductID: 9, Quantity: 1},
	}}

	out := a.Subtract(current, ordered)
	require.Len(t, out.Items, 2)
	assert.Equal(t, int64(1), out.Items[0].ProductID)
	assert.Equal(t, 1, out.Items[0].Quantity)
	assert.Equal(t, int64(9), out.Items[1].ProductID)
	assert.Empty(t, out.PromoCode)
	assert.Equal(t, int64(4), out.Version)
	assert.Len(t, current.Items, 3)

	current.PromoCode = "OTHER"
	assert.Equal(t, "OTHER", a.Subtract(current, ordered).PromoCode)

	// quantity lowered below the ordered amount in the meantime
	lowered := domain.Cart{Items: []domain.CartItem{{ProductID: 1, Quantity: 1}}}
	assert.Empty(t, a.Subtract(lowered, ordered).Items)
}

func TestClear(t *testing.T) {
	a := NewAggregator(testLimits())
	in := domain.Cart{UserID: "u1", PromoCode: "SAVE10", Items: []domain.CartItem{{ProductID: 1, Quantity: 1}}}

	out := a.Clear(in)
	assert.Empty(t, out.Items)
	assert.Empty(t, out.PromoCode)
	assert.Equal(t, "u1", out.UserID)
	assert.Len(t, in.Items, 1)
}
