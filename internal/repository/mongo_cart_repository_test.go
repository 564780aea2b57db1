package repository

import (
	"context"
	"testing"

	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestMongo(t *testing.T) *MongoCartRepository {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoCartRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	t.Cleanup(func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	return repo
}

func TestGetCart_NotFound(t *testing.T) {
	repo := setupTestMongo(t)

	cart, err := repo.GetCart(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.Nil(t, cart)
}

func TestSaveCart_CreatesAndBumpsVersion(t *testing.T) {
	repo := setupTestMongo(t)
	ctx := context.Background()

	cart := &domain.Cart{
		UserID:    "user123",
		PromoCode: "SAVE10",
		Items: []domain.CartItem{
			{ProductID: 1, ProductName: "Ring", UnitPrice: 12000, Quantity: 2,
				Metadata: domain.ProductMetadata{SKU: "JC-RG-003", CustomOptions: map[string]string{"size": "9"}}},
		},
	}
	require.NoError(t, repo.SaveCart(ctx, cart))
	assert.Equal(t, int64(1), cart.Version)

	stored, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.Equal(t, "SAVE10", stored.PromoCode)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, domain.Money(12000), stored.Items[0].UnitPrice)
	assert.Equal(t, "9", stored.Items[0].Metadata.CustomOptions["size"])

	stored.Items[0].Quantity = 3
	require.NoError(t, repo.SaveCart(ctx, stored))
	assert.Equal(t, int64(2), stored.Version)
}

func TestSaveCart_StaleVersionConflicts(t *testing.T) {
	repo := setupTestMongo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveCart(ctx, &domain.Cart{UserID: "user123", Items: []domain.CartItem{{ProductID: 1, Quantity: 1}}}))

	first, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	second, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)

	first.Items[0].Quantity = 2
	require.NoError(t, repo.SaveCart(ctx, first))

	second.Items[0].Quantity = 5
	err = repo.SaveCart(ctx, second)
	assert.ErrorIs(t, err, ErrCartConflict)
	assert.ErrorIs(t, err, domain.ErrState)

	stored, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Items[0].Quantity)
}

func TestDeleteCart(t *testing.T) {
	repo := setupTestMongo(t)
	ctx := context.Background()

	cart := &domain.Cart{UserID: "user123"}
	require.NoError(t, repo.SaveCart(ctx, cart))
	require.NoError(t, repo.DeleteCart(ctx, "user123", cart.Version))

	_, err := repo.GetCart(ctx, "user123")
	assert.ErrorIs(t, err, ErrCartNotFound)
	assert.ErrorIs(t, repo.DeleteCart(ctx, "user123", cart.Version), ErrCartNotFound)
}

func TestDeleteCart_NewerVersionSurvives(t *testing.T) {
	repo := setupTestMongo(t)
	ctx := context.Background()

	cart := &domain.Cart{UserID: "user123", Items: []domain.CartItem{{ProductID: 1, Quantity: 1}}}
	require.NoError(t, repo.SaveCart(ctx, cart))
	seen := cart.Version

	cart.Items = append(cart.Items, domain.CartItem{ProductID: 2, Quantity: 1})
	require.NoError(t, repo.SaveCart(ctx, cart))

	err := repo.DeleteCart(ctx, "user123", seen)
	assert.ErrorIs(t, err, ErrCartConflict)

	stored, err := repo.GetCart(ctx, "user123")
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
}
