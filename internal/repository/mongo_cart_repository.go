package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoCartRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoCartRepository(db *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{
		collection: db.Collection("carts"),
		now:        time.Now,
	}
}

func (m *MongoCartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

// SaveCart upserts the cart guarded by its version. When the stored document has moved on,
// the upsert collides with the unique user_id index and ErrCartConflict is returned.
func (m *MongoCartRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	now := m.now()
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	items := cart.Items
	if items == nil {
		items = []domain.CartItem{}
	}

	filter := bson.M{"user_id": cart.UserID, "version": cart.Version}
	update := bson.M{
		"$set": bson.M{
			"items":      items,
			"promo_code": cart.PromoCode,
			"version":    cart.Version + 1,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": cart.CreatedAt},
	}

	_, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrCartConflict
		}
		return fmt.Errorf("failed to save cart: %w", err)
	}

	cart.Version++
	cart.UpdatedAt = now
	return nil
}

// DeleteCart deletes the cart if it is still at version. A cart saved since then is left alone
// and ErrCartConflict is returned.
func (m *MongoCartRepository) DeleteCart(ctx context.Context, userID string, version int64) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userID, "version": version})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if result.DeletedCount > 0 {
		return nil
	}

	n, err := m.collection.CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	if n > 0 {
		return ErrCartConflict
	}
	return ErrCartNotFound
}

func (m *MongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60), // abandoned carts
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	return nil
}
