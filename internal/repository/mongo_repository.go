package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/katharos/storefront/internal/catalog"
	"github.com/katharos/storefront/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const DefaultFeaturedLimit = 6

type mongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) ProductRepository {
	return &mongoRepository{
		collection: db.Collection("products"),
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

func (m *mongoRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (m *mongoRepository) ListAll(ctx context.Context) ([]domain.Product, error) {
	return m.find(ctx, bson.M{}, newestFirst())
}

func (m *mongoRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	return m.find(ctx, bson.M{"is_active": true}, newestFirst())
}

func (m *mongoRepository) ListByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	if category == "" || category == domain.CategoryAll {
		return m.ListActive(ctx)
	}
	return m.find(ctx, bson.M{"category": category, "is_active": true}, newestFirst())
}

// Search has no server side text index to lean on: active products are
// fetched and matched in memory.
func (m *mongoRepository) Search(ctx context.Context, query string) ([]domain.Product, error) {
	active, err := m.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Search(active, query), nil
}

func (m *mongoRepository) Featured(ctx context.Context, limit int64) ([]domain.Product, error) {
	if limit <= 0 {
		limit = DefaultFeaturedLimit
	}
	return m.find(ctx, bson.M{"featured": true, "is_active": true}, newestFirst().SetLimit(limit))
}

func (m *mongoRepository) Create(ctx context.Context, p domain.Product, createdBy string) (*domain.Product, error) {
	now := m.now()
	p.ID = uuid.NewString()
	p.CreatedBy = createdBy
	p.CreatedAt = now
	p.UpdatedAt = now
	p.IsActive = true
	if p.Images == nil {
		p.Images = []string{}
	}

	if _, err := m.collection.InsertOne(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &p, nil
}

func (m *mongoRepository) Update(ctx context.Context, id string, changes domain.ProductChanges) (*domain.Product, error) {
	update := bson.M{"$set": changeSet(changes, m.now())}
	if changes.ClearSale {
		update["$unset"] = bson.M{"sale_price": ""}
	}
	return m.updateAndFetch(ctx, id, update)
}

func (m *mongoRepository) UpdateStock(ctx context.Context, id string, quantity int) (*domain.Product, error) {
	if quantity < 0 {
		return nil, ErrNegativeStock
	}
	return m.updateAndFetch(ctx, id, bson.M{"$set": bson.M{
		"stock_quantity": quantity,
		"updated_at":     m.now(),
	}})
}

func (m *mongoRepository) AddImage(ctx context.Context, id, url string) (*domain.Product, error) {
	return m.updateAndFetch(ctx, id, bson.M{
		"$push": bson.M{"images": url},
		"$set":  bson.M{"updated_at": m.now()},
	})
}

func (m *mongoRepository) RemoveImage(ctx context.Context, id, url string) (*domain.Product, error) {
	return m.updateAndFetch(ctx, id, bson.M{
		"$pull": bson.M{"images": url},
		"$set":  bson.M{"updated_at": m.now()},
	})
}

func (m *mongoRepository) SetFeatured(ctx context.Context, id string, featured bool) error {
	return m.updateOne(ctx, id, bson.M{"$set": bson.M{
		"featured":   featured,
		"updated_at": m.now(),
	}})
}

func (m *mongoRepository) SoftDelete(ctx context.Context, id string) error {
	return m.updateOne(ctx, id, bson.M{"$set": bson.M{
		"is_active":  false,
		"updated_at": m.now(),
	}})
}

func (m *mongoRepository) BatchSoftDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return ErrNoProductIDs
	}
	_, err := m.collection.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}},
		bson.M{"$set": bson.M{"is_active": false, "updated_at": m.now()}},
	)
	if err != nil {
		return fmt.Errorf("failed to delete products: %w", err)
	}
	return nil
}

func (m *mongoRepository) Delete(ctx context.Context, id string) error {
	result, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *mongoRepository) Stats(ctx context.Context) (domain.ProductStats, error) {
	var stats domain.ProductStats
	var err error

	if stats.Total, err = m.collection.CountDocuments(ctx, bson.M{"is_active": true}); err != nil {
		return domain.ProductStats{}, fmt.Errorf("failed to count products: %w", err)
	}
	if stats.OutOfStock, err = m.collection.CountDocuments(ctx, bson.M{
		"is_active":      true,
		"stock_quantity": bson.M{"$lte": 0},
	}); err != nil {
		return domain.ProductStats{}, fmt.Errorf("failed to count out of stock products: %w", err)
	}
	if stats.Featured, err = m.collection.CountDocuments(ctx, bson.M{"is_active": true, "featured": true}); err != nil {
		return domain.ProductStats{}, fmt.Errorf("failed to count featured products: %w", err)
	}
	return stats, nil
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "category", Value: 1}, {Key: "is_active", Value: 1}}},
		{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "featured", Value: 1}}},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// CreateIndexes is exposed for main and tests; the interface stays storage agnostic.
func CreateIndexes(ctx context.Context, repo ProductRepository) error {
	m, ok := repo.(*mongoRepository)
	if !ok {
		return nil
	}
	return m.CreateIndexes(ctx)
}

func (m *mongoRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Product, error) {
	cursor, err := m.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []domain.Product{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

func (m *mongoRepository) updateOne(ctx context.Context, id string, update bson.M) error {
	result, err := m.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (m *mongoRepository) updateAndFetch(ctx context.Context, id string, update bson.M) (*domain.Product, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var p domain.Product
	err := m.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &p, nil
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
}

func changeSet(c domain.ProductChanges, now time.Time) bson.M {
	set := bson.M{"updated_at": now}
	if c.Name != nil {
		set["name"] = *c.Name
	}
	if c.Description != nil {
		set["description"] = *c.Description
	}
	if c.Category != nil {
		set["category"] = *c.Category
	}
	if c.Price != nil {
		set["price"] = *c.Price
	}
	if c.SalePrice != nil && !c.ClearSale {
		set["sale_price"] = *c.SalePrice
	}
	if c.Images != nil {
		set["images"] = c.Images
	}
	if c.StockQuantity != nil {
		set["stock_quantity"] = *c.StockQuantity
	}
	if c.Tags != nil {
		set["tags"] = c.Tags
	}
	if c.Featured != nil {
		set["featured"] = *c.Featured
	}
	return set
}
