package repository

import (
	"context"
	"errors"

	"github.com/katharos/storefront/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNegativeStock   = errors.New("stock quantity cannot be negative")
	ErrNoProductIDs    = errors.New("no product ids provided")
)

// ProductRepository is the Catalog Store.
type ProductRepository interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListAll(ctx context.Context) ([]domain.Product, error)
	ListActive(ctx context.Context) ([]domain.Product, error)
	ListByCategory(ctx context.Context, category string) ([]domain.Product, error)
	Search(ctx context.Context, query string) ([]domain.Product, error)
	Featured(ctx context.Context, limit int64) ([]domain.Product, error)

	Create(ctx context.Context, p domain.Product, createdBy string) (*domain.Product, error)
	Update(ctx context.Context, id string, changes domain.ProductChanges) (*domain.Product, error)
	UpdateStock(ctx context.Context, id string, quantity int) (*domain.Product, error)
	// AddImage and RemoveImage change one URL in place, so concurrent
	// uploads to the same product do not overwrite each other.
	AddImage(ctx context.Context, id, url string) (*domain.Product, error)
	RemoveImage(ctx context.Context, id, url string) (*domain.Product, error)
	SetFeatured(ctx context.Context, id string, featured bool) error
	SoftDelete(ctx context.Context, id string) error
	BatchSoftDelete(ctx context.Context, ids []string) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (domain.ProductStats, error)
}
