package domain

import "time"

type Product struct {
	ID            string    `bson:"_id" json:"id"`
	Name          string    `bson:"name" json:"name"`
	Description   string    `bson:"description" json:"description"`
	Category      string    `bson:"category" json:"category"`
	Price         float64   `bson:"price" json:"price"`
	SalePrice     *float64  `bson:"sale_price,omitempty" json:"salePrice,omitempty"`
	Images        []string  `bson:"images" json:"images"`
	StockQuantity int       `bson:"stock_quantity" json:"stockQuantity"`
	Tags          []string  `bson:"tags,omitempty" json:"tags,omitempty"`
	Featured      bool      `bson:"featured" json:"featured"`
	IsActive      bool      `bson:"is_active" json:"isActive"`
	CreatedBy     string    `bson:"created_by,omitempty" json:"createdBy,omitempty"`
	CreatedAt     time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time `bson:"updated_at" json:"updatedAt"`
}

func (p Product) InStock() bool {
	return p.StockQuantity > 0
}

// ProductChanges is a partial update; nil fields are left untouched.
type ProductChanges struct {
	Name          *string
	Description   *string
	Category      *string
	Price         *float64
	SalePrice     *float64
	ClearSale     bool
	Images        []string
	StockQuantity *int
	Tags          []string
	Featured      *bool
}

type ProductStats struct {
	Total      int64 `json:"total"`
	OutOfStock int64 `json:"outOfStock"`
	Featured   int64 `json:"featured"`
}
