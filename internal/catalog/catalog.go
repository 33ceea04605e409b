// Package catalog holds the in-memory filtering and paging applied to
// product lists fetched from the document store.
package catalog

import (
	"strings"

	"github.com/katharos/storefront/internal/domain"
)

const (
	DefaultPageSize = 12
	MaxPageSize     = 100
)

// Matches reports whether query is a case-insensitive substring of the
// product's name, description, category or any tag. An empty query matches.
func Matches(p domain.Product, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.Description), q) ||
		strings.Contains(strings.ToLower(p.Category), q) {
		return true
	}
	for _, tag := range p.Tags {
		if strings.Contains(strings.ToLower(tag), q) {
			return true
		}
	}
	return false
}

func Search(products []domain.Product, query string) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if Matches(p, query) {
			out = append(out, p)
		}
	}
	return out
}

// FilterByCategory keeps products of category; "" and "all" keep everything.
func FilterByCategory(products []domain.Product, category string) []domain.Product {
	if category == "" || category == domain.CategoryAll {
		return products
	}
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

type Page struct {
	Items      []domain.Product `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
	HasNext    bool             `json:"has_next"`
}

// Paginate slices products into 1-based pages. Out of range pages come back
// empty with the totals still filled in.
func Paginate(products []domain.Product, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	if page < 1 {
		page = 1
	}

	total := len(products)
	totalPages := (total + pageSize - 1) / pageSize

	start := (page - 1) * pageSize
	items := []domain.Product{}
	if start < total {
		end := min(start+pageSize, total)
		items = products[start:end]
	}

	return Page{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}
