package cart

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/katharos/storefront/internal/domain"
)

// Marshal serializes the whole cart; the store never receives partial writes.
func Marshal(c domain.Cart) ([]byte, error) {
	if c.Lines == nil {
		c.Lines = []domain.CartLine{}
	}
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal cart failed: %w", err)
	}
	return data, nil
}

type persistedCart struct {
	Lines          *[]domain.CartLine `json:"lines"`
	LastModifiedAt json.RawMessage    `json:"lastModifiedAt"`
}

// Unmarshal decodes a persisted blob and runs the shape check on it.
func Unmarshal(data []byte) (domain.Cart, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.Cart{}, fmt.Errorf("%w: not a JSON object", ErrMalformedState)
	}

	var raw persistedCart
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return domain.Cart{}, fmt.Errorf("%w: %v", ErrMalformedState, err)
	}
	if raw.Lines == nil {
		return domain.Cart{}, fmt.Errorf("%w: missing lines", ErrMalformedState)
	}

	c := domain.Cart{Lines: *raw.Lines}
	if len(raw.LastModifiedAt) > 0 && string(raw.LastModifiedAt) != "null" {
		if err := json.Unmarshal(raw.LastModifiedAt, &c.LastModifiedAt); err != nil {
			return domain.Cart{}, fmt.Errorf("%w: bad lastModifiedAt: %v", ErrMalformedState, err)
		}
	}

	seen := make(map[string]struct{}, len(c.Lines))
	for i, l := range c.Lines {
		if err := checkLine(l); err != nil {
			return domain.Cart{}, fmt.Errorf("%w: line %d: %v", ErrMalformedState, i, err)
		}
		if _, dup := seen[l.ProductID]; dup {
			return domain.Cart{}, fmt.Errorf("%w: duplicate product %q", ErrMalformedState, l.ProductID)
		}
		seen[l.ProductID] = struct{}{}
	}
	return c, nil
}

// checkLine holds persisted lines to the limits the engine enforces on
// writes, including quantity never exceeding the captured stock.
func checkLine(l domain.CartLine) error {
	switch {
	case l.ProductID == "":
		return ErrInvalidProduct
	case l.Quantity < 1:
		return ErrInvalidQuantity
	case l.StockSnapshot < 0:
		return fmt.Errorf("negative stock snapshot %d", l.StockSnapshot)
	case l.Quantity > l.StockSnapshot:
		return fmt.Errorf("%w: %d above stock snapshot %d", ErrInvalidQuantity, l.Quantity, l.StockSnapshot)
	case l.UnitPrice < 0:
		return fmt.Errorf("negative unit price %v", l.UnitPrice)
	case l.UnitSalePrice != nil && *l.UnitSalePrice < 0:
		return fmt.Errorf("negative sale price %v", *l.UnitSalePrice)
	}
	return nil
}
