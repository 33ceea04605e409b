package cart

import "errors"

var (
	ErrInvalidProduct  = errors.New("cart line has no product id")
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrOutOfStock      = errors.New("product is out of stock")

	ErrMalformedState = errors.New("malformed cart state")
)
