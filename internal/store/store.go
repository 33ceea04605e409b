package store

import (
	"context"
	"errors"
)

// CartStore holds the serialized cart of each browsing session.
type CartStore interface {
	Load(ctx context.Context, sessionID string) ([]byte, error)
	Save(ctx context.Context, sessionID string, data []byte) error
	Delete(ctx context.Context, sessionID string) error
}

var ErrNotFound = errors.New("cart state not found")
