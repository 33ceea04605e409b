package domain

import "time"

// CheckoutEvent is emitted when a cart is handed off to the messaging channel.
type CheckoutEvent struct {
	CheckoutID string     `json:"checkout_id"`
	SessionID  string     `json:"session_id"`
	UserID     string     `json:"user_id,omitempty"`
	Lines      []CartLine `json:"lines"`
	Subtotal   float64    `json:"subtotal"`
	Link       string     `json:"link"`
	CreatedAt  time.Time  `json:"created_at"`
}

// CartUpdatedEvent tells other instances that a session's cart changed.
type CartUpdatedEvent struct {
	SessionID string    `json:"session_id"`
	Origin    string    `json:"origin"`
	LineCount int       `json:"line_count"`
	At        time.Time `json:"at"`
}
