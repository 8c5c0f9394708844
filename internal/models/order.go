package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses
const (
	OrderStatusPending   = "pending"
	OrderStatusConfirmed = "confirmed"
	OrderStatusCancelled = "cancelled"
)

// LineItem is one row of an order as submitted by the storefront client.
// Price and Quantity are untrusted input until the total validator has run.
type LineItem struct {
	ProductName string  `db:"product_name"`
	Price       float64 `db:"price"`
	Quantity    int     `db:"quantity"`
}

// Order is a customer order. Total always holds the server-recomputed value;
// the client-claimed total is compared once and then discarded.
type Order struct {
	ID            uuid.UUID `db:"id"`
	CustomerName  string    `db:"customer_name"`
	CustomerEmail string    `db:"customer_email"`
	Status        string    `db:"status"`
	Total         float64   `db:"total"`
	Items         []LineItem
	CreatedAt     time.Time `db:"created_at"`
}

// TotalValidation is the outcome of recomputing an order total from its line
// items and comparing it against the client-claimed value.
type TotalValidation struct {
	IsValid         bool
	CalculatedTotal float64
	Difference      float64
	Reason          string // empty when valid
}
