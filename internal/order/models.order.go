// internal/order/models.order.go
package order

import "time"

type OrderStatus string

const (
	StatusUnpaid OrderStatus = "UNPAID"
	StatusPaid   OrderStatus = "PAID"
)

// Order is the merchant order as stored. Settlement never creates or deletes
// orders, it only flips them to PAID.
type Order struct {
	OutTradeNo    string // merchant order number, the join key with the payment platform
	Status        OrderStatus
	TransactionID string // payment platform's transaction id, empty until paid
	SuccessTime   string // as reported by the platform (RFC3339 with offset)
	AmountTotal   int64  // fen
	UpdatedAt     time.Time
}

// Patch is a field-level set. Applying the same patch twice leaves the same row.
type Patch struct {
	Status        OrderStatus
	TransactionID string
	SuccessTime   string
	UpdatedAt     time.Time
}

// UpdateResult mirrors document-store semantics: how many orders matched the key
// and how many were written.
type UpdateResult struct {
	Matched  int64
	Modified int64
}
