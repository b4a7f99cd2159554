// internal/payment/webhook.types.go
package payment

import (
	"encoding/json"
	"time"
)

// ParsedNotification is provider-neutral: whatever the provider's wire format,
// the service only sees this.
type ParsedNotification struct {
	Provider  string
	EventID   string
	EventType string
	Event     *PaymentEvent // nil unless decryption succeeded
	Decision  Decision
}

type NotificationStatus string

const (
	NotificationHandled      NotificationStatus = "handled"       // settled an order
	NotificationIgnored      NotificationStatus = "ignored"       // nothing to settle
	NotificationHandleFailed NotificationStatus = "handle_failed" // should have settled, didn't
)

// NotificationRecord is one audit row per notification received.
type NotificationRecord struct {
	Provider      string
	EventID       string
	EventType     string
	OutTradeNo    string
	TransactionID string
	Status        NotificationStatus
	Reason        string
	Payload       json.RawMessage // raw envelope; the resource stays encrypted
	ReceivedAt    time.Time
}
