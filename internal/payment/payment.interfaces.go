// internal/payment/payment.interfaces.go
package payment

import (
	"context"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/order"
)

// OrderUpdater is the one thing settlement needs from the order store.
// Implementations update the first order whose outTradeNo equals the key.
type OrderUpdater interface {
	FindAndUpdateByKey(ctx context.Context, outTradeNo string, patch order.Patch) (order.UpdateResult, error)
}

// WebhookProcessor turns raw HTTP bytes from one provider into a ParsedNotification.
// It returns a partially filled ParsedNotification together with the error when it
// got far enough to know the envelope, so the failure can still be recorded.
type WebhookProcessor interface {
	Provider() string
	VerifyAndParse(ctx context.Context, payload []byte, headers map[string]string) (ParsedNotification, error)
}

// EventPublisher announces settled orders to the rest of the system.
type EventPublisher interface {
	PublishOrderPaid(ctx context.Context, event OrderPaidEvent) error
}

// NotificationRecorder keeps an audit row per received notification.
type NotificationRecorder interface {
	Record(ctx context.Context, rec NotificationRecord) error
}
