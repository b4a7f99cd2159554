// internal/payment/notification_service.go
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/order"
)

// Stage is the branch a notification took after classification.
type Stage string

const (
	StageSettling Stage = "SETTLING"
	StageSkipped  Stage = "SKIPPED"
)

// Outcome is what happened to one notification. It exists for logs, the audit
// record and tests; it never changes the HTTP response.
type Outcome struct {
	Stage        Stage
	Notification ParsedNotification
	Result       order.UpdateResult
	Err          error // the absorbed failure, nil on a clean settle or a plain ignore
}

// NotificationService orchestrates verify -> decrypt -> classify -> settle.
// It is stateless across requests.
type NotificationService struct {
	processor WebhookProcessor
	settler   *Settler
	publisher EventPublisher       // optional
	recorder  NotificationRecorder // optional

	settleTimeout time.Duration
	now           func() time.Time
}

func NewNotificationService(
	processor WebhookProcessor,
	settler *Settler,
	publisher EventPublisher,
	recorder NotificationRecorder,
	settleTimeout time.Duration,
) *NotificationService {
	if settleTimeout <= 0 {
		settleTimeout = 5 * time.Second
	}
	return &NotificationService{
		processor:     processor,
		settler:       settler,
		publisher:     publisher,
		recorder:      recorder,
		settleTimeout: settleTimeout,
		now:           time.Now,
	}
}

// HandleNotification runs the pipeline for one webhook body. It has no error
// return on purpose: the platform redelivers on anything but success, so every
// failure ends here, logged.
func (ns *NotificationService) HandleNotification(ctx context.Context, payload []byte, headers map[string]string) Outcome {
	receivedAt := ns.now()
	// A dropped connection from the platform must not abort a settlement half way.
	ctx = context.WithoutCancel(ctx)

	parsed, err := ns.processor.VerifyAndParse(ctx, payload, headers)
	out := Outcome{Stage: StageSkipped, Notification: parsed, Err: err}
	if err != nil {
		logParseFailure(ns.processor.Provider(), parsed, err)
	}

	if err == nil && !parsed.Decision.Settled() {
		out.Err = ErrClassificationMiss
		log.Printf("[Webhook] %s notification %s ignored: %s", ns.processor.Provider(), parsed.EventID, parsed.Decision.Reason)
	}

	if parsed.Decision.Settled() {
		out.Stage = StageSettling
		out.Result, out.Err = ns.settle(ctx, parsed)
	}

	ns.record(ctx, out, payload, receivedAt)
	return out
}

func (ns *NotificationService) settle(ctx context.Context, parsed ParsedNotification) (order.UpdateResult, error) {
	settleCtx, cancel := context.WithTimeout(ctx, ns.settleTimeout)
	defer cancel()

	s := parsed.Decision.Settlement
	settledAt := ns.now()
	res, err := ns.settler.ApplySettlement(settleCtx, s, settledAt)
	if err != nil {
		// Nothing to do here but shout: the platform will redeliver and we try again.
		log.Printf("[Webhook][ERROR] settlement of %s failed: %v", s.OutTradeNo, err)
		return res, err
	}
	if res.Matched == 0 {
		return res, ErrUnmatchedOrder
	}

	if ns.publisher != nil {
		evt := OrderPaidEvent{
			OutTradeNo:     s.OutTradeNo,
			TransactionID:  s.TransactionID,
			SuccessTime:    s.SuccessTime,
			SettledAt:      settledAt.UTC().Format(time.RFC3339),
			NotificationID: parsed.EventID,
		}
		pubCtx, cancelPub := context.WithTimeout(ctx, ns.settleTimeout)
		defer cancelPub()
		if err := ns.publisher.PublishOrderPaid(pubCtx, evt); err != nil {
			// settled is settled; downstream can catch up from the order store
			log.Printf("[Webhook][WARN] order %s paid but event publish failed: %v", s.OutTradeNo, err)
		}
	}
	return res, nil
}

func (ns *NotificationService) record(ctx context.Context, out Outcome, payload []byte, receivedAt time.Time) {
	if ns.recorder == nil {
		return
	}
	rec := NotificationRecord{
		Provider:   ns.processor.Provider(),
		EventID:    out.Notification.EventID,
		EventType:  out.Notification.EventType,
		Status:     statusOf(out),
		ReceivedAt: receivedAt,
	}
	if out.Err != nil {
		rec.Reason = out.Err.Error()
	}
	if ev := out.Notification.Event; ev != nil {
		rec.OutTradeNo = ev.OutTradeNo
		rec.TransactionID = ev.TransactionID
	}
	if json.Valid(payload) {
		rec.Payload = json.RawMessage(payload)
	}

	recCtx, cancel := context.WithTimeout(ctx, ns.settleTimeout)
	defer cancel()
	if err := ns.recorder.Record(recCtx, rec); err != nil {
		log.Printf("[Webhook][WARN] could not record notification %s: %v", rec.EventID, err)
	}
}

func statusOf(out Outcome) NotificationStatus {
	if out.Stage != StageSettling {
		return NotificationIgnored
	}
	if out.Err != nil {
		return NotificationHandleFailed
	}
	return NotificationHandled
}

// logParseFailure logs at the level the failure deserves: missing pieces are
// routine, a bad signature or tag is worth a closer look.
func logParseFailure(provider string, parsed ParsedNotification, err error) {
	switch {
	case errors.Is(err, ErrResourceAbsent), errors.Is(err, ErrMalformedEnvelope):
		log.Printf("[Webhook] %s notification %s skipped: %v", provider, parsed.EventID, err)
	case errors.Is(err, ErrKeyNotConfigured):
		log.Printf("[Webhook][WARN] %s notification %s not decrypted: %v", provider, parsed.EventID, err)
	default:
		log.Printf("[Webhook][ERROR] %s notification %s rejected: %v", provider, parsed.EventID, err)
	}
}
