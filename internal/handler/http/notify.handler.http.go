// internal/handler/http/notify.handler.http.go
package httpServer

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"runtime/debug"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
)

// maxNotifyBody caps how much of a notification we read. Real ones are a few KB.
const maxNotifyBody = 1 << 20

// NotificationService is what the handler needs from the payment package.
type NotificationService interface {
	HandleNotification(ctx context.Context, payload []byte, headers map[string]string) payment.Outcome
}

// NotifyHandler serves POST /pay/notify.
type NotifyHandler struct {
	service NotificationService
}

func NewNotifyHandler(svc NotificationService) *NotifyHandler {
	return &NotifyHandler{service: svc}
}

// ServeHTTP always answers 200 with the success ack, whatever happened while
// processing. Anything else makes the platform redeliver.
func (h *NotifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.process(r)
	writeAck(w)
}

func (h *NotifyHandler) process(r *http.Request) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[Webhook][CRITICAL] panic while handling notification: %v\n%s", p, debug.Stack())
		}
	}()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxNotifyBody))
	if err != nil {
		log.Printf("[Webhook][ERROR] failed to read notification body: %v", err)
		return
	}
	log.Printf("[Webhook] pay notify body: %s", payload)

	out := h.service.HandleNotification(r.Context(), payload, flattenHeaders(r.Header))
	log.Printf("[Webhook] notification %s done: stage=%s matched=%d modified=%d",
		out.Notification.EventID, out.Stage, out.Result.Matched, out.Result.Modified)
}

// flattenHeaders keeps the first value of each header under its canonical name.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[http.CanonicalHeaderKey(k)] = v[0]
		}
	}
	return out
}

func writeAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payment.SuccessAck); err != nil {
		log.Printf("[Webhook][WARN] failed to write ack: %v", err)
	}
}
