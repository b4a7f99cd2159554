//internal/payment/classifier.go

package payment

const (
	EventTransactionSuccess = "TRANSACTION.SUCCESS"
	TradeStateSuccess       = "SUCCESS"
)

type DecisionKind string

const (
	DecisionIgnored DecisionKind = "IGNORED"
	DecisionSettled DecisionKind = "SETTLED"
)

// Settlement is what a successful payment tells us to write on the order.
type Settlement struct {
	OutTradeNo    string
	TransactionID string
	SuccessTime   string
}

// Decision is the classifier's verdict. Settlement is only set when Kind is Settled.
type Decision struct {
	Kind       DecisionKind
	Settlement Settlement
	Reason     string // why it was ignored, for logs
}

func (d Decision) Settled() bool { return d.Kind == DecisionSettled }

// Classify decides whether a notification is a final successful payment.
// Everything else is Ignored, which suppresses settlement but not the ack.
func Classify(eventType string, event *PaymentEvent) Decision {
	switch {
	case eventType != EventTransactionSuccess:
		return Decision{Kind: DecisionIgnored, Reason: "event_type " + quoteOrEmpty(eventType)}
	case event == nil:
		return Decision{Kind: DecisionIgnored, Reason: "no decrypted resource"}
	case event.TradeState != TradeStateSuccess:
		return Decision{Kind: DecisionIgnored, Reason: "trade_state " + quoteOrEmpty(event.TradeState)}
	}
	return Decision{
		Kind: DecisionSettled,
		Settlement: Settlement{
			OutTradeNo:    event.OutTradeNo,
			TransactionID: event.TransactionID,
			SuccessTime:   event.SuccessTime,
		},
	}
}

func quoteOrEmpty(s string) string {
	if s == "" {
		return "<empty>"
	}
	return `"` + s + `"`
}
