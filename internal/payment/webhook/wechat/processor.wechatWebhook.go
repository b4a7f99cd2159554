// internal/payment/webhook/wechat/processor.wechatWebhook.go
package wechat

import (
	"context"
	"encoding/json"
	"fmt"

	// Import the core domain
	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
)

const providerName = "WechatPay"

type Processor struct {
	decryptor *payment.Decryptor
	verifier  *Verifier // nil: signatures are not checked
}

func New(decryptor *payment.Decryptor, verifier *Verifier) *Processor {
	return &Processor{decryptor: decryptor, verifier: verifier}
}

func (p *Processor) Provider() string {
	return providerName
}

// VerifyAndParse returns whatever it managed to learn alongside the error, with
// Decision always set. On any error the Decision is Ignored.
func (p *Processor) VerifyAndParse(ctx context.Context, payload []byte, headers map[string]string) (payment.ParsedNotification, error) {
	parsed := payment.ParsedNotification{
		Provider: providerName,
		Decision: payment.Classify("", nil),
	}

	// 1. Verify Signature (Security)
	if p.verifier != nil {
		if err := p.verifier.Verify(ctx, headers, payload); err != nil {
			return parsed, err
		}
	}

	// 2. Parse JSON
	var env payment.NotificationEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return parsed, fmt.Errorf("%w: %v", payment.ErrMalformedEnvelope, err)
	}
	parsed.EventID = env.ID
	parsed.EventType = env.EventType

	// 3. Decrypt the resource
	event, err := p.decryptor.Decrypt(env.Resource)
	if err != nil {
		parsed.Decision = payment.Classify(env.EventType, nil)
		return parsed, err
	}
	parsed.Event = event

	// 4. Map to Domain Decision
	parsed.Decision = payment.Classify(env.EventType, event)
	return parsed, nil
}
