//internal/payment/errors.go

package payment

import "errors"

// None of these ever reach the payment platform. The transport always answers
// 200 SUCCESS, these only decide what we log and record.
var (
	// ErrMalformedEnvelope means the body is not a JSON object we can read.
	ErrMalformedEnvelope = errors.New("malformed notification envelope")

	// ErrSignatureInvalid covers missing/stale/forged Wechatpay-* signature headers.
	ErrSignatureInvalid = errors.New("notification signature invalid")

	// ErrResourceAbsent and ErrKeyNotConfigured are the "nothing to decrypt" outcomes.
	// They are expected states, not tampering.
	ErrResourceAbsent   = errors.New("notification has no encrypted resource")
	ErrKeyNotConfigured = errors.New("apiv3 key not configured")

	// ErrDecryptionFailed is an authentication or format failure of the resource.
	ErrDecryptionFailed = errors.New("resource decryption failed")

	// ErrClassificationMiss is informational: decrypted fine, but not a final success.
	ErrClassificationMiss = errors.New("notification is not a successful payment")

	// ErrDatastore wraps any failure of the order store.
	ErrDatastore = errors.New("order store update failed")

	// ErrUnmatchedOrder means the update ran but no order had that out_trade_no.
	ErrUnmatchedOrder = errors.New("no order matches out_trade_no")
)
