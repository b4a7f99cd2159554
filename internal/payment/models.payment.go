// internal/payment/models.payment.go
package payment

// These structs are the wire shapes of a WeChat Pay v3 notification.
// Every field is optional on the way in: a missing field is a zero value, not a
// request failure.

// NotificationEnvelope is the outer JSON body the platform POSTs to us.
type NotificationEnvelope struct {
	ID           string             `json:"id"`
	CreateTime   string             `json:"create_time"`
	ResourceType string             `json:"resource_type"`
	EventType    string             `json:"event_type"` // e.g. "TRANSACTION.SUCCESS"
	Summary      string             `json:"summary"`
	Resource     *EncryptedResource `json:"resource"`
}

// EncryptedResource is the AES-256-GCM sealed payment result.
type EncryptedResource struct {
	Algorithm      string `json:"algorithm"` // "AEAD_AES_256_GCM", empty is treated the same
	OriginalType   string `json:"original_type"`
	Ciphertext     string `json:"ciphertext"` // base64(encrypted payload || 16 byte tag)
	AssociatedData string `json:"associated_data"`
	Nonce          string `json:"nonce"` // used as the GCM IV
}

// PaymentEvent is the decrypted resource.
type PaymentEvent struct {
	OutTradeNo     string  `json:"out_trade_no"`   // merchant order number, join key into the order store
	TransactionID  string  `json:"transaction_id"` // platform transaction id
	TradeState     string  `json:"trade_state"`    // must be "SUCCESS" to settle
	TradeStateDesc string  `json:"trade_state_desc,omitempty"`
	SuccessTime    string  `json:"success_time"`
	AppID          string  `json:"appid,omitempty"`
	MchID          string  `json:"mchid,omitempty"`
	TradeType      string  `json:"trade_type,omitempty"`
	BankType       string  `json:"bank_type,omitempty"`
	Attach         string  `json:"attach,omitempty"`
	Payer          *Payer  `json:"payer,omitempty"`
	Amount         *Amount `json:"amount,omitempty"`
}

type Payer struct {
	OpenID string `json:"openid"`
}

// Amount is in the smallest currency unit (fen for CNY).
type Amount struct {
	Total         int64  `json:"total"`
	PayerTotal    int64  `json:"payer_total"`
	Currency      string `json:"currency"`
	PayerCurrency string `json:"payer_currency"`
}

// Acknowledgement is the fixed body the platform expects back.
type Acknowledgement struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SuccessAck is written for every notification, whatever happened internally.
var SuccessAck = Acknowledgement{Code: "SUCCESS", Message: "成功"}

// OrderPaidEvent is published after an order was settled.
type OrderPaidEvent struct {
	OutTradeNo     string `json:"out_trade_no"`
	TransactionID  string `json:"transaction_id"`
	SuccessTime    string `json:"success_time"`
	SettledAt      string `json:"settled_at"`
	NotificationID string `json:"notification_id,omitempty"`
}
