package wechat

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
)

var apiV3Key = []byte("0123456789abcdef0123456789abcdef")

// envelope builds a notification body with the given plaintext sealed under apiV3Key.
func envelope(t *testing.T, eventType, plaintext string) []byte {
	t.Helper()
	block, err := aes.NewCipher(apiV3Key)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)
	nonce := "fdasflkja484"
	sealed := gcm.Seal(nil, []byte(nonce), []byte(plaintext), []byte("transaction"))

	body, err := json.Marshal(payment.NotificationEnvelope{
		ID:           "EV-2018022511223320873",
		CreateTime:   "2015-05-20T13:29:35+08:00",
		ResourceType: "encrypt-resource",
		EventType:    eventType,
		Summary:      "支付成功",
		Resource: &payment.EncryptedResource{
			Algorithm:      payment.AlgorithmAES256GCM,
			OriginalType:   "transaction",
			Ciphertext:     base64.StdEncoding.EncodeToString(sealed),
			AssociatedData: "transaction",
			Nonce:          nonce,
		},
	})
	require.NoError(t, err)
	return body
}

const paid = `{"out_trade_no":"1217752501201407033233368018","transaction_id":"1217752501201407033233368018","trade_state":"SUCCESS","success_time":"2018-06-08T10:34:56+08:00"}`

func TestProcessor_VerifyAndParse(t *testing.T) {
	tests := []struct {
		name         string
		key          []byte
		body         func(t *testing.T) []byte
		wantErr      error
		wantSettled  bool
		wantEventID  string
		wantDecrypts bool
	}{
		{
			name:         "successful payment",
			key:          apiV3Key,
			body:         func(t *testing.T) []byte { return envelope(t, payment.EventTransactionSuccess, paid) },
			wantSettled:  true,
			wantEventID:  "EV-2018022511223320873",
			wantDecrypts: true,
		},
		{
			name:         "decrypted but not a success event",
			key:          apiV3Key,
			body:         func(t *testing.T) []byte { return envelope(t, "REFUND.SUCCESS", paid) },
			wantEventID:  "EV-2018022511223320873",
			wantDecrypts: true,
		},
		{
			name:        "no key configured",
			key:         nil,
			body:        func(t *testing.T) []byte { return envelope(t, payment.EventTransactionSuccess, paid) },
			wantErr:     payment.ErrKeyNotConfigured,
			wantEventID: "EV-2018022511223320873",
		},
		{
			name:        "no resource",
			key:         apiV3Key,
			body:        func(t *testing.T) []byte { return []byte(`{"id":"EV-1","event_type":"TRANSACTION.SUCCESS"}`) },
			wantErr:     payment.ErrResourceAbsent,
			wantEventID: "EV-1",
		},
		{
			name: "tampered ciphertext",
			key:  apiV3Key,
			body: func(t *testing.T) []byte {
				return []byte(`{"id":"EV-2","event_type":"TRANSACTION.SUCCESS","resource":{"ciphertext":"AAAAAAAAAAAAAAAAAAAAAAAAAAAA","nonce":"fdasflkja484"}}`)
			},
			wantErr:     payment.ErrDecryptionFailed,
			wantEventID: "EV-2",
		},
		{
			name:    "not json",
			key:     apiV3Key,
			body:    func(t *testing.T) []byte { return []byte(`<xml>`) },
			wantErr: payment.ErrMalformedEnvelope,
		},
		{
			name:    "empty body",
			key:     apiV3Key,
			body:    func(t *testing.T) []byte { return nil },
			wantErr: payment.ErrMalformedEnvelope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(payment.NewDecryptor(tt.key), nil)

			parsed, err := p.VerifyAndParse(context.Background(), tt.body(t), nil)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, "WechatPay", parsed.Provider)
			assert.Equal(t, tt.wantEventID, parsed.EventID)
			assert.Equal(t, tt.wantSettled, parsed.Decision.Settled())
			assert.NotEmpty(t, parsed.Decision.Kind)
			if tt.wantDecrypts {
				require.NotNil(t, parsed.Event)
				assert.Equal(t, "1217752501201407033233368018", parsed.Event.OutTradeNo)
			} else {
				assert.Nil(t, parsed.Event)
			}
		})
	}
}

func TestProcessor_ChecksSignatureFirst(t *testing.T) {
	now := time.Now()
	p := New(payment.NewDecryptor(apiV3Key), newTestVerifier(0, nil))
	body := envelope(t, payment.EventTransactionSuccess, paid)

	parsed, err := p.VerifyAndParse(context.Background(), body, map[string]string{})
	assert.ErrorIs(t, err, payment.ErrSignatureInvalid)
	assert.False(t, parsed.Decision.Settled())
	assert.Nil(t, parsed.Event)

	parsed, err = p.VerifyAndParse(context.Background(), body, signedHeaders(t, platformKey, now, "n-proc", body))
	require.NoError(t, err)
	assert.True(t, parsed.Decision.Settled())
}
