// internal/payment/webhook/wechat/verifier.go
package wechat

import (
	"bytes"
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/wechatpay-apiv3/wechatpay-go/core/auth"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/validators"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
)

// Header names as canonicalised by net/http.
const (
	HeaderTimestamp     = "Wechatpay-Timestamp"
	HeaderNonce         = "Wechatpay-Nonce"
	HeaderSignature     = "Wechatpay-Signature"
	HeaderSerial        = "Wechatpay-Serial"
	HeaderSignatureType = "Wechatpay-Signature-Type"

	signatureTypeRSA = "WECHATPAY2-SHA256-RSA2048"

	// fixed window enforced by the SDK validator
	sdkSkew = 5 * time.Minute
)

// NonceStore remembers nonces for the replay window. Remember returns false if
// the nonce was already seen.
type NonceStore interface {
	Remember(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}

// Verifier checks Wechatpay-Signature with the platform SDK's notify validator
// and rejects replayed nonces on top of it.
type Verifier struct {
	validator *validators.WechatPayNotifyValidator
	maxSkew   time.Duration
	nonces    NonceStore
	now       func() time.Time
}

// NewVerifier wraps a platform verifier (see LoadPlatformVerifier). The SDK
// rejects timestamps more than five minutes off; maxSkew can only tighten that.
func NewVerifier(platform auth.Verifier, maxSkew time.Duration, nonces NonceStore) *Verifier {
	if maxSkew <= 0 || maxSkew > sdkSkew {
		maxSkew = sdkSkew
	}
	if nonces == nil {
		nonces = NewMemoryNonceStore()
	}
	return &Verifier{
		validator: validators.NewWechatPayNotifyValidator(platform),
		maxSkew:   maxSkew,
		nonces:    nonces,
		now:       time.Now,
	}
}

// Verify checks, in order: signature type, timestamp within maxSkew, the SDK
// validation (headers, window, RSA-SHA256 over "timestamp\nnonce\nbody\n"),
// nonce not replayed. Every failure wraps payment.ErrSignatureInvalid.
func (v *Verifier) Verify(ctx context.Context, headers map[string]string, body []byte) error {
	if st := headers[HeaderSignatureType]; st != "" && st != signatureTypeRSA {
		return fmt.Errorf("%w: unsupported signature type %q", payment.ErrSignatureInvalid, st)
	}
	nonce := headers[HeaderNonce]
	if ts := headers[HeaderTimestamp]; ts != "" && v.maxSkew < sdkSkew {
		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: bad timestamp %q", payment.ErrSignatureInvalid, ts)
		}
		skew := v.now().Sub(time.Unix(unix, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.maxSkew {
			return fmt.Errorf("%w: timestamp %s outside the %s window", payment.ErrSignatureInvalid, ts, v.maxSkew)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", payment.ErrSignatureInvalid, err)
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}
	if err := v.validator.Validate(ctx, req); err != nil {
		return fmt.Errorf("%w: %v", payment.ErrSignatureInvalid, err)
	}

	// only authentic requests get to burn a nonce
	fresh, err := v.nonces.Remember(ctx, nonce, 2*v.maxSkew)
	if err != nil {
		// cache down: the signature already checked out, let it through
		log.Printf("[Webhook][WARN] nonce cache unavailable, replay check skipped: %v", err)
		return nil
	}
	if !fresh {
		return fmt.Errorf("%w: nonce %s replayed", payment.ErrSignatureInvalid, nonce)
	}
	return nil
}

// LoadPlatformVerifier accepts a platform certificate or a platform public key.
// The platform sends the certificate serial, or the public key ID
// (PUB_KEY_ID_...), as Wechatpay-Serial, so a bare key needs its ID.
func LoadPlatformVerifier(pemData []byte, publicKeyID string) (auth.Verifier, error) {
	if cert, err := utils.LoadCertificate(string(pemData)); err == nil {
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("platform certificate: not an RSA key")
		}
		return verifiers.NewSHA256WithRSAPubkeyVerifier(utils.GetCertificateSerialNumber(*cert), *pub), nil
	}

	pub, err := utils.LoadPublicKey(string(pemData))
	if err != nil {
		return nil, fmt.Errorf("platform key: %w", err)
	}
	if publicKeyID == "" {
		return nil, errors.New("platform key: a public key needs WECHATPAY_PUBLIC_KEY_ID")
	}
	return verifiers.NewSHA256WithRSAPubkeyVerifier(publicKeyID, *pub), nil
}

// MemoryNonceStore is the single-instance fallback when redis isn't configured.
type MemoryNonceStore struct {
	mu     sync.Mutex
	seen   map[string]time.Time // nonce -> expiry
	now    func() time.Time
	sweeps int
}

func NewMemoryNonceStore() *MemoryNonceStore {
	return &MemoryNonceStore{seen: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryNonceStore) Remember(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	// sweep expired entries every 256 calls so the map stays bounded
	m.sweeps++
	if m.sweeps%256 == 0 {
		for k, exp := range m.seen {
			if now.After(exp) {
				delete(m.seen, k)
			}
		}
	}

	if exp, ok := m.seen[nonce]; ok && now.Before(exp) {
		return false, nil
	}
	m.seen[nonce] = now.Add(ttl)
	return true, nil
}
