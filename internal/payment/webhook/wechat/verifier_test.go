package wechat

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"math/big"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wechatpay-apiv3/wechatpay-go/core/auth/verifiers"
	"github.com/wechatpay-apiv3/wechatpay-go/utils"

	"github.com/Tanmoy095/LogiSynapse/services/pay-notify-service/internal/payment"
)

// platformKey is generated once; 2048-bit keygen is slow enough to matter.
var platformKey = mustKey()

const platformKeyID = "PUB_KEY_ID_0114232282792025041500112233445566"

func mustKey() *rsa.PrivateKey {
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(err)
	}
	return k
}

func signatureMessage(ts, nonce string, body []byte) []byte {
	return []byte(ts + "\n" + nonce + "\n" + string(body) + "\n")
}

func sign(t *testing.T, key *rsa.PrivateKey, ts, nonce string, body []byte) string {
	t.Helper()
	digest := sha256.Sum256(signatureMessage(ts, nonce, body))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(sig)
}

func signedHeaders(t *testing.T, key *rsa.PrivateKey, at time.Time, nonce string, body []byte) map[string]string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return map[string]string{
		HeaderTimestamp:     ts,
		HeaderNonce:         nonce,
		HeaderSignature:     sign(t, key, ts, nonce, body),
		HeaderSerial:        platformKeyID,
		HeaderSignatureType: signatureTypeRSA,
	}
}

// newTestVerifier trusts platformKey under platformKeyID.
func newTestVerifier(maxSkew time.Duration, nonces NonceStore) *Verifier {
	return NewVerifier(verifiers.NewSHA256WithRSAPubkeyVerifier(platformKeyID, platformKey.PublicKey), maxSkew, nonces)
}

type failingNonceStore struct{}

func (failingNonceStore) Remember(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func TestVerify(t *testing.T) {
	now := time.Now()
	body := []byte(`{"id":"evt-1","event_type":"TRANSACTION.SUCCESS"}`)
	otherKey := mustKey()

	tests := []struct {
		name    string
		headers func(t *testing.T) map[string]string
		body    []byte
		wantErr bool
	}{
		{
			name:    "valid signature",
			headers: func(t *testing.T) map[string]string { return signedHeaders(t, platformKey, now, "n-valid", body) },
			body:    body,
		},
		{
			name:    "clock skew inside the window",
			headers: func(t *testing.T) map[string]string { return signedHeaders(t, platformKey, now.Add(-4*time.Minute), "n-skew-ok", body) },
			body:    body,
		},
		{
			name:    "stale timestamp",
			headers: func(t *testing.T) map[string]string { return signedHeaders(t, platformKey, now.Add(-6*time.Minute), "n-stale", body) },
			body:    body,
			wantErr: true,
		},
		{
			name:    "timestamp from the future",
			headers: func(t *testing.T) map[string]string { return signedHeaders(t, platformKey, now.Add(10*time.Minute), "n-future", body) },
			body:    body,
			wantErr: true,
		},
		{
			name:    "signed by someone else",
			headers: func(t *testing.T) map[string]string { return signedHeaders(t, otherKey, now, "n-forged", body) },
			body:    body,
			wantErr: true,
		},
		{
			name:    "body altered after signing",
			headers: func(t *testing.T) map[string]string { return signedHeaders(t, platformKey, now, "n-altered", body) },
			body:    []byte(`{"id":"evt-1","event_type":"TRANSACTION.FAIL"}`),
			wantErr: true,
		},
		{
			name:    "missing headers",
			headers: func(t *testing.T) map[string]string { return map[string]string{} },
			body:    body,
			wantErr: true,
		},
		{
			name: "signature not base64",
			headers: func(t *testing.T) map[string]string {
				h := signedHeaders(t, platformKey, now, "n-b64", body)
				h[HeaderSignature] = "%%%"
				return h
			},
			body:    body,
			wantErr: true,
		},
		{
			name: "timestamp not a number",
			headers: func(t *testing.T) map[string]string {
				h := signedHeaders(t, platformKey, now, "n-ts", body)
				h[HeaderTimestamp] = "yesterday"
				return h
			},
			body:    body,
			wantErr: true,
		},
		{
			name: "serial of another key",
			headers: func(t *testing.T) map[string]string {
				h := signedHeaders(t, platformKey, now, "n-serial", body)
				h[HeaderSerial] = "PUB_KEY_ID_SOMEONE_ELSE"
				return h
			},
			body:    body,
			wantErr: true,
		},
		{
			name: "unsupported signature type",
			headers: func(t *testing.T) map[string]string {
				h := signedHeaders(t, platformKey, now, "n-sm2", body)
				h[HeaderSignatureType] = "WECHATPAY2-SM2-WITH-SM3"
				return h
			},
			body:    body,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestVerifier(0, nil).Verify(context.Background(), tt.headers(t), tt.body)
			if tt.wantErr {
				assert.ErrorIs(t, err, payment.ErrSignatureInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestVerify_TighterSkewWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	body := []byte(`{"id":"evt-1"}`)
	v := newTestVerifier(time.Minute, nil)
	v.now = func() time.Time { return now }

	// rejected by the local window before the SDK sees it
	err := v.Verify(context.Background(), signedHeaders(t, platformKey, now.Add(-2*time.Minute), "n-tight", body), body)
	assert.ErrorIs(t, err, payment.ErrSignatureInvalid)
	assert.Contains(t, err.Error(), "outside the 1m0s window")
}

func TestNewVerifier_WindowCappedBySDK(t *testing.T) {
	assert.Equal(t, 5*time.Minute, newTestVerifier(0, nil).maxSkew)
	assert.Equal(t, 5*time.Minute, newTestVerifier(time.Hour, nil).maxSkew)
	assert.Equal(t, 2*time.Minute, newTestVerifier(2*time.Minute, nil).maxSkew)
}

func TestVerify_RejectsReplayedNonce(t *testing.T) {
	body := []byte(`{"id":"evt-1"}`)
	v := newTestVerifier(0, nil)
	h := signedHeaders(t, platformKey, time.Now(), "n-once", body)

	require.NoError(t, v.Verify(context.Background(), h, body))
	assert.ErrorIs(t, v.Verify(context.Background(), h, body), payment.ErrSignatureInvalid)
}

func TestVerify_ForgedRequestDoesNotBurnNonce(t *testing.T) {
	body := []byte(`{"id":"evt-1"}`)
	v := newTestVerifier(0, nil)

	forged := signedHeaders(t, mustKey(), time.Now(), "n-shared", body)
	require.Error(t, v.Verify(context.Background(), forged, body))

	genuine := signedHeaders(t, platformKey, time.Now(), "n-shared", body)
	assert.NoError(t, v.Verify(context.Background(), genuine, body))
}

func TestVerify_NonceCacheDownStillAcceptsAuthentic(t *testing.T) {
	body := []byte(`{"id":"evt-1"}`)
	v := newTestVerifier(0, failingNonceStore{})

	assert.NoError(t, v.Verify(context.Background(), signedHeaders(t, platformKey, time.Now(), "n-1", body), body))
}

func TestMemoryNonceStore_Expiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	s := NewMemoryNonceStore()
	s.now = func() time.Time { return now }

	fresh, err := s.Remember(context.Background(), "n", time.Minute)
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, _ = s.Remember(context.Background(), "n", time.Minute)
	assert.False(t, fresh)

	now = now.Add(2 * time.Minute)
	fresh, _ = s.Remember(context.Background(), "n", time.Minute)
	assert.True(t, fresh, "an expired nonce may be used again")
}

func TestLoadPlatformVerifier(t *testing.T) {
	spki, err := x509.MarshalPKIXPublicKey(&platformKey.PublicKey)
	require.NoError(t, err)
	publicKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: spki})

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(0x5157F09E),
		Subject:      pkix.Name{CommonName: "Tenpay.com Root CA"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &platformKey.PublicKey, platformKey)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	tests := []struct {
		name    string
		pem     []byte
		keyID   string
		serial  string
		wantErr bool
	}{
		{name: "public key with id", pem: publicKeyPEM, keyID: platformKeyID, serial: platformKeyID},
		{name: "platform certificate", pem: certPEM, serial: utils.GetCertificateSerialNumber(*cert)},
		{name: "public key without id", pem: publicKeyPEM, wantErr: true},
		{name: "not pem", pem: []byte("hello"), keyID: platformKeyID, wantErr: true},
		{name: "private key block", pem: pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(platformKey)}), keyID: platformKeyID, wantErr: true},
		{name: "garbage inside block", pem: pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: []byte("junk")}), keyID: platformKeyID, wantErr: true},
	}

	body := []byte(`{"id":"evt-1"}`)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			platform, err := LoadPlatformVerifier(tt.pem, tt.keyID)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, platform)
				return
			}
			require.NoError(t, err)

			h := signedHeaders(t, platformKey, time.Now(), "n-"+tt.name, body)
			h[HeaderSerial] = tt.serial
			assert.NoError(t, NewVerifier(platform, 0, nil).Verify(context.Background(), h, body))
		})
	}
}
