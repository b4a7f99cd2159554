//internal/payment/decryptor.go

package payment

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

const (
	AlgorithmAES256GCM = "AEAD_AES_256_GCM"
	// gcmTagSize is the trailing authentication tag inside the ciphertext.
	gcmTagSize = 16
	keySize    = 32
)

// Decryptor opens notification resources with the merchant's API v3 key.
type Decryptor struct {
	key []byte
}

// NewDecryptor keeps a copy of key. A key that isn't exactly 32 bytes is treated
// as absent, so every Decrypt fails closed with ErrKeyNotConfigured.
func NewDecryptor(key []byte) *Decryptor {
	if len(key) != keySize {
		return &Decryptor{}
	}
	k := make([]byte, keySize)
	copy(k, key)
	return &Decryptor{key: k}
}

// Configured reports whether a usable key is loaded.
func (d *Decryptor) Configured() bool {
	return len(d.key) == keySize
}

// Decrypt returns the plaintext payment event.
//
// A nil/empty resource yields ErrResourceAbsent and a missing key yields
// ErrKeyNotConfigured; neither is tampering. Anything wrong with the sealed bytes
// themselves (bad base64, short ciphertext, tag mismatch, non-JSON plaintext)
// wraps ErrDecryptionFailed.
func (d *Decryptor) Decrypt(res *EncryptedResource) (*PaymentEvent, error) {
	if res == nil || res.Ciphertext == "" {
		return nil, ErrResourceAbsent
	}
	if !d.Configured() {
		return nil, ErrKeyNotConfigured
	}
	if res.Algorithm != "" && res.Algorithm != AlgorithmAES256GCM {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrDecryptionFailed, res.Algorithm)
	}
	if res.Nonce == "" {
		return nil, fmt.Errorf("%w: empty nonce", ErrDecryptionFailed)
	}

	sealed, err := base64.StdEncoding.DecodeString(res.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext is not base64: %v", ErrDecryptionFailed, err)
	}
	// layout: data = sealed[:len-16], tag = sealed[len-16:]
	if len(sealed) < gcmTagSize {
		return nil, fmt.Errorf("%w: ciphertext shorter than the %d byte tag", ErrDecryptionFailed, gcmTagSize)
	}

	block, err := aes.NewCipher(d.key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	nonce := []byte(res.Nonce)
	gcm, err := cipher.NewGCMWithNonceSize(block, len(nonce))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	var aad []byte
	if res.AssociatedData != "" {
		aad = []byte(res.AssociatedData)
	}
	// Open verifies the trailing tag before returning any plaintext.
	plaintext, err := gcm.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication tag mismatch", ErrDecryptionFailed)
	}

	if !utf8.Valid(plaintext) {
		return nil, fmt.Errorf("%w: plaintext is not valid utf-8", ErrDecryptionFailed)
	}
	var event PaymentEvent
	if err := json.Unmarshal(plaintext, &event); err != nil {
		return nil, fmt.Errorf("%w: plaintext is not a json object: %v", ErrDecryptionFailed, err)
	}
	return &event, nil
}
