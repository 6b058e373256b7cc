// Package webhook implements the shared-secret signature contract for
// payment notifications: HMAC-SHA256 over the exact payload bytes, hex
// encoded, compared in constant time.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/tollgate-dev/tollgate/internal/domain"
)

// SignatureHeader carries the hex-encoded MAC on webhook deliveries.
const SignatureHeader = "X-Webhook-Signature"

type Signer struct {
	secret []byte
}

func NewSigner(secret string) (*Signer, error) {
	if secret == "" {
		return nil, fmt.Errorf("NewSigner: %w", domain.ErrMissingSecret)
	}
	return &Signer{secret: []byte(secret)}, nil
}

func (s *Signer) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the MAC of payload under the shared
// secret. It never errors: any malformed or mismatched input is false.
func (s *Signer) Verify(payload []byte, signature string) bool {
	if signature == "" {
		return false
	}
	expected := s.Sign(payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
