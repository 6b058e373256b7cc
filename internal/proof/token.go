// Package proof mints and validates payment-proof tokens: short-lived HS256
// tokens referencing a completed payment, presented by clients to unlock
// protected resources.
package proof

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	PaymentID string `json:"payment_id"`
}

func Generate(paymentID uuid.UUID, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		PaymentID: paymentID.String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("Generate: %w", err)
	}
	return signed, nil
}

// Validate returns the payment id the token vouches for, or an error if the
// token is forged, expired, or malformed.
func Validate(tokenString, secret string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("Validate: %w", err)
	}

	tc, ok := token.Claims.(*tokenClaims)
	if !ok || !token.Valid {
		return uuid.Nil, fmt.Errorf("Validate: invalid token claims")
	}

	paymentID, err := uuid.Parse(tc.PaymentID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("Validate: invalid payment_id in token: %w", err)
	}
	return paymentID, nil
}
