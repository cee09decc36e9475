// Package auth binds client sessions to mailbox identities with HS256
// session tokens carried in a cookie.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/mailvault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the one identity claim of a session. The registered exp
// is required and enforced on every request; it matches the cookie max-age.
type Claims struct {
	jwt.RegisteredClaims
	UserEmail string `json:"userEmail"`
}

// GenerateToken signs a session for email, valid for validityDuration from now.
func GenerateToken(email string, secretKey []byte, now time.Time, validityDuration time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserEmail: email,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// GetUserEmailFromToken verifies tokenString and returns its userEmail claim.
// Any failure, including an expired token, a non-HMAC algorithm or an
// empty claim, is common.ErrNotAuthenticated.
func GetUserEmailFromToken(tokenString string, secretKey []byte, now time.Time) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: session expired", common.ErrNotAuthenticated)
		}
		return "", fmt.Errorf("%w: %v", common.ErrNotAuthenticated, err)
	}

	if !token.Valid || claims.UserEmail == "" {
		return "", common.ErrNotAuthenticated
	}

	return claims.UserEmail, nil
}
