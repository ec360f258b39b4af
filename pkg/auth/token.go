// Package auth validates bearer tokens on incoming requests and supplies the
// opaque user identifier to handlers. Token issuance and session management
// live elsewhere; this only checks signatures and extracts the subject.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// UserIDHeader carries the authenticated user id to downstream handlers
const UserIDHeader = "X-User-ID"

// TokenValidator implements JWT token validation
type TokenValidator struct {
	jwtSecret []byte
}

// NewTokenValidator creates a new token validator
func NewTokenValidator(secret string) *TokenValidator {
	return &TokenValidator{jwtSecret: []byte(secret)}
}

// ValidateJWT validates a JWT token and returns the subject user id
func (tv *TokenValidator) ValidateJWT(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tv.jwtSecret, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return "", fmt.Errorf("token expired")
	}

	if claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}

	return claims.Subject, nil
}

// Middleware validates the Authorization header and stamps the user id
// header for handlers. Requests without a valid bearer token are rejected.
func (tv *TokenValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, `{"error":{"code":"unauthorized","message":"Missing bearer token"}}`, http.StatusUnauthorized)
			return
		}

		userID, err := tv.ValidateJWT(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			http.Error(w, `{"error":{"code":"unauthorized","message":"Invalid token"}}`, http.StatusUnauthorized)
			return
		}

		r.Header.Set(UserIDHeader, userID)
		next.ServeHTTP(w, r)
	})
}
