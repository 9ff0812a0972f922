// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package syncwire

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenAuth mints and validates the HS256 bearer tokens the sync endpoint
// expects. The mobile app normally receives tokens from its OAuth flow;
// this type exists for the demo composition root and for test servers.
type TokenAuth struct {
	secret []byte
}

// NewTokenAuth creates a token authority over a shared secret.
func NewTokenAuth(secret string) *TokenAuth {
	return &TokenAuth{secret: []byte(secret)}
}

// TokenClaims carries the household and device identity of a sync client.
type TokenClaims struct {
	DeviceID string `json:"did"` // device installing the app
	jwt.RegisteredClaims
}

// GenerateToken issues a token for the given user and device.
func (a *TokenAuth) GenerateToken(userID, deviceID string, expiration time.Duration) (string, error) {
	claims := &TokenClaims{
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "kitchenhub-sync",
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// ValidateToken parses and validates a token, returning its claims.
func (a *TokenAuth) ValidateToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		if claims.Subject == "" {
			return nil, fmt.Errorf("missing sub (user ID) in token")
		}
		return claims, nil
	}

	return nil, fmt.Errorf("invalid token")
}
