// Package auth issues and validates the access tokens carried in a session
// token pair.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Config holds signing and verification parameters for access tokens.
type Config struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
}

// Claims represents the payload extracted from an access token.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

// ErrMissingToken is returned when no token is supplied.
var ErrMissingToken = errors.New("missing access token")

// ErrInvalidToken wraps parsing/validation errors.
var ErrInvalidToken = errors.New("invalid access token")

// ErrExpiredToken is returned when the token is well-formed but past expiry.
// Callers use it to decide whether a refresh attempt is worthwhile.
var ErrExpiredToken = errors.New("expired access token")

// Issue signs an HS256 access token for the given principal.
func Issue(subject, email string, now time.Time, cfg Config) (string, error) {
	if cfg.Secret == "" {
		return "", errors.New("auth: signing secret not configured")
	}
	claims := jwt.MapClaims{
		"sub":   subject,
		"email": email,
		"iss":   cfg.Issuer,
		"iat":   now.Unix(),
		"exp":   now.Add(cfg.AccessTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Parse validates an access token and returns normalized claims.
func Parse(token string, cfg Config) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	}, jwt.WithIssuer(cfg.Issuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	subject, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if subject == "" || email == "" {
		return nil, ErrInvalidToken
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing expiry", ErrInvalidToken)
	}

	return &Claims{
		Subject:   subject,
		Email:     email,
		ExpiresAt: exp.Time,
	}, nil
}
