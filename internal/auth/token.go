package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind separates short-lived access tokens from long-lived refresh
// tokens. Verification rejects cross-use.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrWrongKind    = errors.New("wrong token kind")
	ErrRevokedToken = errors.New("token revoked")
)

// Claims is the signed payload. Subject holds the account id.
type Claims struct {
	Kind TokenKind `json:"kind"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256-signed tokens against a single
// static secret. Verification is stateless apart from the revocation set.
type TokenService struct {
	secret  []byte
	revoked RevocationSet
}

func NewTokenService(secret string, revoked RevocationSet) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("auth secret is required")
	}
	if revoked == nil {
		revoked = NewMemRevocationSet()
	}
	return &TokenService{secret: []byte(secret), revoked: revoked}, nil
}

// Issue signs a token of the given kind for the subject.
func (s *TokenService) Issue(subject string, kind TokenKind, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks revocation, signature, expiry and kind, in that order.
// Revocation wins even while the token is still cryptographically valid.
func (s *TokenService) Verify(token string, kind TokenKind) (*Claims, error) {
	if s.revoked.IsRevoked(token) {
		return nil, ErrRevokedToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, ErrWrongKind
	}
	return &claims, nil
}

// Revoke blacklists the token for the remainder of its natural lifetime.
// Unparseable tokens are ignored: they can never verify anyway.
func (s *TokenService) Revoke(token string) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		return
	}
	exp := time.Now().Add(time.Hour)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	s.revoked.Revoke(token, exp)
}
