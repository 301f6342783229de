package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/basalytics/basalytics/internal/store"
)

var ErrInvalidToken = errors.New("invalid token")

const (
	tokenIssuer = "basalytics"
	tokenTTL    = 365 * 24 * time.Hour

	// jwtSecretMetaKey is where the signing secret lives in the meta table,
	// so tokens survive restarts.
	jwtSecretMetaKey = "jwt_secret"
)

type Claims struct {
	jwt.RegisteredClaims
}

// TokenService issues and verifies account JWTs. The HS256 secret is
// generated once and persisted through the store; concurrent first starts
// converge on a single winner.
type TokenService struct {
	secret []byte
	store  store.AccountStore
	now    func() time.Time
}

func NewTokenService(ctx context.Context, st store.AccountStore) (*TokenService, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return nil, fmt.Errorf("failed to generate token secret: %w", err)
	}
	candidate := base64.RawURLEncoding.EncodeToString(buf[:])

	secret, err := st.EnsureMeta(ctx, jwtSecretMetaKey, candidate)
	if err != nil {
		return nil, err
	}

	return &TokenService{secret: []byte(secret), store: st, now: time.Now}, nil
}

// Issue signs a token for the account.
func (ts *TokenService) Issue(accountID string) (string, error) {
	now := ts.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ts.secret)
}

// Verify parses and validates a token, then rejects it if the account
// invalidated its tokens after this one was issued.
func (ts *TokenService) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return ts.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}

	invalidatedAt, invalidated, err := ts.store.TokenInvalidation(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}
	if invalidated && claims.IssuedAt.Time.Before(invalidatedAt) {
		return nil, fmt.Errorf("%w: issued before invalidation", ErrInvalidToken)
	}

	return claims, nil
}

// Invalidate rejects every token the account was issued up to now.
func (ts *TokenService) Invalidate(ctx context.Context, accountID string) error {
	return ts.store.SetTokenInvalidation(ctx, accountID, ts.now())
}
