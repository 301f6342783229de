// Package auth manages operator accounts and the JWTs that protect the
// query API. Passwords are bcrypt-hashed; the token signing secret is
// persisted in the meta table; logout invalidates previously issued tokens.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/basalytics/basalytics/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service struct {
	store  store.AccountStore
	tokens *TokenService
}

func NewService(st store.AccountStore, tokens *TokenService) *Service {
	return &Service{store: st, tokens: tokens}
}

func (s *Service) Tokens() *TokenService { return s.tokens }

func (s *Service) CreateAccount(ctx context.Context, username, password string) (store.Account, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return store.Account{}, fmt.Errorf("failed to hash password: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return store.Account{}, fmt.Errorf("failed to generate account id: %w", err)
	}

	account := store.Account{
		ID:             id.String(),
		Username:       username,
		HashedPassword: string(hashed),
	}
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return store.Account{}, err
	}
	return account, nil
}

// Login verifies the credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	account, err := s.store.AccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.HashedPassword), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.tokens.Issue(account.ID)
}

// Logout invalidates every token issued to the account so far.
func (s *Service) Logout(ctx context.Context, accountID string) error {
	return s.tokens.Invalidate(ctx, accountID)
}

func (s *Service) ListAccounts(ctx context.Context) ([]store.Account, error) {
	return s.store.ListAccounts(ctx)
}

func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	return s.store.DeleteAccount(ctx, id)
}
