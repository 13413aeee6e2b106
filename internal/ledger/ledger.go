// Package ledger implements the per-user credit balance and its mutating
// operations. Balances are non-negative integers persisted as decimal strings
// under tokens_{userID}; debits refuse to take a balance below zero.
package ledger

import (
	"context"
	"fmt"
	"strconv"

	"homestaging/internal/domain"
	"homestaging/internal/infra"
)

type Service struct {
	store  Store
	logger infra.Logger
}

func NewService(store Store, logger infra.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Balance reads the persisted balance; 0 when none was ever recorded.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	return s.read(ctx, userID)
}

// GrantWelcome sets the balance to exactly 1, overwriting any stale value.
// Callers invoke it once, at first-ever successful registration.
func (s *Service) GrantWelcome(ctx context.Context, userID string) (int, error) {
	if err := s.write(ctx, userID, 1); err != nil {
		return 0, err
	}
	s.logger.Info().Str("user_id", userID).Msg("ledger: welcome credit granted")
	return 1, nil
}

// EnsureWelcome grants the welcome credit only when the account has no
// recorded balance at all. Federated sign-ins use it: the first one seeds the
// account, later ones leave whatever balance exists alone.
func (s *Service) EnsureWelcome(ctx context.Context, userID string) (int, error) {
	raw, err := s.store.Get(ctx, BalanceKey(userID))
	if err != nil {
		return 0, err
	}
	if raw != "" {
		return s.read(ctx, userID)
	}
	return s.GrantWelcome(ctx, userID)
}

// Debit subtracts amount, failing with domain.ErrInsufficientBalance when the
// current balance cannot cover it. Nothing is written on failure.
func (s *Service) Debit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("ledger: debit amount must be positive, got %d", amount)
	}
	balance, err := s.read(ctx, userID)
	if err != nil {
		return 0, err
	}
	if balance < amount {
		return balance, domain.ErrInsufficientBalance
	}
	next := balance - amount
	if err := s.write(ctx, userID, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Credit adds amount and returns the new balance. Purchase flows always pass
// a positive tier size; a non-positive amount is a programming error.
func (s *Service) Credit(ctx context.Context, userID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("ledger: credit amount must be positive, got %d", amount)
	}
	balance, err := s.read(ctx, userID)
	if err != nil {
		return 0, err
	}
	next := balance + amount
	if err := s.write(ctx, userID, next); err != nil {
		return 0, err
	}
	return next, nil
}

// Clear removes the stored balance entirely. Used on account deletion.
func (s *Service) Clear(ctx context.Context, userID string) error {
	return s.store.Delete(ctx, BalanceKey(userID))
}

func (s *Service) read(ctx context.Context, userID string) (int, error) {
	raw, err := s.store.Get(ctx, BalanceKey(userID))
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	balance, err := strconv.Atoi(raw)
	if err != nil || balance < 0 {
		// A corrupt value is treated as absent rather than poisoning every
		// later operation on the account.
		s.logger.Warn().Str("user_id", userID).Str("value", raw).Msg("ledger: discarding unreadable balance")
		return 0, nil
	}
	return balance, nil
}

func (s *Service) write(ctx context.Context, userID string, balance int) error {
	return s.store.Set(ctx, BalanceKey(userID), strconv.Itoa(balance))
}
