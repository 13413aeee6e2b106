package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"homestaging/internal/infra"
	"homestaging/internal/sqlinline"
)

// PGStore persists ledger values in Postgres through the shared SQL runner.
type PGStore struct {
	sql infra.SQLExecutor
}

func NewPGStore(sql infra.SQLExecutor) *PGStore {
	return &PGStore{sql: sql}
}

func (s *PGStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.sql.QueryRow(ctx, sqlinline.QSelectKV, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("ledger: get %q: %w", key, err)
	}
	return value, nil
}

func (s *PGStore) Set(ctx context.Context, key, value string) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertKV, key, value); err != nil {
		return fmt.Errorf("ledger: set %q: %w", key, err)
	}
	return nil
}

func (s *PGStore) Delete(ctx context.Context, key string) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QDeleteKV, key); err != nil {
		return fmt.Errorf("ledger: delete %q: %w", key, err)
	}
	return nil
}

var _ Store = (*PGStore)(nil)
