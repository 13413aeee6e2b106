// Command tokens is the operator CLI for the credit ledger. It runs against
// the same store the API uses: Postgres when DATABASE_URL is set, the SQLite
// file otherwise.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"homestaging/internal/infra"
	"homestaging/internal/ledger"
)

func main() {
	var (
		userFlag   string
		opFlag     string
		amountFlag int
	)

	flag.StringVar(&userFlag, "user", "", "user ID to operate on")
	flag.StringVar(&opFlag, "op", "show", "operation: show, welcome, credit, debit, clear")
	flag.IntVar(&amountFlag, "amount", 1, "amount for credit/debit")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, cleanup, err := openStore(ctx)
	if err != nil {
		exitWithError(err)
	}
	defer cleanup()

	svc := ledger.NewService(store, zerolog.New(io.Discard))

	switch strings.ToLower(strings.TrimSpace(opFlag)) {
	case "show":
		balance, err := svc.Balance(ctx, userID)
		if err != nil {
			exitWithError(fmt.Errorf("failed to read balance: %w", err))
		}
		fmt.Printf("user %s balance=%d\n", userID, balance)
	case "welcome":
		balance, err := svc.GrantWelcome(ctx, userID)
		if err != nil {
			exitWithError(fmt.Errorf("failed to grant welcome credit: %w", err))
		}
		fmt.Printf("user %s balance=%d\n", userID, balance)
	case "credit":
		balance, err := svc.Credit(ctx, userID, amountFlag)
		if err != nil {
			exitWithError(fmt.Errorf("failed to credit: %w", err))
		}
		fmt.Printf("user %s balance=%d\n", userID, balance)
	case "debit":
		balance, err := svc.Debit(ctx, userID, amountFlag)
		if err != nil {
			exitWithError(fmt.Errorf("failed to debit: %w", err))
		}
		fmt.Printf("user %s balance=%d\n", userID, balance)
	case "clear":
		if err := svc.Clear(ctx, userID); err != nil {
			exitWithError(fmt.Errorf("failed to clear balance: %w", err))
		}
		fmt.Printf("user %s balance cleared\n", userID)
	default:
		exitWithError(fmt.Errorf("unsupported operation %q", opFlag))
	}
}

func openStore(ctx context.Context) (ledger.Store, func(), error) {
	logger := infra.NewLogger("cli").With().Str("cmd", "tokens").Logger()

	if dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL")); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect database: %w", err)
		}
		return ledger.NewPGStore(infra.NewSQLRunner(pool, logger)), pool.Close, nil
	}

	path := os.Getenv("SQLITE_PATH")
	if path == "" {
		path = "./data/ledger.db"
	}
	store, err := ledger.NewSQLiteStore(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlite ledger: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
