package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"homestaging/internal/domain"
	"homestaging/internal/ledger"
	"homestaging/internal/providers/retouch"
	"homestaging/internal/storage"
	"homestaging/internal/tracker"
)

type retoucherFunc func(ctx context.Context, req retouch.Request) ([]byte, error)

func (f retoucherFunc) Retouch(ctx context.Context, req retouch.Request) ([]byte, error) {
	return f(ctx, req)
}

func newFixture(t *testing.T) (*Service, *tracker.Tracker, *ledger.Service) {
	t.Helper()
	spool, err := storage.NewSpool(t.TempDir())
	if err != nil {
		t.Fatalf("NewSpool error: %v", err)
	}
	logger := zerolog.New(io.Discard)
	tr := tracker.New(retoucherFunc(func(ctx context.Context, req retouch.Request) ([]byte, error) {
		return []byte("staged"), nil
	}), spool, logger)
	t.Cleanup(tr.Close)
	lg := ledger.NewService(ledger.NewMemoryStore(), logger)
	return New(tr, lg, logger), tr, lg
}

func completedJob(t *testing.T, tr *tracker.Tracker) string {
	t.Helper()
	ids, err := tr.SubmitBatch("u1", []tracker.Upload{{Name: "salon.jpg", Data: []byte("img")}})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, _ := tr.Get("u1", ids[0])
		if job.Status == domain.JobStatusCompleted {
			return ids[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("job never completed")
	return ""
}

func TestUnlockRequiresSession(t *testing.T) {
	svc, tr, _ := newFixture(t)
	id := completedJob(t, tr)

	if _, err := svc.Unlock(context.Background(), nil, id); !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
	job, _ := tr.Get("u1", id)
	if job.Unlocked {
		t.Fatal("job must stay locked without a session")
	}
}

func TestUnlockWithEmptyBalance(t *testing.T) {
	svc, tr, lg := newFixture(t)
	id := completedJob(t, tr)
	sess := &domain.Session{UID: "u1"}

	if _, err := svc.Unlock(context.Background(), sess, id); !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	job, _ := tr.Get("u1", id)
	if job.Unlocked {
		t.Fatal("job must stay locked")
	}
	if balance, _ := lg.Balance(context.Background(), "u1"); balance != 0 {
		t.Fatalf("balance changed to %d", balance)
	}
}

func TestUnlockSpendsExactlyOneCredit(t *testing.T) {
	svc, tr, lg := newFixture(t)
	id := completedJob(t, tr)
	ctx := context.Background()
	sess := &domain.Session{UID: "u1"}

	if _, err := lg.Credit(ctx, "u1", 2); err != nil {
		t.Fatalf("Credit error: %v", err)
	}
	balance, err := svc.Unlock(ctx, sess, id)
	if err != nil {
		t.Fatalf("Unlock error: %v", err)
	}
	if balance != 1 {
		t.Fatalf("expected balance 1, got %d", balance)
	}
	job, _ := tr.Get("u1", id)
	if !job.Unlocked {
		t.Fatal("job should be unlocked")
	}
}

func TestUnlockTwiceChargesOnce(t *testing.T) {
	svc, tr, lg := newFixture(t)
	id := completedJob(t, tr)
	ctx := context.Background()
	sess := &domain.Session{UID: "u1"}

	if _, err := lg.Credit(ctx, "u1", 2); err != nil {
		t.Fatalf("Credit error: %v", err)
	}
	if _, err := svc.Unlock(ctx, sess, id); err != nil {
		t.Fatalf("first Unlock error: %v", err)
	}
	balance, err := svc.Unlock(ctx, sess, id)
	if err != nil {
		t.Fatalf("second Unlock error: %v", err)
	}
	if balance != 1 {
		t.Fatalf("second unlock charged again, balance %d", balance)
	}
}

func TestUnlockProcessingJob(t *testing.T) {
	svc, _, lg := newFixture(t)

	spool, err := storage.NewSpool(t.TempDir())
	if err != nil {
		t.Fatalf("NewSpool error: %v", err)
	}
	blocked := make(chan struct{})
	t.Cleanup(func() { close(blocked) })
	tr := tracker.New(retoucherFunc(func(ctx context.Context, req retouch.Request) ([]byte, error) {
		<-blocked
		return nil, ctx.Err()
	}), spool, zerolog.New(io.Discard))
	t.Cleanup(tr.Close)
	svc = New(tr, lg, zerolog.New(io.Discard))

	ids, err := tr.SubmitBatch("u1", []tracker.Upload{{Name: "x.jpg", Data: []byte("img")}})
	if err != nil {
		t.Fatalf("SubmitBatch error: %v", err)
	}
	ctx := context.Background()
	if _, err := lg.Credit(ctx, "u1", 1); err != nil {
		t.Fatalf("Credit error: %v", err)
	}
	if _, err := svc.Unlock(ctx, &domain.Session{UID: "u1"}, ids[0]); !errors.Is(err, domain.ErrJobNotCompleted) {
		t.Fatalf("expected ErrJobNotCompleted, got %v", err)
	}
	if balance, _ := lg.Balance(ctx, "u1"); balance != 1 {
		t.Fatalf("balance must be untouched, got %d", balance)
	}
}

func TestPurchaseTiers(t *testing.T) {
	svc, _, lg := newFixture(t)
	ctx := context.Background()
	sess := &domain.Session{UID: "u1"}

	if _, err := lg.Credit(ctx, "u1", 1); err != nil {
		t.Fatalf("Credit error: %v", err)
	}
	balance, err := svc.Purchase(ctx, sess, 10)
	if err != nil {
		t.Fatalf("Purchase error: %v", err)
	}
	if balance != 11 {
		t.Fatalf("expected 11 after buying the 10-credit tier on 1, got %d", balance)
	}

	if _, err := svc.Purchase(ctx, sess, 7); !errors.Is(err, domain.ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
	if _, err := svc.Purchase(ctx, nil, 5); !errors.Is(err, domain.ErrAuthenticationRequired) {
		t.Fatalf("expected ErrAuthenticationRequired, got %v", err)
	}
}
