// Package service composes the job tracker and the credit ledger into the
// unlock and purchase flows. Unlocking spends exactly one credit to flip a
// completed job's unlocked flag; purchasing only grows the balance and never
// unlocks anything by itself.
package service

import (
	"context"

	"homestaging/internal/domain"
	"homestaging/internal/infra"
	"homestaging/internal/ledger"
	"homestaging/internal/tracker"
)

const unlockCost = 1

type Service struct {
	tracker *tracker.Tracker
	ledger  *ledger.Service
	logger  infra.Logger
}

func New(tr *tracker.Tracker, lg *ledger.Service, logger infra.Logger) *Service {
	return &Service{tracker: tr, ledger: lg, logger: logger}
}

// Unlock spends one credit on behalf of the session to unlock the job's clean
// artifact. It returns the remaining balance. Without a session it fails with
// domain.ErrAuthenticationRequired so the caller can route to sign-in; with an
// empty balance it fails with domain.ErrInsufficientBalance so the caller can
// route to the purchase flow. The job is left untouched in both cases.
func (s *Service) Unlock(ctx context.Context, sess *domain.Session, jobID string) (int, error) {
	if !sess.Authenticated() {
		return 0, domain.ErrAuthenticationRequired
	}

	job, err := s.tracker.Get(sess.UID, jobID)
	if err != nil {
		return 0, err
	}
	if job.Unlocked {
		// Already paid for; never charge twice.
		return s.ledger.Balance(ctx, sess.UID)
	}
	if job.Status != domain.JobStatusCompleted {
		return 0, domain.ErrJobNotCompleted
	}

	balance, err := s.ledger.Debit(ctx, sess.UID, unlockCost)
	if err != nil {
		return 0, err
	}
	if err := s.tracker.MarkUnlocked(sess.UID, jobID); err != nil {
		// The job changed between the check and the debit (regenerated or
		// cleared). Hand the credit back rather than keeping a payment for
		// nothing.
		if _, refundErr := s.ledger.Credit(ctx, sess.UID, unlockCost); refundErr != nil {
			s.logger.Error().Err(refundErr).Str("user_id", sess.UID).Msg("service: refund after failed unlock")
		}
		return 0, err
	}

	s.logger.Info().Str("user_id", sess.UID).Str("job_id", jobID).Int("balance", balance).Msg("service: job unlocked")
	return balance, nil
}

// Purchase credits the tier's size and returns the new balance. Unknown tiers
// are refused; unlocking remains a separate, explicit action.
func (s *Service) Purchase(ctx context.Context, sess *domain.Session, tierCredits int) (int, error) {
	if !sess.Authenticated() {
		return 0, domain.ErrAuthenticationRequired
	}
	tier, ok := domain.FindTier(tierCredits)
	if !ok {
		return 0, domain.ErrUnknownTier
	}
	balance, err := s.ledger.Credit(ctx, sess.UID, tier.Credits)
	if err != nil {
		return 0, err
	}
	s.logger.Info().
		Str("user_id", sess.UID).
		Int("credits", tier.Credits).
		Int("price_cents", tier.PriceCents).
		Int("balance", balance).
		Msg("service: purchase recorded")
	return balance, nil
}
