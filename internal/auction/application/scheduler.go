package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hammerline/bidengine/internal/auction/domain"
	"github.com/hammerline/bidengine/internal/shared/clock"
)

// ExpiryScheduler closes every auction exactly once at or shortly after its
// end time. Each poll activates due scheduled auctions, claims due active
// ones through an atomic compare-and-swap, and retries anything stuck in
// closing past the grace period (a finalize that failed mid-flight).
type ExpiryScheduler struct {
	auctions domain.AuctionRepository
	bids     domain.BidRepository
	txm      domain.TxManager
	locks    *AuctionLocks
	pub      EventPublisher
	notifier domain.Notifier
	clk      clock.Clock
	logger   *zap.Logger

	pollInterval time.Duration
	closingGrace time.Duration
	lockWait     time.Duration
}

// NewExpiryScheduler wires the scheduler.
func NewExpiryScheduler(
	auctions domain.AuctionRepository,
	bids domain.BidRepository,
	txm domain.TxManager,
	locks *AuctionLocks,
	pub EventPublisher,
	notifier domain.Notifier,
	clk clock.Clock,
	logger *zap.Logger,
	pollInterval, closingGrace, lockWait time.Duration,
) *ExpiryScheduler {
	return &ExpiryScheduler{
		auctions:     auctions,
		bids:         bids,
		txm:          txm,
		locks:        locks,
		pub:          pub,
		notifier:     notifier,
		clk:          clk,
		logger:       logger,
		pollInterval: pollInterval,
		closingGrace: closingGrace,
		lockWait:     lockWait,
	}
}

// Run polls until the context is cancelled. Polling interval only affects
// closing latency, never correctness: the claim is the atomic step.
func (s *ExpiryScheduler) Run(ctx context.Context) {
	s.logger.Info("expiry scheduler started",
		zap.Duration("pollInterval", s.pollInterval),
		zap.Duration("closingGrace", s.closingGrace),
	)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduler pass. Exported so tests drive it directly.
func (s *ExpiryScheduler) Tick(ctx context.Context) {
	now := s.clk.Now()

	if n, err := s.auctions.ActivateDue(ctx, now); err != nil {
		s.logger.Error("activating due auctions failed", zap.Error(err))
	} else if n > 0 {
		s.logger.Info("auctions activated", zap.Int64("count", n))
	}

	due, err := s.auctions.FindDue(ctx, now)
	if err != nil {
		s.logger.Error("finding due auctions failed", zap.Error(err))
	}
	for _, id := range due {
		if err := s.CloseAuction(ctx, id, false); err != nil {
			s.logger.Error("closing auction failed",
				zap.String("auctionID", id.String()),
				zap.Error(err),
			)
		}
	}

	stuck, err := s.auctions.FindStuckClosing(ctx, now.Add(-s.closingGrace))
	if err != nil {
		s.logger.Error("finding stuck closing auctions failed", zap.Error(err))
	}
	for _, id := range stuck {
		// observable signal for operational alerting
		s.logger.Warn("auction stuck in closing, retrying finalize",
			zap.String("auctionID", id.String()),
			zap.Duration("grace", s.closingGrace),
		)
		if err := s.CloseAuction(ctx, id, true); err != nil {
			s.logger.Error("retrying stuck auction failed",
				zap.String("auctionID", id.String()),
				zap.Error(err),
			)
		}
	}
}

// CloseAuction claims one due auction and walks it to its terminal state.
// With reclaim the claim step is skipped: the auction is already in closing
// and only the finalize is retried. Safe to call concurrently; the CAS
// guarantees a single winner per auction.
func (s *ExpiryScheduler) CloseAuction(ctx context.Context, id uuid.UUID, reclaim bool) error {
	release, err := s.locks.Acquire(ctx, id, s.lockWait)
	if err != nil {
		return err
	}
	defer release()

	if !reclaim {
		claimed, err := s.auctions.ClaimForClosing(ctx, id)
		if err != nil {
			return fmt.Errorf("claim auction %s: %w", id, err)
		}
		if !claimed {
			// another claimer won, or a bid arrived and the row
			// changed under us; either way nothing to do here
			return nil
		}
	}

	var auction *domain.Auction
	var outcome domain.Outcome
	err = s.txm.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		a, err := s.auctions.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		out, err := a.Finalize()
		if err != nil {
			// someone else already finalized it between our claim
			// check and now
			return err
		}

		if err := s.auctions.Save(ctx, tx, a); err != nil {
			return fmt.Errorf("%w: save terminal state: %v", domain.ErrTransient, err)
		}
		auction = a
		outcome = out
		return nil
	})
	if err != nil {
		if reclaim && errors.Is(err, domain.ErrNotClosing) {
			return nil
		}
		return err
	}

	winning, err := s.bids.GetWinningBid(ctx, auction.ID)
	if err != nil {
		s.logger.Error("loading winning bid for closed auction failed",
			zap.String("auctionID", auction.ID.String()),
			zap.Error(err),
		)
	}

	if !reclaim {
		publishClosing(s.pub, auction)
	}
	publishClosed(s.pub, auction, outcome, winning)
	s.pub.Forget(auction.ID.String())

	ev := domain.OutcomeEvent{
		AuctionID: auction.ID,
		ProductID: auction.ProductID,
		SellerID:  auction.SellerID,
		Outcome:   outcome,
		ClosedAt:  s.clk.Now(),
	}
	if winning != nil {
		ev.WinnerID = &winning.BidderID
		ev.FinalPrice = &winning.Amount
	}
	s.notifier.AuctionOutcome(ctx, ev)

	s.logger.Info("auction closed",
		zap.String("auctionID", auction.ID.String()),
		zap.String("outcome", string(outcome)),
	)
	return nil
}
