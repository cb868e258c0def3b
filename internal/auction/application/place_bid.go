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
	"github.com/hammerline/bidengine/internal/shared/logger"
)

var log = logger.GetLogger()

// PlaceBidDTO is the input for the bid arbiter. IdempotencyKey is optional;
// when set, an exact resubmission within the configured window is rejected
// instead of double-counted.
type PlaceBidDTO struct {
	AuctionID      uuid.UUID
	BidderID       uuid.UUID
	Amount         int64
	IdempotencyKey string
}

// PlaceBidResult is the accepted bid plus the new floor for the next one.
type PlaceBidResult struct {
	Bid        *domain.Bid
	MinNextBid int64
	BidCount   int
}

// PlaceBidUseCase is the bid arbiter: the single authority deciding whether
// a proposed bid is accepted. Per-auction mutual exclusion comes from the
// shared lock table; durability from one transaction covering the auction
// update, the winning-flag flip and the ledger append. The broadcast is
// enqueued before the lock is released, so the bidder's acknowledgment and
// other viewers' events are never observably out of order.
type PlaceBidUseCase struct {
	auctions domain.AuctionRepository
	bids     domain.BidRepository
	txm      domain.TxManager
	locks    *AuctionLocks
	pub      EventPublisher
	idem     domain.IdempotencyCache
	clk      clock.Clock

	lockWait   time.Duration
	idemWindow time.Duration
}

// NewPlaceBidUseCase wires the arbiter. idem may be nil to disable the
// idempotency token check.
func NewPlaceBidUseCase(
	auctions domain.AuctionRepository,
	bids domain.BidRepository,
	txm domain.TxManager,
	locks *AuctionLocks,
	pub EventPublisher,
	idem domain.IdempotencyCache,
	clk clock.Clock,
	lockWait, idemWindow time.Duration,
) *PlaceBidUseCase {
	return &PlaceBidUseCase{
		auctions:   auctions,
		bids:       bids,
		txm:        txm,
		locks:      locks,
		pub:        pub,
		idem:       idem,
		clk:        clk,
		lockWait:   lockWait,
		idemWindow: idemWindow,
	}
}

func (uc *PlaceBidUseCase) Execute(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResult, error) {
	var idemKey string
	if uc.idem != nil && cmd.IdempotencyKey != "" {
		key := fmt.Sprintf("bid:%s:%s:%s", cmd.AuctionID, cmd.BidderID, cmd.IdempotencyKey)
		fresh, err := uc.idem.Register(ctx, key, uc.idemWindow)
		if err != nil {
			// cache outage must not block bidding, the amount floor
			// absorbs most duplicate retries anyway
			log.Warn("idempotency cache unavailable",
				zap.String("auctionID", cmd.AuctionID.String()),
				zap.Error(err),
			)
		} else if !fresh {
			return nil, domain.ErrDuplicateBid
		} else {
			idemKey = key
		}
	}

	release, err := uc.locks.Acquire(ctx, cmd.AuctionID, uc.lockWait)
	if err != nil {
		uc.releaseToken(ctx, idemKey)
		return nil, err
	}
	defer release()

	var result *PlaceBidResult
	var auction *domain.Auction
	err = uc.txm.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		a, err := uc.auctions.GetForUpdate(ctx, tx, cmd.AuctionID)
		if err != nil {
			return err
		}

		bid, err := a.ApplyBid(cmd.BidderID, cmd.Amount, uc.clk.Now())
		if err != nil {
			return err
		}

		if err := uc.bids.MarkSuperseded(ctx, tx, a.ID); err != nil {
			return fmt.Errorf("%w: supersede winning bid: %v", domain.ErrTransient, err)
		}
		if err := uc.bids.Append(ctx, tx, bid); err != nil {
			return fmt.Errorf("%w: append bid: %v", domain.ErrTransient, err)
		}
		if err := uc.auctions.Save(ctx, tx, a); err != nil {
			return fmt.Errorf("%w: save auction: %v", domain.ErrTransient, err)
		}

		auction = a
		result = &PlaceBidResult{Bid: bid, MinNextBid: a.MinNextBid(), BidCount: a.BidCount}
		return nil
	})
	if err != nil {
		uc.releaseToken(ctx, idemKey)
		if domain.IsRejection(err) {
			log.Debug("bid rejected",
				zap.String("auctionID", cmd.AuctionID.String()),
				zap.String("bidderID", cmd.BidderID.String()),
				zap.Int64("amount", cmd.Amount),
				zap.Error(err),
			)
			return nil, err
		}
		log.Error("bid failed on storage",
			zap.String("auctionID", cmd.AuctionID.String()),
			zap.Error(err),
		)
		if !errorsIsTransient(err) {
			err = fmt.Errorf("%w: %v", domain.ErrTransient, err)
		}
		return nil, err
	}

	// still holding the auction lock here, so broadcast order equals
	// acceptance order for this auction
	publishNewBid(uc.pub, auction, result.Bid)

	log.Info("bid accepted",
		zap.String("auctionID", cmd.AuctionID.String()),
		zap.String("bidderID", cmd.BidderID.String()),
		zap.Int64("amount", cmd.Amount),
		zap.Int("bidCount", result.BidCount),
	)
	return result, nil
}

// releaseToken frees the idempotency token after a non-accepted outcome, so
// a caller told to retry is not then rejected as a duplicate. Only accepted
// bids keep their token for the full window.
func (uc *PlaceBidUseCase) releaseToken(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := uc.idem.Unregister(ctx, key); err != nil {
		log.Warn("releasing idempotency token failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}

func errorsIsTransient(err error) bool {
	return errors.Is(err, domain.ErrTransient)
}
