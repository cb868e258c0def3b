package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hammerline/bidengine/internal/auction/domain"
	"github.com/hammerline/bidengine/internal/shared/clock"
)

// BuyNowUseCase accepts an immediate purchase at the auction's buy-now
// price and closes the auction as sold through the same
// active -> closing -> sold walk the scheduler uses, in one transaction.
type BuyNowUseCase struct {
	auctions domain.AuctionRepository
	bids     domain.BidRepository
	txm      domain.TxManager
	locks    *AuctionLocks
	pub      EventPublisher
	notifier domain.Notifier
	clk      clock.Clock
	lockWait time.Duration
}

// NewBuyNowUseCase wires the buy-now path.
func NewBuyNowUseCase(
	auctions domain.AuctionRepository,
	bids domain.BidRepository,
	txm domain.TxManager,
	locks *AuctionLocks,
	pub EventPublisher,
	notifier domain.Notifier,
	clk clock.Clock,
	lockWait time.Duration,
) *BuyNowUseCase {
	return &BuyNowUseCase{
		auctions: auctions,
		bids:     bids,
		txm:      txm,
		locks:    locks,
		pub:      pub,
		notifier: notifier,
		clk:      clk,
		lockWait: lockWait,
	}
}

func (uc *BuyNowUseCase) Execute(ctx context.Context, auctionID, bidderID uuid.UUID) (*PlaceBidResult, error) {
	release, err := uc.locks.Acquire(ctx, auctionID, uc.lockWait)
	if err != nil {
		return nil, err
	}
	defer release()

	var auction *domain.Auction
	var winning *domain.Bid
	err = uc.txm.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		a, err := uc.auctions.GetForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}

		bid, err := a.ApplyBuyNow(bidderID, uc.clk.Now())
		if err != nil {
			return err
		}
		if err := a.Claim(); err != nil {
			return err
		}
		if _, err := a.Finalize(); err != nil {
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
		winning = bid
		return nil
	})
	if err != nil {
		if domain.IsRejection(err) {
			return nil, err
		}
		if !errorsIsTransient(err) {
			err = fmt.Errorf("%w: %v", domain.ErrTransient, err)
		}
		return nil, err
	}

	publishNewBid(uc.pub, auction, winning)
	publishClosing(uc.pub, auction)
	publishClosed(uc.pub, auction, domain.OutcomeSold, winning)
	uc.pub.Forget(auction.ID.String())

	uc.notifier.AuctionOutcome(ctx, domain.OutcomeEvent{
		AuctionID:  auction.ID,
		ProductID:  auction.ProductID,
		SellerID:   auction.SellerID,
		Outcome:    domain.OutcomeSold,
		WinnerID:   &winning.BidderID,
		FinalPrice: &winning.Amount,
		ClosedAt:   uc.clk.Now(),
	})

	log.Info("buy now accepted",
		zap.String("auctionID", auctionID.String()),
		zap.String("bidderID", bidderID.String()),
		zap.Int64("amount", winning.Amount),
	)
	return &PlaceBidResult{Bid: winning, MinNextBid: auction.MinNextBid(), BidCount: auction.BidCount}, nil
}
