package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

// CancelAuctionUseCase aborts a scheduled or active auction. The terminal
// broadcast uses the cancelled outcome and carries no winner.
type CancelAuctionUseCase struct {
	auctions domain.AuctionRepository
	txm      domain.TxManager
	locks    *AuctionLocks
	pub      EventPublisher
	lockWait time.Duration
}

// NewCancelAuctionUseCase wires the cancel path.
func NewCancelAuctionUseCase(auctions domain.AuctionRepository, txm domain.TxManager, locks *AuctionLocks, pub EventPublisher, lockWait time.Duration) *CancelAuctionUseCase {
	return &CancelAuctionUseCase{
		auctions: auctions,
		txm:      txm,
		locks:    locks,
		pub:      pub,
		lockWait: lockWait,
	}
}

func (uc *CancelAuctionUseCase) Execute(ctx context.Context, auctionID uuid.UUID) error {
	release, err := uc.locks.Acquire(ctx, auctionID, uc.lockWait)
	if err != nil {
		return err
	}
	defer release()

	var auction *domain.Auction
	err = uc.txm.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		a, err := uc.auctions.GetForUpdate(ctx, tx, auctionID)
		if err != nil {
			return err
		}
		if err := a.Cancel(); err != nil {
			return err
		}
		if err := uc.auctions.Save(ctx, tx, a); err != nil {
			return fmt.Errorf("%w: save auction: %v", domain.ErrTransient, err)
		}
		auction = a
		return nil
	})
	if err != nil {
		return err
	}

	publishClosed(uc.pub, auction, domain.OutcomeCancelled, nil)
	uc.pub.Forget(auction.ID.String())

	log.Info("auction cancelled", zap.String("auctionID", auctionID.String()))
	return nil
}
