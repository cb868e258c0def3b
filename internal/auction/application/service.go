package application

import (
	"context"

	"github.com/google/uuid"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

// AuctionService is the application surface the transports use. The HTTP
// and websocket layers never touch repositories or locks directly.
type AuctionService interface {
	// PlaceBid submits a bid through the arbiter.
	PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResult, error)
	// BuyNow purchases immediately at the configured buy-now price.
	BuyNow(ctx context.Context, auctionID, bidderID uuid.UUID) (*PlaceBidResult, error)
	// CancelAuction aborts a scheduled or active auction.
	CancelAuction(ctx context.Context, auctionID uuid.UUID) error
	// GetSnapshot returns the full current state for resync.
	GetSnapshot(ctx context.Context, auctionID uuid.UUID) (*SnapshotDTO, error)
	// GetBids returns the auction's bid history, oldest first.
	GetBids(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error)
}

type auctionService struct {
	placeBidUC *PlaceBidUseCase
	buyNowUC   *BuyNowUseCase
	cancelUC   *CancelAuctionUseCase
	snapshotUC *GetSnapshotUseCase
	bids       domain.BidRepository
}

// NewAuctionService assembles the service from its use cases.
func NewAuctionService(
	placeBidUC *PlaceBidUseCase,
	buyNowUC *BuyNowUseCase,
	cancelUC *CancelAuctionUseCase,
	snapshotUC *GetSnapshotUseCase,
	bids domain.BidRepository,
) AuctionService {
	return &auctionService{
		placeBidUC: placeBidUC,
		buyNowUC:   buyNowUC,
		cancelUC:   cancelUC,
		snapshotUC: snapshotUC,
		bids:       bids,
	}
}

func (s *auctionService) PlaceBid(ctx context.Context, cmd PlaceBidDTO) (*PlaceBidResult, error) {
	return s.placeBidUC.Execute(ctx, cmd)
}

func (s *auctionService) BuyNow(ctx context.Context, auctionID, bidderID uuid.UUID) (*PlaceBidResult, error) {
	return s.buyNowUC.Execute(ctx, auctionID, bidderID)
}

func (s *auctionService) CancelAuction(ctx context.Context, auctionID uuid.UUID) error {
	return s.cancelUC.Execute(ctx, auctionID)
}

func (s *auctionService) GetSnapshot(ctx context.Context, auctionID uuid.UUID) (*SnapshotDTO, error) {
	return s.snapshotUC.Execute(ctx, auctionID)
}

func (s *auctionService) GetBids(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	return s.bids.GetBidsByAuction(ctx, auctionID)
}
