package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

// SnapshotDTO is the full current-auction state used for resync after a
// reconnect or a detected sequence gap. Seq is the last event sequence the
// hub published for this auction; deltas with seq <= Seq are stale.
type SnapshotDTO struct {
	AuctionID       uuid.UUID            `json:"auction_id"`
	Status          domain.AuctionStatus `json:"status"`
	CurrentBid      *int64               `json:"current_bid,omitempty"`
	CurrentBidderID *uuid.UUID           `json:"current_bidder_id,omitempty"`
	BidCount        int                  `json:"bid_count"`
	MinNextBid      int64                `json:"min_next_bid"`
	BuyNowPrice     *int64               `json:"buy_now_price,omitempty"`
	EndsAt          time.Time            `json:"ends_at"`
	Seq             uint64               `json:"seq"`
}

// GetSnapshotUseCase reads the authoritative auction state.
type GetSnapshotUseCase struct {
	auctions domain.AuctionRepository
	pub      EventPublisher
}

// NewGetSnapshotUseCase creates the snapshot reader.
func NewGetSnapshotUseCase(auctions domain.AuctionRepository, pub EventPublisher) *GetSnapshotUseCase {
	return &GetSnapshotUseCase{auctions: auctions, pub: pub}
}

func (uc *GetSnapshotUseCase) Execute(ctx context.Context, auctionID uuid.UUID) (*SnapshotDTO, error) {
	// seq is read before the state: a bid landing between the two reads
	// then stamps the snapshot with an older seq, which only costs the
	// client a duplicate delta. The other order would stamp pre-bid state
	// with the bid's seq and make the client drop that bid as stale.
	seq := uc.pub.CurrentSeq(auctionID.String())

	a, err := uc.auctions.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}

	return &SnapshotDTO{
		AuctionID:       a.ID,
		Status:          a.Status,
		CurrentBid:      a.CurrentBid,
		CurrentBidderID: a.CurrentBidderID,
		BidCount:        a.BidCount,
		MinNextBid:      a.MinNextBid(),
		BuyNowPrice:     a.BuyNowPrice,
		EndsAt:          a.EndsAt,
		Seq:             seq,
	}, nil
}
