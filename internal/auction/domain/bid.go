package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bid is an append-only ledger entry. It is never updated except the
// IsWinning flag, which flips to false when a later bid supersedes it and
// is frozen at closing time for the last winning bid.
type Bid struct {
	ID        uuid.UUID `json:"id"`
	AuctionID uuid.UUID `json:"auction_id"`
	BidderID  uuid.UUID `json:"bidder_id"`
	Amount    int64     `json:"amount"`
	PlacedAt  time.Time `json:"placed_at"`
	IsWinning bool      `json:"is_winning"`
}

// NewBid creates a new winning bid entry, callers persist it through the
// ledger inside the arbiter's transaction.
func NewBid(id, auctionID, bidderID uuid.UUID, amount int64, placedAt time.Time) *Bid {
	return &Bid{
		ID:        id,
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		PlacedAt:  placedAt,
		IsWinning: true,
	}
}
