package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus is the lifecycle state of an auction. Transitions only move
// forward: scheduled -> active -> closing -> one of the terminal states.
// Cancelled is reachable from scheduled and active only.
type AuctionStatus string

const (
	StatusScheduled     AuctionStatus = "scheduled"
	StatusActive        AuctionStatus = "active"
	StatusClosing       AuctionStatus = "closing"
	StatusSold          AuctionStatus = "sold"
	StatusReserveNotMet AuctionStatus = "reserve_not_met"
	StatusUnsold        AuctionStatus = "unsold"
	StatusCancelled     AuctionStatus = "cancelled"
)

// Outcome is how a closed auction ended.
type Outcome string

const (
	OutcomeSold          Outcome = "sold"
	OutcomeReserveNotMet Outcome = "reserve_not_met"
	OutcomeUnsold        Outcome = "unsold"
	OutcomeCancelled     Outcome = "cancelled"
)

// Auction is the aggregate root of the bidding engine. All monetary values
// are integer minor units (cents); all timestamps are UTC. CurrentBid and
// CurrentBidderID are set together or not at all.
type Auction struct {
	ID              uuid.UUID
	ProductID       uuid.UUID
	SellerID        uuid.UUID
	StartingPrice   int64
	BidIncrement    int64
	ReservePrice    *int64
	BuyNowPrice     *int64
	CurrentBid      *int64
	CurrentBidderID *uuid.UUID
	BidCount        int
	Status          AuctionStatus
	StartsAt        time.Time
	EndsAt          time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewAuction builds a scheduled auction. Prices must be positive and the end
// time must be strictly after the start time. Timestamps are canonicalized
// to UTC on the way in so later comparisons never depend on the zone the
// caller happened to use.
func NewAuction(
	id, productID, sellerID uuid.UUID,
	startingPrice, bidIncrement int64,
	reservePrice, buyNowPrice *int64,
	startsAt, endsAt time.Time,
) (*Auction, error) {
	if startingPrice <= 0 || bidIncrement <= 0 {
		return nil, ErrInvalidAmount
	}
	if reservePrice != nil && *reservePrice <= 0 {
		return nil, ErrInvalidAmount
	}
	if buyNowPrice != nil && *buyNowPrice <= 0 {
		return nil, ErrInvalidAmount
	}
	if !endsAt.After(startsAt) {
		return nil, ErrInvalidSchedule
	}

	now := time.Now().UTC()
	return &Auction{
		ID:            id,
		ProductID:     productID,
		SellerID:      sellerID,
		StartingPrice: startingPrice,
		BidIncrement:  bidIncrement,
		ReservePrice:  reservePrice,
		BuyNowPrice:   buyNowPrice,
		Status:        StatusScheduled,
		StartsAt:      startsAt.UTC(),
		EndsAt:        endsAt.UTC(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// MinNextBid returns the lowest amount the next bid must reach: the starting
// price while no bid stands, the current bid plus the increment afterwards.
func (a *Auction) MinNextBid() int64 {
	if a.CurrentBid == nil {
		return a.StartingPrice
	}
	return *a.CurrentBid + a.BidIncrement
}

// ValidateBid checks a candidate bid against the auction state at the given
// instant without mutating anything. A bid placed exactly at EndsAt is
// already too late.
func (a *Auction) ValidateBid(bidderID uuid.UUID, amount int64, at time.Time) error {
	if a.Status != StatusActive {
		return ErrAuctionNotActive
	}
	if !at.Before(a.EndsAt) {
		return ErrAuctionEnded
	}
	if bidderID == a.SellerID {
		return ErrSelfBid
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if amount < a.MinNextBid() {
		return ErrBidTooLow
	}
	return nil
}

// ApplyBid validates and applies a bid, returning the new winning ledger
// entry. The highest bid only ever increases.
func (a *Auction) ApplyBid(bidderID uuid.UUID, amount int64, at time.Time) (*Bid, error) {
	if err := a.ValidateBid(bidderID, amount, at); err != nil {
		return nil, err
	}

	v := amount
	b := bidderID
	a.CurrentBid = &v
	a.CurrentBidderID = &b
	a.BidCount++
	a.UpdatedAt = at.UTC()

	return NewBid(uuid.New(), a.ID, bidderID, amount, at.UTC()), nil
}

// ApplyBuyNow applies an immediate purchase at the configured buy now price.
// Unavailable once bidding has reached or passed that price; the caller is
// responsible for claiming and finalizing the auction afterwards.
func (a *Auction) ApplyBuyNow(bidderID uuid.UUID, at time.Time) (*Bid, error) {
	if a.Status != StatusActive {
		return nil, ErrAuctionNotActive
	}
	if !at.Before(a.EndsAt) {
		return nil, ErrAuctionEnded
	}
	if bidderID == a.SellerID {
		return nil, ErrSelfBid
	}
	if a.BuyNowPrice == nil {
		return nil, ErrBuyNowUnavailable
	}
	if a.CurrentBid != nil && *a.CurrentBid >= *a.BuyNowPrice {
		return nil, ErrBuyNowUnavailable
	}

	v := *a.BuyNowPrice
	b := bidderID
	a.CurrentBid = &v
	a.CurrentBidderID = &b
	a.BidCount++
	a.UpdatedAt = at.UTC()

	return NewBid(uuid.New(), a.ID, bidderID, v, at.UTC()), nil
}

// Activate moves a scheduled auction into the active state once its start
// time has passed.
func (a *Auction) Activate(now time.Time) error {
	if a.Status != StatusScheduled {
		return ErrNotScheduled
	}
	if now.Before(a.StartsAt) {
		return ErrNotStartedYet
	}
	a.Status = StatusActive
	a.UpdatedAt = now.UTC()
	return nil
}

// Claim moves an active auction into closing. Exactly one claimer may win
// this transition; a second claim fails.
func (a *Auction) Claim() error {
	if a.Status != StatusActive {
		return ErrAuctionNotActive
	}
	a.Status = StatusClosing
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Finalize settles a closing auction into its terminal state: unsold without
// bids, reserve_not_met when the highest bid stayed below the reserve, sold
// otherwise. The winning amount is frozen as it stands.
func (a *Auction) Finalize() (Outcome, error) {
	if a.Status != StatusClosing {
		return "", ErrNotClosing
	}

	var outcome Outcome
	switch {
	case a.CurrentBid == nil:
		outcome = OutcomeUnsold
		a.Status = StatusUnsold
	case a.ReservePrice != nil && *a.CurrentBid < *a.ReservePrice:
		outcome = OutcomeReserveNotMet
		a.Status = StatusReserveNotMet
	default:
		outcome = OutcomeSold
		a.Status = StatusSold
	}
	a.UpdatedAt = time.Now().UTC()
	return outcome, nil
}

// Cancel aborts an auction that has not started closing.
func (a *Auction) Cancel() error {
	if a.Status != StatusScheduled && a.Status != StatusActive {
		return ErrNotCancellable
	}
	a.Status = StatusCancelled
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// IsTerminal reports whether no further state transitions are possible.
func (a *Auction) IsTerminal() bool {
	switch a.Status {
	case StatusSold, StatusReserveNotMet, StatusUnsold, StatusCancelled:
		return true
	}
	return false
}
