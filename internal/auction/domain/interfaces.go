package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TxManager runs a function inside a database transaction, committing on
// nil return and rolling back otherwise. Write paths of the arbiter and the
// scheduler always go through it so readers never observe half-applied state.
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}

// AuctionRepository is the durable auction store. Methods taking a pgx.Tx
// participate in the caller's transaction.
type AuctionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	// GetForUpdate loads the auction row with a row lock, serializing
	// against a concurrent scheduler claim on the same auction.
	GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Auction, error)
	Create(ctx context.Context, a *Auction) error
	Save(ctx context.Context, tx pgx.Tx, a *Auction) error
	// ClaimForClosing atomically transitions active -> closing. Returns
	// false when another claimer already won the compare-and-swap.
	ClaimForClosing(ctx context.Context, id uuid.UUID) (bool, error)
	// ActivateDue flips every scheduled auction whose start time has
	// passed to active, returning how many rows changed. Auctions
	// already past their end time activate too; the caller's same pass
	// then claims and closes them.
	ActivateDue(ctx context.Context, now time.Time) (int64, error)
	FindDue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	// FindStuckClosing returns auctions left in closing past the grace
	// cutoff, so a failed finalize can be retried.
	FindStuckClosing(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// BidRepository is the append-only bid ledger.
type BidRepository interface {
	Append(ctx context.Context, tx pgx.Tx, b *Bid) error
	// MarkSuperseded flips the current winning bid of the auction to
	// is_winning = false. No-op when the auction has no bids.
	MarkSuperseded(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) error
	GetWinningBid(ctx context.Context, auctionID uuid.UUID) (*Bid, error)
	GetBidsByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)
}

// OutcomeEvent describes a terminal auction result for the notification
// collaborator. WinnerID and FinalPrice are nil for unsold outcomes.
type OutcomeEvent struct {
	AuctionID  uuid.UUID  `json:"auction_id"`
	ProductID  uuid.UUID  `json:"product_id"`
	SellerID   uuid.UUID  `json:"seller_id"`
	Outcome    Outcome    `json:"outcome"`
	WinnerID   *uuid.UUID `json:"winner_id,omitempty"`
	FinalPrice *int64     `json:"final_price,omitempty"`
	ClosedAt   time.Time  `json:"closed_at"`
}

// Notifier receives fire-and-forget outcome events. Implementations must
// not block the scheduler on slow downstreams.
type Notifier interface {
	AuctionOutcome(ctx context.Context, ev OutcomeEvent)
}

// IdempotencyCache registers client-supplied idempotency tokens within a
// short window. Register returns false when the token was already seen.
// Unregister frees a token whose submission did not land, so the caller's
// retry is not mistaken for a duplicate.
type IdempotencyCache interface {
	Register(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unregister(ctx context.Context, key string) error
}
