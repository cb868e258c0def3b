package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

// BidRepository implements domain.BidRepository on PostgreSQL. The bids
// table is append-only except for the is_winning flag.
type BidRepository struct {
	pool *pgxpool.Pool
}

// NewBidRepository creates new instance of BidRepository.
func NewBidRepository(pool *pgxpool.Pool) *BidRepository {
	return &BidRepository{pool: pool}
}

// Append inserts a new ledger entry inside the caller's transaction.
func (r *BidRepository) Append(ctx context.Context, tx pgx.Tx, b *domain.Bid) error {
	query := `
        INSERT INTO bids (id, auction_id, bidder_id, amount, placed_at, is_winning)
        VALUES ($1, $2, $3, $4, $5, $6)
    `
	_, err := tx.Exec(ctx, query,
		b.ID,
		b.AuctionID,
		b.BidderID,
		b.Amount,
		b.PlacedAt,
		b.IsWinning,
	)
	return err
}

// MarkSuperseded clears the winning flag of the auction's current winning
// bid. Runs before appending the bid that replaces it, keeping the partial
// unique index on winning bids satisfied.
func (r *BidRepository) MarkSuperseded(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID) error {
	query := `
        UPDATE bids
        SET is_winning = FALSE
        WHERE auction_id = $1 AND is_winning = TRUE
    `
	_, err := tx.Exec(ctx, query, auctionID)
	return err
}

// GetWinningBid returns the auction's winning ledger entry, nil when the
// auction has no bids.
func (r *BidRepository) GetWinningBid(ctx context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, placed_at, is_winning
        FROM bids
        WHERE auction_id = $1 AND is_winning = TRUE
    `
	b := &domain.Bid{}
	err := r.pool.QueryRow(ctx, query, auctionID).Scan(
		&b.ID,
		&b.AuctionID,
		&b.BidderID,
		&b.Amount,
		&b.PlacedAt,
		&b.IsWinning,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// GetBidsByAuction returns the auction's full bid history, oldest first.
func (r *BidRepository) GetBidsByAuction(ctx context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	query := `
        SELECT id, auction_id, bidder_id, amount, placed_at, is_winning
        FROM bids
        WHERE auction_id = $1
        ORDER BY placed_at ASC
    `
	rows, err := r.pool.Query(ctx, query, auctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		b := &domain.Bid{}
		err := rows.Scan(
			&b.ID,
			&b.AuctionID,
			&b.BidderID,
			&b.Amount,
			&b.PlacedAt,
			&b.IsWinning,
		)
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bids, nil
}
