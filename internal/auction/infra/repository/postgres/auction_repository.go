package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

const auctionColumns = `id, product_id, seller_id, starting_price, bid_increment,
       reserve_price, buy_now_price, current_bid, current_bidder_id,
       bid_count, status, starts_at, ends_at, created_at, updated_at`

// AuctionRepository implements domain.AuctionRepository on PostgreSQL.
type AuctionRepository struct {
	pool *pgxpool.Pool
}

// NewAuctionRepository creates a new instance of AuctionRepository
func NewAuctionRepository(pool *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{pool: pool}
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	a := &domain.Auction{}
	err := row.Scan(
		&a.ID,
		&a.ProductID,
		&a.SellerID,
		&a.StartingPrice,
		&a.BidIncrement,
		&a.ReservePrice,
		&a.BuyNowPrice,
		&a.CurrentBid,
		&a.CurrentBidderID,
		&a.BidCount,
		&a.Status,
		&a.StartsAt,
		&a.EndsAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}
	return a, nil
}

// GetByID loads an auction without locking, for snapshot reads.
func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM auctions
        WHERE id = $1
    `
	return scanAuction(r.pool.QueryRow(ctx, query, id))
}

// GetForUpdate loads the auction row with a row lock inside the caller's
// transaction, serializing bid application against a concurrent close.
func (r *AuctionRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Auction, error) {
	query := `
        SELECT ` + auctionColumns + `
        FROM auctions
        WHERE id = $1
        FOR UPDATE
    `
	return scanAuction(tx.QueryRow(ctx, query, id))
}

// Create inserts a new auction row.
func (r *AuctionRepository) Create(ctx context.Context, a *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, product_id, seller_id, starting_price, bid_increment,
            reserve_price, buy_now_price, current_bid, current_bidder_id,
            bid_count, status, starts_at, ends_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `
	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.ProductID,
		a.SellerID,
		a.StartingPrice,
		a.BidIncrement,
		a.ReservePrice,
		a.BuyNowPrice,
		a.CurrentBid,
		a.CurrentBidderID,
		a.BidCount,
		a.Status,
		a.StartsAt,
		a.EndsAt,
	)
	return err
}

// Save writes the mutable auction state inside the caller's transaction.
// Identity and schedule columns never change after creation.
func (r *AuctionRepository) Save(ctx context.Context, tx pgx.Tx, a *domain.Auction) error {
	query := `
        UPDATE auctions
        SET current_bid = $2,
            current_bidder_id = $3,
            bid_count = $4,
            status = $5,
            updated_at = NOW()
        WHERE id = $1
    `
	_, err := tx.Exec(ctx, query,
		a.ID,
		a.CurrentBid,
		a.CurrentBidderID,
		a.BidCount,
		a.Status,
	)
	return err
}

// ClaimForClosing performs the active -> closing compare-and-swap. The
// rows-affected count tells whether this caller won the claim.
func (r *AuctionRepository) ClaimForClosing(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
        UPDATE auctions
        SET status = $3, updated_at = NOW()
        WHERE id = $1 AND status = $2
    `
	tag, err := r.pool.Exec(ctx, query, id, domain.StatusActive, domain.StatusClosing)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ActivateDue flips every scheduled auction whose start time has passed.
// An auction already past its end time is activated too, so the same
// scheduler pass can claim and close it instead of leaving it scheduled
// forever.
func (r *AuctionRepository) ActivateDue(ctx context.Context, now time.Time) (int64, error) {
	query := `
        UPDATE auctions
        SET status = $3, updated_at = NOW()
        WHERE status = $2 AND starts_at <= $1
    `
	tag, err := r.pool.Exec(ctx, query, now, domain.StatusScheduled, domain.StatusActive)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// FindDue returns active auctions whose end time has passed.
func (r *AuctionRepository) FindDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	query := `
        SELECT id
        FROM auctions
        WHERE status = $2 AND ends_at <= $1
    `
	return r.queryIDs(ctx, query, now, domain.StatusActive)
}

// FindStuckClosing returns auctions sitting in closing since before the
// cutoff, candidates for a finalize retry.
func (r *AuctionRepository) FindStuckClosing(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	query := `
        SELECT id
        FROM auctions
        WHERE status = $2 AND updated_at <= $1
    `
	return r.queryIDs(ctx, query, cutoff, domain.StatusClosing)
}

func (r *AuctionRepository) queryIDs(ctx context.Context, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
