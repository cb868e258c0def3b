package application_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

// --- fake repositories and collaborators ---

func cloneAuction(a *domain.Auction) *domain.Auction {
	cp := *a
	if a.ReservePrice != nil {
		v := *a.ReservePrice
		cp.ReservePrice = &v
	}
	if a.BuyNowPrice != nil {
		v := *a.BuyNowPrice
		cp.BuyNowPrice = &v
	}
	if a.CurrentBid != nil {
		v := *a.CurrentBid
		cp.CurrentBid = &v
	}
	if a.CurrentBidderID != nil {
		v := *a.CurrentBidderID
		cp.CurrentBidderID = &v
	}
	return &cp
}

type fakeAuctionRepo struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*domain.Auction
	saveErr  error
}

func newFakeAuctionRepo() *fakeAuctionRepo {
	return &fakeAuctionRepo{auctions: make(map[uuid.UUID]*domain.Auction)}
}

func (r *fakeAuctionRepo) put(a *domain.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions[a.ID] = cloneAuction(a)
}

func (r *fakeAuctionRepo) get(id uuid.UUID) *domain.Auction {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.auctions[id]; ok {
		return cloneAuction(a)
	}
	return nil
}

func (r *fakeAuctionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	if a := r.get(id); a != nil {
		return a, nil
	}
	return nil, domain.ErrAuctionNotFound
}

func (r *fakeAuctionRepo) GetForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.Auction, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeAuctionRepo) Create(_ context.Context, a *domain.Auction) error {
	r.put(a)
	return nil
}

func (r *fakeAuctionRepo) Save(_ context.Context, _ pgx.Tx, a *domain.Auction) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.put(a)
	return nil
}

func (r *fakeAuctionRepo) ClaimForClosing(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok || a.Status != domain.StatusActive {
		return false, nil
	}
	a.Status = domain.StatusClosing
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *fakeAuctionRepo) ActivateDue(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.auctions {
		if a.Status == domain.StatusScheduled && !now.Before(a.StartsAt) {
			a.Status = domain.StatusActive
			n++
		}
	}
	return n, nil
}

func (r *fakeAuctionRepo) FindDue(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for id, a := range r.auctions {
		if a.Status == domain.StatusActive && !a.EndsAt.After(now) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) FindStuckClosing(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uuid.UUID
	for id, a := range r.auctions {
		if a.Status == domain.StatusClosing && !a.UpdatedAt.After(cutoff) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *fakeAuctionRepo) snapshot() map[uuid.UUID]*domain.Auction {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make(map[uuid.UUID]*domain.Auction, len(r.auctions))
	for id, a := range r.auctions {
		cp[id] = cloneAuction(a)
	}
	return cp
}

func (r *fakeAuctionRepo) restore(snap map[uuid.UUID]*domain.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auctions = snap
}

type fakeBidRepo struct {
	mu        sync.Mutex
	bids      []*domain.Bid
	appendErr error
}

func (r *fakeBidRepo) Append(_ context.Context, _ pgx.Tx, b *domain.Bid) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *b
	r.bids = append(r.bids, &cp)
	return nil
}

func (r *fakeBidRepo) MarkSuperseded(_ context.Context, _ pgx.Tx, auctionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bids {
		if b.AuctionID == auctionID {
			b.IsWinning = false
		}
	}
	return nil
}

func (r *fakeBidRepo) GetWinningBid(_ context.Context, auctionID uuid.UUID) (*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bids {
		if b.AuctionID == auctionID && b.IsWinning {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeBidRepo) GetBidsByAuction(_ context.Context, auctionID uuid.UUID) ([]*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Bid
	for _, b := range r.bids {
		if b.AuctionID == auctionID {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeBidRepo) winningCount(auctionID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.bids {
		if b.AuctionID == auctionID && b.IsWinning {
			n++
		}
	}
	return n
}

func (r *fakeBidRepo) snapshot() []*domain.Bid {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]*domain.Bid, len(r.bids))
	for i, b := range r.bids {
		bc := *b
		cp[i] = &bc
	}
	return cp
}

func (r *fakeBidRepo) restore(snap []*domain.Bid) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids = snap
}

// fakeTxManager mimics transactional semantics: on error the repositories
// are restored to their pre-transaction state, so partial writes never
// become visible.
type fakeTxManager struct {
	mu       sync.Mutex
	auctions *fakeAuctionRepo
	bids     *fakeBidRepo
}

func (m *fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	aSnap := m.auctions.snapshot()
	bSnap := m.bids.snapshot()
	if err := fn(ctx, nil); err != nil {
		m.auctions.restore(aSnap)
		m.bids.restore(bSnap)
		return err
	}
	return nil
}

type publishedEvent struct {
	auctionID string
	data      []byte
	terminal  bool
}

type fakePublisher struct {
	mu     sync.Mutex
	seqs   map[string]uint64
	events []publishedEvent

	// invoked at the top of CurrentSeq, before the lock, so a test can
	// slip a concurrent bid between a seq read and a state read
	currentSeqHook func()
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{seqs: make(map[string]uint64)}
}

func (p *fakePublisher) NextSeq(auctionID string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seqs[auctionID]++
	return p.seqs[auctionID]
}

func (p *fakePublisher) CurrentSeq(auctionID string) uint64 {
	if p.currentSeqHook != nil {
		p.currentSeqHook()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seqs[auctionID]
}

func (p *fakePublisher) Publish(auctionID string, data []byte, terminal bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{auctionID: auctionID, data: data, terminal: terminal})
}

func (p *fakePublisher) Forget(auctionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.seqs, auctionID)
}

func (p *fakePublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []domain.OutcomeEvent
}

func (n *fakeNotifier) AuctionOutcome(_ context.Context, ev domain.OutcomeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *fakeNotifier) received() []domain.OutcomeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.OutcomeEvent(nil), n.events...)
}

type fakeIdemCache struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeIdemCache() *fakeIdemCache {
	return &fakeIdemCache{seen: make(map[string]bool)}
}

func (c *fakeIdemCache) Register(_ context.Context, key string, _ time.Duration) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen[key] {
		return false, nil
	}
	c.seen[key] = true
	return true, nil
}

func (c *fakeIdemCache) Unregister(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, key)
	return nil
}
