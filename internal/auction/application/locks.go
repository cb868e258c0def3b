package application

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

// AuctionLocks hands out one serialization token per auction. Bids on
// different auctions run fully in parallel; on the same auction they are
// strictly ordered by arrival here, not by any client-claimed timestamp.
// Entries are refcounted and reaped when the last holder releases.
type AuctionLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	// token acts as a mutex: a successful send holds the lock,
	// a receive releases it
	token chan struct{}
	refs  int
}

// NewAuctionLocks creates an empty lock table.
func NewAuctionLocks() *AuctionLocks {
	return &AuctionLocks{entries: make(map[uuid.UUID]*lockEntry)}
}

// Acquire takes the auction's token, waiting at most wait. On timeout it
// returns ErrLockTimeout so the caller can surface a try-again error; a
// timed-out request must never be read as a definitive rejection.
func (l *AuctionLocks) Acquire(ctx context.Context, auctionID uuid.UUID, wait time.Duration) (func(), error) {
	l.mu.Lock()
	e, ok := l.entries[auctionID]
	if !ok {
		e = &lockEntry{token: make(chan struct{}, 1)}
		l.entries[auctionID] = e
	}
	e.refs++
	l.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case e.token <- struct{}{}:
		return func() {
			<-e.token
			l.release(auctionID, e)
		}, nil
	case <-timer.C:
		l.release(auctionID, e)
		return nil, domain.ErrLockTimeout
	case <-ctx.Done():
		l.release(auctionID, e)
		return nil, ctx.Err()
	}
}

func (l *AuctionLocks) release(auctionID uuid.UUID, e *lockEntry) {
	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.entries, auctionID)
	}
	l.mu.Unlock()
}

// Len reports how many auctions currently have waiters or holders.
func (l *AuctionLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
