package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hammerline/bidengine/internal/auction/application"
	"github.com/hammerline/bidengine/internal/auction/domain"
)

type snapshotEnv struct {
	auctions *fakeAuctionRepo
	pub      *fakePublisher
	uc       *application.GetSnapshotUseCase
}

func newSnapshotEnv(t *testing.T) *snapshotEnv {
	t.Helper()
	auctions := newFakeAuctionRepo()
	pub := newFakePublisher()
	return &snapshotEnv{
		auctions: auctions,
		pub:      pub,
		uc:       application.NewGetSnapshotUseCase(auctions, pub),
	}
}

func (e *snapshotEnv) seedActive(t *testing.T) *domain.Auction {
	t.Helper()
	a, err := domain.NewAuction(uuid.New(), uuid.New(), sellerID,
		5000, 500, i64(10000), nil,
		baseTime.Add(-time.Hour), baseTime.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, a.Activate(baseTime))
	require.NoError(t, e.auctions.Create(context.Background(), a))
	return a
}

func TestSnapshotReflectsCurrentState(t *testing.T) {
	env := newSnapshotEnv(t)
	a := env.seedActive(t)

	_, err := a.ApplyBid(bidderA, 7000, baseTime)
	require.NoError(t, err)
	env.auctions.put(a)
	env.pub.NextSeq(a.ID.String())

	snap, err := env.uc.Execute(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, snap.Status)
	assert.Equal(t, int64(7000), *snap.CurrentBid)
	assert.Equal(t, int64(7500), snap.MinNextBid)
	assert.Equal(t, 1, snap.BidCount)
	assert.Equal(t, uint64(1), snap.Seq)
}

func TestSnapshotUnknownAuction(t *testing.T) {
	env := newSnapshotEnv(t)

	_, err := env.uc.Execute(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrAuctionNotFound)
}

func TestSnapshotSeqNeverAheadOfState(t *testing.T) {
	env := newSnapshotEnv(t)
	a := env.seedActive(t)

	// a bid commits while the snapshot is assembled: the snapshot may
	// carry the bid with an older seq (client sees one duplicate delta)
	// but must never carry pre-bid state stamped with the bid's seq,
	// which would make the client drop that bid as stale
	env.pub.currentSeqHook = func() {
		stored := env.auctions.get(a.ID)
		_, err := stored.ApplyBid(bidderA, 7000, baseTime)
		require.NoError(t, err)
		env.auctions.put(stored)
		env.pub.NextSeq(stored.ID.String())
	}

	snap, err := env.uc.Execute(context.Background(), a.ID)
	require.NoError(t, err)

	require.NotNil(t, snap.CurrentBid)
	assert.Equal(t, int64(7000), *snap.CurrentBid)
	assert.Equal(t, 1, snap.BidCount)
}
