package application_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hammerline/bidengine/internal/auction/application"
	"github.com/hammerline/bidengine/internal/auction/domain"
	"github.com/hammerline/bidengine/internal/shared/clock"
)

type schedulerEnv struct {
	auctions *fakeAuctionRepo
	bids     *fakeBidRepo
	pub      *fakePublisher
	notifier *fakeNotifier
	clk      *clock.Mock
	locks    *application.AuctionLocks
	sched    *application.ExpiryScheduler
}

func newSchedulerEnv(t *testing.T) *schedulerEnv {
	t.Helper()
	auctions := newFakeAuctionRepo()
	bids := &fakeBidRepo{}
	env := &schedulerEnv{
		auctions: auctions,
		bids:     bids,
		pub:      newFakePublisher(),
		notifier: &fakeNotifier{},
		clk:      &clock.Mock{T: baseTime},
		locks:    application.NewAuctionLocks(),
	}
	env.sched = application.NewExpiryScheduler(
		auctions, bids, &fakeTxManager{auctions: auctions, bids: bids},
		env.locks, env.pub, env.notifier, env.clk, zap.NewNop(),
		100*time.Millisecond, 30*time.Second, time.Second,
	)
	return env
}

// seed stores an active auction ending at baseTime+1h with the given
// reserve, and optionally applies bids through the domain so the ledger
// and the auction row agree.
func (e *schedulerEnv) seed(t *testing.T, reserve *int64, bidAmounts ...int64) *domain.Auction {
	t.Helper()
	a, err := domain.NewAuction(uuid.New(), uuid.New(), sellerID,
		5000, 500, reserve, nil,
		baseTime.Add(-time.Hour), baseTime.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, a.Activate(baseTime))

	for _, amount := range bidAmounts {
		bid, err := a.ApplyBid(bidderA, amount, baseTime)
		require.NoError(t, err)
		require.NoError(t, e.bids.MarkSuperseded(context.Background(), nil, a.ID))
		require.NoError(t, e.bids.Append(context.Background(), nil, bid))
	}
	require.NoError(t, e.auctions.Create(context.Background(), a))
	return a
}

func (e *schedulerEnv) closedEvents(t *testing.T, auctionID uuid.UUID) []application.ClosedEvent {
	t.Helper()
	var out []application.ClosedEvent
	for _, pe := range e.pub.published() {
		if pe.auctionID != auctionID.String() {
			continue
		}
		var base struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(pe.data, &base))
		if base.Type != application.EventTypeClosed {
			continue
		}
		assert.True(t, pe.terminal, "closed events must be terminal")
		var ev application.ClosedEvent
		require.NoError(t, json.Unmarshal(pe.data, &ev))
		out = append(out, ev)
	}
	return out
}

func TestSchedulerOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		reserve     *int64
		bids        []int64
		wantStatus  domain.AuctionStatus
		wantOutcome domain.Outcome
		wantWinner  bool
		wantAmount  int64
	}{
		{
			name:        "no bids closes unsold",
			reserve:     i64(10000),
			wantStatus:  domain.StatusUnsold,
			wantOutcome: domain.OutcomeUnsold,
		},
		{
			name:        "below reserve closes reserve_not_met with frozen bid",
			reserve:     i64(10000),
			bids:        []int64{7000},
			wantStatus:  domain.StatusReserveNotMet,
			wantOutcome: domain.OutcomeReserveNotMet,
			wantWinner:  true,
			wantAmount:  7000,
		},
		{
			name:        "meeting reserve closes sold",
			reserve:     i64(10000),
			bids:        []int64{7000, 11000},
			wantStatus:  domain.StatusSold,
			wantOutcome: domain.OutcomeSold,
			wantWinner:  true,
			wantAmount:  11000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newSchedulerEnv(t)
			a := env.seed(t, tt.reserve, tt.bids...)

			env.clk.Advance(61 * time.Minute)
			env.sched.Tick(context.Background())

			stored := env.auctions.get(a.ID)
			assert.Equal(t, tt.wantStatus, stored.Status)

			closed := env.closedEvents(t, a.ID)
			require.Len(t, closed, 1)
			assert.Equal(t, tt.wantOutcome, closed[0].Outcome)

			notes := env.notifier.received()
			require.Len(t, notes, 1)
			assert.Equal(t, tt.wantOutcome, notes[0].Outcome)

			if tt.wantWinner {
				require.NotNil(t, closed[0].WinningBid)
				assert.Equal(t, tt.wantAmount, closed[0].WinningBid.Amount)
				assert.Equal(t, bidderA.String(), closed[0].WinningBid.BidderID)
				require.NotNil(t, notes[0].WinnerID)
				assert.Equal(t, bidderA, *notes[0].WinnerID)
				assert.Equal(t, 1, env.bids.winningCount(a.ID))
			} else {
				assert.Nil(t, closed[0].WinningBid)
				assert.Nil(t, notes[0].WinnerID)
			}
		})
	}
}

func TestSchedulerClaimExactlyOnce(t *testing.T) {
	env := newSchedulerEnv(t)
	a := env.seed(t, nil, 6000)
	env.clk.Advance(61 * time.Minute)

	// N concurrent claim attempts on the same due auction: exactly one
	// may win the active -> closing transition
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = env.sched.CloseAuction(context.Background(), a.ID, false)
		}()
	}
	wg.Wait()

	assert.Equal(t, domain.StatusSold, env.auctions.get(a.ID).Status)
	assert.Len(t, env.closedEvents(t, a.ID), 1)
	assert.Len(t, env.notifier.received(), 1)
}

func TestSchedulerRepeatedTicksDoNotReclose(t *testing.T) {
	env := newSchedulerEnv(t)
	a := env.seed(t, nil, 6000)

	env.clk.Advance(61 * time.Minute)
	env.sched.Tick(context.Background())
	env.sched.Tick(context.Background())
	env.sched.Tick(context.Background())

	assert.Len(t, env.closedEvents(t, a.ID), 1)
	assert.Len(t, env.notifier.received(), 1)
}

func TestSchedulerRetriesStuckClosing(t *testing.T) {
	env := newSchedulerEnv(t)
	a := env.seed(t, nil, 6000)
	env.clk.Advance(61 * time.Minute)

	// simulate a crash after the claim: the auction sits in closing
	claimed, err := env.auctions.ClaimForClosing(context.Background(), a.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	stuck := env.auctions.get(a.ID)
	stuck.UpdatedAt = env.clk.Now()
	env.auctions.put(stuck)

	// inside the grace period nothing happens
	env.sched.Tick(context.Background())
	assert.Equal(t, domain.StatusClosing, env.auctions.get(a.ID).Status)

	// past the grace period the finalize is retried
	env.clk.Advance(time.Minute)
	env.sched.Tick(context.Background())
	assert.Equal(t, domain.StatusSold, env.auctions.get(a.ID).Status)
	assert.Len(t, env.closedEvents(t, a.ID), 1)
}

func TestSchedulerActivatesScheduledAuctions(t *testing.T) {
	env := newSchedulerEnv(t)
	a, err := domain.NewAuction(uuid.New(), uuid.New(), sellerID,
		5000, 500, nil, nil,
		baseTime.Add(30*time.Minute), baseTime.Add(2*time.Hour))
	require.NoError(t, err)
	require.NoError(t, env.auctions.Create(context.Background(), a))

	env.sched.Tick(context.Background())
	assert.Equal(t, domain.StatusScheduled, env.auctions.get(a.ID).Status)

	env.clk.Advance(31 * time.Minute)
	env.sched.Tick(context.Background())
	assert.Equal(t, domain.StatusActive, env.auctions.get(a.ID).Status)
}

func TestSchedulerSweepsExpiredScheduledAuctions(t *testing.T) {
	env := newSchedulerEnv(t)

	// never activated: both starts_at and ends_at are already behind the
	// clock when the scheduler first sees it. One pass must still walk it
	// to a terminal state instead of leaving it scheduled forever.
	a, err := domain.NewAuction(uuid.New(), uuid.New(), sellerID,
		5000, 500, nil, nil,
		baseTime.Add(30*time.Minute), baseTime.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, env.auctions.Create(context.Background(), a))

	env.clk.Advance(2 * time.Hour)
	env.sched.Tick(context.Background())

	assert.Equal(t, domain.StatusUnsold, env.auctions.get(a.ID).Status)
	closed := env.closedEvents(t, a.ID)
	require.Len(t, closed, 1)
	assert.Equal(t, domain.OutcomeUnsold, closed[0].Outcome)
}

func TestSchedulerDoesNotTouchFutureAuctions(t *testing.T) {
	env := newSchedulerEnv(t)
	a := env.seed(t, nil)

	env.sched.Tick(context.Background())
	assert.Equal(t, domain.StatusActive, env.auctions.get(a.ID).Status)
	assert.Empty(t, env.pub.published())
}
