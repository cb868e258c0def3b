// Package notify delivers auction outcome events to downstream systems.
// Delivery is fan-out over registered senders and strictly fire-and-forget:
// a slow or failing downstream never blocks the expiry scheduler.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

const sendTimeout = 10 * time.Second

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers one outcome event.
	Send(ctx context.Context, ev domain.OutcomeEvent) error
	// Name returns a human-readable identifier for the sender (e.g. "webhook").
	Name() string
}

// OutcomeNotifier dispatches outcome events to one or more Senders. It
// implements domain.Notifier.
type OutcomeNotifier struct {
	senders []Sender
	logger  *zap.Logger
}

// NewOutcomeNotifier creates a notifier that delivers to the given senders.
func NewOutcomeNotifier(senders []Sender, logger *zap.Logger) *OutcomeNotifier {
	return &OutcomeNotifier{senders: senders, logger: logger}
}

// AuctionOutcome hands the event to every sender on a detached goroutine.
// Individual sender failures are logged, never propagated; one failing
// sender does not prevent delivery to the remaining ones.
func (n *OutcomeNotifier) AuctionOutcome(_ context.Context, ev domain.OutcomeEvent) {
	if len(n.senders) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		for _, s := range n.senders {
			if err := s.Send(ctx, ev); err != nil {
				n.logger.Error("outcome sender failed",
					zap.String("sender", s.Name()),
					zap.String("auctionID", ev.AuctionID.String()),
					zap.Error(err),
				)
				continue
			}
			n.logger.Debug("outcome notification sent",
				zap.String("sender", s.Name()),
				zap.String("auctionID", ev.AuctionID.String()),
			)
		}
	}()
}

var _ domain.Notifier = (*OutcomeNotifier)(nil)
