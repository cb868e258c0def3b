package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

// LogSender writes outcome events to the application log. Useful in
// development and as a fallback when no webhook is configured.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the event at info level.
func (s *LogSender) Send(_ context.Context, ev domain.OutcomeEvent) error {
	fields := []zap.Field{
		zap.String("auctionID", ev.AuctionID.String()),
		zap.String("sellerID", ev.SellerID.String()),
		zap.String("outcome", string(ev.Outcome)),
		zap.Time("closedAt", ev.ClosedAt),
	}
	if ev.WinnerID != nil {
		fields = append(fields, zap.String("winnerID", ev.WinnerID.String()))
	}
	if ev.FinalPrice != nil {
		fields = append(fields, zap.Int64("finalPrice", *ev.FinalPrice))
	}
	s.logger.Info("auction outcome", fields...)
	return nil
}

// Name returns the sender identifier.
func (s *LogSender) Name() string {
	return "log"
}
