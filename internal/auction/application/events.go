package application

import (
	"encoding/json"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

// EventPublisher is the broadcast hub surface the use cases need. NextSeq
// and Publish are always called while holding the auction's serialization
// token, so sequence numbers match delivery order per connection.
type EventPublisher interface {
	NextSeq(auctionID string) uint64
	CurrentSeq(auctionID string) uint64
	Publish(auctionID string, data []byte, terminal bool)
	Forget(auctionID string)
}

// Event type names on the wire.
const (
	EventTypeNewBid  = "new_bid"
	EventTypeClosing = "closing"
	EventTypeClosed  = "closed"
)

// NewBidEvent announces an accepted bid to every room member.
type NewBidEvent struct {
	Type       string `json:"type"`
	AuctionID  string `json:"auction_id"`
	Seq        uint64 `json:"seq"`
	Amount     int64  `json:"amount"`
	BidderID   string `json:"bidder_id"`
	BidCount   int    `json:"bid_count"`
	MinNextBid int64  `json:"min_next_bid"`
}

// ClosingEvent announces the auction was claimed for closing; no further
// bids will be accepted.
type ClosingEvent struct {
	Type      string `json:"type"`
	AuctionID string `json:"auction_id"`
	Seq       uint64 `json:"seq"`
}

// WinningBidPayload is the frozen winning bid carried by a closed event.
type WinningBidPayload struct {
	BidID    string `json:"bid_id"`
	BidderID string `json:"bidder_id"`
	Amount   int64  `json:"amount"`
}

// ClosedEvent is the terminal broadcast. It is never dropped by the hub's
// backpressure handling.
type ClosedEvent struct {
	Type       string             `json:"type"`
	AuctionID  string             `json:"auction_id"`
	Seq        uint64             `json:"seq"`
	Outcome    domain.Outcome     `json:"outcome"`
	WinningBid *WinningBidPayload `json:"winning_bid,omitempty"`
}

func publishNewBid(pub EventPublisher, a *domain.Auction, bid *domain.Bid) {
	id := a.ID.String()
	ev := NewBidEvent{
		Type:       EventTypeNewBid,
		AuctionID:  id,
		Seq:        pub.NextSeq(id),
		Amount:     bid.Amount,
		BidderID:   bid.BidderID.String(),
		BidCount:   a.BidCount,
		MinNextBid: a.MinNextBid(),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	pub.Publish(id, data, false)
}

func publishClosing(pub EventPublisher, a *domain.Auction) {
	id := a.ID.String()
	ev := ClosingEvent{
		Type:      EventTypeClosing,
		AuctionID: id,
		Seq:       pub.NextSeq(id),
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	pub.Publish(id, data, false)
}

func publishClosed(pub EventPublisher, a *domain.Auction, outcome domain.Outcome, winning *domain.Bid) {
	id := a.ID.String()
	ev := ClosedEvent{
		Type:      EventTypeClosed,
		AuctionID: id,
		Seq:       pub.NextSeq(id),
		Outcome:   outcome,
	}
	if outcome == domain.OutcomeSold || outcome == domain.OutcomeReserveNotMet {
		if winning != nil {
			ev.WinningBid = &WinningBidPayload{
				BidID:    winning.ID.String(),
				BidderID: winning.BidderID.String(),
				Amount:   winning.Amount,
			}
		}
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	pub.Publish(id, data, true)
}
