package websocket

import (
	"time"

	"github.com/google/uuid"

	"github.com/hammerline/bidengine/internal/auction/domain"
)

// MessageType defines ws type message
type MessageType string

const (
	MessageTypeClientBid    MessageType = "client_bid"    // client msg to place a bid
	MessageTypeClientJoin   MessageType = "client_join"   // client msg to watch another auction
	MessageTypeClientLeave  MessageType = "client_leave"  // client msg to stop watching an auction
	MessageTypeClientResync MessageType = "client_resync" // client msg requesting a fresh snapshot

	MessageTypeServerError    MessageType = "server_error"    // server msg indicating a rejected request
	MessageTypeServerSnapshot MessageType = "server_snapshot" // server msg with full auction state
)

// BaseMessage is base struct for all the WS messages, includes a Type field
// for identify the message type
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// ClientBidMessage is the DTO for a bid submitted over the socket.
type ClientBidMessage struct {
	BaseMessage
	Payload struct {
		AuctionID      uuid.UUID `json:"auction_id"`
		BidderID       uuid.UUID `json:"bidder_id"`
		Amount         int64     `json:"amount"`
		IdempotencyKey string    `json:"idempotency_key,omitempty"`
	} `json:"payload"`
}

// ClientJoinMessage subscribes the connection to an additional auction room.
type ClientJoinMessage struct {
	BaseMessage
	Payload struct {
		AuctionID uuid.UUID `json:"auction_id"`
	} `json:"payload"`
}

// ClientLeaveMessage unsubscribes the connection from an auction room.
type ClientLeaveMessage struct {
	BaseMessage
	Payload struct {
		AuctionID uuid.UUID `json:"auction_id"`
	} `json:"payload"`
}

// ClientResyncMessage asks for a fresh snapshot after a detected sequence
// gap or an overflow drop.
type ClientResyncMessage struct {
	BaseMessage
	Payload struct {
		AuctionID uuid.UUID `json:"auction_id"`
	} `json:"payload"`
}

// ServerErrorMessage reports a rejected request back to the one client that
// sent it. Code is a stable machine-readable rejection reason.
type ServerErrorMessage struct {
	BaseMessage
	Payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"payload"`
}

// ServerSnapshotMessage carries the full authoritative auction state plus
// the last published sequence number, so the client can discard stale deltas.
type ServerSnapshotMessage struct {
	BaseMessage
	Payload struct {
		AuctionID       uuid.UUID            `json:"auction_id"`
		Status          domain.AuctionStatus `json:"status"`
		CurrentBid      *int64               `json:"current_bid,omitempty"`
		CurrentBidderID *uuid.UUID           `json:"current_bidder_id,omitempty"`
		BidCount        int                  `json:"bid_count"`
		MinNextBid      int64                `json:"min_next_bid"`
		BuyNowPrice     *int64               `json:"buy_now_price,omitempty"`
		EndsAt          time.Time            `json:"ends_at"`
		Seq             uint64               `json:"seq"`
	} `json:"payload"`
}
