package websocket

import (
	"context"
	"encoding/json"

	fiberws "github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hammerline/bidengine/internal/auction/application"
	"github.com/hammerline/bidengine/internal/auction/domain"
	"github.com/hammerline/bidengine/internal/shared/logger"
	"github.com/hammerline/bidengine/internal/shared/websocket"
)

var log = logger.GetLogger()

// AuctionWSHandler handles inbound ws messages for the auction bounded
// context. Each connection gets one read pump and one write pump; bid
// acknowledgments travel through the room broadcast, rejections go back to
// the sender alone.
type AuctionWSHandler struct {
	service   application.AuctionService
	registry  *websocket.Registry
	queueSize int
}

// NewAuctionWSHandler creates a new instance of AuctionWSHandler
func NewAuctionWSHandler(service application.AuctionService, registry *websocket.Registry, queueSize int) *AuctionWSHandler {
	return &AuctionWSHandler{
		service:   service,
		registry:  registry,
		queueSize: queueSize,
	}
}

// HandleConnection owns an accepted socket for its whole lifetime. The
// connection auto-joins the auction from the upgrade path and immediately
// receives a snapshot, then frames are processed until either side closes.
func (h *AuctionWSHandler) HandleConnection(ctx context.Context, conn *fiberws.Conn, auctionID uuid.UUID) {
	client := websocket.NewClient(uuid.NewString(), conn, h.registry, h.queueSize)
	defer client.Close()

	h.registry.Join(auctionID.String(), client)
	h.sendSnapshot(ctx, client, auctionID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go client.WritePump(ctx)

	client.ReadPump(ctx, h.processMessage)
}

// processMessage dispatch the message by its type
func (h *AuctionWSHandler) processMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		h.sendError(client, "invalid_message", "invalid message format")
		return
	}

	switch baseMsg.Type {
	case MessageTypeClientBid:
		h.handleClientBid(ctx, client, data)
	case MessageTypeClientJoin:
		h.handleClientJoin(ctx, client, data)
	case MessageTypeClientLeave:
		h.handleClientLeave(client, data)
	case MessageTypeClientResync:
		h.handleClientResync(ctx, client, data)
	default:
		h.sendError(client, "unknown_type", "unknown message type")
	}
}

func (h *AuctionWSHandler) handleClientBid(ctx context.Context, client *websocket.Client, data []byte) {
	var msg ClientBidMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(client, "invalid_message", "invalid bid message format")
		return
	}

	if !client.InRoom(msg.Payload.AuctionID.String()) {
		h.sendError(client, "not_joined", "join the auction before bidding")
		return
	}

	cmd := application.PlaceBidDTO{
		AuctionID:      msg.Payload.AuctionID,
		BidderID:       msg.Payload.BidderID,
		Amount:         msg.Payload.Amount,
		IdempotencyKey: msg.Payload.IdempotencyKey,
	}
	if _, err := h.service.PlaceBid(ctx, cmd); err != nil {
		h.sendError(client, domain.RejectionCode(err), err.Error())
		return
	}
	// the acceptance reaches this client through the room broadcast,
	// already sequenced with everyone else's view
}

func (h *AuctionWSHandler) handleClientJoin(ctx context.Context, client *websocket.Client, data []byte) {
	var msg ClientJoinMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(client, "invalid_message", "invalid join message format")
		return
	}

	h.registry.Join(msg.Payload.AuctionID.String(), client)
	h.sendSnapshot(ctx, client, msg.Payload.AuctionID)
}

func (h *AuctionWSHandler) handleClientLeave(client *websocket.Client, data []byte) {
	var msg ClientLeaveMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(client, "invalid_message", "invalid leave message format")
		return
	}

	h.registry.Leave(msg.Payload.AuctionID.String(), client)
}

func (h *AuctionWSHandler) handleClientResync(ctx context.Context, client *websocket.Client, data []byte) {
	var msg ClientResyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.sendError(client, "invalid_message", "invalid resync message format")
		return
	}

	h.sendSnapshot(ctx, client, msg.Payload.AuctionID)
}

// sendSnapshot pushes the authoritative auction state to one client. Sent
// as a terminal-priority frame so a reconnecting client always gets its
// baseline even under backpressure.
func (h *AuctionWSHandler) sendSnapshot(ctx context.Context, client *websocket.Client, auctionID uuid.UUID) {
	snap, err := h.service.GetSnapshot(ctx, auctionID)
	if err != nil {
		h.sendError(client, domain.RejectionCode(err), "failed to load auction state")
		return
	}

	msg := ServerSnapshotMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerSnapshot},
	}
	msg.Payload.AuctionID = snap.AuctionID
	msg.Payload.Status = snap.Status
	msg.Payload.CurrentBid = snap.CurrentBid
	msg.Payload.CurrentBidderID = snap.CurrentBidderID
	msg.Payload.BidCount = snap.BidCount
	msg.Payload.MinNextBid = snap.MinNextBid
	msg.Payload.BuyNowPrice = snap.BuyNowPrice
	msg.Payload.EndsAt = snap.EndsAt
	msg.Payload.Seq = snap.Seq

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal ServerSnapshotMessage", zap.Error(err))
		return
	}
	client.Send(data, true)
}

// sendError serializes and sends an error msg to a specific client
func (h *AuctionWSHandler) sendError(client *websocket.Client, code, message string) {
	msg := ServerErrorMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerError},
	}
	msg.Payload.Code = code
	msg.Payload.Message = message

	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal ServerErrorMessage", zap.Error(err))
		return
	}
	client.Send(data, false)
}
