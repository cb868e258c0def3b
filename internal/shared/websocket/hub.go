package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// Hub fans out state-change frames to every member of an auction room and
// owns the per-auction sequence counters. Publishers serialize per auction
// (the arbiter lock), so sequence order equals publish order and each
// connection observes events for one auction in FIFO order.
type Hub struct {
	registry *Registry

	mu   sync.Mutex
	seqs map[string]uint64

	log *zap.Logger
}

// NewHub creates a hub over the given room registry.
func NewHub(registry *Registry, log *zap.Logger) *Hub {
	return &Hub{
		registry: registry,
		seqs:     make(map[string]uint64),
		log:      log,
	}
}

// NextSeq advances and returns the auction's sequence number. Callers must
// hold the auction's serialization token so numbering matches publish order.
func (h *Hub) NextSeq(auctionID string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seqs[auctionID]++
	return h.seqs[auctionID]
}

// CurrentSeq returns the last sequence number published for the auction,
// zero if nothing was published yet. Snapshots carry it so reconnecting
// clients can detect gaps.
func (h *Hub) CurrentSeq(auctionID string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.seqs[auctionID]
}

// Publish enqueues a frame to every current member of the room. Terminal
// frames are kept under backpressure; non-terminal frames may be dropped
// per slow connection, never for everyone.
func (h *Hub) Publish(auctionID string, data []byte, terminal bool) {
	members := h.registry.Members(auctionID)
	for _, c := range members {
		c.Send(data, terminal)
	}
	h.log.Debug("event published",
		zap.String("auctionID", auctionID),
		zap.Int("receivers", len(members)),
		zap.Bool("terminal", terminal),
	)
}

// Forget drops the sequence counter of a finished auction.
func (h *Hub) Forget(auctionID string) {
	h.mu.Lock()
	delete(h.seqs, auctionID)
	h.mu.Unlock()
}
