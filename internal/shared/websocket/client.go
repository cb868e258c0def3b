package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/hammerline/bidengine/internal/shared/logger"
)

var log = logger.GetLogger()

// Constants for WebSocket configuration (adjust as needed)
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

// MessageHandler processes one inbound frame from a client. Handlers run
// on the client's read goroutine, so anything slow should fan out.
type MessageHandler func(ctx context.Context, c *Client, data []byte)

// Client is a single live connection session. It owns the socket, the
// bounded outbound queue and the set of rooms it joined. Teardown runs
// exactly once regardless of which pump dies first.
type Client struct {
	ID       string
	conn     *websocket.Conn
	registry *Registry
	queue    *outQueue

	roomsMu sync.Mutex
	rooms   map[string]struct{}

	closeOnce sync.Once
}

// NewClient wraps an accepted websocket connection into a session.
func NewClient(id string, conn *websocket.Conn, registry *Registry, queueSize int) *Client {
	return &Client{
		ID:       id,
		conn:     conn,
		registry: registry,
		queue:    newOutQueue(queueSize),
		rooms:    make(map[string]struct{}),
	}
}

// Send enqueues an outbound frame. Terminal frames survive backpressure,
// non-terminal frames may be dropped when the client is too slow.
func (c *Client) Send(data []byte, terminal bool) {
	if !c.queue.push(data, terminal) && terminal {
		log.Warn("terminal frame dropped on closed session",
			zap.String("clientID", c.ID),
		)
	}
}

// Close tears the session down: every room membership is released, the
// queue is drained dead and the socket closed. Exactly once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.registry.RemoveAll(c)
		c.queue.close()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		log.Info("client session closed", zap.String("clientID", c.ID))
	})
}

func (c *Client) trackRoom(auctionID string) {
	c.roomsMu.Lock()
	c.rooms[auctionID] = struct{}{}
	c.roomsMu.Unlock()
}

func (c *Client) untrackRoom(auctionID string) {
	c.roomsMu.Lock()
	delete(c.rooms, auctionID)
	c.roomsMu.Unlock()
}

func (c *Client) joinedRooms() []string {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	out := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		out = append(out, id)
	}
	return out
}

// InRoom reports whether the client currently watches the auction.
func (c *Client) InRoom(auctionID string) bool {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	_, ok := c.rooms[auctionID]
	return ok
}

// ReadPump reads frames from the peer and hands them to the handler.
// Runs on its own goroutine per connection; exiting closes the session.
func (c *Client) ReadPump(ctx context.Context, handle MessageHandler) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("websocket read error",
					zap.String("clientID", c.ID),
					zap.Error(err),
				)
			} else {
				log.Info("websocket closed by peer",
					zap.String("clientID", c.ID),
					zap.Error(err),
				)
			}
			return
		}

		handle(ctx, c, message)
	}
}

// WritePump drains the outbound queue to the socket and keeps the peer
// alive with periodic pings. The application ensures at most one writer
// per connection by running exactly one WritePump goroutine.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return

		case <-c.queue.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-c.queue.signal:
			for {
				data, ok := c.queue.pop()
				if !ok {
					break
				}
				_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Error("websocket write error",
						zap.String("clientID", c.ID),
						zap.Error(err),
					)
					return
				}
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Info("ping failed, dropping client",
					zap.String("clientID", c.ID),
					zap.Error(err),
				)
				return
			}
		}
	}
}
