package websocket

import (
	"sync"

	"go.uber.org/zap"
)

// room holds the member set for one auction. Each room carries its own
// lock so joins on different auctions never contend with each other. Once
// dead is set the room has been reaped from the registry and must not
// accept new members.
type room struct {
	mu      sync.RWMutex
	members map[*Client]struct{}
	dead    bool
}

// Registry tracks which connections are watching which auctions. A
// connection may be a member of multiple rooms at once. Removing the last
// member does not destroy the room's auction, only the member set.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room

	log *zap.Logger
}

// NewRegistry creates an empty room registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		rooms: make(map[string]*room),
		log:   log,
	}
}

func (r *Registry) getOrCreate(auctionID string) *room {
	r.mu.RLock()
	rm, ok := r.rooms[auctionID]
	r.mu.RUnlock()
	if ok {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok = r.rooms[auctionID]; ok {
		return rm
	}
	rm = &room{members: make(map[*Client]struct{})}
	r.rooms[auctionID] = rm
	return rm
}

// Join registers a connection under an auction room. A room reaped between
// the lookup and the insert is retried against a fresh one, so a joiner
// racing the last leaver never lands in a detached member set.
func (r *Registry) Join(auctionID string, c *Client) {
	for {
		rm := r.getOrCreate(auctionID)
		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			continue
		}
		rm.members[c] = struct{}{}
		rm.mu.Unlock()
		break
	}

	c.trackRoom(auctionID)

	r.log.Debug("client joined room",
		zap.String("clientID", c.ID),
		zap.String("auctionID", auctionID),
	)
}

// Leave removes a connection from an auction room.
func (r *Registry) Leave(auctionID string, c *Client) {
	r.mu.RLock()
	rm, ok := r.rooms[auctionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	rm.mu.Lock()
	delete(rm.members, c)
	empty := len(rm.members) == 0
	rm.mu.Unlock()

	c.untrackRoom(auctionID)

	if empty {
		// reap the empty member set, a later join recreates it. The
		// room is marked dead under its write lock so a concurrent
		// Join either inserted before this check or retries a fresh
		// room after it.
		r.mu.Lock()
		if rm2, ok := r.rooms[auctionID]; ok {
			rm2.mu.Lock()
			if len(rm2.members) == 0 {
				rm2.dead = true
				delete(r.rooms, auctionID)
			}
			rm2.mu.Unlock()
		}
		r.mu.Unlock()
	}

	r.log.Debug("client left room",
		zap.String("clientID", c.ID),
		zap.String("auctionID", auctionID),
	)
}

// Members returns a point-in-time copy of the room membership, safe to
// iterate while concurrent joins and leaves occur.
func (r *Registry) Members(auctionID string) []*Client {
	r.mu.RLock()
	rm, ok := r.rooms[auctionID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	rm.mu.RLock()
	defer rm.mu.RUnlock()
	out := make([]*Client, 0, len(rm.members))
	for c := range rm.members {
		out = append(out, c)
	}
	return out
}

// RemoveAll detaches a connection from every room it joined. Called from
// session teardown so no stale reference survives the connection.
func (r *Registry) RemoveAll(c *Client) {
	for _, auctionID := range c.joinedRooms() {
		r.Leave(auctionID, c)
	}
}
