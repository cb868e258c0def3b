package websocket

import "sync"

// outItem is one queued outbound frame. Terminal frames (auction closed)
// are never dropped under backpressure.
type outItem struct {
	data     []byte
	terminal bool
}

// outQueue is the bounded per-connection outbound buffer. When a slow
// client fills it, the oldest non-terminal frame is dropped instead of
// blocking the publisher. FIFO order is preserved for whatever survives.
type outQueue struct {
	mu     sync.Mutex
	items  []outItem
	limit  int
	closed bool

	// signal wakes the write pump, capacity 1 so pushes never block
	signal chan struct{}
	done   chan struct{}
}

func newOutQueue(limit int) *outQueue {
	return &outQueue{
		limit:  limit,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// push enqueues a frame. Returns false when the frame was dropped, either
// because the queue is closed or because a non-terminal frame had to give
// way and none could.
func (q *outQueue) push(data []byte, terminal bool) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}

	if len(q.items) >= q.limit && !terminal {
		// drop the oldest non-terminal frame to make room
		dropped := false
		for i, it := range q.items {
			if !it.terminal {
				q.items = append(q.items[:i], q.items[i+1:]...)
				dropped = true
				break
			}
		}
		if !dropped {
			// queue is all terminal frames, the newcomer loses
			q.mu.Unlock()
			return false
		}
	}

	q.items = append(q.items, outItem{data: data, terminal: terminal})
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// pop removes and returns the oldest frame, without blocking. The second
// return is false when the queue is currently empty.
func (q *outQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it.data, true
}

func (q *outQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close marks the queue dead and wakes the write pump one last time.
// Safe to call more than once.
func (q *outQueue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	close(q.done)
}
