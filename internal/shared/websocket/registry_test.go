package websocket

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(id string) *Client {
	return NewClient(id, nil, nil, 8)
}

func TestRegistryJoinLeave(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	c1 := newTestClient("c1")
	c2 := newTestClient("c2")

	r.Join("a1", c1)
	r.Join("a1", c2)
	assert.Len(t, r.Members("a1"), 2)

	r.Leave("a1", c1)
	members := r.Members("a1")
	require.Len(t, members, 1)
	assert.Equal(t, "c2", members[0].ID)

	// removing the last member empties the room without breaking later joins
	r.Leave("a1", c2)
	assert.Empty(t, r.Members("a1"))
	r.Join("a1", c1)
	assert.Len(t, r.Members("a1"), 1)
}

func TestRegistryMultipleRoomsPerClient(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	c := newTestClient("c1")

	r.Join("a1", c)
	r.Join("a2", c)
	assert.True(t, c.InRoom("a1"))
	assert.True(t, c.InRoom("a2"))

	r.RemoveAll(c)
	assert.False(t, c.InRoom("a1"))
	assert.False(t, c.InRoom("a2"))
	assert.Empty(t, r.Members("a1"))
	assert.Empty(t, r.Members("a2"))
}

func TestRegistrySessionCloseCleansEveryRoom(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	c := NewClient("c1", nil, r, 8)

	r.Join("a1", c)
	r.Join("a2", c)

	c.Close()
	assert.Empty(t, r.Members("a1"))
	assert.Empty(t, r.Members("a2"))

	// second close is a no-op
	c.Close()
}

func TestRegistryJoinRacingLastLeave(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	a := newTestClient("a")
	b := newTestClient("b")

	// a joiner racing the last leaver must end up in the live room, never
	// in a reaped member set that Members no longer returns
	for i := 0; i < 20000; i++ {
		r.Join("a1", a)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Leave("a1", a)
		}()
		go func() {
			defer wg.Done()
			r.Join("a1", b)
		}()
		wg.Wait()

		require.True(t, b.InRoom("a1"))
		found := false
		for _, m := range r.Members("a1") {
			if m == b {
				found = true
			}
		}
		require.True(t, found, "iteration %d: client b tracked as joined but not a member", i)

		r.Leave("a1", b)
	}
}

func TestRegistryConcurrentChurn(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := newTestClient(fmt.Sprintf("c%d", n))
			auction := fmt.Sprintf("a%d", n%5)
			r.Join(auction, c)
			_ = r.Members(auction)
			r.Leave(auction, c)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 5; i++ {
		assert.Empty(t, r.Members(fmt.Sprintf("a%d", i)))
	}
}
