package comm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorld_SendRecvOrdering(t *testing.T) {
	w := NewWorld(2)
	a, b := w.Comm(0), w.Comm(1)

	// Receives posted before the sends still match in posting order.
	r1 := b.Irecv(0, 7)
	r2 := b.Irecv(0, 7)
	other := b.Irecv(0, 8)

	buf := []byte("first")
	a.Isend(1, 7, buf).Wait()
	buf[0] = 'X' // the transport owns a copy
	a.Isend(1, 8, []byte("tagged"))
	a.Isend(1, 7, []byte("second"))

	// Waiting out of order must not swap messages.
	assert.Equal(t, "second", string(r2.Wait()))
	assert.Equal(t, "first", string(r1.Wait()))
	assert.Equal(t, "tagged", string(other.Wait()))
	assert.Equal(t, "first", string(r1.Wait()), "repeated waits return the same message")

	stats := w.Stats()
	assert.Equal(t, int64(3), stats.Messages)
	assert.Equal(t, int64(len("first")+len("tagged")+len("second")), stats.Bytes)
}

func TestWorld_RecvBlocksUntilSend(t *testing.T) {
	w := NewWorld(2)
	req := w.Comm(1).Irecv(0, 0)

	got := make(chan string)
	go func() { got <- string(req.Wait()) }()

	w.Comm(0).Isend(1, 0, []byte("late"))
	assert.Equal(t, "late", <-got)
}

func TestWorld_BadPeerPanics(t *testing.T) {
	w := NewWorld(2)
	assert.Panics(t, func() { w.Comm(0).Isend(2, 0, nil) })
	assert.Panics(t, func() { w.Comm(0).Irecv(-1, 0) })
	assert.Panics(t, func() { w.Comm(5) })
}

func TestRun_RingExchange(t *testing.T) {
	const size = 5
	var mu sync.Mutex
	received := map[int]string{}

	w, err := Run(context.Background(), size, func(ctx context.Context, c Comm) error {
		next := (c.Rank() + 1) % c.Size()
		prev := (c.Rank() + c.Size() - 1) % c.Size()

		req := c.Irecv(prev, 1)
		c.Isend(next, 1, []byte(fmt.Sprintf("from %d", c.Rank())))
		msg := req.Wait()
		c.Barrier(ctx)

		mu.Lock()
		received[c.Rank()] = string(msg)
		mu.Unlock()
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, size, w.Size())
	for r := 0; r < size; r++ {
		assert.Equal(t, fmt.Sprintf("from %d", (r+size-1)%size), received[r])
	}
}

func TestRun_PropagatesRankError(t *testing.T) {
	boom := errors.New("boom")

	_, err := Run(context.Background(), 3, func(ctx context.Context, c Comm) error {
		if c.Rank() == 2 {
			return boom
		}
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "rank 2")
}

func TestBarrier_Reusable(t *testing.T) {
	const size, rounds = 4, 10
	var mu sync.Mutex
	counts := make([]int, rounds)

	_, err := Run(context.Background(), size, func(ctx context.Context, c Comm) error {
		for i := 0; i < rounds; i++ {
			mu.Lock()
			counts[i]++
			mu.Unlock()
			c.Barrier(ctx)
			mu.Lock()
			n := counts[i]
			mu.Unlock()
			if n != size {
				return fmt.Errorf("round %d: passed barrier with %d arrivals", i, n)
			}
			c.Barrier(ctx)
		}
		return nil
	})

	require.NoError(t, err)
}
