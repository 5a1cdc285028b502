// Package comm provides the point-to-point transport between ranks.
//
// Ranks follow the single-program-multiple-data model: every rank runs the
// same code over its own share of the boxes and talks to its peers through
// non-blocking sends and receives matched by (source, destination, tag).
// Messages between one pair of ranks with one tag are delivered in the order
// they were sent, and receives match them in the order they were posted.
//
// There are no timeouts and no cancellation: a receive whose peer never sends
// blocks forever.
package comm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/vk/boxmotion/internal/ctxlog"
)

// Comm is one rank's view of the process group.
type Comm interface {
	// Rank returns this rank's id, 0 <= Rank() < Size().
	Rank() int
	// Size returns the number of ranks.
	Size() int
	// Isend starts sending data to dst. The data is copied before Isend
	// returns, so the caller may reuse it immediately.
	Isend(dst, tag int, data []byte) Request
	// Irecv posts a receive for the next message from src with tag.
	Irecv(src, tag int) *RecvRequest
	// Barrier blocks until every rank has entered it.
	Barrier(ctx context.Context)
}

// Request tracks an issued send.
type Request interface {
	Wait()
}

type key struct {
	src, dst, tag int
}

type mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	msgs   map[uint64][]byte
	sent   uint64
	posted uint64
}

func newMailbox() *mailbox {
	m := &mailbox{msgs: make(map[uint64][]byte)}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Stats counts traffic through a World.
type Stats struct {
	Messages int64
	Bytes    int64
}

// World is an in-process group of ranks connected by unbounded mailboxes.
type World struct {
	size int

	mu    sync.Mutex
	boxes map[key]*mailbox

	barrierMu   sync.Mutex
	barrierCond *sync.Cond
	barrierN    int
	barrierGen  uint64

	messages atomic.Int64
	bytes    atomic.Int64
}

// NewWorld creates a group of size ranks.
func NewWorld(size int) *World {
	if size < 1 {
		panic(fmt.Sprintf("comm: world size %d", size))
	}
	w := &World{size: size, boxes: make(map[key]*mailbox)}
	w.barrierCond = sync.NewCond(&w.barrierMu)
	return w
}

// Size returns the number of ranks.
func (w *World) Size() int { return w.size }

// Comm returns the endpoint of rank.
func (w *World) Comm(rank int) Comm {
	if rank < 0 || rank >= w.size {
		panic(fmt.Sprintf("comm: rank %d outside world of %d", rank, w.size))
	}
	return &endpoint{world: w, rank: rank}
}

// Stats returns the traffic sent so far.
func (w *World) Stats() Stats {
	return Stats{Messages: w.messages.Load(), Bytes: w.bytes.Load()}
}

func (w *World) mailbox(k key) *mailbox {
	w.mu.Lock()
	defer w.mu.Unlock()
	m, ok := w.boxes[k]
	if !ok {
		m = newMailbox()
		w.boxes[k] = m
	}
	return m
}

type endpoint struct {
	world *World
	rank  int
}

func (e *endpoint) Rank() int { return e.rank }
func (e *endpoint) Size() int { return e.world.size }

func (e *endpoint) checkPeer(peer int) {
	if peer < 0 || peer >= e.world.size {
		panic(fmt.Sprintf("comm: rank %d addressed peer %d outside world of %d", e.rank, peer, e.world.size))
	}
}

func (e *endpoint) Isend(dst, tag int, data []byte) Request {
	e.checkPeer(dst)
	msg := make([]byte, len(data))
	copy(msg, data)

	m := e.world.mailbox(key{src: e.rank, dst: dst, tag: tag})
	m.mu.Lock()
	m.msgs[m.sent] = msg
	m.sent++
	m.mu.Unlock()
	m.cond.Broadcast()

	e.world.messages.Add(1)
	e.world.bytes.Add(int64(len(msg)))
	return sendDone{}
}

func (e *endpoint) Irecv(src, tag int) *RecvRequest {
	e.checkPeer(src)
	m := e.world.mailbox(key{src: src, dst: e.rank, tag: tag})
	m.mu.Lock()
	seq := m.posted
	m.posted++
	m.mu.Unlock()
	return &RecvRequest{box: m, seq: seq, Source: src}
}

func (e *endpoint) Barrier(ctx context.Context) {
	w := e.world
	w.barrierMu.Lock()
	defer w.barrierMu.Unlock()
	gen := w.barrierGen
	w.barrierN++
	if w.barrierN == w.size {
		w.barrierN = 0
		w.barrierGen++
		w.barrierCond.Broadcast()
		return
	}
	for gen == w.barrierGen {
		w.barrierCond.Wait()
	}
}

// sendDone is returned by the in-process transport, whose sends complete as
// soon as the message is queued.
type sendDone struct{}

func (sendDone) Wait() {}

// RecvRequest is a posted receive.
type RecvRequest struct {
	box    *mailbox
	seq    uint64
	data   []byte
	done   bool
	Source int
}

// Wait blocks until the matching message arrives and returns it. Further
// calls return the same message.
func (r *RecvRequest) Wait() []byte {
	if r.done {
		return r.data
	}
	m := r.box
	m.mu.Lock()
	for {
		if msg, ok := m.msgs[r.seq]; ok {
			delete(m.msgs, r.seq)
			r.data = msg
			break
		}
		m.cond.Wait()
	}
	m.mu.Unlock()
	r.done = true
	return r.data
}

// Run starts size ranks of a fresh World, each running fn with its own Comm,
// and waits for all of them. The context passed to fn carries a logger tagged
// with the rank. The first error returned by any rank is returned.
func Run(ctx context.Context, size int, fn func(ctx context.Context, c Comm) error) (*World, error) {
	w := NewWorld(size)
	g, gctx := errgroup.WithContext(ctx)
	for rank := 0; rank < size; rank++ {
		c := w.Comm(rank)
		rankCtx := ctxlog.With(gctx, "rank", rank)
		g.Go(func() error {
			if err := fn(rankCtx, c); err != nil {
				return fmt.Errorf("rank %d: %w", c.Rank(), err)
			}
			return nil
		})
	}
	return w, g.Wait()
}
