package leveldata

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vk/boxmotion/internal/comm"
	"github.com/vk/boxmotion/internal/copier"
	"github.com/vk/boxmotion/internal/ctxlog"
	"github.com/vk/boxmotion/internal/geom"
)

// Message tags. Ranks issue collective operations in the same order, so
// messages with one tag between one pair of ranks match up in order.
const (
	tagCopy = iota + 1
	tagExchange
)

// transfer executes one copier between two arrays. begin posts receives,
// packs and sends outgoing data and performs local copies; end waits for the
// incoming data and unpacks it.
type transfer[T Payload[T]] struct {
	src, dst           *LevelData[T]
	srcComps, dstComps geom.Interval
	plan               *copier.Copier
	buf                *copier.Buffer
	recvs              []*comm.RecvRequest
	tag                int
}

func newTransfer[T Payload[T]](src *LevelData[T], srcComps geom.Interval, dst *LevelData[T], dstComps geom.Interval, plan *copier.Copier, tag int) *transfer[T] {
	return &transfer[T]{src: src, dst: dst, srcComps: srcComps, dstComps: dstComps, plan: plan, tag: tag}
}

func (t *transfer[T]) begin(ctx context.Context) {
	c := t.src.comm
	t.buf = t.plan.AcquireBuffer()
	t.buf.Prepare(t.src.key, t.srcComps.Size(),
		func(m copier.MotionItem) int { return t.src.at(m.From.Pos()).Size(m.FromRegion, t.srcComps) },
		func(m copier.MotionItem) int { return t.dst.at(m.To.Pos()).Size(m.ToRegion, t.dstComps) },
	)

	for _, span := range t.buf.RecvPeers() {
		t.recvs = append(t.recvs, c.Irecv(span.Peer, t.tag))
	}

	slots := t.buf.SendSlots()
	t.src.forEach(len(slots), t.src.threadSafe(), func(i int) {
		s := slots[i]
		m := t.plan.Item(s.Item)
		t.src.at(m.From.Pos()).LinearOut(t.buf.Send(s), m.FromRegion, t.srcComps)
	})
	for _, span := range t.buf.SendPeers() {
		c.Isend(span.Peer, t.tag, t.buf.SendSpan(span))
	}

	local := t.plan.Local()
	t.src.forEach(local.Len(), t.src.threadSafe() && t.dst.threadSafe(), func(i int) {
		m := local.At(i)
		t.dst.at(m.To.Pos()).CopyFrom(t.src.at(m.From.Pos()), m.FromRegion, t.srcComps, m.ToRegion, t.dstComps)
	})

	ctxlog.FromContext(ctx).Debug("Transfer started.",
		"local", local.Len(),
		"sendPeers", len(t.buf.SendPeers()),
		"recvPeers", len(t.recvs),
		"sendBytes", t.buf.SendBytes(),
	)
}

func (t *transfer[T]) end(ctx context.Context) {
	peers := t.buf.RecvPeers()
	for i, req := range t.recvs {
		span := peers[i]
		msg := req.Wait()
		if len(msg) != span.Length {
			panic(fmt.Errorf("leveldata: %d bytes from rank %d, expected %d", len(msg), span.Peer, span.Length))
		}
		copy(t.buf.RecvSpan(span), msg)
	}

	slots := t.buf.RecvSlots()
	t.dst.forEach(len(slots), t.dst.threadSafe(), func(i int) {
		s := slots[i]
		m := t.plan.Item(s.Item)
		t.dst.at(m.To.Pos()).LinearIn(t.buf.Recv(s), m.ToRegion, t.dstComps)
	})

	t.plan.ReleaseBuffer(t.buf)
	t.buf, t.recvs = nil, nil
	ctxlog.FromContext(ctx).Debug("Transfer finished.", "recvSlots", len(slots))
}

// forEach runs fn for 0..n-1, on up to the configured number of goroutines
// when concurrent is set and serially otherwise. Every call runs; data motion
// is not interruptible.
func (d *LevelData[T]) forEach(n int, concurrent bool, fn func(i int)) {
	if !concurrent || d.opts.workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}
	var g errgroup.Group
	g.SetLimit(d.opts.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}

// parallel is forEach for calls that can fail. No new call starts once one
// has failed or ctx is done; the first error, or the context's cause, is
// returned.
func (d *LevelData[T]) parallel(ctx context.Context, n int, concurrent bool, fn func(i int) error) error {
	if !concurrent || d.opts.workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			if err := fn(i); err != nil {
				return err
			}
		}
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.workers)
	for i := 0; i < n && gctx.Err() == nil; i++ {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			return fn(i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	return nil
}
