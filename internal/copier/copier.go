// Package copier computes which rectangular pieces of data must move between
// the boxes of two layouts, and between which ranks, to carry out a transfer.
//
// A Copier is built for one rank. Every rank builds its own copier from the
// same global layouts and options, and the sender-side and receiver-side item
// lists for any pair of ranks come out identical and identically ordered, so
// no negotiation is needed before data moves.
package copier

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/vk/boxmotion/internal/ctxlog"
	"github.com/vk/boxmotion/internal/geom"
	"github.com/vk/boxmotion/internal/layout"
)

// Programming errors. They are raised by panicking with an error that wraps
// one of these values.
var (
	ErrSourceNotDisjoint = errors.New("source layout is not disjoint")
	ErrDimension         = errors.New("dimension mismatch")
	ErrBadOptions        = errors.New("invalid transfer options")
	ErrUnsafeCoarsen     = errors.New("copier cannot be coarsened")
	ErrNotPrepared       = errors.New("buffer is not prepared")
	ErrForeignBuffer     = errors.New("buffer belongs to another copier")
)

type mode int

const (
	modeCopy mode = iota
	modeExchange
	modeGhostToValid
)

func (m mode) String() string {
	switch m {
	case modeExchange:
		return "exchange"
	case modeGhostToValid:
		return "ghost-to-valid"
	default:
		return "copy"
	}
}

// Copier is the motion plan of one transfer for one rank. Items live in one
// arena owned by the copier; the local, outgoing and incoming lists index
// into it.
type Copier struct {
	src, dst *layout.Layout
	rank     int
	opts     Options
	mode     mode
	srcGhost geom.IntVect
	reversed bool

	items []MotionItem
	local []int32
	out   []int32
	in    []int32

	mu   sync.Mutex
	gen  uint64
	pool []*Buffer
}

// Build plans a transfer of the valid data of src into dst, each destination
// box grown by opts.Ghost.
func Build(ctx context.Context, src, dst *layout.Layout, rank int, opts Options) *Copier {
	return build(ctx, src, dst, rank, opts, modeCopy, geom.IntVect{})
}

// BuildExchange plans the refresh of every ghost cell of l from the valid data
// of the boxes that cover it. Valid cells are never written.
func BuildExchange(ctx context.Context, l *layout.Layout, rank int, opts Options) *Copier {
	opts.IncludeSelf = false
	return build(ctx, l, l, rank, opts, modeExchange, geom.IntVect{})
}

// BuildGhostToValid plans a transfer in which the data held in src's ghost
// cells, srcGhost wide, is also a source. A destination cell covered by some
// source box's valid region takes that value; otherwise it takes the ghost
// value of the covering source box lowest in global order.
func BuildGhostToValid(ctx context.Context, src, dst *layout.Layout, rank int, srcGhost geom.IntVect, opts Options) *Copier {
	return build(ctx, src, dst, rank, opts, modeGhostToValid, srcGhost)
}

func build(ctx context.Context, src, dst *layout.Layout, rank int, opts Options, m mode, srcGhost geom.IntVect) *Copier {
	src.MustBeClosed("copier source")
	dst.MustBeClosed("copier destination")
	if !src.IsDisjoint() {
		panic(fmt.Errorf("%w: %s", ErrSourceNotDisjoint, src))
	}
	if src.Dim() != dst.Dim() {
		panic(fmt.Errorf("%w: %d-d source, %d-d destination", ErrDimension, src.Dim(), dst.Dim()))
	}
	opts.validate(src.Dim())
	if opts.Domain.AnyPeriodic() {
		// Boxes outside the domain could overlap through a periodic image.
		dom := opts.Domain.Box()
		for pos := 0; pos < src.Len(); pos++ {
			if b := src.BoxAt(pos); !dom.Contains(b) {
				panic(fmt.Errorf("%w: source box %s lies outside periodic domain %s", ErrBadOptions, b, dom))
			}
		}
	}
	for d := 0; d < src.Dim(); d++ {
		if srcGhost[d] < 0 {
			panic(fmt.Errorf("%w: source ghost %s", ErrBadOptions, srcGhost.Format(src.Dim())))
		}
	}

	c := &Copier{src: src, dst: dst, rank: rank, opts: opts, mode: m, srcGhost: srcGhost}
	p := newPlanner(c)
	p.destPass()
	p.sourcePass()
	c.sortLists()

	if opts.Reverse {
		c.reverse()
	}

	ctxlog.FromContext(ctx).Debug("Copier built.",
		"mode", m.String(),
		"rank", rank,
		"local", len(c.local),
		"outgoing", len(c.out),
		"incoming", len(c.in),
		"images", len(p.images),
	)
	return c
}

// Source and Dest return the layouts data currently moves from and to.
func (c *Copier) Source() *layout.Layout { return c.src }
func (c *Copier) Dest() *layout.Layout   { return c.dst }

// Rank returns the rank the copier was built for.
func (c *Copier) Rank() int { return c.rank }

// Options returns the options the copier was built with.
func (c *Copier) Options() Options { return c.opts }

// IsReversed reports whether the copier runs opposite to how it was built.
func (c *Copier) IsReversed() bool { return c.reversed }

// Local returns the items whose both ends are on this rank.
func (c *Copier) Local() View { return View{arena: c.items, ids: c.local} }

// Outgoing returns the items this rank sends, grouped by destination rank.
func (c *Copier) Outgoing() View { return View{arena: c.items, ids: c.out} }

// Incoming returns the items this rank receives, grouped by source rank.
func (c *Copier) Incoming() View { return View{arena: c.items, ids: c.in} }

// View returns the items of one kind.
func (c *Copier) View(k Kind) View {
	switch k {
	case Outgoing:
		return c.Outgoing()
	case Incoming:
		return c.Incoming()
	default:
		return c.Local()
	}
}

// Item returns the arena item with the given id.
func (c *Copier) Item(id int) MotionItem { return c.items[id] }

// Compatible reports whether the copier moves data from src to dst.
func (c *Copier) Compatible(src, dst *layout.Layout) bool {
	return c.src.Compatible(src) && c.dst.Compatible(dst)
}

// Stats summarizes a copier's lists.
type Stats struct {
	Local, Outgoing, Incoming                int
	LocalCells, OutgoingCells, IncomingCells int
	SendPeers, RecvPeers                     int
}

// Stats counts items and cells per list and distinct peers.
func (c *Copier) Stats() Stats {
	return Stats{
		Local:         len(c.local),
		Outgoing:      len(c.out),
		Incoming:      len(c.in),
		LocalCells:    c.Local().Cells(),
		OutgoingCells: c.Outgoing().Cells(),
		IncomingCells: c.Incoming().Cells(),
		SendPeers:     countPeers(c.items, c.out, func(m MotionItem) int { return m.ToProc }),
		RecvPeers:     countPeers(c.items, c.in, func(m MotionItem) int { return m.FromProc }),
	}
}

func countPeers(items []MotionItem, ids []int32, peer func(MotionItem) int) int {
	n, last := 0, -1
	for _, id := range ids {
		if p := peer(items[id]); p != last {
			n++
			last = p
		}
	}
	return n
}

func (c *Copier) String() string {
	s := c.Stats()
	return fmt.Sprintf("copier{%s rank %d: %d local, %d out to %d ranks, %d in from %d ranks}",
		c.mode, c.rank, s.Local, s.Outgoing, s.SendPeers, s.Incoming, s.RecvPeers)
}

func (c *Copier) add(m MotionItem) {
	id := int32(len(c.items))
	c.items = append(c.items, m)
	switch {
	case m.FromProc == c.rank && m.ToProc == c.rank:
		c.local = append(c.local, id)
	case m.FromProc == c.rank:
		c.out = append(c.out, id)
	case m.ToProc == c.rank:
		c.in = append(c.in, id)
	}
}

// sortLists puts every list in its canonical order. Outgoing items group by
// destination rank and incoming ones by source rank; within a peer both sides
// order by destination region, so a sender and its receiver agree on item
// order without exchanging anything.
func (c *Copier) sortLists() {
	byRegion := func(a, b MotionItem) int {
		if r := a.ToRegion.Compare(b.ToRegion); r != 0 {
			return r
		}
		if r := a.To.Pos() - b.To.Pos(); r != 0 {
			return r
		}
		if r := a.From.Pos() - b.From.Pos(); r != 0 {
			return r
		}
		return a.FromRegion.Compare(b.FromRegion)
	}
	slices.SortFunc(c.local, func(x, y int32) int {
		return byRegion(c.items[x], c.items[y])
	})
	slices.SortFunc(c.out, func(x, y int32) int {
		a, b := c.items[x], c.items[y]
		if a.ToProc != b.ToProc {
			return a.ToProc - b.ToProc
		}
		return byRegion(a, b)
	})
	slices.SortFunc(c.in, func(x, y int32) int {
		a, b := c.items[x], c.items[y]
		if a.FromProc != b.FromProc {
			return a.FromProc - b.FromProc
		}
		return byRegion(a, b)
	})
}

// invalidate drops pooled buffers after the item lists changed.
func (c *Copier) invalidate() {
	c.mu.Lock()
	c.gen++
	c.pool = nil
	c.mu.Unlock()
}
