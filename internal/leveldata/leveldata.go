// Package leveldata provides LevelData, an array distributed over the boxes
// of a layout with a halo of ghost cells around every box.
//
// Each rank holds one payload per box it owns, sized to the box grown by the
// ghost width. Ghost cells are refreshed from the valid cells of neighbouring
// boxes by Exchange, and data moves between arrays on different layouts with
// CopyTo. All ranks must call collective operations in the same order.
package leveldata

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/vk/boxmotion/internal/comm"
	"github.com/vk/boxmotion/internal/copier"
	"github.com/vk/boxmotion/internal/ctxlog"
	"github.com/vk/boxmotion/internal/geom"
	"github.com/vk/boxmotion/internal/layout"
)

// Programming errors. They are raised by panicking with an error that wraps
// one of these values.
var (
	ErrUndefined         = errors.New("level data is not defined")
	ErrComponentMismatch = errors.New("component mismatch")
	ErrAliasing          = errors.New("source and destination are the same array")
	ErrState             = errors.New("invalid exchange state")
	ErrIncompatible      = errors.New("incompatible layouts")
	ErrLayout            = errors.New("unusable layout")
)

// Payload is the per-box storage a LevelData holds. T is the payload type
// itself, so CopyFrom receives a value of its own kind.
type Payload[T any] interface {
	Box() geom.Box
	NComp() int
	CopyFrom(src T, srcRegion geom.Box, srcComps geom.Interval, dstRegion geom.Box, dstComps geom.Interval)
	// Size returns the number of bytes LinearOut writes for region and comps.
	Size(region geom.Box, comps geom.Interval) int
	LinearOut(buf []byte, region geom.Box, comps geom.Interval)
	LinearIn(buf []byte, region geom.Box, comps geom.Interval)
	// ThreadSafe reports whether writes to disjoint regions of one payload,
	// or to different payloads, may run concurrently.
	ThreadSafe() bool
}

// Factory allocates a payload over box with ncomp components.
type Factory[T any] func(box geom.Box, ncomp int) T

// State tracks whether ghost cells hold current data.
type State int

const (
	Undefined State = iota
	GhostsStale
	GhostsFresh
	ExchangeInFlight
)

func (s State) String() string {
	switch s {
	case Undefined:
		return "undefined"
	case GhostsStale:
		return "ghosts-stale"
	case GhostsFresh:
		return "ghosts-fresh"
	case ExchangeInFlight:
		return "exchange-in-flight"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Option configures a LevelData.
type Option func(*options)

type options struct {
	workers int
	domain  *geom.ProblemDomain
}

// WithWorkers bounds the number of goroutines used for per-box loops.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithDomain makes exchanges wrap around the domain's periodic directions.
func WithDomain(d *geom.ProblemDomain) Option {
	return func(o *options) { o.domain = d }
}

// LevelData is one rank's share of a distributed array.
type LevelData[T Payload[T]] struct {
	comm    comm.Comm
	factory Factory[T]
	opts    options
	key     string

	layout *layout.Layout
	ncomp  int
	ghost  geom.IntVect
	data   []T
	state  State

	exchanger *copier.Copier
	pending   *transfer[T]
}

// New creates an undefined array for the calling rank.
func New[T Payload[T]](c comm.Comm, factory Factory[T], opts ...Option) *LevelData[T] {
	o := options{workers: runtime.GOMAXPROCS(0)}
	for _, opt := range opts {
		opt(&o)
	}
	return &LevelData[T]{
		comm:    c,
		factory: factory,
		opts:    o,
		key:     fmt.Sprintf("%T", *new(T)),
	}
}

// Define allocates one payload per box this rank owns in l, each covering the
// box grown by ghost. Redefining drops all data and the cached exchange plan.
func (d *LevelData[T]) Define(ctx context.Context, l *layout.Layout, ncomp int, ghost geom.IntVect) {
	if d.state == ExchangeInFlight {
		panic(fmt.Errorf("%w: define during an exchange", ErrState))
	}
	l.MustBeClosed("level data")
	switch {
	case !l.IsDisjoint():
		panic(fmt.Errorf("%w: %s is not disjoint", ErrLayout, l))
	case l.NumProcs() > d.comm.Size():
		panic(fmt.Errorf("%w: %s needs %d ranks, have %d", ErrLayout, l, l.NumProcs(), d.comm.Size()))
	case ncomp < 1:
		panic(fmt.Errorf("%w: %d components", ErrComponentMismatch, ncomp))
	case d.opts.domain != nil && d.opts.domain.Dim() != l.Dim():
		panic(fmt.Errorf("%w: %d-d domain for %s", ErrLayout, d.opts.domain.Dim(), l))
	}
	for dir := 0; dir < l.Dim(); dir++ {
		if ghost[dir] < 0 {
			panic(fmt.Errorf("%w: ghost %s", ErrLayout, ghost.Format(l.Dim())))
		}
	}

	local := l.DataIndices(d.comm.Rank())
	data := make([]T, len(local))
	for _, di := range local {
		data[di.Local()] = d.factory(l.Box(di.Index).Grow(ghost), ncomp)
	}
	d.layout, d.ncomp, d.ghost, d.data = l, ncomp, ghost, data
	d.state = GhostsStale
	d.exchanger = nil

	ctxlog.FromContext(ctx).Debug("Level data defined.",
		"layout", l.String(), "local", len(local), "ncomp", ncomp, "ghost", ghost.Format(l.Dim()))
}

func (d *LevelData[T]) mustBeDefined(what string) {
	if d.state == Undefined {
		panic(fmt.Errorf("%w: %s", ErrUndefined, what))
	}
}

// IsDefined reports whether Define has been called.
func (d *LevelData[T]) IsDefined() bool { return d.state != Undefined }

func (d *LevelData[T]) Layout() *layout.Layout { return d.layout }
func (d *LevelData[T]) NComp() int             { return d.ncomp }
func (d *LevelData[T]) Ghost() geom.IntVect    { return d.ghost }
func (d *LevelData[T]) Rank() int              { return d.comm.Rank() }
func (d *LevelData[T]) State() State           { return d.state }

// Domain returns the periodic domain exchanges use, or nil.
func (d *LevelData[T]) Domain() *geom.ProblemDomain { return d.opts.domain }

// DataIndices returns the boxes this rank holds.
func (d *LevelData[T]) DataIndices() []layout.DataIndex {
	d.mustBeDefined("data indices")
	return d.layout.DataIndices(d.comm.Rank())
}

// Get returns the payload of a local box.
func (d *LevelData[T]) Get(di layout.DataIndex) T {
	d.mustBeDefined("get")
	if _, ok := d.layout.Local(d.comm.Rank(), di.Index); !ok {
		panic(fmt.Errorf("%w: box %s is not on rank %d", layout.ErrForeignIndex, di, d.comm.Rank()))
	}
	return d.data[di.Local()]
}

// at returns the payload of the box at global position pos, which must be
// local.
func (d *LevelData[T]) at(pos int) T {
	return d.data[d.layout.SlotAt(pos)]
}

// MarkStale records that valid data changed, so ghost cells are out of date.
func (d *LevelData[T]) MarkStale() {
	d.mustBeDefined("mark stale")
	if d.state == ExchangeInFlight {
		panic(fmt.Errorf("%w: modified during an exchange", ErrState))
	}
	d.state = GhostsStale
}

// Apply calls fn for every local box, concurrently when the payload allows
// it, and marks the ghosts stale. It returns the first error; no further box
// is started after a failure or once ctx is done.
func (d *LevelData[T]) Apply(ctx context.Context, fn func(di layout.DataIndex, payload T) error) error {
	d.MarkStale()
	local := d.layout.DataIndices(d.comm.Rank())
	return d.parallel(ctx, len(local), d.threadSafe(), func(i int) error {
		return fn(local[i], d.data[local[i].Local()])
	})
}

func (d *LevelData[T]) threadSafe() bool {
	return len(d.data) == 0 || d.data[0].ThreadSafe()
}

func (d *LevelData[T]) checkComps(comps geom.Interval, what string) {
	if !comps.Within(d.ncomp) {
		panic(fmt.Errorf("%w: %s components %s outside [0,%d)", ErrComponentMismatch, what, comps, d.ncomp))
	}
}

func (d *LevelData[T]) checkCopy(srcComps geom.Interval, dst *LevelData[T], dstComps geom.Interval) {
	d.mustBeDefined("copy source")
	dst.mustBeDefined("copy destination")
	if d == dst {
		panic(fmt.Errorf("%w: use Exchange to fill ghost cells of an array from itself", ErrAliasing))
	}
	d.checkComps(srcComps, "source")
	dst.checkComps(dstComps, "destination")
	if srcComps.Size() != dstComps.Size() {
		panic(fmt.Errorf("%w: %d source and %d destination components", ErrComponentMismatch, srcComps.Size(), dstComps.Size()))
	}
	if dst.state == ExchangeInFlight {
		panic(fmt.Errorf("%w: copy into an array with an exchange in flight", ErrState))
	}
}

// afterWrite sets the state of an array whose valid cells were just written.
func (d *LevelData[T]) afterWrite() {
	d.state = GhostsStale
}

// CopyTo copies srcComps of the valid cells of d into dstComps of dst,
// filling both dst's valid and ghost cells wherever d has data, wrapping
// around dst's periodic domain. Arrays on compatible layouts copy valid cells
// box by box without communication.
func (d *LevelData[T]) CopyTo(ctx context.Context, srcComps geom.Interval, dst *LevelData[T], dstComps geom.Interval) {
	d.checkCopy(srcComps, dst, dstComps)
	if d.layout.Compatible(dst.layout) {
		d.localCopy(ctx, srcComps, dst, dstComps)
		return
	}
	c := copier.Build(ctx, d.layout, dst.layout, d.comm.Rank(), copier.Options{
		Ghost:  dst.ghost,
		Domain: dst.opts.domain,
	})
	d.CopyToWith(ctx, srcComps, dst, dstComps, c)
}

// CopyToWith is CopyTo with a caller-supplied plan, which must have been
// built from d's layout to dst's.
func (d *LevelData[T]) CopyToWith(ctx context.Context, srcComps geom.Interval, dst *LevelData[T], dstComps geom.Interval, c *copier.Copier) {
	d.checkCopy(srcComps, dst, dstComps)
	if !c.Compatible(d.layout, dst.layout) {
		panic(fmt.Errorf("%w: plan %s does not match %s -> %s", ErrIncompatible, c, d.layout, dst.layout))
	}
	t := newTransfer(d, srcComps, dst, dstComps, c, tagCopy)
	t.begin(ctx)
	t.end(ctx)
	dst.afterWrite()
}

// LocalCopyTo copies valid cells box by box between arrays on compatible
// layouts. No data crosses ranks.
func (d *LevelData[T]) LocalCopyTo(ctx context.Context, srcComps geom.Interval, dst *LevelData[T], dstComps geom.Interval) {
	d.checkCopy(srcComps, dst, dstComps)
	if !d.layout.Compatible(dst.layout) {
		panic(fmt.Errorf("%w: local copy from %s to %s", ErrIncompatible, d.layout, dst.layout))
	}
	d.localCopy(ctx, srcComps, dst, dstComps)
}

func (d *LevelData[T]) localCopy(ctx context.Context, srcComps geom.Interval, dst *LevelData[T], dstComps geom.Interval) {
	local := d.layout.DataIndices(d.comm.Rank())
	d.forEach(len(local), d.threadSafe() && dst.threadSafe(), func(i int) {
		di := local[i]
		valid := d.layout.Box(di.Index)
		dst.data[di.Local()].CopyFrom(d.data[di.Local()], valid, srcComps, valid, dstComps)
	})
	dst.afterWrite()
}

// Exchange refreshes every ghost cell from the valid cells that cover it.
func (d *LevelData[T]) Exchange(ctx context.Context) {
	d.ExchangeBegin(ctx)
	d.ExchangeEnd(ctx)
}

// ExchangeWith exchanges with a caller-supplied plan, for example a trimmed
// one, built for d's layout.
func (d *LevelData[T]) ExchangeWith(ctx context.Context, c *copier.Copier) {
	d.ExchangeBeginWith(ctx, c)
	d.ExchangeEnd(ctx)
}

// ExchangeBegin starts an exchange: outgoing data is packed and sent and
// local copies are done. The caller may do unrelated work before calling
// ExchangeEnd.
func (d *LevelData[T]) ExchangeBegin(ctx context.Context) {
	d.mustBeDefined("exchange")
	if d.exchanger == nil {
		d.exchanger = copier.BuildExchange(ctx, d.layout, d.comm.Rank(), copier.Options{
			Ghost:  d.ghost,
			Domain: d.opts.domain,
		})
	}
	d.ExchangeBeginWith(ctx, d.exchanger)
}

// ExchangeBeginWith is ExchangeBegin with a caller-supplied plan built for
// d's layout.
func (d *LevelData[T]) ExchangeBeginWith(ctx context.Context, c *copier.Copier) {
	d.mustBeDefined("exchange")
	if d.state == ExchangeInFlight {
		panic(fmt.Errorf("%w: exchange already in flight", ErrState))
	}
	if !c.Compatible(d.layout, d.layout) {
		panic(fmt.Errorf("%w: plan %s does not match %s", ErrIncompatible, c, d.layout))
	}
	all := geom.Comps(d.ncomp)
	t := newTransfer(d, all, d, all, c, tagExchange)
	t.begin(ctx)
	d.pending = t
	d.state = ExchangeInFlight
}

// ExchangeEnd waits for the data of the exchange started by ExchangeBegin
// and unpacks it into the ghost cells.
func (d *LevelData[T]) ExchangeEnd(ctx context.Context) {
	if d.state != ExchangeInFlight {
		panic(fmt.Errorf("%w: no exchange in flight (state %s)", ErrState, d.state))
	}
	d.pending.end(ctx)
	d.pending = nil
	d.state = GhostsFresh
}

func (d *LevelData[T]) String() string {
	if d.state == Undefined {
		return "leveldata<undefined>"
	}
	return fmt.Sprintf("leveldata{%s ncomp=%d ghost=%s rank=%d %s}",
		d.layout, d.ncomp, d.ghost.Format(d.layout.Dim()), d.comm.Rank(), d.state)
}
