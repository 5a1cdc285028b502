package copier

import (
	"fmt"
	"iter"

	"github.com/vk/boxmotion/internal/geom"
	"github.com/vk/boxmotion/internal/layout"
)

// MotionItem is one atomic rectangular transfer. FromRegion and ToRegion have
// the same shape; ToRegion is FromRegion translated by the transfer's shift
// and periodic image.
type MotionItem struct {
	From       layout.Index
	To         layout.Index
	FromRegion geom.Box
	ToRegion   geom.Box
	FromProc   int
	ToProc     int
}

// Reversed swaps the source and destination roles.
func (m MotionItem) Reversed() MotionItem {
	return MotionItem{
		From:       m.To,
		To:         m.From,
		FromRegion: m.ToRegion,
		ToRegion:   m.FromRegion,
		FromProc:   m.ToProc,
		ToProc:     m.FromProc,
	}
}

// Offset returns ToRegion's displacement from FromRegion.
func (m MotionItem) Offset() geom.IntVect {
	return m.ToRegion.Lo().Sub(m.FromRegion.Lo())
}

func (m MotionItem) String() string {
	return fmt.Sprintf("%s@%d %s -> %s@%d %s", m.From, m.FromProc, m.FromRegion, m.To, m.ToProc, m.ToRegion)
}

// Kind classifies motion items relative to the rank a copier was built for.
type Kind int

const (
	// Local items move data between two boxes of the same rank.
	Local Kind = iota
	// Outgoing items read from a box of this rank and write to another rank.
	Outgoing
	// Incoming items write to a box of this rank from another rank.
	Incoming
)

func (k Kind) String() string {
	switch k {
	case Local:
		return "local"
	case Outgoing:
		return "outgoing"
	case Incoming:
		return "incoming"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// View is a read-only window onto one category of a copier's motion items.
type View struct {
	arena []MotionItem
	ids   []int32
}

// Len returns the number of items in the view.
func (v View) Len() int { return len(v.ids) }

// At returns the i-th item in the view's deterministic order.
func (v View) At(i int) MotionItem { return v.arena[v.ids[i]] }

// ID returns the arena id of the i-th item, stable for the copier's lifetime
// until the next transform.
func (v View) ID(i int) int { return int(v.ids[i]) }

// All iterates over the items in order.
func (v View) All() iter.Seq2[int, MotionItem] {
	return func(yield func(int, MotionItem) bool) {
		for i, id := range v.ids {
			if !yield(i, v.arena[id]) {
				return
			}
		}
	}
}

// Items returns a copy of the items in order.
func (v View) Items() []MotionItem {
	out := make([]MotionItem, len(v.ids))
	for i, id := range v.ids {
		out[i] = v.arena[id]
	}
	return out
}

// Cells returns the total number of destination cells in the view.
func (v View) Cells() int {
	n := 0
	for _, id := range v.ids {
		n += v.arena[id].ToRegion.NumPts()
	}
	return n
}
