package copier

import (
	"fmt"

	"github.com/vk/boxmotion/internal/geom"
)

// Options describes one transfer intent. The zero value is a plain
// valid-to-valid copy on a non-periodic domain.
type Options struct {
	// Ghost is the halo width added to every destination box.
	Ghost geom.IntVect
	// Domain, when set, makes the transfer wrap around its periodic
	// directions. Every source box must then lie inside the domain box.
	Domain *geom.ProblemDomain
	// Shift translates source regions before they are matched against
	// destination regions.
	Shift geom.IntVect
	// IncludeSelf keeps the identity items (same box, no displacement) when
	// the source and destination layouts are the same layout.
	IncludeSelf bool
	// Reverse swaps the direction of the finished schedule.
	Reverse bool
}

func (o Options) validate(dim int) {
	for d := 0; d < dim; d++ {
		if o.Ghost[d] < 0 {
			panic(fmt.Errorf("%w: ghost %s", ErrBadOptions, o.Ghost.Format(dim)))
		}
	}
	if o.Domain != nil && o.Domain.Dim() != dim {
		panic(fmt.Errorf("%w: %d-d domain for %d-d layouts", ErrDimension, o.Domain.Dim(), dim))
	}
}

func (o Options) String() string {
	return fmt.Sprintf("ghost=%v shift=%v domain=%s includeSelf=%t reverse=%t",
		o.Ghost, o.Shift, o.Domain, o.IncludeSelf, o.Reverse)
}
