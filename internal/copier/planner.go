package copier

import (
	"slices"

	"github.com/vk/boxmotion/internal/geom"
	"github.com/vk/boxmotion/internal/layout"
)

// planner finds the motion items of one rank in two passes. The destination
// pass walks this rank's destination boxes and produces local and incoming
// items; the source pass walks this rank's source boxes and produces outgoing
// items. Both passes funnel every (destination, source, image) candidate
// through visit, which depends only on global layout data, so two ranks
// looking at the same candidate always derive the same items.
type planner struct {
	c        *Copier
	src, dst *layout.Layout
	ghost    geom.IntVect
	srcGhost geom.IntVect
	shift    geom.IntVect
	images   []geom.IntVect
	same     bool
}

// pair is one candidate: a destination box, a source box and the periodic
// image the source is seen through.
type pair struct {
	dst, src, image int
}

func comparePairs(a, b pair) int {
	if a.dst != b.dst {
		return a.dst - b.dst
	}
	if a.src != b.src {
		return a.src - b.src
	}
	return a.image - b.image
}

func newPlanner(c *Copier) *planner {
	reach := c.opts.Ghost.Add(c.srcGhost).Add(c.opts.Shift.Abs())
	return &planner{
		c:        c,
		src:      c.src,
		dst:      c.dst,
		ghost:    c.opts.Ghost,
		srcGhost: c.srcGhost,
		shift:    c.opts.Shift,
		images:   c.opts.Domain.Images(reach),
		same:     c.src.SameAs(c.dst),
	}
}

// offset is the total translation applied to source data seen through image.
func (p *planner) offset(image int) geom.IntVect {
	return p.shift.Add(p.images[image])
}

// targets returns the cells of destination box pos that the transfer writes.
func (p *planner) targets(pos int) []geom.Box {
	b := p.dst.BoxAt(pos)
	if p.c.mode == modeExchange {
		return b.Halo(p.ghost)
	}
	return []geom.Box{b.Grow(p.ghost)}
}

// sourceRegion is the part of source box pos that holds transferable data.
func (p *planner) sourceRegion(pos int) geom.Box {
	return p.src.BoxAt(pos).Grow(p.srcGhost)
}

func (p *planner) destPass() {
	var cands []pair
	for _, di := range p.dst.DataIndices(p.c.rank) {
		d := di.Pos()
		for _, t := range p.targets(d) {
			for img := range p.images {
				query := t.Shift(p.offset(img).Neg()).Grow(p.srcGhost)
				p.src.ForEachIntersecting(query, func(s int) bool {
					cands = append(cands, pair{dst: d, src: s, image: img})
					return true
				})
			}
		}
	}
	p.visitAll(cands)
}

func (p *planner) sourcePass() {
	var cands []pair
	for _, si := range p.src.DataIndices(p.c.rank) {
		s := si.Pos()
		for img := range p.images {
			query := p.sourceRegion(s).Shift(p.offset(img)).Grow(p.ghost)
			p.dst.ForEachIntersecting(query, func(d int) bool {
				// Destination boxes of this rank were handled by destPass.
				if p.dst.ProcAt(d) != p.c.rank {
					cands = append(cands, pair{dst: d, src: s, image: img})
				}
				return true
			})
		}
	}
	p.visitAll(cands)
}

func (p *planner) visitAll(cands []pair) {
	slices.SortFunc(cands, comparePairs)
	cands = slices.Compact(cands)
	for _, c := range cands {
		p.visit(c)
	}
}

func (p *planner) isSelf(c pair) bool {
	return p.same && c.src == c.dst && p.offset(c.image).IsZero()
}

func (p *planner) visit(c pair) {
	if p.isSelf(c) && !p.c.opts.IncludeSelf {
		return
	}
	off := p.offset(c.image)
	img := p.sourceRegion(c.src).Shift(off)
	for _, t := range p.targets(c.dst) {
		r := t.Intersect(img)
		if r.IsEmpty() {
			continue
		}
		pieces := []geom.Box{r}
		if p.c.mode == modeGhostToValid {
			pieces = p.exclusive(r, c)
		}
		for _, piece := range pieces {
			p.c.add(MotionItem{
				From:       p.src.IndexAt(c.src),
				To:         p.dst.IndexAt(c.dst),
				FromRegion: piece.Shift(off.Neg()),
				ToRegion:   piece,
				FromProc:   p.src.ProcAt(c.src),
				ToProc:     p.dst.ProcAt(c.dst),
			})
		}
	}
}

// exclusive trims r, which candidate c's grown source image covers, down to
// the cells c wins. Valid source data beats ghost data; among ghost data the
// source lowest in (position, image) order wins.
func (p *planner) exclusive(r geom.Box, c pair) []geom.Box {
	own := p.src.BoxAt(c.src).Shift(p.offset(c.image))
	var out []geom.Box
	if v := r.Intersect(own); !v.IsEmpty() {
		out = append(out, v)
	}
	rest := r.Subtract(own)
	for img := range p.images {
		if len(rest) == 0 {
			break
		}
		off := p.offset(img)
		query := r.Shift(off.Neg()).Grow(p.srcGhost)
		p.src.ForEachIntersecting(query, func(s int) bool {
			other := pair{dst: c.dst, src: s, image: img}
			if other == c {
				return true
			}
			rest = subtractAll(rest, p.src.BoxAt(s).Shift(off))
			if s < c.src || (s == c.src && img < c.image) {
				rest = subtractAll(rest, p.sourceRegion(s).Shift(off))
			}
			return len(rest) > 0
		})
	}
	return append(out, rest...)
}

func subtractAll(pieces []geom.Box, o geom.Box) []geom.Box {
	var out []geom.Box
	for _, b := range pieces {
		out = append(out, b.Subtract(o)...)
	}
	return out
}
