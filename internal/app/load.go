package app

import (
	"context"
	"fmt"

	"github.com/vk/boxmotion/internal/config"
	"github.com/vk/boxmotion/internal/ctxlog"
	"github.com/vk/boxmotion/internal/geom"
	"github.com/vk/boxmotion/internal/layout"
)

// level is a built layout together with the domain of its index space.
type level struct {
	name   string
	layout *layout.Layout
	domain *geom.ProblemDomain
}

// transferPlan is a validated transfer with its vectors and layouts resolved.
type transferPlan struct {
	spec                   *config.Transfer
	src, dst               *level
	ghost, srcGhost, shift geom.IntVect
}

// resolve builds the domain, every layout and every transfer of the model.
func (a *App) resolve(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	d := a.model.Domain
	domain := geom.NewProblemDomain(geom.NewBox(d.Lo, d.Hi), d.Periodic...)
	logger.Debug("Domain built.", "domain", domain.String())

	a.levels = make(map[string]*level, len(a.model.Layouts))
	for _, l := range a.model.Layouts {
		if _, err := a.buildLevel(ctx, domain, l.Name, nil); err != nil {
			return err
		}
	}

	for _, t := range a.model.Transfers {
		tp := &transferPlan{
			spec:     t,
			src:      a.levels[t.Source],
			dst:      a.levels[t.Dest],
			ghost:    geom.IV(t.Ghost...),
			srcGhost: geom.IV(t.SourceGhost...),
			shift:    geom.IV(t.Shift...),
		}
		if !tp.src.domain.Box().Equal(tp.dst.domain.Box()) {
			return fmt.Errorf("transfer %q: layouts %q and %q live on different index spaces (%s, %s)",
				t.Name, t.Source, t.Dest, tp.src.domain.Box(), tp.dst.domain.Box())
		}
		a.transfers = append(a.transfers, tp)
	}
	return nil
}

// buildLevel builds the named layout, deriving it from its parent first when
// needed. visiting holds the chain of layouts being derived, to catch cycles.
func (a *App) buildLevel(ctx context.Context, domain *geom.ProblemDomain, name string, visiting []string) (*level, error) {
	if lv, ok := a.levels[name]; ok {
		return lv, nil
	}
	for _, v := range visiting {
		if v == name {
			return nil, fmt.Errorf("layout %q: derivation cycle %v", name, append(visiting, name))
		}
	}
	spec := a.model.Layout(name)
	if spec == nil {
		return nil, fmt.Errorf("unknown layout %q", name)
	}

	var lv *level
	switch {
	case spec.Tile != nil:
		ranks := spec.Ranks
		if ranks == 0 {
			ranks = a.config.Ranks
		}
		if ranks > a.config.Ranks {
			return nil, fmt.Errorf("layout %q: %d ranks requested, %d available", name, ranks, a.config.Ranks)
		}
		lv = &level{name: name, layout: layout.NewTiled(domain.Box(), geom.IV(spec.Tile...), ranks), domain: domain}

	case len(spec.Boxes) > 0:
		b := layout.NewBuilder(domain.Dim())
		for i, box := range spec.Boxes {
			if box.Proc >= a.config.Ranks {
				return nil, fmt.Errorf("layout %q box %d: proc %d but only %d ranks", name, i, box.Proc, a.config.Ranks)
			}
			b.Add(geom.NewBox(box.Lo, box.Hi), box.Proc)
		}
		lv = &level{name: name, layout: b.Close(), domain: domain}

	default:
		parent, err := a.buildLevel(ctx, domain, spec.From, append(visiting, name))
		if err != nil {
			return nil, err
		}
		if spec.Coarsen > 1 {
			if !parent.layout.CoarsenableBy(spec.Coarsen) || !parent.domain.Box().CoarsenableBy(spec.Coarsen) {
				return nil, fmt.Errorf("layout %q: %q is not coarsenable by %d", name, spec.From, spec.Coarsen)
			}
			lv = &level{name: name, layout: parent.layout.Coarsen(spec.Coarsen), domain: parent.domain.Coarsen(spec.Coarsen)}
		} else {
			lv = &level{name: name, layout: parent.layout.Refine(spec.Refine), domain: parent.domain.Refine(spec.Refine)}
		}
	}

	a.levels[name] = lv
	ctxlog.FromContext(ctx).Debug("Layout built.", "name", name, "layout", lv.layout.String())
	return lv, nil
}
