package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vk/boxmotion/internal/comm"
	"github.com/vk/boxmotion/internal/config"
	"github.com/vk/boxmotion/internal/copier"
	"github.com/vk/boxmotion/internal/ctxlog"
	"github.com/vk/boxmotion/internal/fab"
	"github.com/vk/boxmotion/internal/geom"
	"github.com/vk/boxmotion/internal/layout"
	"github.com/vk/boxmotion/internal/leveldata"
)

// sentinel marks destination cells before a transfer writes them.
const sentinel = -1e30

type levelData = leveldata.LevelData[*fab.FArrayBox]

// cellValue is the value a source holds at p in component comp during
// iteration iter. Distinct cells of a domain up to 1000 wide get distinct
// values.
func cellValue(p geom.IntVect, comp, iter int) float64 {
	return float64(p[0]) + 1e3*float64(p[1]) + 1e6*float64(p[2]) + 1e9*float64(comp) + 0.25*float64(iter)
}

// expected is the value the source holds at p, which may be a periodic image
// of a domain cell.
func expected(domain *geom.ProblemDomain, p geom.IntVect, comp, iter int) float64 {
	q, _ := domain.Canonical(p)
	return cellValue(q, comp, iter)
}

// rankResult is what one rank observed while running a transfer.
type rankResult struct {
	stats      copier.Stats
	checked    int
	mismatched int
	firstBad   string
}

// runTransfer runs one transfer on a fresh group of ranks and aggregates what
// every rank saw.
func (a *App) runTransfer(ctx context.Context, tp *transferPlan) (*TransferReport, error) {
	ctx = ctxlog.With(ctx, "transfer", tp.spec.Name)
	logger := ctxlog.FromContext(ctx)
	logger.Info("Transfer starting.", "mode", tp.spec.Mode, "source", tp.spec.Source, "dest", tp.spec.Dest)

	var (
		mu      sync.Mutex
		results []*rankResult
	)
	start := time.Now()
	world, err := comm.Run(ctx, a.config.Ranks, func(ctx context.Context, c comm.Comm) error {
		res, err := a.runRank(ctx, c, tp)
		if err != nil {
			return err
		}
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	rep := newTransferReport(tp, a.config.Ranks)
	for _, res := range results {
		rep.add(res)
	}
	st := world.Stats()
	rep.Messages, rep.Bytes = st.Messages, st.Bytes
	rep.Elapsed = elapsed.String()

	logger.Info("Transfer verified.", "checked", rep.CheckedCells, "mismatched", rep.MismatchedCells, "messages", rep.Messages, "elapsed", rep.Elapsed)
	return rep, nil
}

// runRank plans the transfer for one rank, executes it the requested number
// of times and checks every cell the plan says this rank receives.
func (a *App) runRank(ctx context.Context, c comm.Comm, tp *transferPlan) (*rankResult, error) {
	// Once started, a transfer runs to the end on every rank: a rank that
	// stopped early would leave its peers waiting for its messages.
	ctx = context.WithoutCancel(ctx)
	logger := ctxlog.FromContext(ctx)
	spec := tp.spec

	plan := planBuilders[spec.Mode](ctx, tp, c.Rank())
	if spec.Trim {
		plan.Trim()
	}
	srcDomain, dstDomain := tp.src.domain, tp.dst.domain
	if spec.Coarsen > 1 {
		// Every rank sees the same layouts, so all of them fail here together
		// before any message is sent.
		if err := plan.CanCoarsen(spec.Coarsen); err != nil {
			return nil, err
		}
		plan.Coarsen(spec.Coarsen)
		srcDomain, dstDomain = srcDomain.Coarsen(spec.Coarsen), dstDomain.Coarsen(spec.Coarsen)
	}
	logger.Debug("Plan ready.", "plan", plan.String())

	opts := func(d *geom.ProblemDomain) []leveldata.Option {
		return []leveldata.Option{leveldata.WithWorkers(a.config.Workers), leveldata.WithDomain(d)}
	}
	all := geom.Comps(spec.NComp)
	last := spec.Iterations - 1

	var dst *levelData
	if spec.Mode == config.ModeExchange {
		dst = leveldata.New[*fab.FArrayBox](c, fab.New, opts(dstDomain)...)
		dst.Define(ctx, plan.Dest(), spec.NComp, tp.ghost)
		for iter := 0; iter <= last; iter++ {
			if err := fill(ctx, dst, srcDomain, iter, false); err != nil {
				return nil, err
			}
			if spec.Split {
				dst.ExchangeBeginWith(ctx, plan)
				logger.Debug("Exchange in flight.", "iteration", iter, "state", dst.State().String())
				dst.ExchangeEnd(ctx)
			} else {
				dst.ExchangeWith(ctx, plan)
			}
		}
	} else {
		src := leveldata.New[*fab.FArrayBox](c, fab.New, opts(srcDomain)...)
		src.Define(ctx, plan.Source(), spec.NComp, tp.srcGhost)
		dst = leveldata.New[*fab.FArrayBox](c, fab.New, opts(dstDomain)...)
		dst.Define(ctx, plan.Dest(), spec.NComp, tp.ghost)
		for iter := 0; iter <= last; iter++ {
			// Source ghost cells hold what an exchange would have put there.
			if err := fill(ctx, src, srcDomain, iter, true); err != nil {
				return nil, err
			}
			if err := dst.Apply(ctx, func(_ layout.DataIndex, f *fab.FArrayBox) error {
				f.SetVal(sentinel, f.Box())
				return nil
			}); err != nil {
				return nil, err
			}
			src.CopyToWith(ctx, all, dst, all, plan)
		}
	}

	res := &rankResult{stats: plan.Stats()}
	verify(res, dst, plan, srcDomain, last)
	if res.mismatched > 0 {
		logger.Warn("Cells with wrong values.", "count", res.mismatched, "first", res.firstBad)
	}
	return res, nil
}

// fill resets a source array for iteration iter: every cell gets the
// sentinel, then valid cells, or all cells when ghosts is set, get their
// expected value.
func fill(ctx context.Context, ld *levelData, domain *geom.ProblemDomain, iter int, ghosts bool) error {
	return ld.Apply(ctx, func(di layout.DataIndex, f *fab.FArrayBox) error {
		f.SetVal(sentinel, f.Box())
		region := ld.Layout().Box(di.Index)
		if ghosts {
			region = f.Box()
		}
		f.Fill(region, func(p geom.IntVect, comp int) float64 {
			return expected(domain, p, comp, iter)
		})
		return nil
	})
}

// verify checks every cell the plan writes on this rank against the source
// value the item reads.
func verify(res *rankResult, dst *levelData, plan *copier.Copier, srcDomain *geom.ProblemDomain, iter int) {
	rank := dst.Rank()
	for _, view := range []copier.View{plan.Local(), plan.Incoming()} {
		for _, m := range view.All() {
			di, ok := dst.Layout().Local(rank, m.To)
			if !ok {
				res.mismatched += m.ToRegion.NumPts() * dst.NComp()
				continue
			}
			f := dst.Get(di)
			off := m.Offset()
			m.ToRegion.ForEach(func(q geom.IntVect) {
				p := q.Sub(off)
				for comp := 0; comp < dst.NComp(); comp++ {
					res.checked++
					want := expected(srcDomain, p, comp, iter)
					if got := f.Get(q, comp); got != want {
						res.mismatched++
						if res.firstBad == "" {
							res.firstBad = fmt.Sprintf("cell %s comp %d: got %g, want %g (item %s)",
								q.Format(m.ToRegion.Dim()), comp, got, want, m)
						}
					}
				}
			})
		}
	}
}
