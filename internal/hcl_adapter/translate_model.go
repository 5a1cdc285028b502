package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"

	"github.com/vk/boxmotion/internal/config"
	"github.com/vk/boxmotion/internal/ctxlog"
)

// translateDomain converts the HCL domain block to the config model.
func (l *Loader) translateDomain(ctx context.Context, d *Domain, evalCtx *hcl.EvalContext) (*config.Domain, error) {
	lo, err := decodeInts(ctx, d.Lo, evalCtx, "lo")
	if err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}
	hi, err := decodeInts(ctx, d.Hi, evalCtx, "hi")
	if err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}
	periodic, err := decodeBools(ctx, d.Periodic, evalCtx, "periodic")
	if err != nil {
		return nil, fmt.Errorf("domain: %w", err)
	}
	return &config.Domain{Lo: lo, Hi: hi, Periodic: periodic}, nil
}

// translateLayout converts one HCL layout block to the config model.
func (l *Loader) translateLayout(ctx context.Context, lb *Layout, evalCtx *hcl.EvalContext) (*config.Layout, error) {
	tile, err := decodeInts(ctx, lb.Tile, evalCtx, "tile")
	if err != nil {
		return nil, fmt.Errorf("layout %q: %w", lb.Name, err)
	}
	out := &config.Layout{
		Name:    lb.Name,
		Tile:    tile,
		Ranks:   deref(lb.Ranks, 0),
		From:    deref(lb.From, ""),
		Coarsen: deref(lb.Coarsen, 0),
		Refine:  deref(lb.Refine, 0),
	}
	for i, b := range lb.Boxes {
		lo, err := decodeInts(ctx, b.Lo, evalCtx, "lo")
		if err != nil {
			return nil, fmt.Errorf("layout %q box %d: %w", lb.Name, i, err)
		}
		hi, err := decodeInts(ctx, b.Hi, evalCtx, "hi")
		if err != nil {
			return nil, fmt.Errorf("layout %q box %d: %w", lb.Name, i, err)
		}
		out.Boxes = append(out.Boxes, config.Box{Lo: lo, Hi: hi, Proc: b.Proc})
	}
	ctxlog.FromContext(ctx).Debug("Translated layout.", "name", out.Name, "boxes", len(out.Boxes), "from", out.From)
	return out, nil
}

// translateTransfer converts one HCL transfer block to the config model and
// fills in defaults: dest is the source, ncomp and iterations are 1, and the
// mode follows from the attributes that were given.
func (l *Loader) translateTransfer(ctx context.Context, tb *Transfer, evalCtx *hcl.EvalContext) (*config.Transfer, error) {
	wrap := func(err error) error { return fmt.Errorf("transfer %q: %w", tb.Name, err) }

	ghost, err := decodeInts(ctx, tb.Ghost, evalCtx, "ghost")
	if err != nil {
		return nil, wrap(err)
	}
	srcGhost, err := decodeInts(ctx, tb.SourceGhost, evalCtx, "source_ghost")
	if err != nil {
		return nil, wrap(err)
	}
	shift, err := decodeInts(ctx, tb.Shift, evalCtx, "shift")
	if err != nil {
		return nil, wrap(err)
	}

	out := &config.Transfer{
		Name:        tb.Name,
		Source:      tb.Source,
		Dest:        deref(tb.Dest, tb.Source),
		Ghost:       ghost,
		SourceGhost: srcGhost,
		Shift:       shift,
		NComp:       deref(tb.NComp, 1),
		Iterations:  deref(tb.Iterations, 1),
		Split:       deref(tb.Split, false),
		Trim:        deref(tb.Trim, false),
		Coarsen:     deref(tb.Coarsen, 0),
	}
	if tb.Mode != nil {
		out.Mode = config.TransferMode(*tb.Mode)
	} else {
		out.Mode = inferMode(out)
	}
	ctxlog.FromContext(ctx).Debug("Translated transfer.", "name", out.Name, "mode", out.Mode, "source", out.Source, "dest", out.Dest)
	return out, nil
}

func inferMode(t *config.Transfer) config.TransferMode {
	switch {
	case t.SourceGhost != nil:
		return config.ModeGhostToValid
	case t.Dest == t.Source && t.Shift == nil:
		return config.ModeExchange
	default:
		return config.ModeCopy
	}
}
