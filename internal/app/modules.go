package app

import (
	"context"

	"github.com/vk/boxmotion/internal/config"
	"github.com/vk/boxmotion/internal/copier"
)

// planBuilder builds one rank's plan for a transfer.
type planBuilder func(ctx context.Context, tp *transferPlan, rank int) *copier.Copier

// planBuilders is the definitive list of transfer modes a scenario can use.
// Copies between two arrays always include identity items, so a copy onto
// the same layout moves every valid cell.
var planBuilders = map[config.TransferMode]planBuilder{
	config.ModeExchange: func(ctx context.Context, tp *transferPlan, rank int) *copier.Copier {
		return copier.BuildExchange(ctx, tp.src.layout, rank, copier.Options{
			Ghost:  tp.ghost,
			Domain: tp.dst.domain,
		})
	},
	config.ModeCopy: func(ctx context.Context, tp *transferPlan, rank int) *copier.Copier {
		return copier.Build(ctx, tp.src.layout, tp.dst.layout, rank, copyOptions(tp))
	},
	config.ModeGhostToValid: func(ctx context.Context, tp *transferPlan, rank int) *copier.Copier {
		return copier.BuildGhostToValid(ctx, tp.src.layout, tp.dst.layout, rank, tp.srcGhost, copyOptions(tp))
	},
}

func copyOptions(tp *transferPlan) copier.Options {
	return copier.Options{
		Ghost:       tp.ghost,
		Domain:      tp.dst.domain,
		Shift:       tp.shift,
		IncludeSelf: true,
	}
}
