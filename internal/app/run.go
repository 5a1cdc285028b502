package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/boxmotion/internal/ctxlog"
)

// ErrVerification is returned by Run when a transfer left a cell holding a
// value other than the one its plan reads.
var ErrVerification = errors.New("verification failed")

// Run executes every transfer of the scenario in order, writes the report to
// the app's output and fails if any checked cell was wrong.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, a.config.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}

	report := &Report{
		Scenario: a.config.ScenarioPath,
		Ranks:    a.config.Ranks,
		Workers:  a.config.Workers,
	}
	if len(a.transfers) == 0 {
		a.logger.Warn("No transfers found in scenario, execution not required.")
	} else {
		a.logger.Info("🚀 Starting transfers...", "count", len(a.transfers), "ranks", a.config.Ranks)
	}
	for _, tp := range a.transfers {
		// A transfer in progress cannot be interrupted, so cancellation is
		// honored between transfers.
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run canceled before transfer %q: %w", tp.spec.Name, context.Cause(ctx))
		}
		tr, err := a.runTransfer(ctx, tp)
		if err != nil {
			return fmt.Errorf("transfer %q failed: %w", tp.spec.Name, err)
		}
		report.add(tr)
		a.completed.Add(1)
	}
	a.report = report
	a.logger.Info("🏁 Execution finished.", "transfers", len(report.Transfers), "mismatched", report.MismatchedCells)

	if err := report.Write(a.outW, a.config.ReportFormat); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if report.MismatchedCells > 0 {
		return fmt.Errorf("%w: %d cells hold wrong values", ErrVerification, report.MismatchedCells)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}
