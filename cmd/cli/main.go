package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/vk/boxmotion/internal/app"
	"github.com/vk/boxmotion/internal/cli"
	"github.com/vk/boxmotion/internal/fsutil"
	"github.com/vk/boxmotion/internal/hcl_adapter"
)

// watchSettle is how long watch mode waits after a change before rerunning.
const watchSettle = 100 * time.Millisecond

// main is the entrypoint for the boxmotion application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// The real main function handles errors and exit codes.
	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	if appConfig.Watch {
		return watch(ctx, outW, appConfig)
	}
	return runOnce(ctx, outW, appConfig)
}

// runOnce loads the scenario and runs it a single time.
func runOnce(ctx context.Context, outW io.Writer, appConfig *app.Config) (err error) {
	// The app panics on scenarios it cannot load, so we recover here to
	// provide a clean exit message to the user.
	var boxApp *app.App
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("application startup panicked: %v", r)
			}
		}()
		boxApp = app.NewApp(outW, appConfig, hcl_adapter.NewLoader(appConfig.Ranks))
	}()
	if err != nil {
		return err
	}

	return boxApp.Run(ctx)
}

// watch reruns the scenario every time one of its files changes, until ctx
// is canceled. A failed run is logged and does not stop the loop.
func watch(ctx context.Context, outW io.Writer, appConfig *app.Config) error {
	for {
		// The watcher is armed before the run so no edit made during it is lost.
		wctx, cancel, err := fsutil.UntilModified(ctx, appConfig.ScenarioPath)
		if err != nil {
			return fmt.Errorf("failed to watch scenario: %w", err)
		}
		if err := runOnce(wctx, outW, appConfig); err != nil {
			slog.Error("Scenario run failed.", "error", err)
		}
		slog.Info("👀 Waiting for scenario changes...", "path", appConfig.ScenarioPath)
		<-wctx.Done()
		cause := context.Cause(wctx)
		cancel()
		if ctx.Err() != nil {
			return nil
		}

		// Editors often write a file in several steps.
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(watchSettle):
		}
		slog.Info("Scenario changed, rerunning.", "cause", cause)
	}
}
