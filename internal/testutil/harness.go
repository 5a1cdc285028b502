// Package testutil holds the harness the scenario integration tests run on.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/boxmotion/internal/app"
	"github.com/vk/boxmotion/internal/hcl_adapter"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Err       error
	App       *app.App
}

// Report returns the run's report, or nil when the app never ran.
func (r *HarnessResult) Report() *app.Report {
	if r.App == nil {
		return nil
	}
	return r.App.Report()
}

// RunScenario provides a standardized harness for running a scenario using a
// default background context.
func RunScenario(t *testing.T, files map[string]string, cfg app.Config) *HarnessResult {
	t.Helper()
	return RunScenarioWithContext(context.Background(), t, files, cfg)
}

// RunScenarioWithContext writes files, keyed by relative path, into a
// temporary scenario directory, loads it with the HCL loader and runs every
// transfer. Ranks and workers default to 2; logs are captured at debug level.
func RunScenarioWithContext(ctx context.Context, t *testing.T, files map[string]string, cfg app.Config) *HarnessResult {
	t.Helper()

	// 1. Write all HCL files to a temporary scenario directory.
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	// 2. Fill in the configuration.
	cfg.ScenarioPath = dir
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"
	if cfg.Ranks == 0 {
		cfg.Ranks = 2
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}

	// 3. Start the app; scenarios that cannot be loaded panic.
	var testApp *app.App
	var panicErr any
	func() {
		defer func() {
			if r := recover(); r != nil {
				panicErr = r
			}
		}()
		testApp = app.NewApp(logBuffer, appConfig, hcl_adapter.NewLoader(appConfig.Ranks))
	}()
	if panicErr != nil {
		return &HarnessResult{
			LogOutput: logBuffer.String(),
			Err:       fmt.Errorf("application startup panicked | %v", panicErr),
		}
	}

	// 4. Run every transfer.
	runErr := testApp.Run(ctx)

	if os.Getenv("BOXMOTION_TEST_LOGS") == "true" {
		t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
	}

	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Err:       runErr,
		App:       testApp,
	}
}
