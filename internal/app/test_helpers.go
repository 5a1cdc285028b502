package app

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/boxmotion/internal/config"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// SetupAppTest writes scenarioHCL to a temporary directory, points cfg at
// it and creates a new app instance for system testing.
func SetupAppTest(t *testing.T, cfg Config, scenarioHCL string, loader config.Loader) (*App, *SafeBuffer) {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scenario.hcl"), []byte(scenarioHCL), 0o600))
	cfg.ScenarioPath = dir
	cfg.LogLevel = "debug"
	if cfg.Ranks == 0 {
		cfg.Ranks = 2
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	appConfig, err := NewConfig(cfg)
	require.NoError(t, err)

	logBuffer := &SafeBuffer{}
	testApp := NewApp(logBuffer, appConfig, loader)

	t.Cleanup(func() {
		if os.Getenv("BOXMOTION_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
