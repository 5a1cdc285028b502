package fsutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntilModified(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	root := t.TempDir()
	nested := filepath.Join(root, "layouts")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))

	ctx, cancel, err := UntilModified(context.Background(), root)
	require.NoError(t, err)
	defer cancel()

	// --- Act ---
	require.NoError(t, os.WriteFile(filepath.Join(nested, "fine.hcl"), []byte("x"), 0o600))

	// --- Assert ---
	select {
	case <-ctx.Done():
		assert.Contains(t, context.Cause(ctx).Error(), "fine.hcl")
	case <-time.After(5 * time.Second):
		t.Fatal("context was not canceled after a nested file was created")
	}
}

func TestUntilModified_CancelIsClean(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	ctx, cancel, err := UntilModified(context.Background(), root)
	require.NoError(t, err)
	cancel()

	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
}

func TestUntilModified_MissingPath(t *testing.T) {
	t.Parallel()

	ctx, cancel, err := UntilModified(context.Background(), filepath.Join(t.TempDir(), "missing"))

	assert.Error(t, err)
	assert.Nil(t, ctx)
	assert.Nil(t, cancel)
}

func TestWatchTargets(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	for _, d := range []string{"a/b", ".hidden/c"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	file := filepath.Join(root, "main.hcl")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	dirs, err := watchTargets(root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{root, filepath.Join(root, "a"), filepath.Join(root, "a/b")}, dirs)

	files, err := watchTargets(file)
	require.NoError(t, err)
	assert.Equal(t, []string{file}, files)
}
