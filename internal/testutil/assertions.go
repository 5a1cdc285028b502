package testutil

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/boxmotion/internal/app"
)

// AssertTransferClean checks that a transfer ran to completion, according to
// both the logs and the report, and that every cell it wrote was right.
func AssertTransferClean(t *testing.T, result *HarnessResult, name string) *app.TransferReport {
	t.Helper()

	expectedLogSubstring := fmt.Sprintf("msg=\"Transfer verified.\" transfer=%s", name)
	require.True(t,
		strings.Contains(result.LogOutput, expectedLogSubstring),
		"expected log output for transfer %q was not found in logs", name,
	)

	report := result.Report()
	require.NotNil(t, report, "the app produced no report")
	for _, tr := range report.Transfers {
		if tr.Name == name {
			require.Positive(t, tr.CheckedCells, "transfer %q checked no cells", name)
			require.Zero(t, tr.MismatchedCells, "transfer %q: %s", name, tr.FirstMismatch)
			return tr
		}
	}
	require.Failf(t, "transfer missing from report", "%q", name)
	return nil
}
