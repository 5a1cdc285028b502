package integration_tests

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/boxmotion/internal/app"
	"github.com/vk/boxmotion/internal/testutil"
)

const volumeScenario = `
domain {
  lo       = [0, 0, 0]
  hi       = [7, 7, 7]
  periodic = [true, false, false]
}

layout "cubes" {
  tile = [4, 4, 4]
}

layout "slabs" {
  tile = [8, 4, 2]
}
`

const volumeTransfers = `
transfer "refresh" {
  source     = "cubes"
  ghost      = [1, 1, 1]
  ncomp      = 3
  iterations = 3
  split      = true
}

transfer "reslab" {
  source = "cubes"
  dest   = "slabs"
  ghost  = [2, 0, 1]
  ncomp  = 2
}

transfer "reslab-trimmed" {
  source = "cubes"
  dest   = "slabs"
  ghost  = [1, 1, 1]
  trim   = true
}

transfer "back" {
  source       = "slabs"
  dest         = "cubes"
  source_ghost = [1, 1, 1]
  shift        = [4, 0, 0]
}
`

// TestScenario_ThreeDimensions runs every kind of transfer over a 3-D domain
// split across files.
func TestScenario_ThreeDimensions(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	files := map[string]string{
		"domain.hcl":         volumeScenario,
		"transfers/main.hcl": volumeTransfers,
	}

	// --- Act ---
	result := testutil.RunScenario(t, files, app.Config{Ranks: 3})

	// --- Assert ---
	require.NoError(t, result.Err)
	refresh := testutil.AssertTransferClean(t, result, "refresh")
	testutil.AssertTransferClean(t, result, "reslab")
	testutil.AssertTransferClean(t, result, "reslab-trimmed")
	testutil.AssertTransferClean(t, result, "back")

	assert.Equal(t, refresh.OutgoingItems, refresh.IncomingItems)
	assert.Positive(t, refresh.Messages)
}

// TestScenario_ProcessCountInvariance checks that the cells a scenario writes
// do not depend on how many ranks share the boxes.
func TestScenario_ProcessCountInvariance(t *testing.T) {
	t.Parallel()

	files := map[string]string{"main.hcl": volumeScenario + volumeTransfers}
	var baseline map[string]int

	for _, ranks := range []int{1, 2, 4, 7} {
		t.Run(fmt.Sprintf("%d ranks", ranks), func(t *testing.T) {
			result := testutil.RunScenario(t, files, app.Config{Ranks: ranks, Workers: 1})
			require.NoError(t, result.Err)

			written := map[string]int{}
			for _, tr := range result.Report().Transfers {
				written[tr.Name] = tr.LocalCells + tr.IncomingCells
				assert.Zero(t, tr.MismatchedCells, tr.Name)
			}
			if baseline == nil {
				baseline = written
				return
			}
			assert.Equal(t, baseline, written)
		})
	}
}

func TestScenario_InvalidScenarioIsRejected(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		hcl     string
		wantErr string
	}{
		{
			name:    "syntax error",
			hcl:     volumeScenario + "transfer \"x\" {\n",
			wantErr: "failed to parse HCL file",
		},
		{
			name: "exchange across layouts",
			hcl: volumeScenario + `
transfer "x" {
  source = "cubes"
  dest   = "slabs"
  mode   = "exchange"
}
`,
			wantErr: "exchange needs source and dest to be the same layout",
		},
		{
			name: "overlapping boxes",
			hcl: volumeScenario + `
layout "overlap" {
  box {
    lo   = [0, 0, 0]
    hi   = [3, 3, 3]
    proc = 0
  }
  box {
    lo   = [2, 2, 2]
    hi   = [5, 5, 5]
    proc = 1
  }
}
`,
			wantErr: "layout boxes overlap",
		},
		{
			name: "box past the periodic edge",
			hcl: volumeScenario + `
layout "wrapped" {
  box {
    lo   = [0, 0, 0]
    hi   = [3, 7, 7]
    proc = 0
  }
  box {
    lo   = [8, 0, 0]
    hi   = [11, 7, 7]
    proc = 1
  }
}
`,
			wantErr: `layout "wrapped" box 1: [8 0 0]..[11 7 7] lies outside the domain`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := testutil.RunScenario(t, map[string]string{"main.hcl": tc.hcl}, app.Config{})

			require.Error(t, result.Err)
			assert.Contains(t, result.Err.Error(), "application startup panicked")
			assert.Contains(t, result.Err.Error(), tc.wantErr)
			assert.Nil(t, result.Report())
		})
	}
}
