package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/boxmotion/internal/app"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		args       []string
		want       *app.Config
		wantExit   bool
		wantErr    string
		wantOutput string
	}{
		{
			name: "positional path with defaults",
			args: []string{"--workers", "3", "scenarios/periodic.hcl"},
			want: &app.Config{ScenarioPath: "scenarios/periodic.hcl", Ranks: 2, Workers: 3, LogFormat: "json", LogLevel: "info", ReportFormat: "yaml"},
		},
		{
			name: "long flag wins over shorthand and positional",
			args: []string{"-config", "a.hcl", "-c", "b.hcl", "--ranks", "4", "--workers", "1", "--log-format", "TEXT", "--log-level", "debug", "--report-format", "json", "--healthcheck-port", "8080", "c.hcl"},
			want: &app.Config{ScenarioPath: "a.hcl", Ranks: 4, Workers: 1, LogFormat: "text", LogLevel: "debug", ReportFormat: "json", HealthcheckPort: 8080},
		},
		{
			name: "shorthand with watch",
			args: []string{"-c", "b.hcl", "--workers", "2", "--watch"},
			want: &app.Config{ScenarioPath: "b.hcl", Ranks: 2, Workers: 2, Watch: true, LogFormat: "json", LogLevel: "info", ReportFormat: "yaml"},
		},
		{name: "help", args: []string{"-h"}, wantExit: true, wantOutput: "Usage:"},
		{name: "no path prints usage", args: nil, wantExit: true, wantOutput: "SCENARIO_PATH"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "flag provided but not defined: -bogus"},
		{name: "bad log format", args: []string{"--log-format", "xml", "a.hcl"}, wantErr: "invalid log-format"},
		{name: "bad log level", args: []string{"--log-level", "loud", "a.hcl"}, wantErr: "invalid log-level"},
		{name: "zero ranks", args: []string{"--ranks", "0", "a.hcl"}, wantErr: "ranks must be at least 1"},
		{name: "bad report format", args: []string{"--report-format", "csv", "a.hcl"}, wantErr: `unknown report format "csv"`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer

			cfg, exit, err := Parse(tc.args, &out)

			if tc.wantErr != "" {
				require.Error(t, err)
				var exitErr *ExitError
				require.True(t, errors.As(err, &exitErr))
				assert.Equal(t, 2, exitErr.Code)
				assert.Contains(t, exitErr.Message, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantExit, exit)
			assert.Equal(t, tc.want, cfg)
			if tc.wantOutput != "" {
				assert.Contains(t, out.String(), tc.wantOutput)
			}
		})
	}
}
