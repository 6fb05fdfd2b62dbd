package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, shouldExit, err := Parse([]string{"plan.hcl"}, out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	require.NotNil(t, cfg)
	assert.Equal(t, "plan.hcl", cfg.PlanPath)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DryRun)
	assert.Equal(t, 0, cfg.HealthcheckPort)
}

func TestParsePlanPathSources(t *testing.T) {
	testCases := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "long flag",
			args: []string{"-plan", "a.hcl"},
			want: "a.hcl",
		},
		{
			name: "shorthand flag",
			args: []string{"-p", "b.hcl"},
			want: "b.hcl",
		},
		{
			name: "positional argument",
			args: []string{"c.hcl"},
			want: "c.hcl",
		},
		{
			name: "long flag wins over positional",
			args: []string{"-plan", "a.hcl", "c.hcl"},
			want: "a.hcl",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}

			cfg, shouldExit, err := Parse(tc.args, out)

			require.NoError(t, err)
			require.False(t, shouldExit)
			require.NotNil(t, cfg)
			assert.Equal(t, tc.want, cfg.PlanPath)
		})
	}
}

func TestParseAllOptions(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, shouldExit, err := Parse([]string{
		"-plan", "plans/",
		"-dry-run",
		"-log-format", "text",
		"-log-level", "debug",
		"-healthcheck-port", "8080",
	}, out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	require.NotNil(t, cfg)
	assert.Equal(t, "plans/", cfg.PlanPath)
	assert.True(t, cfg.DryRun)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.HealthcheckPort)
}

func TestParseNoArgsPrintsUsage(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, shouldExit, err := Parse(nil, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
	assert.Contains(t, out.String(), "PLAN_PATH")
}

func TestParseHelpFlag(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, shouldExit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	assert.True(t, shouldExit)
	assert.Nil(t, cfg)
	assert.Contains(t, out.String(), "Usage:")
}

func TestParseValidationErrors(t *testing.T) {
	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{
			name:    "invalid log format",
			args:    []string{"-log-format", "xml", "plan.hcl"},
			wantMsg: "invalid log-format",
		},
		{
			name:    "invalid log level",
			args:    []string{"-log-level", "verbose", "plan.hcl"},
			wantMsg: "invalid log-level",
		},
		{
			name:    "unknown flag",
			args:    []string{"--nope"},
			wantMsg: "flag provided but not defined",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := &bytes.Buffer{}

			cfg, shouldExit, err := Parse(tc.args, out)

			require.Error(t, err)
			assert.False(t, shouldExit)
			assert.Nil(t, cfg)

			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
		})
	}
}

func TestParseLogOptionsAreCaseInsensitive(t *testing.T) {
	out := &bytes.Buffer{}

	cfg, _, err := Parse([]string{"-log-format", "TEXT", "-log-level", "WARN", "plan.hcl"}, out)

	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "warn", cfg.LogLevel)
}
