package command

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/ecolyon/ecolyon/internal/config"
	"github.com/ecolyon/ecolyon/internal/infrastructure"
)

func baseConfig() config.Config {
	return config.Config{
		MaxConcurrency: 4,
		RequestTimeout: 15 * time.Second,
		WorkerInterval: time.Hour,
		FailurePolicy:  infrastructure.FailureAsZero,
	}
}

// runWithFlags runs the catalogue command with args, applying the flags to
// a base configuration, and returns that configuration.
func runWithFlags(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()

	cfg := baseConfig()
	app := NewApp("test", func(c *cli.Context) (Aggregator, error) {
		if err := ApplyFlags(c, &cfg); err != nil {
			return nil, err
		}
		return &fakeAggregator{}, nil
	})
	app.Writer = &bytes.Buffer{}
	app.ErrWriter = &bytes.Buffer{}

	err := app.Run(append(append([]string{"ecolyon"}, args...), "catalogue"))
	return cfg, err
}

func TestApplyFlags_Overrides(t *testing.T) {
	cfg, err := runWithFlags(t,
		"--wfs-url", "http://geoserver.local/ows",
		"--concurrency", "8",
		"--timeout", "3s",
		"--failure-policy", "strict",
	)
	require.NoError(t, err)

	assert.Equal(t, "http://geoserver.local/ows", cfg.WFSBaseURL)
	assert.Equal(t, 8, cfg.MaxConcurrency)
	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, infrastructure.FailureStrict, cfg.FailurePolicy)
}

func TestApplyFlags_Unset(t *testing.T) {
	cfg, err := runWithFlags(t)
	require.NoError(t, err)
	assert.Equal(t, baseConfig(), cfg)
}

func TestApplyFlags_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"negative timeout", []string{"--timeout", "-5s"}},
		{"zero timeout", []string{"--timeout", "0s"}},
		{"zero concurrency", []string{"--concurrency", "0"}},
		{"unknown policy", []string{"--failure-policy", "lenient"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runWithFlags(t, tt.args...)
			assert.Equal(t, 2, exitCode(t, err))
		})
	}
}
