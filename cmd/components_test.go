// File: cmd/components_test.go
package cmd

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/failsafe"
)

// loadTestConfig goes through the same steps as the root command.
func loadTestConfig(t *testing.T) (*config.Config, error) {
	t.Helper()
	return LoadConfig("")
}

func TestResolvePaths(t *testing.T) {
	dir := isolate(t)
	t.Setenv("DESKPILOT_STORE_AUDIT_LOG", "~/logs/audit.jsonl")

	cfg, err := loadTestConfig(t)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, appDir, "abort"), cfg.Failsafe.AbortFile)
	assert.Equal(t, filepath.Join(dir, "logs", "audit.jsonl"), cfg.Store.AuditLog)
	assert.Equal(t, "", cfg.Logger.LogFile)
}

func TestInitializeComponents(t *testing.T) {
	dir := isolate(t)
	cfg, err := loadTestConfig(t)
	require.NoError(t, err)
	cfg.Failsafe.Signals = nil
	cfg.Store.AuditLog = filepath.Join(dir, "audit.jsonl")

	logger := zaptest.NewLogger(t)
	monitor := failsafe.NewMonitor(logger)

	comps, err := initializeComponents(context.Background(), cfg, monitor, logger)
	require.NoError(t, err)
	assert.NotNil(t, comps.Controller)
	assert.Same(t, monitor, comps.Monitor)
	assert.NotNil(t, comps.Store)
	assert.NotNil(t, comps.Audit)
	assert.False(t, comps.Controller.Running())
	assert.FileExists(t, cfg.Store.Path)
	comps.Shutdown()
}

func TestInitializeComponents_StoreDisabled(t *testing.T) {
	isolate(t)
	cfg, err := loadTestConfig(t)
	require.NoError(t, err)
	cfg.Store.Enabled = false

	logger := zaptest.NewLogger(t)
	comps, err := initializeComponents(context.Background(), cfg, failsafe.NewMonitor(logger), logger)
	require.NoError(t, err)
	assert.Nil(t, comps.Store)
	assert.Nil(t, comps.Audit)
	assert.NoFileExists(t, cfg.Store.Path)
	comps.Shutdown()
}

func TestInitializeComponents_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "remote LLM endpoint",
			mutate: func(c *config.Config) { c.LLM.Endpoint = "http://203.0.113.7:11434" },
			want:   "not a loopback address",
		},
		{
			name:   "no capture command",
			mutate: func(c *config.Config) { c.Vision.CaptureCommand = nil },
			want:   "capture",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			cfg, err := loadTestConfig(t)
			require.NoError(t, err)
			tt.mutate(cfg)

			logger := zaptest.NewLogger(t)
			_, err = initializeComponents(context.Background(), cfg, failsafe.NewMonitor(logger), logger)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRecoveryCutoff(t *testing.T) {
	assert.True(t, recoveryCutoff(0).IsZero(), "no session timeout means no age-based recovery")
	cutoff := recoveryCutoff(30 * time.Minute)
	assert.WithinDuration(t, time.Now().Add(-30*time.Minute), cutoff, time.Minute)
}
