package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-replay/internal/model"
)

const shippedRunFile = "../../config/backtest.yaml"

func localEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("LOG_LEVEL", "error")
	for _, k := range []string{"BROKER_API_KEY", "BROKER_CLIENT_CODE", "BROKER_PASSWORD", "BROKER_TOTP_SECRET"} {
		t.Setenv(k, "")
	}
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(func() {
		configPath, live, every, bars = "config/backtest.yaml", false, 0, 500
	})
	rootCmd.SetArgs(args)
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	return rootCmd.ExecuteContext(context.Background())
}

func TestCommandTree(t *testing.T) {
	c, _, err := rootCmd.Find([]string{"cycle"})
	require.NoError(t, err)
	assert.Same(t, cycleCmd, c)

	assert.Equal(t, "config/backtest.yaml", c.Flag("config").DefValue)
	assert.Equal(t, "false", c.Flag("live").DefValue)
	assert.Equal(t, "0s", c.Flag("every").DefValue)
	assert.Equal(t, "500", c.Flag("bars").DefValue)
	assert.Nil(t, rootCmd.Flags().Lookup("live"), "--live belongs to cycle only")
}

func TestCycle_InvalidRunFile(t *testing.T) {
	localEnv(t)
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("strategy: [unclosed\n"), 0o644))

	err := execute(t, "cycle", "--config", path)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCycle_LiveNeedsBrokerCredentials(t *testing.T) {
	localEnv(t)
	err := execute(t, "cycle", "--config", shippedRunFile, "--live")
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Contains(t, err.Error(), "required env var")
}
