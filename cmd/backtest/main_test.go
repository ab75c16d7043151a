package main

import (
	"context"
	"io"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-replay/internal/app"
	"trading-replay/internal/model"
)

const shippedRunFile = "../../config/backtest.yaml"

func localEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "ledger.db"))
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("LOG_LEVEL", "error")
}

// execute runs the root command with args, restoring the flag globals after.
func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Cleanup(func() {
		configPath, source = "config/backtest.yaml", app.SourceSQLite
		runFormat, runSave = "table", false
	})
	rootCmd.SetArgs(args)
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	return rootCmd.ExecuteContext(context.Background())
}

// builtin commands cobra adds on first Execute
var builtin = map[string]bool{"help": true, "completion": true}

func subcommands(c *cobra.Command) []string {
	var names []string
	for _, sub := range c.Commands() {
		if !builtin[sub.Name()] {
			names = append(names, sub.Name())
		}
	}
	sort.Strings(names)
	return names
}

func TestCommandTree(t *testing.T) {
	assert.Equal(t, []string{"run", "sync", "tune"}, subcommands(rootCmd))

	flags := map[string]string{
		"config": "config/backtest.yaml",
		"source": app.SourceSQLite,
	}
	for name, def := range flags {
		f := rootCmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, def, f.DefValue, name)
	}
	assert.Equal(t, "table", runCmd.Flags().Lookup("format").DefValue)
	assert.Equal(t, "false", runCmd.Flags().Lookup("save").DefValue)
	assert.Equal(t, "10", tuneCmd.Flags().Lookup("top").DefValue)

	for _, c := range rootCmd.Commands() {
		if !builtin[c.Name()] {
			assert.NotNil(t, c.RunE, c.Name())
		}
	}
}

func TestRun_MissingRunFile(t *testing.T) {
	localEnv(t)
	err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "absent.yaml")
}

func TestRun_UnknownSource(t *testing.T) {
	localEnv(t)
	err := execute(t, "run", "--config", shippedRunFile, "--source", "parquet")
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Contains(t, err.Error(), "parquet")
}

func TestSync_NeedsPostgres(t *testing.T) {
	localEnv(t)
	err := execute(t, "sync", "--config", shippedRunFile)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
}
