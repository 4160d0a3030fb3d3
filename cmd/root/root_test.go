package root_test

import (
	"os"
	"testing"

	"github.com/grez-lucas/numericable-scraper/cmd/root"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "numericable", root.Cmd.Use)
	assert.Contains(t, root.Cmd.Short, "fetch Numericable bills")
	assert.Contains(t, root.Cmd.Long, "Numericable customer portal")
	assert.NotNil(t, root.Cmd.Run)
	assert.NotNil(t, root.Cmd.PersistentPreRunE)
	assert.True(t, root.Cmd.SilenceUsage)
}

func TestRootCommand_Flags(t *testing.T) {
	if root.Cmd.PersistentFlags().Lookup("config") == nil {
		root.Init()
	}

	configFlag := root.Cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Empty(t, configFlag.DefValue)

	logLevelFlag := root.Cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, logLevelFlag)
}

func TestRootCommand_PreRunLoadsConfig(t *testing.T) {
	wd, wdErr := os.Getwd()
	require.NoError(t, wdErr)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NUMERICABLE_LOG_LEVEL", "warn")

	root.ConfigFile = ""
	root.LogLevel = "debug"
	t.Cleanup(func() { root.LogLevel = "" })

	err := root.Cmd.PersistentPreRunE(root.Cmd, nil)

	require.NoError(t, err)
	require.NotNil(t, root.Config)
	assert.Equal(t, "debug", root.Config.Log.Level)
	assert.Equal(t, "bills", root.Config.Bills.Folder)
}

func TestRootCommand_PreRunRejectsMissingFile(t *testing.T) {
	root.ConfigFile = "/nonexistent/config.yaml"
	t.Cleanup(func() { root.ConfigFile = "" })

	err := root.Cmd.PersistentPreRunE(root.Cmd, nil)

	assert.ErrorContains(t, err, "failed to read config file")
}
