package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error", "INFO"} {
		_, err := newLogger(lvl)
		require.NoError(t, err, lvl)
	}

	_, err := newLogger("loud")
	require.Error(t, err)
}

func TestServeCmd_Flags(t *testing.T) {
	cmd := newRootCmd()
	serve, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	for _, name := range []string{"addr", "pages", "log-level"} {
		require.NotNil(t, serve.Flags().Lookup(name), name)
	}
	require.Equal(t, ":8080", serve.Flags().Lookup("addr").DefValue)
}

func TestServeCmd_BadPagesDir(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"serve", "--pages", t.TempDir() + "/missing", "--log-level", "error"})

	require.Error(t, cmd.Execute())
}
