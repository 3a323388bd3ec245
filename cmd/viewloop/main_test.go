package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/viewloop/internal/config"
)

func runArgs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun(t *testing.T) {
	t.Setenv(config.EnvConfigPath, filepath.Join(t.TempDir(), "config"))

	t.Run("no command shows help", func(t *testing.T) {
		out, _, err := runArgs(t)
		require.NoError(t, err)
		assert.Contains(t, out, "Usage: viewloop <command>")
		for _, name := range []string{"config", "demo", "help", "kinds", "run", "version"} {
			assert.Contains(t, out, "  "+name)
		}
	})

	t.Run("help flag", func(t *testing.T) {
		out, _, err := runArgs(t, "--help")
		require.NoError(t, err)
		assert.Contains(t, out, "Commands:")
	})

	t.Run("version", func(t *testing.T) {
		out, _, err := runArgs(t, "version")
		require.NoError(t, err)
		assert.Equal(t, "viewloop version "+version+"\n", out)
	})

	t.Run("unknown command", func(t *testing.T) {
		_, errOut, err := runArgs(t, "frobnicate")
		require.Error(t, err)
		assert.Contains(t, errOut, "Unknown command: frobnicate")
	})

	t.Run("config persists", func(t *testing.T) {
		_, _, err := runArgs(t, "config", "display.width", "40")
		require.NoError(t, err)
		data, err := os.ReadFile(os.Getenv(config.EnvConfigPath))
		require.NoError(t, err)
		assert.Equal(t, "[display]\nwidth 40\n", string(data))

		out, _, err := runArgs(t, "config", "display.width")
		require.NoError(t, err)
		assert.Equal(t, "display.width: 40\n", out)
	})

	t.Run("demo exits on back", func(t *testing.T) {
		out, _, err := runArgs(t, "demo", "-headless", "-keys", "back")
		require.NoError(t, err)
		assert.Contains(t, out, "-- frame 1")
	})
}
