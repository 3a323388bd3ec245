package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/viewloop/internal/config"
)

func TestHelpCommand(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	help := NewHelpCommand(r)
	r.Register(help)
	r.Register(NewVersionCommand("1.2.3"))
	r.Register(NewRunCommand(config.NewConfig()))

	var stdout, stderr bytes.Buffer
	require.NoError(t, help.Execute(context.Background(), nil, &stdout, &stderr))
	out := stdout.String()
	assert.Contains(t, out, "Usage: viewloop <command>")
	assert.Contains(t, out, "Display version information")
	assert.Less(t, strings.Index(out, "  help"), strings.Index(out, "  run"))

	stdout.Reset()
	require.NoError(t, help.Execute(context.Background(), []string{"run"}, &stdout, &stderr))
	out = stdout.String()
	assert.Contains(t, out, "Command: run")
	assert.Contains(t, out, "Usage: viewloop run [options] <script.js>")
	assert.Contains(t, out, "Flags:")
	assert.Contains(t, out, "-headless")
	assert.Contains(t, out, "-keys")

	stdout.Reset()
	require.NoError(t, help.Execute(context.Background(), []string{"version"}, &stdout, &stderr))
	assert.NotContains(t, stdout.String(), "Flags:")

	require.Error(t, help.Execute(context.Background(), []string{"missing"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Unknown command: missing")
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()
	cmd := NewVersionCommand("1.2.3")
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(context.Background(), nil, &stdout, &stderr))
	assert.Equal(t, "viewloop version 1.2.3\n", stdout.String())
	require.Error(t, cmd.Execute(context.Background(), []string{"extra"}, &stdout, &stderr))
}

func TestConfigCommand(t *testing.T) {
	clearConfigEnv(t)
	path := filepath.Join(t.TempDir(), "config")
	cfg := config.NewConfig()
	cmd := NewConfigCommand(cfg, path)
	ctx := context.Background()

	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(ctx, nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "log-level")
	assert.Contains(t, stdout.String(), "display.width")
	assert.Contains(t, stdout.String(), "32")

	stdout.Reset()
	require.NoError(t, cmd.Execute(ctx, []string{"display.height"}, &stdout, &stderr))
	assert.Equal(t, "display.height: 12\n", stdout.String())

	stdout.Reset()
	require.NoError(t, cmd.Execute(ctx, []string{"display.height", "20"}, &stdout, &stderr))
	assert.Equal(t, "Set configuration: display.height = 20\n", stdout.String())
	v, _ := cfg.Get("display", "height")
	assert.Equal(t, "20", v)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[display]\nheight 20\n", string(data))

	require.Error(t, cmd.Execute(ctx, []string{"display.height", "tall"}, &stdout, &stderr))
	require.Error(t, cmd.Execute(ctx, []string{"display.depth", "3"}, &stdout, &stderr))
	require.Error(t, cmd.Execute(ctx, []string{"display.depth"}, &stdout, &stderr))
	require.Error(t, cmd.Execute(ctx, []string{"a", "b", "c"}, &stdout, &stderr))
}

func TestConfigCommand_Validate(t *testing.T) {
	clearConfigEnv(t)
	ctx := context.Background()
	var stdout, stderr bytes.Buffer

	cmd := NewConfigCommand(config.NewConfig(), "")
	cmd.validate = true
	require.NoError(t, cmd.Execute(ctx, nil, &stdout, &stderr))
	assert.Equal(t, "Configuration is valid.\n", stdout.String())

	cfg, err := config.LoadFromReader(strings.NewReader("colour red\n[display]\nwidth 2\n"))
	require.NoError(t, err)
	cmd = NewConfigCommand(cfg, "")
	cmd.validate = true
	stdout.Reset()
	require.Error(t, cmd.Execute(ctx, nil, &stdout, &stderr))
	out := stdout.String()
	assert.Contains(t, out, "Configuration has 2 issue(s):")
	assert.Contains(t, out, "unknown option colour")
	assert.Contains(t, out, "display.width")
}

func TestConfigCommand_Schema(t *testing.T) {
	t.Parallel()
	cmd := NewConfigCommand(config.NewConfig(), "")
	cmd.schema = true
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(context.Background(), nil, &stdout, &stderr))
	assert.Equal(t, config.DefaultSchema().FormatHelp(), stdout.String())
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, o := range config.DefaultSchema().Options() {
		if o.EnvVar != "" {
			t.Setenv(o.EnvVar, "")
		}
	}
}
