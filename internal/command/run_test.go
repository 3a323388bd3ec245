package command

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/viewloop/internal/config"
	"github.com/joeycumines/viewloop/internal/terminal"
)

const pickScript = `
let eventLoop = require("event_loop");
let gui = require("gui");
let menu = require("gui/submenu").makeWith({ header: "Pick" }, ["One", "Two"]);
eventLoop.subscribe(menu.chosen, function (_sub, index, eventLoop) {
    console.log("chosen " + index);
    eventLoop.stop();
}, eventLoop);
gui.viewDispatcher.switchTo(menu);
eventLoop.run();
`

func headlessRun(cfg *config.Config, stdin io.Reader) *RunCommand {
	cmd := NewRunCommand(cfg)
	cmd.stdin = stdin
	cmd.isTerminal = func() bool { return false }
	return cmd
}

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.js")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func readLogRecords(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		out = append(out, rec)
	}
	return out
}

func TestRunCommand_HeadlessKeys(t *testing.T) {
	clearConfigEnv(t)
	script := writeScript(t, pickScript)
	logPath := filepath.Join(t.TempDir(), "log.json")

	cmd := headlessRun(config.NewConfig(), nil)
	cmd.flags.keys = "down,ok"
	cmd.flags.logFile = logPath
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(context.Background(), []string{script}, &stdout, &stderr))

	out := stdout.String()
	assert.True(t, strings.HasPrefix(out, "-- frame 1 rows"), out)
	assert.Contains(t, out, "Pick")
	assert.Contains(t, out, ">Two")
	assert.Contains(t, out, "-- frame 2 rows")

	var chosen bool
	for _, rec := range readLogRecords(t, logPath) {
		if rec["msg"] == "chosen 1" {
			chosen = true
			assert.Equal(t, "script", rec["source"])
			assert.NotEmpty(t, rec["run"])
		}
	}
	assert.True(t, chosen, "console output reaches the log file")
}

func TestRunCommand_HeadlessStdin(t *testing.T) {
	clearConfigEnv(t)
	script := writeScript(t, pickScript)
	cmd := headlessRun(config.NewConfig(), strings.NewReader("down\nbogus\nup,ok\n"))
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(context.Background(), []string{script}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), ">One")
}

func TestRunCommand_StdinEOFStops(t *testing.T) {
	clearConfigEnv(t)
	script := writeScript(t, pickScript)
	cmd := headlessRun(config.NewConfig(), strings.NewReader(""))
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(context.Background(), []string{script}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "-- frame 1")
}

func TestRunCommand_Eval(t *testing.T) {
	clearConfigEnv(t)
	cmd := headlessRun(config.NewConfig(), nil)
	cmd.eval = `let x = require("flipper").getName(); if (x !== "bench") throw new Error(x);`
	cfg := cmd.config
	cfg.Set("", "device-name", "bench")
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(context.Background(), nil, &stdout, &stderr))
	assert.Empty(t, stdout.String())

	cmd.eval = `throw new Error("boom")`
	err := cmd.Execute(context.Background(), nil, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestRunCommand_Timeout(t *testing.T) {
	clearConfigEnv(t)
	script := writeScript(t, pickScript)
	cmd := headlessRun(config.NewConfig(), nil)
	cmd.flags.keys = "down"
	cmd.flags.timeout = 50 * time.Millisecond
	var stdout, stderr bytes.Buffer
	start := time.Now()
	err := cmd.Execute(context.Background(), []string{script}, &stdout, &stderr)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRunCommand_Arguments(t *testing.T) {
	clearConfigEnv(t)
	var stdout, stderr bytes.Buffer
	cmd := headlessRun(config.NewConfig(), nil)
	require.Error(t, cmd.Execute(context.Background(), nil, &stdout, &stderr))
	require.Error(t, cmd.Execute(context.Background(), []string{"a.js", "b.js"}, &stdout, &stderr))

	err := cmd.Execute(context.Background(), []string{filepath.Join(t.TempDir(), "missing.js")}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script file not found")

	cmd.flags.keys = "sideways"
	err = cmd.Execute(context.Background(), []string{writeScript(t, pickScript)}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid -keys")
}

func TestRunCommand_InvalidSettings(t *testing.T) {
	clearConfigEnv(t)
	cfg := config.NewConfig()
	cfg.Set("display", "width", "2")
	cmd := headlessRun(cfg, nil)
	var stdout, stderr bytes.Buffer
	err := cmd.Execute(context.Background(), []string{writeScript(t, pickScript)}, &stdout, &stderr)
	var se *config.SettingsError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "display.width", se.Option)

	cmd = headlessRun(config.NewConfig(), nil)
	cmd.flags.logLevel = "chatty"
	err = cmd.Execute(context.Background(), []string{writeScript(t, pickScript)}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRunCommand_Terminal(t *testing.T) {
	clearConfigEnv(t)
	script := writeScript(t, pickScript)
	cmd := NewRunCommand(config.NewConfig())
	cmd.isTerminal = func() bool { return true }
	cmd.terminalOptions = []terminal.Option{terminal.WithInput(strings.NewReader(""))}
	cmd.flags.keys = "ok"

	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(context.Background(), []string{script}, &stdout, &stderr))
}

func TestDemoCommand(t *testing.T) {
	clearConfigEnv(t)
	cmd := NewDemoCommand(config.NewConfig())
	cmd.isTerminal = func() bool { return false }
	cmd.flags.keys = "back"
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "-- frame 1")
	assert.Contains(t, stdout.String(), "Choose a demo")
	assert.Contains(t, stdout.String(), ">Loading screen")

	require.Error(t, cmd.Execute(context.Background(), []string{"extra"}, &stdout, &stderr))
}
