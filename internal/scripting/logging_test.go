package scripting

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBuffer_RingAndLevel(t *testing.T) {
	t.Parallel()
	buf := NewLogBuffer(3, slog.LevelInfo, nil)
	logger := slog.New(buf)

	logger.Debug("hidden")
	for _, msg := range []string{"a", "b", "c", "d"} {
		logger.Info(msg)
	}
	entries := buf.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "b", entries[0].Message)
	assert.Equal(t, "d", entries[2].Message)

	recent := buf.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "c", recent[0].Message)

	buf.Clear()
	assert.Empty(t, buf.Entries())
}

func TestLogBuffer_AttrsAndGroups(t *testing.T) {
	t.Parallel()
	buf := NewLogBuffer(10, slog.LevelDebug, nil)
	logger := slog.New(buf).With(slog.String("run", "r1")).WithGroup("loop")
	logger.Info("tick", slog.Int("n", 3), slog.Group("timer", slog.String("kind", "periodic")))

	entries := buf.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]string{
		"run":             "r1",
		"loop.n":          "3",
		"loop.timer.kind": "periodic",
	}, entries[0].Attrs)
	assert.True(t, strings.HasSuffix(entries[0].String(), "INFO tick loop.n=3 loop.timer.kind=periodic run=r1"))
}

func TestLogBuffer_Search(t *testing.T) {
	t.Parallel()
	buf := NewLogBuffer(10, slog.LevelDebug, nil)
	logger := slog.New(buf)
	logger.Info("Contract destroyed", slog.String("contract", "timer"))
	logger.Info("other", slog.String("view", "submenu"))
	logger.Info("unrelated")

	assert.Len(t, buf.Search("CONTRACT"), 1)
	got := buf.Search("submenu")
	require.Len(t, got, 1)
	assert.Equal(t, "other", got[0].Message)
	assert.Empty(t, buf.Search("nothing"))
}

func TestLogBuffer_Tee(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	tee := slog.NewJSONHandler(&out, &slog.HandlerOptions{Level: slog.LevelWarn})
	buf := NewLogBuffer(10, slog.LevelDebug, tee)
	logger := slog.New(buf).With(slog.String("run", "r2"))

	logger.Info("buffered only")
	logger.Warn("both")

	assert.Len(t, buf.Entries(), 2)
	assert.NotContains(t, out.String(), "buffered only")
	assert.Contains(t, out.String(), `"msg":"both"`)
	assert.Contains(t, out.String(), `"run":"r2"`)
}

func TestLogBuffer_Concurrent(t *testing.T) {
	t.Parallel()
	buf := NewLogBuffer(50, slog.LevelInfo, nil)
	logger := slog.New(buf)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				logger.Info("x")
				_ = buf.Recent(5)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, buf.Entries(), 50)
}
