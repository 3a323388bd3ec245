package command

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/viewloop/internal/config"
	"github.com/joeycumines/viewloop/internal/scripting"
)

// logging is the resolved logging setup of a script-executing command.
type logging struct {
	buffer *scripting.LogBuffer
	logger *slog.Logger
	file   io.Closer
}

// Close closes the log file, if any.
func (l *logging) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// newLogging builds the in-memory log buffer, teeing JSON records to the
// rotating log file when one is configured. Non-empty flag values take
// precedence over settings.
func newLogging(s *config.Settings, flagLevel, flagFile string) (*logging, error) {
	level := s.Level()
	if flagLevel != "" {
		if err := level.UnmarshalText([]byte(strings.ToLower(flagLevel))); err != nil {
			return nil, fmt.Errorf("invalid log level: %s", flagLevel)
		}
	}
	path := s.LogFile
	if flagFile != "" {
		path = flagFile
	}

	l := &logging{}
	var tee slog.Handler
	if path != "" {
		f, err := scripting.OpenLogFile(path, int64(s.LogMaxSizeMB)<<20, s.LogMaxFiles)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		l.file = f
		tee = slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	}
	l.buffer = scripting.NewLogBuffer(s.LogBuffer, level, tee)
	l.logger = slog.New(l.buffer)
	return l, nil
}

// dumpErrors writes the most recent warnings and errors to w.
func (l *logging) dumpErrors(w io.Writer, n int) {
	var picked []scripting.LogEntry
	for _, e := range l.buffer.Entries() {
		if e.Level >= slog.LevelWarn {
			picked = append(picked, e)
		}
	}
	if len(picked) > n {
		picked = picked[len(picked)-n:]
	}
	for _, e := range picked {
		_, _ = fmt.Fprintln(w, e.String())
	}
}
