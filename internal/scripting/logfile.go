package scripting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// LogFile is an append-only log file that rotates by size. When a write
// would grow the file past its limit, path.N is renamed to path.N+1 (the
// oldest beyond keep is removed), path becomes path.1, and a fresh file is
// opened. A single record is never split across files.
type LogFile struct {
	mu    sync.Mutex
	path  string
	limit int64
	keep  int
	size  int64
	f     *os.File
}

var _ io.WriteCloser = (*LogFile)(nil)

// OpenLogFile opens (creating parents) the log file at path. limit is the
// rotation size in bytes, at least 1 KiB. keep is the number of rotated
// files retained; zero discards the old file on rotation.
func OpenLogFile(path string, limit int64, keep int) (*LogFile, error) {
	if limit < 1024 {
		limit = 1024
	}
	keep = max(keep, 0)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("scripting: log file: %w", err)
	}
	l := &LogFile{path: path, limit: limit, keep: keep}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *LogFile) open() error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("scripting: log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("scripting: log file: %w", err)
	}
	l.f, l.size = f, info.Size()
	return nil
}

// Write appends p, rotating first if p would not fit.
func (l *LogFile) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return 0, os.ErrClosed
	}
	if l.size > 0 && l.size+int64(len(p)) > l.limit {
		if err := l.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := l.f.Write(p)
	l.size += int64(n)
	return n, err
}

// Close closes the file. Further writes fail with os.ErrClosed.
func (l *LogFile) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}

func (l *LogFile) rotated(n int) string { return l.path + "." + strconv.Itoa(n) }

func (l *LogFile) rotate() error {
	if err := l.f.Close(); err != nil {
		return fmt.Errorf("scripting: log rotate: %w", err)
	}
	l.f = nil
	if l.keep == 0 {
		_ = os.Remove(l.path)
	} else {
		_ = os.Remove(l.rotated(l.keep))
		for n := l.keep - 1; n >= 1; n-- {
			if _, err := os.Stat(l.rotated(n)); err == nil {
				_ = os.Rename(l.rotated(n), l.rotated(n+1))
			}
		}
		if err := os.Rename(l.path, l.rotated(1)); err != nil {
			return fmt.Errorf("scripting: log rotate: %w", err)
		}
	}
	return l.open()
}
