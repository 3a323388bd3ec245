package scripting

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"
)

// LogEntry is one record kept by a LogBuffer.
type LogEntry struct {
	Time    time.Time         `json:"time"`
	Level   slog.Level        `json:"level"`
	Message string            `json:"message"`
	Attrs   map[string]string `json:"attrs"`
}

// String formats the entry as a single line.
func (e LogEntry) String() string {
	var b strings.Builder
	b.WriteString(e.Time.Format(time.TimeOnly))
	b.WriteByte(' ')
	b.WriteString(e.Level.String())
	b.WriteByte(' ')
	b.WriteString(e.Message)
	keys := make([]string, 0, len(e.Attrs))
	for k := range e.Attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(e.Attrs[k])
	}
	return b.String()
}

// logStore is the ring shared by a LogBuffer and the handlers derived from
// it with WithAttrs and WithGroup.
type logStore struct {
	mu      sync.RWMutex
	entries []LogEntry
	max     int
}

// LogBuffer is a slog.Handler keeping the most recent records in memory,
// optionally passing every record on to another handler (a log file).
type LogBuffer struct {
	store  *logStore
	level  slog.Leveler
	tee    slog.Handler
	attrs  []scopedAttr
	groups []string
}

// scopedAttr is an attribute added with WithAttrs, qualified by the groups
// open at the time.
type scopedAttr struct {
	prefix string
	attr   slog.Attr
}

// NewLogBuffer creates a buffer holding up to maxEntries records at or
// above level. tee may be nil.
func NewLogBuffer(maxEntries int, level slog.Leveler, tee slog.Handler) *LogBuffer {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	if level == nil {
		level = slog.LevelInfo
	}
	return &LogBuffer{
		store: &logStore{entries: make([]LogEntry, 0, maxEntries), max: maxEntries},
		level: level,
		tee:   tee,
	}
}

// Enabled implements slog.Handler.
func (h *LogBuffer) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *LogBuffer) Handle(ctx context.Context, record slog.Record) error {
	attrs := make(map[string]string, len(h.attrs)+record.NumAttrs())
	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		addAttr(attrs, a.prefix, a.attr)
	}
	record.Attrs(func(a slog.Attr) bool {
		addAttr(attrs, prefix, a)
		return true
	})

	s := h.store
	s.mu.Lock()
	s.entries = append(s.entries, LogEntry{
		Time:    record.Time,
		Level:   record.Level,
		Message: record.Message,
		Attrs:   attrs,
	})
	if over := len(s.entries) - s.max; over > 0 {
		s.entries = slices.Delete(s.entries, 0, over)
	}
	s.mu.Unlock()

	if h.tee != nil && h.tee.Enabled(ctx, record.Level) {
		return h.tee.Handle(ctx, record)
	}
	return nil
}

func addAttr(dst map[string]string, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, g := range a.Value.Group() {
			addAttr(dst, key, g)
		}
		return
	}
	dst[key] = a.Value.String()
}

// WithAttrs implements slog.Handler.
func (h *LogBuffer) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	prefix := strings.Join(h.groups, ".")
	c.attrs = slices.Clip(h.attrs)
	for _, a := range attrs {
		c.attrs = append(c.attrs, scopedAttr{prefix: prefix, attr: a})
	}
	if h.tee != nil {
		c.tee = h.tee.WithAttrs(attrs)
	}
	return &c
}

// WithGroup implements slog.Handler.
func (h *LogBuffer) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.groups = append(slices.Clip(h.groups), name)
	if h.tee != nil {
		c.tee = h.tee.WithGroup(name)
	}
	return &c
}

// Entries returns a copy of the buffered records, oldest first.
func (h *LogBuffer) Entries() []LogEntry {
	return h.Recent(0)
}

// Recent returns the last count records, or all of them if count <= 0.
func (h *LogBuffer) Recent(count int) []LogEntry {
	s := h.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if count <= 0 || count > len(s.entries) {
		count = len(s.entries)
	}
	return slices.Clone(s.entries[len(s.entries)-count:])
}

// Search returns the records whose message or attributes contain query,
// ignoring case.
func (h *LogBuffer) Search(query string) []LogEntry {
	query = strings.ToLower(query)
	s := h.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matches []LogEntry
	for _, e := range s.entries {
		if strings.Contains(strings.ToLower(e.Message), query) {
			matches = append(matches, e)
			continue
		}
		for k, v := range e.Attrs {
			if strings.Contains(strings.ToLower(k), query) || strings.Contains(strings.ToLower(v), query) {
				matches = append(matches, e)
				break
			}
		}
	}
	return matches
}

// Clear drops every buffered record.
func (h *LogBuffer) Clear() {
	s := h.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = s.entries[:0]
}
