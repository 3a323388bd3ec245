package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/joeycumines/viewloop/internal/input"
	"github.com/joeycumines/viewloop/internal/render"
)

// Headless returns a render.Output that prints every frame that changed
// anything to w, separated by a rule naming the changed rows.
func Headless(w io.Writer) render.Output {
	var (
		mu sync.Mutex
		n  int
	)
	return func(text string, d render.Diff) {
		if d.Empty() {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		n++
		fmt.Fprintf(w, "-- frame %d rows %v\n%s\n", n, d.Lines, text)
	}
}

// ParseKeys parses a comma separated key script such as
// "down,down,ok,long:back" into the raw events a driver would emit.
func ParseKeys(s string) ([]input.Event, error) {
	var events []input.Event
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		hold := false
		if name, ok := strings.CutPrefix(part, "long:"); ok {
			part, hold = name, true
		}
		k, err := input.ParseKey(part)
		if err != nil {
			return nil, err
		}
		if hold {
			events = append(events, input.Hold(k)...)
		} else {
			events = append(events, input.Click(k)...)
		}
	}
	return events, nil
}
