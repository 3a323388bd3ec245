package view

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/joeycumines/viewloop/internal/eventloop"
	"github.com/joeycumines/viewloop/internal/input"
	"github.com/rivo/uniseg"
)

// staticState shows fixed lines and consumes nothing.
type staticState struct {
	lines []string
}

func (staticState) update(*View, string) {}

func (staticState) handleInput(*View, input.Event) bool { return false }

func (s staticState) frame(*View) Frame {
	var f Frame
	for _, l := range s.lines {
		f.Lines = append(f.Lines, Line{Text: l})
	}
	return f
}

func textLines(s string) []Line {
	if s == "" {
		return nil
	}
	var out []Line
	for l := range strings.SplitSeq(s, "\n") {
		out = append(out, Line{Text: l})
	}
	return out
}

type textBoxState struct {
	lines  []string
	offset int
}

func newTextBoxState(*View) state { return &textBoxState{} }

func (s *textBoxState) update(v *View, changed string) {
	p := v.props.(*textBoxProps)
	s.lines = wrapText(p.Text, v.factory.viewport.Width)
	s.offset = 0
	if p.Focus == "end" {
		s.offset = s.maxOffset(v)
	}
}

func (s *textBoxState) maxOffset(v *View) int {
	return max(len(s.lines)-v.factory.viewport.Height, 0)
}

func (s *textBoxState) handleInput(v *View, ev input.Event) bool {
	d := vertical(ev.Key)
	if d == 0 {
		return false
	}
	if ev.IsNav() {
		if next := min(max(s.offset+d, 0), s.maxOffset(v)); next != s.offset {
			s.offset = next
			v.changed()
		}
	}
	return true
}

func (s *textBoxState) frame(*View) Frame {
	f := Frame{Offset: s.offset}
	for _, l := range s.lines {
		f.Lines = append(f.Lines, Line{Text: l})
	}
	return f
}

// wrapText breaks s into lines no wider than width cells, splitting on
// spaces where possible and inside words otherwise.
func wrapText(s string, width int) []string {
	if width <= 0 {
		width = 1
	}
	var out []string
	for para := range strings.SplitSeq(s, "\n") {
		var line strings.Builder
		lineWidth := 0
		flush := func() {
			out = append(out, line.String())
			line.Reset()
			lineWidth = 0
		}
		for _, word := range strings.Fields(para) {
			w := uniseg.StringWidth(word)
			if lineWidth > 0 && lineWidth+1+w <= width {
				line.WriteByte(' ')
				line.WriteString(word)
				lineWidth += 1 + w
				continue
			}
			if lineWidth > 0 {
				flush()
			}
			for w > width {
				head, rest := splitWidth(word, width)
				out = append(out, head)
				word, w = rest, uniseg.StringWidth(rest)
			}
			line.WriteString(word)
			lineWidth = w
		}
		flush()
	}
	return out
}

// splitWidth splits s after the last grapheme cluster that fits in width
// cells. At least one cluster is always taken.
func splitWidth(s string, width int) (string, string) {
	end, used := 0, 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		var w int
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if used+w > width && end > 0 {
			break
		}
		end += len(cluster)
		used += w
	}
	return s[:end], s[end:]
}

type dialogState struct{}

func (dialogState) update(*View, string) {}

func (dialogState) handleInput(v *View, ev input.Event) bool {
	p := v.props.(*dialogProps)
	var name, label string
	switch ev.Key {
	case input.KeyLeft:
		name, label = "left", p.Left
	case input.KeyOk:
		name, label = "center", p.Center
	case input.KeyRight:
		name, label = "right", p.Right
	default:
		return false
	}
	if label == "" {
		return false
	}
	if ev.Type == input.TypeShort {
		v.publish("input", name)
	}
	return true
}

func (dialogState) frame(v *View) Frame {
	p := v.props.(*dialogProps)
	return Frame{
		Header:  p.Header,
		Lines:   textLines(p.Text),
		Buttons: Buttons{Left: p.Left, Center: p.Center, Right: p.Right},
	}
}

// popupState runs a oneshot loop timer while the popup is shown and its
// timeout is positive. Assigning timeout while shown restarts the timer;
// hiding the popup disarms it.
type popupState struct {
	timer *eventloop.Contract
}

func newPopupState(*View) state { return &popupState{} }

func (s *popupState) update(v *View, changed string) {
	if changed != "timeout" {
		return
	}
	s.destroy()
	if v.shown {
		s.arm(v)
	}
}

func (s *popupState) enter(v *View) { s.arm(v) }

func (s *popupState) exit(*View) { s.destroy() }

func (s *popupState) arm(v *View) {
	s.destroy()
	ms := v.props.(*popupProps).Timeout
	if ms <= 0 {
		return
	}
	loop := v.factory.loop
	c, err := loop.Timer(eventloop.Oneshot, time.Duration(ms)*time.Millisecond)
	if err == nil {
		_, err = loop.Subscribe(c, func(*eventloop.Subscription, any, []any) ([]any, error) {
			s.timer = nil
			v.publish("timeout", nil)
			return nil, nil
		})
	}
	if err != nil {
		v.factory.logger.Error("view: failed to arm popup timeout", slog.Any("error", err))
		return
	}
	s.timer = c
}

func (s *popupState) destroy() {
	if s.timer != nil {
		_ = s.timer.Destroy()
		s.timer = nil
	}
}

func (*popupState) handleInput(*View, input.Event) bool { return false }

func (*popupState) frame(v *View) Frame {
	p := v.props.(*popupProps)
	return Frame{Header: p.Header, Lines: textLines(p.Text)}
}

type widgetState struct{}

func newWidgetState(*View) state { return widgetState{} }

func (widgetState) update(*View, string) {}

func (widgetState) handleInput(v *View, ev input.Event) bool {
	var side string
	switch ev.Key {
	case input.KeyLeft:
		side = "left"
	case input.KeyOk:
		side = "center"
	case input.KeyRight:
		side = "right"
	default:
		return false
	}
	for _, c := range v.children {
		if b, ok := c.(WidgetButton); ok && b.Button == side {
			v.publish("button", ButtonEvent{Key: ev.Key, Type: ev.Type})
			return true
		}
	}
	return false
}

func (widgetState) frame(v *View) Frame {
	type placed struct {
		x, y int
		line Line
	}
	var items []placed
	var f Frame
	for _, c := range v.children {
		switch c := c.(type) {
		case WidgetString:
			items = append(items, placed{c.X, c.Y, Line{Text: c.Text}})
		case WidgetTextBox:
			items = append(items, placed{c.X, c.Y, Line{Text: c.Text}})
		case WidgetTextScroll:
			items = append(items, placed{c.X, c.Y, Line{Text: c.Text}})
		case WidgetIcon:
			name := v.iconName(c.IconData)
			items = append(items, placed{c.X, c.Y, Line{Icon: c.IconData, IconName: name}})
		case WidgetButton:
			switch c.Button {
			case "left":
				f.Buttons.Left = c.Text
			case "center":
				f.Buttons.Center = c.Text
			case "right":
				f.Buttons.Right = c.Text
			}
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].y != items[j].y {
			return items[i].y < items[j].y
		}
		return items[i].x < items[j].x
	})
	for _, it := range items {
		f.Lines = append(f.Lines, it.line)
	}
	return f
}
