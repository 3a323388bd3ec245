package view

import (
	"fmt"

	"github.com/joeycumines/viewloop/internal/input"
)

func wrapIndex(i, n int) int { return ((i % n) + n) % n }

// vertical returns the selection step for up/down, 0 for other keys.
func vertical(k input.Key) int {
	switch k {
	case input.KeyUp:
		return -1
	case input.KeyDown:
		return 1
	}
	return 0
}

func horizontal(k input.Key) int {
	switch k {
	case input.KeyLeft:
		return -1
	case input.KeyRight:
		return 1
	}
	return 0
}

// menuState serves submenu and menu: a wrapping selection that publishes
// the chosen index on ok.
type menuState struct {
	sel int
}

func newSubmenuState(*View) state { return &menuState{} }

func newMenuState(*View) state { return &menuState{} }

func (s *menuState) update(v *View, changed string) {
	if changed == "" {
		s.sel = 0
	}
}

func (s *menuState) handleInput(v *View, ev input.Event) bool {
	n := len(v.children)
	if d := vertical(ev.Key); d != 0 {
		if ev.IsNav() && n > 0 {
			s.sel = wrapIndex(s.sel+d, n)
			v.changed()
		}
		return true
	}
	if ev.Key == input.KeyOk {
		if ev.Type == input.TypeShort && n > 0 {
			v.publish("chosen", s.sel)
		}
		return true
	}
	return false
}

func (s *menuState) frame(v *View) Frame {
	var f Frame
	if p, ok := v.props.(*headerProps); ok {
		f.Header = p.Header
	}
	for i, c := range v.children {
		l := Line{Selected: i == s.sel}
		switch c := c.(type) {
		case string:
			l.Text = c
		case MenuItem:
			l.Text = c.Label
			l.Icon = c.Icon
			l.IconName = v.iconName(c.Icon)
		}
		f.Lines = append(f.Lines, l)
	}
	return f
}

// buttonMenuState forwards every ok input type for the selected item.
type buttonMenuState struct {
	sel int
}

func newButtonMenuState(*View) state { return &buttonMenuState{} }

func (s *buttonMenuState) update(v *View, changed string) {
	if changed == "" {
		s.sel = 0
	}
}

func (s *buttonMenuState) handleInput(v *View, ev input.Event) bool {
	n := len(v.children)
	if d := vertical(ev.Key); d != 0 {
		if ev.IsNav() && n > 0 {
			s.sel = wrapIndex(s.sel+d, n)
			v.changed()
		}
		return true
	}
	if ev.Key == input.KeyOk {
		if n > 0 {
			v.publish("input", IndexedInput{Index: s.sel, Type: ev.Type})
		}
		return true
	}
	return false
}

func (s *buttonMenuState) frame(v *View) Frame {
	f := Frame{Header: v.props.(*headerProps).Header}
	for i, c := range v.children {
		item := c.(ButtonMenuItem)
		text := "[" + item.Label + "]"
		if item.Type == "control" {
			text = "<" + item.Label + ">"
		}
		f.Lines = append(f.Lines, Line{Text: text, Selected: i == s.sel})
	}
	return f
}

// viListState tracks the selected item and each item's variant.
type viListState struct {
	sel    int
	values []int
}

func newViListState(*View) state { return &viListState{} }

func (s *viListState) update(v *View, changed string) {
	if changed != "" {
		return
	}
	s.sel = 0
	s.values = make([]int, len(v.children))
	for i, c := range v.children {
		s.values[i] = c.(ViItem).DefaultSelected
	}
}

func (s *viListState) handleInput(v *View, ev input.Event) bool {
	n := len(v.children)
	if d := vertical(ev.Key); d != 0 {
		if ev.IsNav() && n > 0 {
			s.sel = wrapIndex(s.sel+d, n)
			v.changed()
		}
		return true
	}
	if d := horizontal(ev.Key); d != 0 {
		if !ev.IsNav() || n == 0 {
			return true
		}
		variants := len(v.children[s.sel].(ViItem).Variants)
		next := min(max(s.values[s.sel]+d, 0), variants-1)
		if next >= 0 && next != s.values[s.sel] {
			s.values[s.sel] = next
			v.changed()
			v.publish("valueUpdate", ValueUpdate{ItemIndex: s.sel, ValueIndex: next})
		}
		return true
	}
	return ev.Key == input.KeyOk
}

func (s *viListState) frame(v *View) Frame {
	var f Frame
	for i, c := range v.children {
		item := c.(ViItem)
		text := item.Label
		if len(item.Variants) > 0 {
			text = fmt.Sprintf("%s  < %s >", item.Label, item.Variants[s.values[i]])
		}
		f.Lines = append(f.Lines, Line{Text: text, Selected: i == s.sel})
	}
	return f
}
