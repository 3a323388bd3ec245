package view

import (
	"fmt"
	"math"

	"github.com/joeycumines/viewloop/internal/input"
)

// buttonPanelState navigates a sparse matrix of buttons. Only button
// children receive indices, numbered in declaration order from 0 on every
// SetChildren.
type buttonPanelState struct {
	buttons []PanelButton
	sel     int
}

func newButtonPanelState(*View) state { return &buttonPanelState{sel: -1} }

func (s *buttonPanelState) update(v *View, changed string) {
	if changed != "" {
		return
	}
	s.buttons = s.buttons[:0]
	for _, c := range v.children {
		if b, ok := c.(PanelButton); ok {
			s.buttons = append(s.buttons, b)
		}
	}
	s.sel = -1
	if len(s.buttons) > 0 {
		s.sel = 0
	}
}

func (s *buttonPanelState) handleInput(v *View, ev input.Event) bool {
	dx, dy := horizontal(ev.Key), vertical(ev.Key)
	switch {
	case dx != 0 || dy != 0:
		if ev.IsNav() && s.sel >= 0 {
			p := v.props.(*buttonPanelProps)
			if next := s.move(dx, dy, p.MatrixSizeX, p.MatrixSizeY); next != s.sel {
				s.sel = next
				v.changed()
			}
		}
		return true
	case ev.Key == input.KeyOk:
		if s.sel >= 0 {
			v.publish("input", IndexedInput{Index: s.sel, Type: ev.Type})
		}
		return true
	}
	return false
}

// move scans the other matrix columns (or rows) in the direction of travel,
// wrapping, and within the first band holding a button picks the one nearest
// to the current button in pixel space. The current band is never a target,
// so a horizontal move never lands on a button of the same column.
func (s *buttonPanelState) move(dx, dy, sizeX, sizeY int) int {
	cur := s.buttons[s.sel]
	size := sizeY
	if dx != 0 {
		size = sizeX
	}
	for step := 1; step < size; step++ {
		best, bestDist := -1, math.Inf(1)
		for i, b := range s.buttons {
			if i == s.sel {
				continue
			}
			if dx != 0 && b.MatrixX != wrapIndex(cur.MatrixX+dx*step, sizeX) {
				continue
			}
			if dy != 0 && b.MatrixY != wrapIndex(cur.MatrixY+dy*step, sizeY) {
				continue
			}
			if d := math.Hypot(float64(b.X-cur.X), float64(b.Y-cur.Y)); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			return best
		}
	}
	return s.sel
}

func (s *buttonPanelState) frame(v *View) Frame {
	var f Frame
	n := 0
	for _, c := range v.children {
		switch c := c.(type) {
		case PanelButton:
			selected := n == s.sel
			h := c.Icon
			if selected {
				h = c.IconSelected
			}
			name := v.iconName(h)
			if name == "" {
				name = fmt.Sprintf("button %d", n)
			}
			f.Lines = append(f.Lines, Line{
				Text:     fmt.Sprintf("%s (%d,%d)", name, c.MatrixX, c.MatrixY),
				Icon:     h,
				IconName: name,
				Selected: selected,
			})
			n++
		case PanelLabel:
			f.Lines = append(f.Lines, Line{Text: c.Text})
		case PanelIcon:
			f.Lines = append(f.Lines, Line{Text: "[" + v.iconName(c.Icon) + "]", Icon: c.Icon, IconName: v.iconName(c.Icon)})
		}
	}
	return f
}
