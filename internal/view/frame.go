package view

import "github.com/joeycumines/viewloop/internal/icon"

// Frame is the render model of a view: what a display backend needs to draw
// it, independent of pixels.
type Frame struct {
	Kind   string
	Header string
	Lines  []Line
	// Offset is the first line to show when Lines overflow the screen.
	Offset  int
	Buttons Buttons
	// Status is a transient hint, such as a rejected input.
	Status string
}

// Line is one row of body content.
type Line struct {
	Text     string
	Icon     icon.Handle
	IconName string
	Selected bool
}

// Buttons are the labels of the soft buttons along the bottom edge.
type Buttons struct {
	Left   string
	Center string
	Right  string
}

// IsZero reports whether no button is shown.
func (b Buttons) IsZero() bool { return b == Buttons{} }

// Selected returns the index of the first selected line, or -1.
func (f Frame) Selected() int {
	for i, l := range f.Lines {
		if l.Selected {
			return i
		}
	}
	return -1
}
