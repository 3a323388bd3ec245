// Package render draws view frames onto a fixed grid of character cells,
// standing in for the device framebuffer.
//
// The layout is fixed: a header row, a rule, the body, a status row and the
// soft button bar. The body has a one cell selection gutter on the left and
// a scroll marker on the right.
package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/joeycumines/viewloop/internal/view"
)

const (
	// DefaultWidth is the default screen width in cells.
	DefaultWidth = 32
	// DefaultHeight is the default screen height in cells.
	DefaultHeight = 12

	// rows outside the body: header, rule, status, buttons
	chromeRows = 4
	minWidth   = 8
	minHeight  = chromeRows + 1
)

// Diff lists the rows that changed between two consecutive frames.
type Diff struct {
	Lines []int
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool { return len(d.Lines) == 0 }

// Styles are applied when the framebuffer is turned into display text.
type Styles struct {
	Header   lipgloss.Style
	Rule     lipgloss.Style
	Selected lipgloss.Style
	Status   lipgloss.Style
	Buttons  lipgloss.Style
	Thumb    lipgloss.Style
	Track    lipgloss.Style
	Border   lipgloss.Style
}

// DefaultStyles returns the styles used unless WithStyles is given.
func DefaultStyles() Styles {
	return Styles{
		Header:   lipgloss.NewStyle().Bold(true),
		Rule:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Selected: lipgloss.NewStyle().Reverse(true),
		Status:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		Buttons:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Thumb:    lipgloss.NewStyle().Foreground(lipgloss.Color("57")),
		Track:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		Border:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("214")),
	}
}

// Output receives every drawn frame: the styled display text and the rows
// that changed.
type Output func(text string, diff Diff)

// Screen is a text framebuffer. It implements gui.Renderer.
type Screen struct {
	width  int
	height int
	border bool
	styles Styles
	output Output

	mu   sync.Mutex
	rows []row
	text string
}

// row is one framebuffer line: plain cells plus the style to draw it with.
type row struct {
	text  string
	style rowStyle
	// marker is the scroll column, ' ' when absent
	marker rune
}

type rowStyle int

const (
	rowPlain rowStyle = iota
	rowHeader
	rowRule
	rowSelected
	rowStatus
	rowButtons
)

// Option configures a Screen.
type Option func(*Screen)

// WithSize sets the screen size in cells. Sizes below the minimum are
// raised to it.
func WithSize(width, height int) Option {
	return func(s *Screen) {
		s.width = max(width, minWidth)
		s.height = max(height, minHeight)
	}
}

// WithBorder draws a border around the display text.
func WithBorder(border bool) Option {
	return func(s *Screen) { s.border = border }
}

// WithStyles replaces the default styles.
func WithStyles(styles Styles) Option {
	return func(s *Screen) { s.styles = styles }
}

// WithOutput sets the function receiving every drawn frame.
func WithOutput(out Output) Option {
	return func(s *Screen) { s.output = out }
}

// New creates a blank screen.
func New(opts ...Option) *Screen {
	s := &Screen{
		width:  DefaultWidth,
		height: DefaultHeight,
		styles: DefaultStyles(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Viewport returns the body area available to wrapping and paging views.
func (s *Screen) Viewport() view.Viewport {
	return view.Viewport{Width: s.width - 2, Height: s.height - chromeRows}
}

// Render draws f and passes the result to the output, if any.
func (s *Screen) Render(f view.Frame) error {
	text, diff := s.Draw(f)
	if s.output != nil {
		s.output(text, diff)
	}
	return nil
}

// Draw replaces the framebuffer with f, returning the display text and the
// rows that differ from the previous frame.
func (s *Screen) Draw(f view.Frame) (string, Diff) {
	rows := s.layout(f)

	s.mu.Lock()
	defer s.mu.Unlock()
	var diff Diff
	for i, r := range rows {
		if i >= len(s.rows) || s.rows[i] != r {
			diff.Lines = append(diff.Lines, i)
		}
	}
	s.rows = rows
	s.text = s.style(rows)
	return s.text, diff
}

// Lines returns the unstyled framebuffer rows, each exactly the screen
// width wide.
func (s *Screen) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.rows))
	for i, r := range s.rows {
		out[i] = r.plain()
	}
	return out
}

// String returns the display text of the last frame.
func (s *Screen) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

func (r row) plain() string {
	return r.text + string(r.marker)
}

func (s *Screen) layout(f view.Frame) []row {
	inner := s.width - 1
	body := s.height - chromeRows
	rows := make([]row, 0, s.height)

	header := f.Header
	if header == "" {
		header = f.Kind
	}
	rows = append(rows,
		row{text: fit(header, inner), style: rowHeader, marker: ' '},
		row{text: strings.Repeat("─", inner), style: rowRule, marker: '─'},
	)

	start := visibleStart(f, body)
	top, height := thumb(len(f.Lines), body, start)
	scrolling := len(f.Lines) > body
	for i := range body {
		r := row{text: strings.Repeat(" ", inner), marker: ' '}
		if n := start + i; n < len(f.Lines) {
			r.text = fit(lineText(f.Lines[n]), inner)
			if f.Lines[n].Selected {
				r.style = rowSelected
			}
		}
		if scrolling {
			r.marker = '│'
			if i >= top && i < top+height {
				r.marker = '█'
			}
		}
		rows = append(rows, r)
	}

	rows = append(rows,
		row{text: fit(f.Status, inner), style: rowStatus, marker: ' '},
		row{text: buttonBar(f.Buttons, inner), style: rowButtons, marker: ' '},
	)
	return rows
}

// visibleStart picks the first body line, honouring the frame's offset but
// keeping the selected line on screen.
func visibleStart(f view.Frame, body int) int {
	start := f.Offset
	if sel := f.Selected(); sel >= 0 {
		if sel < start {
			start = sel
		} else if sel >= start+body {
			start = sel - body + 1
		}
	}
	return clamp(start, 0, max(len(f.Lines)-body, 0))
}

func lineText(l view.Line) string {
	prefix := " "
	if l.Selected {
		prefix = ">"
	}
	if l.IconName != "" {
		return fmt.Sprintf("%s[%s] %s", prefix, l.IconName, l.Text)
	}
	return prefix + l.Text
}

// fit truncates or pads s to exactly width cells.
func fit(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}

// buttonBar lays out the soft buttons: left flush left, right flush right
// and center in the middle. Labels that do not fit are dropped from the
// center outwards.
func buttonBar(b view.Buttons, width int) string {
	var left, center, right string
	if b.Left != "" {
		left = "< " + b.Left
	}
	if b.Center != "" {
		center = "[" + b.Center + "]"
	}
	if b.Right != "" {
		right = b.Right + " >"
	}
	lw, cw, rw := runewidth.StringWidth(left), runewidth.StringWidth(center), runewidth.StringWidth(right)
	if lw+cw+rw+2 > width {
		center, cw = "", 0
	}
	if lw+rw+1 > width {
		return fit(left, width)
	}

	if cw == 0 {
		return fit(left+strings.Repeat(" ", width-lw-rw)+right, width)
	}
	at := clamp((width-cw)/2, lw+1, width-rw-cw-1)
	return fit(left+strings.Repeat(" ", at-lw)+center+strings.Repeat(" ", width-rw-at-cw)+right, width)
}

func (s *Screen) style(rows []row) string {
	st := s.styles
	lines := make([]string, len(rows))
	for i, r := range rows {
		var text string
		switch r.style {
		case rowHeader:
			text = st.Header.Render(r.text)
		case rowRule:
			text = st.Rule.Render(r.text)
		case rowSelected:
			text = st.Selected.Render(r.text)
		case rowStatus:
			text = st.Status.Render(r.text)
		case rowButtons:
			text = st.Buttons.Render(r.text)
		default:
			text = r.text
		}
		switch r.marker {
		case '█':
			text += st.Thumb.Render(string(r.marker))
		case '│':
			text += st.Track.Render(string(r.marker))
		case '─':
			text += st.Rule.Render(string(r.marker))
		default:
			text += string(r.marker)
		}
		lines[i] = text
	}
	out := strings.Join(lines, "\n")
	if s.border {
		out = st.Border.Render(out)
	}
	return out
}
