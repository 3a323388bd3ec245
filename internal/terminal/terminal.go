// Package terminal is the interactive frontend: a bubbletea program that
// acts as the input driver (key presses become raw input events posted to
// the loop) and as the display (rendered frames are shown as they arrive).
package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/joeycumines/viewloop/internal/input"
	"github.com/joeycumines/viewloop/internal/render"
)

// Loop is the part of the event loop the frontend drives.
type Loop interface {
	PostInput(ev input.Event) error
	Stop()
}

// frameMsg carries a rendered frame into the program.
type frameMsg struct {
	text string
}

// action is what a key press does.
type action int

const (
	actionNone action = iota
	actionClick
	actionHold
	actionStop
)

// mapKey translates a terminal key into a device key. Alt held turns a click
// into a long press.
func mapKey(msg tea.KeyMsg) (input.Key, action) {
	var k input.Key
	switch msg.Type {
	case tea.KeyCtrlC:
		return 0, actionStop
	case tea.KeyUp:
		k = input.KeyUp
	case tea.KeyDown:
		k = input.KeyDown
	case tea.KeyLeft:
		k = input.KeyLeft
	case tea.KeyRight:
		k = input.KeyRight
	case tea.KeyEnter, tea.KeySpace:
		k = input.KeyOk
	case tea.KeyEsc, tea.KeyBackspace:
		k = input.KeyBack
	default:
		return 0, actionNone
	}
	if msg.Alt {
		return k, actionHold
	}
	return k, actionClick
}

var helpStyle = lipgloss.NewStyle().Faint(true)

const helpText = "arrows move · enter ok · esc back · alt+key long · ctrl+c quit"

type model struct {
	loop      Loop
	logger    *slog.Logger
	longPress bool
	frame     string
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key, act := mapKey(msg)
		var events []input.Event
		switch act {
		case actionStop:
			m.loop.Stop()
			return m, tea.Quit
		case actionClick:
			events = input.Click(key)
		case actionHold:
			if m.longPress {
				events = input.Hold(key)
			} else {
				events = input.Click(key)
			}
		}
		for _, ev := range events {
			if err := m.loop.PostInput(ev); err != nil {
				m.logger.Warn("terminal: input dropped", slog.String("event", ev.String()), slog.Any("error", err))
				break
			}
		}
	case frameMsg:
		m.frame = msg.text
	}
	return m, nil
}

func (m *model) View() string {
	return m.frame + "\n" + helpStyle.Render(helpText) + "\n"
}

// Program runs the bubbletea program on its own goroutine.
type Program struct {
	loop      Loop
	logger    *slog.Logger
	longPress bool
	in        io.Reader
	out       io.Writer
	options   []tea.ProgramOption

	program *tea.Program
	done    chan struct{}
	mu      sync.Mutex
	err     error
}

// Option configures a Program.
type Option func(*Program)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Program) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithInput reads keys from r instead of stdin.
func WithInput(r io.Reader) Option {
	return func(p *Program) { p.in = r }
}

// WithOutput draws to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(p *Program) { p.out = w }
}

// WithLongPress enables or disables alt+key long presses. They are enabled
// by default.
func WithLongPress(enabled bool) Option {
	return func(p *Program) { p.longPress = enabled }
}

// WithAltScreen uses the terminal's alternate screen.
func WithAltScreen() Option {
	return func(p *Program) { p.options = append(p.options, tea.WithAltScreen()) }
}

// New creates a program driving loop. It does not start it.
func New(loop Loop, opts ...Option) *Program {
	p := &Program{
		loop:      loop,
		logger:    slog.Default(),
		longPress: true,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	options := append([]tea.ProgramOption{tea.WithoutSignalHandler()}, p.options...)
	if p.in != nil {
		options = append(options, tea.WithInput(p.in))
	}
	if p.out != nil {
		options = append(options, tea.WithOutput(p.out))
	}
	p.program = tea.NewProgram(&model{loop: loop, logger: p.logger, longPress: p.longPress}, options...)
	return p
}

// Output returns a render.Output forwarding frames to the program. It may
// be called from the loop goroutine while the program runs.
func (p *Program) Output() render.Output {
	return func(text string, _ render.Diff) {
		p.program.Send(frameMsg{text: text})
	}
}

// Start runs the program until it quits or ctx is done. When the program
// exits for any reason the loop is stopped.
func (p *Program) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			p.program.Quit()
		case <-p.done:
		}
	}()
	go func() {
		defer close(p.done)
		defer p.loop.Stop()
		_, err := p.program.Run()
		if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			p.mu.Lock()
			p.err = fmt.Errorf("terminal: %w", err)
			p.mu.Unlock()
		}
	}()
}

// Quit asks the program to exit.
func (p *Program) Quit() { p.program.Quit() }

// Wait blocks until the program has exited and returns its error.
func (p *Program) Wait() error {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}
