// Package gui implements the view dispatcher: the single active view, input
// routing and back navigation.
package gui

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joeycumines/viewloop/internal/eventloop"
	"github.com/joeycumines/viewloop/internal/input"
	"github.com/joeycumines/viewloop/internal/view"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("gui: dispatcher closed")
	// ErrNilView is returned by SwitchTo(nil).
	ErrNilView = errors.New("gui: nil view")
)

// Renderer draws the active view.
type Renderer interface {
	Render(f view.Frame) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(f view.Frame) error

// Render implements Renderer.
func (fn RendererFunc) Render(f view.Frame) error { return fn(f) }

// Handle addresses a registered view. Handles are stable for the life of
// the dispatcher.
type Handle int

// NoView is the handle of the empty slot.
const NoView Handle = -1

type slot struct {
	view    *view.View
	unwatch func()
}

// Dispatcher holds the registered views and at most one active view. All
// methods must be called on the loop goroutine once the loop is running.
type Dispatcher struct {
	loop     *eventloop.Loop
	logger   *slog.Logger
	renderer Renderer
	redraw   time.Duration

	slots      []slot
	handles    map[*view.View]Handle
	active     Handle
	navigation *eventloop.Contract
	inputSub   *eventloop.Subscription
	ticker     *eventloop.Contract
	closed     bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithRenderer sets the renderer called for every visible change.
func WithRenderer(r Renderer) Option {
	return func(d *Dispatcher) { d.renderer = r }
}

// WithRedrawInterval re-renders the active view periodically. Zero
// disables it.
func WithRedrawInterval(interval time.Duration) Option {
	return func(d *Dispatcher) { d.redraw = interval }
}

// NewDispatcher creates a dispatcher routing loop's raw input.
func NewDispatcher(loop *eventloop.Loop, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		loop:    loop,
		logger:  loop.Logger(),
		handles: make(map[*view.View]Handle),
		active:  NoView,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.navigation = eventloop.NewContractOf[input.Event](loop, "gui.navigation")

	sub, err := loop.Subscribe(loop.Input(), func(_ *eventloop.Subscription, item any, _ []any) ([]any, error) {
		d.HandleInput(item.(input.Event))
		return nil, nil
	})
	if err != nil {
		return nil, fmt.Errorf("gui: subscribe to input: %w", err)
	}
	d.inputSub = sub

	if d.redraw > 0 {
		c, err := loop.Timer(eventloop.Periodic, d.redraw)
		if err != nil {
			_ = sub.Cancel()
			return nil, fmt.Errorf("gui: redraw timer: %w", err)
		}
		if _, err := loop.Subscribe(c, func(*eventloop.Subscription, any, []any) ([]any, error) {
			return nil, d.Redraw()
		}); err != nil {
			_ = sub.Cancel()
			_ = c.Destroy()
			return nil, fmt.Errorf("gui: redraw timer: %w", err)
		}
		d.ticker = c
	}
	return d, nil
}

// Navigation returns the contract on which unconsumed back presses are
// published, with the input event as payload.
func (d *Dispatcher) Navigation() *eventloop.Contract { return d.navigation }

// Register adds v to the arena, returning its handle. Registering a view
// twice returns the existing handle.
func (d *Dispatcher) Register(v *view.View) Handle {
	if h, ok := d.handles[v]; ok {
		return h
	}
	h := Handle(len(d.slots))
	unwatch := v.OnChange(func(changed *view.View) {
		if d.active == h {
			d.render()
		}
	})
	d.slots = append(d.slots, slot{view: v, unwatch: unwatch})
	d.handles[v] = h
	return h
}

// Handle returns the handle of a registered view.
func (d *Dispatcher) Handle(v *view.View) (Handle, bool) {
	h, ok := d.handles[v]
	return h, ok
}

// Views returns the registered views in registration order.
func (d *Dispatcher) Views() []*view.View {
	out := make([]*view.View, len(d.slots))
	for i, s := range d.slots {
		out[i] = s.view
	}
	return out
}

// SwitchTo makes v the active view, registering it if needed. The previous
// view is exited, not destroyed, and v is entered. Switching to the active view is a
// no-op. It may be called from a callback dispatched by the active view.
func (d *Dispatcher) SwitchTo(v *view.View) error {
	switch {
	case d.closed:
		return ErrClosed
	case v == nil:
		return ErrNilView
	case v.Destroyed():
		return view.ErrDestroyed
	}
	h := d.Register(v)
	if h == d.active {
		return nil
	}
	d.logger.Debug("gui: switch view",
		slog.String("from", d.kindOf(d.active)),
		slog.String("to", v.Kind()),
	)
	if prev := d.CurrentView(); prev != nil {
		prev.Exit()
	}
	d.active = h
	v.Enter()
	d.render()
	return nil
}

// CurrentView returns the active view, or nil.
func (d *Dispatcher) CurrentView() *view.View {
	if d.active == NoView {
		return nil
	}
	return d.slots[d.active].view
}

func (d *Dispatcher) kindOf(h Handle) string {
	if h == NoView {
		return ""
	}
	return d.slots[h].view.Kind()
}

// HandleInput routes a raw input event to the active view. An unconsumed
// back/short event is published on the navigation contract.
func (d *Dispatcher) HandleInput(ev input.Event) {
	if d.closed {
		return
	}
	if v := d.CurrentView(); v != nil && v.HandleInput(ev) {
		return
	}
	if ev.Key != input.KeyBack || ev.Type != input.TypeShort {
		return
	}
	if err := d.navigation.Publish(ev); err != nil {
		d.logger.Error("gui: navigation publish failed", slog.Any("error", err))
	}
}

// Redraw renders the active view.
func (d *Dispatcher) Redraw() error {
	v := d.CurrentView()
	if v == nil || d.renderer == nil {
		return nil
	}
	return d.renderer.Render(v.Frame())
}

func (d *Dispatcher) render() {
	if err := d.Redraw(); err != nil {
		d.logger.Error("gui: render failed", slog.Any("error", err))
	}
}

// Close stops input routing and destroys the navigation contract and every
// registered view.
func (d *Dispatcher) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	var errs []error
	if err := d.inputSub.Cancel(); err != nil {
		errs = append(errs, err)
	}
	if d.ticker != nil {
		if err := d.ticker.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.navigation.Destroy(); err != nil {
		errs = append(errs, err)
	}
	if v := d.CurrentView(); v != nil {
		v.Exit()
	}
	for _, s := range d.slots {
		s.unwatch()
		if err := s.view.Destroy(); err != nil {
			errs = append(errs, err)
		}
	}
	d.active = NoView
	return errors.Join(errs...)
}
