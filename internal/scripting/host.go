// Package scripting hosts JavaScript applications: a goja runtime exposing
// the event loop, the view dispatcher, every view kind and the icon library
// as CommonJS modules.
//
// The runtime is single-threaded and runs on the goroutine that calls
// Host.Run. A script's eventLoop.run() turns that goroutine into the loop
// goroutine, so every subscription callback re-enters the same runtime.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/google/uuid"

	"github.com/joeycumines/viewloop/internal/eventloop"
	"github.com/joeycumines/viewloop/internal/gui"
	"github.com/joeycumines/viewloop/internal/icon"
	"github.com/joeycumines/viewloop/internal/view"
)

// ErrHostClosed is returned by Run after Close.
var ErrHostClosed = errors.New("scripting: host closed")

// DefaultDeviceName is reported by flipper.getName() unless configured.
const DefaultDeviceName = "viewloop"

// Host runs scripts against one loop and dispatcher. A Host is not safe for
// concurrent use.
type Host struct {
	vm       *goja.Runtime
	registry *require.Registry
	loop     *eventloop.Loop
	disp     *gui.Dispatcher
	factory  *view.Factory
	icons    *icon.Library
	logger   *slog.Logger
	runID    string
	device   string
	paths    []string
	viewport view.Viewport

	ctx     context.Context
	views   map[*view.View]*goja.Object
	objects map[*goja.Object]*view.View
	closed  bool
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger. Every record carries the host's run id.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithDeviceName sets the name returned by flipper.getName().
func WithDeviceName(name string) Option {
	return func(h *Host) {
		if name != "" {
			h.device = name
		}
	}
}

// WithModulePaths adds folders searched by require for non-builtin modules.
func WithModulePaths(paths ...string) Option {
	return func(h *Host) { h.paths = append(h.paths, paths...) }
}

// WithIcons sets the icon library behind gui/icon.
func WithIcons(lib *icon.Library) Option {
	return func(h *Host) {
		if lib != nil {
			h.icons = lib
		}
	}
}

// WithViewport sets the area used by wrapping and paging views.
func WithViewport(vp view.Viewport) Option {
	return func(h *Host) { h.viewport = vp }
}

// NewHost creates a runtime with every module registered. The dispatcher
// must belong to loop.
func NewHost(loop *eventloop.Loop, disp *gui.Dispatcher, opts ...Option) *Host {
	h := &Host{
		vm:       goja.New(),
		loop:     loop,
		disp:     disp,
		icons:    icon.NewLibrary(),
		logger:   loop.Logger(),
		runID:    uuid.NewString(),
		device:   DefaultDeviceName,
		viewport: view.DefaultViewport,
		ctx:      context.Background(),
		views:    make(map[*view.View]*goja.Object),
		objects:  make(map[*goja.Object]*view.View),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(slog.String("run", h.runID))
	h.factory = view.NewFactory(loop, h.icons, view.WithLogger(h.logger), view.WithViewport(h.viewport))

	h.vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	h.registry = require.NewRegistry(require.WithGlobalFolders(h.paths...))
	h.registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(printer{logger: h.logger}))
	h.registry.RegisterNativeModule("event_loop", h.requireEventLoop)
	h.registry.RegisterNativeModule("gui", h.requireGUI)
	h.registry.RegisterNativeModule("gui/icon", h.requireIcon)
	h.registry.RegisterNativeModule("flipper", h.requireFlipper)
	h.registry.RegisterNativeModule("math", requireMath)
	for _, kind := range view.Kinds() {
		h.registry.RegisterNativeModule("gui/"+kind, h.requireKind(kind))
	}
	h.registry.Enable(h.vm)
	console.Enable(h.vm)
	return h
}

// RegisterModule adds a native module available to require.
func (h *Host) RegisterModule(name string, loader require.ModuleLoader) {
	h.registry.RegisterNativeModule(name, loader)
}

// RunID returns the id attached to every log record of this host.
func (h *Host) RunID() string { return h.runID }

// Logger returns the host's logger.
func (h *Host) Logger() *slog.Logger { return h.logger }

// Runtime returns the underlying goja runtime.
func (h *Host) Runtime() *goja.Runtime { return h.vm }

// Run evaluates src. It returns once the script has finished, including
// any eventLoop.run() it performs. Cancelling ctx interrupts the script and
// stops the loop.
func (h *Host) Run(ctx context.Context, name, src string) error {
	if h.closed {
		return ErrHostClosed
	}
	prg, err := goja.Compile(name, src, false)
	if err != nil {
		return fmt.Errorf("scripting: compile %s: %w", name, err)
	}
	h.ctx = ctx
	stop := context.AfterFunc(ctx, func() {
		h.vm.Interrupt(ctx.Err())
		h.loop.Stop()
	})
	defer stop()

	h.logger.Debug("scripting: run", slog.String("script", name))
	if _, err := h.vm.RunProgram(prg); err != nil {
		return fmt.Errorf("scripting: %s: %w", name, err)
	}
	return nil
}

// RunFile evaluates the script at path.
func (h *Host) RunFile(ctx context.Context, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	return h.Run(ctx, path, string(src))
}

// Close tears down the dispatcher and every view the scripts created.
func (h *Host) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	err := h.disp.Close()
	for v := range h.views {
		if dErr := v.Destroy(); dErr != nil {
			err = errors.Join(err, dErr)
		}
	}
	clear(h.views)
	clear(h.objects)
	return err
}

// printer sends console output to the logger.
type printer struct {
	logger *slog.Logger
}

func (p printer) Log(s string)   { p.logger.Info(s, slog.String("source", "script")) }
func (p printer) Warn(s string)  { p.logger.Warn(s, slog.String("source", "script")) }
func (p printer) Error(s string) { p.logger.Error(s, slog.String("source", "script")) }
