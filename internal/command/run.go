package command

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/joeycumines/viewloop/internal/config"
	"github.com/joeycumines/viewloop/internal/eventloop"
	"github.com/joeycumines/viewloop/internal/gui"
	"github.com/joeycumines/viewloop/internal/render"
	"github.com/joeycumines/viewloop/internal/scripting"
	"github.com/joeycumines/viewloop/internal/terminal"
)

// sessionFlags are shared by the script-executing commands.
type sessionFlags struct {
	headless bool
	keys     string
	timeout  time.Duration
	logLevel string
	logFile  string
}

func (f *sessionFlags) setup(fs *flag.FlagSet) {
	fs.BoolVar(&f.headless, "headless", false, "Print frames to stdout instead of running the terminal frontend")
	fs.StringVar(&f.keys, "keys", "", "Comma separated keys to press at startup, e.g. down,ok,long:back")
	fs.DurationVar(&f.timeout, "timeout", 0, "Stop the script after this long (0 for no limit)")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides log-level")
	fs.StringVar(&f.logFile, "log-file", "", "Append JSON log records to this file; overrides log-file")
}

// session wires a loop, screen, dispatcher, frontend and script host for
// one script execution.
type session struct {
	config *config.Config
	// stdin feeds headless key lines when no -keys are given.
	stdin io.Reader
	// isTerminal reports whether the interactive frontend can be used.
	isTerminal func() bool
	// terminalOptions are appended to the interactive frontend's options.
	terminalOptions []terminal.Option
}

func newSession(cfg *config.Config) session {
	return session{
		config: cfg,
		stdin:  os.Stdin,
		isTerminal: func() bool {
			return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
		},
	}
}

// run executes body against a freshly wired host. Headless sessions print
// frames to stdout; interactive ones run the terminal frontend.
func (s *session) run(ctx context.Context, flags *sessionFlags, stdout, stderr io.Writer, body func(context.Context, *scripting.Host) error) error {
	settings, err := s.config.Settings()
	if err != nil {
		return err
	}
	logs, err := newLogging(settings, flags.logLevel, flags.logFile)
	if err != nil {
		return err
	}
	defer logs.Close()
	logger := logs.logger

	events, err := terminal.ParseKeys(flags.keys)
	if err != nil {
		return fmt.Errorf("invalid -keys: %w", err)
	}
	if flags.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flags.timeout)
		defer cancel()
	}
	headless := flags.headless || s.isTerminal == nil || !s.isTerminal()

	loop := eventloop.New(eventloop.WithLogger(logger))
	var (
		out  render.Output
		prog *terminal.Program
	)
	if headless {
		out = terminal.Headless(stdout)
	} else {
		opts := append([]terminal.Option{
			terminal.WithLogger(logger),
			terminal.WithLongPress(settings.LongPress),
			terminal.WithOutput(stdout),
			terminal.WithAltScreen(),
		}, s.terminalOptions...)
		prog = terminal.New(loop, opts...)
		out = prog.Output()
	}

	screen := render.New(
		render.WithSize(settings.Width, settings.Height),
		render.WithBorder(settings.Border),
		render.WithOutput(out),
	)
	disp, err := gui.NewDispatcher(loop,
		gui.WithLogger(logger),
		gui.WithRenderer(screen),
		gui.WithRedrawInterval(settings.RedrawInterval),
	)
	if err != nil {
		return err
	}
	host := scripting.NewHost(loop, disp,
		scripting.WithLogger(logger),
		scripting.WithDeviceName(settings.DeviceName),
		scripting.WithModulePaths(settings.ModulePaths...),
		scripting.WithViewport(screen.Viewport()),
	)
	logger = host.Logger()

	for _, ev := range events {
		if err := loop.PostInput(ev); err != nil {
			return err
		}
	}
	switch {
	case prog != nil:
		prog.Start(ctx)
	case len(events) == 0 && s.stdin != nil:
		go feedKeys(loop, s.stdin, logger)
	}

	runErr := body(ctx, host)
	var progErr error
	if prog != nil {
		prog.Quit()
		progErr = prog.Wait()
	}
	closeErr := host.Close()

	if runErr != nil {
		logs.dumpErrors(stderr, 10)
		return runErr
	}
	return errors.Join(progErr, closeErr)
}

// feedKeys posts the keys read line by line from r, then stops the loop
// once r is exhausted.
func feedKeys(loop *eventloop.Loop, r io.Reader, logger *slog.Logger) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		events, err := terminal.ParseKeys(scanner.Text())
		if err != nil {
			logger.Warn("headless: bad key line", slog.String("line", scanner.Text()), slog.Any("error", err))
			continue
		}
		for _, ev := range events {
			if err := loop.PostInput(ev); err != nil {
				return
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("headless: reading keys", slog.Any("error", err))
	}
	_ = loop.Submit(loop.Stop)
}

// RunCommand runs a script file.
type RunCommand struct {
	*BaseCommand
	session
	flags sessionFlags
	eval  string
}

// NewRunCommand creates a new run command.
func NewRunCommand(cfg *config.Config) *RunCommand {
	return &RunCommand{
		BaseCommand: NewBaseCommand(
			"run",
			"Run a view application script",
			"run [options] <script.js>",
		),
		session: newSession(cfg),
	}
}

// SetupFlags configures the flags for the run command.
func (c *RunCommand) SetupFlags(fs *flag.FlagSet) {
	c.flags.setup(fs)
	fs.StringVar(&c.eval, "e", "", "Evaluate this script source instead of a file")
}

// Execute runs the script named by the first argument, or the -e source.
func (c *RunCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	switch {
	case c.eval != "" && len(args) == 0:
		return c.run(ctx, &c.flags, stdout, stderr, func(ctx context.Context, h *scripting.Host) error {
			return h.Run(ctx, "command-line", c.eval)
		})
	case c.eval == "" && len(args) == 1:
		path := args[0]
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("script file not found: %s", path)
		}
		return c.run(ctx, &c.flags, stdout, stderr, func(ctx context.Context, h *scripting.Host) error {
			return h.RunFile(ctx, path)
		})
	}
	_, _ = fmt.Fprintf(stderr, "Usage: viewloop %s\n", c.Usage())
	return errors.New("expected one script file or -e")
}

// DemoCommand runs the built-in tour of every view kind.
type DemoCommand struct {
	*BaseCommand
	session
	flags sessionFlags
}

// NewDemoCommand creates a new demo command.
func NewDemoCommand(cfg *config.Config) *DemoCommand {
	return &DemoCommand{
		BaseCommand: NewBaseCommand(
			"demo",
			"Run the built-in tour of every view kind",
			"demo [options]",
		),
		session: newSession(cfg),
	}
}

// SetupFlags configures the flags for the demo command.
func (c *DemoCommand) SetupFlags(fs *flag.FlagSet) {
	c.flags.setup(fs)
}

// Execute runs the demo.
func (c *DemoCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return errors.New("unexpected arguments")
	}
	return c.run(ctx, &c.flags, stdout, stderr, func(ctx context.Context, h *scripting.Host) error {
		return h.RunDemo(ctx)
	})
}
