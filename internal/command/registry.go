package command

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"sort"
)

// ErrUnknownCommand is returned for names no command is registered under.
var ErrUnknownCommand = errors.New("command not found")

// Registry manages the collection of available commands.
type Registry struct {
	commands map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Register adds a command, replacing any command of the same name.
func (r *Registry) Register(cmd Command) {
	r.commands[cmd.Name()] = cmd
}

// Get returns a command by name.
func (r *Registry) Get(name string) (Command, error) {
	if cmd, ok := r.commands[name]; ok {
		return cmd, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

// List returns the sorted command names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch parses argv (command name first) and executes the command. An
// empty argv, -h or --help runs "help".
func (r *Registry) Dispatch(ctx context.Context, argv []string, stdout, stderr io.Writer) error {
	if len(argv) == 0 || argv[0] == "-h" || argv[0] == "--help" {
		argv = []string{"help"}
	}
	cmd, err := r.Get(argv[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", argv[0])
		_, _ = fmt.Fprintln(stderr, "Use 'viewloop help' to see available commands.")
		return err
	}

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: viewloop %s\n\n%s\n\nOptions:\n", cmd.Usage(), cmd.Description())
		fs.PrintDefaults()
	}
	cmd.SetupFlags(fs)
	if err := fs.Parse(argv[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	return cmd.Execute(ctx, fs.Args(), stdout, stderr)
}
