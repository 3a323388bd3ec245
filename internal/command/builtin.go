package command

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/joeycumines/viewloop/internal/config"
)

// HelpCommand displays help information for commands.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

// NewHelpCommand creates a new help command.
func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand(
			"help",
			"Display help information for commands",
			"help [command]",
		),
		registry: registry,
	}
}

// Execute displays help information.
func (c *HelpCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stdout, "viewloop - run declarative view applications on a single event loop")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Usage: viewloop <command> [options] [args...]")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Commands:")
		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, name := range c.registry.List() {
			if cmd, err := c.registry.Get(name); err == nil {
				_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, cmd.Description())
			}
		}
		_ = w.Flush()
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Use 'viewloop help <command>' for more information about a command.")
		return nil
	}

	cmd, err := c.registry.Get(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Command: %s\n", cmd.Name())
	_, _ = fmt.Fprintf(stdout, "Description: %s\n", cmd.Description())
	_, _ = fmt.Fprintf(stdout, "Usage: viewloop %s\n", cmd.Usage())

	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	buf := &bytes.Buffer{}
	fs.SetOutput(buf)
	cmd.SetupFlags(fs)
	fs.PrintDefaults()
	if buf.Len() > 0 {
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Flags:")
		_, _ = fmt.Fprint(stdout, buf.String())
	}
	return nil
}

// VersionCommand displays version information.
type VersionCommand struct {
	*BaseCommand
	version string
}

// NewVersionCommand creates a new version command.
func NewVersionCommand(version string) *VersionCommand {
	return &VersionCommand{
		BaseCommand: NewBaseCommand(
			"version",
			"Display version information",
			"version",
		),
		version: version,
	}
}

// Execute displays version information.
func (c *VersionCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 {
		_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
		return errors.New("unexpected arguments")
	}
	_, _ = fmt.Fprintf(stdout, "viewloop version %s\n", c.version)
	return nil
}

// ConfigCommand shows and edits configuration options.
type ConfigCommand struct {
	*BaseCommand
	config     *config.Config
	configPath string
	validate   bool
	schema     bool
}

// NewConfigCommand creates a new config command. An empty configPath skips
// persistence.
func NewConfigCommand(cfg *config.Config, configPath string) *ConfigCommand {
	return &ConfigCommand{
		BaseCommand: NewBaseCommand(
			"config",
			"Show or change configuration options",
			"config [options] [key [value]]",
		),
		config:     cfg,
		configPath: configPath,
	}
}

// SetupFlags configures the flags for the config command.
func (c *ConfigCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.validate, "validate", false, "Check the configuration file and resolved settings")
	fs.BoolVar(&c.schema, "schema", false, "Show every known option")
}

// Execute shows all options, one option, or sets one option. Keys of
// section options are dotted, e.g. display.width.
func (c *ConfigCommand) Execute(_ context.Context, args []string, stdout, stderr io.Writer) error {
	schema := config.DefaultSchema()
	switch {
	case c.validate:
		return c.executeValidate(stdout)
	case c.schema:
		_, _ = fmt.Fprint(stdout, schema.FormatHelp())
		return nil
	}

	switch len(args) {
	case 0:
		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, o := range schema.Options() {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", o.Name(), schema.Resolve(c.config, o.Section, o.Key))
		}
		return w.Flush()

	case 1:
		section, key := config.SplitKey(args[0])
		if schema.Lookup(section, key) == nil {
			if _, ok := c.config.Get(section, key); !ok {
				_, _ = fmt.Fprintf(stderr, "Configuration key '%s' not found\n", args[0])
				return fmt.Errorf("unknown configuration key: %s", args[0])
			}
		}
		_, _ = fmt.Fprintf(stdout, "%s: %s\n", args[0], schema.Resolve(c.config, section, key))
		return nil

	case 2:
		section, key := config.SplitKey(args[0])
		opt := schema.Lookup(section, key)
		if opt == nil {
			_, _ = fmt.Fprintf(stderr, "Configuration key '%s' not found\n", args[0])
			return fmt.Errorf("unknown configuration key: %s", args[0])
		}
		if err := config.ValidateType(opt.Type, args[1]); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		c.config.Set(section, key, args[1])
		if c.configPath != "" {
			if err := config.SetKeyInFile(c.configPath, section, key, args[1]); err != nil {
				return fmt.Errorf("failed to persist config: %w", err)
			}
		}
		_, _ = fmt.Fprintf(stdout, "Set configuration: %s = %s\n", args[0], args[1])
		return nil
	}

	_, _ = fmt.Fprintln(stderr, "Invalid number of arguments")
	return errors.New("invalid arguments")
}

// executeValidate reports schema issues and settings violations.
func (c *ConfigCommand) executeValidate(stdout io.Writer) error {
	issues := config.ValidateConfig(c.config, config.DefaultSchema())
	if _, err := c.config.Settings(); err != nil {
		issues = append(issues, flattenErrors(err)...)
	}
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(stdout, "Configuration is valid.")
		return nil
	}
	_, _ = fmt.Fprintf(stdout, "Configuration has %d issue(s):\n", len(issues))
	for _, issue := range issues {
		_, _ = fmt.Fprintf(stdout, "  - %s\n", issue)
	}
	return fmt.Errorf("invalid configuration")
}

func flattenErrors(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, flattenErrors(e)...)
		}
		return out
	}
	return []string{err.Error()}
}
