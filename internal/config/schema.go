package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	// TypeString is a plain string value (the default for all config values).
	TypeString OptionType = "string"
	// TypeBool is a boolean value (true/false/yes/no/1/0/on/off).
	TypeBool OptionType = "bool"
	// TypeInt is an integer value.
	TypeInt OptionType = "int"
	// TypeDuration is a Go time.Duration value (e.g. "250ms", "1s").
	TypeDuration OptionType = "duration"
	// TypePathList is a list of paths separated by os.PathListSeparator.
	TypePathList OptionType = "path-list"
)

// ConfigOption declares a single configuration option.
type ConfigOption struct {
	// Key is the option name as it appears in the config file (kebab-case).
	Key string
	// Type is the expected value type for validation.
	Type OptionType
	// Default is the default value as a string, or "" for no default.
	Default string
	// Description is a human-readable description of the option.
	Description string
	// Section is "" for global options, or a section name.
	Section string
	// EnvVar is the environment variable that overrides this option, or "".
	EnvVar string
}

// Name returns the dotted "section.key" form used on the command line.
func (o ConfigOption) Name() string {
	if o.Section == "" {
		return o.Key
	}
	return o.Section + "." + o.Key
}

// ConfigSchema declares the known configuration options.
type ConfigSchema struct {
	options   []*ConfigOption
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{bySection: make(map[string]map[string]*ConfigOption)}
}

// Register adds an option. Registering the same section and key twice keeps
// the last registration.
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	if s.bySection[opt.Section] == nil {
		s.bySection[opt.Section] = make(map[string]*ConfigOption)
	}
	s.bySection[opt.Section][opt.Key] = ref
}

// Lookup returns the option for a key in a section ("" for global), or nil.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	return s.bySection[section][key]
}

// Options returns every registered option, global ones first, then by
// section name, each group in registration order.
func (s *ConfigSchema) Options() []ConfigOption {
	out := make([]ConfigOption, 0, len(s.options))
	for _, sec := range append([]string{""}, s.Sections()...) {
		for _, o := range s.options {
			if o.Section == sec && s.bySection[sec][o.Key] == o {
				out = append(out, *o)
			}
		}
	}
	return out
}

// Sections returns the sorted non-empty section names.
func (s *ConfigSchema) Sections() []string {
	out := make([]string, 0, len(s.bySection))
	for sec := range s.bySection {
		if sec != "" {
			out = append(out, sec)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value of an option by checking, in order,
// its environment variable (when non-empty), the config value and the
// schema default.
func (s *ConfigSchema) Resolve(c *Config, section, key string) string {
	opt := s.Lookup(section, key)
	if opt != nil && opt.EnvVar != "" {
		if v := os.Getenv(opt.EnvVar); v != "" {
			return v
		}
	}
	if c != nil {
		if v, ok := c.Get(section, key); ok {
			return v
		}
	}
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig lists, sorted, the unknown sections, unknown options and
// mistyped values of c.
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string
	check := func(section, key, value string) {
		name := ConfigOption{Section: section, Key: key}.Name()
		opt := s.Lookup(section, key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown option %s (value %q)", name, value))
			return
		}
		if err := ValidateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("%s: %v", name, err))
		}
	}
	for key, value := range c.Global {
		check("", key, value)
	}
	for section, opts := range c.Sections {
		if _, ok := s.bySection[section]; !ok {
			issues = append(issues, fmt.Sprintf("unknown section [%s]", section))
			continue
		}
		for key, value := range opts {
			check(section, key, value)
		}
	}
	sort.Strings(issues)
	return issues
}

// ValidateType checks that a string value matches the expected OptionType.
func ValidateType(t OptionType, value string) error {
	switch t {
	case TypeString, TypePathList, "":
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// FormatHelp returns a human-readable reference of all options, grouped by
// section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder
	section := "-"
	for _, o := range s.Options() {
		if o.Section != section {
			section = o.Section
			if section == "" {
				b.WriteString("Global Options:\n")
			} else {
				fmt.Fprintf(&b, "\n[%s] Options:\n", section)
			}
		}
		writeOptionHelp(&b, o)
	}
	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	fmt.Fprintf(b, "  %-20s %s", o.Key, o.Description)
	parts := make([]string, 0, 3)
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, fmt.Sprintf("type: %s", o.Type))
	}
	if o.Default != "" {
		parts = append(parts, fmt.Sprintf("default: %s", o.Default))
	}
	if o.EnvVar != "" {
		parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
	}
	if len(parts) > 0 {
		fmt.Fprintf(b, " (%s)", strings.Join(parts, ", "))
	}
	b.WriteString("\n")
}

var defaultOptions = []ConfigOption{
	{Key: "log-level", Type: TypeString, Default: "info", Description: "Log level: debug, info, warn, error", EnvVar: "VIEWLOOP_LOG_LEVEL"},
	{Key: "log-file", Type: TypeString, Description: "Append JSON log records to this file", EnvVar: "VIEWLOOP_LOG_FILE"},
	{Key: "log-max-size-mb", Type: TypeInt, Default: "10", Description: "Rotate the log file when it reaches this size"},
	{Key: "log-max-files", Type: TypeInt, Default: "5", Description: "Rotated log files to keep"},
	{Key: "log-buffer", Type: TypeInt, Default: "1000", Description: "In-memory log buffer size (entries)"},
	{Key: "device-name", Type: TypeString, Default: "viewloop", Description: "Name reported by flipper.getName()", EnvVar: "VIEWLOOP_DEVICE_NAME"},

	{Section: "display", Key: "width", Type: TypeInt, Default: "32", Description: "Screen width in cells"},
	{Section: "display", Key: "height", Type: TypeInt, Default: "12", Description: "Screen height in cells"},
	{Section: "display", Key: "border", Type: TypeBool, Default: "true", Description: "Draw a border around the screen"},
	{Section: "display", Key: "redraw-interval", Type: TypeDuration, Default: "0s", Description: "Periodic redraw of the active view, 0 to disable"},

	{Section: "input", Key: "long-press", Type: TypeBool, Default: "true", Description: "Treat alt+key as a long press"},

	{Section: "script", Key: "module-path", Type: TypePathList, Description: "Folders searched by require()", EnvVar: "VIEWLOOP_MODULE_PATH"},
}

// DefaultSchema returns the schema of every known viewloop option.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	for _, o := range defaultOptions {
		s.Register(o)
	}
	return s
}
