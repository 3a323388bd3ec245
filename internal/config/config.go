// Package config loads the viewloop configuration file.
//
// The file holds "name value" lines, "#" comments and "[section]" headers.
// Lines before the first header set global options.
package config

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config is a parsed configuration file.
type Config struct {
	Global   map[string]string
	Sections map[string]map[string]string
	// Warnings lists schema violations found while loading.
	Warnings []string
}

// NewConfig returns an empty configuration.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Sections: make(map[string]map[string]string),
	}
}

// LoadFromPath reads the file at path. A missing file is an empty
// configuration; a symlink is an error.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
		return NewConfig(), nil
	case err != nil:
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	case fi.Mode()&os.ModeSymlink != 0:
		return nil, fmt.Errorf("symlink not allowed in config path: %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader parses r and records schema violations as warnings.
func LoadFromReader(r io.Reader) (*Config, error) {
	c := NewConfig()
	section := ""
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "", line[0] == '#':
		case line[0] == '[' && line[len(line)-1] == ']':
			section = strings.TrimSpace(line[1 : len(line)-1])
			if section != "" && c.Sections[section] == nil {
				c.Sections[section] = make(map[string]string)
			}
		default:
			name, value, _ := strings.Cut(line, " ")
			c.Set(section, name, strings.TrimSpace(value))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	c.Warnings = ValidateConfig(c, DefaultSchema())
	for _, w := range c.Warnings {
		slog.Warn("config: " + w)
	}
	return c, nil
}

// parseBool accepts true, false, 1, 0, yes, no, on and off (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %s", s)
}

// Get returns an option. Section "" addresses the global options.
func (c *Config) Get(section, name string) (string, bool) {
	if section == "" {
		v, ok := c.Global[name]
		return v, ok
	}
	v, ok := c.Sections[section][name]
	return v, ok
}

// Set sets an option. Section "" addresses the global options.
func (c *Config) Set(section, name, value string) {
	if section == "" {
		c.Global[name] = value
		return
	}
	if c.Sections[section] == nil {
		c.Sections[section] = make(map[string]string)
	}
	c.Sections[section][name] = value
}

// SplitKey splits a dotted "section.key" into its parts. Keys without a
// dot are global.
func SplitKey(key string) (section, name string) {
	if i := strings.IndexByte(key, '.'); i > 0 {
		return key[:i], key[i+1:]
	}
	return "", key
}
