package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Settings is the resolved, typed configuration.
type Settings struct {
	LogLevel     string `cfg:"log-level" validate:"oneof=debug info warn error"`
	LogFile      string `cfg:"log-file"`
	LogMaxSizeMB int    `cfg:"log-max-size-mb" validate:"min=1,max=1024"`
	LogMaxFiles  int    `cfg:"log-max-files" validate:"min=0,max=100"`
	LogBuffer    int    `cfg:"log-buffer" validate:"min=1,max=100000"`
	DeviceName   string `cfg:"device-name" validate:"required,printascii,max=32"`

	Width          int           `cfg:"display.width" validate:"min=8,max=256"`
	Height         int           `cfg:"display.height" validate:"min=5,max=128"`
	Border         bool          `cfg:"display.border"`
	RedrawInterval time.Duration `cfg:"display.redraw-interval" validate:"gte=0"`

	LongPress bool `cfg:"input.long-press"`

	ModulePaths []string `cfg:"script.module-path" validate:"dive,required"`
}

// Level returns the slog level named by LogLevel.
func (s *Settings) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// SettingsError reports an option whose value failed validation.
type SettingsError struct {
	Option string
	Value  string
	Err    error
}

func (e *SettingsError) Error() string {
	return fmt.Sprintf("config: option %s=%q: %v", e.Option, e.Value, e.Err)
}

func (e *SettingsError) Unwrap() error { return e.Err }

// Settings resolves every known option (environment, then file, then
// default) into a validated Settings.
func (c *Config) Settings() (*Settings, error) {
	schema := DefaultSchema()
	get := func(name string) string {
		section, key := SplitKey(name)
		return strings.TrimSpace(schema.Resolve(c, section, key))
	}

	var s Settings
	var errs []error
	intOpt := func(name string) int {
		v, err := strconv.Atoi(get(name))
		if err != nil {
			errs = append(errs, &SettingsError{Option: name, Value: get(name), Err: errors.New("expected int")})
		}
		return v
	}
	boolOpt := func(name string) bool {
		v, err := parseBool(get(name))
		if err != nil {
			errs = append(errs, &SettingsError{Option: name, Value: get(name), Err: errors.New("expected bool")})
		}
		return v
	}

	s.LogLevel = strings.ToLower(get("log-level"))
	s.LogFile = get("log-file")
	s.LogMaxSizeMB = intOpt("log-max-size-mb")
	s.LogMaxFiles = intOpt("log-max-files")
	s.LogBuffer = intOpt("log-buffer")
	s.DeviceName = get("device-name")
	s.Width = intOpt("display.width")
	s.Height = intOpt("display.height")
	s.Border = boolOpt("display.border")
	if d, err := time.ParseDuration(get("display.redraw-interval")); err != nil {
		errs = append(errs, &SettingsError{Option: "display.redraw-interval", Value: get("display.redraw-interval"), Err: errors.New("expected duration")})
	} else {
		s.RedrawInterval = d
	}
	s.LongPress = boolOpt("input.long-press")
	if paths := get("script.module-path"); paths != "" {
		s.ModulePaths = filepath.SplitList(paths)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks the value constraints of every field.
func (s *Settings) Validate() error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return fmt.Errorf("config: %w", err)
	}
	errs := make([]error, 0, len(ves))
	for _, fe := range ves {
		errs = append(errs, &SettingsError{
			Option: optionName(fe.StructField()),
			Value:  fmt.Sprint(fe.Value()),
			Err:    fmt.Errorf("violates %s", ruleText(fe)),
		})
	}
	return errors.Join(errs...)
}

func optionName(field string) string {
	name := strings.SplitN(field, "[", 2)[0]
	if f, ok := settingsFields[name]; ok {
		return f
	}
	return field
}

func ruleText(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

var settingsFields = func() map[string]string {
	m := make(map[string]string)
	t := reflect.TypeFor[Settings]()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		m[f.Name] = f.Tag.Get("cfg")
	}
	return m
}()
