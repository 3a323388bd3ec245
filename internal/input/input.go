// Package input models the raw events delivered by the input device driver.
package input

import (
	"fmt"
	"strings"
)

// Key identifies a physical button. Only Back and the directional keys carry
// meaning for navigation.
type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyLeft
	KeyRight
	KeyOk
	KeyBack
)

var keyNames = [...]string{
	KeyUp:    "up",
	KeyDown:  "down",
	KeyLeft:  "left",
	KeyRight: "right",
	KeyOk:    "ok",
	KeyBack:  "back",
}

func (k Key) String() string {
	if k >= 0 && int(k) < len(keyNames) {
		return keyNames[k]
	}
	return fmt.Sprintf("Key(%d)", int(k))
}

// Valid reports whether k is a known key.
func (k Key) Valid() bool {
	return k >= 0 && int(k) < len(keyNames)
}

// Type is the phase of a key interaction.
type Type int

const (
	TypePress Type = iota
	TypeRelease
	TypeShort
	TypeLong
	TypeRepeat
)

var typeNames = [...]string{
	TypePress:   "press",
	TypeRelease: "release",
	TypeShort:   "short",
	TypeLong:    "long",
	TypeRepeat:  "repeat",
}

func (t Type) String() string {
	if t >= 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return t >= 0 && int(t) < len(typeNames)
}

// Event is a single raw input event.
type Event struct {
	Key  Key
	Type Type
}

func (e Event) String() string {
	return e.Key.String() + "/" + e.Type.String()
}

// IsNav reports whether the event is a short press or repeat, the types
// that move cursors.
func (e Event) IsNav() bool {
	return e.Type == TypeShort || e.Type == TypeRepeat
}

// ParseKey parses a key name as produced by Key.String.
func ParseKey(s string) (Key, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range keyNames {
		if name == s {
			return Key(i), nil
		}
	}
	// widgets name the ok button "center"
	if s == "center" {
		return KeyOk, nil
	}
	return 0, fmt.Errorf("input: unknown key %q", s)
}

// ParseType parses a type name as produced by Type.String.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range typeNames {
		if name == s {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("input: unknown type %q", s)
}

// Click returns the press, short, release sequence a driver emits for a
// quick tap of k.
func Click(k Key) []Event {
	return []Event{{k, TypePress}, {k, TypeShort}, {k, TypeRelease}}
}

// Hold returns the press, long, release sequence for a long press of k.
func Hold(k Key) []Event {
	return []Event{{k, TypePress}, {k, TypeLong}, {k, TypeRelease}}
}
