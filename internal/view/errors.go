package view

import (
	"errors"
	"fmt"
)

// ErrView is matched (via errors.Is) by every error returned from view
// configuration and mutation.
var ErrView = errors.New("view error")

var (
	// ErrUnknownKind is returned by Factory.Make for an unregistered kind.
	ErrUnknownKind = fmt.Errorf("%w: unknown kind", ErrView)
	// ErrDestroyed is returned when mutating a destroyed view.
	ErrDestroyed = fmt.Errorf("%w: view destroyed", ErrView)
)

// ValidationError reports initial properties rejected by MakeWith.
type ValidationError struct {
	Kind string
	// Field is the property that failed, if known.
	Field string
	// Rule is the violated constraint, e.g. "ltefield=MaxValue".
	Rule string
	Err  error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("view %s: invalid properties: %s violates %s", e.Kind, e.Field, e.Rule)
	}
	return fmt.Sprintf("view %s: invalid properties: %v", e.Kind, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrView }

// UnknownPropertyError reports a property key the kind does not declare.
type UnknownPropertyError struct {
	Kind string
	Key  string
}

func (e *UnknownPropertyError) Error() string {
	return fmt.Sprintf("view %s: unknown property %q", e.Kind, e.Key)
}

func (e *UnknownPropertyError) Is(target error) bool { return target == ErrView }

// TypeError reports a property value of the wrong type.
type TypeError struct {
	Kind string
	Key  string
	Want string
	Got  any
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("view %s: property %q: want %s, got %T", e.Kind, e.Key, e.Want, e.Got)
}

func (e *TypeError) Is(target error) bool { return target == ErrView }

// RangeError reports a property value that is well typed but violates a
// numeric or length constraint. The property keeps its previous value.
type RangeError struct {
	Kind  string
	Key   string
	Value any
	// Field is the property whose constraint failed; it differs from Key
	// when the new value breaks a relation with another property.
	Field string
	Rule  string
}

func (e *RangeError) Error() string {
	if e.Field != "" && e.Field != e.Key {
		return fmt.Sprintf("view %s: property %q = %v out of range: %s violates %s", e.Kind, e.Key, e.Value, e.Field, e.Rule)
	}
	return fmt.Sprintf("view %s: property %q = %v out of range: %s", e.Kind, e.Key, e.Value, e.Rule)
}

func (e *RangeError) Is(target error) bool { return target == ErrView }

// SchemaError reports a child declaration that does not match the kind's
// child schema. The previous child list is kept.
type SchemaError struct {
	Kind string
	// Index is the offending child's position, or -1 for list-level errors.
	Index  int
	Field  string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("view %s: children: %s", e.Kind, e.Reason)
	case e.Field != "":
		return fmt.Sprintf("view %s: child %d: field %q: %s", e.Kind, e.Index, e.Field, e.Reason)
	default:
		return fmt.Sprintf("view %s: child %d: %s", e.Kind, e.Index, e.Reason)
	}
}

func (e *SchemaError) Unwrap() error { return e.Err }

func (e *SchemaError) Is(target error) bool { return target == ErrView }
