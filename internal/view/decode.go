package view

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Property and child fields are declared with a `prop:"name[,optional]"`
// tag. Constraints use validator tags on the same fields.

var (
	errWrongType = errors.New("wrong type")
	errOverflow  = errors.New("value overflows")
	errMissing   = errors.New("missing required field")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := propName(f); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

func propName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("prop"), ",")
	return name
}

type fieldInfo struct {
	name     string
	index    int
	typ      reflect.Type
	optional bool
}

type structInfo struct {
	fields []*fieldInfo
	byName map[string]*fieldInfo
}

var structInfos sync.Map

func infoOf(t reflect.Type) *structInfo {
	if v, ok := structInfos.Load(t); ok {
		return v.(*structInfo)
	}
	info := &structInfo{byName: make(map[string]*fieldInfo)}
	for i := range t.NumField() {
		f := t.Field(i)
		tag, ok := f.Tag.Lookup("prop")
		if !ok || !f.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fi := &fieldInfo{name: name, index: i, typ: f.Type, optional: opts == "optional"}
		info.fields = append(info.fields, fi)
		info.byName[name] = fi
	}
	v, _ := structInfos.LoadOrStore(t, info)
	return v.(*structInfo)
}

// typeName describes t the way script authors see it.
func typeName(t reflect.Type) string {
	switch {
	case t == handleType:
		return "icon"
	case t.Kind() == reflect.Int:
		return "integer"
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8:
		return "byte array"
	case t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.String:
		return "string array"
	}
	return t.Kind().String()
}

// coerce converts v to t. Script numbers arrive as float64 or int64 and are
// accepted for integer fields when integral.
func coerce(t reflect.Type, v any) (reflect.Value, error) {
	if v != nil && reflect.TypeOf(v) == t {
		return cloneValue(reflect.ValueOf(v)), nil
	}
	switch t.Kind() {
	case reflect.String:
		if s, ok := v.(string); ok {
			return reflect.ValueOf(s).Convert(t), nil
		}
	case reflect.Bool:
		if b, ok := v.(bool); ok {
			return reflect.ValueOf(b).Convert(t), nil
		}
	case reflect.Int:
		n, err := toInt(v)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(n).Convert(t), nil
	case reflect.Slice:
		switch t.Elem().Kind() {
		case reflect.Uint8:
			b, err := toBytes(v)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(b).Convert(t), nil
		case reflect.String:
			s, err := toStrings(v)
			if err != nil {
				return reflect.Value{}, err
			}
			return reflect.ValueOf(s).Convert(t), nil
		}
	}
	return reflect.Value{}, errWrongType
}

func cloneValue(v reflect.Value) reflect.Value {
	if v.Kind() != reflect.Slice || v.IsNil() {
		return v
	}
	out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	reflect.Copy(out, v)
	return out
}

func toInt(v any) (int, error) {
	if v == nil {
		return 0, errWrongType
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := rv.Int()
		if n < math.MinInt || n > math.MaxInt {
			return 0, errOverflow
		}
		return int(n), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n := rv.Uint()
		if n > math.MaxInt {
			return 0, errOverflow
		}
		return int(n), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
			return 0, errWrongType
		}
		if f < math.MinInt || f >= -math.MinInt {
			return 0, errOverflow
		}
		return int(f), nil
	}
	return 0, errWrongType
}

func toBytes(v any) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return append([]byte(nil), b...), nil
	case []any:
		out := make([]byte, len(b))
		for i, e := range b {
			n, err := toInt(e)
			if err != nil {
				return nil, errWrongType
			}
			if n < 0 || n > math.MaxUint8 {
				return nil, errOverflow
			}
			out[i] = byte(n)
		}
		return out, nil
	}
	return nil, errWrongType
}

func toStrings(v any) ([]string, error) {
	switch s := v.(type) {
	case []string:
		return append([]string(nil), s...), nil
	case []any:
		out := make([]string, len(s))
		for i, e := range s {
			str, ok := e.(string)
			if !ok {
				return nil, errWrongType
			}
			out[i] = str
		}
		return out, nil
	}
	return nil, errWrongType
}

// firstViolation extracts the prop name and rule of the first validator
// failure.
func firstViolation(err error) (field, rule string) {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) && len(ves) > 0 {
		fe := ves[0]
		rule = fe.Tag()
		if p := fe.Param(); p != "" {
			rule += "=" + p
		}
		return fe.Field(), rule
	}
	return "", err.Error()
}

// childSchema describes the accepted shapes of a kind's children: a single
// shape, or a discriminated union selected by the value of tag.
type childSchema struct {
	tag      string
	variants map[string]reflect.Type
	single   reflect.Type
}

func singleChild[T any]() *childSchema {
	return &childSchema{single: reflect.TypeFor[T]()}
}

func (s *childSchema) accepts(t reflect.Type) bool {
	if s.single != nil {
		return t == s.single
	}
	for _, v := range s.variants {
		if v == t {
			return true
		}
	}
	return false
}

func (s *childSchema) tags() []string {
	tags := make([]string, 0, len(s.variants))
	for k := range s.variants {
		tags = append(tags, k)
	}
	sort.Strings(tags)
	return tags
}

// checker is implemented by child types with constraints spanning fields.
type checker interface {
	check() error
}

// decodeChildren converts raw declarations into typed children. Values
// already of a schema type are validated and copied.
func decodeChildren(kind string, s *childSchema, raw []any) ([]any, error) {
	if s == nil {
		if len(raw) != 0 {
			return nil, &SchemaError{Kind: kind, Index: -1, Reason: "kind takes no children"}
		}
		return nil, nil
	}
	out := make([]any, 0, len(raw))
	for i, r := range raw {
		c, err := s.decode(kind, i, r)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *childSchema) decode(kind string, i int, raw any) (any, error) {
	if raw == nil {
		return nil, &SchemaError{Kind: kind, Index: i, Reason: "nil child"}
	}
	var v reflect.Value
	switch rt := reflect.TypeOf(raw); {
	case s.accepts(rt):
		v = cloneStruct(reflect.ValueOf(raw))
	case s.single != nil && s.single.Kind() != reflect.Struct:
		cv, err := coerce(s.single, raw)
		if err != nil {
			return nil, &SchemaError{Kind: kind, Index: i, Reason: fmt.Sprintf("want %s, got %T", typeName(s.single), raw), Err: err}
		}
		v = cv
	default:
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, &SchemaError{Kind: kind, Index: i, Reason: fmt.Sprintf("want object, got %T", raw)}
		}
		t := s.single
		if t == nil {
			tag, _ := m[s.tag].(string)
			if t, ok = s.variants[tag]; !ok {
				return nil, &SchemaError{Kind: kind, Index: i, Field: s.tag,
					Reason: fmt.Sprintf("unknown variant %q, want one of %s", tag, strings.Join(s.tags(), ", "))}
			}
		}
		var err error
		if v, err = decodeStruct(kind, i, t, m); err != nil {
			return nil, err
		}
	}
	if v.Kind() == reflect.Struct {
		if err := validate.Struct(v.Interface()); err != nil {
			field, rule := firstViolation(err)
			return nil, &SchemaError{Kind: kind, Index: i, Field: field, Reason: "violates " + rule, Err: err}
		}
		if c, ok := v.Interface().(checker); ok {
			if err := c.check(); err != nil {
				return nil, &SchemaError{Kind: kind, Index: i, Reason: err.Error(), Err: err}
			}
		}
	}
	return v.Interface(), nil
}

func cloneStruct(v reflect.Value) reflect.Value {
	if v.Kind() != reflect.Struct {
		return cloneValue(v)
	}
	out := reflect.New(v.Type()).Elem()
	out.Set(v)
	for _, fi := range infoOf(v.Type()).fields {
		out.Field(fi.index).Set(cloneValue(v.Field(fi.index)))
	}
	return out
}

func decodeStruct(kind string, i int, t reflect.Type, m map[string]any) (reflect.Value, error) {
	v := reflect.New(t).Elem()
	for _, fi := range infoOf(t).fields {
		raw, ok := m[fi.name]
		if !ok || raw == nil {
			if fi.optional {
				continue
			}
			return reflect.Value{}, &SchemaError{Kind: kind, Index: i, Field: fi.name, Reason: errMissing.Error(), Err: errMissing}
		}
		cv, err := coerce(fi.typ, raw)
		if err != nil {
			return reflect.Value{}, &SchemaError{Kind: kind, Index: i, Field: fi.name,
				Reason: fmt.Sprintf("want %s, got %T", typeName(fi.typ), raw), Err: err}
		}
		v.Field(fi.index).Set(cv)
	}
	return v, nil
}
