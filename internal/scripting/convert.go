package scripting

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/dop251/goja"

	"github.com/joeycumines/viewloop/internal/input"
	"github.com/joeycumines/viewloop/internal/view"
)

func isNullish(v goja.Value) bool {
	return v == nil || goja.IsUndefined(v) || goja.IsNull(v)
}

// exportValue converts a JS value into the plain Go values views accept:
// ArrayBuffer and byte typed arrays become []byte, objects maps, arrays []any
// and numbers int64 or float64. Wrapped Go values (icon handles) are
// returned as they are.
func exportValue(v goja.Value) any {
	if isNullish(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return v.Export()
	}
	if obj.ClassName() == "Array" {
		n := int(obj.Get("length").ToInteger())
		out := make([]any, n)
		for i := range n {
			out[i] = exportValue(obj.Get(strconv.Itoa(i)))
		}
		return out
	}
	x := obj.Export()
	switch b := x.(type) {
	case goja.ArrayBuffer:
		return bytes.Clone(b.Bytes())
	case []byte:
		return bytes.Clone(b)
	}
	if _, plain := x.(map[string]any); !plain {
		if b, ok := byteView(obj); ok {
			return b
		}
		return x
	}
	out := make(map[string]any)
	for _, k := range obj.Keys() {
		out[k] = exportValue(obj.Get(k))
	}
	return out
}

// byteView copies the bytes of a one-byte-per-element view over an
// ArrayBuffer.
func byteView(obj *goja.Object) ([]byte, bool) {
	buf := obj.Get("buffer")
	if buf == nil {
		return nil, false
	}
	ab, ok := buf.Export().(goja.ArrayBuffer)
	if !ok {
		return nil, false
	}
	field := func(name string) (int64, bool) {
		v := obj.Get(name)
		if v == nil {
			return 0, false
		}
		n, ok := v.Export().(int64)
		return n, ok
	}
	bpe, ok1 := field("BYTES_PER_ELEMENT")
	off, ok2 := field("byteOffset")
	n, ok3 := field("byteLength")
	data := ab.Bytes()
	if !ok1 || !ok2 || !ok3 || bpe != 1 || off < 0 || n < 0 || off+n > int64(len(data)) {
		return nil, false
	}
	return bytes.Clone(data[off : off+n]), true
}

// exportList converts an optional JS array.
func exportList(v goja.Value) ([]any, error) {
	if isNullish(v) {
		return nil, nil
	}
	list, ok := exportValue(v).([]any)
	if !ok {
		return nil, fmt.Errorf("want an array, got %s", v.String())
	}
	return list, nil
}

// toJS converts a payload or property value for scripts. Event payloads
// become plain objects with string key and type names.
func (h *Host) toJS(x any) goja.Value {
	vm := h.vm
	switch p := x.(type) {
	case nil:
		return goja.Undefined()
	case []byte:
		return vm.ToValue(vm.NewArrayBuffer(bytes.Clone(p)))
	case []string:
		items := make([]any, len(p))
		for i, s := range p {
			items[i] = s
		}
		return vm.NewArray(items...)
	case view.IndexedInput:
		return h.object("index", p.Index, "type", p.Type.String())
	case view.ValueUpdate:
		return h.object("itemIndex", p.ItemIndex, "valueIndex", p.ValueIndex)
	case view.ButtonEvent:
		return h.object("key", buttonName(p.Key), "type", p.Type.String())
	case input.Event:
		return h.object("key", p.Key.String(), "type", p.Type.String())
	}
	return vm.ToValue(x)
}

// buttonName names keys the way widget button elements do.
func buttonName(k input.Key) string {
	if k == input.KeyOk {
		return "center"
	}
	return k.String()
}

func (h *Host) object(kv ...any) *goja.Object {
	obj := h.vm.NewObject()
	for i := 0; i+1 < len(kv); i += 2 {
		_ = obj.Set(kv[i].(string), kv[i+1])
	}
	return obj
}

// throw raises err in the script as the matching JS error type.
func (h *Host) throw(err error) {
	var (
		typeErr  *view.TypeError
		rangeErr *view.RangeError
		valErr   *view.ValidationError
		propErr  *view.UnknownPropertyError
		schemErr *view.SchemaError
	)
	switch {
	case errors.As(err, &typeErr), errors.As(err, &propErr), errors.As(err, &schemErr):
		panic(h.vm.NewTypeError(err.Error()))
	case errors.As(err, &rangeErr), errors.As(err, &valErr):
		panic(h.newError("RangeError", err.Error()))
	}
	panic(h.vm.NewGoError(err))
}

// newError constructs one of the global error types.
func (h *Host) newError(ctor, msg string) *goja.Object {
	c, ok := goja.AssertConstructor(h.vm.Get(ctor))
	if !ok {
		return h.vm.NewGoError(errors.New(msg))
	}
	obj, err := c(nil, h.vm.ToValue(msg))
	if err != nil {
		return h.vm.NewGoError(errors.New(msg))
	}
	return obj
}
