package scripting

import (
	"errors"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/dop251/goja"

	"github.com/joeycumines/viewloop/internal/eventloop"
	"github.com/joeycumines/viewloop/internal/view"
)

// requireEventLoop implements require("event_loop").
func (h *Host) requireEventLoop(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)

	// subscribe(contract, callback, ...captured): subscription
	_ = exports.Set("subscribe", func(call goja.FunctionCall) goja.Value {
		c := h.contractArg(call.Argument(0))
		fn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(vm.NewTypeError("subscribe: callback is not a function"))
		}
		captured := make([]any, 0, max(len(call.Arguments)-2, 0))
		for _, a := range call.Arguments[min(2, len(call.Arguments)):] {
			captured = append(captured, a)
		}

		var subObj *goja.Object
		sub, err := h.loop.Subscribe(c, func(_ *eventloop.Subscription, item any, captured []any) ([]any, error) {
			args := make([]goja.Value, 0, len(captured)+2)
			args = append(args, subObj, h.toJS(item))
			for _, v := range captured {
				args = append(args, v.(goja.Value))
			}
			ret, err := fn(goja.Undefined(), args...)
			if err != nil {
				return nil, err
			}
			return h.foldContext(ret), nil
		}, captured...)
		if err != nil {
			panic(vm.NewGoError(err))
		}
		subObj = h.subscriptionObject(sub)
		return subObj
	})

	// timer(kind: "oneshot" | "periodic", ms): contract
	_ = exports.Set("timer", func(call goja.FunctionCall) goja.Value {
		kind, err := eventloop.ParseTimerKind(call.Argument(0).String())
		if err != nil {
			panic(vm.NewTypeError(err.Error()))
		}
		ms := call.Argument(1).ToInteger()
		c, err := h.loop.Timer(kind, time.Duration(ms)*time.Millisecond)
		if err != nil {
			if errors.Is(err, eventloop.ErrInvalidPeriod) {
				panic(h.newError("RangeError", err.Error()))
			}
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(c)
	})

	_ = exports.Set("run", func(goja.FunctionCall) goja.Value {
		if err := h.loop.Run(h.ctx); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	})

	_ = exports.Set("stop", func(goja.FunctionCall) goja.Value {
		h.loop.Stop()
		return goja.Undefined()
	})
}

func (h *Host) contractArg(v goja.Value) *eventloop.Contract {
	if c, ok := v.Export().(*eventloop.Contract); ok && c != nil {
		return c
	}
	panic(h.vm.NewTypeError("not a contract: " + v.String()))
}

// foldContext turns a callback's return value into the next captured
// context: an array replaces it, anything else keeps it.
func (h *Host) foldContext(ret goja.Value) []any {
	if ret == nil || goja.IsUndefined(ret) || goja.IsNull(ret) {
		return nil
	}
	obj, ok := ret.(*goja.Object)
	if !ok || obj.ClassName() != "Array" {
		return nil
	}
	n := int(obj.Get("length").ToInteger())
	next := make([]any, n)
	for i := range n {
		v := obj.Get(strconv.Itoa(i))
		if v == nil {
			v = goja.Undefined()
		}
		next[i] = v
	}
	return next
}

func (h *Host) subscriptionObject(sub *eventloop.Subscription) *goja.Object {
	vm := h.vm
	obj := vm.NewObject()
	_ = obj.Set("cancel", func(goja.FunctionCall) goja.Value {
		if err := sub.Cancel(); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	_ = obj.Set("enable", func(goja.FunctionCall) goja.Value {
		sub.Enable()
		return goja.Undefined()
	})
	_ = obj.Set("disable", func(goja.FunctionCall) goja.Value {
		sub.Disable()
		return goja.Undefined()
	})
	_ = obj.DefineAccessorProperty("enabled", vm.ToValue(func(goja.FunctionCall) goja.Value {
		return vm.ToValue(sub.Enabled())
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	return obj
}

// requireGUI implements require("gui").
func (h *Host) requireGUI(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	d := vm.NewObject()

	_ = d.Set("switchTo", func(call goja.FunctionCall) goja.Value {
		v := h.viewArg(call.Argument(0))
		if err := h.disp.SwitchTo(v); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	_ = d.DefineAccessorProperty("currentView", vm.ToValue(func(goja.FunctionCall) goja.Value {
		if obj, ok := h.views[h.disp.CurrentView()]; ok {
			return obj
		}
		return goja.Null()
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = d.DefineDataProperty("navigation", vm.ToValue(h.disp.Navigation()), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = exports.Set("viewDispatcher", d)
}

func (h *Host) viewArg(v goja.Value) *view.View {
	if obj, ok := v.(*goja.Object); ok {
		if vw, ok := h.objects[obj]; ok {
			return vw
		}
	}
	panic(h.vm.NewTypeError("not a view: " + v.String()))
}

// requireKind implements require("gui/<kind>").
func (h *Host) requireKind(kind string) func(*goja.Runtime, *goja.Object) {
	return func(vm *goja.Runtime, module *goja.Object) {
		exports := module.Get("exports").(*goja.Object)
		_ = exports.Set("make", func(goja.FunctionCall) goja.Value {
			v, err := h.factory.Make(kind)
			if err != nil {
				h.throw(err)
			}
			return h.viewObject(v)
		})
		_ = exports.Set("makeWith", func(call goja.FunctionCall) goja.Value {
			props, ok := exportValue(call.Argument(0)).(map[string]any)
			if !ok && !isNullish(call.Argument(0)) {
				panic(vm.NewTypeError("makeWith: props must be an object"))
			}
			children, err := exportList(call.Argument(1))
			if err != nil {
				panic(vm.NewTypeError("makeWith: " + err.Error()))
			}
			v, err := h.factory.MakeWith(kind, props, children)
			if err != nil {
				h.throw(err)
			}
			return h.viewObject(v)
		})
	}
}

// viewObject returns the JS object of v, creating it on first use so that
// identity comparison works in scripts.
func (h *Host) viewObject(v *view.View) *goja.Object {
	if obj, ok := h.views[v]; ok {
		return obj
	}
	vm := h.vm
	obj := vm.NewObject()
	_ = obj.Set("set", func(call goja.FunctionCall) goja.Value {
		if err := v.Set(call.Argument(0).String(), exportValue(call.Argument(1))); err != nil {
			h.throw(err)
		}
		return goja.Undefined()
	})
	_ = obj.Set("get", func(call goja.FunctionCall) goja.Value {
		val, err := v.Get(call.Argument(0).String())
		if err != nil {
			h.throw(err)
		}
		return h.toJS(val)
	})
	_ = obj.Set("setChildren", func(call goja.FunctionCall) goja.Value {
		children, err := exportList(call.Argument(0))
		if err != nil {
			panic(vm.NewTypeError("setChildren: " + err.Error()))
		}
		if err := v.SetChildren(children); err != nil {
			h.throw(err)
		}
		return goja.Undefined()
	})
	_ = obj.Set("destroy", func(goja.FunctionCall) goja.Value {
		if err := v.Destroy(); err != nil {
			panic(vm.NewGoError(err))
		}
		return goja.Undefined()
	})
	_ = obj.DefineDataProperty("kind", vm.ToValue(v.Kind()), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	for _, name := range v.ContractNames() {
		c, _ := v.Contract(name)
		_ = obj.DefineDataProperty(name, vm.ToValue(c), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	}
	h.views[v] = obj
	h.objects[obj] = v
	return obj
}

// requireIcon implements require("gui/icon").
func (h *Host) requireIcon(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	_ = exports.Set("getBuiltin", func(call goja.FunctionCall) goja.Value {
		hd, err := h.icons.Builtin(call.Argument(0).String())
		if err != nil {
			panic(vm.NewTypeError(err.Error()))
		}
		return vm.ToValue(hd)
	})
	_ = exports.Set("loadFxbm", func(call goja.FunctionCall) goja.Value {
		hd, err := h.icons.LoadFxbm(call.Argument(0).String())
		if err != nil {
			panic(vm.NewGoError(err))
		}
		return vm.ToValue(hd)
	})
}

// requireFlipper implements require("flipper").
func (h *Host) requireFlipper(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	_ = exports.Set("getName", func(goja.FunctionCall) goja.Value { return vm.ToValue(h.device) })
	_ = exports.Set("getModel", func(goja.FunctionCall) goja.Value { return vm.ToValue("viewloop") })
}

// requireMath implements require("math").
func requireMath(vm *goja.Runtime, module *goja.Object) {
	exports := module.Get("exports").(*goja.Object)
	for name, fn := range map[string]func(float64) float64{
		"abs":   math.Abs,
		"acos":  math.Acos,
		"asin":  math.Asin,
		"atan":  math.Atan,
		"cbrt":  math.Cbrt,
		"ceil":  math.Ceil,
		"cos":   math.Cos,
		"exp":   math.Exp,
		"floor": math.Floor,
		"log":   math.Log,
		"round": math.Round,
		"sin":   math.Sin,
		"sqrt":  math.Sqrt,
		"tan":   math.Tan,
		"trunc": math.Trunc,
	} {
		_ = exports.Set(name, fn)
	}
	_ = exports.Set("pow", math.Pow)
	_ = exports.Set("atan2", math.Atan2)
	_ = exports.Set("sign", func(x float64) float64 {
		switch {
		case x > 0:
			return 1
		case x < 0:
			return -1
		}
		return x
	})
	_ = exports.Set("min", func(xs ...float64) float64 {
		r := math.Inf(1)
		for _, x := range xs {
			r = math.Min(r, x)
		}
		return r
	})
	_ = exports.Set("max", func(xs ...float64) float64 {
		r := math.Inf(-1)
		for _, x := range xs {
			r = math.Max(r, x)
		}
		return r
	})
	_ = exports.Set("random", rand.Float64)
	_ = exports.Set("isEqual", func(a, b, tolerance float64) bool {
		return math.Abs(a-b) <= tolerance
	})
	_ = exports.Set("PI", math.Pi)
	_ = exports.Set("E", math.E)
	_ = exports.Set("EPSILON", 2.220446049250313e-16)
}
