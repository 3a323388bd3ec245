package scripting

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeycumines/viewloop/internal/eventloop"
	"github.com/joeycumines/viewloop/internal/gui"
	"github.com/joeycumines/viewloop/internal/input"
	"github.com/joeycumines/viewloop/internal/view"
)

type testHost struct {
	*Host
	loop   *eventloop.Loop
	disp   *gui.Dispatcher
	logs   *LogBuffer
	frames []view.Frame

	mu     sync.Mutex
	faults []*eventloop.SubscriptionCallbackError
}

func newTestHost(t *testing.T, opts ...Option) *testHost {
	t.Helper()
	th := &testHost{logs: NewLogBuffer(100, slog.LevelDebug, nil)}
	logger := slog.New(th.logs)
	th.loop = eventloop.New(eventloop.WithLogger(logger), eventloop.WithErrorHandler(func(e *eventloop.SubscriptionCallbackError) {
		th.mu.Lock()
		defer th.mu.Unlock()
		th.faults = append(th.faults, e)
	}))
	disp, err := gui.NewDispatcher(th.loop, gui.WithLogger(logger), gui.WithRenderer(gui.RendererFunc(func(f view.Frame) error {
		th.frames = append(th.frames, f)
		return nil
	})))
	require.NoError(t, err)
	th.disp = disp
	th.Host = NewHost(th.loop, disp, append([]Option{WithLogger(logger)}, opts...)...)
	th.RegisterModule("test", func(vm *goja.Runtime, module *goja.Object) {
		exports := module.Get("exports").(*goja.Object)
		_ = exports.Set("click", func(call goja.FunctionCall) goja.Value {
			k, err := input.ParseKey(call.Argument(0).String())
			if err != nil {
				panic(vm.NewGoError(err))
			}
			for _, ev := range input.Click(k) {
				if err := th.loop.PostInput(ev); err != nil {
					panic(vm.NewGoError(err))
				}
			}
			return goja.Undefined()
		})
	})
	t.Cleanup(func() { _ = th.Close() })
	return th
}

func (th *testHost) run(t *testing.T, src string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, th.Run(ctx, "test.js", src))
}

func (th *testHost) global(name string) any {
	return th.Runtime().Get(name).Export()
}

func TestSubscribe_CapturedContextFold(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	th.run(t, `
		let eventLoop = require("event_loop");
		var counts = [];
		eventLoop.subscribe(eventLoop.timer("periodic", 5), function (sub, tick, n, label) {
			counts.push(label + n + "@" + tick);
			if (n === 2) {
				sub.cancel();
				eventLoop.stop();
			}
			return [n + 1, label];
		}, 0, "c");
		eventLoop.run();
	`)
	assert.Equal(t, []any{"c0@1", "c1@2", "c2@3"}, th.global("counts"))
}

func TestSubscribe_NonArrayReturnKeepsContext(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	th.run(t, `
		let eventLoop = require("event_loop");
		var seen = [];
		eventLoop.subscribe(eventLoop.timer("periodic", 5), function (sub, tick, a) {
			seen.push(a);
			if (tick === 2) eventLoop.stop();
			return "ignored";
		}, "same");
		eventLoop.run();
	`)
	assert.Equal(t, []any{"same", "same"}, th.global("seen"))
}

func TestNavigation_CapturingView(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	th.run(t, `
		let eventLoop = require("event_loop");
		let gui = require("gui");
		let test = require("test");
		let loading = require("gui/loading").make();
		let empty = require("gui/empty_screen").make();
		var navs = [];
		eventLoop.subscribe(gui.viewDispatcher.navigation, function (_s, ev) {
			navs.push(ev.key + "/" + ev.type);
		});
		var before = gui.viewDispatcher.currentView;
		gui.viewDispatcher.switchTo(loading);
		var same = gui.viewDispatcher.currentView === loading;
		test.click("back");
		eventLoop.subscribe(eventLoop.timer("oneshot", 20), function () {
			gui.viewDispatcher.switchTo(empty);
			test.click("back");
			eventLoop.subscribe(eventLoop.timer("oneshot", 20), function () {
				eventLoop.stop();
			});
		});
		eventLoop.run();
		var after = gui.viewDispatcher.currentView === empty;
	`)
	assert.Nil(t, th.global("before"))
	assert.Equal(t, true, th.global("same"))
	assert.Equal(t, true, th.global("after"))
	assert.Equal(t, []any{"back/short"}, th.global("navs"))
	assert.Len(t, th.frames, 2)
}

func TestViewErrors(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	th.run(t, `
		let numberInput = require("gui/number_input");
		let ni = numberInput.makeWith({ minValue: 0, maxValue: 200, defaultValue: 100 });
		var errs = [];
		function expect(ctor, fn) {
			try { fn(); errs.push("no error"); } catch (e) { errs.push(e instanceof ctor); }
		}
		expect(RangeError, function () { ni.set("defaultValue", 300); });
		ni.set("defaultValue", 150);
		var value = ni.get("defaultValue");
		expect(TypeError, function () { ni.set("nope", 1); });
		expect(TypeError, function () { ni.set("header", 5); });
		expect(TypeError, function () { ni.set("defaultValue", 1.5); });
		expect(RangeError, function () { numberInput.makeWith({ minValue: 10, maxValue: 5, defaultValue: 7 }); });
		expect(TypeError, function () { require("gui/submenu").makeWith({}, [{ nope: true }]); });
		expect(TypeError, function () { require("event_loop").subscribe({}, function () {}); });
		expect(RangeError, function () { require("event_loop").timer("oneshot", 0); });
		var kind = ni.kind;
	`)
	assert.Equal(t, []any{true, true, true, true, true, true, true, true}, th.global("errs"))
	assert.Equal(t, int64(150), th.global("value"))
	assert.Equal(t, "number_input", th.global("kind"))
}

func TestBytesRoundTrip(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	th.run(t, `
		let bi = require("gui/byte_input").makeWith({ length: 4, defaultData: new Uint8Array([1, 2, 255]) });
		var fromTyped = Array.from(new Uint8Array(bi.get("defaultData")));
		bi.set("defaultData", new Uint8Array([9, 8]).buffer);
		var fromBuffer = Array.from(new Uint8Array(bi.get("defaultData")));
		bi.set("defaultData", [7]);
		var fromArray = Array.from(new Uint8Array(bi.get("defaultData")));
	`)
	assert.Equal(t, []any{int64(1), int64(2), int64(255)}, th.global("fromTyped"))
	assert.Equal(t, []any{int64(9), int64(8)}, th.global("fromBuffer"))
	assert.Equal(t, []any{int64(7)}, th.global("fromArray"))
}

func TestBytesRejectsLookalikes(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	th.run(t, `
		let bi = require("gui/byte_input").makeWith({ length: 4 });
		var errs = [];
		function expect(value) {
			try { bi.set("defaultData", value); errs.push("no error"); } catch (e) { errs.push(e instanceof TypeError); }
		}
		expect({ buffer: new ArrayBuffer(4) });
		expect({ buffer: new ArrayBuffer(4), BYTES_PER_ELEMENT: 1, byteOffset: 0, byteLength: 4 });
		expect({ buffer: 7 });
		expect(new Int16Array([1, 2]));
		bi.set("defaultData", new Uint8Array(new ArrayBuffer(8), 2, 3));
		var length = new Uint8Array(bi.get("defaultData")).length;
	`)
	assert.Equal(t, []any{true, true, true, true}, th.global("errs"))
	assert.Equal(t, int64(3), th.global("length"))
}

func TestPayloadObjects(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	obj := th.toJS(view.IndexedInput{Index: 2, Type: input.TypeLong}).ToObject(th.Runtime())
	assert.Equal(t, int64(2), obj.Get("index").Export())
	assert.Equal(t, "long", obj.Get("type").String())

	obj = th.toJS(view.ValueUpdate{ItemIndex: 1, ValueIndex: 3}).ToObject(th.Runtime())
	assert.Equal(t, int64(1), obj.Get("itemIndex").Export())
	assert.Equal(t, int64(3), obj.Get("valueIndex").Export())

	obj = th.toJS(view.ButtonEvent{Key: input.KeyOk, Type: input.TypeShort}).ToObject(th.Runtime())
	assert.Equal(t, "center", obj.Get("key").String())
	assert.Equal(t, "short", obj.Get("type").String())

	assert.True(t, goja.IsUndefined(th.toJS(nil)))
	assert.Equal(t, int64(5), th.toJS(5).Export())
}

func TestWidgetAndIcons(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	th.run(t, `
		let icon = require("gui/icon");
		let logo = icon.getBuiltin("js_script_10px");
		let w = require("gui/widget").makeWith({}, [
			{ element: "icon", x: 1, y: 2, iconData: logo },
			{ element: "button", button: "right", text: "Back" },
		]);
		var missing;
		try { icon.getBuiltin("nope"); } catch (e) { missing = e instanceof TypeError; }
		require("gui").viewDispatcher.switchTo(w);
	`)
	assert.Equal(t, true, th.global("missing"))
	require.Len(t, th.frames, 1)
	f := th.frames[0]
	assert.Equal(t, "Back", f.Buttons.Right)
	require.NotEmpty(t, f.Lines)
	assert.Equal(t, "js_script_10px", f.Lines[0].IconName)
}

func TestCallbackErrorIsolated(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	th.run(t, `
		let eventLoop = require("event_loop");
		let timer = eventLoop.timer("oneshot", 5);
		var reached = false;
		eventLoop.subscribe(timer, function () { throw new Error("boom"); });
		eventLoop.subscribe(timer, function () { reached = true; eventLoop.stop(); });
		eventLoop.run();
	`)
	assert.Equal(t, true, th.global("reached"))
	th.mu.Lock()
	defer th.mu.Unlock()
	require.Len(t, th.faults, 1)
	assert.Contains(t, th.faults[0].Error(), "boom")
}

func TestConsoleLogsWithRunID(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	th.run(t, `console.log("hello from js"); console.warn("careful");`)
	got := th.logs.Search("hello from js")
	require.Len(t, got, 1)
	assert.Equal(t, "script", got[0].Attrs["source"])
	assert.Equal(t, th.RunID(), got[0].Attrs["run"])
	warn := th.logs.Search("careful")
	require.Len(t, warn, 1)
	assert.Equal(t, slog.LevelWarn, warn[0].Level)
}

func TestFlipperAndMath(t *testing.T) {
	t.Parallel()
	th := newTestHost(t, WithDeviceName("unit"))
	th.run(t, `
		let math = require("math");
		var name = require("flipper").getName();
		var results = [math.floor(2.7), math.abs(-3), math.max(1, 5, 2), math.min(4, -1), math.isEqual(0.1 + 0.2, 0.3, math.EPSILON)];
	`)
	assert.Equal(t, "unit", th.global("name"))
	assert.Equal(t, []any{int64(2), int64(3), int64(5), int64(-1), true}, th.global("results"))
}

func TestModulePaths(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "helper.js"),
		[]byte(`module.exports = { twice: function (x) { return 2 * x; } };`), 0o644))
	th := newTestHost(t, WithModulePaths(dir))
	th.run(t, `var answer = require("helper").twice(21);`)
	assert.Equal(t, int64(42), th.global("answer"))
}

func TestRun_ContextCancel(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := th.Run(ctx, "idle.js", `require("event_loop").run();`)
	require.Error(t, err)
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	require.Error(t, th.Run(context.Background(), "bad.js", `let = ;`))
	require.Error(t, th.Run(context.Background(), "throw.js", `require("gui/file_picker");`))
	require.Error(t, th.RunFile(context.Background(), filepath.Join(t.TempDir(), "missing.js")))

	require.NoError(t, th.Close())
	require.ErrorIs(t, th.Run(context.Background(), "late.js", `1`), ErrHostClosed)
}

func TestClose_DestroysViews(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	th.run(t, `var v = require("gui/dialog").make();`)
	obj := th.Runtime().Get("v").(*goja.Object)
	v := th.objects[obj]
	require.NotNil(t, v)
	require.NoError(t, th.Close())
	assert.True(t, v.Destroyed())
	assert.True(t, th.disp.Navigation().Destroyed())
}

func TestDemo_ExitsFromChooser(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	for range 12 {
		for _, ev := range input.Click(input.KeyDown) {
			require.NoError(t, th.loop.PostInput(ev))
		}
	}
	for _, ev := range input.Click(input.KeyOk) {
		require.NoError(t, th.loop.PostInput(ev))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, th.RunDemo(ctx))

	require.NotEmpty(t, th.frames)
	last := th.frames[len(th.frames)-1]
	assert.Equal(t, "Choose a demo", last.Header)
	assert.Equal(t, 12, last.Selected())
}

func TestDemo_BackOnChooserStops(t *testing.T) {
	t.Parallel()
	th := newTestHost(t)
	for _, ev := range input.Click(input.KeyBack) {
		require.NoError(t, th.loop.PostInput(ev))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, th.RunDemo(ctx))
}
