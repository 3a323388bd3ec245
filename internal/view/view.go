// Package view implements declarative views: a kind-specific set of
// properties, an ordered list of child declarations and the output
// contracts through which a view reports what the user did.
//
// Every kind is an entry in a table (see Kinds). Properties and children are
// decoded and validated by one reflect-driven decoder, so Set, MakeWith and
// SetChildren enforce the same rules for every kind.
package view

import (
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"slices"
	"sort"

	"github.com/joeycumines/viewloop/internal/eventloop"
	"github.com/joeycumines/viewloop/internal/icon"
	"github.com/joeycumines/viewloop/internal/input"
)

// Viewport is the visible area, in text cells, used for wrapping and paging.
type Viewport struct {
	Width  int
	Height int
}

// DefaultViewport matches the reference screen.
var DefaultViewport = Viewport{Width: 30, Height: 8}

// Factory makes views bound to one loop.
type Factory struct {
	loop     *eventloop.Loop
	icons    icon.Resolver
	logger   *slog.Logger
	viewport Viewport
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithLogger sets the logger used for publish failures.
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithViewport sets the area used by wrapping and paging views.
func WithViewport(vp Viewport) FactoryOption {
	return func(f *Factory) {
		if vp.Width > 0 {
			f.viewport.Width = vp.Width
		}
		if vp.Height > 0 {
			f.viewport.Height = vp.Height
		}
	}
}

// NewFactory returns a factory creating views whose contracts belong to
// loop. icons may be nil.
func NewFactory(loop *eventloop.Loop, icons icon.Resolver, opts ...FactoryOption) *Factory {
	f := &Factory{
		loop:     loop,
		icons:    icons,
		logger:   loop.Logger(),
		viewport: DefaultViewport,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Icons returns the resolver views were created with.
func (f *Factory) Icons() icon.Resolver { return f.icons }

// Loop returns the loop the factory's views belong to.
func (f *Factory) Loop() *eventloop.Loop { return f.loop }

// Make creates a view of the given kind with default properties and no
// children.
func (f *Factory) Make(kind string) (*View, error) {
	return f.MakeWith(kind, nil, nil)
}

// MakeWith creates a view with initial properties and children. The
// properties are applied together and validated as a whole, so their order
// does not matter.
func (f *Factory) MakeWith(kind string, props map[string]any, children []any) (*View, error) {
	spec, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownKind, kind)
	}

	p := spec.newProps()
	pv := reflect.ValueOf(p).Elem()
	info := infoOf(pv.Type())
	keys := slices.Sorted(maps.Keys(props))
	for _, key := range keys {
		if err := assign(spec.name, info, pv, key, props[key]); err != nil {
			if re, ok := err.(*RangeError); ok {
				return nil, &ValidationError{Kind: spec.name, Field: re.Key, Rule: re.Rule, Err: re}
			}
			return nil, err
		}
	}
	if err := validate.Struct(p); err != nil {
		field, rule := firstViolation(err)
		return nil, &ValidationError{Kind: spec.name, Field: field, Rule: rule, Err: err}
	}

	decoded, err := decodeChildren(spec.name, spec.children, children)
	if err != nil {
		return nil, err
	}
	if spec.check != nil {
		if err := spec.check(p, decoded); err != nil {
			return nil, &ValidationError{Kind: spec.name, Rule: err.Error(), Err: err}
		}
	}

	v := &View{
		factory:   f,
		spec:      spec,
		props:     p,
		children:  decoded,
		contracts: make(map[string]*eventloop.Contract, len(spec.contracts)),
	}
	for _, c := range spec.contracts {
		v.contracts[c.name] = f.loop.NewContract(spec.name+"."+c.name, c.payload)
	}
	v.state = spec.newState(v)
	for _, key := range keys {
		v.state.update(v, key)
	}
	v.state.update(v, "")
	return v, nil
}

// View is one instance of a kind. Views must only be used from the loop
// goroutine once the loop is running.
type View struct {
	factory   *Factory
	spec      *kindSpec
	props     any
	children  []any
	contracts map[string]*eventloop.Contract
	state     state
	observers []*observer
	shown     bool
	destroyed bool
}

type observer struct {
	fn func(*View)
}

// Kind returns the view's kind name.
func (v *View) Kind() string { return v.spec.name }

func (v *View) String() string { return fmt.Sprintf("view(%s %p)", v.spec.name, v) }

// Set assigns one property. On error the property keeps its previous value.
func (v *View) Set(key string, value any) error {
	if v.destroyed {
		return ErrDestroyed
	}
	next := reflect.New(reflect.TypeOf(v.props).Elem())
	next.Elem().Set(reflect.ValueOf(v.props).Elem())
	info := infoOf(next.Elem().Type())
	if err := assign(v.spec.name, info, next.Elem(), key, value); err != nil {
		return err
	}
	p := next.Interface()
	if err := validate.Struct(p); err != nil {
		field, rule := firstViolation(err)
		return &RangeError{Kind: v.spec.name, Key: key, Value: value, Field: field, Rule: rule}
	}
	if v.spec.check != nil {
		if err := v.spec.check(p, v.children); err != nil {
			return &RangeError{Kind: v.spec.name, Key: key, Value: value, Rule: err.Error()}
		}
	}
	v.props = p
	v.state.update(v, key)
	v.changed()
	return nil
}

func assign(kind string, info *structInfo, pv reflect.Value, key string, value any) error {
	fi, ok := info.byName[key]
	if !ok {
		return &UnknownPropertyError{Kind: kind, Key: key}
	}
	cv, err := coerce(fi.typ, value)
	switch err {
	case nil:
	case errOverflow:
		return &RangeError{Kind: kind, Key: key, Value: value, Rule: "overflow"}
	default:
		return &TypeError{Kind: kind, Key: key, Want: typeName(fi.typ), Got: value}
	}
	pv.Field(fi.index).Set(cv)
	return nil
}

// Get returns the current value of a property.
func (v *View) Get(key string) (any, error) {
	pv := reflect.ValueOf(v.props).Elem()
	fi, ok := infoOf(pv.Type()).byName[key]
	if !ok {
		return nil, &UnknownPropertyError{Kind: v.spec.name, Key: key}
	}
	return cloneValue(pv.Field(fi.index)).Interface(), nil
}

// Props returns a copy of every property.
func (v *View) Props() map[string]any {
	pv := reflect.ValueOf(v.props).Elem()
	info := infoOf(pv.Type())
	out := make(map[string]any, len(info.fields))
	for _, fi := range info.fields {
		out[fi.name] = cloneValue(pv.Field(fi.index)).Interface()
	}
	return out
}

// PropNames returns the kind's property names, sorted.
func (v *View) PropNames() []string {
	names := slices.Collect(maps.Keys(infoOf(reflect.TypeOf(v.props).Elem()).byName))
	sort.Strings(names)
	return names
}

// SetChildren replaces the child list. On error the previous list is kept.
func (v *View) SetChildren(children []any) error {
	if v.destroyed {
		return ErrDestroyed
	}
	decoded, err := decodeChildren(v.spec.name, v.spec.children, children)
	if err != nil {
		return err
	}
	if v.spec.check != nil {
		if err := v.spec.check(v.props, decoded); err != nil {
			return &SchemaError{Kind: v.spec.name, Index: -1, Reason: err.Error(), Err: err}
		}
	}
	v.children = decoded
	v.state.update(v, "")
	v.changed()
	return nil
}

// Children returns the decoded child list.
func (v *View) Children() []any { return slices.Clone(v.children) }

// Contract returns an output contract by name.
func (v *View) Contract(name string) (*eventloop.Contract, bool) {
	c, ok := v.contracts[name]
	return c, ok
}

// ContractNames returns the names of the view's output contracts.
func (v *View) ContractNames() []string {
	names := make([]string, 0, len(v.spec.contracts))
	for _, c := range v.spec.contracts {
		names = append(names, c.name)
	}
	return names
}

// HandleInput offers ev to the view and reports whether it was consumed.
func (v *View) HandleInput(ev input.Event) bool {
	if v.destroyed {
		return false
	}
	if v.spec.captures {
		return true
	}
	return v.state.handleInput(v, ev)
}

// CapturesInput reports whether the view consumes every input event.
func (v *View) CapturesInput() bool { return v.spec.captures }

// Frame returns the view's render model.
func (v *View) Frame() Frame {
	f := v.state.frame(v)
	f.Kind = v.spec.name
	return f
}

// OnChange registers fn to be called after every property, child or state
// change. The returned function unregisters it.
func (v *View) OnChange(fn func(*View)) (cancel func()) {
	o := &observer{fn: fn}
	v.observers = append(v.observers, o)
	return func() {
		if i := slices.Index(v.observers, o); i >= 0 {
			v.observers = slices.Delete(v.observers, i, i+1)
		}
	}
}

func (v *View) changed() {
	for _, o := range slices.Clone(v.observers) {
		o.fn(v)
	}
}

// Destroy releases the view's contracts and timers. Further mutation fails
// with ErrDestroyed.
func (v *View) Destroy() error {
	if v.destroyed {
		return nil
	}
	v.destroyed = true
	if d, ok := v.state.(interface{ destroy() }); ok {
		d.destroy()
	}
	var first error
	for _, c := range v.spec.contracts {
		if err := v.contracts[c.name].Destroy(); err != nil && first == nil {
			first = err
		}
	}
	v.observers = nil
	return first
}

// Enter marks the view as shown. Dispatchers call it when the view becomes
// active.
func (v *View) Enter() {
	if v.shown || v.destroyed {
		return
	}
	v.shown = true
	if p, ok := v.state.(presenter); ok {
		p.enter(v)
	}
}

// Exit marks the view as hidden.
func (v *View) Exit() {
	if !v.shown {
		return
	}
	v.shown = false
	if p, ok := v.state.(presenter); ok && !v.destroyed {
		p.exit(v)
	}
}

// Shown reports whether the view is between Enter and Exit.
func (v *View) Shown() bool { return v.shown }

// Destroyed reports whether Destroy has been called.
func (v *View) Destroyed() bool { return v.destroyed }

func (v *View) publish(name string, payload any) {
	c, ok := v.contracts[name]
	if !ok {
		return
	}
	if err := c.Publish(payload); err != nil {
		v.factory.logger.Error("view: publish failed",
			slog.String("kind", v.spec.name),
			slog.String("contract", name),
			slog.Any("error", err),
		)
	}
}

func (v *View) iconName(h icon.Handle) string {
	if h.IsZero() || v.factory.icons == nil {
		return ""
	}
	ic, err := v.factory.icons.Resolve(h)
	if err != nil {
		return ""
	}
	return ic.Name
}
