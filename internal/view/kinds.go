package view

import (
	"fmt"
	"reflect"
	"slices"
	"sort"
	"strings"

	"github.com/joeycumines/viewloop/internal/icon"
	"github.com/joeycumines/viewloop/internal/input"
	"github.com/rivo/uniseg"
)

var handleType = reflect.TypeFor[icon.Handle]()

// state is a kind's runtime behaviour.
type state interface {
	// update is called after a property (by name) or, with "", the
	// children changed.
	update(v *View, changed string)
	handleInput(v *View, ev input.Event) bool
	frame(v *View) Frame
}

// presenter is implemented by states reacting to the view being shown or
// hidden by a dispatcher.
type presenter interface {
	enter(v *View)
	exit(v *View)
}

type contractSpec struct {
	name    string
	payload reflect.Type
}

type kindSpec struct {
	name      string
	newProps  func() any
	children  *childSchema
	contracts []contractSpec
	captures  bool
	// check validates constraints spanning properties and children.
	check    func(props any, children []any) error
	newState func(v *View) state
}

// IndexedInput is published by button_menu and button_panel when an item
// receives ok input.
type IndexedInput struct {
	Index int
	Type  input.Type
}

// ValueUpdate is published by vi_list when an item's variant changes.
type ValueUpdate struct {
	ItemIndex  int
	ValueIndex int
}

// ButtonEvent is published by widget for input on a declared button.
type ButtonEvent struct {
	Key  input.Key
	Type input.Type
}

type noProps struct{}

type headerProps struct {
	Header string `prop:"header"`
}

type buttonPanelProps struct {
	MatrixSizeX int `prop:"matrixSizeX" validate:"min=1,max=255"`
	MatrixSizeY int `prop:"matrixSizeY" validate:"min=1,max=255"`
}

type numberInputProps struct {
	Header       string `prop:"header"`
	MinValue     int    `prop:"minValue" validate:"min=-2147483648,ltefield=MaxValue"`
	MaxValue     int    `prop:"maxValue" validate:"max=2147483647"`
	DefaultValue int    `prop:"defaultValue" validate:"gtefield=MinValue,ltefield=MaxValue"`
}

type textInputProps struct {
	Header           string `prop:"header"`
	MinLength        int    `prop:"minLength" validate:"min=0,ltefield=MaxLength"`
	MaxLength        int    `prop:"maxLength" validate:"min=1,max=256"`
	DefaultText      string `prop:"defaultText"`
	DefaultTextClear bool   `prop:"defaultTextClear"`
}

type byteInputProps struct {
	Header      string `prop:"header"`
	Length      int    `prop:"length" validate:"min=1,max=64"`
	DefaultData []byte `prop:"defaultData"`
}

type textBoxProps struct {
	Text  string `prop:"text"`
	Font  string `prop:"font" validate:"oneof=primary secondary keyboard big_numbers"`
	Focus string `prop:"focus" validate:"oneof=start end"`
}

type dialogProps struct {
	Header string `prop:"header"`
	Text   string `prop:"text"`
	Left   string `prop:"left"`
	Center string `prop:"center"`
	Right  string `prop:"right"`
}

type popupProps struct {
	Header  string `prop:"header"`
	Text    string `prop:"text"`
	Timeout int    `prop:"timeout" validate:"min=0,max=86400000"`
}

// MenuItem is a menu child.
type MenuItem struct {
	Label string      `prop:"label"`
	Icon  icon.Handle `prop:"icon,optional"`
}

// ButtonMenuItem is a button_menu child.
type ButtonMenuItem struct {
	Type  string `prop:"type" validate:"oneof=common control"`
	Label string `prop:"label"`
}

// PanelButton is a selectable button_panel child placed at a matrix cell
// and a pixel position.
type PanelButton struct {
	X            int         `prop:"x"`
	Y            int         `prop:"y"`
	MatrixX      int         `prop:"matrixX" validate:"min=0"`
	MatrixY      int         `prop:"matrixY" validate:"min=0"`
	Icon         icon.Handle `prop:"icon"`
	IconSelected icon.Handle `prop:"iconSelected"`
}

// PanelLabel is a text button_panel child.
type PanelLabel struct {
	X    int    `prop:"x"`
	Y    int    `prop:"y"`
	Text string `prop:"text"`
	Font string `prop:"font" validate:"oneof=primary secondary keyboard big_numbers"`
}

// PanelIcon is a decorative button_panel child.
type PanelIcon struct {
	X    int         `prop:"x"`
	Y    int         `prop:"y"`
	Icon icon.Handle `prop:"icon"`
}

// ViItem is a vi_list child: a label with selectable variants.
type ViItem struct {
	Label           string   `prop:"label"`
	Variants        []string `prop:"variants"`
	DefaultSelected int      `prop:"defaultSelected,optional" validate:"min=0"`
}

func (i ViItem) check() error {
	if len(i.Variants) > 0 && i.DefaultSelected >= len(i.Variants) {
		return fmt.Errorf("defaultSelected %d out of range for %d variants", i.DefaultSelected, len(i.Variants))
	}
	return nil
}

// WidgetString draws a line of text.
type WidgetString struct {
	X     int    `prop:"x"`
	Y     int    `prop:"y"`
	Align string `prop:"align,optional" validate:"omitempty,oneof=tl tm tr ml mm mr bl bm br"`
	Font  string `prop:"font,optional" validate:"omitempty,oneof=primary secondary keyboard big_numbers"`
	Text  string `prop:"text"`
}

// WidgetRect draws a rectangle.
type WidgetRect struct {
	X      int  `prop:"x"`
	Y      int  `prop:"y"`
	W      int  `prop:"w" validate:"min=0"`
	H      int  `prop:"h" validate:"min=0"`
	Radius int  `prop:"radius,optional" validate:"min=0"`
	Fill   bool `prop:"fill,optional"`
}

// WidgetCircle draws a circle.
type WidgetCircle struct {
	X      int  `prop:"x"`
	Y      int  `prop:"y"`
	Radius int  `prop:"radius" validate:"min=0"`
	Fill   bool `prop:"fill,optional"`
}

// WidgetLine draws a line segment.
type WidgetLine struct {
	X1 int `prop:"x1"`
	Y1 int `prop:"y1"`
	X2 int `prop:"x2"`
	Y2 int `prop:"y2"`
}

// WidgetIcon draws an icon.
type WidgetIcon struct {
	X        int         `prop:"x"`
	Y        int         `prop:"y"`
	IconData icon.Handle `prop:"iconData"`
}

// WidgetFrame draws a rectangle outline.
type WidgetFrame struct {
	X      int `prop:"x"`
	Y      int `prop:"y"`
	W      int `prop:"w" validate:"min=0"`
	H      int `prop:"h" validate:"min=0"`
	Radius int `prop:"radius,optional" validate:"min=0"`
}

// WidgetButton declares a soft button; input on its key is published on
// the widget's button contract.
type WidgetButton struct {
	Button string `prop:"button" validate:"oneof=left center right"`
	Text   string `prop:"text"`
}

// WidgetTextBox draws wrapped text in a box.
type WidgetTextBox struct {
	X           int    `prop:"x"`
	Y           int    `prop:"y"`
	W           int    `prop:"w" validate:"min=0"`
	H           int    `prop:"h" validate:"min=0"`
	Align       string `prop:"align,optional" validate:"omitempty,oneof=tl tm tr ml mm mr bl bm br"`
	Text        string `prop:"text"`
	StripToDots bool   `prop:"stripToDots,optional"`
}

// WidgetTextScroll draws scrollable text in a box.
type WidgetTextScroll struct {
	X    int    `prop:"x"`
	Y    int    `prop:"y"`
	W    int    `prop:"w" validate:"min=0"`
	H    int    `prop:"h" validate:"min=0"`
	Text string `prop:"text"`
}

var kinds = map[string]*kindSpec{}

func register(spec *kindSpec) {
	if _, ok := kinds[spec.name]; ok {
		panic("view: duplicate kind " + spec.name)
	}
	kinds[spec.name] = spec
}

func contract[T any](name string) contractSpec {
	return contractSpec{name: name, payload: reflect.TypeFor[T]()}
}

func init() {
	register(&kindSpec{
		name:     "loading",
		newProps: func() any { return &noProps{} },
		captures: true,
		newState: func(*View) state { return staticState{lines: []string{"Loading..."}} },
	})
	register(&kindSpec{
		name:     "empty_screen",
		newProps: func() any { return &noProps{} },
		newState: func(*View) state { return staticState{} },
	})
	register(&kindSpec{
		name:      "submenu",
		newProps:  func() any { return &headerProps{} },
		children:  singleChild[string](),
		contracts: []contractSpec{contract[int]("chosen")},
		newState:  newSubmenuState,
	})
	register(&kindSpec{
		name:      "menu",
		newProps:  func() any { return &noProps{} },
		children:  singleChild[MenuItem](),
		contracts: []contractSpec{contract[int]("chosen")},
		newState:  newMenuState,
	})
	register(&kindSpec{
		name:      "button_menu",
		newProps:  func() any { return &headerProps{} },
		children:  singleChild[ButtonMenuItem](),
		contracts: []contractSpec{contract[IndexedInput]("input")},
		newState:  newButtonMenuState,
	})
	register(&kindSpec{
		name:     "button_panel",
		newProps: func() any { return &buttonPanelProps{MatrixSizeX: 1, MatrixSizeY: 1} },
		children: &childSchema{tag: "type", variants: map[string]reflect.Type{
			"button": reflect.TypeFor[PanelButton](),
			"label":  reflect.TypeFor[PanelLabel](),
			"icon":   reflect.TypeFor[PanelIcon](),
		}},
		contracts: []contractSpec{contract[IndexedInput]("input")},
		check:     checkButtonPanel,
		newState:  newButtonPanelState,
	})
	register(&kindSpec{
		name:      "number_input",
		newProps:  func() any { return &numberInputProps{MaxValue: 100} },
		contracts: []contractSpec{contract[int]("input")},
		newState:  newNumberInputState,
	})
	register(&kindSpec{
		name:      "text_input",
		newProps:  func() any { return &textInputProps{MaxLength: 32} },
		contracts: []contractSpec{contract[string]("input")},
		check:     checkTextInput,
		newState:  newTextInputState,
	})
	register(&kindSpec{
		name:      "byte_input",
		newProps:  func() any { return &byteInputProps{Length: 4} },
		contracts: []contractSpec{contract[[]byte]("input")},
		check:     checkByteInput,
		newState:  newByteInputState,
	})
	register(&kindSpec{
		name:     "text_box",
		newProps: func() any { return &textBoxProps{Font: "secondary", Focus: "start"} },
		newState: newTextBoxState,
	})
	register(&kindSpec{
		name:      "dialog",
		newProps:  func() any { return &dialogProps{} },
		contracts: []contractSpec{contract[string]("input")},
		newState:  func(*View) state { return dialogState{} },
	})
	register(&kindSpec{
		name:      "popup",
		newProps:  func() any { return &popupProps{} },
		contracts: []contractSpec{{name: "timeout"}},
		newState:  newPopupState,
	})
	register(&kindSpec{
		name:      "vi_list",
		newProps:  func() any { return &noProps{} },
		children:  singleChild[ViItem](),
		contracts: []contractSpec{contract[ValueUpdate]("valueUpdate")},
		newState:  newViListState,
	})
	register(&kindSpec{
		name:     "widget",
		newProps: func() any { return &noProps{} },
		children: &childSchema{tag: "element", variants: map[string]reflect.Type{
			"string":      reflect.TypeFor[WidgetString](),
			"rect":        reflect.TypeFor[WidgetRect](),
			"circle":      reflect.TypeFor[WidgetCircle](),
			"line":        reflect.TypeFor[WidgetLine](),
			"icon":        reflect.TypeFor[WidgetIcon](),
			"frame":       reflect.TypeFor[WidgetFrame](),
			"button":      reflect.TypeFor[WidgetButton](),
			"text_box":    reflect.TypeFor[WidgetTextBox](),
			"text_scroll": reflect.TypeFor[WidgetTextScroll](),
		}},
		contracts: []contractSpec{contract[ButtonEvent]("button")},
		newState:  newWidgetState,
	})
}

func checkTextInput(props any, _ []any) error {
	p := props.(*textInputProps)
	if n := uniseg.GraphemeClusterCount(p.DefaultText); n > p.MaxLength {
		return fmt.Errorf("defaultText has %d characters, maxLength is %d", n, p.MaxLength)
	}
	return nil
}

func checkByteInput(props any, _ []any) error {
	p := props.(*byteInputProps)
	if len(p.DefaultData) > p.Length {
		return fmt.Errorf("defaultData has %d bytes, length is %d", len(p.DefaultData), p.Length)
	}
	return nil
}

func checkButtonPanel(props any, children []any) error {
	p := props.(*buttonPanelProps)
	for i, c := range children {
		b, ok := c.(PanelButton)
		if !ok {
			continue
		}
		if b.MatrixX >= p.MatrixSizeX || b.MatrixY >= p.MatrixSizeY {
			return fmt.Errorf("button %d at matrix (%d, %d) outside %dx%d", i, b.MatrixX, b.MatrixY, p.MatrixSizeX, p.MatrixSizeY)
		}
	}
	return nil
}

// Kinds returns the registered kind names, sorted.
func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FieldInfo describes a property or child field.
type FieldInfo struct {
	Name     string
	Type     string
	Default  any
	Rule     string
	Optional bool
}

// ChildInfo describes one accepted child shape.
type ChildInfo struct {
	// Tag is the discriminator value selecting this shape, "" for
	// single-shape kinds.
	Tag    string
	Type   string
	Fields []FieldInfo
}

// ContractInfo describes an output contract.
type ContractInfo struct {
	Name    string
	Payload string
}

// KindInfo describes a kind's schema.
type KindInfo struct {
	Name string
	// TagField is the child discriminator key, if children form a union.
	TagField  string
	Props     []FieldInfo
	Children  []ChildInfo
	Contracts []ContractInfo
	Captures  bool
}

// Describe returns the schema of a kind.
func Describe(kind string) (KindInfo, bool) {
	spec, ok := kinds[kind]
	if !ok {
		return KindInfo{}, false
	}
	info := KindInfo{Name: spec.name, Captures: spec.captures}
	defaults := reflect.ValueOf(spec.newProps()).Elem()
	info.Props = describeFields(defaults)
	if s := spec.children; s != nil {
		info.TagField = s.tag
		if s.single != nil {
			info.Children = append(info.Children, describeChild("", s.single))
		}
		for _, tag := range s.tags() {
			info.Children = append(info.Children, describeChild(tag, s.variants[tag]))
		}
	}
	for _, c := range spec.contracts {
		payload := "none"
		if c.payload != nil {
			payload = c.payload.String()
		}
		info.Contracts = append(info.Contracts, ContractInfo{Name: c.name, Payload: payload})
	}
	return info, true
}

func describeChild(tag string, t reflect.Type) ChildInfo {
	ci := ChildInfo{Tag: tag, Type: typeName(t)}
	if t.Kind() == reflect.Struct {
		ci.Type = t.Name()
		ci.Fields = describeFields(reflect.New(t).Elem())
	}
	return ci
}

func describeFields(v reflect.Value) []FieldInfo {
	var out []FieldInfo
	for _, fi := range infoOf(v.Type()).fields {
		sf := v.Type().Field(fi.index)
		out = append(out, FieldInfo{
			Name:     fi.name,
			Type:     typeName(fi.typ),
			Default:  v.Field(fi.index).Interface(),
			Rule:     strings.TrimPrefix(sf.Tag.Get("validate"), "omitempty,"),
			Optional: fi.optional,
		})
	}
	return slices.Clip(out)
}
