package view

import (
	"encoding/hex"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/joeycumines/viewloop/internal/input"
	"github.com/rivo/uniseg"
)

const (
	keySave      = "save"
	keyBackspace = "<"
	keyForward   = ">"
	keySpace     = "_"
	keySign      = "-"
)

// keyboard is an on-screen key grid navigated with the d-pad.
type keyboard struct {
	rows     [][]string
	row, col int
}

func newKeyboard(rows ...string) keyboard {
	kb := keyboard{}
	for _, r := range rows {
		kb.rows = append(kb.rows, strings.Fields(r))
	}
	return kb
}

func (k *keyboard) move(dx, dy int) {
	if dy != 0 {
		k.row = wrapIndex(k.row+dy, len(k.rows))
		k.col = min(k.col, len(k.rows[k.row])-1)
	}
	if dx != 0 {
		k.col = wrapIndex(k.col+dx, len(k.rows[k.row]))
	}
}

func (k *keyboard) key() string { return k.rows[k.row][k.col] }

// navigate moves the selection for d-pad events, reporting whether ev was a
// d-pad event.
func (k *keyboard) navigate(v *View, ev input.Event) bool {
	dx, dy := horizontal(ev.Key), vertical(ev.Key)
	if dx == 0 && dy == 0 {
		return false
	}
	if ev.IsNav() {
		k.move(dx, dy)
		v.changed()
	}
	return true
}

func (k *keyboard) lines() []Line {
	out := make([]Line, 0, len(k.rows))
	for r, row := range k.rows {
		var b strings.Builder
		for c, key := range row {
			if c > 0 {
				b.WriteByte(' ')
			}
			if r == k.row && c == k.col {
				b.WriteString("[" + key + "]")
			} else {
				b.WriteString(key)
			}
		}
		out = append(out, Line{Text: b.String()})
	}
	return out
}

// maxNumberDigits bounds the digits of a 32-bit value.
const maxNumberDigits = 10

type numberInputState struct {
	kb     keyboard
	text   string
	status string
}

func newNumberInputState(v *View) state {
	s := &numberInputState{kb: newKeyboard(
		"1 2 3 4 5 6 7 8 9 0",
		"- < save",
	)}
	s.reset(v)
	return s
}

func (s *numberInputState) reset(v *View) {
	s.text = strconv.Itoa(v.props.(*numberInputProps).DefaultValue)
	s.status = ""
}

func (s *numberInputState) update(v *View, changed string) {
	if changed == "defaultValue" {
		s.reset(v)
	}
}

func (s *numberInputState) handleInput(v *View, ev input.Event) bool {
	if s.kb.navigate(v, ev) {
		return true
	}
	if ev.Key != input.KeyOk {
		return false
	}
	if ev.Type != input.TypeShort {
		return true
	}
	switch key := s.kb.key(); key {
	case keySave:
		p := v.props.(*numberInputProps)
		n, err := strconv.Atoi(s.text)
		if err != nil || n < p.MinValue || n > p.MaxValue {
			s.status = fmt.Sprintf("must be %d..%d", p.MinValue, p.MaxValue)
			v.changed()
			return true
		}
		s.status = ""
		v.publish("input", n)
	case keyBackspace:
		if s.text != "" {
			s.text = s.text[:len(s.text)-1]
		}
	case keySign:
		if rest, ok := strings.CutPrefix(s.text, "-"); ok {
			s.text = rest
		} else {
			s.text = "-" + s.text
		}
	default:
		digits := strings.TrimPrefix(s.text, "-")
		switch {
		case digits == "0":
			s.text = strings.TrimSuffix(s.text, "0") + key
		case len(digits) < maxNumberDigits:
			s.text += key
		}
	}
	v.changed()
	return true
}

func (s *numberInputState) frame(v *View) Frame {
	f := Frame{Header: v.props.(*numberInputProps).Header, Status: s.status}
	f.Lines = append(f.Lines, Line{Text: s.text + "_"})
	f.Lines = append(f.Lines, s.kb.lines()...)
	return f
}

type textInputState struct {
	kb           keyboard
	text         string
	clearPending bool
	status       string
}

func newTextInputState(v *View) state {
	s := &textInputState{kb: newKeyboard(
		"1 2 3 4 5 6 7 8 9 0",
		"q w e r t y u i o p",
		"a s d f g h j k l <",
		"z x c v b n m _ save",
	)}
	s.reset(v)
	return s
}

func (s *textInputState) reset(v *View) {
	p := v.props.(*textInputProps)
	s.text = p.DefaultText
	s.clearPending = p.DefaultTextClear && s.text != ""
	s.status = ""
}

func (s *textInputState) update(v *View, changed string) {
	switch changed {
	case "defaultText", "defaultTextClear":
		s.reset(v)
	case "maxLength":
		s.text = truncateGraphemes(s.text, v.props.(*textInputProps).MaxLength)
	}
}

func (s *textInputState) handleInput(v *View, ev input.Event) bool {
	if s.kb.navigate(v, ev) {
		return true
	}
	if ev.Key != input.KeyOk {
		return false
	}
	if ev.Type != input.TypeShort && ev.Type != input.TypeLong {
		return true
	}
	p := v.props.(*textInputProps)
	switch key := s.kb.key(); key {
	case keySave:
		if n := uniseg.GraphemeClusterCount(s.text); n < p.MinLength {
			s.status = fmt.Sprintf("at least %d characters", p.MinLength)
			v.changed()
			return true
		}
		s.status = ""
		v.publish("input", s.text)
		return true
	case keyBackspace:
		if s.clearPending || ev.Type == input.TypeLong {
			s.text = ""
		} else {
			s.text = dropLastGrapheme(s.text)
		}
	default:
		if s.clearPending {
			s.text = ""
		}
		if key == keySpace {
			key = " "
		} else if ev.Type == input.TypeLong {
			key = strings.ToUpper(key)
		}
		if uniseg.GraphemeClusterCount(s.text) < p.MaxLength {
			s.text += key
		}
	}
	s.clearPending = false
	v.changed()
	return true
}

func (s *textInputState) frame(v *View) Frame {
	f := Frame{Header: v.props.(*textInputProps).Header, Status: s.status}
	text := s.text
	if s.clearPending {
		text = "[" + text + "]"
	}
	f.Lines = append(f.Lines, Line{Text: text + "_"})
	f.Lines = append(f.Lines, s.kb.lines()...)
	return f
}

func dropLastGrapheme(s string) string {
	last := 0
	state := -1
	rest := s
	for len(rest) > 0 {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if len(rest) > 0 {
			last += len(cluster)
		}
	}
	return s[:last]
}

func truncateGraphemes(s string, n int) string {
	end := 0
	state := -1
	rest := s
	for i := 0; i < n && len(rest) > 0; i++ {
		var cluster string
		cluster, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		end += len(cluster)
	}
	return s[:end]
}

// byteInputState edits a fixed-length byte buffer one nibble at a time.
type byteInputState struct {
	kb   keyboard
	data []byte
	pos  int
}

func newByteInputState(v *View) state {
	s := &byteInputState{kb: newKeyboard(
		"0 1 2 3 4 5 6 7",
		"8 9 A B C D E F",
		"< > save",
	)}
	s.reset(v)
	return s
}

func (s *byteInputState) reset(v *View) {
	p := v.props.(*byteInputProps)
	s.data = make([]byte, p.Length)
	copy(s.data, p.DefaultData)
	s.pos = 0
}

func (s *byteInputState) update(v *View, changed string) {
	switch changed {
	case "length", "defaultData":
		s.reset(v)
	}
}

func (s *byteInputState) handleInput(v *View, ev input.Event) bool {
	if s.kb.navigate(v, ev) {
		return true
	}
	if ev.Key != input.KeyOk {
		return false
	}
	if ev.Type != input.TypeShort {
		return true
	}
	last := 2*len(s.data) - 1
	switch key := s.kb.key(); key {
	case keySave:
		v.publish("input", slices.Clone(s.data))
		return true
	case keyBackspace:
		s.pos = max(s.pos-1, 0)
	case keyForward:
		s.pos = min(s.pos+1, last)
	default:
		n, _ := strconv.ParseUint(key, 16, 8)
		i := s.pos / 2
		if s.pos%2 == 0 {
			s.data[i] = s.data[i]&0x0f | byte(n)<<4
		} else {
			s.data[i] = s.data[i]&0xf0 | byte(n)
		}
		s.pos = min(s.pos+1, last)
	}
	v.changed()
	return true
}

func (s *byteInputState) frame(v *View) Frame {
	f := Frame{Header: v.props.(*byteInputProps).Header}
	f.Lines = append(f.Lines,
		Line{Text: strings.ToUpper(hex.EncodeToString(s.data))},
		Line{Text: strings.Repeat(" ", s.pos) + "^"},
	)
	f.Lines = append(f.Lines, s.kb.lines()...)
	return f
}
