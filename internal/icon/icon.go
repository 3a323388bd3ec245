// Package icon resolves opaque icon handles to pixel data.
//
// Views never hold pixels directly: props such as a menu item's icon carry a
// Handle, and the renderer asks a Resolver for the bitmap when it draws.
package icon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strconv"
	"sync"
)

var (
	// ErrUnknownIcon is returned for a builtin name that does not exist.
	ErrUnknownIcon = errors.New("icon: unknown builtin icon")
	// ErrInvalidHandle is returned when resolving a handle the resolver did not issue.
	ErrInvalidHandle = errors.New("icon: invalid handle")
	// ErrInvalidFxbm is returned for malformed sprite files.
	ErrInvalidFxbm = errors.New("icon: invalid fxbm data")
)

// maxDimension bounds sprite sizes read from disk.
const maxDimension = 1024

// Handle is an opaque reference to an icon. The zero Handle refers to no
// icon.
type Handle struct {
	id uint32
}

// IsZero reports whether h refers to no icon.
func (h Handle) IsZero() bool { return h.id == 0 }

func (h Handle) String() string { return fmt.Sprintf("icon#%d", h.id) }

// Icon is a monochrome bitmap. Bits holds rows of ceil(Width/8) bytes, least
// significant bit first, as in XBM.
type Icon struct {
	Name   string
	Width  int
	Height int
	Bits   []byte
}

// Pixel reports whether the pixel at (x, y) is set. Out of range
// coordinates are unset.
func (i *Icon) Pixel(x, y int) bool {
	if x < 0 || y < 0 || x >= i.Width || y >= i.Height {
		return false
	}
	stride := (i.Width + 7) / 8
	return i.Bits[y*stride+x/8]&(1<<(x%8)) != 0
}

// Resolver maps handles to pixel data.
type Resolver interface {
	Resolve(h Handle) (*Icon, error)
}

// builtinNames lists the firmware icons available to scripts.
var builtinNames = []string{
	"DolphinWait_59x54",
	"js_script_10px",
	"off_19x20",
	"off_hover_19x20",
	"power_19x20",
	"power_hover_19x20",
	"Settings_14",
}

// Builtins returns the names accepted by Library.Builtin.
func Builtins() []string { return slices.Clone(builtinNames) }

var (
	sizeWH = regexp.MustCompile(`_(\d+)x(\d+)$`)
	sizePx = regexp.MustCompile(`_(\d+)(?:px)?$`)
)

// builtinSize derives an icon's dimensions from its name suffix, either
// _WxH or _N / _Npx for square icons.
func builtinSize(name string) (int, int) {
	if m := sizeWH.FindStringSubmatch(name); m != nil {
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		return w, h
	}
	if m := sizePx.FindStringSubmatch(name); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, n
	}
	return 8, 8
}

// Library issues handles for builtin icons and loaded sprites. It is safe
// for concurrent use.
type Library struct {
	mu       sync.Mutex
	icons    []*Icon
	builtins map[string]Handle
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{builtins: make(map[string]Handle)}
}

// Builtin returns the handle of a builtin icon. The same name always yields
// the same handle.
func (l *Library) Builtin(name string) (Handle, error) {
	if !slices.Contains(builtinNames, name) {
		return Handle{}, fmt.Errorf("%w: %q", ErrUnknownIcon, name)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.builtins[name]; ok {
		return h, nil
	}
	w, h := builtinSize(name)
	handle := l.addLocked(placeholder(name, w, h))
	l.builtins[name] = handle
	return handle, nil
}

// LoadFxbm reads a sprite file and registers it.
func (l *Library) LoadFxbm(path string) (Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return Handle{}, fmt.Errorf("icon: load %s: %w", path, err)
	}
	defer f.Close()
	ic, err := DecodeFxbm(f)
	if err != nil {
		return Handle{}, fmt.Errorf("icon: load %s: %w", path, err)
	}
	ic.Name = path
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addLocked(ic), nil
}

// Add registers an already decoded icon.
func (l *Library) Add(ic *Icon) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.addLocked(ic)
}

func (l *Library) addLocked(ic *Icon) Handle {
	l.icons = append(l.icons, ic)
	return Handle{id: uint32(len(l.icons))}
}

// Resolve implements Resolver.
func (l *Library) Resolve(h Handle) (*Icon, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h.id == 0 || int(h.id) > len(l.icons) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, h)
	}
	return l.icons[h.id-1], nil
}

// DecodeFxbm decodes a sprite: little-endian uint32 width and height
// followed by XBM rows.
func DecodeFxbm(r io.Reader) (*Icon, error) {
	var hdr struct {
		Width  uint32
		Height uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidFxbm, err)
	}
	if hdr.Width == 0 || hdr.Height == 0 || hdr.Width > maxDimension || hdr.Height > maxDimension {
		return nil, fmt.Errorf("%w: bad dimensions %dx%d", ErrInvalidFxbm, hdr.Width, hdr.Height)
	}
	w, h := int(hdr.Width), int(hdr.Height)
	bits := make([]byte, (w+7)/8*h)
	if _, err := io.ReadFull(r, bits); err != nil {
		return nil, fmt.Errorf("%w: bitmap: %v", ErrInvalidFxbm, err)
	}
	return &Icon{Width: w, Height: h, Bits: bits}, nil
}

// EncodeFxbm writes ic in the format read by DecodeFxbm.
func EncodeFxbm(ic *Icon) ([]byte, error) {
	stride := (ic.Width + 7) / 8
	if ic.Width <= 0 || ic.Height <= 0 || len(ic.Bits) != stride*ic.Height {
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidFxbm, ic.Width, ic.Height, len(ic.Bits))
	}
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(ic.Width), uint32(ic.Height)})
	buf.Write(ic.Bits)
	return buf.Bytes(), nil
}

// placeholder draws a one pixel frame so builtin icons have a visible
// outline without shipping firmware assets.
func placeholder(name string, w, h int) *Icon {
	stride := (w + 7) / 8
	ic := &Icon{Name: name, Width: w, Height: h, Bits: make([]byte, stride*h)}
	set := func(x, y int) { ic.Bits[y*stride+x/8] |= 1 << (x % 8) }
	for x := range w {
		set(x, 0)
		set(x, h-1)
	}
	for y := range h {
		set(0, y)
		set(w-1, y)
	}
	return ic
}
