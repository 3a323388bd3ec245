// Package goroutineid identifies goroutines, so that single-threaded
// components can tell whether they are being called from their owning
// goroutine.
package goroutineid

import (
	"bytes"
	"runtime"
	"sync"
	"sync/atomic"
)

var stackBufPool = sync.Pool{
	New: func() any {
		b := make([]byte, 64)
		return &b
	},
}

// Get returns the ID of the calling goroutine, or 0 if it cannot be parsed.
func Get() int64 {
	bp := stackBufPool.Get().(*[]byte)
	defer stackBufPool.Put(bp)
	n := runtime.Stack(*bp, false)
	return parse((*bp)[:n])
}

var goroutinePrefix = []byte("goroutine ")

// parse extracts the ID from a stack header of the form
// "goroutine 123 [running]:". Only the first line is inspected.
func parse(stack []byte) int64 {
	if !bytes.HasPrefix(stack, goroutinePrefix) {
		return 0
	}
	var id int64
	for _, b := range stack[len(goroutinePrefix):] {
		if b < '0' || b > '9' {
			break
		}
		id = id*10 + int64(b-'0')
	}
	return id
}

// Owner records which goroutine currently owns a resource. The zero value
// is unowned and ready to use.
type Owner struct {
	id atomic.Int64
}

// Claim marks the calling goroutine as the owner. It returns false if the
// resource is already owned.
func (o *Owner) Claim() bool {
	return o.id.CompareAndSwap(0, Get())
}

// Release clears ownership.
func (o *Owner) Release() {
	o.id.Store(0)
}

// Owned reports whether any goroutine owns the resource.
func (o *Owner) Owned() bool {
	return o.id.Load() != 0
}

// IsCurrent reports whether the calling goroutine is the owner.
func (o *Owner) IsCurrent() bool {
	id := o.id.Load()
	return id != 0 && id == Get()
}
