// Package zmalloc accounts for the memory used by the data structures of the
// server and routes allocation failures to an overridable out of memory
// handler. The Go runtime still owns the memory; zmalloc only keeps the books.
package zmalloc

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"unsafe"
)

var (
	usedMemory atomic.Int64
	maxMemory  atomic.Int64
	oomHandler atomic.Pointer[func(size uintptr)]
)

func defaultOOM(size uintptr) {
	slog.Error("zmalloc: Out of memory", "bytes", size)
	panic(fmt.Sprintf("zmalloc: Out of memory trying to allocate %d bytes", size))
}

// SetOOMHandler installs fn as the out of memory handler. A nil fn restores
// the default one, which logs and panics. The handler is not expected to
// return; if it does, the allocation proceeds anyway.
func SetOOMHandler(fn func(size uintptr)) {
	if fn == nil {
		oomHandler.Store(nil)
		return
	}
	oomHandler.Store(&fn)
}

func callOOM(size uintptr) {
	if fn := oomHandler.Load(); fn != nil {
		(*fn)(size)
		return
	}
	defaultOOM(size)
}

// SetMaxMemory sets the hard limit on accounted memory. Zero means no limit.
func SetMaxMemory(bytes int64) {
	maxMemory.Store(bytes)
}

func GetMaxMemory() int64 {
	return maxMemory.Load()
}

func UsedMemory() int64 {
	return usedMemory.Load()
}

func reserve(size uintptr) {
	used := usedMemory.Add(int64(size))
	if limit := maxMemory.Load(); limit > 0 && used > limit {
		usedMemory.Add(-int64(size))
		callOOM(size)
		usedMemory.Add(int64(size))
	}
}

// Free gives size bytes back to the accounting.
func Free(size uintptr) {
	usedMemory.Add(-int64(size))
}

// New allocates a zeroed T.
func New[T any]() *T {
	var zero T
	reserve(unsafe.Sizeof(zero))
	return new(T)
}

// Release accounts for p being dropped. p must come from New.
func Release[T any](p *T) {
	if p == nil {
		return
	}
	Free(unsafe.Sizeof(*p))
}

// MakeSlice allocates a zeroed slice of n elements.
func MakeSlice[T any](n int) (s []T) {
	var zero T
	elem := unsafe.Sizeof(zero)
	if n < 0 || (elem > 0 && uintptr(n) > math.MaxInt64/elem) {
		callOOM(uintptr(math.MaxInt64))
		return nil
	}
	size := uintptr(n) * elem
	reserve(size)
	defer func() {
		if r := recover(); r != nil {
			usedMemory.Add(-int64(size))
			callOOM(size)
			s = nil
		}
	}()
	return make([]T, n)
}

// FreeSlice accounts for s being dropped. s must come from MakeSlice or
// Realloc.
func FreeSlice[T any](s []T) {
	var zero T
	Free(uintptr(cap(s)) * unsafe.Sizeof(zero))
}

// Realloc returns a slice of length n holding the first min(len(s), n)
// elements of s. The old backing array must no longer be used.
func Realloc[T any](s []T, n int) []T {
	if n <= cap(s) {
		return s[:n]
	}
	ns := MakeSlice[T](n)
	copy(ns, s)
	FreeSlice(s)
	return ns
}
