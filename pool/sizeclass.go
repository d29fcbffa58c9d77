// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pool

import "unsafe"

// ClassSizes are the six slot sizes spec.md §4.2.7 names. A request above
// the largest class bypasses pools entirely and goes to the system
// allocator.
var ClassSizes = [6]int{32, 64, 128, 256, 512, 1024}

// NoClass is returned by SizeToClass when a request is too large for any
// pool and must go straight to the system allocator.
const NoClass = -1

// SizeToClass maps a byte count to the smallest class that fits it.
func SizeToClass(n int) int {
	for i, sz := range ClassSizes {
		if n <= sz {
			return i
		}
	}
	return NoClass
}

// Router owns the six fixed size-class pools and dispatches Alloc/Free to
// whichever pool fits a requested size, falling back to the system
// allocator above the largest class.
type Router struct {
	pools [6]*Pool
}

// NewRouter creates one Pool per size class, each with the given
// slots-per-slab and slab cap.
func NewRouter(slotsPerSlab, maxSlabs int) *Router {
	r := &Router{}
	for i, sz := range ClassSizes {
		r.pools[i] = New(classNames[i], sz, slotsPerSlab, maxSlabs)
	}
	return r
}

var classNames = [6]string{"class_32", "class_64", "class_128", "class_256", "class_512", "class_1024"}

// Alloc returns a pointer to at least size zeroed bytes.
func (r *Router) Alloc(size int) unsafe.Pointer {
	class := SizeToClass(size)
	if class == NoClass {
		buf := make([]byte, size)
		return unsafe.Pointer(&buf[0])
	}
	return r.pools[class].Alloc()
}

// Free releases a pointer previously returned by Alloc for the same size.
func (r *Router) Free(size int, ptr unsafe.Pointer) {
	class := SizeToClass(size)
	if class == NoClass {
		return
	}
	r.pools[class].Free(ptr)
}

// Pool returns the underlying pool for a given class index, or nil if out
// of range. Used by diagnostics to report per-class statistics.
func (r *Router) Pool(class int) *Pool {
	if class < 0 || class >= len(r.pools) {
		return nil
	}
	return r.pools[class]
}

// Report renders every class pool's Report, one per line.
func (r *Router) Report() string {
	out := ""
	for _, p := range r.pools {
		out += p.Report() + "\n"
	}
	return out
}
