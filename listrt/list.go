// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package listrt

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/fasterbasic/fbcore/samm"
)

// Create allocates a pool-backed header, zeroed, tracked in SAMM as
// List.
func (rt *Runtime) Create(kindHint ValueKind) *List {
	slot := rt.headers.Alloc()
	l := &List{slot: slot, kindHint: kindHint}
	rt.samm.Track(unsafe.Pointer(l), samm.KindList)
	return l
}

// Free walks the atom chain releasing every payload, then frees the
// header. All positions tolerate a nil list (no-op).
func (rt *Runtime) Free(list *List) {
	if list == nil {
		return
	}
	rt.Clear(list)
	rt.samm.Delete(unsafe.Pointer(list))
}

// Clear behaves like Free but the header survives, empty and reusable.
func (rt *Runtime) Clear(list *List) {
	if list == nil {
		return
	}
	for a := list.head; a != nil; {
		next := a.next
		rt.fullAtomCleanup(a)
		a = next
	}
	list.head = nil
	list.tail = nil
	list.length = 0
}

func (rt *Runtime) linkAppend(list *List, a *Atom) {
	if list.tail == nil {
		list.head = a
		list.tail = a
	} else {
		list.tail.next = a
		list.tail = a
	}
	list.length++
}

func (rt *Runtime) linkPrepend(list *List, a *Atom) {
	a.next = list.head
	list.head = a
	if list.tail == nil {
		list.tail = a
	}
	list.length++
}

// Append adds v at the tail.
func (rt *Runtime) Append(list *List, v Value) {
	if list == nil {
		return
	}
	rt.linkAppend(list, rt.newAtom(v))
}

// Prepend adds v at the head.
func (rt *Runtime) Prepend(list *List, v Value) {
	if list == nil {
		return
	}
	rt.linkPrepend(list, rt.newAtom(v))
}

// Insert places v at 1-based position pos, clamping pos <= 1 to a
// prepend and pos >= length to an append (open-question resolution:
// inserting exactly at pos == length still appends rather than splicing
// before the existing tail).
func (rt *Runtime) Insert(list *List, pos int, v Value) {
	if list == nil {
		return
	}
	if pos <= 1 {
		rt.Prepend(list, v)
		return
	}
	if pos >= int(list.length) {
		rt.Append(list, v)
		return
	}
	prev := list.head
	for i := 1; i < pos-1; i++ {
		prev = prev.next
	}
	a := rt.newAtom(v)
	a.next = prev.next
	prev.next = a
	list.length++
}

func (rt *Runtime) unlinkHead(list *List) *Atom {
	a := list.head
	if a == nil {
		return nil
	}
	list.head = a.next
	if list.head == nil {
		list.tail = nil
	}
	list.length--
	return a
}

func (rt *Runtime) unlinkTail(list *List) *Atom {
	a := list.tail
	if a == nil {
		return nil
	}
	if list.head == a {
		list.head = nil
		list.tail = nil
		list.length--
		return a
	}
	prev := list.head
	for prev.next != a {
		prev = prev.next
	}
	prev.next = nil
	list.tail = prev
	list.length--
	return a
}

func atomValue(a *Atom) Value {
	return Value{Kind: a.kind, I: a.ival, F: a.fval, S: a.sval, L: a.lval, O: a.oval}
}

// ShiftInt unlinks the head atom, consumes its scalar payload, and frees
// the shell without running payload release (a no-op for scalars).
func (rt *Runtime) ShiftInt(list *List) (int64, bool) {
	if list == nil {
		return 0, false
	}
	a := rt.unlinkHead(list)
	if a == nil {
		return 0, false
	}
	v := a.ival
	rt.shellOnlyCleanup(a)
	return v, true
}

// ShiftFloat is ShiftInt for float payloads.
func (rt *Runtime) ShiftFloat(list *List) (float64, bool) {
	if list == nil {
		return 0, false
	}
	a := rt.unlinkHead(list)
	if a == nil {
		return 0, false
	}
	v := a.fval
	rt.shellOnlyCleanup(a)
	return v, true
}

// ShiftPtr unlinks the head atom and returns its reference payload,
// transferring ownership to the caller; the atom shell is freed but the
// payload itself is not released.
func (rt *Runtime) ShiftPtr(list *List) (Value, bool) {
	if list == nil {
		return Value{}, false
	}
	a := rt.unlinkHead(list)
	if a == nil {
		return Value{}, false
	}
	v := atomValue(a)
	rt.shellOnlyCleanup(a)
	return v, true
}

// ShiftVoid unlinks and fully releases the head atom.
func (rt *Runtime) ShiftVoid(list *List) bool {
	if list == nil {
		return false
	}
	a := rt.unlinkHead(list)
	if a == nil {
		return false
	}
	rt.fullAtomCleanup(a)
	return true
}

// PopInt/PopFloat/PopPtr/PopVoid mirror the Shift family at the tail.
func (rt *Runtime) PopInt(list *List) (int64, bool) {
	if list == nil {
		return 0, false
	}
	a := rt.unlinkTail(list)
	if a == nil {
		return 0, false
	}
	v := a.ival
	rt.shellOnlyCleanup(a)
	return v, true
}

func (rt *Runtime) PopFloat(list *List) (float64, bool) {
	if list == nil {
		return 0, false
	}
	a := rt.unlinkTail(list)
	if a == nil {
		return 0, false
	}
	v := a.fval
	rt.shellOnlyCleanup(a)
	return v, true
}

func (rt *Runtime) PopPtr(list *List) (Value, bool) {
	if list == nil {
		return Value{}, false
	}
	a := rt.unlinkTail(list)
	if a == nil {
		return Value{}, false
	}
	v := atomValue(a)
	rt.shellOnlyCleanup(a)
	return v, true
}

func (rt *Runtime) PopVoid(list *List) bool {
	if list == nil {
		return false
	}
	a := rt.unlinkTail(list)
	if a == nil {
		return false
	}
	rt.fullAtomCleanup(a)
	return true
}

// Remove deletes the 1-based position pos with full payload cleanup:
// shift for pos==1, pop for pos==length, otherwise splice around the
// predecessor.
func (rt *Runtime) Remove(list *List, pos int) bool {
	if list == nil || pos < 1 || pos > int(list.length) {
		return false
	}
	if pos == 1 {
		return rt.ShiftVoid(list)
	}
	if pos == int(list.length) {
		return rt.PopVoid(list)
	}
	prev := list.head
	for i := 1; i < pos-1; i++ {
		prev = prev.next
	}
	target := prev.next
	prev.next = target.next
	if target == list.tail {
		list.tail = prev
	}
	list.length--
	rt.fullAtomCleanup(target)
	return true
}

func (rt *Runtime) nodeAt(list *List, pos int) *Atom {
	if list == nil || pos < 1 || pos > int(list.length) {
		return nil
	}
	a := list.head
	for i := 1; i < pos; i++ {
		a = a.next
	}
	return a
}

// Get returns the 1-based positional value, or the zero Value (KindNil)
// if pos is out of range.
func (rt *Runtime) Get(list *List, pos int) Value {
	a := rt.nodeAt(list, pos)
	if a == nil {
		return Value{}
	}
	return atomValue(a)
}

// Head returns the first value, or the zero Value if the list is empty.
func (rt *Runtime) Head(list *List) Value {
	if list == nil || list.head == nil {
		return Value{}
	}
	return atomValue(list.head)
}

// Length returns the list's element count; a nil list has length 0.
func (rt *Runtime) Length(list *List) int {
	if list == nil {
		return 0
	}
	return int(list.length)
}

// Empty reports whether Length is 0.
func (rt *Runtime) Empty(list *List) bool {
	return rt.Length(list) == 0
}

func (rt *Runtime) valueForCopy(a *Atom) Value {
	v := Value{Kind: a.kind, I: a.ival, F: a.fval, O: a.oval}
	switch a.kind {
	case KindString:
		v.S = rt.retainString(a.sval)
	case KindList:
		v.L = rt.Copy(a.lval)
	}
	return v
}

// Copy deep-copies list: strings are retained (shared descriptor),
// nested lists are recursively deep-copied.
func (rt *Runtime) Copy(list *List) *List {
	if list == nil {
		return nil
	}
	out := rt.Create(list.kindHint)
	for a := list.head; a != nil; a = a.next {
		rt.Append(out, rt.valueForCopy(a))
	}
	return out
}

// Rest copies list omitting its first atom.
func (rt *Runtime) Rest(list *List) *List {
	if list == nil {
		return nil
	}
	out := rt.Create(list.kindHint)
	if list.head == nil {
		return out
	}
	for a := list.head.next; a != nil; a = a.next {
		rt.Append(out, rt.valueForCopy(a))
	}
	return out
}

// Reverse copies list by successive prepends.
func (rt *Runtime) Reverse(list *List) *List {
	if list == nil {
		return nil
	}
	out := rt.Create(list.kindHint)
	for a := list.head; a != nil; a = a.next {
		rt.Prepend(out, rt.valueForCopy(a))
	}
	return out
}

func valuesEqual(a *Atom, v Value) bool {
	if a.kind != v.Kind {
		return false
	}
	switch a.kind {
	case KindInt:
		return a.ival == v.I
	case KindFloat:
		return a.fval == v.F
	case KindString:
		return a.sval.Data() == v.S.Data()
	default:
		return false
	}
}

// IndexOf returns the 1-based position of the first element equal to v,
// or 0 if none match. Equality is kind-qualified: an int never equals a
// float-tagged value even with the same numeric value.
func (rt *Runtime) IndexOf(list *List, v Value) int {
	if list == nil {
		return 0
	}
	i := 1
	for a := list.head; a != nil; a = a.next {
		if valuesEqual(a, v) {
			return i
		}
		i++
	}
	return 0
}

// Contains reports whether list holds an element equal to v.
func (rt *Runtime) Contains(list *List, v Value) bool {
	return rt.IndexOf(list, v) != 0
}

// Join renders every element with kind-specific formatting and
// concatenates them with sep, returning a freshly-allocated descriptor.
func (rt *Runtime) Join(list *List, sep string) *StringDesc {
	var b strings.Builder
	if list != nil {
		first := true
		for a := list.head; a != nil; a = a.next {
			if !first {
				b.WriteString(sep)
			}
			first = false
			switch a.kind {
			case KindInt:
				fmt.Fprintf(&b, "%d", a.ival)
			case KindFloat:
				fmt.Fprintf(&b, "%g", a.fval)
			case KindString:
				b.WriteString(a.sval.Data())
			case KindList:
				b.WriteString("[List]")
			case KindObject:
				b.WriteString("[Object]")
			}
		}
	}
	return rt.newStringDesc(b.String())
}
