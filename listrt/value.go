// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package listrt implements the heterogeneous list and string-descriptor
// runtime spec.md §4.3.1-4.3.3 describes: pool-backed, SAMM-tracked list
// headers and atoms, and blob marshal/unmarshal. See SPEC_FULL.md
// [MODULE: listrt].
package listrt

import (
	"sync/atomic"
	"unsafe"
)

// ValueKind tags what a List atom (or a marshaled Value) actually holds.
type ValueKind int32

const (
	KindNil ValueKind = iota
	KindInt
	KindFloat
	KindString
	KindList
	KindObject
)

func (k ValueKind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// Value is a tagged scalar or reference passed into and out of list
// operations. Only the field matching Kind is meaningful.
type Value struct {
	Kind ValueKind
	I    int64
	F    float64
	S    *StringDesc
	L    *List
	O    unsafe.Pointer
}

// IntValue, FloatValue, StringValue, ListValue, ObjectValue build a
// tagged Value of the matching kind.
func IntValue(i int64) Value      { return Value{Kind: KindInt, I: i} }
func FloatValue(f float64) Value  { return Value{Kind: KindFloat, F: f} }
func StringValue(s *StringDesc) Value { return Value{Kind: KindString, S: s} }
func ListValue(l *List) Value     { return Value{Kind: KindList, L: l} }
func ObjectValue(o unsafe.Pointer) Value { return Value{Kind: KindObject, O: o} }

// StringDesc is a reference-counted string. Atoms and outbound message
// envelopes hold a retained reference; the last release frees it back to
// the string-descriptor pool.
type StringDesc struct {
	slot     unsafe.Pointer
	data     string
	refcount atomic.Int32
}

// Data returns the descriptor's string contents.
func (s *StringDesc) Data() string {
	if s == nil {
		return ""
	}
	return s.data
}

// Atom is one node of a List's singly-linked chain.
type Atom struct {
	slot unsafe.Pointer
	next *Atom

	kind ValueKind
	ival int64
	fval float64
	sval *StringDesc
	lval *List
	oval unsafe.Pointer
}

// List is a pool-backed, SAMM-tracked heterogeneous linked list.
type List struct {
	slot     unsafe.Pointer
	head     *Atom
	tail     *Atom
	length   int32
	kindHint ValueKind
}

// KindHint returns the type hint the list was created with.
func (l *List) KindHint() ValueKind {
	if l == nil {
		return KindNil
	}
	return l.kindHint
}
