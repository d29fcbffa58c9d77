// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package worker

// Bounce implements the zero-copy forwarding spec.md §4.3.6 describes
// for the
//
//	MATCH RECEIVE(PARENT) { CASE <UDT> <var> -> ...; SEND PARENT, <var>; ... }
//
// shape: pattern-detecting that shape at compile time is the
// compiler's job (external to this runtime); once detected, the
// generated worker body calls MatchReceiveWorker to obtain the raw
// envelope, mutates its payload in place via mutate, and hands the
// envelope here to be pushed back onto the parent queue without
// unmarshal, free, or re-allocation.
//
// Bounce only applies to envelopes with no reference-typed fields (no
// strings, no nested lists, no objects); everything else falls back to
// the normal Receive-then-Send path, since forwarding those unopened
// would alias payload state across the handoff rather than copying it.
// Bounce reports whether the zero-copy path was taken.
func (c *WorkerContext) Bounce(e Envelope, mutate func(e *Envelope)) bool {
	if e.hasReferenceFields() {
		return false
	}
	mutate(&e)
	c.forward(e)
	return true
}
