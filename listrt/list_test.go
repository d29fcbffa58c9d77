// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package listrt

import (
	"testing"

	"github.com/fasterbasic/fbcore/samm"
)

func newTestRuntime(t *testing.T) (*Runtime, *samm.Manager) {
	t.Helper()
	mgr := samm.New(nil)
	t.Cleanup(mgr.Shutdown)
	return New(mgr), mgr
}

func TestAppendGetLength(t *testing.T) {
	rt, _ := newTestRuntime(t)
	l := rt.Create(KindInt)
	rt.Append(l, IntValue(1))
	rt.Append(l, IntValue(2))
	rt.Append(l, IntValue(3))

	if rt.Length(l) != 3 {
		t.Fatalf("length = %d, want 3", rt.Length(l))
	}
	if v := rt.Get(l, 2); v.I != 2 {
		t.Errorf("Get(2) = %v, want 2", v.I)
	}
	if v := rt.Get(l, 99); v.Kind != KindNil {
		t.Errorf("out-of-range Get should return KindNil, got %v", v.Kind)
	}
}

func TestPrependAndInsertClamping(t *testing.T) {
	rt, _ := newTestRuntime(t)
	l := rt.Create(KindInt)
	rt.Append(l, IntValue(2))
	rt.Prepend(l, IntValue(1))
	rt.Insert(l, 0, IntValue(0))  // clamps to prepend
	rt.Insert(l, 99, IntValue(9)) // clamps to append
	rt.Insert(l, 4, IntValue(3))  // pos == length (before this insert) appends

	want := []int64{0, 1, 2, 9, 3}
	if rt.Length(l) != len(want) {
		t.Fatalf("length = %d, want %d", rt.Length(l), len(want))
	}
	for i, w := range want {
		if got := rt.Get(l, i+1).I; got != w {
			t.Errorf("position %d = %d, want %d", i+1, got, w)
		}
	}
}

func TestShiftPopVariants(t *testing.T) {
	rt, _ := newTestRuntime(t)
	l := rt.Create(KindInt)
	rt.Append(l, IntValue(10))
	rt.Append(l, IntValue(20))
	rt.Append(l, IntValue(30))

	head, ok := rt.ShiftInt(l)
	if !ok || head != 10 {
		t.Fatalf("ShiftInt = %d, %v, want 10, true", head, ok)
	}
	tail, ok := rt.PopInt(l)
	if !ok || tail != 30 {
		t.Fatalf("PopInt = %d, %v, want 30, true", tail, ok)
	}
	if rt.Length(l) != 1 {
		t.Fatalf("length after shift+pop = %d, want 1", rt.Length(l))
	}
	if !rt.ShiftVoid(l) {
		t.Fatalf("ShiftVoid on last element should succeed")
	}
	if !rt.Empty(l) {
		t.Errorf("list should be empty after draining all elements")
	}
}

func TestRemoveMiddleSplices(t *testing.T) {
	rt, _ := newTestRuntime(t)
	l := rt.Create(KindInt)
	for i := int64(1); i <= 5; i++ {
		rt.Append(l, IntValue(i))
	}
	if !rt.Remove(l, 3) {
		t.Fatalf("Remove(3) failed")
	}
	want := []int64{1, 2, 4, 5}
	if rt.Length(l) != len(want) {
		t.Fatalf("length = %d, want %d", rt.Length(l), len(want))
	}
	for i, w := range want {
		if got := rt.Get(l, i+1).I; got != w {
			t.Errorf("position %d = %d, want %d", i+1, got, w)
		}
	}
}

func TestStringAppendRetainsDescriptor(t *testing.T) {
	rt, _ := newTestRuntime(t)
	l := rt.Create(KindString)
	s := rt.NewString("hello")
	rt.Append(l, StringValue(s))

	if got := rt.Get(l, 1).S.Data(); got != "hello" {
		t.Errorf("Get(1).S.Data() = %q, want %q", got, "hello")
	}
	if got := s.refcount.Load(); got != 2 {
		t.Errorf("refcount after Append = %d, want 2", got)
	}
}

func TestCopyDeepCopiesNestedListsAndRetainsStrings(t *testing.T) {
	rt, _ := newTestRuntime(t)
	inner := rt.Create(KindInt)
	rt.Append(inner, IntValue(7))

	outer := rt.Create(KindList)
	rt.Append(outer, ListValue(inner))
	s := rt.NewString("shared")
	rt.Append(outer, StringValue(s))

	dup := rt.Copy(outer)
	if rt.Length(dup) != 2 {
		t.Fatalf("copied list length = %d, want 2", rt.Length(dup))
	}
	dupInner := rt.Get(dup, 1).L
	if dupInner == inner {
		t.Errorf("nested list must be independently copied, not shared")
	}
	if rt.Get(dupInner, 1).I != 7 {
		t.Errorf("copied nested list lost its element")
	}
	if rt.Get(dup, 2).S != s {
		t.Errorf("string payload should be a retained reference to the same descriptor")
	}
}

func TestRestOmitsFirstElement(t *testing.T) {
	rt, _ := newTestRuntime(t)
	l := rt.Create(KindInt)
	rt.Append(l, IntValue(1))
	rt.Append(l, IntValue(2))
	rt.Append(l, IntValue(3))

	rest := rt.Rest(l)
	if rt.Length(rest) != 2 {
		t.Fatalf("rest length = %d, want 2", rt.Length(rest))
	}
	if rt.Get(rest, 1).I != 2 {
		t.Errorf("rest[1] = %d, want 2", rt.Get(rest, 1).I)
	}
}

func TestReverse(t *testing.T) {
	rt, _ := newTestRuntime(t)
	l := rt.Create(KindInt)
	rt.Append(l, IntValue(1))
	rt.Append(l, IntValue(2))
	rt.Append(l, IntValue(3))

	rev := rt.Reverse(l)
	want := []int64{3, 2, 1}
	for i, w := range want {
		if got := rt.Get(rev, i+1).I; got != w {
			t.Errorf("reversed[%d] = %d, want %d", i+1, got, w)
		}
	}
}

func TestContainsIndexOfKindQualified(t *testing.T) {
	rt, _ := newTestRuntime(t)
	l := rt.Create(KindInt)
	rt.Append(l, IntValue(5))

	if rt.Contains(l, FloatValue(5)) {
		t.Errorf("an int-tagged 5 must not match a float-tagged 5")
	}
	if !rt.Contains(l, IntValue(5)) {
		t.Errorf("expected list to contain int 5")
	}
	if idx := rt.IndexOf(l, IntValue(5)); idx != 1 {
		t.Errorf("IndexOf = %d, want 1", idx)
	}
}

func TestJoinFormatsEachKind(t *testing.T) {
	rt, _ := newTestRuntime(t)
	l := rt.Create(KindNil)
	rt.Append(l, IntValue(1))
	rt.Append(l, FloatValue(2.5))
	rt.Append(l, StringValue(rt.NewString("x")))

	joined := rt.Join(l, ",")
	if got := joined.Data(); got != "1,2.5,x" {
		t.Errorf("Join = %q, want %q", got, "1,2.5,x")
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	rt, _ := newTestRuntime(t)
	l := rt.Create(KindNil)
	rt.Append(l, IntValue(42))
	rt.Append(l, StringValue(rt.NewString("hi")))

	blob := Marshal(ListValue(l))
	out, err := rt.Unmarshal(blob)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Kind != KindList {
		t.Fatalf("unmarshaled kind = %v, want list", out.Kind)
	}
	if rt.Length(out.L) != 2 {
		t.Fatalf("unmarshaled length = %d, want 2", rt.Length(out.L))
	}
	if rt.Get(out.L, 1).I != 42 {
		t.Errorf("unmarshaled[1] = %d, want 42", rt.Get(out.L, 1).I)
	}
	if rt.Get(out.L, 2).S.Data() != "hi" {
		t.Errorf("unmarshaled[2] = %q, want %q", rt.Get(out.L, 2).S.Data(), "hi")
	}
}

func TestScopeExitCleansListAndAtomsWithoutDoubleWalk(t *testing.T) {
	rt, mgr := newTestRuntime(t)

	mgr.EnterScope()
	l := rt.Create(KindInt)
	rt.Append(l, IntValue(1))
	rt.Append(l, IntValue(2))
	if err := mgr.ExitScope(); err != nil {
		t.Fatalf("ExitScope: %v", err)
	}

	mgr.Wait()
	s := mgr.Stats()
	if s.ObjectsCleaned < 3 {
		t.Errorf("objects_cleaned = %d, want at least 3 (1 header + 2 atoms)", s.ObjectsCleaned)
	}
}

func TestFreeOnNilListsIsANoOp(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.Free(nil)
	rt.Clear(nil)
	if rt.Length(nil) != 0 {
		t.Errorf("Length(nil) != 0")
	}
	if !rt.Empty(nil) {
		t.Errorf("Empty(nil) should be true")
	}
	if v := rt.Head(nil); v.Kind != KindNil {
		t.Errorf("Head(nil) should be KindNil")
	}
}
