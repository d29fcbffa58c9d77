// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package samm

import (
	"sync/atomic"
	"testing"
	"unsafe"
)

func newTestManager() *Manager {
	return New(nil)
}

// testBacking gives ptrAt stable, distinct addresses: calling ptrAt(i)
// twice must yield the same pointer value, which a fresh make() per call
// would not guarantee.
var testBacking [256]int64

func ptrAt(i int) unsafe.Pointer {
	return unsafe.Pointer(&testBacking[i%len(testBacking)])
}

func TestScopeBalance(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	for i := 0; i < 10; i++ {
		if err := m.EnterScope(); err != nil {
			t.Fatalf("EnterScope: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		if err := m.ExitScope(); err != nil {
			t.Fatalf("ExitScope: %v", err)
		}
	}
	m.Wait()

	s := m.Stats()
	if s.ScopesEntered-s.ScopesExited != 0 {
		t.Errorf("scope imbalance: entered=%d exited=%d", s.ScopesEntered, s.ScopesExited)
	}
	if m.Depth() != 0 {
		t.Errorf("depth after balanced enter/exit = %d, want 0", m.Depth())
	}
}

func TestExitGlobalScopeFails(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()
	if err := m.ExitScope(); err == nil {
		t.Errorf("expected error exiting the global scope")
	}
}

func TestMaxScopeDepthEnforced(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()
	var err error
	for i := 0; i < MaxScopeDepth; i++ {
		err = m.EnterScope()
		if err != nil {
			break
		}
	}
	if err == nil {
		t.Fatalf("expected EnterScope to fail before exceeding MaxScopeDepth")
	}
}

func TestTrackUntrack(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	ptr := ptrAt(0)
	m.Track(ptr, KindObject)
	if !m.Untrack(ptr) {
		t.Errorf("Untrack did not find a tracked pointer")
	}
	if m.Untrack(ptr) {
		t.Errorf("second Untrack unexpectedly succeeded")
	}
}

func TestUntrackSearchesOuterScopes(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	ptr := ptrAt(1)
	m.Track(ptr, KindList) // tracked in the global scope
	m.EnterScope()
	if !m.Untrack(ptr) {
		t.Errorf("Untrack from a nested scope should find a pointer tracked in an outer scope")
	}
}

func TestRetainPromotesAcrossScopes(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	m.EnterScope() // depth 1
	m.EnterScope() // depth 2
	ptr := ptrAt(2)
	m.Track(ptr, KindString)

	if err := m.Retain(ptr, 1); err != nil {
		t.Fatalf("Retain: %v", err)
	}

	// The pointer should now live in scope depth 1, not depth 2: exiting
	// depth 2 must not schedule it for cleanup.
	if err := m.ExitScope(); err != nil {
		t.Fatalf("ExitScope: %v", err)
	}
	m.Wait()
	if !m.Untrack(ptr) {
		t.Errorf("retained pointer not found in outer scope after inner scope exited")
	}
}

func TestDeleteRunsRegisteredCleanup(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	var called atomic.Int32
	m.RegisterCleanup(KindObject, func(unsafe.Pointer) { called.Add(1) })

	ptr := ptrAt(3)
	m.Track(ptr, KindObject)
	m.Delete(ptr)

	if called.Load() != 1 {
		t.Errorf("cleanup called %d times, want 1", called.Load())
	}
}

func TestDeleteDetectsDoubleFree(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	var calls atomic.Int32
	m.RegisterCleanup(KindObject, func(unsafe.Pointer) { calls.Add(1) })

	ptr := ptrAt(0)
	m.Track(ptr, KindObject)
	m.Delete(ptr)
	m.Delete(ptr) // same pointer value again -> Bloom filter should catch it

	if calls.Load() != 1 {
		t.Errorf("cleanup ran %d times across two deletes of the same pointer, want 1", calls.Load())
	}
	if m.Stats().DoubleFreeCatches != 1 {
		t.Errorf("double_free_catches = %d, want 1", m.Stats().DoubleFreeCatches)
	}
}

func TestExitScopeEnqueuesCleanupForTrackedPointers(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	var cleaned atomic.Int32
	m.RegisterCleanup(KindListAtom, func(unsafe.Pointer) { cleaned.Add(1) })

	m.EnterScope()
	m.Track(ptrAt(0), KindListAtom)
	m.Track(ptrAt(1), KindListAtom)
	m.Track(ptrAt(2), KindListAtom)
	if err := m.ExitScope(); err != nil {
		t.Fatalf("ExitScope: %v", err)
	}

	m.Wait()
	if cleaned.Load() != 3 {
		t.Errorf("cleaned %d pointers, want 3", cleaned.Load())
	}
	if got := m.Stats().CleanupBatches; got != 1 {
		t.Errorf("cleanup_batches = %d, want 1", got)
	}
}

func TestBloomAddOnly(t *testing.T) {
	b := newBloomFilter()
	ptr := ptrAt(0)
	if b.check(ptr) {
		t.Fatalf("check on empty filter must be false")
	}
	b.add(ptr)
	for i := 0; i < 5; i++ {
		if !b.check(ptr) {
			t.Errorf("check after add must always be true (bloom is add-only)")
		}
	}
}

func TestScopeGrowthDoubles(t *testing.T) {
	s := newScope()
	if cap(s.ptrs) != scopeInitialCapacity {
		t.Fatalf("initial capacity = %d, want %d", cap(s.ptrs), scopeInitialCapacity)
	}
	for i := 0; i < scopeInitialCapacity+1; i++ {
		s.push(ptrAt(i), KindGeneric)
	}
	if cap(s.ptrs) != scopeInitialCapacity*2 {
		t.Errorf("capacity after overflow = %d, want %d", cap(s.ptrs), scopeInitialCapacity*2)
	}
}
