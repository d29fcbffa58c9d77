// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pool

import (
	"sync"
	"testing"
	"unsafe"
)

func TestAllocFreeReuse(t *testing.T) {
	p := New("test", 32, 4, DefaultMaxSlabs)

	a := p.Alloc()
	b := p.Alloc()
	if a == b {
		t.Fatalf("distinct allocations returned the same pointer")
	}
	stats := p.Stats()
	if stats.InUse != 2 {
		t.Errorf("in_use = %d, want 2", stats.InUse)
	}
	if stats.SlabCount != 1 {
		t.Errorf("slab_count = %d, want 1", stats.SlabCount)
	}

	p.Free(a)
	if got := p.Stats().InUse; got != 1 {
		t.Errorf("in_use after one free = %d, want 1", got)
	}

	c := p.Alloc()
	if c != a {
		t.Errorf("freed slot not reused by next alloc: got %p, want %p", c, a)
	}
}

func TestGrowthAddsOneSlabAtATime(t *testing.T) {
	p := New("test", 32, 2, DefaultMaxSlabs)
	var ptrs []unsafe.Pointer
	for i := 0; i < 5; i++ {
		ptrs = append(ptrs, p.Alloc())
	}
	stats := p.Stats()
	if stats.SlabCount != 3 {
		t.Errorf("slab_count = %d, want 3 (2 slots/slab, 5 allocs)", stats.SlabCount)
	}
	if stats.Capacity != 6 {
		t.Errorf("capacity = %d, want 6", stats.Capacity)
	}
}

func TestAllocIsZeroed(t *testing.T) {
	p := New("test", 32, 4, DefaultMaxSlabs)
	a := p.Alloc()
	buf := unsafe.Slice((*byte)(a), 32)
	buf[10] = 0xAB
	p.Free(a)
	b := p.Alloc()
	if b != a {
		t.Fatalf("expected slot reuse")
	}
	buf2 := unsafe.Slice((*byte)(b), 32)
	if buf2[10] != 0 {
		t.Errorf("reused slot not zeroed: byte 10 = %d", buf2[10])
	}
}

func TestFallbackBeyondSlabCap(t *testing.T) {
	p := New("test", 32, 2, 1) // one slab max, so 2 slots before fallback
	p.Alloc()
	p.Alloc()
	fallback := p.Alloc()
	if fallback == nil {
		t.Fatalf("fallback alloc returned nil")
	}
	stats := p.Stats()
	if stats.FallbackAllocs != 1 {
		t.Errorf("fallback_allocs = %d, want 1", stats.FallbackAllocs)
	}
	p.Free(fallback)
	if got := p.Stats().TotalFrees; got != 1 {
		t.Errorf("total_frees = %d, want 1", got)
	}
}

func TestValidateDetectsConsistentFreeList(t *testing.T) {
	p := New("test", 32, 4, DefaultMaxSlabs)
	a := p.Alloc()
	p.Alloc()
	p.Free(a)
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected Validate error: %v", err)
	}
}

func TestLeakReportFlagsOutstandingSlots(t *testing.T) {
	p := New("test", 32, 4, DefaultMaxSlabs)
	p.Alloc()
	log := p.LeakReport()
	if !log.ContainsErrors() && len(log.Entries) == 0 {
		t.Fatalf("expected a leak warning, got empty log")
	}
}

func TestConcurrentAllocFree(t *testing.T) {
	p := New("test", 64, 8, DefaultMaxSlabs)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				ptr := p.Alloc()
				p.Free(ptr)
			}
		}()
	}
	wg.Wait()
	if err := p.Validate(); err != nil {
		t.Errorf("Validate after concurrent use: %v", err)
	}
	if got := p.Stats().InUse; got != 0 {
		t.Errorf("in_use after concurrent alloc/free = %d, want 0", got)
	}
}

func TestSizeToClass(t *testing.T) {
	cases := []struct {
		size int
		want int
	}{
		{1, 0}, {32, 0}, {33, 1}, {64, 1}, {256, 3}, {1024, 5}, {1025, NoClass}, {4096, NoClass},
	}
	for _, c := range cases {
		if got := SizeToClass(c.size); got != c.want {
			t.Errorf("SizeToClass(%d) = %d, want %d", c.size, got, c.want)
		}
	}
}

func TestRouterAllocFreeRoutesToCorrectClass(t *testing.T) {
	r := NewRouter(4, DefaultMaxSlabs)
	ptr := r.Alloc(100)
	before := r.Pool(SizeToClass(100)).Stats().InUse
	if before != 1 {
		t.Fatalf("expected class pool to receive the allocation, in_use=%d", before)
	}
	r.Free(100, ptr)
	if got := r.Pool(SizeToClass(100)).Stats().InUse; got != 0 {
		t.Errorf("in_use after Router.Free = %d, want 0", got)
	}
}

func TestRouterBypassesPoolsAboveLargestClass(t *testing.T) {
	r := NewRouter(4, DefaultMaxSlabs)
	ptr := r.Alloc(2000)
	if ptr == nil {
		t.Fatalf("oversized alloc returned nil")
	}
	for _, p := range r.pools {
		if p.Stats().InUse != 0 {
			t.Errorf("oversized alloc unexpectedly touched a class pool")
		}
	}
	r.Free(2000, ptr) // no-op, must not panic
}
