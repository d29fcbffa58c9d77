// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package samm

import (
	"hash/fnv"
	"unsafe"

	"github.com/fasterbasic/fbcore/bitvec"
)

// bloomBits is 2^20 * 96 = 96 Mbit (12 MiB), the size spec.md §4.2.3
// names for the double-free guard.
const bloomBits = (1 << 20) * 96

// bloomHashes is the number of bit positions set per add/checked per
// check.
const bloomHashes = 10

// bloomFilter is a monotone add-only probabilistic "probably already
// freed" set. It never produces a false negative for a pointer actually
// added, and may rarely produce a false positive.
type bloomFilter struct {
	bits  *bitvec.Set
	added uint64
}

func newBloomFilter() *bloomFilter {
	return &bloomFilter{bits: bitvec.New(bloomBits)}
}

// hashPair computes (h1, h2) for ptr: h1 is FNV-1a over the pointer's 8
// address bytes, h2 is FNV-1a over h1's own 8 bytes. This is the
// Kirsch-Mitzenmacher double-hash base spec.md §4.2.3 specifies.
func hashPair(ptr unsafe.Pointer) (uint64, uint64) {
	addr := uint64(uintptr(ptr))
	var addrBytes [8]byte
	for i := 0; i < 8; i++ {
		addrBytes[i] = byte(addr >> (8 * i))
	}

	h1f := fnv.New64a()
	h1f.Write(addrBytes[:])
	h1 := h1f.Sum64()

	var h1Bytes [8]byte
	for i := 0; i < 8; i++ {
		h1Bytes[i] = byte(h1 >> (8 * i))
	}
	h2f := fnv.New64a()
	h2f.Write(h1Bytes[:])
	h2 := h2f.Sum64()

	return h1, h2
}

// indices yields the bloomHashes bit positions for ptr via
// h_i = (h1 + i*h2) mod bloomBits.
func indices(ptr unsafe.Pointer) [bloomHashes]uint {
	h1, h2 := hashPair(ptr)
	var idx [bloomHashes]uint
	for i := 0; i < bloomHashes; i++ {
		idx[i] = uint((h1 + uint64(i)*h2) % bloomBits)
	}
	return idx
}

// add sets all ten bits for ptr. Must be called under the owning
// Manager's scope mutex (spec.md §4.2.5: "written only under the scope
// mutex").
func (b *bloomFilter) add(ptr unsafe.Pointer) {
	for _, i := range indices(ptr) {
		b.bits.Add(i)
	}
	b.added++
}

// check reports whether ptr is probably already freed: true iff all ten
// bits are set. Must be called under the same mutex as add.
func (b *bloomFilter) check(ptr unsafe.Pointer) bool {
	for _, i := range indices(ptr) {
		if !b.bits.Test(i) {
			return false
		}
	}
	return true
}
