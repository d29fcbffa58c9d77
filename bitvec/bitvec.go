// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bitvec wraps github.com/bits-and-blooms/bitset for the two
// places the core needs a large indexed bit vector: the SAMM Bloom
// filter (samm package) and the CFG reachability sweep (cfg package).
// The teacher uses the same library the same way in
// extras/cfg/df.go and analysis/dataflow/{live,reaching}.go, one
// *bitset.BitSet per basic block holding GEN/KILL/DEF/USE membership;
// here a single bitset.BitSet holds membership over a larger, flatter
// index space (pointer hashes, or block ids) instead of one per block.
package bitvec

import "github.com/bits-and-blooms/bitset"

// Set is a fixed-capacity bit vector. The zero value is not usable; use
// New.
type Set struct {
	bits *bitset.BitSet
	cap  uint
}

// New returns a Set with room for at least capacity bits, all clear.
func New(capacity uint) *Set {
	return &Set{bits: bitset.New(capacity), cap: capacity}
}

// Cap returns the number of addressable bits.
func (s *Set) Cap() uint { return s.cap }

// Add sets bit i. i must be < Cap().
func (s *Set) Add(i uint) {
	s.bits.Set(i)
}

// Test reports whether bit i is set.
func (s *Set) Test(i uint) bool {
	return s.bits.Test(i)
}

// Count returns the number of set bits.
func (s *Set) Count() uint {
	return s.bits.Count()
}

// Clone returns an independent copy of s.
func (s *Set) Clone() *Set {
	return &Set{bits: s.bits.Clone(), cap: s.cap}
}
