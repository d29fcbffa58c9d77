// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import "github.com/fasterbasic/fbcore/bitvec"

// Reachability returns the set of block ids reachable from c's entry
// block by a forward BFS over Successors. A block absent from the
// returned set is dead code: either one the builder itself marked
// Unreachable, or one only reachable via an unresolved forward jump
// that resolveDeferred logged as a warning (spec.md §4.1.8).
func Reachability(c *CFG) *bitvec.Set {
	set := bitvec.New(uint(len(c.Blocks())))
	queue := []int{c.Entry}
	set.Add(uint(c.Entry))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		blk := c.Block(id)
		if blk == nil {
			continue
		}
		for _, succ := range blk.Successors {
			if succ == DynamicReturnTarget {
				continue
			}
			if succ < 0 || set.Test(uint(succ)) {
				continue
			}
			set.Add(uint(succ))
			queue = append(queue, succ)
		}
	}
	return set
}
