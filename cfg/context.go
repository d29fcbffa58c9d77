// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import "github.com/fasterbasic/fbcore/ast"

// LoopKind distinguishes the four loop constructs so EXIT FOR/WHILE/DO/
// REPEAT can find the innermost *matching* loop rather than just the
// innermost loop.
type LoopKind int

const (
	LoopFor LoopKind = iota
	LoopWhile
	LoopDo
	LoopRepeat
)

// LoopContext is pushed by every loop builder and linked to the
// enclosing loop, so EXIT and the innermost loop's back-edge wiring can
// find the right target without threading extra parameters through every
// statement builder.
type LoopContext struct {
	Kind      LoopKind
	ExitBlock int
	Outer     *LoopContext
}

// find walks outward from lc looking for the innermost context whose Kind
// matches want.
func (lc *LoopContext) find(want ast.ExitKind) *LoopContext {
	wantKind, ok := map[ast.ExitKind]LoopKind{
		ast.ExitFor:    LoopFor,
		ast.ExitWhile:  LoopWhile,
		ast.ExitDo:     LoopDo,
		ast.ExitRepeat: LoopRepeat,
	}[want]
	if !ok {
		return nil
	}
	for c := lc; c != nil; c = c.Outer {
		if c.Kind == wantKind {
			return c
		}
	}
	return nil
}

// SelectContext is pushed by SELECT CASE; EXIT SELECT resolves the
// innermost one.
type SelectContext struct {
	ExitBlock int
	Outer     *SelectContext
}

// TryContext is pushed by TRY; THROW resolves the innermost one's catch
// dispatch block.
type TryContext struct {
	CatchBlock int
	Outer      *TryContext
}

// SubroutineContext exists only while building a per-function CFG (see
// buildOneCFG); its ReturnBlock is that function's exit block. Its
// presence, not its nesting, is what RETURN consults: within a function
// body RETURN always means "return from this function", so there is
// exactly one SubroutineContext per function CFG, never a chain.
type SubroutineContext struct {
	ReturnBlock int
}

// context bundles the four independent, orthogonal contexts the spec
// threads through every construct builder.
type context struct {
	Loop   *LoopContext
	Select *SelectContext
	Try    *TryContext
	Sub    *SubroutineContext
}

func (c context) withLoop(lc *LoopContext) context {
	c.Loop = lc
	return c
}

func (c context) withSelect(sc *SelectContext) context {
	c.Select = sc
	return c
}

func (c context) withTry(tc *TryContext) context {
	c.Try = tc
	return c
}
