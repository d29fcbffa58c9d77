// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import (
	"fmt"

	"github.com/fasterbasic/fbcore/ast"
	"github.com/fasterbasic/fbcore/diag"
)

// buildLines is Phase 1's workhorse: walk a statement sequence (a
// function body, or the body of a nested construct), splitting blocks at
// jump targets and dispatching each statement, threading the "current"
// block forward. It returns the block where the next statement after
// this sequence must continue — the same role extras/cfg's buildBlock
// plays for a []ast.Stmt, generalized to a []ast.Line sequence that may
// itself contain jump-target line numbers.
func (b *builder) buildLines(incoming *Block, lines []ast.Line, ctx context) *Block {
	current := incoming
	// markLine resolves termination and the jump-target split before
	// binding a line number to a block: a line following a terminator
	// (e.g. the one right after a GOTO) must bind to the fresh
	// unreachable block created for it, never to the terminated block
	// that happened to be "current" a moment before.
	markLine := func(n int) {
		if n == 0 {
			return
		}
		if current.Terminated {
			current = b.newUnreachable("unreachable")
		}
		if b.jumpTargets[n] && (len(current.Stmts) > 0 || current.IsEntry) {
			current = b.splitBlock(current, fmt.Sprintf("L%d", n))
		}
		b.registerLine(n, current.ID)
		current.addLine(n)
	}
	for _, ln := range lines {
		markLine(ln.Number)
		for _, s := range ln.Stmts {
			if current.Terminated {
				current = b.newUnreachable("unreachable")
			}
			current = b.buildStmt(current, s, ctx)
		}
	}
	return current
}

// splitBlock creates a fresh block continuing from old, wiring a
// Fallthrough edge unless old is already terminated (a jump target that
// happens to follow a terminator needs no fallthrough, just a landing
// pad for the label).
func (b *builder) splitBlock(old *Block, label string) *Block {
	nb := b.cfg.newBlock(label)
	if !old.Terminated {
		b.cfg.addEdge(old.ID, nb.ID, Fallthrough, "")
	}
	return nb
}

// finalizeMerge marks a construct's merge/exit block unreachable if
// nothing ended up wired into it — the "freshly-created unreachable
// block" spec.md §4.1.3 describes a builder returning when control
// cannot fall out of the construct at all.
func finalizeMerge(blk *Block) {
	if len(blk.Predecessors) == 0 {
		blk.Unreachable = true
	}
}

func (b *builder) buildStmt(current *Block, s ast.Stmt, ctx context) *Block {
	switch st := s.(type) {
	case *ast.LetStmt, *ast.PrintStmt, *ast.DimStmt, *ast.CallStmt:
		current.Stmts = append(current.Stmts, s)
		return current
	case *ast.LabelStmt:
		current.Stmts = append(current.Stmts, s)
		b.labelNames[st.Name] = current.ID
		return current

	case *ast.IfStmt:
		return b.buildIf(current, st, ctx)
	case *ast.WhileStmt:
		return b.buildWhile(current, st, ctx)
	case *ast.ForStmt:
		return b.buildFor(current, st, ctx)
	case *ast.RepeatStmt:
		return b.buildRepeat(current, st, ctx)
	case *ast.DoStmt:
		return b.buildDo(current, st, ctx)
	case *ast.SelectCaseStmt:
		return b.buildSelect(current, st, ctx)
	case *ast.TryStmt:
		return b.buildTry(current, st, ctx)

	case *ast.GotoStmt:
		current.Stmts = append(current.Stmts, s)
		b.addResolvedOrDefer(current.ID, st.Target, Jump, "")
		current.Terminated = true
		return current

	case *ast.GosubStmt:
		current.Stmts = append(current.Stmts, s)
		b.addResolvedOrDefer(current.ID, st.Target, Call, "")
		ret := b.cfg.newBlock("gosub_return")
		b.cfg.GosubReturnBlocks[ret.ID] = true
		b.cfg.addEdge(current.ID, ret.ID, Fallthrough, "")
		current.Terminated = true
		return ret

	case *ast.ReturnStmt:
		current.Stmts = append(current.Stmts, s)
		if ctx.Sub != nil {
			b.cfg.addEdge(current.ID, ctx.Sub.ReturnBlock, Return, "")
		} else {
			b.cfg.addEdge(current.ID, DynamicReturnTarget, Return, "")
		}
		current.Terminated = true
		return current

	case *ast.OnGotoStmt:
		current.Stmts = append(current.Stmts, s)
		for i, t := range st.Targets {
			b.addResolvedOrDefer(current.ID, t, ConditionalTrue, fmt.Sprintf("case_%d", i+1))
		}
		next := b.cfg.newBlock("on_goto_next")
		b.cfg.addEdge(current.ID, next.ID, ConditionalFalse, "default")
		return next

	case *ast.OnGosubStmt:
		current.Stmts = append(current.Stmts, s)
		for i, t := range st.Targets {
			b.addResolvedOrDefer(current.ID, t, ConditionalTrue, fmt.Sprintf("call_%d", i+1))
		}
		ret := b.cfg.newBlock("on_gosub_return")
		b.cfg.GosubReturnBlocks[ret.ID] = true
		b.cfg.addEdge(current.ID, ret.ID, Fallthrough, "")
		return ret

	case *ast.OnCallStmt:
		current.Stmts = append(current.Stmts, s)
		cont := b.cfg.newBlock("on_call_cont")
		for i, name := range st.Subs {
			b.cfg.addEdge(current.ID, cont.ID, ConditionalTrue, fmt.Sprintf("call_sub:%s:case_%d", name, i+1))
		}
		b.cfg.addEdge(current.ID, cont.ID, ConditionalFalse, "call_default")
		return cont

	case *ast.ExitStmt:
		current.Stmts = append(current.Stmts, s)
		if target, ok := b.resolveExit(st.Kind, ctx); ok {
			b.cfg.addEdge(current.ID, target, Jump, "")
		} else {
			b.log.Logf(diag.Warning, "cfg", "EXIT outside any matching construct in %s", b.cfg.Name)
		}
		current.Terminated = true
		return current

	case *ast.EndStmt:
		current.Stmts = append(current.Stmts, s)
		b.cfg.addEdge(current.ID, b.cfg.Exit, Jump, "")
		current.Terminated = true
		return current

	case *ast.ThrowStmt:
		current.Stmts = append(current.Stmts, s)
		if ctx.Try != nil {
			b.cfg.addEdge(current.ID, ctx.Try.CatchBlock, Exception, "")
		} else {
			b.log.Logf(diag.Warning, "cfg", "unhandled THROW in %s", b.cfg.Name)
		}
		current.Terminated = true
		return current

	default:
		abort("unrecognized statement kind %T", s)
		return current
	}
}

func (b *builder) resolveExit(kind ast.ExitKind, ctx context) (int, bool) {
	if kind == ast.ExitSelect {
		if ctx.Select != nil {
			return ctx.Select.ExitBlock, true
		}
		return 0, false
	}
	if ctx.Loop != nil {
		if lc := ctx.Loop.find(kind); lc != nil {
			return lc.ExitBlock, true
		}
	}
	return 0, false
}

// buildIf implements both the multi-line block form and the single-line
// "IF cond THEN <line>" GOTO-shorthand form (spec.md §4.1.4). ELSEIF
// chains are not special-cased: an ELSEIF is encoded as a single-line
// Else body containing one nested *ast.IfStmt, which this function's own
// recursive call (via buildLines -> buildStmt -> buildIf) builds exactly
// as a fresh IF, so arbitrarily long chains fall out for free.
func (b *builder) buildIf(incoming *Block, s *ast.IfStmt, ctx context) *Block {
	b.enterConstruct()
	defer b.leaveConstruct()
	incoming.Stmts = append(incoming.Stmts, s)

	if s.ThenGoto != 0 && len(s.Then) == 0 && len(s.Else) == 0 {
		b.addResolvedOrDefer(incoming.ID, ast.Target{Line: s.ThenGoto}, ConditionalTrue, "true")
		merge := b.cfg.newBlock("if_merge")
		b.cfg.addEdge(incoming.ID, merge.ID, ConditionalFalse, "false")
		incoming.Terminated = true
		finalizeMerge(merge)
		return merge
	}

	thenEntry := b.cfg.newBlock("if_then")
	b.cfg.addEdge(incoming.ID, thenEntry.ID, ConditionalTrue, "true")
	thenExit := b.buildLines(thenEntry, s.Then, ctx)

	merge := b.cfg.newBlock("if_merge")

	hasElse := len(s.Else) > 0
	if hasElse {
		elseEntry := b.cfg.newBlock("if_else")
		b.cfg.addEdge(incoming.ID, elseEntry.ID, ConditionalFalse, "false")
		elseExit := b.buildLines(elseEntry, s.Else, ctx)
		if !elseExit.Terminated {
			b.cfg.addEdge(elseExit.ID, merge.ID, Fallthrough, "")
		}
	} else {
		b.cfg.addEdge(incoming.ID, merge.ID, ConditionalFalse, "false")
	}
	if !thenExit.Terminated {
		b.cfg.addEdge(thenExit.ID, merge.ID, Fallthrough, "")
	}

	incoming.Terminated = true
	finalizeMerge(merge)
	return merge
}

func (b *builder) buildWhile(incoming *Block, s *ast.WhileStmt, ctx context) *Block {
	b.enterConstruct()
	defer b.leaveConstruct()

	header := b.cfg.newBlock("while_header")
	header.IsLoopHeader = true
	if !incoming.Terminated {
		b.cfg.addEdge(incoming.ID, header.ID, Fallthrough, "")
	}
	header.Stmts = append(header.Stmts, s)

	body := b.cfg.newBlock("while_body")
	exitBlk := b.cfg.newBlock("while_exit")
	exitBlk.IsLoopExit = true
	b.cfg.addEdge(header.ID, body.ID, ConditionalTrue, "true")
	b.cfg.addEdge(header.ID, exitBlk.ID, ConditionalFalse, "false")
	header.Terminated = true

	lc := &LoopContext{Kind: LoopWhile, ExitBlock: exitBlk.ID}
	bodyExit := b.buildLines(body, s.Body, ctx.withLoop(lc))
	if !bodyExit.Terminated {
		b.cfg.addEdge(bodyExit.ID, header.ID, Fallthrough, "")
	}
	return exitBlk
}

func (b *builder) buildFor(incoming *Block, s *ast.ForStmt, ctx context) *Block {
	b.enterConstruct()
	defer b.leaveConstruct()

	init := b.cfg.newBlock("for_init")
	if !incoming.Terminated {
		b.cfg.addEdge(incoming.ID, init.ID, Fallthrough, "")
	}
	init.Stmts = append(init.Stmts, s)

	header := b.cfg.newBlock("for_header")
	header.IsLoopHeader = true
	b.cfg.addEdge(init.ID, header.ID, Fallthrough, "")
	init.Terminated = true

	body := b.cfg.newBlock("for_body")
	exitBlk := b.cfg.newBlock("for_exit")
	exitBlk.IsLoopExit = true
	b.cfg.addEdge(header.ID, body.ID, ConditionalTrue, "true")
	b.cfg.addEdge(header.ID, exitBlk.ID, ConditionalFalse, "false")
	header.Terminated = true

	lc := &LoopContext{Kind: LoopFor, ExitBlock: exitBlk.ID}
	bodyExit := b.buildLines(body, s.Body, ctx.withLoop(lc))

	incr := b.cfg.newBlock("for_increment")
	if !bodyExit.Terminated {
		b.cfg.addEdge(bodyExit.ID, incr.ID, Fallthrough, "")
	}
	incr.Stmts = append(incr.Stmts, s)
	b.cfg.addEdge(incr.ID, header.ID, Fallthrough, "")
	incr.Terminated = true
	finalizeMerge(incr)

	return exitBlk
}

func (b *builder) buildRepeat(incoming *Block, s *ast.RepeatStmt, ctx context) *Block {
	b.enterConstruct()
	defer b.leaveConstruct()

	body := b.cfg.newBlock("repeat_body")
	body.IsLoopHeader = true
	if !incoming.Terminated {
		b.cfg.addEdge(incoming.ID, body.ID, Fallthrough, "")
	}

	exitBlk := b.cfg.newBlock("repeat_exit")
	exitBlk.IsLoopExit = true
	lc := &LoopContext{Kind: LoopRepeat, ExitBlock: exitBlk.ID}
	bodyExit := b.buildLines(body, s.Body, ctx.withLoop(lc))

	condBlk := b.cfg.newBlock("repeat_cond")
	if !bodyExit.Terminated {
		b.cfg.addEdge(bodyExit.ID, condBlk.ID, Fallthrough, "")
	}
	condBlk.Stmts = append(condBlk.Stmts, s)
	b.cfg.addEdge(condBlk.ID, exitBlk.ID, ConditionalTrue, "true")
	b.cfg.addEdge(condBlk.ID, body.ID, ConditionalFalse, "false")
	condBlk.Terminated = true
	finalizeMerge(condBlk)

	return exitBlk
}

func (b *builder) buildDo(incoming *Block, s *ast.DoStmt, ctx context) *Block {
	b.enterConstruct()
	defer b.leaveConstruct()

	switch {
	case s.PreCond != ast.CondNone:
		header := b.cfg.newBlock("do_header")
		header.IsLoopHeader = true
		if !incoming.Terminated {
			b.cfg.addEdge(incoming.ID, header.ID, Fallthrough, "")
		}
		header.Stmts = append(header.Stmts, s)

		body := b.cfg.newBlock("do_body")
		exitBlk := b.cfg.newBlock("do_exit")
		exitBlk.IsLoopExit = true
		if s.PreCond == ast.CondWhile {
			b.cfg.addEdge(header.ID, body.ID, ConditionalTrue, "true")
			b.cfg.addEdge(header.ID, exitBlk.ID, ConditionalFalse, "false")
		} else {
			b.cfg.addEdge(header.ID, exitBlk.ID, ConditionalTrue, "true")
			b.cfg.addEdge(header.ID, body.ID, ConditionalFalse, "false")
		}
		header.Terminated = true

		lc := &LoopContext{Kind: LoopDo, ExitBlock: exitBlk.ID}
		bodyExit := b.buildLines(body, s.Body, ctx.withLoop(lc))
		if !bodyExit.Terminated {
			b.cfg.addEdge(bodyExit.ID, header.ID, Fallthrough, "")
		}
		return exitBlk

	case s.PostCond != ast.CondNone:
		body := b.cfg.newBlock("do_body")
		body.IsLoopHeader = true
		if !incoming.Terminated {
			b.cfg.addEdge(incoming.ID, body.ID, Fallthrough, "")
		}
		exitBlk := b.cfg.newBlock("do_exit")
		exitBlk.IsLoopExit = true
		lc := &LoopContext{Kind: LoopDo, ExitBlock: exitBlk.ID}
		bodyExit := b.buildLines(body, s.Body, ctx.withLoop(lc))

		condBlk := b.cfg.newBlock("do_cond")
		if !bodyExit.Terminated {
			b.cfg.addEdge(bodyExit.ID, condBlk.ID, Fallthrough, "")
		}
		condBlk.Stmts = append(condBlk.Stmts, s)
		if s.PostCond == ast.CondWhile {
			b.cfg.addEdge(condBlk.ID, body.ID, ConditionalTrue, "true")
			b.cfg.addEdge(condBlk.ID, exitBlk.ID, ConditionalFalse, "false")
		} else {
			b.cfg.addEdge(condBlk.ID, exitBlk.ID, ConditionalTrue, "true")
			b.cfg.addEdge(condBlk.ID, body.ID, ConditionalFalse, "false")
		}
		condBlk.Terminated = true
		finalizeMerge(condBlk)
		return exitBlk

	default: // infinite DO ... LOOP
		body := b.cfg.newBlock("do_body")
		body.IsLoopHeader = true
		if !incoming.Terminated {
			b.cfg.addEdge(incoming.ID, body.ID, Fallthrough, "")
		}
		exitBlk := b.cfg.newBlock("do_exit")
		exitBlk.IsLoopExit = true
		lc := &LoopContext{Kind: LoopDo, ExitBlock: exitBlk.ID}
		bodyExit := b.buildLines(body, s.Body, ctx.withLoop(lc))
		if !bodyExit.Terminated {
			b.cfg.addEdge(bodyExit.ID, body.ID, Fallthrough, "")
		}
		return exitBlk
	}
}

func (b *builder) buildSelect(incoming *Block, s *ast.SelectCaseStmt, ctx context) *Block {
	b.enterConstruct()
	defer b.leaveConstruct()
	incoming.Stmts = append(incoming.Stmts, s)

	exitBlk := b.cfg.newBlock("select_exit")
	sc := &SelectContext{ExitBlock: exitBlk.ID}

	prev := incoming
	prevWasCheck := false
	for i, w := range s.Whens {
		check := b.cfg.newBlock(fmt.Sprintf("select_check_%d", i+1))
		if prevWasCheck {
			b.cfg.addEdge(prev.ID, check.ID, ConditionalFalse, "next_case")
			prev.Terminated = true
		} else if !prev.Terminated {
			b.cfg.addEdge(prev.ID, check.ID, Fallthrough, "")
		}

		body := b.cfg.newBlock(fmt.Sprintf("select_body_%d", i+1))
		b.cfg.addEdge(check.ID, body.ID, ConditionalTrue, fmt.Sprintf("case_%d", i+1))
		bodyExit := b.buildLines(body, w.Body, ctx.withSelect(sc))
		if !bodyExit.Terminated {
			b.cfg.addEdge(bodyExit.ID, exitBlk.ID, Fallthrough, "")
		}

		prev = check
		prevWasCheck = true
	}

	if len(s.Otherwise) > 0 {
		otherwise := b.cfg.newBlock("select_otherwise")
		if prevWasCheck {
			b.cfg.addEdge(prev.ID, otherwise.ID, ConditionalFalse, "otherwise")
			prev.Terminated = true
		} else if !prev.Terminated {
			b.cfg.addEdge(prev.ID, otherwise.ID, Fallthrough, "")
		}
		otherExit := b.buildLines(otherwise, s.Otherwise, ctx.withSelect(sc))
		if !otherExit.Terminated {
			b.cfg.addEdge(otherExit.ID, exitBlk.ID, Fallthrough, "")
		}
	} else {
		if prevWasCheck {
			b.cfg.addEdge(prev.ID, exitBlk.ID, ConditionalFalse, "no_match")
			prev.Terminated = true
		} else if !prev.Terminated {
			b.cfg.addEdge(prev.ID, exitBlk.ID, Fallthrough, "")
		}
	}

	finalizeMerge(exitBlk)
	return exitBlk
}

// buildTry represents "the innermost catch" (spec.md §4.1.4's row for
// TRY/CATCH/FINALLY) as a single dispatch block that every THROW inside
// the try-body targets via an Exception edge, and which itself branches
// to each catch clause's body. Catch and finally bodies build with the
// enclosing (not this) TryContext active: an exception raised while
// handling a catch, or while running a finally, is not caught by the
// same try.
func (b *builder) buildTry(incoming *Block, s *ast.TryStmt, ctx context) *Block {
	b.enterConstruct()
	defer b.leaveConstruct()
	incoming.Stmts = append(incoming.Stmts, s)

	exitBlk := b.cfg.newBlock("try_exit")
	var finallyEntry *Block
	hasFinally := len(s.Finally) > 0

	catchDispatch := b.cfg.newBlock("catch_dispatch")
	tc := &TryContext{CatchBlock: catchDispatch.ID}

	tryBody := b.cfg.newBlock("try_body")
	if !incoming.Terminated {
		b.cfg.addEdge(incoming.ID, tryBody.ID, Fallthrough, "")
	}
	tryExit := b.buildLines(tryBody, s.Body, ctx.withTry(tc))

	var catchExits []*Block
	for i, c := range s.Catches {
		body := b.cfg.newBlock(fmt.Sprintf("catch_body_%d", i+1))
		label := "catch_default"
		if len(c.Codes) > 0 {
			label = fmt.Sprintf("catch_codes_%v", c.Codes)
		}
		b.cfg.addEdge(catchDispatch.ID, body.ID, ConditionalTrue, label)
		catchExits = append(catchExits, b.buildLines(body, c.Body, ctx))
	}
	catchDispatch.Terminated = true

	route := func(from *Block) {
		if !from.Terminated {
			if hasFinally {
				if finallyEntry == nil {
					finallyEntry = b.cfg.newBlock("finally")
				}
				b.cfg.addEdge(from.ID, finallyEntry.ID, Fallthrough, "")
			} else {
				b.cfg.addEdge(from.ID, exitBlk.ID, Fallthrough, "")
			}
		}
	}
	route(tryExit)
	for _, ce := range catchExits {
		route(ce)
	}

	if hasFinally {
		if finallyEntry == nil {
			finallyEntry = b.cfg.newBlock("finally")
		}
		finallyExit := b.buildLines(finallyEntry, s.Finally, ctx)
		if !finallyExit.Terminated {
			b.cfg.addEdge(finallyExit.ID, exitBlk.ID, Fallthrough, "")
		}
	}

	finalizeMerge(exitBlk)
	return exitBlk
}
