// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cfg builds a ProgramCFG from a validated FasterBASIC AST: a
// single-pass recursive walk that wires every edge the instant its source
// and target are both known, deferring only genuinely-forward references
// (a GOTO/GOSUB to a line not yet reached in construction order) to a
// final resolution pass. See SPEC_FULL.md [MODULE: cfg].
package cfg

import (
	"fmt"

	"github.com/fasterbasic/fbcore/ast"
	"github.com/fasterbasic/fbcore/diag"
)

// DefaultMaxNestingDepth bounds recursive construct nesting (IF inside
// FOR inside SELECT inside TRY, ...). Exceeding it is an internal
// invariant violation, not a user-program error: spec.md §4.1.8.
const DefaultMaxNestingDepth = 1024

// InternalError is panicked for conditions spec.md §4.1.8 documents as
// aborting construction: a malformed AST, or nesting depth exceeded.
// Well-formed programs of any shape never trigger it.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return e.Msg }

func abort(format string, args ...interface{}) {
	panic(&InternalError{Msg: fmt.Sprintf(format, args...)})
}

// Build produces a complete ProgramCFG from a validated program. It never
// fails on a well-formed program; forward references that cannot be
// resolved are recorded as warnings in the returned Log, not errors.
func Build(prog *ast.Program) (*ProgramCFG, *diag.Log) {
	log := diag.New()
	pcfg := &ProgramCFG{Functions: make(map[string]*CFG)}

	mainLines, decls := extractDecls(prog.Lines)

	for _, d := range decls {
		switch decl := d.(type) {
		case *ast.SubDecl:
			checkNoNestedDecls(decl.Body)
			pcfg.Functions[decl.Name] = buildOneCFG(decl.Name, decl.Params, ast.Void, decl.Body, true, log)
		case *ast.FuncDecl:
			checkNoNestedDecls(decl.Body)
			pcfg.Functions[decl.Name] = buildOneCFG(decl.Name, decl.Params, decl.ReturnType, decl.Body, true, log)
		case *ast.DefFnDecl:
			pcfg.Functions[decl.Name] = buildDefFnCFG(decl, log)
		}
	}

	pcfg.Main = buildOneCFG("main", nil, ast.Void, mainLines, false, log)
	return pcfg, log
}

// extractDecls splits prog's top-level lines into the statement stream
// that belongs to main and the set of SUB/FUNCTION/DEF FN declarations,
// which never contribute statements to main's control flow (spec.md
// §4.1.7: "It then builds the main CFG over the remaining statements,
// skipping the statements that were function definitions").
func extractDecls(lines []*ast.Line) ([]ast.Line, []ast.Stmt) {
	var mainLines []ast.Line
	var decls []ast.Stmt
	for _, ln := range lines {
		var kept []ast.Stmt
		for _, s := range ln.Stmts {
			switch s.(type) {
			case *ast.SubDecl, *ast.FuncDecl, *ast.DefFnDecl:
				decls = append(decls, s)
			default:
				kept = append(kept, s)
			}
		}
		if len(kept) > 0 {
			mainLines = append(mainLines, ast.Line{Number: ln.Number, Stmts: kept})
		}
	}
	return mainLines, decls
}

// checkNoNestedDecls aborts if body (already a function/sub body)
// contains a further nested definition, which spec.md §4.1.7 says is
// rejected during the outer pass.
func checkNoNestedDecls(body []ast.Line) {
	for _, ln := range body {
		for _, s := range ln.Stmts {
			if containsDecl(s) {
				abort("nested SUB/FUNCTION/DEF FN definitions are not supported")
			}
		}
	}
}

func containsDecl(s ast.Stmt) bool {
	switch s.(type) {
	case *ast.SubDecl, *ast.FuncDecl, *ast.DefFnDecl:
		return true
	}
	var nested [][]ast.Line
	switch n := s.(type) {
	case *ast.IfStmt:
		nested = [][]ast.Line{n.Then, n.Else}
	case *ast.WhileStmt:
		nested = [][]ast.Line{n.Body}
	case *ast.ForStmt:
		nested = [][]ast.Line{n.Body}
	case *ast.RepeatStmt:
		nested = [][]ast.Line{n.Body}
	case *ast.DoStmt:
		nested = [][]ast.Line{n.Body}
	case *ast.SelectCaseStmt:
		for _, w := range n.Whens {
			nested = append(nested, w.Body)
		}
		nested = append(nested, n.Otherwise)
	case *ast.TryStmt:
		nested = append(nested, n.Body, n.Finally)
		for _, c := range n.Catches {
			nested = append(nested, c.Body)
		}
	}
	for _, lines := range nested {
		for _, ln := range lines {
			for _, s2 := range ln.Stmts {
				if containsDecl(s2) {
					return true
				}
			}
		}
	}
	return false
}

// buildDefFnCFG builds the (trivial, single-expression) CFG for a DEF FN:
// entry falls through directly to exit, since a DEF FN body is a single
// expression, never a statement sequence.
func buildDefFnCFG(d *ast.DefFnDecl, log *diag.Log) *CFG {
	c := newCFG(d.Name)
	c.Params = d.Params
	c.ReturnType = d.ReturnType
	entry := c.newBlock("entry")
	entry.IsEntry = true
	exit := c.newBlock("exit")
	exit.IsExit = true
	c.Entry, c.Exit = entry.ID, exit.ID
	c.addEdge(entry.ID, exit.ID, Fallthrough, "")
	return c
}

// buildOneCFG runs phases 0-2 over lines, producing a complete CFG with
// fresh block ids and dictionaries (spec.md §4.1.7: "resets ids and
// dictionaries" per function). For a SUB or FUNCTION body (isFunc), RETURN
// is wired to the function's own exit block.
func buildOneCFG(name string, params []ast.Param, ret ast.Type, lines []ast.Line, isFunc bool, log *diag.Log) *CFG {
	c := newCFG(name)
	c.Params = params
	c.ReturnType = ret

	entry := c.newBlock("entry")
	entry.IsEntry = true
	exitBlk := c.newBlock("exit")
	exitBlk.IsExit = true
	c.Entry, c.Exit = entry.ID, exitBlk.ID

	b := &builder{
		cfg:         c,
		jumpTargets: prescan(lines),
		lineBlocks:  make(map[int]int),
		labelBlocks: make(map[int]int), // never read; named labels resolve through labelNames
		labelNames:  make(map[string]int),
		log:         log,
		maxDepth:    DefaultMaxNestingDepth,
	}

	ctx := context{}
	if isFunc {
		ctx.Sub = &SubroutineContext{ReturnBlock: exitBlk.ID}
	}
	merge := b.buildLines(entry, lines, ctx)
	if !merge.Terminated {
		c.addEdge(merge.ID, exitBlk.ID, Fallthrough, "")
	}

	b.resolveDeferred()
	return c
}

// builder holds the per-CFG construction state: the two resolution
// dictionaries (line number -> block id, label -> block id) and the
// deferred-edge worklist, per spec.md §4.1.6.
type builder struct {
	cfg *CFG

	jumpTargets map[int]bool
	lineBlocks  map[int]int
	labelBlocks map[int]int
	labelNames  map[string]int

	deferred []deferredEdge

	log   *diag.Log
	depth int
	maxDepth int
}

type deferredEdge struct {
	Source int
	Target ast.Target
	Kind   EdgeKind
	Label  string
}

// prescan is Phase 0: collect every line number referenced by GOTO,
// GOSUB, ON...GOTO, ON...GOSUB, anywhere in the body (including nested
// constructs), so Phase 1 knows which lines require a block split.
func prescan(lines []ast.Line) map[int]bool {
	targets := make(map[int]bool)
	var walkStmt func(ast.Stmt)
	walkLines := func(ls []ast.Line) {
		for _, ln := range ls {
			for _, s := range ln.Stmts {
				walkStmt(s)
			}
		}
	}
	walkStmt = func(s ast.Stmt) {
		switch n := s.(type) {
		case *ast.GotoStmt:
			if n.Target.Label == "" {
				targets[n.Target.Line] = true
			}
		case *ast.GosubStmt:
			if n.Target.Label == "" {
				targets[n.Target.Line] = true
			}
		case *ast.OnGotoStmt:
			for _, t := range n.Targets {
				if t.Label == "" {
					targets[t.Line] = true
				}
			}
		case *ast.OnGosubStmt:
			for _, t := range n.Targets {
				if t.Label == "" {
					targets[t.Line] = true
				}
			}
		case *ast.IfStmt:
			if n.ThenGoto != 0 {
				targets[n.ThenGoto] = true
			}
			walkLines(n.Then)
			walkLines(n.Else)
		case *ast.WhileStmt:
			walkLines(n.Body)
		case *ast.ForStmt:
			walkLines(n.Body)
		case *ast.RepeatStmt:
			walkLines(n.Body)
		case *ast.DoStmt:
			walkLines(n.Body)
		case *ast.SelectCaseStmt:
			for _, w := range n.Whens {
				walkLines(w.Body)
			}
			walkLines(n.Otherwise)
		case *ast.TryStmt:
			walkLines(n.Body)
			walkLines(n.Finally)
			for _, c := range n.Catches {
				walkLines(c.Body)
			}
		}
	}
	walkLines(lines)
	return targets
}

// newUnreachable creates a fresh block not wired from anywhere, used both
// when the current block is already terminated and dead code follows,
// and as the merge block a construct builder returns when it can
// determine control never falls out of it.
func (b *builder) newUnreachable(label string) *Block {
	blk := b.cfg.newBlock(label)
	blk.Unreachable = true
	return blk
}

// enterConstruct/leaveConstruct track nesting depth against maxDepth.
func (b *builder) enterConstruct() {
	b.depth++
	if b.depth > b.maxDepth {
		abort("maximum construct nesting depth %d exceeded", b.maxDepth)
	}
}

func (b *builder) leaveConstruct() { b.depth-- }

// resolveLine returns the block id registered for a line number, if any.
func (b *builder) resolveLine(n int) (int, bool) {
	id, ok := b.lineBlocks[n]
	return id, ok
}

// registerLine binds a line number to a block id. Per spec.md §3.1 the
// map is injective: a line number already bound keeps its original
// binding (this only happens for line 0 == "no number", which is never
// registered, so injectivity holds by construction).
func (b *builder) registerLine(n int, blockID int) {
	if n == 0 {
		return
	}
	if _, exists := b.lineBlocks[n]; !exists {
		b.lineBlocks[n] = blockID
	}
}

// defer records an edge whose target line/label is not yet known.
func (b *builder) deferEdge(src int, target ast.Target, kind EdgeKind, label string) {
	b.deferred = append(b.deferred, deferredEdge{Source: src, Target: target, Kind: kind, Label: label})
}

// addResolvedOrDefer wires the edge immediately if the target is already
// known, otherwise defers it to Phase 2.
func (b *builder) addResolvedOrDefer(src int, target ast.Target, kind EdgeKind, label string) {
	if target.Label != "" {
		if id, ok := b.labelNames[target.Label]; ok {
			b.cfg.addEdge(src, id, kind, label)
			return
		}
	} else if id, ok := b.resolveLine(target.Line); ok {
		b.cfg.addEdge(src, id, kind, label)
		return
	}
	b.deferEdge(src, target, kind, label)
}

// resolveDeferred is Phase 2: resolve every deferred forward reference
// now that construction is complete. Anything still unresolved is logged
// as a warning, never an error (spec.md §4.1.6, §4.1.8).
func (b *builder) resolveDeferred() {
	for _, d := range b.deferred {
		var id int
		var ok bool
		if d.Target.Label != "" {
			id, ok = b.labelNames[d.Target.Label]
		} else {
			id, ok = b.resolveLine(d.Target.Line)
		}
		if ok {
			b.cfg.addEdge(d.Source, id, d.Kind, d.Label)
			continue
		}
		name := d.Target.Label
		if name == "" {
			name = fmt.Sprintf("line %d", d.Target.Line)
		}
		b.log.Logf(diag.Warning, "cfg", "unresolved jump target %s from block %d in %s", name, d.Source, b.cfg.Name)
	}
}
