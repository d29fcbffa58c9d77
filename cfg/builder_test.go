// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cfg

import (
	"testing"

	"github.com/fasterbasic/fbcore/ast"
)

// edgeExists reports whether c has an edge src->dst of the given kind.
func edgeExists(c *CFG, src, dst int, kind EdgeKind) bool {
	for _, e := range c.Edges() {
		if e.Source == src && e.Target == dst && e.Kind == kind {
			return true
		}
	}
	return false
}

func countEdgesFrom(c *CFG, src int) int {
	n := 0
	for _, e := range c.Edges() {
		if e.Source == src {
			n++
		}
	}
	return n
}

// E1: a WHILE loop produces exactly the header/body/exit shape with a
// back-edge from the body into the header.
func TestWhileLoopShape(t *testing.T) {
	prog := &ast.Program{
		Lines: []*ast.Line{
			{Number: 10, Stmts: []ast.Stmt{
				&ast.WhileStmt{
					Cond: "X < 10",
					Body: []ast.Line{
						{Number: 20, Stmts: []ast.Stmt{&ast.LetStmt{Target: "X", Expr: "X + 1"}}},
					},
				},
			}},
			{Number: 30, Stmts: []ast.Stmt{&ast.EndStmt{}}},
		},
	}

	pcfg, log := Build(prog)
	if log.ContainsErrors() {
		t.Fatalf("unexpected errors: %s", log.String())
	}

	c := pcfg.Main
	var header, body, exit *Block
	for _, b := range c.Blocks() {
		switch {
		case b.Label == "while_header":
			header = b
		case b.Label == "while_body":
			body = b
		case b.Label == "while_exit":
			exit = b
		}
	}
	if header == nil || body == nil || exit == nil {
		t.Fatalf("missing expected while blocks: header=%v body=%v exit=%v", header, body, exit)
	}
	if !header.IsLoopHeader {
		t.Errorf("header block not marked IsLoopHeader")
	}
	if !exit.IsLoopExit {
		t.Errorf("exit block not marked IsLoopExit")
	}
	if countEdgesFrom(c, header.ID) != 2 {
		t.Errorf("loop header has %d outgoing edges, want 2", countEdgesFrom(c, header.ID))
	}
	if !edgeExists(c, header.ID, body.ID, ConditionalTrue) {
		t.Errorf("missing header->body ConditionalTrue edge")
	}
	if !edgeExists(c, header.ID, exit.ID, ConditionalFalse) {
		t.Errorf("missing header->exit ConditionalFalse edge")
	}
	foundBack := false
	for _, pred := range header.Predecessors {
		if pred == body.ID {
			foundBack = true
		}
	}
	if !foundBack {
		t.Errorf("missing back-edge from body into header")
	}
}

// E2: a forward GOTO to a line not yet reached in construction order
// resolves correctly once that line's block exists.
func TestForwardGoto(t *testing.T) {
	prog := &ast.Program{
		Lines: []*ast.Line{
			{Number: 10, Stmts: []ast.Stmt{&ast.GotoStmt{Target: ast.Target{Line: 30}}}},
			{Number: 20, Stmts: []ast.Stmt{&ast.LetStmt{Target: "X", Expr: "1"}}},
			{Number: 30, Stmts: []ast.Stmt{&ast.PrintStmt{Args: []string{"X"}}}},
		},
	}

	pcfg, log := Build(prog)
	for _, e := range log.Entries {
		t.Logf("diag: %s", e.String())
	}
	if log.ContainsErrors() {
		t.Fatalf("unexpected errors: %s", log.String())
	}

	c := pcfg.Main
	id30, ok := findBlockContainingLine(c, 30)
	if !ok {
		t.Fatalf("no block registered for line 30")
	}
	id10, ok := findBlockContainingLine(c, 10)
	if !ok {
		t.Fatalf("no block registered for line 10")
	}
	if !edgeExists(c, id10, id30, Jump) {
		t.Errorf("expected Jump edge from line 10's block to line 30's block")
	}
	// line 20 must be unreachable: the only predecessor path to it was
	// the straight-line fallthrough from line 10, which GOTO replaced.
	id20, ok := findBlockContainingLine(c, 20)
	if !ok {
		t.Fatalf("no block registered for line 20")
	}
	reach := Reachability(c)
	if reach.Test(uint(id20)) {
		t.Errorf("line 20's block should not be reachable from entry")
	}
}

// E3: GOSUB creates a dedicated return-point block distinct from the
// GOSUB's own block, and a plain RETURN inside the callee's body (no
// enclosing SubroutineContext since this is all within main) produces a
// Return edge to the dynamic target sentinel.
func TestGosubReturnPoint(t *testing.T) {
	prog := &ast.Program{
		Lines: []*ast.Line{
			{Number: 10, Stmts: []ast.Stmt{&ast.GosubStmt{Target: ast.Target{Line: 100}}}},
			{Number: 20, Stmts: []ast.Stmt{&ast.EndStmt{}}},
			{Number: 100, Stmts: []ast.Stmt{&ast.PrintStmt{Args: []string{"\"hi\""}}}},
			{Number: 110, Stmts: []ast.Stmt{&ast.ReturnStmt{}}},
		},
	}

	pcfg, log := Build(prog)
	if log.ContainsErrors() {
		t.Fatalf("unexpected errors: %s", log.String())
	}

	c := pcfg.Main
	id10, _ := findBlockContainingLine(c, 10)
	id100, _ := findBlockContainingLine(c, 100)
	if !edgeExists(c, id10, id100, Call) {
		t.Errorf("expected Call edge from GOSUB's block to line 100's block")
	}

	var retPoint *Block
	for _, b := range c.Blocks() {
		if b.Label == "gosub_return" {
			retPoint = b
		}
	}
	if retPoint == nil {
		t.Fatalf("no gosub_return block created")
	}
	if !c.GosubReturnBlocks[retPoint.ID] {
		t.Errorf("gosub_return block not registered in GosubReturnBlocks")
	}
	if retPoint.ID == id10 {
		t.Errorf("return point must be a distinct block from the GOSUB's own block")
	}

	id110, _ := findBlockContainingLine(c, 110)
	if !edgeExists(c, id110, DynamicReturnTarget, Return) {
		t.Errorf("expected Return edge to DynamicReturnTarget from line 110's RETURN")
	}
}

func TestIfThenElseShape(t *testing.T) {
	prog := &ast.Program{
		Lines: []*ast.Line{
			{Number: 10, Stmts: []ast.Stmt{
				&ast.IfStmt{
					Cond: "X > 0",
					Then: []ast.Line{{Stmts: []ast.Stmt{&ast.PrintStmt{Args: []string{"\"pos\""}}}}},
					Else: []ast.Line{{Stmts: []ast.Stmt{&ast.PrintStmt{Args: []string{"\"non-pos\""}}}}},
				},
			}},
			{Number: 20, Stmts: []ast.Stmt{&ast.EndStmt{}}},
		},
	}

	pcfg, log := Build(prog)
	if log.ContainsErrors() {
		t.Fatalf("unexpected errors: %s", log.String())
	}
	c := pcfg.Main

	var ifBlk *Block
	for _, b := range c.Blocks() {
		if b.IsEntry {
			ifBlk = b
		}
	}
	if countEdgesFrom(c, ifBlk.ID) != 2 {
		t.Errorf("if block has %d outgoing edges, want 2", countEdgesFrom(c, ifBlk.ID))
	}

	var merge *Block
	for _, b := range c.Blocks() {
		if b.Label == "if_merge" {
			merge = b
		}
	}
	if merge == nil {
		t.Fatalf("no if_merge block created")
	}
	if len(merge.Predecessors) != 2 {
		t.Errorf("if_merge has %d predecessors, want 2 (then-exit and else-exit)", len(merge.Predecessors))
	}
}

func TestExitForTargetsLoopExit(t *testing.T) {
	prog := &ast.Program{
		Lines: []*ast.Line{
			{Number: 10, Stmts: []ast.Stmt{
				&ast.ForStmt{
					Var:  "I",
					From: "1",
					To:   "10",
					Body: []ast.Line{
						{Number: 20, Stmts: []ast.Stmt{&ast.ExitStmt{Kind: ast.ExitFor}}},
					},
				},
			}},
		},
	}

	pcfg, log := Build(prog)
	if log.ContainsErrors() {
		t.Fatalf("unexpected errors: %s", log.String())
	}
	c := pcfg.Main

	id20, ok := findBlockContainingLine(c, 20)
	if !ok {
		t.Fatalf("no block for line 20")
	}
	var forExit *Block
	for _, b := range c.Blocks() {
		if b.Label == "for_exit" {
			forExit = b
		}
	}
	if forExit == nil {
		t.Fatalf("no for_exit block")
	}
	if !edgeExists(c, id20, forExit.ID, Jump) {
		t.Errorf("expected EXIT FOR to jump directly to for_exit")
	}
}

func findBlockContainingLine(c *CFG, line int) (int, bool) {
	for _, b := range c.Blocks() {
		if b.Lines[line] {
			return b.ID, true
		}
	}
	return 0, false
}
