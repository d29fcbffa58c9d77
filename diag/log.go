// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package diag defines the Log type shared by the CFG builder, SAMM and
// the worker runtime. Every operation that can produce a non-fatal
// diagnostic (deferred edge left unresolved, double-free suppressed,
// unhandled THROW, ...) appends to a Log rather than returning an error,
// so that callers can inspect the full set of diagnostics produced by a
// single operation before deciding whether to proceed.

// Contributors: Jeff Overbey
package diag

import (
	"bytes"
	"fmt"
)

// Severity ranks a diagnostic entry. Entries below Error never cause the
// producing operation to abort; Fatal is reserved for internal invariant
// violations, which panic rather than being logged (see
// cfg.InternalError) — it exists here so a caller that wraps a panic
// back into a Log can still render it uniformly.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Fatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Entry is a single diagnostic. Source identifies the subsystem that
// produced it (e.g. "cfg", "samm", "worker") for multi-component logs.
type Entry struct {
	Severity Severity
	Message  string
	Source   string
}

func (e Entry) String() string {
	var buf bytes.Buffer
	switch e.Severity {
	case Info:
		// no prefix
	case Warning:
		buf.WriteString("warning: ")
	case Error:
		buf.WriteString("error: ")
	case Fatal:
		buf.WriteString("FATAL: ")
	}
	if e.Source != "" {
		buf.WriteString(e.Source)
		buf.WriteString(": ")
	}
	buf.WriteString(e.Message)
	return buf.String()
}

// Log is an ordered, append-only collection of diagnostic entries.
type Log struct {
	Entries []Entry
}

// New returns a new, empty Log.
func New() *Log {
	return &Log{Entries: []Entry{}}
}

// Log appends a message with the given severity from the given source.
func (l *Log) Log(severity Severity, source, message string) {
	l.Entries = append(l.Entries, Entry{Severity: severity, Message: message, Source: source})
}

// Logf is Log with fmt.Sprintf-style formatting.
func (l *Log) Logf(severity Severity, source, format string, args ...interface{}) {
	l.Log(severity, source, fmt.Sprintf(format, args...))
}

// Merge appends every entry of other to l, preserving order.
func (l *Log) Merge(other *Log) {
	if other == nil {
		return
	}
	l.Entries = append(l.Entries, other.Entries...)
}

func (l *Log) contains(pred func(Entry) bool) bool {
	for _, e := range l.Entries {
		if pred(e) {
			return true
		}
	}
	return false
}

// ContainsErrors reports whether the log contains an Error or Fatal entry.
func (l *Log) ContainsErrors() bool {
	return l.contains(func(e Entry) bool { return e.Severity >= Error })
}

// ContainsFatal reports whether the log contains a Fatal entry.
func (l *Log) ContainsFatal() bool {
	return l.contains(func(e Entry) bool { return e.Severity == Fatal })
}

func (l *Log) String() string {
	var buf bytes.Buffer
	for _, e := range l.Entries {
		buf.WriteString(e.String())
		buf.WriteString("\n")
	}
	return buf.String()
}
