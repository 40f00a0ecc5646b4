// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnavailable is returned by Promise.Call when the cell was
// rejected: the object the promise stood for will never exist. Queued
// callers and future callers both receive it — nothing hangs.
var ErrUnavailable = errors.New("capability: service unavailable")

// Target is the interface served through a cell. The vat dispatches
// each inbound request as one Call; the engine's capability surface
// implements it.
type Target interface {
	// Call invokes the named method with an opaque CBOR payload and
	// returns the CBOR response payload.
	Call(ctx context.Context, method string, payload []byte) ([]byte, error)
}

// TargetFunc adapts a function to the Target interface.
type TargetFunc func(ctx context.Context, method string, payload []byte) ([]byte, error)

// Call implements Target.
func (f TargetFunc) Call(ctx context.Context, method string, payload []byte) ([]byte, error) {
	return f(ctx, method, payload)
}

// State describes a cell's resolution state.
type State int

const (
	// Unresolved means the resolver has not been fulfilled. Calls
	// queue.
	Unresolved State = iota

	// Resolved means the cell holds a live target. Calls forward
	// directly.
	Resolved

	// Rejected means the resolver was fulfilled with failure. Calls
	// fail with ErrUnavailable.
	Rejected
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Unresolved:
		return "unresolved"
	case Resolved:
		return "resolved"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// cell is the shared one-shot slot behind a Promise/Resolver pair.
//
// State machine: Unresolved(queue) → Resolved(target) | Rejected(reason),
// exactly one transition. While the resolver drains the queue the
// state remains Unresolved so that late arrivals append behind the
// queued calls instead of overtaking them — the queue order is the
// arrival order, and resolution replays it before direct dispatch
// begins.
type cell struct {
	mu        sync.Mutex
	state     State
	resolving bool
	target    Target
	reason    error
	queue     []*pendingCall
}

// pendingCall is one queued Promise.Call waiting for resolution.
type pendingCall struct {
	ctx     context.Context
	method  string
	payload []byte

	// done receives exactly one result. Buffered so the replay loop
	// never blocks on a caller that has already given up.
	done chan callResult

	// claimed arbitrates between the replay loop dispatching the call
	// and the caller abandoning it on context cancellation. Guarded
	// by claimMu, not by the cell lock, so the caller can claim
	// without contending with a replay in progress.
	claimMu sync.Mutex
	claimed bool
}

type callResult struct {
	data []byte
	err  error
}

// claim marks the call as taken. Returns true for exactly one caller.
func (p *pendingCall) claim() bool {
	p.claimMu.Lock()
	defer p.claimMu.Unlock()
	if p.claimed {
		return false
	}
	p.claimed = true
	return true
}

// Promise is the caller-facing end of a cell. It is handed to the vat
// before the served object exists; Call never fails merely because
// resolution has not happened yet.
type Promise struct {
	cell *cell
}

// Resolver is the fulfilling end of a cell. Exactly one of Resolve or
// Reject may be called, exactly once; a second fulfillment is a
// programming error and panics.
type Resolver struct {
	cell *cell
}

// New creates a cell and returns its two ends.
func New() (*Promise, *Resolver) {
	c := &cell{}
	return &Promise{cell: c}, &Resolver{cell: c}
}

// State reports the cell's current resolution state.
func (p *Promise) State() State {
	p.cell.mu.Lock()
	defer p.cell.mu.Unlock()
	return p.cell.state
}

// Call invokes method on the cell's object. Before resolution the
// call queues; once the resolver is fulfilled with a target, queued
// calls complete in arrival order as if issued directly against the
// target. After a rejection, Call fails immediately with
// ErrUnavailable.
//
// If ctx is cancelled while the call is queued, Call returns ctx.Err()
// and the call is skipped during replay.
func (p *Promise) Call(ctx context.Context, method string, payload []byte) ([]byte, error) {
	c := p.cell

	c.mu.Lock()
	switch c.state {
	case Resolved:
		target := c.target
		c.mu.Unlock()
		return target.Call(ctx, method, payload)

	case Rejected:
		reason := c.reason
		c.mu.Unlock()
		return nil, unavailable(reason)
	}

	pending := &pendingCall{
		ctx:     ctx,
		method:  method,
		payload: payload,
		done:    make(chan callResult, 1),
	}
	c.queue = append(c.queue, pending)
	c.mu.Unlock()

	select {
	case result := <-pending.done:
		return result.data, result.err
	case <-ctx.Done():
		if pending.claim() {
			return nil, ctx.Err()
		}
		// The replay loop claimed the call first: its result is
		// already on the way.
		result := <-pending.done
		return result.data, result.err
	}
}

// Resolve publishes target to every holder of the promise end. Queued
// calls are dispatched sequentially in arrival order before direct
// dispatch begins; no call observes a half-resolved cell. Panics if
// the cell was already fulfilled.
func (r *Resolver) Resolve(target Target) {
	if target == nil {
		panic("capability: Resolve with nil target")
	}
	c := r.cell

	c.mu.Lock()
	if c.state != Unresolved || c.resolving {
		c.mu.Unlock()
		panic("capability: resolver fulfilled twice")
	}
	c.resolving = true

	// Drain until the queue is empty, then flip the state in the same
	// critical section that observes emptiness. Calls arriving during
	// the drain append behind the queue and are served in turn.
	for {
		if len(c.queue) == 0 {
			c.state = Resolved
			c.target = target
			c.mu.Unlock()
			return
		}
		pending := c.queue[0]
		c.queue = c.queue[1:]
		c.mu.Unlock()

		if pending.claim() {
			data, err := target.Call(pending.ctx, pending.method, pending.payload)
			pending.done <- callResult{data: data, err: err}
		}

		c.mu.Lock()
	}
}

// Reject publishes failure: every queued call and every future call
// against the promise fails with ErrUnavailable wrapping reason.
// Panics if the cell was already fulfilled.
func (r *Resolver) Reject(reason error) {
	c := r.cell

	c.mu.Lock()
	if c.state != Unresolved || c.resolving {
		c.mu.Unlock()
		panic("capability: resolver fulfilled twice")
	}
	c.state = Rejected
	c.reason = reason
	queue := c.queue
	c.queue = nil
	c.mu.Unlock()

	for _, pending := range queue {
		if pending.claim() {
			pending.done <- callResult{err: unavailable(reason)}
		}
	}
}

// unavailable wraps reason in ErrUnavailable so callers can test with
// errors.Is while still seeing why the object never materialized.
func unavailable(reason error) error {
	if reason == nil {
		return ErrUnavailable
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, reason)
}
