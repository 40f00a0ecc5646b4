// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability provides the one-shot promise/resolver cell that
// lets the vat listener accept calls for an object before the object
// exists.
//
// New returns the two ends of a single-assignment slot. The Promise
// end is handed to the vat at bootstrap so that inbound calls have
// somewhere to go immediately; the Resolver end is retained by the
// service runner and fulfilled exactly once, when the pipeline engine
// finishes constructing. Calls that arrive before fulfillment queue
// inside the cell and are replayed in arrival order; calls after a
// rejection fail immediately with ErrUnavailable.
//
// The cell is the only object in Switchyard mutated by more than one
// task (resolver fulfillment racing promise calls), so it is the one
// place that carries an explicit synchronization protocol. Everything
// else in the process is single-writer.
package capability
