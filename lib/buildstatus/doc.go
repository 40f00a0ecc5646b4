// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package buildstatus defines the read interface over the pipeline
// engine's build-status index, and an in-memory implementation of it.
//
// The index is owned and mutated exclusively by the engine; everything
// in this layer (the metrics aggregator in particular) only reads it.
// The shape mirrors a forge: owners → repositories → refs → status of
// the ref's current commit. Readers must tolerate concurrent mutation
// during a walk — MemoryIndex gives a consistent snapshot per lookup,
// not across lookups, which is all the aggregator requires.
package buildstatus
