// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides Switchyard's pull-based metrics: labeled
// gauges collected into an explicitly constructed Registry and exposed
// as a plain-text scrape endpoint.
//
// There is no process-wide registry. Components receive the Registry
// at construction and register the gauges they own plus any
// pre-collect hooks; the HTTP handler runs every hook immediately
// before rendering, so recomputed values (the build-status aggregates)
// are fresh at each scrape without any push path or event tracking.
//
// Gauges are set, not accumulated — a pre-collect hook recomputes its
// values from scratch on every scrape, which cannot drift from missed
// events the way incremental counters can.
package telemetry
