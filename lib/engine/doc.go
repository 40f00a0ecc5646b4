// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package engine is the reference pipeline engine. It keeps the
// build-status index in memory, marks refs pending as webhook pushes
// arrive, and exposes inspection and rebuild entry points over both
// HTTP routes and the capability protocol.
//
// When a submission backend is configured, every ref that goes
// pending is also handed to it over the capability protocol.
//
// It deliberately does not schedule or execute builds: status moves
// out of pending only when a build backend reports a result, via the
// "report" capability method. Deployments with a real engine replace
// this package behind the same interface.
package engine
