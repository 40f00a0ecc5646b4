// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package runner supervises the Switchyard front-end process: it
// bootstraps the capability network, constructs the pipeline engine
// concurrently, resolves the engine's capability once it exists, and
// then races the long-running loops (capability server, engine,
// web server) against each other. The first loop to finish — normally
// none does — decides the fate of the process.
package runner
