// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package vat hosts Switchyard's capability-addressable RPC endpoint.
//
// A vat owns a network identity (an Ed25519 keypair derived from a
// master seed) and routes inbound calls to locally registered
// services. Services are addressed by service id: a 32-byte BLAKE3
// keyed hash of the identity and a human label. The id is unguessable
// without the identity's derivation key, so possession of an id both
// names and authorizes the service — there is no separate access
// check on the RPC surface.
//
// Registered services are backed by the promise side of a
// capability.Cell, which is what lets the listener start accepting
// connections before the pipeline engine exists: early calls queue in
// the cell and replay in arrival order once the runner resolves it.
//
// A sturdy reference packages the vat's public address, a service id,
// and the vat public key into a portable token. Bootstrap persists
// the engine's sturdy ref to a well-known path so other processes can
// dial in; Dial consumes a ref produced by some other vat (the
// submission backend, for instance).
//
// The wire protocol is one CBOR request/response exchange per TCP
// connection, with the same envelope discipline as the web layer's
// JSON errors: {ok, error, data}.
package vat
