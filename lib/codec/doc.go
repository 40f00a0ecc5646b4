// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Switchyard's standard CBOR encoding
// configuration.
//
// Switchyard uses two serialization formats with a clear boundary:
//
//   - JSON for the web surface: route responses, error envelopes,
//     and webhook payloads handed to the engine.
//   - CBOR for the capability protocol: vat request/response
//     envelopes and sturdy reference tokens.
//
// This package provides the shared CBOR encoding and decoding modes
// so that every Switchyard package encodes identically without
// duplicating configuration. The encoder uses Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes — a requirement for sturdy reference
// tokens, which must be stable across restarts so that other
// processes can compare them byte for byte.
//
// For buffer-oriented operations (tokens, files):
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (vat connections):
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
package codec
