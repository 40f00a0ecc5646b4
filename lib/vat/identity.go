// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package vat

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/hkdf"

	"github.com/switchyard-ci/switchyard/lib/secret"
)

// SeedSize is the required size in bytes of the vat master seed.
const SeedSize = 32

// HKDF info strings providing domain separation between the two keys
// derived from the master seed. Changing either invalidates every
// identity and service id derived from existing seeds.
var (
	hkdfInfoSigning   = []byte("switchyard.vat.signing.v1")
	hkdfInfoServiceID = []byte("switchyard.vat.service-id.v1")
)

// Identity is a vat's network identity: an Ed25519 keypair plus an
// optional public address. Created once at startup from the master
// seed and owned by the bootstrap for the process lifetime.
//
// An identity with no address is client-only: it can dial out to
// other vats but cannot be dialed into, and it persists no sturdy
// reference.
type Identity struct {
	signingKey   ed25519.PrivateKey
	publicKey    ed25519.PublicKey
	serviceIDKey []byte
	address      string
}

// NewIdentity derives an identity from a 32-byte master seed. The
// seed buffer is borrowed, not closed. address is the vat's public
// address in "tcp:host:port" form, or empty for a client-only
// identity. Derivation is deterministic: the same seed always yields
// the same identity, so service ids and sturdy refs are stable across
// restarts.
func NewIdentity(seed *secret.Buffer, address string) (*Identity, error) {
	if seed.Len() != SeedSize {
		return nil, fmt.Errorf("vat: master seed is %d bytes, want %d", seed.Len(), SeedSize)
	}
	if address != "" {
		if _, err := hostPort(address); err != nil {
			return nil, err
		}
	}

	signingSeed, err := deriveKey(seed.Bytes(), hkdfInfoSigning)
	if err != nil {
		return nil, err
	}
	serviceIDKey, err := deriveKey(seed.Bytes(), hkdfInfoServiceID)
	if err != nil {
		secret.Zero(signingSeed)
		return nil, err
	}

	signingKey := ed25519.NewKeyFromSeed(signingSeed)
	secret.Zero(signingSeed)

	return &Identity{
		signingKey:   signingKey,
		publicKey:    signingKey.Public().(ed25519.PublicKey),
		serviceIDKey: serviceIDKey,
		address:      address,
	}, nil
}

// ClientIdentity derives a client-only identity from the master
// seed: it can dial other vats but cannot be dialed into.
func ClientIdentity(seed *secret.Buffer) (*Identity, error) {
	return NewIdentity(seed, "")
}

// PublicKey returns the identity's Ed25519 public key. Safe to
// publish; embedded in sturdy references.
func (id *Identity) PublicKey() ed25519.PublicKey { return id.publicKey }

// Address returns the public address, or "" for client-only
// identities.
func (id *Identity) Address() string { return id.address }

// Listening reports whether the identity carries a public address.
func (id *Identity) Listening() bool { return id.address != "" }

// Sign signs message with the identity's private key.
func (id *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(id.signingKey, message)
}

// ServiceID derives the stable service id for a human label: a BLAKE3
// keyed hash of the label under the identity's derivation key. The id
// is unguessable without the key, so it functions as a capability —
// knowing it is what authorizes calling the service.
func (id *Identity) ServiceID(label string) ServiceID {
	hasher, err := blake3.NewKeyed(id.serviceIDKey)
	if err != nil {
		panic("vat: BLAKE3 keyed hash initialization failed (key must be 32 bytes): " + err.Error())
	}
	hasher.Write([]byte(label))

	var serviceID ServiceID
	copy(serviceID[:], hasher.Sum(nil))
	return serviceID
}

// deriveKey derives a 32-byte key from the master seed via
// HKDF-SHA256. The seed is required to be uniformly random, so the
// extract phase with nil salt is appropriate per RFC 5869.
func deriveKey(seed []byte, info []byte) ([]byte, error) {
	reader := hkdf.New(sha256.New, seed, nil, info)
	derived := make([]byte, 32)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("vat: HKDF key derivation failed: %w", err)
	}
	return derived, nil
}

// ServiceID is the 32-byte lookup key for capability resolution.
// Immutable once derived.
type ServiceID [32]byte

// String returns the hex form used on the wire and in sturdy refs.
func (s ServiceID) String() string { return hex.EncodeToString(s[:]) }

// ParseServiceID parses the hex form.
func ParseServiceID(raw string) (ServiceID, error) {
	decoded, err := hex.DecodeString(raw)
	if err != nil {
		return ServiceID{}, fmt.Errorf("vat: invalid service id: %w", err)
	}
	if len(decoded) != len(ServiceID{}) {
		return ServiceID{}, fmt.Errorf("vat: service id is %d bytes, want %d", len(decoded), len(ServiceID{}))
	}
	var serviceID ServiceID
	copy(serviceID[:], decoded)
	return serviceID, nil
}

// hostPort validates a "tcp:host:port" public address and returns the
// "host:port" part.
func hostPort(address string) (string, error) {
	scheme, rest, found := strings.Cut(address, ":")
	if !found || scheme != "tcp" || rest == "" {
		return "", fmt.Errorf("vat: address %q is not of the form tcp:host:port", address)
	}
	if !strings.Contains(rest, ":") {
		return "", fmt.Errorf("vat: address %q is missing a port", address)
	}
	return rest, nil
}
