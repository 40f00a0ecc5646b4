// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package vat

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/switchyard-ci/switchyard/lib/codec"
)

// tokenPrefix versions the sturdy reference token format.
const tokenPrefix = "syr1-"

// SturdyRef is a portable, persistable reference to one service on
// one vat: enough for another process to dial in and address the
// service. Read-only after creation.
type SturdyRef struct {
	// Address is the vat's public address, "tcp:host:port".
	Address string `cbor:"1,keyasint"`

	// Service is the capability lookup key on that vat.
	Service ServiceID `cbor:"2,keyasint"`

	// PublicKey is the vat's Ed25519 public key, letting dialers pin
	// the peer they expect to reach.
	PublicKey []byte `cbor:"3,keyasint"`
}

// NewSturdyRef builds the ref for a service hosted by identity.
// Returns an error for client-only identities — there is nothing to
// dial.
func NewSturdyRef(identity *Identity, service ServiceID) (*SturdyRef, error) {
	if !identity.Listening() {
		return nil, fmt.Errorf("vat: cannot build a sturdy ref for a client-only identity")
	}
	return &SturdyRef{
		Address:   identity.Address(),
		Service:   service,
		PublicKey: append([]byte(nil), identity.PublicKey()...),
	}, nil
}

// Token renders the ref as an opaque printable token: deterministic
// CBOR, base64url, "syr1-" prefix. The same ref always renders the
// same token.
func (r *SturdyRef) Token() (string, error) {
	data, err := codec.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("vat: encoding sturdy ref: %w", err)
	}
	return tokenPrefix + base64.RawURLEncoding.EncodeToString(data), nil
}

// ParseSturdyRef parses a token produced by Token.
func ParseSturdyRef(token string) (*SturdyRef, error) {
	token = strings.TrimSpace(token)
	encoded, found := strings.CutPrefix(token, tokenPrefix)
	if !found {
		return nil, fmt.Errorf("vat: sturdy ref token missing %q prefix", tokenPrefix)
	}
	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("vat: decoding sturdy ref token: %w", err)
	}

	var ref SturdyRef
	if err := codec.Unmarshal(data, &ref); err != nil {
		return nil, fmt.Errorf("vat: parsing sturdy ref: %w", err)
	}
	if _, err := hostPort(ref.Address); err != nil {
		return nil, err
	}
	if len(ref.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("vat: sturdy ref public key is %d bytes, want %d", len(ref.PublicKey), ed25519.PublicKeySize)
	}
	return &ref, nil
}

// WriteFile persists the ref's token to path atomically: write to a
// temporary file in the same directory, fsync, rename. Readers never
// see a partial token. The file is created with mode 0600 and
// overwritten on each restart; its presence is output, not input.
func (r *SturdyRef) WriteFile(path string) error {
	token, err := r.Token()
	if err != nil {
		return err
	}
	data := []byte(token + "\n")

	temporaryPath := path + ".tmp"
	file, err := os.OpenFile(temporaryPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("vat: creating temporary ref file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("vat: writing temporary ref file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("vat: syncing temporary ref file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("vat: closing temporary ref file: %w", err)
	}

	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("vat: renaming ref file into place: %w", err)
	}

	// Sync the parent directory so the rename survives power loss.
	parentDirectory, err := os.Open(filepath.Dir(path))
	if err == nil {
		parentDirectory.Sync()
		parentDirectory.Close()
	}

	return nil
}

// ReadRefFile reads and parses a sturdy ref token from a file written
// by WriteFile (or by another process following the same format).
func ReadRefFile(path string) (*SturdyRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vat: reading ref file: %w", err)
	}
	return ParseSturdyRef(string(bytes.TrimSpace(data)))
}
