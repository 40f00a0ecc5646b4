// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"github.com/switchyard-ci/switchyard/lib/access"
)

// digestAuth validates logins against the configured identity →
// password-digest table. Digests are hex SHA-256 of the password;
// comparison is constant-time over the digest.
type digestAuth struct {
	users map[string]string
}

func newDigestAuth(users map[string]string) *digestAuth {
	return &digestAuth{users: users}
}

func (a *digestAuth) Authenticate(_ context.Context, username, password string) (access.Identity, error) {
	want, ok := a.users[username]
	if !ok {
		return access.Anonymous, fmt.Errorf("unknown user")
	}
	digest := sha256.Sum256([]byte(password))
	got := hex.EncodeToString(digest[:])
	if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
		return access.Anonymous, fmt.Errorf("wrong password")
	}
	return access.Identity(username), nil
}
