// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package access decides whether a web caller may perform an action
// requiring a given role.
//
// The decision function is pure: (caller identity, requested role) →
// allow/deny, with a fixed rule ordering and first match winning. The
// policy is constructed once at startup from the deployment profile.
// Deployments without an identity provider select AllowAll() — a
// wholesale replacement chosen at startup, never a per-request branch.
package access
