// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package access

// Identity is a stable caller identifier established by the web
// layer's session authentication. The zero value means the caller is
// unauthenticated.
type Identity string

// Anonymous is the identity of an unauthenticated caller.
const Anonymous Identity = ""

// Authenticated reports whether the identity names a principal.
func (i Identity) Authenticated() bool { return i != Anonymous }

// Role is a web action's required privilege level. The set is closed:
// route handlers declare one of these, nothing else.
type Role int

const (
	// Viewer covers read-only actions: status pages, build logs.
	Viewer Role = iota

	// Builder covers actions that mutate pipeline state: rebuild,
	// cancel.
	Builder

	// Admin covers administrative actions. Granted only to privileged
	// identities.
	Admin
)

// String returns the lowercase role name.
func (r Role) String() string {
	switch r {
	case Viewer:
		return "viewer"
	case Builder:
		return "builder"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// Policy maps (caller identity, requested role) to an allow/deny
// decision. Construct with NewPolicy or AllowAll; the zero value is a
// usable policy with no privileged identities.
type Policy struct {
	allowAll   bool
	privileged map[Identity]bool
}

// NewPolicy creates a role policy granting every role to the given
// privileged identities. The set is fixed at construction — there is
// no runtime mutation.
func NewPolicy(privileged []Identity) *Policy {
	set := make(map[Identity]bool, len(privileged))
	for _, identity := range privileged {
		if identity.Authenticated() {
			set[identity] = true
		}
	}
	return &Policy{privileged: set}
}

// AllowAll creates the policy for deployments with no identity
// provider: every caller is granted every role. Selecting it also
// implies the web layer disables secure-cookie enforcement; both are
// startup decisions, not per-request ones.
func AllowAll() *Policy {
	return &Policy{allowAll: true}
}

// Permissive reports whether the policy is the allow-all deployment
// mode.
func (p *Policy) Permissive() bool { return p.allowAll }

// Allow decides whether caller may act with the requested role. Rules
// are evaluated in a fixed total order, first match wins:
//
//  1. A privileged identity is granted every role.
//  2. Any other authenticated identity is granted Viewer and Builder.
//  3. An unauthenticated caller is granted Viewer only.
//  4. Deny.
func (p *Policy) Allow(caller Identity, role Role) bool {
	if p.allowAll {
		return true
	}
	if p.privileged[caller] {
		return true
	}
	if caller.Authenticated() {
		return role == Viewer || role == Builder
	}
	return role == Viewer
}
