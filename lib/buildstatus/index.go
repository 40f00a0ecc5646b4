// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package buildstatus

import (
	"sort"
	"sync"
)

// Status is the build state of a ref's current commit.
type Status int

const (
	// NotStarted means the commit is known but no build has begun.
	NotStarted Status = iota

	// Pending means a build is queued or running.
	Pending

	// Passed means the most recent build succeeded.
	Passed

	// Failed means the most recent build failed.
	Failed
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Pending:
		return "pending"
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultBranchRef is the ref the metrics aggregator inspects per
// repository.
const DefaultBranchRef = "refs/heads/master"

// Index is the read-only view of the engine's build-status index.
// Implementations must be safe for concurrent readers while the
// engine mutates; per-call consistency is sufficient (an aggregation
// walk does not need a cross-repository snapshot).
type Index interface {
	// Owners returns the active owners, sorted.
	Owners() []string

	// Repositories returns the active repositories under owner,
	// sorted. Unknown owners yield nil.
	Repositories(owner string) []string

	// RefStatus returns the status of the named ref's current commit.
	// The second result is false when the repository has no such ref.
	RefStatus(owner, repo, ref string) (Status, bool)
}

// MemoryIndex is a mutable in-memory Index. The engine is its single
// writer; any number of readers may walk it concurrently.
type MemoryIndex struct {
	mu     sync.RWMutex
	owners map[string]map[string]map[string]Status
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{owners: make(map[string]map[string]map[string]Status)}
}

// SetRef records the status of a ref, creating the owner and
// repository entries as needed.
func (m *MemoryIndex) SetRef(owner, repo, ref string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	repos := m.owners[owner]
	if repos == nil {
		repos = make(map[string]map[string]Status)
		m.owners[owner] = repos
	}
	refs := repos[repo]
	if refs == nil {
		refs = make(map[string]Status)
		repos[repo] = refs
	}
	refs[ref] = status
}

// DeleteRef removes a ref. Empty repositories and owners are pruned
// so that Owners/Repositories only report active entries.
func (m *MemoryIndex) DeleteRef(owner, repo, ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	repos := m.owners[owner]
	if repos == nil {
		return
	}
	refs := repos[repo]
	if refs == nil {
		return
	}
	delete(refs, ref)
	if len(refs) == 0 {
		delete(repos, repo)
	}
	if len(repos) == 0 {
		delete(m.owners, owner)
	}
}

// Owners implements Index.
func (m *MemoryIndex) Owners() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	owners := make([]string, 0, len(m.owners))
	for owner := range m.owners {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// Repositories implements Index.
func (m *MemoryIndex) Repositories(owner string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	repos := m.owners[owner]
	if repos == nil {
		return nil
	}
	names := make([]string, 0, len(repos))
	for name := range repos {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Refs returns the tracked refs for a repository, sorted.
func (m *MemoryIndex) Refs(owner, repo string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	repos := m.owners[owner]
	if repos == nil {
		return nil
	}
	refs := repos[repo]
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RefStatus implements Index.
func (m *MemoryIndex) RefStatus(owner, repo, ref string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	repos := m.owners[owner]
	if repos == nil {
		return NotStarted, false
	}
	refs := repos[repo]
	if refs == nil {
		return NotStarted, false
	}
	status, ok := refs[ref]
	return status, ok
}
