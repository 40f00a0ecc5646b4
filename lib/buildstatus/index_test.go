// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package buildstatus

import (
	"reflect"
	"testing"
)

func TestMemoryIndexSetAndLookup(t *testing.T) {
	index := NewMemoryIndex()
	index.SetRef("acme", "widget", DefaultBranchRef, Pending)
	index.SetRef("acme", "widget", DefaultBranchRef, Passed)
	index.SetRef("acme", "gadget", "refs/heads/dev", Failed)
	index.SetRef("zeta", "core", DefaultBranchRef, NotStarted)

	if got := index.Owners(); !reflect.DeepEqual(got, []string{"acme", "zeta"}) {
		t.Errorf("Owners() = %v, want [acme zeta]", got)
	}
	if got := index.Repositories("acme"); !reflect.DeepEqual(got, []string{"gadget", "widget"}) {
		t.Errorf("Repositories(acme) = %v, want [gadget widget]", got)
	}
	if got := index.Repositories("nobody"); got != nil {
		t.Errorf("Repositories(nobody) = %v, want nil", got)
	}

	status, ok := index.RefStatus("acme", "widget", DefaultBranchRef)
	if !ok || status != Passed {
		t.Errorf("RefStatus = (%v, %v), want (Passed, true)", status, ok)
	}
	if _, ok := index.RefStatus("acme", "widget", "refs/heads/dev"); ok {
		t.Error("RefStatus for absent ref reported ok")
	}
}

func TestMemoryIndexDeletePrunes(t *testing.T) {
	index := NewMemoryIndex()
	index.SetRef("acme", "widget", DefaultBranchRef, Passed)
	index.DeleteRef("acme", "widget", DefaultBranchRef)

	if got := index.Owners(); len(got) != 0 {
		t.Errorf("Owners() after delete = %v, want empty", got)
	}

	// Deleting absent entries is a no-op.
	index.DeleteRef("acme", "widget", DefaultBranchRef)
	index.DeleteRef("ghost", "widget", DefaultBranchRef)
}

func TestStatusString(t *testing.T) {
	want := map[Status]string{
		NotStarted: "not_started",
		Pending:    "pending",
		Passed:     "passed",
		Failed:     "failed",
	}
	for status, name := range want {
		if status.String() != name {
			t.Errorf("%d.String() = %q, want %q", status, status.String(), name)
		}
	}
}
