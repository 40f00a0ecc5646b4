// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/switchyard-ci/switchyard/lib/buildstatus"
	"github.com/switchyard-ci/switchyard/lib/capability"
	"github.com/switchyard-ci/switchyard/lib/codec"
	"github.com/switchyard-ci/switchyard/lib/secret"
	"github.com/switchyard-ci/switchyard/lib/vat"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := New(Config{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestDeliverMarksRefPending(t *testing.T) {
	e := testEngine(t)

	payload := []byte(`{
		"ref": "refs/heads/master",
		"project": {"path_with_namespace": "alice/widgets"}
	}`)
	if err := e.Deliver(context.Background(), "Push Hook", payload); err != nil {
		t.Fatalf("Deliver: %v", err)
	}

	status, ok := e.Index().RefStatus("alice", "widgets", "refs/heads/master")
	if !ok {
		t.Fatal("pushed ref is not tracked")
	}
	if status != buildstatus.Pending {
		t.Errorf("status = %s, want pending", status)
	}
}

func TestDeliverAcceptsGitHubShape(t *testing.T) {
	e := testEngine(t)

	payload := []byte(`{
		"ref": "refs/heads/master",
		"repository": {"full_name": "bob/gadgets"}
	}`)
	if err := e.Deliver(context.Background(), "push", payload); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if _, ok := e.Index().RefStatus("bob", "gadgets", "refs/heads/master"); !ok {
		t.Error("pushed ref is not tracked")
	}
}

func TestDeliverDropsIncompleteEvents(t *testing.T) {
	e := testEngine(t)

	tests := map[string]string{
		"no_repository": `{"ref": "refs/heads/master"}`,
		"no_ref":        `{"project": {"path_with_namespace": "alice/widgets"}}`,
		"bad_path":      `{"ref": "refs/heads/master", "project": {"path_with_namespace": "nodash"}}`,
	}
	for name, payload := range tests {
		t.Run(name, func(t *testing.T) {
			if err := e.Deliver(context.Background(), "Push Hook", []byte(payload)); err != nil {
				t.Errorf("Deliver: %v, want nil (dropped, not failed)", err)
			}
		})
	}
	if owners := e.Index().Owners(); len(owners) != 0 {
		t.Errorf("incomplete events reached the index: %v", owners)
	}
}

func TestDeliverRejectsMalformedJSON(t *testing.T) {
	e := testEngine(t)
	if err := e.Deliver(context.Background(), "Push Hook", []byte("{")); err == nil {
		t.Error("Deliver accepted malformed JSON")
	}
}

func TestRebuildDefaultsToBranchRef(t *testing.T) {
	e := testEngine(t)
	e.Rebuild("alice", "widgets", "")

	status, ok := e.Index().RefStatus("alice", "widgets", buildstatus.DefaultBranchRef)
	if !ok || status != buildstatus.Pending {
		t.Errorf("status = %s, ok = %v, want pending", status, ok)
	}
}

func TestReportMovesRefOutOfPending(t *testing.T) {
	e := testEngine(t)
	e.Rebuild("alice", "widgets", "refs/heads/master")

	e.Report("alice", "widgets", "refs/heads/master", true)
	if status, _ := e.Index().RefStatus("alice", "widgets", "refs/heads/master"); status != buildstatus.Passed {
		t.Errorf("status = %s, want passed", status)
	}

	e.Report("alice", "widgets", "refs/heads/master", false)
	if status, _ := e.Index().RefStatus("alice", "widgets", "refs/heads/master"); status != buildstatus.Failed {
		t.Errorf("status = %s, want failed", status)
	}
}

func TestCapabilityRoundTrip(t *testing.T) {
	e := testEngine(t)
	target := e.Capability()

	rebuild, err := codec.Marshal(refRequest{Owner: "alice", Repo: "widgets"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := target.Call(context.Background(), "rebuild", rebuild); err != nil {
		t.Fatalf("rebuild call: %v", err)
	}

	report, err := codec.Marshal(reportRequest{
		refRequest: refRequest{Owner: "alice", Repo: "widgets"},
		Passed:     true,
	})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if _, err := target.Call(context.Background(), "report", report); err != nil {
		t.Fatalf("report call: %v", err)
	}

	statusReq, err := codec.Marshal(refRequest{Owner: "alice", Repo: "widgets"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	raw, err := target.Call(context.Background(), "status", statusReq)
	if err != nil {
		t.Fatalf("status call: %v", err)
	}
	var status statusResponse
	if err := codec.Unmarshal(raw, &status); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !status.Known || status.Status != "passed" {
		t.Errorf("status = %+v, want known passed", status)
	}
}

func TestCapabilityUnknownMethod(t *testing.T) {
	e := testEngine(t)
	if _, err := e.Capability().Call(context.Background(), "bogus", nil); err == nil {
		t.Error("unknown method accepted")
	}
}

func TestRebuildSubmitsToBackend(t *testing.T) {
	// A backend vat recording "submit" calls.
	seed, err := secret.NewFromBytes(bytes.Repeat([]byte{9}, vat.SeedSize))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	t.Cleanup(func() { seed.Close() })
	identity, err := vat.NewIdentity(seed, "tcp:127.0.0.1:9000")
	if err != nil {
		t.Fatalf("NewIdentity: %v", err)
	}
	backend, err := vat.NewVat(identity, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewVat: %v", err)
	}

	submissions := make(chan refRequest, 1)
	promise, resolver := capability.New()
	resolver.Resolve(capability.TargetFunc(func(_ context.Context, method string, payload []byte) ([]byte, error) {
		if method != "submit" {
			return nil, fmt.Errorf("unknown method %q", method)
		}
		var req refRequest
		if err := codec.Unmarshal(payload, &req); err != nil {
			return nil, err
		}
		submissions <- req
		return nil, nil
	}))

	serviceID := identity.ServiceID("submission")
	backend.Register(serviceID, promise)
	if err := backend.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		backend.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	e, err := New(Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Backend: &vat.SturdyRef{
			Address:   "tcp:" + backend.Addr().String(),
			Service:   serviceID,
			PublicKey: identity.PublicKey(),
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	e.Rebuild("alice", "widgets", "refs/heads/master")

	select {
	case req := <-submissions:
		if req.Owner != "alice" || req.Repo != "widgets" || req.Ref != "refs/heads/master" {
			t.Errorf("submission = %+v", req)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("rebuild never reached the submission backend")
	}
}
