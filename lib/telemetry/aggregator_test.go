// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/switchyard-ci/switchyard/lib/buildstatus"
)

func testIndex() *buildstatus.MemoryIndex {
	index := buildstatus.NewMemoryIndex()
	index.SetRef("acme", "r1", buildstatus.DefaultBranchRef, buildstatus.Passed)
	index.SetRef("acme", "r2", buildstatus.DefaultBranchRef, buildstatus.Failed)
	index.SetRef("acme", "r3", buildstatus.DefaultBranchRef, buildstatus.Pending)
	// r4 has no master ref and must contribute nothing.
	index.SetRef("acme", "r4", "refs/heads/dev", buildstatus.Passed)
	return index
}

func TestAggregatorClassifiesStates(t *testing.T) {
	registry := NewRegistry()
	aggregator := NewAggregator(registry, testIndex(), "")

	aggregator.Refresh()

	if got := aggregator.gauge.Get("ok"); got != 1 {
		t.Errorf("ok = %v, want 1", got)
	}
	if got := aggregator.gauge.Get("failed"); got != 1 {
		t.Errorf("failed = %v, want 1", got)
	}
	if got := aggregator.gauge.Get("active"); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}
}

func TestAggregatorCountsNotStartedAsActive(t *testing.T) {
	index := buildstatus.NewMemoryIndex()
	index.SetRef("acme", "r1", buildstatus.DefaultBranchRef, buildstatus.NotStarted)

	registry := NewRegistry()
	aggregator := NewAggregator(registry, index, "")
	aggregator.Refresh()

	if got := aggregator.gauge.Get("active"); got != 1 {
		t.Errorf("active = %v, want 1", got)
	}
}

func TestAggregatorIsIdempotent(t *testing.T) {
	registry := NewRegistry()
	index := testIndex()
	aggregator := NewAggregator(registry, index, "")

	aggregator.Refresh()
	first := registry.Collect()
	second := registry.Collect()
	if first != second {
		t.Errorf("successive collections differ:\n%s\nvs\n%s", first, second)
	}
}

func TestAggregatorRecomputesFromScratch(t *testing.T) {
	index := testIndex()
	registry := NewRegistry()
	aggregator := NewAggregator(registry, index, "")
	aggregator.Refresh()

	// A repository flipping Failed → Passed must move the counts, not
	// stack on top of them.
	index.SetRef("acme", "r2", buildstatus.DefaultBranchRef, buildstatus.Passed)
	aggregator.Refresh()

	if got := aggregator.gauge.Get("ok"); got != 2 {
		t.Errorf("ok = %v, want 2", got)
	}
	if got := aggregator.gauge.Get("failed"); got != 0 {
		t.Errorf("failed = %v, want 0", got)
	}
}

func TestScrapeRunsPreCollectHook(t *testing.T) {
	index := buildstatus.NewMemoryIndex()
	registry := NewRegistry()
	NewAggregator(registry, index, "")

	// Mutate after registration: the scrape must reflect it because
	// the pre-collect hook refreshes at collection time.
	index.SetRef("acme", "r1", buildstatus.DefaultBranchRef, buildstatus.Passed)

	recorder := httptest.NewRecorder()
	registry.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	body := recorder.Body.String()
	if !strings.Contains(body, `switchyard_master_refs{state="ok"} 1`) {
		t.Errorf("scrape body missing refreshed ok gauge:\n%s", body)
	}
	if !strings.Contains(body, "# TYPE switchyard_master_refs gauge") {
		t.Errorf("scrape body missing TYPE line:\n%s", body)
	}
}

func TestRegistryRejectsDuplicateGauge(t *testing.T) {
	registry := NewRegistry()
	registry.NewGauge("g", "help", "")

	defer func() {
		if recover() == nil {
			t.Error("duplicate gauge registration did not panic")
		}
	}()
	registry.NewGauge("g", "help", "")
}

func TestUnlabeledGaugeRendering(t *testing.T) {
	registry := NewRegistry()
	gauge := registry.NewGauge("switchyard_up", "Whether the front-end is serving.", "")
	gauge.Set("", 1)

	body := registry.Collect()
	if !strings.Contains(body, "switchyard_up 1\n") {
		t.Errorf("unlabeled gauge rendering wrong:\n%s", body)
	}
}
