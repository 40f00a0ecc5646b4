// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"github.com/switchyard-ci/switchyard/lib/buildstatus"
)

// Aggregator recomputes the build-state gauges from the engine's
// status index. It owns one labeled gauge
// (switchyard_master_refs{state=ok|failed|active}) and registers a
// pre-collect hook so every scrape sees values recomputed from
// scratch rather than incrementally updated.
type Aggregator struct {
	index     buildstatus.Index
	gauge     *Gauge
	branchRef string
}

// NewAggregator creates the aggregator, registers its gauge with the
// registry, and hooks Refresh into the registry's pre-collect pass.
// branchRef selects the ref inspected per repository; pass "" for
// buildstatus.DefaultBranchRef.
func NewAggregator(registry *Registry, index buildstatus.Index, branchRef string) *Aggregator {
	if branchRef == "" {
		branchRef = buildstatus.DefaultBranchRef
	}
	aggregator := &Aggregator{
		index: index,
		gauge: registry.NewGauge(
			"switchyard_master_refs",
			"Number of repositories whose default branch is in the given build state.",
			"state",
		),
		branchRef: branchRef,
	}
	registry.RegisterPreCollect(aggregator.Refresh)
	return aggregator
}

// Refresh walks the whole index and republishes the three gauges.
// Repositories without the default-branch ref contribute nothing.
func (a *Aggregator) Refresh() {
	var ok, failed, active int

	for _, owner := range a.index.Owners() {
		for _, repo := range a.index.Repositories(owner) {
			status, present := a.index.RefStatus(owner, repo, a.branchRef)
			if !present {
				continue
			}
			switch status {
			case buildstatus.Passed:
				ok++
			case buildstatus.Failed:
				failed++
			case buildstatus.NotStarted, buildstatus.Pending:
				active++
			}
		}
	}

	a.gauge.Set("ok", float64(ok))
	a.gauge.Set("failed", float64(failed))
	a.gauge.Set("active", float64(active))
}
