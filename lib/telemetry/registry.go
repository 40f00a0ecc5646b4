// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Registry holds the gauges and pre-collect hooks for one process.
// Construct with NewRegistry and pass explicitly — components never
// reach for a package-level registry.
type Registry struct {
	mu         sync.Mutex
	gauges     []*Gauge
	names      map[string]bool
	preCollect []func()
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]bool)}
}

// NewGauge creates and registers a gauge. The label name may be empty
// for an unlabeled gauge. Panics on a duplicate metric name — that is
// a wiring error, not a runtime condition.
func (r *Registry) NewGauge(name, help, label string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.names[name] {
		panic(fmt.Sprintf("telemetry: duplicate gauge %q", name))
	}
	r.names[name] = true

	gauge := &Gauge{
		name:   name,
		help:   help,
		label:  label,
		values: make(map[string]float64),
	}
	r.gauges = append(r.gauges, gauge)
	return gauge
}

// RegisterPreCollect registers a hook run immediately before each
// scrape. Hooks run in registration order and must be cheap relative
// to the scrape interval — they execute on the scrape request path.
func (r *Registry) RegisterPreCollect(hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.preCollect = append(r.preCollect, hook)
}

// Collect runs the pre-collect hooks and renders every gauge in the
// plain-text exposition format.
func (r *Registry) Collect() string {
	r.mu.Lock()
	hooks := append(([]func())(nil), r.preCollect...)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}

	r.mu.Lock()
	gauges := append([]*Gauge(nil), r.gauges...)
	r.mu.Unlock()

	var builder strings.Builder
	for _, gauge := range gauges {
		gauge.render(&builder)
	}
	return builder.String()
}

// Handler returns the scrape endpoint handler.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, r.Collect())
	})
}

// Gauge is a metric whose value is set to an arbitrary number at each
// observation. A gauge with a label name holds one value per label
// value; an unlabeled gauge holds a single value.
type Gauge struct {
	name  string
	help  string
	label string

	mu     sync.Mutex
	values map[string]float64
}

// Set records the value for the given label value. For unlabeled
// gauges pass "".
func (g *Gauge) Set(labelValue string, value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.values[labelValue] = value
}

// Get returns the current value for the given label value. Absent
// values read as zero.
func (g *Gauge) Get(labelValue string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.values[labelValue]
}

// render appends the gauge's exposition lines to builder, label
// values sorted for stable output.
func (g *Gauge) render(builder *strings.Builder) {
	g.mu.Lock()
	defer g.mu.Unlock()

	fmt.Fprintf(builder, "# HELP %s %s\n", g.name, g.help)
	fmt.Fprintf(builder, "# TYPE %s gauge\n", g.name)

	labelValues := make([]string, 0, len(g.values))
	for labelValue := range g.values {
		labelValues = append(labelValues, labelValue)
	}
	sort.Strings(labelValues)

	for _, labelValue := range labelValues {
		value := strconv.FormatFloat(g.values[labelValue], 'g', -1, 64)
		if g.label == "" {
			fmt.Fprintf(builder, "%s %s\n", g.name, value)
		} else {
			fmt.Fprintf(builder, "%s{%s=%q} %s\n", g.name, g.label, labelValue, value)
		}
	}
}
