/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package cleanup

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/mikelane/previewgc/internal/preview"
)

const metricsNamespace = "preview_gc"

// Teardown results used as the result label.
const (
	resultDeleted = "deleted"
	resultFailed  = "failed"
	resultDryRun  = "dry-run"
)

var (
	reasons        = []Reason{ReasonMissingBranch, ReasonStaleBranch, ReasonInactive}
	teardownResult = []string{resultDeleted, resultFailed, resultDryRun}
)

// Metrics describes one garbage-collection run on its own registry. The
// last-success gauge is only registered once the run succeeded.
type Metrics struct {
	registry *prometheus.Registry

	environments           *prometheus.GaugeVec
	candidates             *prometheus.GaugeVec
	teardowns              *prometheus.GaugeVec
	reclaimedLoadBalancers prometheus.Gauge
	runDuration            prometheus.Histogram
	lastSuccess            prometheus.Gauge
}

// NewMetrics creates the collectors of a run on a fresh registry. Every
// backend, reason and result starts at zero, so each family is gathered on
// every run.
func NewMetrics(backends []preview.Backend) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		environments: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "environments",
				Help:      "Preview environments found on each backend",
			},
			[]string{"backend"},
		),
		candidates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "candidates",
				Help:      "Preview environments selected for deletion by reason",
			},
			[]string{"reason"},
		),
		teardowns: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "teardowns",
				Help:      "Preview environment teardowns by backend and result",
			},
			[]string{"backend", "result"},
		),
		reclaimedLoadBalancers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "reclaimed_load_balancers",
				Help:      "Orphaned load balancers deleted",
			},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of a garbage-collection run",
				Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
			},
		),
		lastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last run that completed without a fatal error",
			},
		),
	}

	for _, b := range backends {
		m.environments.WithLabelValues(b.Name)
		for _, result := range teardownResult {
			m.teardowns.WithLabelValues(b.Name, result)
		}
	}
	for _, reason := range reasons {
		m.candidates.WithLabelValues(string(reason))
	}

	m.registry.MustRegister(
		m.environments,
		m.candidates,
		m.teardowns,
		m.reclaimedLoadBalancers,
		m.runDuration,
	)
	return m
}

// Registry returns the registry holding the run's collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeInventory(envs []preview.Environment) {
	for _, env := range envs {
		m.environments.WithLabelValues(env.Backend().Name).Inc()
	}
}

func (m *Metrics) observeClassification(c *Classification) {
	for _, candidate := range c.Candidates {
		for _, reason := range candidate.Reasons {
			m.candidates.WithLabelValues(string(reason)).Inc()
		}
	}
}

func (m *Metrics) observeTeardown(r TeardownReport) {
	for _, o := range r.Outcomes {
		result := resultDeleted
		switch {
		case o.DryRun:
			result = resultDryRun
		case o.Err != nil:
			result = resultFailed
		}
		m.teardowns.WithLabelValues(o.Backend, result).Inc()
	}
}

func (m *Metrics) observeReclaim(reclaimed int) {
	m.reclaimedLoadBalancers.Add(float64(reclaimed))
}

func (m *Metrics) observeRun(start, end time.Time, success bool) {
	m.runDuration.Observe(end.Sub(start).Seconds())
	if success {
		m.lastSuccess.Set(float64(end.Unix()))
		m.registry.MustRegister(m.lastSuccess)
	}
}

// Push sends the run's metrics to a Pushgateway. Metrics of the job that this
// run did not produce keep their previous values.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).AddContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics to %s: %w", url, err)
	}
	return nil
}
