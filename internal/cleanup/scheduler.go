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

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/previewgc/internal/preview"
)

// Inventory enumerates the live preview environments.
type Inventory interface {
	ListAll(ctx context.Context) ([]preview.Environment, error)
}

// LoadBalancerReclaimer deletes load balancers whose environment is gone and
// returns their names.
type LoadBalancerReclaimer interface {
	Reclaim(ctx context.Context) ([]string, error)
}

// RunReport summarizes one garbage-collection pass.
type RunReport struct {
	Environments   []preview.Environment
	Classification *Classification
	Teardown       TeardownReport
	Reclaimed      []string
	ReclaimErr     error
	Metrics        *Metrics
}

// Scheduler runs garbage-collection passes once or periodically.
type Scheduler struct {
	inventory    Inventory
	classifier   *Classifier
	orchestrator *Orchestrator
	reclaimer    LoadBalancerReclaimer
	interval     time.Duration

	pushgateway string
	job         string
	now         func() time.Time
}

// NewScheduler creates a Scheduler. An interval of zero makes Start run a single pass.
func NewScheduler(inventory Inventory, classifier *Classifier, orchestrator *Orchestrator, interval time.Duration) *Scheduler {
	return &Scheduler{
		inventory:    inventory,
		classifier:   classifier,
		orchestrator: orchestrator,
		interval:     interval,
		now:          time.Now,
	}
}

// WithReclaimer runs r after every teardown.
func (s *Scheduler) WithReclaimer(r LoadBalancerReclaimer) *Scheduler {
	s.reclaimer = r
	return s
}

// WithPushgateway pushes run metrics to url under job.
func (s *Scheduler) WithPushgateway(url, job string) *Scheduler {
	s.pushgateway = url
	s.job = job
	return s
}

// Start runs a pass immediately and then on every tick until ctx is done.
// With a zero interval it returns the result of the single pass.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := log.FromContext(ctx)

	if s.interval <= 0 {
		_, err := s.RunOnce(ctx)
		return err
	}

	if _, err := s.RunOnce(ctx); err != nil {
		logger.Error(err, "garbage collection pass failed")
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				logger.Error(err, "garbage collection pass failed")
				// Continue to next tick - don't stop scheduler on transient errors
			}
		}
	}
}

// RunOnce performs one pass: inventory, classification, teardown and load
// balancer reclamation. Only inventory and classification errors are returned;
// teardown and reclaimer failures are recorded in the report.
func (s *Scheduler) RunOnce(ctx context.Context) (*RunReport, error) {
	start := s.now()
	metrics := NewMetrics(s.classifier.backends)
	report := &RunReport{Metrics: metrics}

	err := s.run(ctx, report)

	metrics.observeRun(start, s.now(), err == nil)
	if s.pushgateway != "" {
		if pushErr := metrics.Push(ctx, s.pushgateway, s.job); pushErr != nil {
			log.FromContext(ctx).Error(pushErr, "Failed to push metrics")
		}
	}

	return report, err
}

func (s *Scheduler) run(ctx context.Context, report *RunReport) error {
	logger := log.FromContext(ctx)

	logger.Info("Fetching preview environments")
	envs, err := s.inventory.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch preview environments: %w", err)
	}
	for _, env := range envs {
		logger.Info("Found preview environment", "name", env.Name(), "namespace", env.Namespace())
	}
	logger.Info("Fetched preview environments", "count", len(envs))
	report.Environments = envs
	report.Metrics.observeInventory(envs)

	classification, err := s.classifier.Classify(ctx, envs)
	if err != nil {
		return fmt.Errorf("failed to determine stale preview environments: %w", err)
	}
	report.Classification = classification
	report.Metrics.observeClassification(classification)

	if len(classification.Candidates) == 0 {
		logger.Info("No stale preview environments.")
	} else {
		logger.Info("Found stale preview environments", "count", len(classification.Candidates),
			"missingBranch", len(classification.Missing),
			"staleBranch", len(classification.StaleByBranch),
			"inactive", len(classification.StaleByActivity))
		for _, c := range classification.Candidates {
			logger.Info("Stale preview environment", "name", c.Environment.Name(), "namespace", c.Environment.Namespace(), "reasons", c.Reasons)
		}

		logger.Info("Deleting stale preview environments")
		report.Teardown = s.orchestrator.Teardown(ctx, classification.Candidates)
		report.Metrics.observeTeardown(report.Teardown)
		if failed := report.Teardown.Failed(); len(failed) > 0 {
			logger.Error(report.Teardown.Err(), "Some preview environments could not be deleted", "failed", len(failed))
		}
	}

	if s.reclaimer != nil {
		logger.Info("Reclaiming unused load balancers")
		report.Reclaimed, report.ReclaimErr = s.reclaimer.Reclaim(ctx)
		report.Metrics.observeReclaim(len(report.Reclaimed))
		if report.ReclaimErr != nil {
			logger.Error(report.ReclaimErr, "Failed to reclaim load balancers")
		}
	}

	return nil
}
