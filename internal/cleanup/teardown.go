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

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Step is one stage of an environment teardown.
type Step string

const (
	StepCertificate Step = "certificate"
	StepDNS         Step = "dns"
	StepDelete      Step = "delete"
)

// CertificateDeleter removes the TLS certificate issued for an environment.
type CertificateDeleter interface {
	DeleteCertificate(ctx context.Context, name string) error
}

// Outcome is the result of tearing down one candidate.
type Outcome struct {
	Namespace  string
	Name       string
	Backend    string
	DryRun     bool
	FailedStep Step
	Err        error
}

// TeardownReport collects the outcome of every candidate in candidate order.
type TeardownReport struct {
	Outcomes []Outcome
}

// Failed returns the outcomes that did not complete.
func (r TeardownReport) Failed() []Outcome {
	var failed []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		}
	}
	return failed
}

// Err combines all teardown errors, or returns nil.
func (r TeardownReport) Err() error {
	var err error
	for _, o := range r.Outcomes {
		err = multierr.Append(err, o.Err)
	}
	return err
}

// Orchestrator tears down candidates concurrently.
type Orchestrator struct {
	certs         CertificateDeleter
	dryRun        bool
	maxConcurrent int
}

// NewOrchestrator creates an Orchestrator. maxConcurrent of zero means unbounded.
func NewOrchestrator(certs CertificateDeleter, dryRun bool, maxConcurrent int) *Orchestrator {
	return &Orchestrator{
		certs:         certs,
		dryRun:        dryRun,
		maxConcurrent: maxConcurrent,
	}
}

// Teardown removes every candidate. Environments are processed concurrently
// and a failure in one never stops another. In dry-run mode nothing is mutated.
func (o *Orchestrator) Teardown(ctx context.Context, candidates []Candidate) TeardownReport {
	logger := log.FromContext(ctx)
	report := TeardownReport{Outcomes: make([]Outcome, len(candidates))}

	if o.dryRun {
		for i, c := range candidates {
			env := c.Environment
			logger.Info("Would have deleted preview environment",
				"name", env.Name(), "namespace", env.Namespace(), "backend", env.Backend().Name, "reasons", c.Reasons)
			report.Outcomes[i] = Outcome{
				Namespace: env.Namespace(),
				Name:      env.Name(),
				Backend:   env.Backend().Name,
				DryRun:    true,
			}
		}
		return report
	}

	var g errgroup.Group
	if o.maxConcurrent > 0 {
		g.SetLimit(o.maxConcurrent)
	}
	for i, c := range candidates {
		g.Go(func() error {
			report.Outcomes[i] = o.teardown(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	return report
}

// teardown runs the certificate, DNS and delete steps in order, stopping at the first failure.
func (o *Orchestrator) teardown(ctx context.Context, c Candidate) Outcome {
	env := c.Environment
	logger := log.FromContext(ctx).WithValues("name", env.Name(), "namespace", env.Namespace(), "backend", env.Backend().Name)
	ctx = log.IntoContext(ctx, logger)

	outcome := Outcome{
		Namespace: env.Namespace(),
		Name:      env.Name(),
		Backend:   env.Backend().Name,
	}

	logger.Info("Starting deletion of all resources related to preview environment")

	steps := []struct {
		step Step
		run  func(context.Context) error
	}{
		{StepCertificate, func(ctx context.Context) error { return o.certs.DeleteCertificate(ctx, env.Name()) }},
		{StepDNS, env.RemoveDNSRecords},
		{StepDelete, env.Delete},
	}
	for _, s := range steps {
		if err := s.run(ctx); err != nil {
			logger.Error(err, "Failed to delete preview environment", "step", s.step)
			outcome.FailedStep = s.step
			outcome.Err = fmt.Errorf("%s: %s step failed: %w", env.Namespace(), s.step, err)
			return outcome
		}
	}

	logger.Info("Deleted preview environment")
	return outcome
}
