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
	"errors"
	"strings"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

var _ = Describe("Orchestrator", func() {
	var (
		ctx   context.Context
		calls *callLog
		lines []string
		mu    sync.Mutex
	)

	BeforeEach(func() {
		calls = &callLog{}
		lines = nil
		ctx = log.IntoContext(context.Background(), captureLogger(&lines, &mu))
	})

	candidatesOf := func(envs ...*fakeEnv) []Candidate {
		out := make([]Candidate, 0, len(envs))
		for _, e := range envs {
			out = append(out, Candidate{Environment: e, Reasons: []Reason{ReasonMissingBranch}})
		}
		return out
	}

	logLinesContaining := func(msg string) []string {
		mu.Lock()
		defer mu.Unlock()
		var out []string
		for _, l := range lines {
			if strings.Contains(l, msg) {
				out = append(out, l)
			}
		}
		return out
	}

	It("deletes the certificate, then DNS records, then the environment", func() {
		a := newEnv(coreDevBackend, "feature-a", calls)
		b := newEnv(harvesterBackend, "feature-b", calls)

		report := NewOrchestrator(certsFor(calls, a, b), false, 2).Teardown(ctx, candidatesOf(a, b))

		Expect(report.Err()).NotTo(HaveOccurred())
		Expect(report.Failed()).To(BeEmpty())
		Expect(calls.forNamespace("staging-feature-a")).To(Equal([]string{
			"cert staging-feature-a", "dns staging-feature-a", "delete staging-feature-a",
		}))
		Expect(calls.forNamespace("preview-feature-b")).To(Equal([]string{
			"cert preview-feature-b", "dns preview-feature-b", "delete preview-feature-b",
		}))
		Expect(report.Outcomes).To(HaveLen(2))
		Expect(report.Outcomes[0].Namespace).To(Equal("staging-feature-a"))
		Expect(report.Outcomes[1].Backend).To(Equal("harvester"))
	})

	It("keeps tearing down other environments when a certificate deletion fails", func() {
		a := newEnv(coreDevBackend, "feature-a", calls)
		b := newEnv(coreDevBackend, "feature-b", calls)
		certs := certsFor(calls, a, b)
		certs.failFor["feature-a"] = errors.New("forbidden")

		report := NewOrchestrator(certs, false, 0).Teardown(ctx, candidatesOf(a, b))

		Expect(calls.forNamespace("staging-feature-a")).To(Equal([]string{"cert staging-feature-a"}))
		Expect(calls.forNamespace("staging-feature-b")).To(Equal([]string{
			"cert staging-feature-b", "dns staging-feature-b", "delete staging-feature-b",
		}))

		failed := report.Failed()
		Expect(failed).To(HaveLen(1))
		Expect(failed[0].Namespace).To(Equal("staging-feature-a"))
		Expect(failed[0].FailedStep).To(Equal(StepCertificate))
		Expect(report.Err()).To(MatchError(ContainSubstring("staging-feature-a: certificate step failed: forbidden")))
	})

	It("does not delete the namespace when DNS cleanup fails", func() {
		a := newEnv(harvesterBackend, "feature-a", calls)
		a.dnsErr = errors.New("zone not found")

		report := NewOrchestrator(certsFor(calls, a), false, 1).Teardown(ctx, candidatesOf(a))

		Expect(calls.forNamespace("preview-feature-a")).To(Equal([]string{"cert preview-feature-a", "dns preview-feature-a"}))
		Expect(report.Outcomes[0].FailedStep).To(Equal(StepDNS))
		Expect(errors.Unwrap(report.Outcomes[0].Err)).To(MatchError("zone not found"))
	})

	It("reports a failed delete step", func() {
		a := newEnv(coreDevBackend, "feature-a", calls)
		a.deleteErr = errors.New("conflict")

		report := NewOrchestrator(certsFor(calls, a), false, 1).Teardown(ctx, candidatesOf(a))

		Expect(report.Outcomes[0].FailedStep).To(Equal(StepDelete))
		Expect(calls.forNamespace("staging-feature-a")).To(HaveLen(3))
	})

	It("only logs in dry-run mode", func() {
		a := newEnv(coreDevBackend, "feature-a", calls)
		b := newEnv(harvesterBackend, "feature-b", calls)

		report := NewOrchestrator(certsFor(calls, a, b), true, 0).Teardown(ctx, candidatesOf(a, b))

		Expect(calls.snapshot()).To(BeEmpty())
		Expect(report.Err()).NotTo(HaveOccurred())
		for _, o := range report.Outcomes {
			Expect(o.DryRun).To(BeTrue())
		}
		dry := logLinesContaining("Would have deleted preview environment")
		Expect(dry).To(HaveLen(2))
		Expect(dry[0]).To(ContainSubstring(`"namespace"="staging-feature-a"`))
		Expect(dry[1]).To(ContainSubstring(`"namespace"="preview-feature-b"`))
	})

	It("handles an empty candidate list", func() {
		report := NewOrchestrator(certsFor(calls), false, 0).Teardown(ctx, nil)
		Expect(report.Outcomes).To(BeEmpty())
		Expect(report.Err()).NotTo(HaveOccurred())
	})

	It("aggregates only the failed outcomes of a TeardownReport", func() {
		report := TeardownReport{Outcomes: []Outcome{
			{Namespace: "staging-feature-a"},
			{Namespace: "preview-feature-b", FailedStep: StepDelete, Err: errors.New("conflict")},
		}}
		Expect(report.Failed()).To(HaveLen(1))
		Expect(report.Failed()[0].Namespace).To(Equal("preview-feature-b"))
		Expect(report.Err()).To(MatchError(ContainSubstring("conflict")))
	})
})
