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
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/mikelane/previewgc/internal/preview"
)

// gaugeValue returns the value of the gauge name with the given labels, and
// whether it was gathered at all.
func gaugeValue(reg *prometheus.Registry, name string, labels map[string]string) (float64, bool) {
	families, err := reg.Gather()
	Expect(err).NotTo(HaveOccurred())
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetGauge().GetValue(), true
			}
		}
	}
	return 0, false
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	if len(m.GetLabel()) != len(labels) {
		return false
	}
	for _, lp := range m.GetLabel() {
		if labels[lp.GetName()] != lp.GetValue() {
			return false
		}
	}
	return true
}

var _ = Describe("Scheduler", func() {
	var (
		ctx   context.Context
		calls *callLog
	)

	BeforeEach(func() {
		ctx = context.Background()
		calls = &callLog{}
	})

	newScheduler := func(inv Inventory, branches BranchSource, certs CertificateDeleter, dryRun bool) *Scheduler {
		classifier := NewClassifier(testBackends, branches, 24*time.Hour, 2)
		return NewScheduler(inv, classifier, NewOrchestrator(certs, dryRun, 2), 0)
	}

	Describe("RunOnce", func() {
		It("tears down candidates and reclaims load balancers", func() {
			keep := newEnv(coreDevBackend, "feature-a", calls)
			gone := newEnv(harvesterBackend, "feature-b", calls)
			inv := &fakeInventory{envs: []preview.Environment{keep, gone}}
			reclaimer := &fakeReclaimer{names: []string{"lb-feature-b"}}

			s := newScheduler(inv, allRecent("main", "feature-a"), certsFor(calls, keep, gone), false).WithReclaimer(reclaimer)
			report, err := s.RunOnce(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Environments).To(HaveLen(2))
			Expect(candidateNamespaces(report.Classification.Candidates)).To(Equal([]string{"preview-feature-b"}))
			Expect(calls.forNamespace("staging-feature-a")).To(BeEmpty())
			Expect(calls.forNamespace("preview-feature-b")).To(HaveLen(3))
			Expect(report.Reclaimed).To(Equal([]string{"lb-feature-b"}))
			Expect(reclaimer.called).To(Equal(1))

			reg := report.Metrics.Registry()
			v, ok := gaugeValue(reg, "preview_gc_environments", map[string]string{"backend": "coredev"})
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal(1.0))
			v, _ = gaugeValue(reg, "preview_gc_candidates", map[string]string{"reason": "missing-branch"})
			Expect(v).To(Equal(1.0))
			v, _ = gaugeValue(reg, "preview_gc_teardowns", map[string]string{"backend": "harvester", "result": "deleted"})
			Expect(v).To(Equal(1.0))
			v, _ = gaugeValue(reg, "preview_gc_reclaimed_load_balancers", map[string]string{})
			Expect(v).To(Equal(1.0))
			_, ok = gaugeValue(reg, "preview_gc_last_success_timestamp_seconds", map[string]string{})
			Expect(ok).To(BeTrue())
		})

		It("still reclaims load balancers when nothing is stale", func() {
			env := newEnv(coreDevBackend, "feature-a", calls)
			reclaimer := &fakeReclaimer{}
			s := newScheduler(&fakeInventory{envs: []preview.Environment{env}}, allRecent("feature-a"), certsFor(calls, env), false).
				WithReclaimer(reclaimer)

			report, err := s.RunOnce(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Teardown.Outcomes).To(BeEmpty())
			Expect(reclaimer.called).To(Equal(1))
			Expect(calls.snapshot()).To(BeEmpty())
		})

		It("reports every metric family at zero on a clean run", func() {
			env := newEnv(coreDevBackend, "feature-a", calls)
			s := newScheduler(&fakeInventory{envs: []preview.Environment{env}}, allRecent("feature-a"), certsFor(calls, env), false)

			report, err := s.RunOnce(ctx)
			Expect(err).NotTo(HaveOccurred())
			reg := report.Metrics.Registry()

			for _, reason := range []string{"missing-branch", "stale-branch", "inactive"} {
				v, ok := gaugeValue(reg, "preview_gc_candidates", map[string]string{"reason": reason})
				Expect(ok).To(BeTrue(), reason)
				Expect(v).To(BeZero(), reason)
			}
			for _, backend := range []string{"coredev", "harvester"} {
				for _, result := range []string{"deleted", "failed", "dry-run"} {
					v, ok := gaugeValue(reg, "preview_gc_teardowns", map[string]string{"backend": backend, "result": result})
					Expect(ok).To(BeTrue(), backend+"/"+result)
					Expect(v).To(BeZero(), backend+"/"+result)
				}
			}
			v, ok := gaugeValue(reg, "preview_gc_environments", map[string]string{"backend": "harvester"})
			Expect(ok).To(BeTrue())
			Expect(v).To(BeZero())
		})

		It("fails the run when the inventory cannot be listed", func() {
			reclaimer := &fakeReclaimer{}
			s := newScheduler(&fakeInventory{err: errors.New("unauthorized")}, allRecent(), certsFor(calls), false).
				WithReclaimer(reclaimer)

			report, err := s.RunOnce(ctx)

			Expect(err).To(MatchError(ContainSubstring("failed to fetch preview environments: unauthorized")))
			Expect(reclaimer.called).To(BeZero())
			_, ok := gaugeValue(report.Metrics.Registry(), "preview_gc_last_success_timestamp_seconds", map[string]string{})
			Expect(ok).To(BeFalse())
		})

		It("fails the run when branches cannot be listed", func() {
			env := newEnv(coreDevBackend, "feature-a", calls)
			s := newScheduler(&fakeInventory{envs: []preview.Environment{env}}, &fakeBranches{listErr: errors.New("rate limited")}, certsFor(calls, env), false)

			_, err := s.RunOnce(ctx)

			Expect(err).To(MatchError(ContainSubstring("rate limited")))
			Expect(calls.snapshot()).To(BeEmpty())
		})

		It("does not fail the run when a teardown fails", func() {
			a := newEnv(coreDevBackend, "feature-a", calls)
			a.deleteErr = errors.New("conflict")
			b := newEnv(coreDevBackend, "feature-b", calls)
			s := newScheduler(&fakeInventory{envs: []preview.Environment{a, b}}, allRecent(), certsFor(calls, a, b), false)

			report, err := s.RunOnce(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Teardown.Failed()).To(HaveLen(1))
			Expect(calls.forNamespace("staging-feature-b")).To(HaveLen(3))
			v, _ := gaugeValue(report.Metrics.Registry(), "preview_gc_teardowns", map[string]string{"backend": "coredev", "result": "failed"})
			Expect(v).To(Equal(1.0))
		})

		It("records a reclaimer failure without failing the run", func() {
			reclaimer := &fakeReclaimer{names: []string{"lb-a"}, err: errors.New("forbidden")}
			s := newScheduler(&fakeInventory{}, allRecent(), certsFor(calls), false).WithReclaimer(reclaimer)

			report, err := s.RunOnce(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(report.ReclaimErr).To(MatchError("forbidden"))
			Expect(report.Reclaimed).To(Equal([]string{"lb-a"}))
		})

		It("does not mutate anything in dry-run mode", func() {
			env := newEnv(harvesterBackend, "gone", calls)
			s := newScheduler(&fakeInventory{envs: []preview.Environment{env}}, allRecent("main"), certsFor(calls, env), true)

			report, err := s.RunOnce(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(calls.snapshot()).To(BeEmpty())
			Expect(report.Teardown.Outcomes).To(HaveLen(1))
			v, _ := gaugeValue(report.Metrics.Registry(), "preview_gc_teardowns", map[string]string{"backend": "harvester", "result": "dry-run"})
			Expect(v).To(Equal(1.0))
		})

		It("pushes the run metrics to the Pushgateway", func() {
			var (
				mu     sync.Mutex
				method string
				path   string
			)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				defer mu.Unlock()
				method = r.Method
				path = r.URL.Path
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			s := newScheduler(&fakeInventory{}, allRecent(), certsFor(calls), false).WithPushgateway(server.URL, "preview-gc")
			_, err := s.RunOnce(ctx)
			Expect(err).NotTo(HaveOccurred())

			mu.Lock()
			defer mu.Unlock()
			Expect(method).To(Equal(http.MethodPost))
			Expect(path).To(Equal("/metrics/job/preview-gc"))
		})

		It("ignores an unreachable Pushgateway", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			}))
			defer server.Close()

			s := newScheduler(&fakeInventory{}, allRecent(), certsFor(calls), false).WithPushgateway(server.URL, "preview-gc")
			_, err := s.RunOnce(ctx)
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Start", func() {
		It("runs a single pass without an interval", func() {
			inv := &fakeInventory{err: errors.New("boom")}
			s := newScheduler(inv, allRecent(), certsFor(calls), false)

			Expect(s.Start(ctx)).To(MatchError(ContainSubstring("boom")))
			Expect(inv.callCount()).To(Equal(1))
		})

		It("keeps running passes until the context is cancelled", func() {
			inv := &fakeInventory{err: errors.New("transient")}
			classifier := NewClassifier(testBackends, allRecent(), time.Hour, 1)
			s := NewScheduler(inv, classifier, NewOrchestrator(certsFor(calls), false, 1), 10*time.Millisecond)

			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan error, 1)
			go func() { done <- s.Start(runCtx) }()

			Eventually(inv.callCount).Should(BeNumerically(">=", 3))
			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})
	})
})
