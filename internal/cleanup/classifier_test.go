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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/mikelane/previewgc/internal/preview"
)

var _ = Describe("Classifier", func() {
	var (
		ctx context.Context
		log *callLog
	)

	BeforeEach(func() {
		ctx = context.Background()
		log = &callLog{}
	})

	classify := func(branches *fakeBranches, envs ...preview.Environment) *Classification {
		c := NewClassifier(testBackends, branches, 5*24*time.Hour, 4)
		result, err := c.Classify(ctx, envs)
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	Describe("Scenario: branches main and feature-a", func() {
		It("selects the environments without a branch and keeps staging-feature-a", func() {
			active := newEnv(coreDevBackend, "feature-a", log)
			noBranch := newEnv(coreDevBackend, "feature-b", log)
			harvester := newEnv(harvesterBackend, "feature-c", log)

			result := classify(allRecent("main", "feature-a"), active, noBranch, harvester)

			Expect(candidateNamespaces(result.Candidates)).To(Equal([]string{"staging-feature-b", "preview-feature-c"}))
			for _, c := range result.Candidates {
				Expect(c.Reasons).To(Equal([]Reason{ReasonMissingBranch}))
			}
			Expect(result.StaleByBranch).To(BeEmpty())
			Expect(result.StaleByActivity).To(BeEmpty())
			Expect(result.Branches).To(Equal([]string{"main", "feature-a"}))
		})
	})

	Describe("Scenario: branch without recent commits", func() {
		It("selects the environments of the stale branch on both backends", func() {
			branches := &fakeBranches{
				branches: []string{"feature-a", "feature-b"},
				recent:   map[string]bool{"feature-b": true},
			}
			result := classify(branches,
				newEnv(coreDevBackend, "feature-a", log),
				newEnv(harvesterBackend, "feature-a", log),
				newEnv(harvesterBackend, "feature-b", log),
			)

			Expect(candidateNamespaces(result.Candidates)).To(Equal([]string{"staging-feature-a", "preview-feature-a"}))
			Expect(result.Missing).To(BeEmpty())
			Expect(result.StaleBranch.UnsortedList()).To(ConsistOf("staging-feature-a", "preview-feature-a"))
		})
	})

	Describe("Scenario: database inactivity", func() {
		It("selects inactive environments even when their branch is active", func() {
			idle := newEnv(coreDevBackend, "feature-a", log)
			idle.inactive = true

			result := classify(allRecent("feature-a"), idle)

			Expect(result.Candidates).To(HaveLen(1))
			Expect(result.Candidates[0].Reasons).To(Equal([]Reason{ReasonInactive}))
		})
	})

	Describe("Scenario: overlapping signals", func() {
		It("lists each environment once with every matching reason", func() {
			gone := newEnv(coreDevBackend, "feature-x", log)
			gone.inactive = true
			stale := newEnv(coreDevBackend, "feature-a", log)
			stale.inactive = true
			branches := &fakeBranches{branches: []string{"feature-a"}, recent: map[string]bool{}}

			result := classify(branches, gone, stale)

			Expect(result.Candidates).To(HaveLen(2))
			Expect(result.Candidates[0].Reasons).To(Equal([]Reason{ReasonMissingBranch, ReasonInactive}))
			Expect(result.Candidates[1].Reasons).To(Equal([]Reason{ReasonStaleBranch, ReasonInactive}))

			total := len(result.Missing) + len(result.StaleByBranch) + len(result.StaleByActivity)
			Expect(total).To(Equal(4))
			Expect(len(result.Candidates)).To(BeNumerically("<", total))
		})

		It("reaches the sum of the subsets only when they are disjoint", func() {
			missing := newEnv(coreDevBackend, "gone", log)
			stale := newEnv(coreDevBackend, "feature-a", log)
			idle := newEnv(harvesterBackend, "feature-b", log)
			idle.inactive = true
			branches := &fakeBranches{
				branches: []string{"feature-a", "feature-b"},
				recent:   map[string]bool{"feature-b": true},
			}

			result := classify(branches, missing, stale, idle)

			total := len(result.Missing) + len(result.StaleByBranch) + len(result.StaleByActivity)
			Expect(result.Candidates).To(HaveLen(total))
			Expect(total).To(Equal(3))
		})
	})

	Describe("Property: missing iff no branch maps to the namespace", func() {
		DescribeTable("for a branch set",
			func(branches []string) {
				envs := []preview.Environment{
					newEnv(coreDevBackend, "feature-a", log),
					newEnv(harvesterBackend, "feature-a", log),
					newEnv(coreDevBackend, preview.NameFromBranch("mads/a-rather-long-branch-name"), log),
					newEnv(harvesterBackend, "mads-fix-login", log),
					newEnv(coreDevBackend, "orphan", log),
				}

				result := classify(allRecent(branches...), envs...)

				expected := sets.New[string]()
				for _, b := range branches {
					expected.Insert("staging-"+preview.NameFromBranch(b), "preview-"+preview.NameFromBranch(b))
				}
				missing := sets.New(namespaces(result.Missing)...)
				for _, env := range envs {
					Expect(missing.Has(env.Namespace())).To(Equal(!expected.Has(env.Namespace())), env.Namespace())
				}
			},
			Entry("no branches", []string{}),
			Entry("one plain branch", []string{"feature-a"}),
			Entry("branch refs and mixed case", []string{"refs/heads/Mads/Fix_Login"}),
			Entry("hashed long name", []string{"mads/a-rather-long-branch-name", "feature-a"}),
		)
	})

	Describe("Scenario: branch source failures", func() {
		It("fails when branches cannot be listed", func() {
			c := NewClassifier(testBackends, &fakeBranches{listErr: errors.New("rate limited")}, time.Hour, 0)
			_, err := c.Classify(ctx, []preview.Environment{newEnv(coreDevBackend, "feature-a", log)})
			Expect(err).To(MatchError(ContainSubstring("rate limited")))
		})

		It("fails when commit activity cannot be read", func() {
			branches := &fakeBranches{branches: []string{"feature-a"}, activityErr: errors.New("bad revision")}
			c := NewClassifier(testBackends, branches, time.Hour, 0)
			_, err := c.Classify(ctx, []preview.Environment{newEnv(coreDevBackend, "feature-a", log)})
			Expect(err).To(MatchError(ContainSubstring("bad revision")))
		})
	})

	Describe("Scenario: nothing to collect", func() {
		It("returns an empty candidate set", func() {
			result := classify(allRecent("feature-a"), newEnv(coreDevBackend, "feature-a", log))
			Expect(result.Candidates).To(BeEmpty())
		})
	})

	Describe("Evaluate", func() {
		It("rejects inactivity results that do not match the environments", func() {
			envs := []preview.Environment{newEnv(coreDevBackend, "feature-a", log)}
			_, err := Evaluate(envs, sets.New[string](), sets.New[string](), []bool{})
			Expect(err).To(MatchError(ContainSubstring("got 0 inactivity results for 1 environments")))
		})

		It("pairs each inactivity result with its environment", func() {
			envs := []preview.Environment{newEnv(coreDevBackend, "feature-a", log), newEnv(coreDevBackend, "feature-b", log)}
			expected := sets.New("staging-feature-a", "staging-feature-b")
			result, err := Evaluate(envs, expected, sets.New[string](), []bool{false, true})
			Expect(err).NotTo(HaveOccurred())
			Expect(candidateNamespaces(result.Candidates)).To(Equal([]string{"staging-feature-b"}))
		})
	})

	It("never mutates environments while classifying", func() {
		classify(&fakeBranches{}, newEnv(coreDevBackend, "feature-a", log), newEnv(harvesterBackend, "b", log))
		Expect(log.snapshot()).To(BeEmpty())
	})
})
