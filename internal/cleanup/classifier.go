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

	"golang.org/x/sync/errgroup"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/previewgc/internal/preview"
)

// Reason explains why an environment is a deletion candidate.
type Reason string

const (
	// ReasonMissingBranch means no branch maps to the environment's namespace
	ReasonMissingBranch Reason = "missing-branch"
	// ReasonStaleBranch means the environment's branch has no recent commits
	ReasonStaleBranch Reason = "stale-branch"
	// ReasonInactive means the environment's database shows no recent activity
	ReasonInactive Reason = "inactive"
)

// BranchSource lists branches and their commit activity.
type BranchSource interface {
	ListBranches(ctx context.Context) ([]string, error)
	HasRecentActivity(ctx context.Context, branch string, window time.Duration) (bool, error)
}

// Candidate is an environment selected for teardown together with every matching reason.
type Candidate struct {
	Environment preview.Environment
	Reasons     []Reason
}

// Classification is the outcome of one staleness evaluation.
type Classification struct {
	Branches        []string
	Expected        sets.Set[string]
	StaleBranch     sets.Set[string]
	Missing         []preview.Environment
	StaleByBranch   []preview.Environment
	StaleByActivity []preview.Environment
	Candidates      []Candidate
}

// Classifier decides which environments are garbage.
type Classifier struct {
	backends      []preview.Backend
	branches      BranchSource
	window        time.Duration
	maxConcurrent int
}

// NewClassifier creates a Classifier. maxConcurrent bounds branch and database
// checks; zero means unbounded.
func NewClassifier(backends []preview.Backend, branches BranchSource, window time.Duration, maxConcurrent int) *Classifier {
	return &Classifier{
		backends:      backends,
		branches:      branches,
		window:        window,
		maxConcurrent: maxConcurrent,
	}
}

// ExpectedNamespaces maps every branch to its namespace on every backend.
func ExpectedNamespaces(backends []preview.Backend, branches []string) sets.Set[string] {
	expected := sets.New[string]()
	for _, branch := range branches {
		for _, b := range backends {
			expected.Insert(b.ExpectedNamespace(branch))
		}
	}
	return expected
}

// Classify evaluates all environments. Listing branches or checking their
// activity fails the whole classification.
func (c *Classifier) Classify(ctx context.Context, envs []preview.Environment) (*Classification, error) {
	logger := log.FromContext(ctx)

	logger.Info("Fetching branches")
	branches, err := c.branches.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	logger.Info("Found branches", "count", len(branches))

	logger.Info("Determining which preview environments are stale")
	stale, err := c.staleBranches(ctx, branches)
	if err != nil {
		return nil, err
	}

	inactive := c.inactive(ctx, envs)

	result, err := Evaluate(envs, ExpectedNamespaces(c.backends, branches), ExpectedNamespaces(c.backends, stale), inactive)
	if err != nil {
		return nil, err
	}
	result.Branches = branches
	return result, nil
}

// staleBranches returns the branches without commits inside the window.
func (c *Classifier) staleBranches(ctx context.Context, branches []string) ([]string, error) {
	g, gctx := errgroup.WithContext(ctx)
	if c.maxConcurrent > 0 {
		g.SetLimit(c.maxConcurrent)
	}

	recent := make([]bool, len(branches))
	for i, branch := range branches {
		g.Go(func() error {
			active, err := c.branches.HasRecentActivity(gctx, branch, c.window)
			if err != nil {
				return fmt.Errorf("failed to check commit activity on %s: %w", branch, err)
			}
			recent[i] = active
			log.FromContext(ctx).V(1).Info("Checked commit activity", "branch", branch, "recentCommits", active)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	stale := []string{}
	for i, branch := range branches {
		if !recent[i] {
			stale = append(stale, branch)
		}
	}
	return stale, nil
}

// inactive probes every environment; the probes never fail.
func (c *Classifier) inactive(ctx context.Context, envs []preview.Environment) []bool {
	var g errgroup.Group
	if c.maxConcurrent > 0 {
		g.SetLimit(c.maxConcurrent)
	}

	result := make([]bool, len(envs))
	for i, env := range envs {
		g.Go(func() error {
			result[i] = env.IsInactive(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// Evaluate applies the three staleness signals. inactive[i] belongs to envs[i]
// and both slices must have the same length. Candidates keep inventory order
// and hold each namespace once.
func Evaluate(envs []preview.Environment, expected, staleBranch sets.Set[string], inactive []bool) (*Classification, error) {
	if len(inactive) != len(envs) {
		return nil, fmt.Errorf("got %d inactivity results for %d environments", len(inactive), len(envs))
	}

	result := &Classification{
		Expected:    expected,
		StaleBranch: staleBranch,
	}

	index := map[string]int{}
	add := func(env preview.Environment, reason Reason) {
		if i, ok := index[env.Namespace()]; ok {
			result.Candidates[i].Reasons = append(result.Candidates[i].Reasons, reason)
			return
		}
		index[env.Namespace()] = len(result.Candidates)
		result.Candidates = append(result.Candidates, Candidate{Environment: env, Reasons: []Reason{reason}})
	}

	for i, env := range envs {
		if !expected.Has(env.Namespace()) {
			result.Missing = append(result.Missing, env)
			add(env, ReasonMissingBranch)
		}
		if staleBranch.Has(env.Namespace()) {
			result.StaleByBranch = append(result.StaleByBranch, env)
			add(env, ReasonStaleBranch)
		}
		if inactive[i] {
			result.StaleByActivity = append(result.StaleByActivity, env)
			add(env, ReasonInactive)
		}
	}

	return result, nil
}
