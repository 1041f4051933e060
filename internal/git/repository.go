// MIT License
//
// Copyright (c) 2025 Mike Lane
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package git

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository reads branches of one remote from a local clone
type Repository struct {
	dir    string
	remote string
	runner Runner
	now    func() time.Time
}

// NewRepository creates a Repository for the clone at dir. A nil runner runs git directly.
func NewRepository(dir, remote string, runner Runner) (*Repository, error) {
	if dir == "" {
		return nil, errors.New("repository directory is required")
	}
	if remote == "" {
		remote = "origin"
	}
	if runner == nil {
		runner = ExecRunner{}
	}

	return &Repository{
		dir:    dir,
		remote: remote,
		runner: runner,
		now:    time.Now,
	}, nil
}

// ListBranches returns the remote-tracking branches without the remote prefix.
// Symbolic refs such as origin/HEAD are skipped.
func (r *Repository) ListBranches(ctx context.Context) ([]string, error) {
	out, err := r.runner.Run(ctx, r.dir, "git", "branch", "-r", "--no-color")
	if err != nil {
		return nil, fmt.Errorf("failed to list remote branches: %w", err)
	}

	prefix := r.remote + "/"
	branches := []string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "->") {
			continue
		}
		name, ok := strings.CutPrefix(line, prefix)
		if !ok || name == "" {
			continue
		}
		branches = append(branches, name)
	}

	return branches, nil
}

// HasRecentActivity reports whether the remote branch has a commit newer than window
func (r *Repository) HasRecentActivity(ctx context.Context, branch string, window time.Duration) (bool, error) {
	since := r.now().Add(-window).UTC().Format(time.RFC3339)
	out, err := r.runner.Run(ctx, r.dir, "git", "log", r.remote+"/"+branch,
		"--since="+since, "--format=%H", "-n", "1", "--")
	if err != nil {
		return false, fmt.Errorf("failed to read commits of branch %s: %w", branch, err)
	}

	return strings.TrimSpace(out) != "", nil
}
