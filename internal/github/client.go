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

package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v66/github"
)

// githubClient implements the Client interface using go-github
type githubClient struct {
	client      *github.Client
	owner       string
	repo        string
	retryConfig *RetryConfig
	now         func() time.Time
}

// NewClient creates a new GitHub client for owner/repo authenticated with token
func NewClient(owner, repo, token string, maxRetries int) (Client, error) {
	if owner == "" || repo == "" {
		return nil, errors.New("owner and repo are required")
	}
	if maxRetries < 0 {
		return nil, fmt.Errorf("maxRetries must not be negative, got %d", maxRetries)
	}

	var httpClient *http.Client
	if token != "" {
		httpClient = github.NewClient(nil).Client()
		httpClient.Transport = &github.BasicAuthTransport{
			Username: "token",
			Password: token,
		}
	}

	return &githubClient{
		client:      github.NewClient(httpClient),
		owner:       owner,
		repo:        repo,
		retryConfig: DefaultRetryConfig(maxRetries),
		now:         time.Now,
	}, nil
}

// ListBranches retrieves the names of all branches, following pagination
func (c *githubClient) ListBranches(ctx context.Context) ([]string, error) {
	names := []string{}
	opts := &github.BranchListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		var branches []*github.Branch
		var resp *github.Response
		var err error

		err = c.executeWithRetry(ctx, func() error {
			branches, resp, err = c.client.Repositories.ListBranches(ctx, c.owner, c.repo, opts)
			return err
		})

		if err != nil {
			return nil, fmt.Errorf("failed to list branches of %s/%s: %w", c.owner, c.repo, err)
		}

		for _, b := range branches {
			if b.GetName() != "" {
				names = append(names, b.GetName())
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return names, nil
}

// LatestCommit retrieves the newest commit reachable from branch
func (c *githubClient) LatestCommit(ctx context.Context, branch string) (*Branch, error) {
	var commits []*github.RepositoryCommit
	var err error

	opts := &github.CommitsListOptions{
		SHA:         branch,
		ListOptions: github.ListOptions{PerPage: 1},
	}

	err = c.executeWithRetry(ctx, func() error {
		commits, _, err = c.client.Repositories.ListCommits(ctx, c.owner, c.repo, opts)
		return err
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get latest commit of branch %s: %w", branch, err)
	}

	return c.convertBranch(branch, commits), nil
}

// HasRecentActivity reports whether branch has a commit inside the window ending now
func (c *githubClient) HasRecentActivity(ctx context.Context, branch string, window time.Duration) (bool, error) {
	b, err := c.LatestCommit(ctx, branch)
	if err != nil {
		return false, err
	}
	if b.LastCommit.IsZero() {
		return false, nil
	}

	return b.LastCommit.After(c.now().Add(-window)), nil
}

// convertBranch converts the first listed commit into our domain model
func (c *githubClient) convertBranch(name string, commits []*github.RepositoryCommit) *Branch {
	result := &Branch{Name: name}
	if len(commits) == 0 || commits[0] == nil {
		return result
	}

	commit := commits[0]
	result.CommitSHA = commit.GetSHA()

	// Committer date moves on rebase and cherry-pick, author date does not.
	if inner := commit.GetCommit(); inner != nil {
		if committer := inner.GetCommitter(); committer != nil {
			result.LastCommit = committer.GetDate().Time
		}
		if result.LastCommit.IsZero() && inner.GetAuthor() != nil {
			result.LastCommit = inner.GetAuthor().GetDate().Time
		}
	}

	return result
}
