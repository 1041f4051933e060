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

// Package github lists the branches of a GitHub repository and reports whether
// they carry recent commits.
//
// The client is the default branch source of preview-gc. Branch names are read
// with the branches endpoint (paginated, 100 per page) and the newest commit of
// a branch with the commits endpoint limited to a single result.
//
// Example usage:
//
//	client, err := github.NewClient("gitpod-io", "gitpod", token, 0)
//	if err != nil {
//	    return err
//	}
//
//	branches, err := client.ListBranches(ctx)
//	if err != nil {
//	    return err
//	}
//	for _, b := range branches {
//	    active, err := client.HasRecentActivity(ctx, b, 5*24*time.Hour)
//	    ...
//	}
//
// Authentication:
//
// A token with read access to the repository contents is sufficient. An empty
// token issues unauthenticated requests, which GitHub limits to 60 per hour.
//
// Retry Logic:
//
// Transient failures (429, 502, 503, 504 and primary rate limits) can be
// retried with exponential backoff and ±20% jitter. The number of retries is
// passed to NewClient; zero disables retrying so that a failed listing fails
// the run instead of delaying it.
package github
