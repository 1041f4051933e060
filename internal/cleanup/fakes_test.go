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
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"

	"github.com/mikelane/previewgc/internal/preview"
)

var (
	coreDevBackend   = preview.CoreDevBackend("staging.gitpod-dev.com", "gitpod-dev", "gitpod-dev-com")
	harvesterBackend = preview.HarvesterBackend("preview.gitpod-dev.com", "gitpod-core-dev", "preview-gitpod-dev-com")
	testBackends     = []preview.Backend{coreDevBackend, harvesterBackend}
)

// callLog records mutating calls from concurrent goroutines
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) forNamespace(ns string) []string {
	var out []string
	for _, c := range l.snapshot() {
		if strings.HasSuffix(c, " "+ns) {
			out = append(out, c)
		}
	}
	return out
}

// fakeEnv is a preview environment whose mutations are recorded in log
type fakeEnv struct {
	name      string
	namespace string
	backend   preview.Backend
	inactive  bool
	dnsErr    error
	deleteErr error
	log       *callLog
}

func newEnv(backend preview.Backend, name string, log *callLog) *fakeEnv {
	return &fakeEnv{name: name, namespace: backend.Prefix + name, backend: backend, log: log}
}

func (e *fakeEnv) Name() string                      { return e.name }
func (e *fakeEnv) Namespace() string                 { return e.namespace }
func (e *fakeEnv) Backend() preview.Backend          { return e.backend }
func (e *fakeEnv) IsInactive(_ context.Context) bool { return e.inactive }

func (e *fakeEnv) RemoveDNSRecords(_ context.Context) error {
	e.log.record("dns %s", e.namespace)
	return e.dnsErr
}

func (e *fakeEnv) Delete(_ context.Context) error {
	e.log.record("delete %s", e.namespace)
	return e.deleteErr
}

// fakeCerts deletes certificates by environment name
type fakeCerts struct {
	log     *callLog
	failFor map[string]error
	// namespaceOf maps an environment name to the namespace used in the log
	namespaceOf map[string]string
}

func (c *fakeCerts) DeleteCertificate(_ context.Context, name string) error {
	c.log.record("cert %s", c.namespaceOf[name])
	return c.failFor[name]
}

// fakeBranches serves a fixed branch list
type fakeBranches struct {
	branches    []string
	recent      map[string]bool
	listErr     error
	activityErr error
}

func (b *fakeBranches) ListBranches(context.Context) ([]string, error) {
	return b.branches, b.listErr
}

func (b *fakeBranches) HasRecentActivity(_ context.Context, branch string, _ time.Duration) (bool, error) {
	if b.activityErr != nil {
		return false, b.activityErr
	}
	return b.recent[branch], nil
}

// allRecent marks every branch as recently active
func allRecent(branches ...string) *fakeBranches {
	recent := map[string]bool{}
	for _, b := range branches {
		recent[b] = true
	}
	return &fakeBranches{branches: branches, recent: recent}
}

type fakeInventory struct {
	mu    sync.Mutex
	envs  []preview.Environment
	err   error
	calls int
}

func (i *fakeInventory) ListAll(context.Context) ([]preview.Environment, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls++
	return i.envs, i.err
}

func (i *fakeInventory) callCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

type fakeReclaimer struct {
	names  []string
	err    error
	called int
}

func (r *fakeReclaimer) Reclaim(context.Context) ([]string, error) {
	r.called++
	return r.names, r.err
}

// captureLogger returns a logger that appends every line to lines
func captureLogger(lines *[]string, mu *sync.Mutex) logr.Logger {
	return funcr.New(func(prefix, args string) {
		mu.Lock()
		defer mu.Unlock()
		*lines = append(*lines, args)
	}, funcr.Options{Verbosity: 1})
}

func namespaces(envs []preview.Environment) []string {
	out := make([]string, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Namespace())
	}
	return out
}

func candidateNamespaces(cs []Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Environment.Namespace())
	}
	return out
}

// certsFor builds a certificate deleter that logs by namespace
func certsFor(log *callLog, envs ...*fakeEnv) *fakeCerts {
	c := &fakeCerts{log: log, failFor: map[string]error{}, namespaceOf: map[string]string{}}
	for _, e := range envs {
		c.namespaceOf[e.name] = e.namespace
	}
	return c
}
