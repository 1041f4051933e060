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

package preview

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	"github.com/mikelane/previewgc/internal/activity"
	"github.com/mikelane/previewgc/internal/dns"
	"github.com/mikelane/previewgc/internal/kube"
)

// fakeDNS records deleted names and fails for names in failOn
type fakeDNS struct {
	mu      sync.Mutex
	deleted []dns.Record
	failOn  map[string]bool
}

func (f *fakeDNS) DeleteRecord(_ context.Context, r dns.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn[r.Type+" "+r.Name] {
		return errors.New("permission denied")
	}
	f.deleted = append(f.deleted, r)
	return nil
}

// fakeProber returns a fixed result and remembers the last target
type fakeProber struct {
	result activity.Result
	err    error
	calls  int
	target activity.Target
	window time.Duration
}

func (f *fakeProber) RecentActivity(_ context.Context, target activity.Target, window time.Duration) (activity.Result, error) {
	f.calls++
	f.target = target
	f.window = window
	return f.result, f.err
}

func newFakeClient(t *testing.T, objs ...client.Object) client.Client {
	t.Helper()
	return fake.NewClientBuilder().WithScheme(kube.NewScheme()).WithObjects(objs...).Build()
}
