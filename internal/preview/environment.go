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

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/mikelane/previewgc/internal/dns"
)

// MainName is the preview name that is never collected.
const MainName = "main"

// Environment is a preview environment on either backend.
type Environment interface {
	// Name is the namespace without the backend prefix
	Name() string
	// Namespace is the namespace holding the environment
	Namespace() string
	// Backend is the backend the namespace was found on
	Backend() Backend
	// IsInactive reports whether the environment is provably unused; any doubt yields false
	IsInactive(ctx context.Context) bool
	// RemoveDNSRecords deletes the backend's record set for the environment
	RemoveDNSRecords(ctx context.Context) error
	// Delete removes the environment's compute resources and namespace
	Delete(ctx context.Context) error
}

// removeRecords deletes all records concurrently and reports every failure.
func removeRecords(ctx context.Context, deleter dns.Deleter, records []dns.Record) error {
	var g errgroup.Group
	errs := make([]error, len(records))

	for i, record := range records {
		g.Go(func() error {
			errs[i] = deleter.DeleteRecord(ctx, record)
			return errs[i]
		})
	}

	if err := g.Wait(); err == nil {
		return nil
	}
	return multierr.Combine(errs...)
}
