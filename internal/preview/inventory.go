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
)

// Inventory enumerates preview environments on both backends.
type Inventory struct {
	coreDev   *CoreDevCluster
	harvester *HarvesterCluster
}

// NewInventory creates an Inventory over the two clusters.
func NewInventory(coreDev *CoreDevCluster, harvester *HarvesterCluster) *Inventory {
	return &Inventory{coreDev: coreDev, harvester: harvester}
}

// Backends returns the core-dev and Harvester backends, in that order.
func (i *Inventory) Backends() []Backend {
	return []Backend{i.coreDev.Backend(), i.harvester.Backend()}
}

// ListAll returns core-dev environments followed by Harvester environments,
// excluding the environment of the main branch.
func (i *Inventory) ListAll(ctx context.Context) ([]Environment, error) {
	coreDev, err := i.coreDev.List(ctx)
	if err != nil {
		return nil, err
	}
	harvester, err := i.harvester.List(ctx)
	if err != nil {
		return nil, err
	}

	all := make([]Environment, 0, len(coreDev)+len(harvester))
	for _, env := range append(coreDev, harvester...) {
		if env.Name() == MainName {
			continue
		}
		all = append(all, env)
	}

	return all, nil
}
