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
	"fmt"

	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/previewgc/internal/dns"
	"github.com/mikelane/previewgc/internal/kube"
	"github.com/mikelane/previewgc/internal/namespace"
)

// HarvesterCluster holds the shared clients of the Harvester backend.
type HarvesterCluster struct {
	backend    Backend
	client     client.Client
	namespaces *namespace.Manager
	dns        dns.Deleter
}

// NewHarvesterCluster creates the Harvester backend.
func NewHarvesterCluster(backend Backend, c client.Client, deleter dns.Deleter) *HarvesterCluster {
	return &HarvesterCluster{
		backend:    backend,
		client:     c,
		namespaces: namespace.NewManager(c),
		dns:        deleter,
	}
}

// Backend returns the backend description.
func (c *HarvesterCluster) Backend() Backend {
	return c.backend
}

// Namespaces lists the prefixed namespaces on the cluster.
func (c *HarvesterCluster) Namespaces(ctx context.Context) ([]string, error) {
	names, err := c.namespaces.List(ctx, c.backend.Prefix, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list harvester namespaces: %w", err)
	}
	return names, nil
}

// List returns one environment per prefixed namespace, sorted by namespace.
func (c *HarvesterCluster) List(ctx context.Context) ([]Environment, error) {
	names, err := c.Namespaces(ctx)
	if err != nil {
		return nil, err
	}

	envs := make([]Environment, 0, len(names))
	for _, ns := range names {
		envs = append(envs, c.Environment(ns))
	}
	return envs, nil
}

// Environment returns the environment living in namespace.
func (c *HarvesterCluster) Environment(ns string) *Harvester {
	return &Harvester{
		name:      c.backend.NameOf(ns),
		namespace: ns,
		cluster:   c,
	}
}

// Harvester is a preview environment running as a VirtualMachine on Harvester.
type Harvester struct {
	name      string
	namespace string
	cluster   *HarvesterCluster
}

var _ Environment = &Harvester{}

func (e *Harvester) Name() string      { return e.name }
func (e *Harvester) Namespace() string { return e.namespace }
func (e *Harvester) Backend() Backend  { return e.cluster.backend }

// IsInactive is always false; Harvester environments are collected through their branch only.
func (e *Harvester) IsInactive(context.Context) bool {
	return false
}

// RemoveDNSRecords deletes the A and TXT records of the environment.
func (e *Harvester) RemoveDNSRecords(ctx context.Context) error {
	log.FromContext(ctx).Info("Deleting harvester related DNS records for the preview environment", "namespace", e.namespace)
	if err := removeRecords(ctx, e.cluster.dns, e.cluster.backend.DNSRecords(e.name)); err != nil {
		return fmt.Errorf("failed to remove DNS records of %s: %w", e.namespace, err)
	}
	return nil
}

// Delete removes the VirtualMachine and then its namespace.
func (e *Harvester) Delete(ctx context.Context) error {
	vm := &kube.VirtualMachine{
		ObjectMeta: metav1.ObjectMeta{
			Name:      e.name,
			Namespace: e.namespace,
		},
	}
	if err := e.cluster.client.Delete(ctx, vm); err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete VirtualMachine %s/%s: %w", e.namespace, e.name, err)
	}

	if err := e.cluster.namespaces.Delete(ctx, e.namespace); err != nil {
		return fmt.Errorf("failed to delete preview environment %s: %w", e.namespace, err)
	}
	return nil
}
