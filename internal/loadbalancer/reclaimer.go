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

// Package loadbalancer removes the load balancers of preview environments that
// no longer exist on Harvester.
package loadbalancer

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/multierr"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/sets"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	// DefaultNamespace holds one deployment and one service per load balancer.
	DefaultNamespace = "loadbalancers"

	// DefaultLabel carries the environment name on every load-balancer deployment.
	DefaultLabel = "gitpod.io/lbName"

	// HarvesterPrefix prefixes the namespace of every Harvester environment.
	HarvesterPrefix = "preview-"

	resourcePrefix = "lb-"
)

// NamespaceLister lists the namespaces of the Harvester backend.
type NamespaceLister interface {
	Namespaces(ctx context.Context) ([]string, error)
}

// Reclaimer deletes load balancers whose Harvester namespace is gone.
type Reclaimer struct {
	client    client.Client
	harvester NamespaceLister
	namespace string
	label     string
	dryRun    bool
}

// NewReclaimer creates a Reclaimer working on the load balancers in c.
// Empty namespace and label select DefaultNamespace and DefaultLabel.
func NewReclaimer(c client.Client, harvester NamespaceLister, namespace, label string, dryRun bool) *Reclaimer {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if label == "" {
		label = DefaultLabel
	}
	return &Reclaimer{
		client:    c,
		harvester: harvester,
		namespace: namespace,
		label:     label,
		dryRun:    dryRun,
	}
}

// Names returns the label values of all load-balancer deployments, sorted.
func (r *Reclaimer) Names(ctx context.Context) ([]string, error) {
	deployments := &appsv1.DeploymentList{}
	if err := r.client.List(ctx, deployments, client.InNamespace(r.namespace), client.HasLabels{r.label}); err != nil {
		return nil, fmt.Errorf("failed to list load balancers in %s: %w", r.namespace, err)
	}

	names := sets.New[string]()
	for _, d := range deployments.Items {
		if v := d.Labels[r.label]; v != "" {
			names.Insert(v)
		}
	}
	return sets.List(names), nil
}

// Orphaned returns the load balancers without a matching Harvester namespace.
func (r *Reclaimer) Orphaned(ctx context.Context) ([]string, error) {
	names, err := r.Names(ctx)
	if err != nil {
		return nil, err
	}

	namespaces, err := r.harvester.Namespaces(ctx)
	if err != nil {
		return nil, err
	}
	live := sets.New(namespaces...)

	var orphaned []string
	for _, name := range names {
		if !live.Has(HarvesterPrefix + name) {
			orphaned = append(orphaned, name)
		}
	}
	sort.Strings(orphaned)
	return orphaned, nil
}

// Reclaim deletes the deployment and service of every orphaned load balancer
// and returns the names it deleted. A failure on one load balancer does not
// stop the others.
func (r *Reclaimer) Reclaim(ctx context.Context) ([]string, error) {
	logger := log.FromContext(ctx).WithValues("namespace", r.namespace)

	orphaned, err := r.Orphaned(ctx)
	if err != nil {
		return nil, err
	}
	if len(orphaned) == 0 {
		logger.Info("No unused load balancers")
		return nil, nil
	}

	var (
		reclaimed []string
		errs      error
	)
	for _, name := range orphaned {
		if r.dryRun {
			logger.Info("Would have deleted load balancer", "loadbalancer", name)
			reclaimed = append(reclaimed, name)
			continue
		}

		if err := r.delete(ctx, name); err != nil {
			logger.Error(err, "Failed to delete load balancer", "loadbalancer", name)
			errs = multierr.Append(errs, err)
			continue
		}
		logger.Info("Deleted load balancer", "loadbalancer", name)
		reclaimed = append(reclaimed, name)
	}

	return reclaimed, errs
}

func (r *Reclaimer) delete(ctx context.Context, name string) error {
	meta := metav1.ObjectMeta{Name: resourcePrefix + name, Namespace: r.namespace}

	objects := []client.Object{
		&appsv1.Deployment{ObjectMeta: meta},
		&corev1.Service{ObjectMeta: meta},
	}

	var errs error
	for _, obj := range objects {
		if err := r.client.Delete(ctx, obj); err != nil && !errors.IsNotFound(err) {
			errs = multierr.Append(errs, fmt.Errorf("failed to delete %T %s/%s: %w", obj, r.namespace, meta.Name, err))
		}
	}
	return errs
}
