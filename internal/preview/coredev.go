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
	"time"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/previewgc/internal/activity"
	"github.com/mikelane/previewgc/internal/dns"
	"github.com/mikelane/previewgc/internal/kube"
	"github.com/mikelane/previewgc/internal/namespace"
)

// ProbeConfig locates the database inside a core-dev namespace.
type ProbeConfig struct {
	Pod          string
	Secret       string
	SecretKey    string
	HostTemplate string
	Port         int
	User         string
	Database     string
	Window       time.Duration
}

// DefaultProbeConfig returns the settings of a standard core-dev installation.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Pod:          "mysql-0",
		Secret:       "db-password",
		SecretKey:    "mysql-root-password",
		HostTemplate: "db.%s.svc.cluster.local",
		Port:         3306,
		User:         "root",
		Database:     "gitpod",
		Window:       48 * time.Hour,
	}
}

// CoreDevCluster holds the shared clients of the core-dev backend.
type CoreDevCluster struct {
	backend       Backend
	client        client.Client
	namespaces    *namespace.Manager
	labelSelector string
	dns           dns.Deleter
	prober        activity.Prober
	probe         ProbeConfig
}

// NewCoreDevCluster creates the core-dev backend. labelSelector may be empty.
func NewCoreDevCluster(backend Backend, c client.Client, labelSelector string, deleter dns.Deleter, prober activity.Prober, probe ProbeConfig) *CoreDevCluster {
	return &CoreDevCluster{
		backend:       backend,
		client:        c,
		namespaces:    namespace.NewManager(c),
		labelSelector: labelSelector,
		dns:           deleter,
		prober:        prober,
		probe:         probe,
	}
}

// Backend returns the backend description.
func (c *CoreDevCluster) Backend() Backend {
	return c.backend
}

// List returns one environment per prefixed namespace, sorted by namespace.
func (c *CoreDevCluster) List(ctx context.Context) ([]Environment, error) {
	names, err := c.namespaces.List(ctx, c.backend.Prefix, c.labelSelector)
	if err != nil {
		return nil, fmt.Errorf("failed to list core-dev namespaces: %w", err)
	}

	envs := make([]Environment, 0, len(names))
	for _, ns := range names {
		envs = append(envs, c.Environment(ns))
	}
	return envs, nil
}

// Environment returns the environment living in namespace.
func (c *CoreDevCluster) Environment(ns string) *CoreDev {
	return &CoreDev{
		name:      c.backend.NameOf(ns),
		namespace: ns,
		cluster:   c,
	}
}

// CoreDev is a preview environment on the core-dev cluster.
type CoreDev struct {
	name      string
	namespace string
	cluster   *CoreDevCluster
}

var _ Environment = &CoreDev{}

func (e *CoreDev) Name() string      { return e.name }
func (e *CoreDev) Namespace() string { return e.namespace }
func (e *CoreDev) Backend() Backend  { return e.cluster.backend }

// IsInactive checks the namespace, the database pod and then database activity.
// It returns true only when every check succeeded and no activity was found.
func (e *CoreDev) IsInactive(ctx context.Context) bool {
	logger := log.FromContext(ctx).WithValues("namespace", e.namespace)
	probe := e.cluster.probe

	phase, err := e.cluster.namespaces.Phase(ctx, e.namespace)
	if err != nil {
		logger.Info("Is inactive: false - unable to read namespace", "error", err.Error())
		return false
	}
	if phase != corev1.NamespaceActive {
		logger.Info("Is inactive: false - namespace is not active", "phase", phase)
		return false
	}

	pod := &corev1.Pod{}
	if err := e.cluster.client.Get(ctx, types.NamespacedName{Name: probe.Pod, Namespace: e.namespace}, pod); err != nil {
		logger.Info("Is inactive: false - the database is not reachable", "error", err.Error())
		return false
	}
	if !kube.PodReady(pod) {
		logger.Info("Is inactive: false - the database is not ready", "phase", pod.Status.Phase)
		return false
	}

	secret := &corev1.Secret{}
	if err := e.cluster.client.Get(ctx, types.NamespacedName{Name: probe.Secret, Namespace: e.namespace}, secret); err != nil {
		logger.Info("Is inactive: false - unable to read database password", "error", err.Error())
		return false
	}
	password, ok := secret.Data[probe.SecretKey]
	if !ok {
		logger.Info("Is inactive: false - database password missing", "secret", probe.Secret, "key", probe.SecretKey)
		return false
	}

	target := activity.Target{
		Host:     fmt.Sprintf(probe.HostTemplate, e.namespace),
		Port:     probe.Port,
		User:     probe.User,
		Password: string(password),
		Database: probe.Database,
	}
	result, err := e.cluster.prober.RecentActivity(ctx, target, probe.Window)
	if err != nil {
		logger.Info("Is inactive: false - unable to check DB activity", "error", err.Error())
		return false
	}

	inactive := !result.Any()
	logger.Info("Checked database activity", "inactive", inactive)
	return inactive
}

// RemoveDNSRecords deletes the A and TXT records of the environment.
func (e *CoreDev) RemoveDNSRecords(ctx context.Context) error {
	log.FromContext(ctx).Info("Deleting core-dev related DNS records for the preview environment", "namespace", e.namespace)
	if err := removeRecords(ctx, e.cluster.dns, e.cluster.backend.DNSRecords(e.name)); err != nil {
		return fmt.Errorf("failed to remove DNS records of %s: %w", e.namespace, err)
	}
	return nil
}

// Delete removes workspace pods, RBAC objects owned by the namespace and the namespace itself.
func (e *CoreDev) Delete(ctx context.Context) error {
	if err := e.cluster.namespaces.Wipe(ctx, e.namespace); err != nil {
		return fmt.Errorf("failed to delete preview environment %s: %w", e.namespace, err)
	}
	return nil
}
