// Copyright 2025 The Previewd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package namespace

import (
	"context"
	"fmt"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"
)

const (
	// WorkspaceComponentLabel selects workspace pods inside a preview namespace
	WorkspaceComponentLabel = "component"

	// WorkspaceComponentValue is the component label value of workspace pods
	WorkspaceComponentValue = "workspace"

	// OwnerNamespaceLabel marks cluster-scoped objects installed on behalf of a preview namespace
	OwnerNamespaceLabel = "namespace"
)

// Manager handles namespace discovery and teardown on one cluster
type Manager struct {
	client client.Client
}

// NewManager creates a new namespace manager
func NewManager(c client.Client) *Manager {
	return &Manager{
		client: c,
	}
}

// List returns the names of all namespaces starting with prefix, sorted.
// A non-empty selector additionally filters namespaces by label.
func (m *Manager) List(ctx context.Context, prefix, selector string) ([]string, error) {
	opts := []client.ListOption{}
	if selector != "" {
		sel, err := labels.Parse(selector)
		if err != nil {
			return nil, fmt.Errorf("invalid label selector %q: %w", selector, err)
		}
		opts = append(opts, client.MatchingLabelsSelector{Selector: sel})
	}

	var nsList corev1.NamespaceList
	if err := m.client.List(ctx, &nsList, opts...); err != nil {
		return nil, fmt.Errorf("failed to list namespaces: %w", err)
	}

	names := []string{}
	for _, ns := range nsList.Items {
		if strings.HasPrefix(ns.Name, prefix) {
			names = append(names, ns.Name)
		}
	}
	sort.Strings(names)

	return names, nil
}

// Phase returns the phase of the named namespace.
func (m *Manager) Phase(ctx context.Context, name string) (corev1.NamespacePhase, error) {
	ns := &corev1.Namespace{}
	if err := m.client.Get(ctx, types.NamespacedName{Name: name}, ns); err != nil {
		return "", fmt.Errorf("failed to get namespace %s: %w", name, err)
	}
	return ns.Status.Phase, nil
}

// Wipe removes everything a preview environment installed: its workspace pods,
// the cluster-scoped RBAC objects labelled with the namespace, and finally the
// namespace itself. Objects that are already gone are not an error.
func (m *Manager) Wipe(ctx context.Context, name string) error {
	logger := log.FromContext(ctx).WithValues("namespace", name)

	logger.Info("Deleting workspace pods")
	if err := m.client.DeleteAllOf(ctx, &corev1.Pod{},
		client.InNamespace(name),
		client.MatchingLabels{WorkspaceComponentLabel: WorkspaceComponentValue},
	); err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete workspace pods in %s: %w", name, err)
	}

	logger.Info("Deleting cluster-scoped objects owned by the namespace")
	owned := client.MatchingLabels{OwnerNamespaceLabel: name}
	if err := m.client.DeleteAllOf(ctx, &rbacv1.ClusterRoleBinding{}, owned); err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete cluster role bindings for %s: %w", name, err)
	}
	if err := m.client.DeleteAllOf(ctx, &rbacv1.ClusterRole{}, owned); err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete cluster roles for %s: %w", name, err)
	}

	return m.Delete(ctx, name)
}

// Delete removes the namespace. Kubernetes cascades the deletion to every
// namespaced resource inside it.
func (m *Manager) Delete(ctx context.Context, name string) error {
	ns := &corev1.Namespace{}
	err := m.client.Get(ctx, types.NamespacedName{Name: name}, ns)
	if err != nil {
		if errors.IsNotFound(err) {
			// Namespace already deleted
			return nil
		}
		return fmt.Errorf("failed to get namespace: %w", err)
	}

	if err := m.client.Delete(ctx, ns); err != nil && !errors.IsNotFound(err) {
		return fmt.Errorf("failed to delete namespace: %w", err)
	}

	return nil
}
