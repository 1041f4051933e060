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

// Package certs deletes the cert-manager Certificates issued for preview environments.
package certs

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/previewgc/internal/kube"
)

// DefaultNamespace holds the wildcard certificates of every preview environment.
const DefaultNamespace = "certs"

// Manager deletes Certificates in one namespace of the core-dev cluster.
type Manager struct {
	client    client.Client
	namespace string
}

// NewManager creates a Manager. An empty namespace selects DefaultNamespace.
func NewManager(c client.Client, namespace string) *Manager {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Manager{client: c, namespace: namespace}
}

// Namespace returns the namespace the Manager deletes from.
func (m *Manager) Namespace() string {
	return m.namespace
}

// DeleteCertificate deletes the Certificate called name. A missing Certificate is not an error.
func (m *Manager) DeleteCertificate(ctx context.Context, name string) error {
	cert := &kube.Certificate{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: m.namespace,
		},
	}

	err := m.client.Delete(ctx, cert)
	if errors.IsNotFound(err) {
		log.FromContext(ctx).V(1).Info("Certificate already absent", "certificate", name, "namespace", m.namespace)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete Certificate %s/%s: %w", m.namespace, name, err)
	}

	return nil
}
