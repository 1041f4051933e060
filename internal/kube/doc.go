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

// Package kube provides cluster access for preview-gc.
//
// Two clusters are involved in every run: the core-dev GKE cluster, which hosts
// CoreDev preview environments, certificates and load balancers, and the
// Harvester cluster, which hosts one KubeVirt VirtualMachine per preview.
// Each is reached through its own kubeconfig and its own controller-runtime client.
//
// The package also registers the two third-party resource kinds the garbage
// collector deletes:
//
//   - cert-manager.io/v1 Certificate
//   - kubevirt.io/v1 VirtualMachine
//
// Only metadata is modelled for both; the collector never reads their specs.
//
// Example usage:
//
//	scheme := kube.NewScheme()
//	coreDev, err := kube.NewClient("/workspace/gitpod/kubeconfigs/core-dev", scheme)
//	if err != nil {
//	    return err
//	}
package kube
