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

// Package namespace discovers and tears down preview environment namespaces.
//
// The Manager wraps one cluster's controller-runtime client and offers the
// small surface the garbage collector needs:
//
//   - List namespaces by name prefix, optionally narrowed by a label selector
//   - Read a namespace's phase, used by the inactivity probe to avoid racing
//     a deletion that is already in progress
//   - Wipe a preview namespace: workspace pods, cluster-scoped RBAC objects
//     labelled with the namespace name, then the namespace itself
//   - Delete a namespace
//
// # Idempotency
//
// Every deletion treats "not found" as success. The garbage collector never
// retries; running it again is the retry.
//
// # Usage Example
//
//	mgr := namespace.NewManager(coreDevClient)
//
//	names, err := mgr.List(ctx, "staging-", "")
//	if err != nil {
//	    return err
//	}
//
//	for _, name := range names {
//	    if err := mgr.Wipe(ctx, name); err != nil {
//	        return err
//	    }
//	}
package namespace
