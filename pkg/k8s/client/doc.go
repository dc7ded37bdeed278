// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
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

// Package client provides the Kubernetes client used to publish snapshots
// to ConfigMaps.
//
// GetKubeClient builds one client per process and caches it, including a
// failed result, so repeated snapshot writes reuse a single connection pool.
// BuildKubeClient creates an uncached client from an explicit kubeconfig.
//
// Discovery order for an empty kubeconfig:
//   - the KUBECONFIG environment variable
//   - ~/.kube/config, if present
//   - the in-cluster service account
package client
