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

// Package errors provides structured, code-classified errors shared by the
// collector, exporter and scheduler.
//
// The code decides how far an error travels: NOT_FOUND, UNAUTHORIZED and
// TIMEOUT from a single process read stay inside the collector, TRANSIENT
// export failures cost one tick, and SERVICE_UNAVAILABLE on the export
// destination stops the scheduler.
package errors
