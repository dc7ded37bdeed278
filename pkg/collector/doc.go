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

// Package collector captures per-process memory usage.
//
// # Core Interface
//
// A Source returns one batch of records per call:
//
//	type Source interface {
//	    Capture(ctx context.Context) (*sample.Batch, error)
//	}
//
// ProcessSource implements Source on top of a Provider, the platform seam.
// Two providers ship with the package:
//
//   - process: gopsutil, portable across Linux, macOS, Windows and BSD
//   - procfs:  direct /proc reads, Linux only, usable against a host /proc
//     mounted into a container
//
// # Failure Policy
//
// Processes are enumerated first and read afterwards, so a process may exit
// or change owner in between. Such per-process failures (NOT_FOUND,
// UNAUTHORIZED, TIMEOUT) drop the process from the batch and are logged at a
// throttled rate. Capture only fails when enumeration itself fails.
//
// Each read is bounded by a timeout; reads run on a bounded worker pool and
// records keep the enumeration order.
//
// # Factory Pattern
//
//	factory := collector.NewDefaultFactory(
//	    collector.WithBackend(collector.BackendProcfs),
//	    collector.WithProcRoot("/host/proc"),
//	)
//	src := factory.CreateProcessSource()
//	batch, err := src.Capture(ctx)
package collector
