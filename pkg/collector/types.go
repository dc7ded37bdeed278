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

package collector

import (
	"context"
	"log/slog"

	"github.com/NVIDIA/memtrack/pkg/sample"
)

// Source captures the memory usage of every readable process.
//
// Capture never fails because a single process could not be read; such
// processes are left out of the batch. An error is returned only when the
// process table itself cannot be enumerated. An empty batch is valid.
type Source interface {
	Capture(ctx context.Context) (*sample.Batch, error)
}

// Provider is the platform seam used by ProcessSource. Implementations
// live in the process (gopsutil) and procfs subpackages.
type Provider interface {
	// Name identifies the backend in logs.
	Name() string

	// PIDs enumerates the processes visible to the current user.
	PIDs(ctx context.Context) ([]int32, error)

	// TotalMemory returns total physical memory in bytes.
	TotalMemory(ctx context.Context) (uint64, error)

	// ReadProcess returns the best-effort name and resident set size of pid.
	// The name may be empty when the OS does not supply it.
	ReadProcess(ctx context.Context, pid int32) (name string, rssBytes uint64, err error)
}

// FailureSink receives per-process failure lines, typically the run's
// event log.
type FailureSink func(level slog.Level, msg string, args ...any)

// FailureReporter is implemented by sources that can route per-process
// failures to a sink set after construction. A nil sink restores the
// diagnostic logger.
type FailureReporter interface {
	SetFailureSink(sink FailureSink)
}
