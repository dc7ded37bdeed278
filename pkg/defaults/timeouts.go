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

package defaults

import "time"

// Sampling loop defaults.
const (
	// SampleInterval is the default time between the end of one tick and the
	// start of the next.
	SampleInterval = 1 * time.Second

	// MinSampleInterval is the smallest interval accepted by configuration.
	MinSampleInterval = 100 * time.Millisecond
)

// Collector timeouts for process enumeration.
const (
	// CollectorTimeout bounds a whole Capture call, including enumeration.
	// A capture that exceeds it fails the tick; the run continues.
	CollectorTimeout = 10 * time.Second

	// ProcessReadTimeout bounds the metric read of a single process. A process
	// exceeding it is skipped for the tick.
	ProcessReadTimeout = 2 * time.Second

	// ProcessReadWorkers is the default number of concurrent per-process reads.
	ProcessReadWorkers = 8
)

// Leak detector defaults.
const (
	// LeakWindow is the number of consecutive samples used to fit a trend.
	LeakWindow = 30

	// LeakThresholdMBPerMinute is the projected growth that raises an alert.
	LeakThresholdMBPerMinute = 10.0
)

// Server timeouts for the health and metrics endpoint.
const (
	// ServerReadTimeout is the maximum duration for reading request headers.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 10 * time.Second
)

// ConfigMap timeouts for Kubernetes ConfigMap operations.
const (
	// ConfigMapWriteTimeout is the timeout for writing to ConfigMaps.
	ConfigMapWriteTimeout = 30 * time.Second
)

// CLI timeouts for command-line operations.
const (
	// CLISnapshotTimeout is the default timeout for the one-shot snapshot command.
	CLISnapshotTimeout = 1 * time.Minute
)
