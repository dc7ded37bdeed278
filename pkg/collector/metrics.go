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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	captureDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "memtrack_capture_duration_seconds",
			Help:    "Time taken to capture all processes in one tick",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"backend"},
	)

	captureTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memtrack_capture_total",
			Help: "Total number of capture attempts",
		},
		[]string{"backend", "status"}, // success, error or canceled
	)

	processSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memtrack_process_skipped_total",
			Help: "Processes left out of a batch because their metrics could not be read",
		},
		[]string{"reason"},
	)
)
