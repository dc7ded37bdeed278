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

package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memtrack_tick_duration_seconds",
			Help:    "Time taken by one capture and export cycle",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
	)

	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memtrack_ticks_total",
			Help: "Total number of ticks by outcome",
		},
		[]string{"status"}, // ok, empty, capture_error, export_error, fatal or canceled
	)

	lastBatchSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memtrack_last_batch_processes",
			Help: "Number of processes in the most recent batch",
		},
	)

	schedulerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "memtrack_scheduler_state",
			Help: "Scheduler state: 0 idle, 1 running, 2 stopping, 3 stopped",
		},
	)
)
