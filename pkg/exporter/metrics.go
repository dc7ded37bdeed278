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

package exporter

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	appendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "memtrack_export_append_duration_seconds",
			Help:    "Time taken to write and sync one batch",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	appendTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "memtrack_export_append_total",
			Help: "Total number of non-empty batch appends",
		},
		[]string{"status"}, // success, recoverable or fatal
	)

	rowsExported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memtrack_export_rows_total",
			Help: "Total number of rows durably written",
		},
	)

	bytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "memtrack_export_bytes_total",
			Help: "Total number of bytes durably written",
		},
	)
)
