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

package leak

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	slopeGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memtrack_leak_slope_mb_per_minute",
			Help: "Fitted memory growth of a watched process",
		},
		[]string{"pid"},
	)

	flaggedGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memtrack_leak_flagged",
			Help: "1 while a watched process is considered leaking",
		},
		[]string{"pid"},
	)
)
