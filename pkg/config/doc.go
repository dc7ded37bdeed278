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

// Package config holds the options of the sampling run.
//
// Values are resolved in order default, YAML file, environment, flag; the
// last one set wins. The file is optional and only recognized keys are
// accepted:
//
//	interval: 5s
//	outputDir: /var/lib/memtrack
//	exportFile: memory.csv
//	logFile: memory_tracker.log
//	backend: procfs
//	workers: 16
//	readTimeout: 1s
//	maxTicks: 0
//	metricsAddress: 127.0.0.1:9464
//	leak:
//	  window: 30
//	  thresholdMB: 10
//	  watch: [1234, 5678]
//
// Environment and flag handling lives in the cli package; it calls Apply
// methods here only for values that were explicitly set.
package config
