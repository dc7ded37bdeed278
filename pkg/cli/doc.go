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

// Package cli implements the memtrack command-line interface.
//
// # Commands
//
// run - Sample process memory on an interval:
//
//	memtrack run [--interval 1s] [--output-dir DIR] [--max-ticks N] [--metrics-address HOST:PORT]
//
// Captures every visible process once per interval, appends each batch to
// memory_export_<YYYYMMDD_HHMMSS>.csv and records lifecycle events in
// memory_tracker.log. Stops on SIGINT/SIGTERM or after --max-ticks. Under
// systemd (Type=notify) it reports READY, STATUS and STOPPING.
//
// snapshot - Capture one batch:
//
//	memtrack snapshot [--top N] [--pid PID] [--format table|json|yaml] [--output FILE|cm://ns/name]
//
// sysinfo - Print host information:
//
//	memtrack sysinfo [--format table|json|yaml]
//
// # Configuration
//
// Options for run resolve in order flag, environment, --config file, default.
// Every run option has a MEMTRACK_ environment variable, for example
// MEMTRACK_INTERVAL, MEMTRACK_OUTPUT_DIR or MEMTRACK_WATCH. The file is YAML:
//
//	interval: 5s
//	outputDir: /var/lib/memtrack
//	backend: procfs
//	leak:
//	  window: 60
//	  thresholdMB: 5
//	  watch: [1234]
//
// # Environment Variables
//
//	LOG_LEVEL             Diagnostic log verbosity (debug, info, warn, error)
//	NODE_NAME             Node name recorded in document metadata
//	KUBERNETES_NODE_NAME  Fallback node name if NODE_NAME is not set
//	KUBECONFIG            Kubeconfig used for cm:// outputs
//
// # Exit Codes
//
//	0  Clean shutdown
//	1  Usage or configuration error
//	2  Startup failure (event log, export file or metrics listener)
//	3  Export destination became permanently unusable
//
// Version information is embedded at build time using ldflags:
//
//	go build -ldflags="-X 'github.com/NVIDIA/memtrack/pkg/cli.version=1.0.0'"
package cli
