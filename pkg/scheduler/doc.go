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

// Package scheduler drives the fixed-interval sampling loop.
//
// A Scheduler moves through Idle, Running, Stopping and Stopped. Run opens
// the event log and the export destination; if either fails the scheduler
// goes straight to Stopped and Run returns an error wrapping ErrStartup.
//
// Each tick captures one batch, appends it to the exporter and logs a
// summary line. Capture failures and recoverable export failures are logged
// and the loop continues; the lost batch is named in the event log. A fatal
// export error stops the loop and Run returns an error wrapping
// ErrFatalExport.
//
// The next tick starts one interval after the previous tick finished, so a
// slow tick never causes a burst of catch-up ticks. Shutdown (context
// cancellation or Stop) is honored while sleeping and right after Capture
// and Append return; a row is never cut in half.
//
//	s := scheduler.New(source, exporter.New(),
//	    scheduler.WithInterval(time.Second),
//	    scheduler.WithExportPath(path),
//	    scheduler.WithEventLog(openEventLog),
//	)
//	summary, err := s.Run(ctx)
package scheduler
