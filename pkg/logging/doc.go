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

// Package logging provides the two logs memtrack writes.
//
// The diagnostic log is a JSON slog logger on stderr tagged with module and
// version. Its level comes from LOG_LEVEL (debug, info, warn, error;
// case-insensitive, default info). Debug loggers add source locations.
//
//	logging.SetDefaultStructuredLogger("memtrack", version)
//	slog.Info("tracker starting", "interval", cfg.Interval)
//
// The event log is the human readable lifecycle log kept next to the export
// file. Each line has the form:
//
//	2025-01-15 10:30:00 [INFO] captured 12 processes count=12
//
// EventLog implements slog.Handler, so it can back a *slog.Logger directly,
// and can mirror every record into another handler:
//
//	el, err := logging.OpenEventLog(path, logging.WithMirror(slog.Default().Handler()))
//	if err != nil {
//	    return err
//	}
//	defer el.Close()
//	el.Info("tracker started", "interval", time.Second)
//
// Writing to the event log never fails from the caller's point of view. When
// the file cannot be written the line goes to stderr and the file is
// reopened on the next write.
package logging
