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

// Package exporter persists sample batches to a CSV export file.
//
// The file has a single header row
//
//	timestamp,processName,processId,memoryBytes,memoryPercent
//
// followed by one row per process per tick. Open writes the header only
// when the destination is empty, so resuming into an existing file never
// duplicates it. Append is all-or-nothing: rows are encoded up front, written
// with one call and synced; on failure the file is truncated back to its
// previous length and an *ExportError is returned. If that truncation fails
// the exporter refuses further writes and every later call is fatal. A newly
// created file also has its directory synced.
//
// ExportError.Fatal distinguishes a destination that will not recover (disk
// full, quota exceeded, read-only filesystem, permission revoked, file removed
// or closed, failed rollback) from one-off write failures. Callers stop sampling on fatal
// errors and drop the batch on the others.
package exporter
