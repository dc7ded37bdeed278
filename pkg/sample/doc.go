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

// Package sample defines the immutable values produced by a capture: one
// Record per process and one Batch per tick.
//
// Records are constructed through NewRecord, which enforces the invariants
// shared by every writer: a second-resolution timestamp, a non-negative
// memory size and a non-negative percentage of total system memory. Fields
// are unexported so a record handed to the exporter and the event log
// cannot be changed afterwards.
package sample
