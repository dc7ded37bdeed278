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

// Package leak flags processes whose resident memory grows steadily.
//
// For each watched PID the Detector keeps the most recent window of
// (timestamp, memoryBytes) points and fits a least-squares line through them.
// A slope above the threshold, projected to MB per minute, raises an alert;
// the alert clears once the slope falls back to or below the threshold.
// History is dropped when a watched PID is missing from a batch or changes
// name, since the process exited or the PID was reused.
package leak
