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
	"fmt"
	"math"
	"time"
)

// State is a scheduler lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// TickReport describes one completed tick.
type TickReport struct {
	Tick       int
	Processes  int
	TotalBytes uint64
	Duration   time.Duration
	Err        error
}

// Summary aggregates a whole run.
type Summary struct {
	RunID        string        `json:"runId,omitempty" yaml:"runId,omitempty"`
	StartedAt    time.Time     `json:"startedAt" yaml:"startedAt"`
	Uptime       time.Duration `json:"uptime" yaml:"uptime"`
	Ticks        int           `json:"ticks" yaml:"ticks"`
	EmptyTicks   int           `json:"emptyTicks" yaml:"emptyTicks"`
	FailedTicks  int           `json:"failedTicks" yaml:"failedTicks"`
	LostBatches  int           `json:"lostBatches" yaml:"lostBatches"`
	RowsExported uint64        `json:"rowsExported" yaml:"rowsExported"`
	LeakAlerts   int           `json:"leakAlerts" yaml:"leakAlerts"`
	AvgTotalMB   float64       `json:"avgTotalMB" yaml:"avgTotalMB"`
	MaxTotalMB   float64       `json:"maxTotalMB" yaml:"maxTotalMB"`

	sumTotalMB float64
	sampled    int
}

func (s *Summary) observe(totalBytes uint64) {
	mb := float64(totalBytes) / (1 << 20)
	s.sampled++
	s.sumTotalMB += mb
	s.AvgTotalMB = round2(s.sumTotalMB / float64(s.sampled))
	s.MaxTotalMB = max(s.MaxTotalMB, round2(mb))
}

// LogAttrs flattens the summary into slog key-value pairs.
func (s *Summary) LogAttrs() []any {
	return []any{
		"uptime", s.Uptime.Round(time.Millisecond),
		"ticks", s.Ticks,
		"emptyTicks", s.EmptyTicks,
		"failedTicks", s.FailedTicks,
		"lostBatches", s.LostBatches,
		"rows", s.RowsExported,
		"leakAlerts", s.LeakAlerts,
		"avgTotalMB", s.AvgTotalMB,
		"maxTotalMB", s.MaxTotalMB,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
