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
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/NVIDIA/memtrack/pkg/defaults"
	"github.com/NVIDIA/memtrack/pkg/sample"
)

const bytesPerMB = 1 << 20

// Alert reports a change in a PID's leak state.
type Alert struct {
	PID           int32
	Name          string
	SlopeMBPerMin float64
	Cleared       bool
	// Exited is set on cleared alerts raised because the PID left the batch.
	Exited bool
	At     time.Time
}

func (a Alert) String() string {
	switch {
	case a.Exited:
		return fmt.Sprintf("memory leak condition cleared for %s (pid %d): process exited", a.Name, a.PID)
	case a.Cleared:
		return fmt.Sprintf("memory leak condition cleared for %s (pid %d)", a.Name, a.PID)
	default:
		return fmt.Sprintf("potential memory leak detected in %s (pid %d): projected increase %.2fMB/min",
			a.Name, a.PID, a.SlopeMBPerMin)
	}
}

type point struct {
	at    time.Time
	bytes uint64
}

type series struct {
	name    string
	points  []point
	flagged bool
}

// Detector tracks memory trends for a fixed set of PIDs. It is safe for
// concurrent use.
type Detector struct {
	mu        sync.Mutex
	window    int
	threshold float64
	watched   map[int32]*series
}

// NewDetector returns a detector over pids. A window below 2 or a
// non-positive threshold selects the defaults.
func NewDetector(window int, thresholdMBPerMin float64, pids ...int32) *Detector {
	if window < 2 {
		window = defaults.LeakWindow
	}
	if thresholdMBPerMin <= 0 {
		thresholdMBPerMin = defaults.LeakThresholdMBPerMinute
	}
	d := &Detector{
		window:    window,
		threshold: thresholdMBPerMin,
		watched:   make(map[int32]*series, len(pids)),
	}
	for _, pid := range pids {
		d.watched[pid] = &series{}
	}
	return d
}

// Watched returns the watched PIDs in ascending order.
func (d *Detector) Watched() []int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.watched))
}

// Flagged reports whether pid is currently considered leaking.
func (d *Detector) Flagged(pid int32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.watched[pid]
	return ok && s.flagged
}

// Observe feeds one batch to the detector and returns the state changes it
// caused, ordered by PID.
func (d *Detector) Observe(batch *sample.Batch) []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[int32]sample.Record, len(d.watched))
	for r := range batch.All() {
		if _, ok := d.watched[r.PID()]; ok {
			seen[r.PID()] = r
		}
	}

	var alerts []Alert
	for _, pid := range slices.Sorted(maps.Keys(d.watched)) {
		s := d.watched[pid]
		r, ok := seen[pid]
		if !ok {
			if s.flagged {
				alerts = append(alerts, Alert{PID: pid, Name: s.name, Cleared: true, Exited: true, At: batch.Timestamp()})
			}
			d.reset(pid, s)
			continue
		}
		if len(s.points) > 0 && s.name != r.Name() {
			d.reset(pid, s)
			s = d.watched[pid]
		}

		s.name = r.Name()
		s.points = append(s.points, point{at: r.Timestamp(), bytes: r.MemoryBytes()})
		if len(s.points) > d.window {
			s.points = slices.Delete(s.points, 0, len(s.points)-d.window)
		}
		if len(s.points) < d.window {
			continue
		}

		rate := slope(s.points) * 60 / bytesPerMB
		label := strconv.Itoa(int(pid))
		slopeGauge.WithLabelValues(label).Set(rate)

		switch {
		case rate > d.threshold && !s.flagged:
			s.flagged = true
			flaggedGauge.WithLabelValues(label).Set(1)
			alerts = append(alerts, Alert{PID: pid, Name: s.name, SlopeMBPerMin: rate, At: r.Timestamp()})
		case rate <= d.threshold && s.flagged:
			s.flagged = false
			flaggedGauge.WithLabelValues(label).Set(0)
			alerts = append(alerts, Alert{PID: pid, Name: s.name, SlopeMBPerMin: rate, Cleared: true, At: r.Timestamp()})
		}
	}
	return alerts
}

func (d *Detector) reset(pid int32, s *series) {
	if s.flagged {
		flaggedGauge.WithLabelValues(strconv.Itoa(int(pid))).Set(0)
	}
	d.watched[pid] = &series{}
}

// slope returns the least-squares slope of memory over time in bytes per
// second. Fewer than two points, or points that share one timestamp, give 0.
func slope(points []point) float64 {
	if len(points) < 2 {
		return 0
	}
	n := float64(len(points))
	origin := points[0].at
	var meanX, meanY float64
	for _, p := range points {
		meanX += p.at.Sub(origin).Seconds()
		meanY += float64(p.bytes)
	}
	meanX /= n
	meanY /= n

	var cov, varX float64
	for _, p := range points {
		dx := p.at.Sub(origin).Seconds() - meanX
		cov += dx * (float64(p.bytes) - meanY)
		varX += dx * dx
	}
	if varX == 0 {
		return 0
	}
	return cov / varX
}
