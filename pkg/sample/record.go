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

package sample

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

// TimestampLayout is the textual timestamp format used in exports. Values
// are always rendered in UTC so they sort lexically in time order, including
// across daylight saving changes.
const TimestampLayout = "2006-01-02 15:04:05"

// Column names of the export file, in order.
const (
	ColumnTimestamp     = "timestamp"
	ColumnProcessName   = "processName"
	ColumnProcessID     = "processId"
	ColumnMemoryBytes   = "memoryBytes"
	ColumnMemoryPercent = "memoryPercent"
)

// Header returns the export header row.
func Header() []string {
	return []string{
		ColumnTimestamp,
		ColumnProcessName,
		ColumnProcessID,
		ColumnMemoryBytes,
		ColumnMemoryPercent,
	}
}

// Record is one process's memory metrics at one instant.
type Record struct {
	timestamp     time.Time
	pid           int32
	name          string
	memoryBytes   uint64
	memoryPercent float64
}

// NewRecord builds a record from raw readings. The timestamp is converted to
// UTC and truncated to the second; memoryPercent is derived from totalMemory; a zero total
// yields zero percent.
func NewRecord(ts time.Time, pid int32, name string, memoryBytes, totalMemory uint64) Record {
	return Record{
		timestamp:     ts.UTC().Truncate(time.Second),
		pid:           pid,
		name:          sanitizeName(name),
		memoryBytes:   memoryBytes,
		memoryPercent: percentOf(memoryBytes, totalMemory),
	}
}

// Timestamp is the capture time in UTC, truncated to the second.
func (r Record) Timestamp() time.Time { return r.timestamp }

// PID is the process identifier.
func (r Record) PID() int32 { return r.pid }

// Name is the sanitized process name; it may be empty.
func (r Record) Name() string { return r.name }

// MemoryBytes is the resident set size in bytes.
func (r Record) MemoryBytes() uint64 { return r.memoryBytes }

// MemoryPercent is MemoryBytes as a percentage of total physical memory.
func (r Record) MemoryPercent() float64 { return r.memoryPercent }

// Fields renders the record as export columns in Header order.
func (r Record) Fields() []string {
	return []string{
		r.timestamp.UTC().Format(TimestampLayout),
		r.name,
		strconv.FormatInt(int64(r.pid), 10),
		strconv.FormatUint(r.memoryBytes, 10),
		strconv.FormatFloat(r.memoryPercent, 'f', -1, 64),
	}
}

// ParseFields is the inverse of Fields. Timestamps are read as UTC.
func ParseFields(fields []string) (Record, error) {
	if len(fields) != len(Header()) {
		return Record{}, fmt.Errorf("expected %d fields, got %d", len(Header()), len(fields))
	}

	ts, err := time.ParseInLocation(TimestampLayout, fields[0], time.UTC)
	if err != nil {
		return Record{}, fmt.Errorf("invalid %s %q: %w", ColumnTimestamp, fields[0], err)
	}
	pid, err := strconv.ParseInt(fields[2], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("invalid %s %q: %w", ColumnProcessID, fields[2], err)
	}
	mem, err := strconv.ParseUint(fields[3], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid %s %q: %w", ColumnMemoryBytes, fields[3], err)
	}
	pct, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return Record{}, fmt.Errorf("invalid %s %q: %w", ColumnMemoryPercent, fields[4], err)
	}
	if pct < 0 || math.IsNaN(pct) {
		return Record{}, fmt.Errorf("invalid %s %q: must not be negative", ColumnMemoryPercent, fields[4])
	}

	return Record{
		timestamp:     ts,
		pid:           int32(pid),
		name:          fields[1],
		memoryBytes:   mem,
		memoryPercent: pct,
	}, nil
}

type recordView struct {
	Timestamp     string  `json:"timestamp" yaml:"timestamp"`
	ProcessName   string  `json:"processName" yaml:"processName"`
	ProcessID     int32   `json:"processId" yaml:"processId"`
	MemoryBytes   uint64  `json:"memoryBytes" yaml:"memoryBytes"`
	MemoryPercent float64 `json:"memoryPercent" yaml:"memoryPercent"`
}

func (r Record) view() recordView {
	return recordView{
		Timestamp:     r.timestamp.UTC().Format(TimestampLayout),
		ProcessName:   r.name,
		ProcessID:     r.pid,
		MemoryBytes:   r.memoryBytes,
		MemoryPercent: r.memoryPercent,
	}
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.view())
}

// MarshalYAML implements yaml.Marshaler.
func (r Record) MarshalYAML() (any, error) {
	return r.view(), nil
}

func percentOf(part, total uint64) float64 {
	if total == 0 {
		return 0
	}
	pct := float64(part) / float64(total) * 100
	if pct < 0 || math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0
	}
	return math.Round(pct*10000) / 10000
}

// sanitizeName drops control characters and replaces ill-formed UTF-8 so
// the export stays valid UTF-8 with one row per line.
func sanitizeName(name string) string {
	if utf8.ValidString(name) && strings.IndexFunc(name, unicode.IsControl) < 0 {
		return strings.TrimSpace(name)
	}
	t := transform.Chain(runes.ReplaceIllFormed(), runes.Remove(runes.Predicate(unicode.IsControl)))
	clean, _, err := transform.String(t, name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(clean)
}
