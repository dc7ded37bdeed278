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
	"iter"
	"slices"
	"time"
)

// Batch is the set of records captured in one tick, in enumeration order.
type Batch struct {
	timestamp time.Time
	records   []Record
}

// NewBatch creates a batch stamped with ts. The records slice is copied.
func NewBatch(ts time.Time, records []Record) *Batch {
	return &Batch{
		timestamp: ts.UTC().Truncate(time.Second),
		records:   slices.Clone(records),
	}
}

// Timestamp is the capture time shared by every record of the batch.
func (b *Batch) Timestamp() time.Time {
	if b == nil {
		return time.Time{}
	}
	return b.timestamp
}

// Len returns the number of records; a nil batch is empty.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.records)
}

// Records returns a copy of the records in enumeration order.
func (b *Batch) Records() []Record {
	if b == nil {
		return nil
	}
	return slices.Clone(b.records)
}

// All iterates the records in enumeration order without copying.
func (b *Batch) All() iter.Seq[Record] {
	return func(yield func(Record) bool) {
		if b == nil {
			return
		}
		for _, r := range b.records {
			if !yield(r) {
				return
			}
		}
	}
}

// Filter returns a new batch holding only the records for which keep is true.
func (b *Batch) Filter(keep func(Record) bool) *Batch {
	out := make([]Record, 0, b.Len())
	for r := range b.All() {
		if keep(r) {
			out = append(out, r)
		}
	}
	return &Batch{timestamp: b.Timestamp(), records: out}
}

// Top returns a new batch with the n records using the most memory, largest
// first. n <= 0 keeps every record, still sorted.
func (b *Batch) Top(n int) *Batch {
	out := b.Records()
	slices.SortStableFunc(out, func(x, y Record) int {
		switch {
		case x.memoryBytes > y.memoryBytes:
			return -1
		case x.memoryBytes < y.memoryBytes:
			return 1
		default:
			return 0
		}
	})
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return &Batch{timestamp: b.Timestamp(), records: out}
}

// Summary aggregates a batch for tick log lines and run statistics.
type Summary struct {
	Count      int
	TotalBytes uint64
	Largest    Record
}

// Summarize computes the batch summary.
func (b *Batch) Summarize() Summary {
	var s Summary
	for r := range b.All() {
		s.Count++
		s.TotalBytes += r.memoryBytes
		if s.Count == 1 || r.memoryBytes > s.Largest.memoryBytes {
			s.Largest = r
		}
	}
	return s
}

type batchView struct {
	Timestamp string   `json:"timestamp" yaml:"timestamp"`
	Count     int      `json:"count" yaml:"count"`
	Records   []Record `json:"records" yaml:"records"`
}

func (b *Batch) view() batchView {
	records := b.Records()
	if records == nil {
		records = []Record{}
	}
	return batchView{
		Timestamp: b.Timestamp().UTC().Format(TimestampLayout),
		Count:     len(records),
		Records:   records,
	}
}

// MarshalJSON implements json.Marshaler.
func (b *Batch) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.view())
}

// MarshalYAML implements yaml.Marshaler.
func (b *Batch) MarshalYAML() (any, error) {
	return b.view(), nil
}
