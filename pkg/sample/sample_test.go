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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var testTime = time.Date(2025, 3, 14, 15, 9, 26, 535897932, time.UTC)

func TestNewRecord(t *testing.T) {
	tests := []struct {
		name        string
		mem         uint64
		total       uint64
		wantPercent float64
	}{
		{"quarter of memory", 256 << 20, 1 << 30, 25},
		{"zero memory is valid", 0, 1 << 30, 0},
		{"unknown total", 512, 0, 0},
		{"overshoot tolerated", 1100, 1000, 110},
		{"rounded to four decimals", 1, 3, 33.3333},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecord(testTime, 42, "worker", tt.mem, tt.total)
			assert.Equal(t, tt.mem, r.MemoryBytes())
			assert.InDelta(t, tt.wantPercent, r.MemoryPercent(), 1e-9)
			assert.GreaterOrEqual(t, r.MemoryPercent(), 0.0)
		})
	}
}

func TestNewRecord_TruncatesTimestamp(t *testing.T) {
	r := NewRecord(testTime, 1, "init", 10, 100)
	assert.Equal(t, 0, r.Timestamp().Nanosecond())
	assert.Equal(t, 26, r.Timestamp().Second())
}

func TestRecord_TimestampsSortAcrossOffsetChange(t *testing.T) {
	edt := time.FixedZone("EDT", -4*60*60)
	est := time.FixedZone("EST", -5*60*60)

	tests := []struct {
		name   string
		before time.Time
		after  time.Time
	}{
		{
			"clocks fall back",
			time.Date(2025, 11, 2, 1, 30, 0, 0, edt),
			time.Date(2025, 11, 2, 1, 10, 0, 0, est),
		},
		{
			"clocks spring forward",
			time.Date(2025, 3, 9, 1, 59, 0, 0, est),
			time.Date(2025, 3, 9, 3, 1, 0, 0, edt),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.True(t, tt.before.Before(tt.after))

			first := NewRecord(tt.before, 1, "a", 1, 1).Fields()[0]
			second := NewRecord(tt.after, 1, "a", 1, 1).Fields()[0]
			assert.Less(t, first, second)
			assert.Equal(t, tt.after.UTC().Format(TimestampLayout), second)

			parsed, err := ParseFields(NewRecord(tt.after, 1, "a", 1, 1).Fields())
			require.NoError(t, err)
			assert.True(t, parsed.Timestamp().Equal(tt.after))
		})
	}
}

func TestNewRecord_SanitizesName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "nginx", "nginx"},
		{"surrounding space", "  kworker/0:1  ", "kworker/0:1"},
		{"control characters", "bad\nname\t", "badname"},
		{"invalid utf8", "proc\xff", "proc�"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRecord(testTime, 7, tt.in, 1, 1)
			assert.Equal(t, tt.want, r.Name())
		})
	}
}

func TestRecord_FieldsRoundTrip(t *testing.T) {
	r := NewRecord(testTime, 1234, "postgres: writer", 98765432, 1<<34)

	fields := r.Fields()
	require.Len(t, fields, len(Header()))
	assert.Equal(t, "2025-03-14 15:09:26", fields[0])
	assert.Equal(t, "postgres: writer", fields[1])
	assert.Equal(t, "1234", fields[2])
	assert.Equal(t, "98765432", fields[3])

	parsed, err := ParseFields(fields)
	require.NoError(t, err)
	assert.Equal(t, r, parsed)
}

func TestParseFields_Errors(t *testing.T) {
	tests := []struct {
		name   string
		fields []string
		errSub string
	}{
		{"too few fields", []string{"a", "b"}, "expected 5 fields"},
		{"bad timestamp", []string{"yesterday", "x", "1", "1", "1"}, ColumnTimestamp},
		{"bad pid", []string{"2025-03-14 15:09:26", "x", "abc", "1", "1"}, ColumnProcessID},
		{"negative memory", []string{"2025-03-14 15:09:26", "x", "1", "-5", "1"}, ColumnMemoryBytes},
		{"negative percent", []string{"2025-03-14 15:09:26", "x", "1", "5", "-0.5"}, ColumnMemoryPercent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFields(tt.fields)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestRecord_MarshalJSON(t *testing.T) {
	r := NewRecord(testTime, 9, "sshd", 2048, 4096)

	b, err := json.Marshal(r)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, "sshd", got["processName"])
	assert.EqualValues(t, 9, got["processId"])
	assert.EqualValues(t, 50, got["memoryPercent"])
}

func TestBatch_CopiesRecords(t *testing.T) {
	in := []Record{
		NewRecord(testTime, 1, "a", 1, 10),
		NewRecord(testTime, 2, "b", 2, 10),
	}
	b := NewBatch(testTime, in)

	in[0] = NewRecord(testTime, 99, "mutated", 0, 10)
	out := b.Records()
	out[1] = NewRecord(testTime, 98, "mutated", 0, 10)

	got := b.Records()
	assert.Equal(t, int32(1), got[0].PID())
	assert.Equal(t, int32(2), got[1].PID())
}

func TestBatch_NilIsEmpty(t *testing.T) {
	var b *Batch
	assert.Equal(t, 0, b.Len())
	assert.Nil(t, b.Records())
	assert.True(t, b.Timestamp().IsZero())
	for range b.All() {
		t.Fatal("nil batch should not yield")
	}
}

func TestBatch_TopAndFilter(t *testing.T) {
	b := NewBatch(testTime, []Record{
		NewRecord(testTime, 1, "small", 10, 1000),
		NewRecord(testTime, 2, "large", 500, 1000),
		NewRecord(testTime, 3, "medium", 100, 1000),
	})

	top := b.Top(2)
	require.Equal(t, 2, top.Len())
	assert.Equal(t, "large", top.Records()[0].Name())
	assert.Equal(t, "medium", top.Records()[1].Name())

	// Original order is untouched.
	assert.Equal(t, "small", b.Records()[0].Name())

	odd := b.Filter(func(r Record) bool { return r.PID()%2 == 1 })
	require.Equal(t, 2, odd.Len())
	assert.Equal(t, int32(1), odd.Records()[0].PID())
	assert.Equal(t, int32(3), odd.Records()[1].PID())
}

func TestBatch_Summarize(t *testing.T) {
	b := NewBatch(testTime, []Record{
		NewRecord(testTime, 1, "a", 10, 1000),
		NewRecord(testTime, 2, "b", 300, 1000),
		NewRecord(testTime, 3, "c", 20, 1000),
	})

	s := b.Summarize()
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, uint64(330), s.TotalBytes)
	assert.Equal(t, "b", s.Largest.Name())

	empty := NewBatch(testTime, nil).Summarize()
	assert.Equal(t, 0, empty.Count)
	assert.Equal(t, uint64(0), empty.TotalBytes)
}

func TestBatch_MarshalYAML(t *testing.T) {
	b := NewBatch(testTime, []Record{NewRecord(testTime, 5, "cron", 64, 128)})

	out, err := yaml.Marshal(b)
	require.NoError(t, err)

	s := string(out)
	assert.True(t, strings.Contains(s, "count: 1"), s)
	assert.True(t, strings.Contains(s, "processName: cron"), s)
}
