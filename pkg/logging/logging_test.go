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

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var lineRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} \[(DEBUG|INFO|WARN|ERROR)\] .+$`)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	s := strings.TrimRight(string(b), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLogLevel(tt.in))
		})
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newStructuredLogger(&buf, "memtrack", "v1.2.3", "info")
	l.Info("started", "interval", "1s")
	l.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "started", entry["msg"])
	assert.Equal(t, "memtrack", entry["module"])
	assert.Equal(t, "v1.2.3", entry["version"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestEventLog_CreatesAndFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "memory_tracker.log")

	el, err := OpenEventLog(path)
	require.NoError(t, err)

	el.Info("tracker started", "interval", time.Second, "dir", "/var/lib/memtrack")
	el.Warn("multi\nline message")
	el.Log(slog.LevelDebug, "below threshold")
	require.NoError(t, el.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.Regexp(t, lineRE, l)
	}
	assert.True(t, strings.HasSuffix(lines[0], "[INFO] tracker started interval=1s dir=/var/lib/memtrack"), lines[0])
	assert.True(t, strings.HasSuffix(lines[1], "[WARN] multi line message"), lines[1])
}

func TestEventLog_TimestampsInUTC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory_tracker.log")

	el, err := OpenEventLog(path)
	require.NoError(t, err)
	el.state.now = func() time.Time {
		return time.Date(2025, 11, 2, 1, 30, 0, 0, time.FixedZone("EDT", -4*60*60))
	}
	el.Info("tick")
	require.NoError(t, el.Close())

	assert.Equal(t, []string{"2025-11-02 05:30:00 [INFO] tick"}, readLines(t, path))
}

func TestEventLog_AppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	require.NoError(t, os.WriteFile(path, []byte("2025-01-01 00:00:00 [INFO] previous run\n"), 0o644))

	el, err := OpenEventLog(path)
	require.NoError(t, err)
	el.Info("resumed")
	require.NoError(t, el.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "previous run")
	assert.Contains(t, lines[1], "resumed")
}

func TestEventLog_OpenFailure(t *testing.T) {
	_, err := OpenEventLog("")
	require.Error(t, err)

	dir := t.TempDir()
	// A directory cannot be opened for writing.
	_, err = OpenEventLog(dir)
	require.Error(t, err)
}

func TestEventLog_FallbackAndRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	var fallback bytes.Buffer

	el, err := OpenEventLog(path, WithFallback(&fallback))
	require.NoError(t, err)
	el.Info("first")

	// Break the underlying handle to simulate a failed write.
	el.state.mu.Lock()
	require.NoError(t, el.state.file.Close())
	el.state.mu.Unlock()

	assert.NotPanics(t, func() { el.Error("second") })
	assert.True(t, el.Degraded())
	assert.Contains(t, fallback.String(), "[ERROR] second")
	assert.Contains(t, fallback.String(), "unwritable")

	el.Info("third")
	assert.False(t, el.Degraded())
	require.NoError(t, el.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "first")
	assert.Contains(t, lines[1], "third")
}

func TestEventLog_AfterClose(t *testing.T) {
	var fallback bytes.Buffer
	el, err := OpenEventLog(filepath.Join(t.TempDir(), "events.log"), WithFallback(&fallback))
	require.NoError(t, err)

	require.NoError(t, el.Close())
	require.NoError(t, el.Close())

	el.Info("late line")
	assert.Contains(t, fallback.String(), "late line")
}

func TestEventLog_AsSlogHandler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	var mirror bytes.Buffer

	el, err := OpenEventLog(path,
		WithEventLevel(slog.LevelInfo),
		WithMirror(slog.NewTextHandler(&mirror, &slog.HandlerOptions{Level: slog.LevelDebug})))
	require.NoError(t, err)

	logger := slog.New(el).With("run", "abc").WithGroup("tick")
	logger.Info("captured", "count", 3, slog.Group("top", "pid", 42))
	logger.Debug("mirror only")
	require.NoError(t, el.Close())

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	assert.True(t, strings.HasSuffix(lines[0], "[INFO] captured run=abc tick.count=3 tick.top.pid=42"), lines[0])
	assert.Contains(t, mirror.String(), "mirror only")
}

func TestEventLog_ConcurrentWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	el, err := OpenEventLog(path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				el.Info("concurrent", "worker", i, "n", j)
			}
		}()
	}
	wg.Wait()
	require.NoError(t, el.Close())

	lines := readLines(t, path)
	assert.Len(t, lines, 200)
	for _, l := range lines {
		assert.Regexp(t, lineRE, l)
	}
}

func TestEventLog_EnabledRespectsMirror(t *testing.T) {
	el, err := OpenEventLog(filepath.Join(t.TempDir(), "events.log"), WithEventLevel(slog.LevelWarn))
	require.NoError(t, err)
	defer el.Close()

	ctx := context.TODO()
	assert.False(t, el.Enabled(ctx, slog.LevelInfo))
	assert.True(t, el.Enabled(ctx, slog.LevelError))
}
