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
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// EventTimestampLayout is the timestamp format of event log lines, rendered
// in UTC.
const EventTimestampLayout = "2006-01-02 15:04:05"

// EventLog is an append-only, line-oriented event log:
//
//	2025-01-15 10:30:00 [INFO] captured 312 processes tick=4
//
// It is also a slog.Handler, so code can log through slog.New(eventLog).
// Writes never fail from the caller's point of view: when the file cannot
// be written the line goes to the fallback writer (stderr by default) and
// the file is retried on the next line.
type EventLog struct {
	state  *eventState
	level  slog.Leveler
	mirror slog.Handler
	attrs  []slog.Attr
	prefix string
}

type eventState struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	fallback io.Writer
	degraded bool
	closed   bool
	now      func() time.Time
}

// EventLogOption configures an EventLog.
type EventLogOption func(*EventLog)

// WithEventLevel sets the minimum level written (default INFO).
func WithEventLevel(level slog.Leveler) EventLogOption {
	return func(e *EventLog) {
		e.level = level
	}
}

// WithFallback sets the writer used while the file is unwritable.
func WithFallback(w io.Writer) EventLogOption {
	return func(e *EventLog) {
		e.state.fallback = w
	}
}

// WithMirror also forwards every record to h, typically the structured
// stderr logger.
func WithMirror(h slog.Handler) EventLogOption {
	return func(e *EventLog) {
		e.mirror = h
	}
}

// OpenEventLog opens path for appending, creating it and its parent
// directory when absent. Failing to open is the only error EventLog ever
// returns.
func OpenEventLog(path string, opts ...EventLogOption) (*EventLog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("event log path cannot be empty")
	}

	e := &EventLog{
		state: &eventState{
			path:     path,
			fallback: os.Stderr,
			now:      time.Now,
		},
		level: slog.LevelInfo,
	}
	for _, opt := range opts {
		opt(e)
	}

	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	e.state.file = f
	return e, nil
}

func openAppend(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create event log directory %q: %w", dir, err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log %q: %w", path, err)
	}
	return f, nil
}

// Path returns the event log file path.
func (e *EventLog) Path() string {
	return e.state.path
}

// Degraded reports whether the last write went to the fallback writer.
func (e *EventLog) Degraded() bool {
	e.state.mu.Lock()
	defer e.state.mu.Unlock()
	return e.state.degraded
}

// Log appends one line at level. Extra args are key/value pairs as in slog.
func (e *EventLog) Log(level slog.Level, msg string, args ...any) {
	ctx := context.Background()
	if !e.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(e.state.now(), level, msg, 0)
	r.Add(args...)
	_ = e.Handle(ctx, r)
}

// Info logs at INFO.
func (e *EventLog) Info(msg string, args ...any) { e.Log(slog.LevelInfo, msg, args...) }

// Warn logs at WARN.
func (e *EventLog) Warn(msg string, args ...any) { e.Log(slog.LevelWarn, msg, args...) }

// Error logs at ERROR.
func (e *EventLog) Error(msg string, args ...any) { e.Log(slog.LevelError, msg, args...) }

// Enabled implements slog.Handler.
func (e *EventLog) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= e.level.Level() {
		return true
	}
	return e.mirror != nil && e.mirror.Enabled(ctx, level)
}

// Handle implements slog.Handler. It always returns nil.
func (e *EventLog) Handle(ctx context.Context, r slog.Record) error {
	if e.mirror != nil && e.mirror.Enabled(ctx, r.Level) {
		_ = e.mirror.Handle(ctx, r.Clone())
	}
	if r.Level < e.level.Level() {
		return nil
	}
	e.state.write(e.format(r))
	return nil
}

// WithAttrs implements slog.Handler.
func (e *EventLog) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := e.clone()
	for _, a := range attrs {
		a.Key = e.prefix + a.Key
		c.attrs = append(c.attrs, a)
	}
	if c.mirror != nil {
		c.mirror = c.mirror.WithAttrs(attrs)
	}
	return c
}

// WithGroup implements slog.Handler.
func (e *EventLog) WithGroup(name string) slog.Handler {
	if name == "" {
		return e
	}
	c := e.clone()
	c.prefix = e.prefix + name + "."
	if c.mirror != nil {
		c.mirror = c.mirror.WithGroup(name)
	}
	return c
}

func (e *EventLog) clone() *EventLog {
	c := *e
	c.attrs = append([]slog.Attr(nil), e.attrs...)
	return &c
}

// Close flushes and closes the file. Later lines go to the fallback writer.
// Close is idempotent.
func (e *EventLog) Close() error {
	s := e.state
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.file == nil {
		return nil
	}
	syncErr := s.file.Sync()
	closeErr := s.file.Close()
	s.file = nil
	if syncErr != nil {
		return fmt.Errorf("failed to sync event log: %w", syncErr)
	}
	return closeErr
}

func (e *EventLog) format(r slog.Record) string {
	ts := r.Time
	if ts.IsZero() {
		ts = e.state.now()
	}

	var b strings.Builder
	b.WriteString(ts.UTC().Format(EventTimestampLayout))
	b.WriteString(" [")
	b.WriteString(r.Level.String())
	b.WriteString("] ")
	b.WriteString(oneLine(r.Message))

	for _, a := range e.attrs {
		appendAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&b, e.prefix, a)
		return true
	})
	b.WriteByte('\n')
	return b.String()
}

func appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, p, ga)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	v := a.Value.String()
	if v == "" || strings.ContainsAny(v, " \t\n\r\"=") {
		v = strconv.Quote(v)
	}
	b.WriteString(v)
}

func oneLine(s string) string {
	if !strings.ContainsAny(s, "\r\n") {
		return s
	}
	return strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(s)
}

// write appends line to the file, reopening it after an earlier failure,
// and falls back to the fallback writer when that is not possible.
func (s *eventState) write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		if s.file == nil {
			if f, err := openAppend(s.path); err == nil {
				s.file = f
			}
		}
		if s.file != nil {
			_, err := io.WriteString(s.file, line)
			if err == nil {
				err = s.file.Sync()
			}
			if err == nil {
				s.degraded = false
				return
			}
			if !s.degraded {
				fmt.Fprintf(s.fallback, "event log %s unwritable, falling back: %v\n", s.path, err)
			}
			_ = s.file.Close()
			s.file = nil
		}
		s.degraded = true
	}

	_, _ = io.WriteString(s.fallback, line)
}
