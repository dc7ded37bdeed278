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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NVIDIA/memtrack/pkg/collector"
	"github.com/NVIDIA/memtrack/pkg/defaults"
	cnserrors "github.com/NVIDIA/memtrack/pkg/errors"
	"github.com/NVIDIA/memtrack/pkg/exporter"
	"github.com/NVIDIA/memtrack/pkg/leak"
	"github.com/NVIDIA/memtrack/pkg/sample"
)

var (
	// ErrStartup is returned by Run when the event log or the export
	// destination cannot be opened.
	ErrStartup = errors.New("startup failed")

	// ErrFatalExport is returned by Run when the export destination became
	// permanently unusable.
	ErrFatalExport = errors.New("fatal export error")
)

// Exporter is the durable destination for batches.
type Exporter interface {
	Open(path string) error
	Append(batch *sample.Batch) error
	Close() error
}

// EventLogger receives lifecycle and per-tick events. Log must not fail.
type EventLogger interface {
	Log(level slog.Level, msg string, args ...any)
	Close() error
}

// EventLogOpener opens the event log when the scheduler starts.
type EventLogOpener func() (EventLogger, error)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithInterval sets the pause between the end of one tick and the start of
// the next.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithExportPath sets the export destination opened on start.
func WithExportPath(path string) Option {
	return func(s *Scheduler) {
		s.exportPath = path
	}
}

// WithEventLog sets how the event log is opened. Without it events go to
// the diagnostic logger.
func WithEventLog(open EventLogOpener) Option {
	return func(s *Scheduler) {
		s.openEvents = open
	}
}

// WithMaxTicks stops the run after n ticks. Zero runs until shutdown.
func WithMaxTicks(n int) Option {
	return func(s *Scheduler) {
		s.maxTicks = n
	}
}

// WithLeakDetector feeds every batch to d.
func WithLeakDetector(d *leak.Detector) Option {
	return func(s *Scheduler) {
		s.detector = d
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRunID tags the start and summary lines with id.
func WithRunID(id string) Option {
	return func(s *Scheduler) {
		s.runID = id
	}
}

// WithTickHook registers fn to be called after every tick.
func WithTickHook(fn func(TickReport)) Option {
	return func(s *Scheduler) {
		s.onTick = fn
	}
}

// WithStateHook registers fn to be called on every state transition.
func WithStateHook(fn func(State)) Option {
	return func(s *Scheduler) {
		s.onState = fn
	}
}

// Scheduler drives the capture and export loop. A Scheduler runs once.
type Scheduler struct {
	source         collector.Source
	exporter       Exporter
	openEvents     EventLogOpener
	exportPath     string
	interval       time.Duration
	captureTimeout time.Duration
	maxTicks       int
	detector       *leak.Detector
	logger         *slog.Logger
	runID          string
	onTick         func(TickReport)
	onState        func(State)
	onSleep        func()
	now            func() time.Time

	state    atomic.Int32
	started  atomic.Bool
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	events  EventLogger
	summary Summary
}

// New returns an idle scheduler.
func New(source collector.Source, exp Exporter, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:         source,
		exporter:       exp,
		interval:       defaults.SampleInterval,
		captureTimeout: defaults.CollectorTimeout,
		logger:         slog.Default(),
		now:            time.Now,
		stopCh:         make(chan struct{}),
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Done is closed once the scheduler reaches Stopped.
func (s *Scheduler) Done() <-chan struct{} {
	return s.done
}

// Stop requests shutdown. The running tick finishes up to its next safe
// point. Stop may be called any number of times, before or during Run.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
	schedulerState.Set(float64(st))
	if s.onState != nil {
		s.onState(st)
	}
}

// Run opens the event log and the export destination, then samples until
// ctx is canceled, Stop is called, MaxTicks is reached or the destination
// fails permanently. The exporter and event log are closed on every path.
// The returned error wraps ErrStartup or ErrFatalExport.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	if !s.started.CompareAndSwap(false, true) {
		return Summary{}, cnserrors.New(cnserrors.ErrCodeInvalidRequest, "scheduler already started")
	}
	defer close(s.done)

	s.summary = Summary{RunID: s.runID, StartedAt: s.now()}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	select {
	case <-s.stopCh:
		cancel()
	default:
	}
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.start(); err != nil {
		s.setState(StateStopped)
		return s.summary, fmt.Errorf("%w: %w", ErrStartup, err)
	}
	s.setState(StateRunning)
	s.events.Log(slog.LevelInfo, "memory tracking started",
		"runId", s.runID, "interval", s.interval, "export", s.exportPath)

	fatal := s.loop(ctx)

	s.shutdown(fatal)
	if fatal != nil {
		return s.summary, fmt.Errorf("%w: %w", ErrFatalExport, fatal)
	}
	return s.summary, nil
}

func (s *Scheduler) start() error {
	if s.exportPath == "" {
		return cnserrors.New(cnserrors.ErrCodeInvalidRequest, "export path is required")
	}

	if s.openEvents == nil {
		s.events = loggerEvents{s.logger}
	} else {
		events, err := s.openEvents()
		if err != nil {
			s.logger.Error("failed to open event log", "error", err)
			return err
		}
		s.events = events
	}

	if err := s.exporter.Open(s.exportPath); err != nil {
		s.events.Log(slog.LevelError, "failed to open export destination",
			"path", s.exportPath, "error", err)
		if cerr := s.exporter.Close(); cerr != nil {
			s.logger.Debug("failed to close exporter after open failure", "error", cerr)
		}
		_ = s.events.Close()
		return err
	}

	if r, ok := s.source.(collector.FailureReporter); ok {
		r.SetFailureSink(s.events.Log)
	}
	return nil
}

// loop runs ticks until shutdown. It returns the fatal export error, if any.
func (s *Scheduler) loop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := s.tick(ctx); err != nil {
			return err
		}
		if s.maxTicks > 0 && s.summary.Ticks >= s.maxTicks {
			return nil
		}
		if !s.sleep(ctx) {
			return nil
		}
	}
}

// sleep waits one interval, counted from now, and reports false when
// interrupted by shutdown.
func (s *Scheduler) sleep(ctx context.Context) bool {
	t := time.NewTimer(s.interval)
	defer t.Stop()
	if s.onSleep != nil {
		s.onSleep()
	}
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// tick performs one Capture and Append. Only a fatal export error is
// returned; every other failure is logged and absorbed.
func (s *Scheduler) tick(ctx context.Context) error {
	start := s.now()
	report := TickReport{Tick: s.summary.Ticks + 1}
	defer func() {
		report.Duration = s.now().Sub(start)
		tickDuration.Observe(report.Duration.Seconds())
		if s.onTick != nil {
			s.onTick(report)
		}
	}()

	captureCtx, cancel := context.WithTimeout(ctx, s.captureTimeout)
	batch, err := s.source.Capture(captureCtx)
	cancel()
	if ctx.Err() != nil {
		ticksTotal.WithLabelValues("canceled").Inc()
		if batch.Len() > 0 {
			s.events.Log(slog.LevelWarn, fmt.Sprintf("shutdown requested, batch of %d records not exported", batch.Len()))
		}
		report.Err = ctx.Err()
		return nil
	}

	s.summary.Ticks++
	if err != nil {
		s.summary.FailedTicks++
		ticksTotal.WithLabelValues("capture_error").Inc()
		s.events.Log(slog.LevelError, "capture failed", "error", err)
		report.Err = err
		return nil
	}

	stats := batch.Summarize()
	report.Processes = stats.Count
	report.TotalBytes = stats.TotalBytes
	lastBatchSize.Set(float64(stats.Count))

	if stats.Count == 0 {
		s.summary.EmptyTicks++
		ticksTotal.WithLabelValues("empty").Inc()
		s.events.Log(slog.LevelInfo, "captured 0 processes")
		return nil
	}

	if err := s.exporter.Append(batch); err != nil {
		report.Err = err
		s.summary.FailedTicks++
		if exporter.IsFatal(err) {
			ticksTotal.WithLabelValues("fatal").Inc()
			s.events.Log(slog.LevelError, "export destination unusable", "path", s.exportPath, "error", err)
			return err
		}
		s.summary.LostBatches++
		ticksTotal.WithLabelValues("export_error").Inc()
		s.events.Log(slog.LevelError,
			fmt.Sprintf("export failed, batch of %d records lost", stats.Count), "error", err)
		return nil
	}

	s.summary.RowsExported += uint64(stats.Count)
	s.summary.observe(stats.TotalBytes)
	ticksTotal.WithLabelValues("ok").Inc()

	s.events.Log(slog.LevelInfo, fmt.Sprintf("captured %d processes", stats.Count),
		"totalMB", round2(float64(stats.TotalBytes)/(1<<20)),
		"largest", stats.Largest.Name(), "largestPid", stats.Largest.PID())

	s.checkLeaks(batch)
	return nil
}

func (s *Scheduler) checkLeaks(batch *sample.Batch) {
	if s.detector == nil {
		return
	}
	for _, a := range s.detector.Observe(batch) {
		level := slog.LevelWarn
		if a.Cleared {
			level = slog.LevelInfo
		} else {
			s.summary.LeakAlerts++
		}
		s.events.Log(level, a.String(), "pid", a.PID, "slopeMBPerMin", round2(a.SlopeMBPerMin))
	}
}

// shutdown moves the scheduler through Stopping to Stopped, closing the
// exporter and the event log.
func (s *Scheduler) shutdown(fatal error) {
	s.setState(StateStopping)

	if err := s.exporter.Close(); err != nil {
		s.events.Log(slog.LevelError, "failed to close export destination", "path", s.exportPath, "error", err)
	}

	s.summary.Uptime = s.now().Sub(s.summary.StartedAt)
	s.events.Log(slog.LevelInfo, "run summary", s.summary.LogAttrs()...)
	if fatal != nil {
		s.events.Log(slog.LevelError, fmt.Sprintf("memory tracking stopped: %v", fatal))
	} else {
		s.events.Log(slog.LevelInfo, "memory tracking stopped")
	}

	if r, ok := s.source.(collector.FailureReporter); ok {
		r.SetFailureSink(nil)
	}
	if err := s.events.Close(); err != nil {
		s.logger.Warn("failed to close event log", "error", err)
	}
	s.setState(StateStopped)
}

// loggerEvents sends events to a slog logger when no event log is set.
type loggerEvents struct {
	logger *slog.Logger
}

func (l loggerEvents) Log(level slog.Level, msg string, args ...any) {
	l.logger.Log(context.Background(), level, msg, args...)
}

func (loggerEvents) Close() error { return nil }
