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

package collector

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	cnserrors "github.com/NVIDIA/memtrack/pkg/errors"
	"github.com/NVIDIA/memtrack/pkg/sample"
)

// ProcessSource turns a Provider into a Source. Per-process reads run
// concurrently, each bounded by ReadTimeout, and the batch keeps the
// enumeration order.
type ProcessSource struct {
	provider    Provider
	workers     int
	readTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time

	// failures throttles per-process failure lines.
	failures *rate.Limiter
	sink     atomic.Pointer[FailureSink]

	mu   sync.Mutex
	last time.Time
	// inflight holds PIDs with a provider read in progress. A PID whose
	// read outlived its bound stays here, and is skipped, until it returns.
	inflight map[int32]struct{}
}

// NewProcessSource creates a source over provider. Zero or negative workers
// and readTimeout fall back to the package defaults.
func NewProcessSource(provider Provider, workers int, readTimeout time.Duration, logger *slog.Logger) *ProcessSource {
	if workers < 1 {
		workers = defaultWorkers
	}
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessSource{
		provider:    provider,
		workers:     workers,
		readTimeout: readTimeout,
		logger:      logger,
		now:         time.Now,
		failures:    rate.NewLimiter(rate.Limit(failureLogRate), failureLogBurst),
		inflight:    make(map[int32]struct{}),
	}
}

// SetFailureSink implements FailureReporter.
func (s *ProcessSource) SetFailureSink(sink FailureSink) {
	if sink == nil {
		s.sink.Store(nil)
		return
	}
	s.sink.Store(&sink)
}

const (
	failureLogRate  = 5
	failureLogBurst = 20
)

// Capture implements Source.
func (s *ProcessSource) Capture(ctx context.Context) (*sample.Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	ts := s.timestamp()

	pids, err := s.provider.PIDs(ctx)
	if err != nil {
		captureTotal.WithLabelValues(s.provider.Name(), "error").Inc()
		return nil, cnserrors.Wrap(codeFor(err), "failed to enumerate processes", err)
	}

	total, err := s.provider.TotalMemory(ctx)
	if err != nil {
		captureTotal.WithLabelValues(s.provider.Name(), "error").Inc()
		return nil, cnserrors.Wrap(codeFor(err), "failed to read total memory", err)
	}

	// Slots keep enumeration order regardless of completion order.
	slots := make([]sample.Record, len(pids))
	ok := make([]bool, len(pids))
	skipped := make(map[cnserrors.ErrorCode]int)
	var skipMu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.workers)
	for i, pid := range pids {
		g.Go(func() error {
			name, rss, err := s.read(ctx, pid)
			if err != nil {
				code := codeFor(err)
				skipMu.Lock()
				skipped[code]++
				skipMu.Unlock()
				s.logFailure(pid, code, err)
				return nil
			}
			slots[i] = sample.NewRecord(ts, pid, name, rss, total)
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		captureTotal.WithLabelValues(s.provider.Name(), "canceled").Inc()
		return nil, err
	}

	records := make([]sample.Record, 0, len(pids))
	for i := range slots {
		if ok[i] {
			records = append(records, slots[i])
		}
	}

	captureDuration.WithLabelValues(s.provider.Name()).Observe(time.Since(start).Seconds())
	captureTotal.WithLabelValues(s.provider.Name(), "success").Inc()
	for code, n := range skipped {
		processSkipped.WithLabelValues(string(code)).Add(float64(n))
	}

	s.logger.Debug("capture complete",
		slog.String("backend", s.provider.Name()),
		slog.Int("enumerated", len(pids)),
		slog.Int("captured", len(records)),
		slog.Int("skipped", len(pids)-len(records)),
		slog.Duration("duration", time.Since(start)))

	return sample.NewBatch(ts, records), nil
}

// read performs one bounded per-process read. A provider call that ignores
// its context keeps running in the background after the deadline; its
// result is discarded and the PID is skipped until that call returns, so a
// stuck process holds at most one goroutine.
func (s *ProcessSource) read(ctx context.Context, pid int32) (string, uint64, error) {
	if !s.acquire(pid) {
		return "", 0, cnserrors.NewWithContext(cnserrors.ErrCodeTimeout,
			"previous read still outstanding", map[string]any{"pid": pid})
	}

	rctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()

	type result struct {
		name string
		rss  uint64
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		name, rss, err := s.provider.ReadProcess(rctx, pid)
		s.release(pid)
		ch <- result{name, rss, err}
	}()

	select {
	case r := <-ch:
		return r.name, r.rss, r.err
	case <-rctx.Done():
		return "", 0, cnserrors.WrapWithContext(cnserrors.ErrCodeTimeout,
			"process read exceeded bound", rctx.Err(), map[string]any{"pid": pid})
	}
}

func (s *ProcessSource) acquire(pid int32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[pid]; busy {
		return false
	}
	s.inflight[pid] = struct{}{}
	return true
}

func (s *ProcessSource) release(pid int32) {
	s.mu.Lock()
	delete(s.inflight, pid)
	s.mu.Unlock()
}

// Outstanding returns the number of provider reads still running.
func (s *ProcessSource) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// timestamp returns a capture time that never moves backwards across calls.
func (s *ProcessSource) timestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now().Truncate(time.Second)
	if ts.Before(s.last) {
		ts = s.last
	}
	s.last = ts
	return ts
}

// logFailure reports a skipped process to the sink when one is set, and to
// the diagnostic logger otherwise. Exited processes are routine and stay
// at DEBUG.
func (s *ProcessSource) logFailure(pid int32, code cnserrors.ErrorCode, err error) {
	if !s.failures.Allow() {
		return
	}
	level := slog.LevelInfo
	switch code {
	case cnserrors.ErrCodeNotFound:
		level = slog.LevelDebug
	case cnserrors.ErrCodeTimeout:
		level = slog.LevelWarn
	}
	args := []any{
		slog.Int("pid", int(pid)),
		slog.String("reason", string(code)),
		slog.String("error", err.Error()),
	}
	if sink := s.sink.Load(); sink != nil {
		(*sink)(level, "skipping process", args...)
		return
	}
	s.logger.Log(context.Background(), level, "skipping process", args...)
}

// codeFor classifies a provider error.
func codeFor(err error) cnserrors.ErrorCode {
	if code := cnserrors.CodeOf(err); code != "" {
		return code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return cnserrors.ErrCodeTimeout
	case errors.Is(err, fs.ErrNotExist):
		return cnserrors.ErrCodeNotFound
	case errors.Is(err, fs.ErrPermission):
		return cnserrors.ErrCodeUnauthorized
	default:
		return cnserrors.ErrCodeInternal
	}
}
