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
	"fmt"
	"log/slog"
	"time"

	"github.com/NVIDIA/memtrack/pkg/collector/process"
	"github.com/NVIDIA/memtrack/pkg/collector/procfs"
	"github.com/NVIDIA/memtrack/pkg/defaults"
)

// Backend names a Provider implementation.
type Backend string

const (
	// BackendGopsutil reads process metrics through gopsutil (all platforms).
	BackendGopsutil Backend = "gopsutil"
	// BackendProcfs reads /proc directly (Linux only).
	BackendProcfs Backend = "procfs"
)

const (
	defaultWorkers     = defaults.ProcessReadWorkers
	defaultReadTimeout = defaults.ProcessReadTimeout
)

// SupportedBackends lists the accepted backend names.
func SupportedBackends() []string {
	return []string{string(BackendGopsutil), string(BackendProcfs)}
}

// ParseBackend validates a backend name.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case BackendGopsutil, BackendProcfs:
		return Backend(s), nil
	case "":
		return BackendGopsutil, nil
	default:
		return "", fmt.Errorf("unknown backend %q, supported: %v", s, SupportedBackends())
	}
}

// Factory creates sources with their dependencies.
// This interface enables dependency injection for testing.
type Factory interface {
	CreateProcessSource() Source
}

// Option configures a DefaultFactory.
type Option func(*DefaultFactory)

// WithBackend selects the process metrics backend.
func WithBackend(b Backend) Option {
	return func(f *DefaultFactory) {
		f.Backend = b
	}
}

// WithWorkers sets the number of concurrent per-process reads.
func WithWorkers(n int) Option {
	return func(f *DefaultFactory) {
		f.Workers = n
	}
}

// WithReadTimeout bounds a single process read.
func WithReadTimeout(d time.Duration) Option {
	return func(f *DefaultFactory) {
		f.ReadTimeout = d
	}
}

// WithProcRoot overrides the /proc mount point used by the procfs backend.
func WithProcRoot(root string) Option {
	return func(f *DefaultFactory) {
		f.ProcRoot = root
	}
}

// WithLogger sets the logger used for per-process failures.
func WithLogger(l *slog.Logger) Option {
	return func(f *DefaultFactory) {
		f.Logger = l
	}
}

// DefaultFactory creates sources with production dependencies.
type DefaultFactory struct {
	Backend     Backend
	Workers     int
	ReadTimeout time.Duration
	ProcRoot    string
	Logger      *slog.Logger
}

// NewDefaultFactory creates a factory with default settings.
func NewDefaultFactory(opts ...Option) *DefaultFactory {
	f := &DefaultFactory{
		Backend:     BackendGopsutil,
		Workers:     defaultWorkers,
		ReadTimeout: defaultReadTimeout,
		ProcRoot:    procfs.DefaultRoot,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateProvider returns the Provider for the configured backend.
func (f *DefaultFactory) CreateProvider() Provider {
	if f.Backend == BackendProcfs {
		return &procfs.Provider{Root: f.ProcRoot}
	}
	return &process.Provider{}
}

// CreateProcessSource creates the process memory source.
func (f *DefaultFactory) CreateProcessSource() Source {
	return NewProcessSource(f.CreateProvider(), f.Workers, f.ReadTimeout, f.Logger)
}
