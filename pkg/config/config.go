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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/utils/ptr"

	"github.com/NVIDIA/memtrack/pkg/collector"
	"github.com/NVIDIA/memtrack/pkg/defaults"
	cnserrors "github.com/NVIDIA/memtrack/pkg/errors"
	"github.com/NVIDIA/memtrack/pkg/exporter"
)

// DefaultLogFile is the event log name used when none is configured.
const DefaultLogFile = "memory_tracker.log"

// Leak configures the leak detector.
type Leak struct {
	Window      int
	ThresholdMB float64
	// Watch lists PIDs to watch in addition to the sampler itself.
	Watch []int32
}

// Config is the resolved configuration of a sampling run.
type Config struct {
	Interval    time.Duration
	OutputDir   string
	ExportFile  string // empty selects a name derived from the start time
	LogFile     string
	Backend     collector.Backend
	Workers     int
	ReadTimeout time.Duration
	MaxTicks    int // 0 runs until shutdown
	Leak        Leak

	MetricsAddress string // empty disables the endpoint
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Interval:    defaults.SampleInterval,
		OutputDir:   ".",
		LogFile:     DefaultLogFile,
		Backend:     collector.BackendGopsutil,
		Workers:     defaults.ProcessReadWorkers,
		ReadTimeout: defaults.ProcessReadTimeout,
		Leak: Leak{
			Window:      defaults.LeakWindow,
			ThresholdMB: defaults.LeakThresholdMBPerMinute,
		},
	}
}

type fileLeak struct {
	Window      *int     `yaml:"window"`
	ThresholdMB *float64 `yaml:"thresholdMB"`
	Watch       []int32  `yaml:"watch"`
}

type file struct {
	Interval       *time.Duration `yaml:"interval"`
	OutputDir      *string        `yaml:"outputDir"`
	ExportFile     *string        `yaml:"exportFile"`
	LogFile        *string        `yaml:"logFile"`
	Backend        *string        `yaml:"backend"`
	Workers        *int           `yaml:"workers"`
	ReadTimeout    *time.Duration `yaml:"readTimeout"`
	MaxTicks       *int           `yaml:"maxTicks"`
	MetricsAddress *string        `yaml:"metricsAddress"`
	Leak           *fileLeak      `yaml:"leak"`
}

// LoadFile reads a YAML file and overlays the keys it sets onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return cnserrors.WrapWithContext(cnserrors.ErrCodeInvalidRequest,
			"failed to read config file", err, map[string]any{"path": path})
	}
	if err := c.Decode(data); err != nil {
		return cnserrors.WrapWithContext(cnserrors.ErrCodeInvalidRequest,
			"invalid config file", err, map[string]any{"path": path})
	}
	return nil
}

// Decode overlays YAML content onto c. Unknown keys are rejected.
func (c *Config) Decode(data []byte) error {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	c.Interval = ptr.Deref(f.Interval, c.Interval)
	c.OutputDir = ptr.Deref(f.OutputDir, c.OutputDir)
	c.ExportFile = ptr.Deref(f.ExportFile, c.ExportFile)
	c.LogFile = ptr.Deref(f.LogFile, c.LogFile)
	c.Workers = ptr.Deref(f.Workers, c.Workers)
	c.ReadTimeout = ptr.Deref(f.ReadTimeout, c.ReadTimeout)
	c.MaxTicks = ptr.Deref(f.MaxTicks, c.MaxTicks)
	c.MetricsAddress = ptr.Deref(f.MetricsAddress, c.MetricsAddress)
	if f.Backend != nil {
		b, err := collector.ParseBackend(*f.Backend)
		if err != nil {
			return err
		}
		c.Backend = b
	}
	if f.Leak != nil {
		c.Leak.Window = ptr.Deref(f.Leak.Window, c.Leak.Window)
		c.Leak.ThresholdMB = ptr.Deref(f.Leak.ThresholdMB, c.Leak.ThresholdMB)
		if f.Leak.Watch != nil {
			c.Leak.Watch = f.Leak.Watch
		}
	}
	return nil
}

// Validate checks every option and returns the first violation.
func (c *Config) Validate() error {
	switch {
	case c.Interval < defaults.MinSampleInterval:
		return invalid("interval", c.Interval, fmt.Sprintf("must be at least %s", defaults.MinSampleInterval))
	case c.OutputDir == "":
		return invalid("outputDir", c.OutputDir, "is required")
	case c.LogFile == "":
		return invalid("logFile", c.LogFile, "is required")
	case c.Workers < 1:
		return invalid("workers", c.Workers, "must be at least 1")
	case c.ReadTimeout <= 0:
		return invalid("readTimeout", c.ReadTimeout, "must be positive")
	case c.MaxTicks < 0:
		return invalid("maxTicks", c.MaxTicks, "must not be negative")
	case c.Leak.Window < 2:
		return invalid("leak.window", c.Leak.Window, "must be at least 2")
	case c.Leak.ThresholdMB <= 0:
		return invalid("leak.thresholdMB", c.Leak.ThresholdMB, "must be positive")
	}
	if _, err := collector.ParseBackend(string(c.Backend)); err != nil {
		return invalid("backend", c.Backend, err.Error())
	}
	for _, pid := range c.Leak.Watch {
		if pid <= 0 {
			return invalid("leak.watch", pid, "PIDs must be positive")
		}
	}
	if c.MetricsAddress != "" {
		if _, _, err := net.SplitHostPort(c.MetricsAddress); err != nil {
			return invalid("metricsAddress", c.MetricsAddress, err.Error())
		}
	}
	return nil
}

func invalid(field string, value any, reason string) error {
	return cnserrors.NewWithContext(cnserrors.ErrCodeInvalidRequest,
		fmt.Sprintf("invalid %s: %s", field, reason),
		map[string]any{"field": field, "value": value})
}

// ExportPath returns the export file for a run started at start.
func (c *Config) ExportPath(start time.Time) string {
	if c.ExportFile == "" {
		return exporter.FileName(c.OutputDir, start)
	}
	return c.resolve(c.ExportFile)
}

// LogPath returns the event log file.
func (c *Config) LogPath() string {
	return c.resolve(c.LogFile)
}

func (c *Config) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}

// WatchedPIDs returns the configured leak watch list with self prepended
// unless already present.
func (c *Config) WatchedPIDs(self int32) []int32 {
	pids := []int32{self}
	for _, pid := range c.Leak.Watch {
		if pid != self {
			pids = append(pids, pid)
		}
	}
	return pids
}
