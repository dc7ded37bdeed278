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

// Package sysinfo describes the host memtrack runs on. The description is
// logged once when sampling starts and printed by the sysinfo command.
package sysinfo

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/errgroup"

	cnserrors "github.com/NVIDIA/memtrack/pkg/errors"
	"github.com/NVIDIA/memtrack/pkg/header"
)

const bytesPerGiB = 1 << 30

// Info is a point-in-time description of the host.
type Info struct {
	header.Header `json:",inline" yaml:",inline"`

	OS              string  `json:"os" yaml:"os"`
	Hostname        string  `json:"hostname" yaml:"hostname"`
	Platform        string  `json:"platform,omitempty" yaml:"platform,omitempty"`
	PlatformVersion string  `json:"platformVersion,omitempty" yaml:"platformVersion,omitempty"`
	KernelRelease   string  `json:"kernelRelease,omitempty" yaml:"kernelRelease,omitempty"`
	Architecture    string  `json:"architecture" yaml:"architecture"`
	CPUModel        string  `json:"cpuModel,omitempty" yaml:"cpuModel,omitempty"`
	PhysicalCores   int     `json:"physicalCores" yaml:"physicalCores"`
	LogicalCores    int     `json:"logicalCores" yaml:"logicalCores"`
	TotalMemoryGiB  float64 `json:"totalMemoryGiB" yaml:"totalMemoryGiB"`
	TotalSwapGiB    float64 `json:"totalSwapGiB" yaml:"totalSwapGiB"`
}

// LogAttrs flattens the description into slog key-value pairs.
func (i *Info) LogAttrs() []any {
	return []any{
		"os", i.OS,
		"hostname", i.Hostname,
		"platform", i.Platform,
		"kernel", i.KernelRelease,
		"arch", i.Architecture,
		"cpu", i.CPUModel,
		"physicalCores", i.PhysicalCores,
		"logicalCores", i.LogicalCores,
		"memoryGiB", i.TotalMemoryGiB,
		"swapGiB", i.TotalSwapGiB,
	}
}

// Overridden in tests.
var (
	hostInfo   = host.InfoWithContext
	cpuInfo    = cpu.InfoWithContext
	cpuCounts  = cpu.CountsWithContext
	virtualMem = mem.VirtualMemoryWithContext
	swapMem    = mem.SwapMemoryWithContext
)

// Collect gathers the host description. Host and memory totals are
// required; the CPU model and core counts are best effort.
func Collect(ctx context.Context, version string) (*Info, error) {
	info := &Info{
		Header:       header.New(header.KindSystemInfo, version),
		Architecture: runtime.GOARCH,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h, err := hostInfo(ctx)
		if err != nil {
			return cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to read host info", err)
		}
		info.OS = h.OS
		info.Hostname = h.Hostname
		info.Platform = h.Platform
		info.PlatformVersion = h.PlatformVersion
		info.KernelRelease = h.KernelVersion
		if h.KernelArch != "" {
			info.Architecture = h.KernelArch
		}
		return nil
	})

	g.Go(func() error {
		if cpus, err := cpuInfo(ctx); err == nil && len(cpus) > 0 {
			info.CPUModel = cpus[0].ModelName
		}
		if n, err := cpuCounts(ctx, false); err == nil {
			info.PhysicalCores = n
		}
		if n, err := cpuCounts(ctx, true); err == nil {
			info.LogicalCores = n
		}
		return nil
	})

	g.Go(func() error {
		vm, err := virtualMem(ctx)
		if err != nil {
			return cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to read memory totals", err)
		}
		info.TotalMemoryGiB = toGiB(vm.Total)

		sw, err := swapMem(ctx)
		if err != nil {
			return cnserrors.Wrap(cnserrors.ErrCodeInternal, "failed to read swap totals", err)
		}
		info.TotalSwapGiB = toGiB(sw.Total)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to collect system info: %w", err)
	}
	return info, nil
}

func toGiB(b uint64) float64 {
	return math.Round(float64(b)/bytesPerGiB*100) / 100
}
