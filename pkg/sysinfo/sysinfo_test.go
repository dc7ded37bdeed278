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

package sysinfo

import (
	"context"
	"errors"
	"testing"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cnserrors "github.com/NVIDIA/memtrack/pkg/errors"
	"github.com/NVIDIA/memtrack/pkg/header"
)

func stubHost(t *testing.T) {
	t.Helper()
	origHost, origCPU, origCounts, origVM, origSwap := hostInfo, cpuInfo, cpuCounts, virtualMem, swapMem
	t.Cleanup(func() {
		hostInfo, cpuInfo, cpuCounts, virtualMem, swapMem = origHost, origCPU, origCounts, origVM, origSwap
	})

	hostInfo = func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{
			Hostname:        "worker-1",
			OS:              "linux",
			Platform:        "ubuntu",
			PlatformVersion: "24.04",
			KernelVersion:   "6.8.0-45-generic",
			KernelArch:      "x86_64",
		}, nil
	}
	cpuInfo = func(context.Context) ([]cpu.InfoStat, error) {
		return []cpu.InfoStat{{ModelName: "AMD EPYC 7742"}}, nil
	}
	cpuCounts = func(_ context.Context, logical bool) (int, error) {
		if logical {
			return 128, nil
		}
		return 64, nil
	}
	virtualMem = func(context.Context) (*mem.VirtualMemoryStat, error) {
		return &mem.VirtualMemoryStat{Total: 512 << 30}, nil
	}
	swapMem = func(context.Context) (*mem.SwapMemoryStat, error) {
		return &mem.SwapMemoryStat{Total: 3 << 29}, nil
	}
}

func TestCollect(t *testing.T) {
	stubHost(t)

	info, err := Collect(context.Background(), "v1.0.0")
	require.NoError(t, err)

	assert.Equal(t, header.KindSystemInfo, info.Kind)
	assert.Equal(t, "v1.0.0", info.GetMetadata(header.MetadataVersion))
	assert.Equal(t, "linux", info.OS)
	assert.Equal(t, "worker-1", info.Hostname)
	assert.Equal(t, "6.8.0-45-generic", info.KernelRelease)
	assert.Equal(t, "x86_64", info.Architecture)
	assert.Equal(t, "AMD EPYC 7742", info.CPUModel)
	assert.Equal(t, 64, info.PhysicalCores)
	assert.Equal(t, 128, info.LogicalCores)
	assert.InDelta(t, 512.0, info.TotalMemoryGiB, 1e-9)
	assert.InDelta(t, 1.5, info.TotalSwapGiB, 1e-9)
	assert.Contains(t, info.LogAttrs(), "worker-1")
}

func TestCollect_CPUBestEffort(t *testing.T) {
	stubHost(t)
	cpuInfo = func(context.Context) ([]cpu.InfoStat, error) { return nil, errors.New("no cpuinfo") }
	cpuCounts = func(context.Context, bool) (int, error) { return 0, errors.New("no counts") }

	info, err := Collect(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, info.CPUModel)
	assert.Zero(t, info.LogicalCores)
}

func TestCollect_MemoryFailure(t *testing.T) {
	stubHost(t)
	virtualMem = func(context.Context) (*mem.VirtualMemoryStat, error) { return nil, errors.New("boom") }

	_, err := Collect(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, cnserrors.ErrCodeInternal, cnserrors.CodeOf(err))
}

func TestToGiB(t *testing.T) {
	assert.InDelta(t, 0.0, toGiB(0), 1e-9)
	assert.InDelta(t, 15.58, toGiB(16728793088), 1e-9)
}

func TestCollect_Live(t *testing.T) {
	if testing.Short() {
		t.Skip("reads the live host")
	}
	info, err := Collect(context.Background(), "test")
	require.NoError(t, err)
	assert.NotEmpty(t, info.OS)
	assert.Positive(t, info.TotalMemoryGiB)
}
