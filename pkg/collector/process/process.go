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

// Package process reads process memory through gopsutil, which supports
// Linux, macOS, Windows and the BSDs.
package process

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	cnserrors "github.com/NVIDIA/memtrack/pkg/errors"
)

// Provider implements collector.Provider on top of gopsutil.
type Provider struct{}

// Name identifies the backend.
func (p *Provider) Name() string {
	return "gopsutil"
}

// PIDs enumerates visible processes.
func (p *Provider) PIDs(ctx context.Context) ([]int32, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	return pids, nil
}

// TotalMemory returns total physical memory in bytes.
func (p *Provider) TotalMemory(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read virtual memory: %w", err)
	}
	return vm.Total, nil
}

// ReadProcess returns the name and resident set size of pid. A failure to
// read the name is not an error; the name is left empty.
func (p *Provider) ReadProcess(ctx context.Context, pid int32) (string, uint64, error) {
	proc, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", 0, classify(pid, err)
	}

	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return "", 0, classify(pid, err)
	}

	name, err := proc.NameWithContext(ctx)
	if err != nil {
		name = ""
	}

	return name, info.RSS, nil
}

func classify(pid int32, err error) error {
	ctx := map[string]any{"pid": pid}
	switch {
	case errors.Is(err, process.ErrorProcessNotRunning), errors.Is(err, fs.ErrNotExist):
		return cnserrors.WrapWithContext(cnserrors.ErrCodeNotFound, "process exited", err, ctx)
	case errors.Is(err, fs.ErrPermission), errors.Is(err, os.ErrPermission):
		return cnserrors.WrapWithContext(cnserrors.ErrCodeUnauthorized, "access denied", err, ctx)
	case errors.Is(err, context.DeadlineExceeded):
		return cnserrors.WrapWithContext(cnserrors.ErrCodeTimeout, "process read timed out", err, ctx)
	default:
		return cnserrors.WrapWithContext(cnserrors.ErrCodeInternal, "failed to read process", err, ctx)
	}
}
