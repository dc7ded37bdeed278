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

// Package procfs reads process memory straight from a Linux /proc tree.
//
// It needs no cgo or syscalls beyond file reads, so it works in minimal
// containers where only /proc is mounted, and it can be pointed at a
// fixture directory in tests.
package procfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/NVIDIA/memtrack/pkg/collector/file"
	cnserrors "github.com/NVIDIA/memtrack/pkg/errors"
)

// DefaultRoot is the standard procfs mount point.
const DefaultRoot = "/proc"

const (
	keyName     = "Name"
	keyVmRSS    = "VmRSS"
	keyMemTotal = "MemTotal"
)

// Provider implements collector.Provider by reading /proc/<pid>/status and
// /proc/meminfo.
type Provider struct {
	// Root is the procfs mount point. Empty means DefaultRoot.
	Root string
}

// Name identifies the backend.
func (p *Provider) Name() string {
	return "procfs"
}

func (p *Provider) root() string {
	if p.Root == "" {
		return DefaultRoot
	}
	return p.Root
}

func newParser() *file.Parser {
	return file.NewParser(
		file.WithKVDelimiter(":"),
		// Process names may start with '#' and carry arbitrary bytes.
		file.WithSkipComments(false),
		file.WithStrictUTF8(false),
	)
}

// PIDs lists the numeric entries of the procfs root.
func (p *Provider) PIDs(ctx context.Context) ([]int32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(p.root())
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", p.root(), err)
	}

	pids := make([]int32, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.ParseInt(e.Name(), 10, 32)
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, int32(pid))
	}
	return pids, nil
}

// TotalMemory returns MemTotal from meminfo in bytes.
func (p *Provider) TotalMemory(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	path := filepath.Join(p.root(), "meminfo")
	params, err := newParser().GetMap(path)
	if err != nil {
		return 0, err
	}

	v, ok := params[keyMemTotal]
	if !ok {
		return 0, fmt.Errorf("%s missing from %s", keyMemTotal, path)
	}
	return parseSize(v)
}

// ReadProcess returns Name and VmRSS from /proc/<pid>/status. Kernel
// threads have no VmRSS and report zero.
func (p *Provider) ReadProcess(ctx context.Context, pid int32) (string, uint64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	path := filepath.Join(p.root(), strconv.Itoa(int(pid)), "status")
	params, err := newParser().GetMap(path)
	if err != nil {
		return "", 0, classify(pid, err)
	}

	var rss uint64
	if v, ok := params[keyVmRSS]; ok {
		rss, err = parseSize(v)
		if err != nil {
			return "", 0, cnserrors.WrapWithContext(cnserrors.ErrCodeInternal,
				"malformed status file", err, map[string]any{"pid": pid, "path": path})
		}
	}

	return params[keyName], rss, nil
}

// parseSize converts a procfs size such as "5120 kB" to bytes.
func parseSize(v string) (uint64, error) {
	fields := strings.Fields(v)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, fmt.Errorf("invalid size %q", v)
	}

	n, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", v, err)
	}

	if len(fields) == 1 {
		return n, nil
	}

	switch strings.ToLower(fields[1]) {
	case "b":
		return n, nil
	case "kb":
		return n << 10, nil
	case "mb":
		return n << 20, nil
	case "gb":
		return n << 30, nil
	default:
		return 0, fmt.Errorf("invalid size unit in %q", v)
	}
}

func classify(pid int32, err error) error {
	ctx := map[string]any{"pid": pid}
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ESRCH):
		return cnserrors.WrapWithContext(cnserrors.ErrCodeNotFound, "process exited", err, ctx)
	case errors.Is(err, fs.ErrPermission):
		return cnserrors.WrapWithContext(cnserrors.ErrCodeUnauthorized, "access denied", err, ctx)
	default:
		return cnserrors.WrapWithContext(cnserrors.ErrCodeInternal, "failed to read process status", err, ctx)
	}
}
