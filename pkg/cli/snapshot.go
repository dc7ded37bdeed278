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

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/memtrack/pkg/collector"
	"github.com/NVIDIA/memtrack/pkg/defaults"
	"github.com/NVIDIA/memtrack/pkg/header"
	"github.com/NVIDIA/memtrack/pkg/sample"
)

// metadataCaptured records how many processes the batch held before
// filtering.
const metadataCaptured = "captured"

// ProcessSnapshot is a single captured batch as a standalone document.
type ProcessSnapshot struct {
	header.Header `json:",inline" yaml:",inline"`

	Count     int             `json:"count" yaml:"count"`
	TotalMB   float64         `json:"totalMB" yaml:"totalMB"`
	Processes []sample.Record `json:"processes" yaml:"processes"`
}

// TableHeader implements serializer.TableRenderer.
func (s *ProcessSnapshot) TableHeader() []string {
	return sample.Header()
}

// TableRows implements serializer.TableRenderer.
func (s *ProcessSnapshot) TableRows() [][]string {
	rows := make([][]string, 0, len(s.Processes))
	for _, r := range s.Processes {
		rows = append(rows, r.Fields())
	}
	return rows
}

// newProcessSnapshot keeps the records of pids (all when empty), sorted by
// memory descending and limited to top when top > 0.
func newProcessSnapshot(batch *sample.Batch, pids []int32, top int, opts ...header.Option) *ProcessSnapshot {
	if len(pids) > 0 {
		batch = batch.Filter(func(r sample.Record) bool {
			return slices.Contains(pids, r.PID())
		})
	}
	batch = batch.Top(top)
	sum := batch.Summarize()

	opts = append([]header.Option{header.WithTimestamp(batch.Timestamp())}, opts...)
	processes := batch.Records()
	if processes == nil {
		processes = []sample.Record{}
	}
	return &ProcessSnapshot{
		Header:    header.New(header.KindProcessSnapshot, version, opts...),
		Count:     sum.Count,
		TotalMB:   math.Round(float64(sum.TotalBytes)/(1<<20)*100) / 100,
		Processes: processes,
	}
}

func snapshotCmd() *cli.Command {
	return &cli.Command{
		Name:                  "snapshot",
		EnableShellCompletion: true,
		Usage:                 "Capture one batch of process memory samples",
		Description: `Captures the resident memory of every visible process once and prints the
batch sorted by memory, largest first.

The snapshot can be output in JSON, YAML, or table format, to stdout, a file,
or a Kubernetes ConfigMap.

# Examples

Ten largest processes:
  memtrack snapshot --top 10

Two specific processes as YAML:
  memtrack snapshot --pid 1234 --pid 5678 --format yaml

Publish to a ConfigMap:
  memtrack snapshot --format json --output cm://monitoring/memtrack-snapshot`,
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:  "pid",
				Usage: "only include these PIDs (repeat or comma-separate)",
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "limit to the N largest processes (0 for all)",
			},
			outputFlag(),
			formatFlag(),
			kubeconfigFlag(),
		}, samplingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}
			pids, err := parsePIDs(cmd.StringSlice("pid"))
			if err != nil {
				return err
			}
			if cmd.Int("top") < 0 {
				return fmt.Errorf("invalid top %d: must not be negative", cmd.Int("top"))
			}
			backend, err := collector.ParseBackend(cmd.String("backend"))
			if err != nil {
				return err
			}

			source := collector.NewDefaultFactory(
				collector.WithBackend(backend),
				collector.WithWorkers(cmd.Int("workers")),
				collector.WithReadTimeout(cmd.Duration("read-timeout")),
				collector.WithLogger(slog.Default()),
			).CreateProcessSource()

			return snapshot(ctx, cmd, source, pids, cmd.Int("top"))
		},
	}
}

func snapshot(ctx context.Context, cmd *cli.Command, source collector.Source, pids []int32, top int) error {
	captureCtx, cancel := context.WithTimeout(ctx, defaults.CLISnapshotTimeout)
	defer cancel()

	batch, err := source.Capture(captureCtx)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	doc := newProcessSnapshot(batch, pids, top,
		header.WithMetadata(header.MetadataRunID, uuid.New().String()),
		header.WithMetadata(header.MetadataNode, nodeName()),
		header.WithMetadata(metadataCaptured, strconv.Itoa(batch.Len())))

	ser, err := newSerializer(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeSerializer(ser); cerr != nil {
			slog.Warn("failed to close output", "error", cerr)
		}
	}()

	slog.Debug("snapshot captured", "processes", batch.Len(), "selected", doc.Count)
	return ser.Serialize(ctx, doc)
}
