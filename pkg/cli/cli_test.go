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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/memtrack/pkg/collector"
	"github.com/NVIDIA/memtrack/pkg/config"
	"github.com/NVIDIA/memtrack/pkg/exporter"
	"github.com/NVIDIA/memtrack/pkg/header"
	"github.com/NVIDIA/memtrack/pkg/sample"
	"github.com/NVIDIA/memtrack/pkg/scheduler"
	"github.com/NVIDIA/memtrack/pkg/serializer"
)

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		wantFormat serializer.Format
		wantErr    bool
	}{
		{name: "yaml", format: "yaml", wantFormat: serializer.FormatYAML},
		{name: "json", format: "json", wantFormat: serializer.FormatJSON},
		{name: "table", format: "table", wantFormat: serializer.FormatTable},
		{name: "upper case", format: "JSON", wantFormat: serializer.FormatJSON},
		{name: "csv is not a document format", format: "csv", wantErr: true},
		{name: "unknown", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got serializer.Format
			var err error
			cmd := &cli.Command{
				Name:  "test",
				Flags: []cli.Flag{formatFlag()},
				Action: func(_ context.Context, c *cli.Command) error {
					got, err = parseOutputFormat(c)
					return nil
				},
			}
			require.NoError(t, cmd.Run(context.Background(), []string{"test", "--format", tt.format}))

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantFormat, got)
		})
	}
}

func TestParsePIDs(t *testing.T) {
	pids, err := parsePIDs([]string{"10", "20, 30", ""})
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 20, 30}, pids)

	for _, bad := range []string{"abc", "0", "-4", "99999999999"} {
		_, err := parsePIDs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", want: ExitOK},
		{name: "usage", err: errors.New("bad flag"), want: ExitUsage},
		{name: "startup", err: fmt.Errorf("%w: no log", scheduler.ErrStartup), want: ExitStartup},
		{name: "fatal export", err: fmt.Errorf("%w: disk full", scheduler.ErrFatalExport), want: ExitFatalExport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

// resolveRunConfig parses args with the run command's flags and returns
// the resolved configuration.
func resolveRunConfig(t *testing.T, args ...string) (*config.Config, error) {
	t.Helper()
	var cfg *config.Config
	var err error
	cmd := runCmd()
	cmd.Action = func(_ context.Context, c *cli.Command) error {
		cfg, err = loadConfig(c)
		return nil
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"run"}, args...)))
	return cfg, err
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := resolveRunConfig(t)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memtrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`interval: 2s
workers: 3
outputDir: /from/file
backend: procfs
leak:
  window: 12
`), 0o600))

	t.Setenv("MEMTRACK_INTERVAL", "3s")
	t.Setenv("MEMTRACK_OUTPUT_DIR", "/from/env")

	cfg, err := resolveRunConfig(t, "--config", path, "--interval", "4s", "--watch", "7,8")
	require.NoError(t, err)

	assert.Equal(t, 4*time.Second, cfg.Interval, "flag beats env and file")
	assert.Equal(t, "/from/env", cfg.OutputDir, "env beats file")
	assert.Equal(t, 3, cfg.Workers, "file beats default")
	assert.Equal(t, collector.BackendProcfs, cfg.Backend)
	assert.Equal(t, 12, cfg.Leak.Window)
	assert.Equal(t, []int32{7, 8}, cfg.Leak.Watch)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "interval too short", args: []string{"--interval", "1ms"}},
		{name: "unknown backend", args: []string{"--backend", "wmi"}},
		{name: "bad watch pid", args: []string{"--watch", "x"}},
		{name: "bad metrics address", args: []string{"--metrics-address", "nohost"}},
		{name: "missing config file", args: []string{"--config", "/does/not/exist.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveRunConfig(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func testBatch() *sample.Batch {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	return sample.NewBatch(ts, []sample.Record{
		sample.NewRecord(ts, 1, "init", 10<<20, 1<<30),
		sample.NewRecord(ts, 2, "big", 300<<20, 1<<30),
		sample.NewRecord(ts, 3, "mid", 50<<20, 1<<30),
	})
}

func TestNewProcessSnapshot(t *testing.T) {
	t.Run("top sorts by memory", func(t *testing.T) {
		doc := newProcessSnapshot(testBatch(), nil, 2)
		require.Len(t, doc.Processes, 2)
		assert.Equal(t, "big", doc.Processes[0].Name())
		assert.Equal(t, "mid", doc.Processes[1].Name())
		assert.Equal(t, 2, doc.Count)
		assert.InDelta(t, 350.0, doc.TotalMB, 0.001)
		assert.Equal(t, header.KindProcessSnapshot, doc.GetKind())
	})

	t.Run("pid filter", func(t *testing.T) {
		doc := newProcessSnapshot(testBatch(), []int32{1, 3}, 0)
		require.Len(t, doc.Processes, 2)
		assert.Equal(t, int32(3), doc.Processes[0].PID())
		assert.Equal(t, int32(1), doc.Processes[1].PID())
	})

	t.Run("no match is empty, not nil", func(t *testing.T) {
		doc := newProcessSnapshot(testBatch(), []int32{99}, 0)
		assert.NotNil(t, doc.Processes)
		assert.Empty(t, doc.TableRows())
	})

	t.Run("table renderer", func(t *testing.T) {
		doc := newProcessSnapshot(testBatch(), nil, 1)
		assert.Equal(t, sample.Header(), doc.TableHeader())
		require.Len(t, doc.TableRows(), 1)
		assert.Equal(t, doc.Processes[0].Fields(), doc.TableRows()[0])
	})
}

type staticSource struct {
	batch *sample.Batch
	err   error
}

func (s staticSource) Capture(context.Context) (*sample.Batch, error) {
	return s.batch, s.err
}

func runSnapshot(t *testing.T, src collector.Source, args ...string) error {
	t.Helper()
	var runErr error
	cmd := &cli.Command{
		Name:  "snapshot",
		Flags: []cli.Flag{outputFlag(), formatFlag(), kubeconfigFlag()},
		Action: func(ctx context.Context, c *cli.Command) error {
			runErr = snapshot(ctx, c, src, nil, 0)
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"snapshot"}, args...)))
	return runErr
}

func TestSnapshot_WritesDocument(t *testing.T) {
	t.Setenv("NODE_NAME", "node-a")
	out := filepath.Join(t.TempDir(), "snap.json")

	require.NoError(t, runSnapshot(t, staticSource{batch: testBatch()}, "--format", "json", "--output", out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	var doc struct {
		Kind      string            `json:"kind"`
		Metadata  map[string]string `json:"metadata"`
		Count     int               `json:"count"`
		Processes []map[string]any  `json:"processes"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, string(header.KindProcessSnapshot), doc.Kind)
	assert.Equal(t, "node-a", doc.Metadata[header.MetadataNode])
	assert.Equal(t, "3", doc.Metadata[metadataCaptured])
	assert.NotEmpty(t, doc.Metadata[header.MetadataRunID])
	assert.Equal(t, 3, doc.Count)
	require.Len(t, doc.Processes, 3)
	assert.Equal(t, "big", doc.Processes[0]["processName"])
}

func TestSnapshot_CaptureError(t *testing.T) {
	err := runSnapshot(t, staticSource{err: errors.New("no /proc")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no /proc")
}

func TestNodeName(t *testing.T) {
	t.Setenv("NODE_NAME", "")
	t.Setenv("KUBERNETES_NODE_NAME", "kube-node")
	assert.Equal(t, "kube-node", nodeName())

	t.Setenv("NODE_NAME", "node")
	assert.Equal(t, "node", nodeName())
}

type notifications struct {
	mu     sync.Mutex
	states []string
}

func (n *notifications) notify(_ bool, state string) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, state)
	return false, nil
}

func (n *notifications) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.states...)
}

func stubNotify(t *testing.T) *notifications {
	t.Helper()
	n := &notifications{}
	orig := sdNotify
	sdNotify = n.notify
	t.Cleanup(func() { sdNotify = orig })
	return n
}

func TestRun_SamplesLiveHost(t *testing.T) {
	if testing.Short() {
		t.Skip("reads the live process table")
	}
	n := stubNotify(t)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.OutputDir = dir
	cfg.ExportFile = "export.csv"
	cfg.Interval = 100 * time.Millisecond
	cfg.MaxTicks = 2
	cfg.MetricsAddress = "127.0.0.1:0"

	var logs bytes.Buffer
	logger := testLogger(&logs)

	summary, err := run(context.Background(), cfg, logger)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Ticks)
	assert.NotEmpty(t, summary.RunID)

	records, err := exporter.ReadFile(filepath.Join(dir, "export.csv"))
	require.NoError(t, err)
	assert.NotEmpty(t, records)
	assert.EqualValues(t, len(records), summary.RowsExported)

	events, err := os.ReadFile(filepath.Join(dir, config.DefaultLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(events), "memory tracking started")
	assert.Contains(t, string(events), "memory tracking stopped")

	states := n.all()
	require.NotEmpty(t, states)
	assert.Equal(t, "READY=1", states[0])
	assert.Equal(t, "STOPPING=1", states[len(states)-1])
	statuses := 0
	for _, s := range states {
		if strings.HasPrefix(s, "STATUS=") {
			statuses++
		}
	}
	assert.Equal(t, 2, statuses)
}

func TestRun_MetricsListenerInUse(t *testing.T) {
	stubNotify(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.MetricsAddress = ln.Addr().String()

	_, err = run(context.Background(), cfg, testLogger(nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, scheduler.ErrStartup)
	assert.Equal(t, ExitStartup, exitCode(err))
}

func TestRun_StartupFailure(t *testing.T) {
	stubNotify(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	cfg := config.Default()
	cfg.OutputDir = filepath.Join(blocker, "sub")

	_, err := run(context.Background(), cfg, testLogger(nil))
	require.Error(t, err)
	assert.Equal(t, ExitStartup, exitCode(err))
}

func TestExecute_ConfigErrorIsUsage(t *testing.T) {
	var stderr bytes.Buffer
	code := execute(context.Background(),
		[]string{name, "run", "--interval", "1ms", "--output-dir", t.TempDir()}, &stderr)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, stderr.String(), "interval")
}

func TestWriteSummary(t *testing.T) {
	out := filepath.Join(t.TempDir(), "summary.json")
	cmd := runCmd()
	cmd.Action = func(ctx context.Context, c *cli.Command) error {
		return writeSummary(ctx, c, scheduler.Summary{RunID: "run-1", Ticks: 4})
	}
	require.NoError(t, cmd.Run(context.Background(),
		[]string{"run", "--summary", out, "--summary-format", "json"}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, string(header.KindRunSummary), doc["kind"])
	assert.Equal(t, "run-1", doc["runId"])
	assert.EqualValues(t, 4, doc["ticks"])
}

func testLogger(w *bytes.Buffer) *slog.Logger {
	if w == nil {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
