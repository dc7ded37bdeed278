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
	"net"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/memtrack/pkg/collector"
	"github.com/NVIDIA/memtrack/pkg/config"
	"github.com/NVIDIA/memtrack/pkg/defaults"
	"github.com/NVIDIA/memtrack/pkg/exporter"
	"github.com/NVIDIA/memtrack/pkg/header"
	"github.com/NVIDIA/memtrack/pkg/leak"
	"github.com/NVIDIA/memtrack/pkg/logging"
	"github.com/NVIDIA/memtrack/pkg/scheduler"
	"github.com/NVIDIA/memtrack/pkg/server"
	"github.com/NVIDIA/memtrack/pkg/sysinfo"
)

// sdNotify reports service state to systemd. It is a no-op when
// NOTIFY_SOCKET is unset. Overridden in tests.
var sdNotify = daemon.SdNotify

// RunSummary is the document written by `run --summary`.
type RunSummary struct {
	header.Header     `json:",inline" yaml:",inline"`
	scheduler.Summary `json:",inline" yaml:",inline"`
}

func runCmd() *cli.Command {
	return &cli.Command{
		Name:                  "run",
		EnableShellCompletion: true,
		Usage:                 "Sample process memory until interrupted and export it to CSV",
		Description: `Captures the resident memory of every visible process once per interval
and appends each batch to a CSV export file:

  timestamp,processName,processId,memoryBytes,memoryPercent

Lifecycle events go to an append-only event log. The run stops on SIGINT or
SIGTERM, after --max-ticks ticks, or when the export destination becomes
permanently unusable.

Exit status: 0 clean shutdown, 1 usage or configuration error, 2 startup
failure, 3 fatal export error.

# Examples

Sample every 5 seconds into /var/lib/memtrack:
  memtrack run --interval 5s --output-dir /var/lib/memtrack

Watch two extra processes for leaks and expose metrics:
  memtrack run --watch 1234,5678 --metrics-address 127.0.0.1:9090`,
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				Sources: env("CONFIG"),
			},
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "pause between the end of one tick and the start of the next",
				Value:   defaults.SampleInterval,
				Sources: env("INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Aliases: []string{"d"},
				Usage:   "directory for the export file and event log",
				Value:   ".",
				Sources: env("OUTPUT_DIR"),
			},
			&cli.StringFlag{
				Name:    "export-file",
				Usage:   "export file name (default memory_export_<YYYYMMDD_HHMMSS>.csv)",
				Sources: env("EXPORT_FILE"),
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "event log file name",
				Value:   config.DefaultLogFile,
				Sources: env("LOG_FILE"),
			},
			&cli.IntFlag{
				Name:    "max-ticks",
				Usage:   "stop after this many ticks (0 runs until interrupted)",
				Sources: env("MAX_TICKS"),
			},
			&cli.StringFlag{
				Name:    "metrics-address",
				Usage:   "serve /health, /ready and /metrics on host:port",
				Sources: env("METRICS_ADDRESS"),
			},
			&cli.IntFlag{
				Name:    "leak-window",
				Usage:   "samples per leak trend fit",
				Value:   defaults.LeakWindow,
				Sources: env("LEAK_WINDOW"),
			},
			&cli.FloatFlag{
				Name:    "leak-threshold",
				Usage:   "growth in MB/minute above which a watched process is flagged",
				Value:   defaults.LeakThresholdMBPerMinute,
				Sources: env("LEAK_THRESHOLD"),
			},
			&cli.StringSliceFlag{
				Name:    "watch",
				Usage:   "PIDs to watch for leaks in addition to the sampler itself (repeat or comma-separate)",
				Sources: env("WATCH"),
			},
			&cli.StringFlag{
				Name:  "summary",
				Usage: "write the run summary to a file or ConfigMap URI (cm://namespace/name) on exit",
			},
			&cli.StringFlag{
				Name:  "summary-format",
				Usage: "run summary format (json, yaml, table)",
				Value: "yaml",
			},
			kubeconfigFlag(),
		}, samplingFlags()...),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			summary, err := run(ctx, cfg, slog.Default())
			if path := cmd.String("summary"); path != "" {
				if werr := writeSummary(ctx, cmd, summary); werr != nil {
					slog.Error("failed to write run summary", "output", path, "error", werr)
				}
			}
			return err
		},
	}
}

// run wires the sampling pipeline for cfg and blocks until it stops.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) (scheduler.Summary, error) {
	runID := uuid.New().String()
	start := time.Now()
	exportPath := cfg.ExportPath(start)

	if info, err := sysinfo.Collect(ctx, version); err != nil {
		logger.Warn("failed to collect system information", "error", err)
	} else {
		logger.Info("system information", info.LogAttrs()...)
	}

	source := collector.NewDefaultFactory(
		collector.WithBackend(cfg.Backend),
		collector.WithWorkers(cfg.Workers),
		collector.WithReadTimeout(cfg.ReadTimeout),
		collector.WithLogger(logger),
	).CreateProcessSource()

	detector := leak.NewDetector(cfg.Leak.Window, cfg.Leak.ThresholdMB,
		cfg.WatchedPIDs(int32(os.Getpid()))...)

	sched := scheduler.New(source, exporter.New(exporter.WithLogger(logger)),
		scheduler.WithInterval(cfg.Interval),
		scheduler.WithExportPath(exportPath),
		scheduler.WithMaxTicks(cfg.MaxTicks),
		scheduler.WithLeakDetector(detector),
		scheduler.WithLogger(logger),
		scheduler.WithRunID(runID),
		scheduler.WithEventLog(func() (scheduler.EventLogger, error) {
			el, err := logging.OpenEventLog(cfg.LogPath(), logging.WithMirror(logger.Handler()))
			if err != nil {
				return nil, err
			}
			return el, nil
		}),
		scheduler.WithStateHook(notifyState(logger)),
		scheduler.WithTickHook(notifyTick(logger)),
	)

	var ln net.Listener
	if cfg.MetricsAddress != "" {
		var err error
		if ln, err = net.Listen("tcp", cfg.MetricsAddress); err != nil {
			return scheduler.Summary{}, fmt.Errorf("%w: metrics listener on %s: %w",
				scheduler.ErrStartup, cfg.MetricsAddress, err)
		}
	}

	logger.Info("starting",
		"runId", runID,
		"interval", cfg.Interval,
		"export", exportPath,
		"eventLog", cfg.LogPath(),
		"backend", cfg.Backend)

	// The server follows the scheduler: it stops once sampling has stopped.
	serveCtx, stopServe := context.WithCancel(ctx)
	defer stopServe()

	var summary scheduler.Summary
	g := new(errgroup.Group)
	g.Go(func() error {
		defer stopServe()
		var err error
		summary, err = sched.Run(ctx)
		return err
	})
	if ln != nil {
		srv := server.New(server.NewConfig(cfg.MetricsAddress),
			server.WithLogger(logger),
			server.WithReadiness(func() bool {
				return sched.State() == scheduler.StateRunning
			}))
		g.Go(func() error {
			if err := srv.Serve(serveCtx, ln); err != nil {
				// The endpoint is auxiliary; sampling continues without it.
				logger.Error("metrics server stopped", "error", err)
			}
			return nil
		})
	}

	err := g.Wait()
	return summary, err
}

func notifyState(logger *slog.Logger) func(scheduler.State) {
	return func(st scheduler.State) {
		var state string
		switch st {
		case scheduler.StateRunning:
			state = daemon.SdNotifyReady
		case scheduler.StateStopping:
			state = daemon.SdNotifyStopping
		default:
			return
		}
		if _, err := sdNotify(false, state); err != nil {
			logger.Debug("systemd notify failed", "state", state, "error", err)
		}
	}
}

func notifyTick(logger *slog.Logger) func(scheduler.TickReport) {
	return func(r scheduler.TickReport) {
		status := fmt.Sprintf("STATUS=tick %d: %d processes, %.1f MB", r.Tick, r.Processes,
			float64(r.TotalBytes)/(1<<20))
		if r.Err != nil {
			status = fmt.Sprintf("STATUS=tick %d failed: %v", r.Tick, r.Err)
		}
		if _, err := sdNotify(false, status); err != nil {
			logger.Debug("systemd notify failed", "error", err)
		}
	}
}

func writeSummary(ctx context.Context, cmd *cli.Command, summary scheduler.Summary) error {
	ser, err := openOutput(cmd.String("summary-format"), cmd.String("summary"), cmd.String("kubeconfig"))
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeSerializer(ser); cerr != nil {
			slog.Warn("failed to close summary output", "error", cerr)
		}
	}()

	doc := RunSummary{
		Header: header.New(header.KindRunSummary, version,
			header.WithMetadata(header.MetadataRunID, summary.RunID),
			header.WithMetadata(header.MetadataNode, nodeName())),
		Summary: summary,
	}
	return ser.Serialize(ctx, doc)
}
