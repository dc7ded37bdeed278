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
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/memtrack/pkg/logging"
	"github.com/NVIDIA/memtrack/pkg/scheduler"
)

const (
	name           = "memtrack"
	versionDefault = "dev"
)

// Exit codes returned by Execute.
const (
	ExitOK          = 0
	ExitUsage       = 1
	ExitStartup     = 2
	ExitFatalExport = 3
)

var (
	// overridden during build with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

func newRootCmd() *cli.Command {
	return &cli.Command{
		Name:                  name,
		Usage:                 "per-process memory sampler",
		Version:               fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		EnableShellCompletion: true,
		Description: `Samples resident memory of every visible process on a fixed interval,
appends each batch to a CSV export file and records lifecycle events in an
event log.

  run      - sample until interrupted (or --max-ticks) and export to CSV
  snapshot - capture one batch and print it as json, yaml or a table
  sysinfo  - print host information`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "diagnostic log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars(logging.LogLevelEnvVar, "MEMTRACK_LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.SetDefaultStructuredLoggerWithLevel(name, version, cmd.String("log-level"))
			return ctx, nil
		},
		Commands: []*cli.Command{
			runCmd(),
			snapshotCmd(),
			sysinfoCmd(),
		},
	}
}

// Execute runs the CLI with os.Args and returns the process exit code.
// SIGINT and SIGTERM cancel the command context.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return execute(ctx, os.Args, os.Stderr)
}

func execute(ctx context.Context, args []string, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.ErrWriter = stderr
	err := cmd.Run(ctx, args)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
	}
	return exitCode(err)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, scheduler.ErrFatalExport):
		return ExitFatalExport
	case errors.Is(err, scheduler.ErrStartup):
		return ExitStartup
	default:
		return ExitUsage
	}
}
