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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"
	"k8s.io/client-go/rest"

	"github.com/NVIDIA/memtrack/pkg/collector"
	"github.com/NVIDIA/memtrack/pkg/config"
	"github.com/NVIDIA/memtrack/pkg/defaults"
	"github.com/NVIDIA/memtrack/pkg/k8s/client"
	"github.com/NVIDIA/memtrack/pkg/serializer"
)

const envPrefix = "MEMTRACK_"

func env(key string) cli.ValueSourceChain {
	return cli.EnvVars(envPrefix + key)
}

// Flags are constructed per command since urfave flags hold parse state.

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "output destination: file path, ConfigMap URI (cm://namespace/name), or empty for stdout",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"t"},
		Value:   string(serializer.FormatTable),
		Usage:   fmt.Sprintf("output format (supported: %s)", strings.Join(serializer.SupportedFormats(), ", ")),
	}
}

func kubeconfigFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "kubeconfig",
		Aliases: []string{"k"},
		Usage:   "path to kubeconfig for ConfigMap output (overrides KUBECONFIG)",
	}
}

// samplingFlags are shared by commands that capture process batches.
func samplingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "backend",
			Usage:   fmt.Sprintf("process metrics backend (supported: %s)", strings.Join(collector.SupportedBackends(), ", ")),
			Value:   string(collector.BackendGopsutil),
			Sources: env("BACKEND"),
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "concurrent per-process reads",
			Value:   defaults.ProcessReadWorkers,
			Sources: env("WORKERS"),
		},
		&cli.DurationFlag{
			Name:    "read-timeout",
			Usage:   "bound on a single process read; slower processes are skipped",
			Value:   defaults.ProcessReadTimeout,
			Sources: env("READ_TIMEOUT"),
		},
	}
}

func parseOutputFormat(cmd *cli.Command) (serializer.Format, error) {
	return parseFormat(cmd.String("format"))
}

func parseFormat(s string) (serializer.Format, error) {
	f := serializer.Format(strings.ToLower(strings.TrimSpace(s)))
	if f.IsUnknown() {
		return "", fmt.Errorf("unknown output format: %q (supported: %s)",
			s, strings.Join(serializer.SupportedFormats(), ", "))
	}
	return f, nil
}

// newSerializer opens the --output destination in the --format format.
func newSerializer(cmd *cli.Command) (serializer.Serializer, error) {
	return openOutput(cmd.String("format"), cmd.String("output"), cmd.String("kubeconfig"))
}

func openOutput(format, output, kubeconfig string) (serializer.Serializer, error) {
	f, err := parseFormat(format)
	if err != nil {
		return nil, err
	}

	var opts []serializer.ConfigMapOption
	if kubeconfig != "" {
		opts = append(opts, serializer.WithClientFactory(func() (client.Interface, *rest.Config, error) {
			return client.BuildKubeClient(kubeconfig)
		}))
	}
	return serializer.NewFileWriterOrStdout(f, output, opts...)
}

func closeSerializer(s serializer.Serializer) error {
	if c, ok := s.(serializer.Closer); ok {
		return c.Close()
	}
	return nil
}

// loadConfig resolves the run configuration. Precedence is flag, then
// environment, then the --config file, then built-in defaults.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if cmd.IsSet("interval") {
		cfg.Interval = cmd.Duration("interval")
	}
	if cmd.IsSet("output-dir") {
		cfg.OutputDir = cmd.String("output-dir")
	}
	if cmd.IsSet("export-file") {
		cfg.ExportFile = cmd.String("export-file")
	}
	if cmd.IsSet("log-file") {
		cfg.LogFile = cmd.String("log-file")
	}
	if cmd.IsSet("backend") {
		b, err := collector.ParseBackend(cmd.String("backend"))
		if err != nil {
			return nil, err
		}
		cfg.Backend = b
	}
	if cmd.IsSet("workers") {
		cfg.Workers = cmd.Int("workers")
	}
	if cmd.IsSet("read-timeout") {
		cfg.ReadTimeout = cmd.Duration("read-timeout")
	}
	if cmd.IsSet("max-ticks") {
		cfg.MaxTicks = cmd.Int("max-ticks")
	}
	if cmd.IsSet("metrics-address") {
		cfg.MetricsAddress = cmd.String("metrics-address")
	}
	if cmd.IsSet("leak-window") {
		cfg.Leak.Window = cmd.Int("leak-window")
	}
	if cmd.IsSet("leak-threshold") {
		cfg.Leak.ThresholdMB = cmd.Float("leak-threshold")
	}
	if cmd.IsSet("watch") {
		pids, err := parsePIDs(cmd.StringSlice("watch"))
		if err != nil {
			return nil, err
		}
		cfg.Leak.Watch = pids
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parsePIDs accepts repeated or comma-separated process IDs.
func parsePIDs(values []string) ([]int32, error) {
	var pids []int32
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			pid, err := strconv.ParseInt(part, 10, 32)
			if err != nil || pid <= 0 {
				return nil, fmt.Errorf("invalid pid %q", part)
			}
			pids = append(pids, int32(pid))
		}
	}
	return pids, nil
}

// nodeName identifies the host in document metadata. NODE_NAME wins so a
// pod reports its node rather than its own hostname.
func nodeName() string {
	for _, key := range []string{"NODE_NAME", "KUBERNETES_NODE_NAME"} {
		if n := os.Getenv(key); n != "" {
			return n
		}
	}
	h, _ := os.Hostname()
	return h
}
