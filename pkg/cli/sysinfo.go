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
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/memtrack/pkg/header"
	"github.com/NVIDIA/memtrack/pkg/sysinfo"
)

func sysinfoCmd() *cli.Command {
	return &cli.Command{
		Name:  "sysinfo",
		Usage: "Print host information (OS, kernel, CPU, memory)",
		Flags: []cli.Flag{
			outputFlag(),
			formatFlag(),
			kubeconfigFlag(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, err := parseOutputFormat(cmd); err != nil {
				return err
			}

			info, err := sysinfo.Collect(ctx, version)
			if err != nil {
				return err
			}
			if n := nodeName(); n != "" {
				info.Metadata[header.MetadataNode] = n
			}

			ser, err := newSerializer(cmd)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := closeSerializer(ser); cerr != nil {
					slog.Warn("failed to close output", "error", cerr)
				}
			}()
			return ser.Serialize(ctx, info)
		},
	}
}
