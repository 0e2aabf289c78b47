// Copyright 2025 Chainguard, Inc.
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
	"log/slog"
	"os"

	"github.com/chainguard-dev/clog/slag"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"sigs.k8s.io/release-utils/version"
)

func New() *cobra.Command {
	var workDir string
	level := slag.Level(slog.LevelInfo)
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	cmd := &cobra.Command{
		Use:               "condakit",
		Short:             "Resolve conda environments against local channels",
		DisableAutoGenTag: true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			slog.SetDefault(slog.New(charmlog.NewWithOptions(os.Stderr, charmlog.Options{
				ReportTimestamp: true,
				Level:           charmlog.Level(level),
			})))
			if workDir != "" {
				if err := os.Chdir(workDir); err != nil {
					return fmt.Errorf("failed to change dir to %s: %w", workDir, err)
				}
			}
			return nil
		},
	}

	cmd.AddCommand(solveCmd())
	cmd.AddCommand(lockCmd())
	cmd.AddCommand(dotCmd())
	cmd.AddCommand(parseCmd())
	cmd.AddCommand(version.Version())

	cmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", cwd, "working dir (default is current dir where executed)")
	cmd.PersistentFlags().Var(&level, "log-level", "log level (e.g. debug, info, warn, error)")
	return cmd
}
