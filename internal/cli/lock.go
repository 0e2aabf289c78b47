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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"chainguard.dev/condakit/pkg/conda/solver"
	"chainguard.dev/condakit/pkg/environment"
	pkglock "chainguard.dev/condakit/pkg/lock"
	"chainguard.dev/condakit/pkg/version"
)

func lockCmd() *cobra.Command {
	var flags envFlags
	var output string

	cmd := &cobra.Command{
		Use:     "lock",
		Short:   "Resolve an environment and write the result to a lock file",
		Example: `  condakit lock <env.yaml>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = fmt.Sprintf("%s.lock.json", strings.TrimSuffix(args[0], filepath.Ext(args[0])))
			}
			env, err := flags.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			opts, err := flags.solverOptions(env.Subdirs)
			if err != nil {
				return err
			}
			return LockCmd(cmd.Context(), output, args[0], env, opts)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&output, "output", "", "path to file where lock file will be written")

	return cmd
}

// LockCmd solves env for each of its subdirs and writes the lock file to
// output.
func LockCmd(ctx context.Context, output, configFile string, env *environment.Environment, opts map[string][]solver.Option) error {
	log := clog.FromContext(ctx)

	sum, err := checksum(env)
	if err != nil {
		return err
	}
	solutions, err := solveAll(ctx, env, opts)
	if err != nil {
		return fmt.Errorf("failed to resolve environment: %w", err)
	}

	channels := make([]pkglock.LockChannel, 0, len(env.Channels))
	for _, ch := range env.Channels {
		u, err := ch.RedactedURL()
		if err != nil {
			return err
		}
		channels = append(channels, pkglock.LockChannel{Name: ch.Name, URL: u})
	}
	lock := pkglock.New(&pkglock.Config{
		Name:         configFile,
		DeepChecksum: sum,
		Generator:    version.Generator(),
	}, channels, solutions)

	log.Infof("writing %d locked packages to %s", len(lock.Contents.Packages), output)
	return lock.SaveToFile(output)
}

// checksum covers the environment after includes and flags were applied.
func checksum(env *environment.Environment) (string, error) {
	b, err := yaml.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("failed to marshal environment: %w", err)
	}
	h := sha256.Sum256(b)
	return "sha256-" + hex.EncodeToString(h[:]), nil
}
