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
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"chainguard.dev/condakit/pkg/conda/repodata"
	"chainguard.dev/condakit/pkg/conda/solver"
	"chainguard.dev/condakit/pkg/environment"
	pkglock "chainguard.dev/condakit/pkg/lock"
)

// envFlags are the flags shared by every command that reads an environment
// file.
type envFlags struct {
	channels []string
	specs    []string
	subdirs  []string
	priority string
	locked   string
	maxSteps int
}

func (f *envFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.channels, "channel-append", "c", []string{}, "extra channels to search, as name or name=location")
	cmd.Flags().StringSliceVarP(&f.specs, "spec-append", "s", []string{}, "extra specs to resolve")
	cmd.Flags().StringSliceVar(&f.subdirs, "subdir", nil, "subdirs to solve for (e.g., linux-64,osx-arm64) -- default is the environment's, or the host subdir. Can also use 'host'")
	cmd.Flags().StringVar(&f.priority, "channel-priority", "", "override the channel priority: strict, flexible or disabled")
	cmd.Flags().StringVar(&f.locked, "locked", "", "lock file whose packages are preferred when still admissible")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", 0, "give up after this many solver steps (0 means no limit)")
}

// Options holds the extra settings applied on top of an environment file.
type Options struct {
	Channels        []environment.Channel
	Specs           []string
	Subdirs         []string
	ChannelPriority string
}

func (f *envFlags) options() (Options, error) {
	o := Options{
		Specs:           f.specs,
		Subdirs:         f.subdirs,
		ChannelPriority: f.priority,
	}
	for _, c := range f.channels {
		name, loc, _ := strings.Cut(c, "=")
		if name == "" {
			return Options{}, fmt.Errorf("channel %q has no name", c)
		}
		if loc != "" && !strings.Contains(loc, "://") {
			abs, err := filepath.Abs(loc)
			if err != nil {
				return Options{}, err
			}
			loc = abs
		}
		o.Channels = append(o.Channels, environment.Channel{Name: name, URL: loc})
	}
	return o, nil
}

// LoadEnvironment reads path, applies o and validates the result.
func LoadEnvironment(ctx context.Context, path string, o Options) (*environment.Environment, error) {
	var env environment.Environment
	if err := env.Load(ctx, path); err != nil {
		return nil, err
	}
	env.Merge(environment.Environment{
		Channels:        o.Channels,
		Specs:           o.Specs,
		ChannelPriority: o.ChannelPriority,
	})
	if len(o.Subdirs) != 0 {
		env.Subdirs = make([]string, 0, len(o.Subdirs))
		for _, s := range o.Subdirs {
			if s == "host" {
				s = repodata.HostPlatform().String()
			}
			env.Subdirs = append(env.Subdirs, s)
		}
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("invalid environment %s: %w", path, err)
	}
	return &env, nil
}

func (f *envFlags) load(ctx context.Context, path string) (*environment.Environment, error) {
	o, err := f.options()
	if err != nil {
		return nil, err
	}
	return LoadEnvironment(ctx, path, o)
}

// solverOptions returns the per subdir solver options selected by the flags.
func (f *envFlags) solverOptions(subdirs []string) (map[string][]solver.Option, error) {
	out := make(map[string][]solver.Option, len(subdirs))
	var l pkglock.Lock
	if f.locked != "" {
		var err error
		if l, err = pkglock.FromFile(f.locked); err != nil {
			return nil, err
		}
	}
	for _, subdir := range subdirs {
		if f.maxSteps != 0 {
			out[subdir] = append(out[subdir], solver.WithMaxSteps(f.maxSteps))
		}
		if f.locked == "" {
			continue
		}
		records, err := l.LockedRecords(subdir)
		if err != nil {
			return nil, err
		}
		out[subdir] = append(out[subdir], solver.WithLocked(records...))
	}
	return out, nil
}
