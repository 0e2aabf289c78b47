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
	"io"
	"log/slog"
	"text/template"

	"github.com/chainguard-dev/clog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/condakit/pkg/conda/repodata"
	"chainguard.dev/condakit/pkg/conda/solver"
	"chainguard.dev/condakit/pkg/environment"
)

const (
	formatNameSpaceVersion             = `{{ .Name }} {{ .Version }}`
	formatNameSpaceVersionWithChannel  = `{{ .Name }} {{ .Version }} {{ .Channel }}`
	formatNameEqualsVersion            = `{{ .Name }}={{ .Version }}`
	formatNameEqualsVersionEqualsBuild = `{{ .Name }}={{ .Version }}={{ .Build }}`
	formatChannelNameVersionBuild      = `{{ .Channel }}::{{ .Name }}=={{ .Version }}={{ .Build }}`
	formatSpecList                     = `- {{ .Name }}={{ .Version }}={{ .Build }}`
	formatSpecListWithChannel          = `- {{ .Name }}={{ .Version }}={{ .Build }} # {{ .Channel }}/{{ .Subdir }}`
	formatExplicit                     = `{{ .URL }}`
	solveFormatDefault                 = formatNameSpaceVersion
)

var (
	solveFormats = map[string]string{
		"name-version":         formatNameSpaceVersion,
		"name-version-channel": formatNameSpaceVersionWithChannel,
		"name=version":         formatNameEqualsVersion,
		"name=version=build":   formatNameEqualsVersionEqualsBuild,
		"channel::name":        formatChannelNameVersionBuild,
		"speclist":             formatSpecList,
		"speclist-channel":     formatSpecListWithChannel,
		"explicit":             formatExplicit,
	}
)

type pkgInfo struct {
	Name        string
	Version     string
	Build       string
	BuildNumber uint64
	Channel     string
	Subdir      string
	Platform    string
	URL         string
}

func infoFor(platform string, r *repodata.Record) pkgInfo {
	return pkgInfo{
		Name:        r.Name,
		Version:     r.Version.String(),
		Build:       r.Build,
		BuildNumber: r.BuildNumber,
		Channel:     r.Channel,
		Subdir:      r.Subdir,
		Platform:    platform,
		URL:         r.URL,
	}
}

func solveCmd() *cobra.Command {
	var flags envFlags
	var format string

	cmd := &cobra.Command{
		Use:   "solve",
		Short: "Show the packages and versions an environment resolves to",
		Long: `Show the packages and versions an environment resolves to, for every configured subdir.

The output is one of several pre-defined formats, or can be customized to any go template, using
the provided vars. See https://pkg.go.dev/text/template for more information. Available vars are
.Name, .Version, .Build, .BuildNumber, .Channel, .Subdir, .Platform, .URL

The pre-defined formats are:
  name-version:          {{ .Name }} {{ .Version }}
  name-version-channel:  {{ .Name }} {{ .Version }} {{ .Channel }}
  name=version:          {{ .Name }}={{ .Version }}
  name=version=build:    {{ .Name }}={{ .Version }}={{ .Build }}
  channel::name:         {{ .Channel }}::{{ .Name }}=={{ .Version }}={{ .Build }}
  speclist:              - {{ .Name }}={{ .Version }}={{ .Build }}
  speclist-channel:      - {{ .Name }}={{ .Version }}={{ .Build }} # {{ .Channel }}/{{ .Subdir }}
  explicit:              {{ .URL }}

The default format is name-version.

speclist and speclist-channel are particularly useful for inserting back into the specs of an environment file.
When more than one subdir is solved, each subdir's packages are preceded by a "# <subdir>" line.
`,
		Example: `  condakit solve <env.yaml>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl := format
			if t, ok := solveFormats[format]; ok {
				tmpl = t
			}
			env, err := flags.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			opts, err := flags.solverOptions(env.Subdirs)
			if err != nil {
				return err
			}
			return SolveCmd(cmd.Context(), cmd.OutOrStdout(), tmpl, env, opts)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&format, "format", solveFormatDefault, "format for showing packages; if pre-defined from list, will use that, else go template. See https://pkg.go.dev/text/template for more information. Available vars are `.Name`, `.Version`, `.Build`, `.Channel`, `.Subdir`, `.Platform`, `.URL`")

	return cmd
}

// SolveCmd solves env for each of its subdirs and writes one line per
// package using the text/template format.
func SolveCmd(ctx context.Context, w io.Writer, format string, env *environment.Environment, opts map[string][]solver.Option) error {
	tmpl, err := template.New("format").Parse(format + "\n")
	if err != nil {
		return fmt.Errorf("parsing format: %w", err)
	}
	env.Summarize(clog.FromContext(ctx))

	solutions, err := solveAll(ctx, env, opts)
	if err != nil {
		return err
	}
	for _, subdir := range env.Subdirs {
		if len(env.Subdirs) > 1 {
			fmt.Fprintf(w, "# %s\n", subdir)
		}
		for _, r := range solutions[subdir].Records() {
			if err := tmpl.Execute(w, infoFor(subdir, r)); err != nil {
				return fmt.Errorf("executing template: %w", err)
			}
		}
	}
	return nil
}

// solveAll solves every subdir of env concurrently.
func solveAll(ctx context.Context, env *environment.Environment, opts map[string][]solver.Option) (map[string]*solver.Solution, error) {
	clog.FromContext(ctx).Infof("Determining packages for %d subdirs: %v", len(env.Subdirs), env.Subdirs)

	solutions := make([]*solver.Solution, len(env.Subdirs))
	g, ctx := errgroup.WithContext(ctx)
	for i, subdir := range env.Subdirs {
		g.Go(func() error {
			log := clog.New(slog.Default().Handler()).With("subdir", subdir)
			ctx := clog.WithLogger(ctx, log)

			sol, err := env.Solve(ctx, subdir, opts[subdir]...)
			if err != nil {
				return fmt.Errorf("solving %s: %w", subdir, err)
			}
			log.Infof("resolved %d packages in %d steps (%d backtracks)", sol.Len(), sol.Stats.Steps, sol.Stats.Backtracks)
			solutions[i] = sol
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*solver.Solution, len(solutions))
	for i, subdir := range env.Subdirs {
		out[subdir] = solutions[i]
	}
	return out, nil
}
