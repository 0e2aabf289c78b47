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
	"io"
	"slices"

	"github.com/spf13/cobra"

	"chainguard.dev/condakit/pkg/conda/matchspec"
	"chainguard.dev/condakit/pkg/conda/version"
	"chainguard.dev/condakit/pkg/conda/versionspec"
)

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse",
		Short: "Parse versions, version specs and match specs and print their canonical form",
	}
	cmd.AddCommand(parseSubcmd("version", "Parse versions; with --sort, print them in ascending order", ParseVersions))
	cmd.AddCommand(parseSubcmd("versionspec", "Parse version specs", ParseVersionSpecs))
	cmd.AddCommand(parseSubcmd("matchspec", "Parse match specs", ParseMatchSpecs))
	return cmd
}

func parseSubcmd(use, short string, run func(io.Writer, []string, bool) error) *cobra.Command {
	var sorted bool
	cmd := &cobra.Command{
		Use:     use + " <text>...",
		Short:   short,
		Example: fmt.Sprintf(`  condakit parse %s <text>`, use),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.OutOrStdout(), args, sorted)
		},
	}
	if use == "version" {
		cmd.Flags().BoolVar(&sorted, "sort", false, "print the versions in ascending order")
	}
	return cmd
}

// ParseVersions prints each version on its own line.
func ParseVersions(w io.Writer, texts []string, sorted bool) error {
	vs := make([]version.Version, 0, len(texts))
	for _, t := range texts {
		v, err := version.Parse(t)
		if err != nil {
			return err
		}
		vs = append(vs, v)
	}
	if sorted {
		slices.SortStableFunc(vs, version.Compare)
	}
	for _, v := range vs {
		fmt.Fprintln(w, v)
	}
	return nil
}

// ParseVersionSpecs prints the canonical form of each version spec.
func ParseVersionSpecs(w io.Writer, texts []string, _ bool) error {
	for _, t := range texts {
		vs, err := versionspec.Parse(t)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, vs)
	}
	return nil
}

// ParseMatchSpecs prints the canonical form of each match spec.
func ParseMatchSpecs(w io.Writer, texts []string, _ bool) error {
	for _, t := range texts {
		ms, err := matchspec.Parse(t)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, ms)
	}
	return nil
}
