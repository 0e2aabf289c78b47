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
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"
	"github.com/tmc/dot"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/condakit/pkg/conda/matchspec"
	"chainguard.dev/condakit/pkg/conda/solver"
	"chainguard.dev/condakit/pkg/environment"
)

func dotCmd() *cobra.Command {
	var flags envFlags
	var web bool

	cmd := &cobra.Command{
		Use:   "dot",
		Short: "Output a digraph showing the resolved dependencies of an environment.",
		Long: `Output a digraph showing the resolved dependencies of an environment.

Only the first subdir of the environment is rendered; use --subdir to pick another one.
When the environment cannot be resolved, the graph shows the conflicting requirements instead.

# Render an svg of env.yaml
condakit dot env.yaml | dot -Tsvg > graph.svg

# Open browser to explore env.yaml
condakit dot --web env.yaml
`,
		Example: `  condakit dot <env.yaml>`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := flags.load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			opts, err := flags.solverOptions(env.Subdirs[:1])
			if err != nil {
				return err
			}
			if web {
				return serveDot(cmd.Context(), args[0], env, opts[env.Subdirs[0]])
			}
			return DotCmd(cmd.Context(), cmd.OutOrStdout(), args[0], env, opts[env.Subdirs[0]])
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&web, "web", false, "launch a browser")

	return cmd
}

// DotCmd writes the graph of env's first subdir to w. An unsatisfiable
// environment is rendered, not returned as an error.
func DotCmd(ctx context.Context, w io.Writer, configFile string, env *environment.Environment, opts []solver.Option) error {
	out, err := graph(ctx, configFile, env, opts)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, out.String())
	return err
}

func graph(ctx context.Context, configFile string, env *environment.Environment, opts []solver.Option) (*dot.Graph, error) {
	log := clog.FromContext(ctx)
	subdir := env.Subdirs[0]

	sol, solveErr := env.Solve(ctx, subdir, opts...)
	var uerr *solver.UnsatisfiableError
	if solveErr != nil && !errors.As(solveErr, &uerr) {
		return nil, solveErr
	}
	if solveErr != nil {
		log.Errorf("failed to resolve %s: %v", subdir, solveErr)
	}
	return render(configFile, env, sol, uerr), nil
}

func render(configFile string, env *environment.Environment, sol *solver.Solution, uerr *solver.UnsatisfiableError) *dot.Graph {
	out := dot.NewGraph("environment")
	if err := out.Set("rankdir", "LR"); err != nil {
		panic(err)
	}
	out.SetType(dot.DIGRAPH)

	file := dot.NewNode(configFile)
	out.AddNode(file)

	for _, spec := range env.Specs {
		n := dot.NewNode(spec)
		if err := n.Set("shape", "rect"); err != nil {
			panic(err)
		}
		out.AddNode(n)
		out.AddEdge(dot.NewEdge(file, n))

		ms, err := matchspec.ParseCached(spec)
		if err != nil || ms.IsNameless() || sol == nil {
			continue
		}
		if _, ok := sol.Get(ms.Name); ok && ms.Name != spec {
			out.AddEdge(dot.NewEdge(n, dot.NewNode(ms.Name)))
		}
	}

	if sol != nil {
		for _, r := range sol.Records() {
			n := dot.NewNode(r.Name)
			if err := n.Set("label", r.String()); err != nil {
				panic(err)
			}
			out.AddNode(n)

			for _, dep := range sol.Dependencies(r.Name) {
				d := dot.NewNode(dep)
				out.AddNode(d)
				out.AddEdge(dot.NewEdge(n, d))
			}
		}
	}

	if uerr != nil {
		errorNode := dot.NewNode("❌ error")
		out.AddNode(errorNode)
		for _, c := range uerr.Conflicts {
			cn := dot.NewNode("❌ " + c.Package)
			if err := cn.Set("label", fmt.Sprintf("❌ %s: %s", c.Package, c.Reason)); err != nil {
				panic(err)
			}
			out.AddNode(cn)
			out.AddEdge(dot.NewEdge(errorNode, cn))

			for _, e := range c.Edges {
				src := file
				if e.Source != nil {
					src = dot.NewNode(e.Source.Name)
					if err := src.Set("label", e.Source.String()); err != nil {
						panic(err)
					}
					out.AddNode(src)
				}
				edge := dot.NewEdge(src, cn)
				if err := edge.Set("label", e.Spec.String()); err != nil {
					panic(err)
				}
				out.AddEdge(edge)
			}
		}
	}

	return out
}

// serveDot renders the graph as svg on a local port and opens a browser on
// it. It needs graphviz's dot on the PATH.
func serveDot(ctx context.Context, configFile string, env *environment.Environment, opts []solver.Option) error {
	log := clog.FromContext(ctx)

	out, err := graph(ctx, configFile, env, opts)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		cmd := exec.CommandContext(r.Context(), "dot", "-Tsvg")
		cmd.Stdin = strings.NewReader(out.String())
		cmd.Stdout = w
		w.Header().Set("Content-Type", "image/svg+xml")
		if err := cmd.Run(); err != nil {
			fmt.Fprintf(w, "error rendering graph: %v", err)
		}
	})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 3 * time.Second,
	}
	log.Infof("serving graph on %s", l.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.Serve(l); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		return server.Close()
	})
	g.Go(func() error {
		return open.Run(fmt.Sprintf("http://localhost:%d", l.Addr().(*net.TCPAddr).Port))
	})
	return g.Wait()
}
