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

package cli_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"chainguard.dev/condakit/internal/cli"
	"chainguard.dev/condakit/pkg/conda/repodata"
	"chainguard.dev/condakit/pkg/conda/solver"
	"chainguard.dev/condakit/pkg/environment"
)

func TestSolveCmd(t *testing.T) {
	for _, tt := range []struct {
		name   string
		format string
		opts   cli.Options
		want   string
	}{{
		name:   "name=version=build",
		format: "{{ .Name }}={{ .Version }}={{ .Build }}",
		want:   "__glibc=2.28=\nlibzlib=1.3.1=h0_0\npython=3.12.0=h1_0_cpython\nrequests=2.31.0=pyhd8ed1ab_0\n",
	}, {
		name:   "older python through an extra spec",
		format: "{{ .Channel }}/{{ .Subdir }}/{{ .Name }} {{ .Version }}",
		opts:   cli.Options{Specs: []string{"libzlib 1.2.*"}},
		want:   "@virtual/noarch/__glibc 2.28\nforge/linux-64/libzlib 1.2.13\nforge/linux-64/python 3.11.2\nforge/noarch/requests 2.31.0\n",
	}, {
		name:   "platform",
		format: "{{ .Platform }} {{ .Name }}",
		opts:   cli.Options{Specs: []string{"requests"}, Subdirs: []string{"linux-64"}},
		want:   "linux-64 __glibc\nlinux-64 libzlib\nlinux-64 python\nlinux-64 requests\n",
	}, {
		name:   "flexible priority",
		format: "{{ .Channel }}::{{ .Name }}",
		opts:   cli.Options{ChannelPriority: "flexible", Specs: []string{"python 3.11.*"}},
		want:   "@virtual::__glibc\nforge::libzlib\nforge::python\nforge::requests\n",
	}} {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env, err := cli.LoadEnvironment(ctx, filepath.Join("testdata", "env.yaml"), tt.opts)
			require.NoError(t, err)

			var out bytes.Buffer
			require.NoError(t, cli.SolveCmd(ctx, &out, tt.format, env, nil))
			require.Equal(t, tt.want, out.String())
		})
	}
}

func TestSolveCmdBadTemplate(t *testing.T) {
	ctx := context.Background()
	env, err := cli.LoadEnvironment(ctx, filepath.Join("testdata", "env.yaml"), cli.Options{})
	require.NoError(t, err)
	require.Error(t, cli.SolveCmd(ctx, &bytes.Buffer{}, "{{ .Name ", env, nil))
	require.Error(t, cli.SolveCmd(ctx, &bytes.Buffer{}, "{{ .Missing }}", env, nil))
}

func TestSolveCmdUnsatisfiable(t *testing.T) {
	ctx := context.Background()
	env, err := cli.LoadEnvironment(ctx, filepath.Join("testdata", "conflict.yaml"), cli.Options{})
	require.NoError(t, err)

	err = cli.SolveCmd(ctx, &bytes.Buffer{}, "{{ .Name }}", env, nil)
	var uerr *solver.UnsatisfiableError
	require.True(t, errors.As(err, &uerr), "got %v", err)
	require.ErrorContains(t, err, "solving linux-64")
}

func TestSolvePredefinedFormat(t *testing.T) {
	got := run(t, "solve", filepath.Join("testdata", "env.yaml"), "--format", "speclist")
	require.Equal(t, "- __glibc=2.28=\n- libzlib=1.3.1=h0_0\n- python=3.12.0=h1_0_cpython\n- requests=2.31.0=pyhd8ed1ab_0\n", got)
}

func TestSolveChannelAppend(t *testing.T) {
	// forge alone has no libzlib new enough for python 3.12.
	got := run(t, "solve", filepath.Join("testdata", "conflict.yaml"),
		"--format", "channel::name",
		"--channel-append", "extra="+filepath.Join("testdata", "channels", "extra"))
	require.Equal(t, "@virtual::__glibc==2.28=\nextra::libzlib==1.3.1=h0_0\nforge::python==3.12.0=h1_0_cpython\n", got)
}

func TestLoadEnvironment(t *testing.T) {
	ctx := context.Background()
	extra, err := filepath.Abs(filepath.Join("testdata", "channels", "extra"))
	require.NoError(t, err)

	env, err := cli.LoadEnvironment(ctx, filepath.Join("testdata", "conflict.yaml"), cli.Options{
		Channels: []environment.Channel{{Name: "extra", URL: extra}},
		Specs:    []string{"requests"},
		Subdirs:  []string{"host", "linux-64"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"python 3.12.*", "requests"}, env.Specs)
	require.Len(t, env.Channels, 2)
	require.Equal(t, extra, env.Channels[1].URL)
	require.Contains(t, env.Subdirs, repodata.HostPlatform().String())
	require.Contains(t, env.Subdirs, "linux-64")

	_, err = cli.LoadEnvironment(ctx, filepath.Join("testdata", "env.yaml"), cli.Options{Subdirs: []string{"amiga-68k"}})
	require.Error(t, err)
	_, err = cli.LoadEnvironment(ctx, filepath.Join("testdata", "env.yaml"), cli.Options{Specs: []string{"python[colour=red]"}})
	require.Error(t, err)
}
