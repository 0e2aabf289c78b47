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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"chainguard.dev/condakit/internal/cli"
)

func TestDotCmd(t *testing.T) {
	ctx := context.Background()
	env, err := cli.LoadEnvironment(ctx, filepath.Join("testdata", "env.yaml"), cli.Options{})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, cli.DotCmd(ctx, &out, "env.yaml", env, nil))
	got := out.String()
	require.Contains(t, got, "digraph")
	require.Contains(t, got, "rankdir")
	for _, label := range []string{"env.yaml", "python >=3.11", "python=3.12.0=h1_0_cpython", "libzlib=1.3.1=h0_0", "requests=2.31.0=pyhd8ed1ab_0"} {
		require.Contains(t, got, label)
	}
	require.NotContains(t, got, "❌")
}

func TestDotCmdUnsatisfiable(t *testing.T) {
	ctx := context.Background()
	env, err := cli.LoadEnvironment(ctx, filepath.Join("testdata", "conflict.yaml"), cli.Options{})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, cli.DotCmd(ctx, &out, "conflict.yaml", env, nil))
	got := out.String()
	require.Contains(t, got, "❌ error")
	require.Contains(t, got, "❌ libzlib")
	require.Contains(t, got, "libzlib >=1.3")
}

func TestDotCommand(t *testing.T) {
	got := run(t, "dot", filepath.Join("testdata", "env.yaml"), "--subdir", "linux-64")
	require.Contains(t, got, "python=3.12.0=h1_0_cpython")
}
