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

package versionspec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"chainguard.dev/condakit/pkg/conda/version"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		spec  string
		match []string
		miss  []string
	}{
		{"*", []string{"0", "1.0", "2!3.4+5"}, nil},
		{"", []string{"1.0"}, nil},
		{"1.2.*", []string{"1.2.0", "1.2.99", "1.2", "1.2a1"}, []string{"1.3.0", "1.20.0", "1.1.9"}},
		{"1.2*", []string{"1.2.0", "1.2.99"}, []string{"1.3.0", "1.20.0"}},
		{"=1.2", []string{"1.2.0", "1.2.5"}, []string{"1.20"}},
		{"==1.2.*", []string{"1.2.7"}, []string{"1.3"}},
		{"1.0", []string{"1.0", "1.0.0"}, []string{"1.0.1", "1.0+1"}},
		{"==1.0", []string{"1.0.0"}, []string{"1.1"}},
		{"!=1.0", []string{"1.1", "0.9"}, []string{"1.0.0"}},
		{"!=1.2.*", []string{"1.3", "1.20"}, []string{"1.2.4"}},
		{">=3.10,<3.12", []string{"3.10.4", "3.11.2", "3.10"}, []string{"3.9.0", "3.12.0"}},
		{">= 3.10 , < 3.12", []string{"3.11"}, []string{"3.12"}},
		{">1.0", []string{"1.0.1", "1.0post1"}, []string{"1.0", "1.0rc1"}},
		{"<=1.0", []string{"1.0", "1.0rc1"}, []string{"1.0.1"}},
		{">=1.2.*", []string{"1.2", "2.0"}, []string{"1.1"}},
		{"~=2.2", []string{"2.2", "2.3", "2.99"}, []string{"2.1", "3.0"}},
		{"~=1.4.5", []string{"1.4.5", "1.4.9"}, []string{"1.5.0", "1.4.4"}},
		{"1.0|2.0", []string{"1.0", "2.0"}, []string{"1.5"}},
		{"<1|>=2,<3", []string{"0.5", "2.5"}, []string{"1.5", "3.0"}},
		{"(<1|>=2),!=2.5", []string{"0.5", "2.4"}, []string{"2.5", "1.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			vs, err := Parse(tt.spec)
			require.NoError(t, err)
			for _, m := range tt.match {
				require.True(t, vs.Matches(version.MustParse(m)), "%q should match %s", tt.spec, m)
			}
			for _, m := range tt.miss {
				require.False(t, vs.Matches(version.MustParse(m)), "%q should not match %s", tt.spec, m)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, s := range []string{
		"=>1.0",
		"<>1.0",
		"===1.0",
		"~1.0",
		">=",
		"1.0,",
		",1.0",
		"1.0|",
		"(1.0",
		"1.0)",
		">=1..0",
		"~=1",
		"~=1.2.*",
		"1.*.2",
		"1.0 2.0",
	} {
		t.Run(s, func(t *testing.T) {
			_, err := Parse(s)
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			require.Equal(t, s, perr.Input)
		})
	}

	_, err := Parse(">=1..0")
	var verr *version.ParseError
	require.True(t, errors.As(err, &verr), "version errors are wrapped")
}

func TestString(t *testing.T) {
	for _, tt := range []struct {
		in, want string
	}{
		{"*", "*"},
		{"", "*"},
		{"1.0", "==1.0"},
		{"=1.0", "1.0.*"},
		{"1.2*", "1.2.*"},
		{">= 3.10, <3.12", ">=3.10,<3.12"},
		{"!=1.2.*", "!=1.2.*"},
		{"~=1.4.5", "~=1.4.5"},
		{"(<1|>=2),!=2.5", "(<1|>=2),!=2.5"},
		{"((1.0))", "==1.0"},
		{"(>=1,<2),<1.5", ">=1,<2,<1.5"},
	} {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, MustParse(tt.in).String())
		})
	}
}

func TestRoundTrip(t *testing.T) {
	probes := []string{"0.1", "1.0", "1.2.0", "1.2.5", "1.3", "1.4.5", "2.0", "2.5", "3.10", "3.12", "1.0post1", "1.0rc1"}
	for _, s := range []string{"1.2.*", ">=3.10,<3.12", "~=1.4.5", "!=1.0", "<1|>=2,<3", "(<1|>=2),!=2.5", "=1.0", "1.0"} {
		t.Run(s, func(t *testing.T) {
			a := MustParse(s)
			b, err := Parse(a.String())
			require.NoError(t, err)
			require.Equal(t, a.String(), b.String())
			for _, p := range probes {
				v := version.MustParse(p)
				require.Equal(t, a.Matches(v), b.Matches(v), "%s on %s", s, p)
			}
		})
	}
}

func TestAndIsMonotonic(t *testing.T) {
	parts := []string{">=1.0", "<2.0", "!=1.5", "1.*", "~=1.2"}
	probes := []string{"0.9", "1.0", "1.2", "1.5", "1.9", "2.0", "2.1"}
	for i, a := range parts {
		for _, b := range parts[i+1:] {
			combined := MustParse(a + "," + b)
			sa, sb := MustParse(a), MustParse(b)
			for _, p := range probes {
				v := version.MustParse(p)
				if combined.Matches(v) {
					require.True(t, sa.Matches(v) && sb.Matches(v), "%s,%s on %s", a, b, p)
				}
			}
		}
	}
}

func TestIsAny(t *testing.T) {
	require.True(t, Any.IsAny())
	require.True(t, MustParse("*").IsAny())
	require.False(t, MustParse(">=1").IsAny())
}

func TestText(t *testing.T) {
	var vs VersionSpec
	require.NoError(t, vs.UnmarshalText([]byte(">=1,<2")))
	b, err := vs.MarshalText()
	require.NoError(t, err)
	require.Equal(t, ">=1,<2", string(b))
	require.Error(t, vs.UnmarshalText([]byte("=>1")))
}
