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

package version

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		tests := []struct {
			version  string
			epoch    uint64
			segments [][]string
			local    [][]string
		}{
			{"1", 0, [][]string{{"1"}}, [][]string{}},
			{"1.0", 0, [][]string{{"1"}, {"0"}}, [][]string{}},
			{"1.0a1", 0, [][]string{{"1"}, {"0", "a", "1"}}, [][]string{}},
			{"1.1.dev1", 0, [][]string{{"1"}, {"1"}, {"0", "dev", "1"}}, [][]string{}},
			{"1.0-", 0, [][]string{{"1"}, {"0", "_"}}, [][]string{}},
			{"1.0_", 0, [][]string{{"1"}, {"0", "_"}}, [][]string{}},
			{"1_2-3", 0, [][]string{{"1"}, {"2"}, {"3"}}, [][]string{}},
			{"2!1.0", 2, [][]string{{"1"}, {"0"}}, [][]string{}},
			{"1.0+3.2", 0, [][]string{{"1"}, {"0"}}, [][]string{{"3"}, {"2"}}},
			{"1.0+abc7", 0, [][]string{{"1"}, {"0"}}, [][]string{{"0", "abc", "7"}}},
			{" 3.11.2 ", 0, [][]string{{"3"}, {"11"}, {"2"}}, [][]string{}},
			{"0.5C1", 0, [][]string{{"0"}, {"5", "c", "1"}}, [][]string{}},
		}
		for _, tt := range tests {
			t.Run(tt.version, func(t *testing.T) {
				v, err := Parse(tt.version)
				require.NoError(t, err)
				require.Equal(t, tt.epoch, v.Epoch())
				if diff := cmp.Diff(tt.segments, v.Segments()); diff != "" {
					t.Errorf("segments mismatch (-want +got):\n%s", diff)
				}
				if diff := cmp.Diff(tt.local, v.Local()); diff != "" {
					t.Errorf("local mismatch (-want +got):\n%s", diff)
				}
			})
		}
	})
	t.Run("invalid", func(t *testing.T) {
		tests := []string{
			"",
			"   ",
			"a!1.0",
			"!1.0",
			"1!2!3",
			"1.0+",
			"1.0+a+b",
			"+1.0",
			"1!",
			"1..0",
			"1-.0dev-",
			".1",
			"1.0*",
			"1.0 beta",
			"1.0$",
			"99999999999999999999999",
		}
		for _, version := range tests {
			_, err := Parse(version)
			require.Error(t, err, "%q should not parse", version)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "%q expected a *ParseError", version)
			require.Equal(t, version, perr.Input)
		}
	})
}

func TestStringIsVerbatim(t *testing.T) {
	for _, s := range []string{"1.0", "1.0.0", "1!2.0", "1.0+Local", "1.0RC1", "1.0_"} {
		require.Equal(t, s, MustParse(s).String())
	}
}

// ordered is the canonical conda ordering example; each entry is either
// strictly greater than the one before it or, when marked eq, equal to it.
var ordered = []struct {
	v  string
	eq bool
}{
	{"0.4", false},
	{"0.4.0", true},
	{"0.4.1.rc", false},
	{"0.4.1.RC", true},
	{"0.4.1", false},
	{"0.5a1", false},
	{"0.5b3", false},
	{"0.5C1", false},
	{"0.5", false},
	{"0.9.6", false},
	{"0.960923", false},
	{"1.0", false},
	{"1.1dev1", false},
	{"1.1_", false},
	{"1.1a1", false},
	{"1.1.0dev1", false},
	{"1.1.dev1", true},
	{"1.1.a1", false},
	{"1.1.0rc1", false},
	{"1.1.0", false},
	{"1.1", true},
	{"1.1.0post1", false},
	{"1.1.post1", true},
	{"1.1post1", false},
	{"1996.07.12", false},
	{"1!0.4.1", false},
	{"1!3.1.1.6", false},
	{"2!0.4.1", false},
}

func TestCompareOrdering(t *testing.T) {
	for i := 1; i < len(ordered); i++ {
		prev, cur := MustParse(ordered[i-1].v), MustParse(ordered[i].v)
		if ordered[i].eq {
			require.Equal(t, 0, Compare(prev, cur), "%s == %s", prev, cur)
			require.True(t, prev.Equal(cur))
		} else {
			require.Equal(t, -1, Compare(prev, cur), "%s < %s", prev, cur)
			require.Equal(t, 1, Compare(cur, prev), "%s > %s", cur, prev)
			require.True(t, prev.Less(cur))
		}
	}
}

func TestCompareSuffixPrecedence(t *testing.T) {
	chain := []string{"1.0dev0", "1.0a0", "1.0alpha0", "1.0b0", "1.0beta0", "1.0rc0", "1.0", "1.0post0"}
	for i := 1; i < len(chain); i++ {
		require.True(t, MustParse(chain[i-1]).Less(MustParse(chain[i])), "%s < %s", chain[i-1], chain[i])
	}
}

func TestCompareLocal(t *testing.T) {
	for _, tt := range []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0+0", -1},
		{"1.0+1", "1.0+2", -1},
		{"1.0+1", "1.0+1.0", 0},
		{"1.0+abc", "1.0+1", -1},
		{"1.1", "1.0+99", 1},
	} {
		t.Run(tt.a+" vs "+tt.b, func(t *testing.T) {
			require.Equal(t, tt.want, Compare(MustParse(tt.a), MustParse(tt.b)))
		})
	}
}

func TestCompareIsTotalOrder(t *testing.T) {
	var vs []Version
	for _, o := range ordered {
		vs = append(vs, MustParse(o.v))
	}
	for _, s := range []string{"1.0+1", "1.0+a", "3.10.4", "3.9.0", "3.11.2", "3.12.0", "1.0-", "2.0dev"} {
		vs = append(vs, MustParse(s))
	}

	for _, a := range vs {
		require.Equal(t, 0, Compare(a, a), "reflexive %s", a)
		for _, b := range vs {
			ab, ba := Compare(a, b), Compare(b, a)
			require.Equal(t, -ab, ba, "antisymmetric %s %s", a, b)
			for _, c := range vs {
				if ab < 0 && Compare(b, c) < 0 {
					require.Equal(t, -1, Compare(a, c), "transitive %s < %s < %s", a, b, c)
				}
				if ab == 0 && Compare(b, c) == 0 {
					require.Equal(t, 0, Compare(a, c), "transitive %s = %s = %s", a, b, c)
				}
			}
		}
	}

	sorted := slices.Clone(vs)
	slices.SortStableFunc(sorted, Compare)
	require.True(t, slices.IsSortedFunc(sorted, Compare))
}

func TestRoundTrip(t *testing.T) {
	for _, o := range ordered {
		v := MustParse(o.v)
		again, err := Parse(v.String())
		require.NoError(t, err)
		require.True(t, v.Equal(again))
	}
}

func TestStartsWith(t *testing.T) {
	for _, tt := range []struct {
		v, prefix string
		want      bool
	}{
		{"1.2.0", "1.2", true},
		{"1.2.99", "1.2", true},
		{"1.2", "1.2", true},
		{"1.2a1", "1.2", true},
		{"1.3.0", "1.2", false},
		{"1.20.0", "1.2", false},
		{"1", "1.2", false},
		{"1", "1.0", true},
		{"1.0rc1", "1.0r", true},
		{"1.0b1", "1.0r", false},
		{"1!1.2.0", "1.2", false},
		{"1!1.2.0", "1!1.2", true},
		{"1.2+4.1", "1.2+4", true},
		{"1.2+5", "1.2+4", false},
	} {
		t.Run(tt.v+" "+tt.prefix, func(t *testing.T) {
			require.Equal(t, tt.want, MustParse(tt.v).StartsWith(MustParse(tt.prefix)))
		})
	}
}

func TestCompatiblePrefix(t *testing.T) {
	p, ok := MustParse("1.4.5").CompatiblePrefix()
	require.True(t, ok)
	require.Equal(t, "1.4", p.String())
	require.True(t, p.Equal(MustParse("1.4")))

	p, ok = MustParse("2!3.1a1").CompatiblePrefix()
	require.True(t, ok)
	require.Equal(t, "2!3", p.String())

	_, ok = MustParse("7").CompatiblePrefix()
	require.False(t, ok)
}

func TestIsDev(t *testing.T) {
	require.True(t, MustParse("1.0dev1").IsDev())
	require.True(t, MustParse("1.0.dev").IsDev())
	require.False(t, MustParse("1.0rc1").IsDev())
}

func TestJSON(t *testing.T) {
	var got struct {
		Version Version `json:"version"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"version":"1!2.3a1"}`), &got))
	require.Equal(t, "1!2.3a1", got.Version.String())
	require.Equal(t, uint64(1), got.Version.Epoch())

	b, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, `{"version":"1!2.3a1"}`, string(b))

	require.Error(t, json.Unmarshal([]byte(`{"version":"1..2"}`), &got))
}
