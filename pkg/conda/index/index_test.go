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

package index

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/condakit/pkg/conda/matchspec"
	"chainguard.dev/condakit/pkg/conda/repodata"
	"chainguard.dev/condakit/pkg/conda/version"
)

type rec struct {
	name, version, build string
	buildNumber          uint64
	trackFeatures        []string
	timestamp            repodata.Timestamp
	subdir               string
}

func (r rec) record(channel string) *repodata.Record {
	subdir := r.subdir
	if subdir == "" {
		subdir = "linux-64"
	}
	return &repodata.Record{
		Name:          r.name,
		Version:       version.MustParse(r.version),
		Build:         r.build,
		BuildNumber:   r.buildNumber,
		TrackFeatures: r.trackFeatures,
		Timestamp:     r.timestamp,
		Subdir:        subdir,
		Channel:       channel,
	}
}

func records(channel string, rs ...rec) []*repodata.Record {
	out := make([]*repodata.Record, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.record(channel))
	}
	return out
}

func labels(rs []*repodata.Record) []string {
	out := make([]string, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.Channel+"::"+r.String())
	}
	return out
}

func TestCandidatesSortOrder(t *testing.T) {
	ctx := context.Background()
	idx, err := Build(ctx, []Source{{
		Channel: "main",
		Records: records("main",
			rec{name: "pkg", version: "1.0", build: "old", buildNumber: 1, timestamp: 100},
			rec{name: "pkg", version: "2.0", build: "feat", buildNumber: 9, trackFeatures: []string{"debug"}},
			rec{name: "pkg", version: "1.0", build: "new", buildNumber: 1, timestamp: 200},
			rec{name: "pkg", version: "2.0", build: "plain", buildNumber: 0},
			rec{name: "pkg", version: "1.0", build: "bn2", buildNumber: 2},
			rec{name: "pkg", version: "1.0.0", build: "tie", buildNumber: 1, timestamp: 200},
		),
	}, {
		Channel: "extra",
		Records: records("extra",
			rec{name: "pkg", version: "1.0", build: "new", buildNumber: 1, timestamp: 200},
			rec{name: "pkg", version: "3.0dev0", build: "dev", buildNumber: 0},
		),
	}})
	require.NoError(t, err)

	want := []string{
		"extra::pkg=3.0dev0=dev",
		"main::pkg=2.0=plain",
		"main::pkg=2.0=feat",
		"main::pkg=1.0=bn2",
		"main::pkg=1.0=new",
		"main::pkg=1.0.0=tie",
		"extra::pkg=1.0=new",
		"main::pkg=1.0=old",
	}
	if diff := cmp.Diff(want, labels(idx.CandidatesFor("pkg"))); diff != "" {
		t.Errorf("candidate order mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, 8, idx.Len())
}

func TestCandidatesUnknownName(t *testing.T) {
	idx, err := FromRecords(context.Background(), records("", rec{name: "a", version: "1"}))
	require.NoError(t, err)
	require.Empty(t, idx.CandidatesFor("missing"))
	require.Equal(t, []string{"a"}, idx.Names())
}

func TestDeduplicate(t *testing.T) {
	a := rec{name: "a", version: "1", build: "0"}
	idx, err := Build(context.Background(), []Source{
		{Channel: "main", Records: records("main", a, a)},
		{Channel: "other", Records: records("other", a)},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"main::a=1=0", "other::a=1=0"}, labels(idx.CandidatesFor("a")))
}

func TestChannelPriority(t *testing.T) {
	sources := func() []Source {
		return []Source{
			{Channel: "high", Records: records("high", rec{name: "a", version: "1.0"})},
			{Channel: "low", Records: records("low", rec{name: "a", version: "2.0"}, rec{name: "b", version: "1.0"})},
		}
	}
	for _, tt := range []struct {
		priority ChannelPriority
		a        []string
	}{
		{PriorityDisabled, []string{"low::a=2.0=", "high::a=1.0="}},
		{PriorityFlexible, []string{"high::a=1.0=", "low::a=2.0="}},
		{PriorityStrict, []string{"high::a=1.0="}},
	} {
		t.Run(string(tt.priority), func(t *testing.T) {
			idx, err := Build(context.Background(), sources(), WithChannelPriority(tt.priority))
			require.NoError(t, err)
			require.Equal(t, tt.a, labels(idx.CandidatesFor("a")))
			require.Equal(t, []string{"low::b=1.0="}, labels(idx.CandidatesFor("b")))
		})
	}

	_, err := Build(context.Background(), sources(), WithChannelPriority("sometimes"))
	require.Error(t, err)
}

func TestExcludeNewer(t *testing.T) {
	cutoff := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	idx, err := FromRecords(context.Background(), records("",
		rec{name: "a", version: "1", timestamp: repodata.TimestampFrom(cutoff.Add(-time.Hour))},
		rec{name: "a", version: "2", timestamp: repodata.TimestampFrom(cutoff.Add(time.Hour))},
		rec{name: "a", version: "3"},
	), WithExcludeNewer(cutoff))
	require.NoError(t, err)
	require.Equal(t, []string{"::a=3=", "::a=1="}, labels(idx.CandidatesFor("a")))
}

func TestSubdirs(t *testing.T) {
	idx, err := FromRecords(context.Background(), records("",
		rec{name: "a", version: "1", subdir: "linux-64"},
		rec{name: "a", version: "2", subdir: "osx-64"},
		rec{name: "b", version: "1", subdir: "noarch"},
	), WithSubdirs("linux-64", "noarch"))
	require.NoError(t, err)
	require.Equal(t, []string{"::a=1="}, labels(idx.CandidatesFor("a")))
	require.Equal(t, []string{"a", "b"}, idx.Names())
}

func TestFind(t *testing.T) {
	rs := records("main",
		rec{name: "a", version: "1", build: "x"},
		rec{name: "b", version: "2", build: "x"},
		rec{name: "b", version: "3", build: "y"},
	)
	rs[1].MD5 = "d41d8cd98f00b204e9800998ecf8427e"
	idx, err := FromRecords(context.Background(), rs)
	require.NoError(t, err)

	got := idx.Find(matchspec.MustParse("*[md5=d41d8cd98f00b204e9800998ecf8427e]"))
	require.Equal(t, []string{"main::b=2=x"}, labels(got))

	got = idx.Find(matchspec.MustParse("* * x"))
	require.Equal(t, []string{"main::a=1=x", "main::b=2=x"}, labels(got))

	got = idx.Find(matchspec.MustParse("b >2"))
	require.Equal(t, []string{"main::b=3=y"}, labels(got))
}

func TestBuildRejectsInvalidRecords(t *testing.T) {
	_, err := FromRecords(context.Background(), []*repodata.Record{{Version: version.MustParse("1")}})
	require.Error(t, err)
}

func TestConcurrentReads(t *testing.T) {
	idx, err := FromRecords(context.Background(), records("",
		rec{name: "a", version: "1"},
		rec{name: "a", version: "2"},
	))
	require.NoError(t, err)

	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			for range 100 {
				if got := idx.CandidatesFor("a"); len(got) != 2 || got[0].Version.String() != "2" {
					t.Errorf("unexpected candidates %v", got)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
