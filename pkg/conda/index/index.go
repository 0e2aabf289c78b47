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

// Package index groups package records by name into the candidate lists the
// solver searches.
package index

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"

	"chainguard.dev/condakit/pkg/conda/matchspec"
	"chainguard.dev/condakit/pkg/conda/repodata"
	"chainguard.dev/condakit/pkg/conda/version"
)

// Source is one channel's records. The order of sources passed to Build is
// the channel priority, highest first.
type Source struct {
	Channel string
	Records []*repodata.Record
}

// Index is an immutable mapping from package name to candidate records,
// best candidate first. It is safe for concurrent use.
type Index struct {
	names  []string
	byName map[string][]*repodata.Record
	total  int
}

type entry struct {
	rec      *repodata.Record
	priority int
	seq      int
}

type dedupeKey struct {
	channel string
	id      repodata.Identity
}

// Build indexes the records of every source.
func Build(ctx context.Context, sources []Source, options ...Option) (*Index, error) {
	ctx, span := otel.Tracer("condakit").Start(ctx, "index.Build")
	defer span.End()
	log := clog.FromContext(ctx)

	o := &opts{priority: PriorityDisabled}
	for _, opt := range options {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	grouped := map[string][]entry{}
	seen := map[dedupeKey]struct{}{}
	seq, skipped := 0, 0
	for priority, src := range sources {
		for _, r := range src.Records {
			if r == nil {
				continue
			}
			if err := r.Validate(); err != nil {
				return nil, fmt.Errorf("channel %q: %w", src.Channel, err)
			}
			if !o.keep(r) {
				skipped++
				continue
			}
			ch := r.Channel
			if ch == "" {
				ch = src.Channel
			}
			key := dedupeKey{channel: ch, id: r.Identity()}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			grouped[r.Name] = append(grouped[r.Name], entry{rec: r, priority: priority, seq: seq})
			seq++
		}
	}

	idx := &Index{byName: make(map[string][]*repodata.Record, len(grouped))}
	sortFn := compareEntries(o.priority)
	for name, entries := range grouped {
		if o.priority == PriorityStrict {
			entries = highestPriority(entries)
		}
		slices.SortStableFunc(entries, sortFn)
		recs := make([]*repodata.Record, 0, len(entries))
		for _, e := range entries {
			recs = append(recs, e.rec)
		}
		idx.byName[name] = recs
		idx.total += len(recs)
	}
	idx.names = slices.Sorted(maps.Keys(idx.byName))

	log.Infof("indexed %d records for %d package names from %d channels (%d filtered out)", idx.total, len(idx.names), len(sources), skipped)
	return idx, nil
}

// FromRecords builds an index from records of a single unnamed source.
func FromRecords(ctx context.Context, records []*repodata.Record, options ...Option) (*Index, error) {
	return Build(ctx, []Source{{Records: records}}, options...)
}

func (o *opts) keep(r *repodata.Record) bool {
	if o.subdirs != nil {
		if _, ok := o.subdirs[r.Subdir]; !ok {
			return false
		}
	}
	if !o.excludeNewer.IsZero() && r.Timestamp != 0 && r.Timestamp.Time().After(o.excludeNewer) {
		return false
	}
	return true
}

func highestPriority(entries []entry) []entry {
	best := entries[0].priority
	for _, e := range entries {
		best = min(best, e.priority)
	}
	return slices.DeleteFunc(entries, func(e entry) bool {
		return e.priority != best
	})
}

// compareEntries orders candidates best first: higher version, fewer track
// features, higher build number, newer timestamp, then channel priority and
// the order records were supplied in.
func compareEntries(priority ChannelPriority) func(a, b entry) int {
	return func(a, b entry) int {
		if priority == PriorityFlexible {
			if c := cmp.Compare(a.priority, b.priority); c != 0 {
				return c
			}
		}
		if c := version.Compare(b.rec.Version, a.rec.Version); c != 0 {
			return c
		}
		if c := cmp.Compare(len(a.rec.TrackFeatures), len(b.rec.TrackFeatures)); c != 0 {
			return c
		}
		if c := cmp.Compare(b.rec.BuildNumber, a.rec.BuildNumber); c != 0 {
			return c
		}
		if c := cmp.Compare(b.rec.Timestamp, a.rec.Timestamp); c != 0 {
			return c
		}
		if c := cmp.Compare(a.priority, b.priority); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	}
}

// CandidatesFor returns the records named name, best first. Unknown names
// yield an empty result. The returned slice must not be modified.
func (idx *Index) CandidatesFor(name string) []*repodata.Record {
	return slices.Clip(idx.byName[name])
}

// Names returns every package name in the index, sorted.
func (idx *Index) Names() []string {
	return slices.Clone(idx.names)
}

// Len returns the number of records.
func (idx *Index) Len() int {
	return idx.total
}

// Find returns every record matching ms. Nameless specs scan the whole
// index in name order.
func (idx *Index) Find(ms *matchspec.MatchSpec) []*repodata.Record {
	var out []*repodata.Record
	names := idx.names
	if !ms.IsNameless() {
		names = []string{ms.Name}
	}
	for _, name := range names {
		for _, r := range idx.byName[name] {
			if ms.Matches(r) {
				out = append(out, r)
			}
		}
	}
	return out
}
