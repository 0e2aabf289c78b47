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

package environment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"chainguard.dev/condakit/pkg/conda/index"
	"chainguard.dev/condakit/pkg/conda/repodata"
	"chainguard.dev/condakit/pkg/conda/solver"
)

// ErrNoRepodata is returned when a channel has no repodata for any of the
// subdirs being searched.
var ErrNoRepodata = errors.New("no repodata found")

// LoadIndex reads every channel's repodata for subdir and noarch and
// indexes it.
func (e *Environment) LoadIndex(ctx context.Context, subdir string) (*index.Index, error) {
	ctx, span := otel.Tracer("condakit").Start(ctx, "environment.LoadIndex")
	defer span.End()
	log := clog.FromContext(ctx)

	subdirs := searchSubdirs(subdir)
	found := make([][][]*repodata.Record, len(e.Channels))
	var g errgroup.Group
	g.SetLimit(8)
	for ci, ch := range e.Channels {
		found[ci] = make([][]*repodata.Record, len(subdirs))
		for si, sd := range subdirs {
			g.Go(func() error {
				records, err := loadSubdir(ctx, ch, sd)
				if err != nil {
					return fmt.Errorf("channel %s: %w", ch.Name, err)
				}
				found[ci][si] = records
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sources := make([]index.Source, 0, len(e.Channels))
	for ci, ch := range e.Channels {
		src := index.Source{Channel: ch.Name}
		missing := 0
		for si, records := range found[ci] {
			if records == nil {
				log.Debugf("channel %s has no %s subdir", ch.Name, subdirs[si])
				missing++
			}
			src.Records = append(src.Records, records...)
		}
		if missing == len(subdirs) {
			return nil, fmt.Errorf("channel %s (%s): %w for %v", ch.Name, ch.URL, ErrNoRepodata, subdirs)
		}
		sources = append(sources, src)
	}

	opts, err := e.IndexOptions(subdir)
	if err != nil {
		return nil, err
	}
	return index.Build(ctx, sources, opts...)
}

// loadSubdir returns nil records when the subdir has no repodata.
func loadSubdir(ctx context.Context, ch Channel, subdir string) ([]*repodata.Record, error) {
	rc := repodata.Channel{Name: ch.Name, BaseURL: ch.URL}
	for _, loc := range RepodataPaths(ch, subdir) {
		p, err := repodata.LocalPath(loc)
		if err != nil {
			return nil, err
		}
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		} else if err != nil {
			return nil, err
		}
		records, err := repodata.LoadFile(ctx, loc, rc)
		if err != nil {
			return nil, err
		}
		if records == nil {
			records = []*repodata.Record{}
		}
		return records, nil
	}
	return nil, nil
}

// Solve loads the index for subdir and resolves the environment's specs
// against it. Extra options, such as locked records, are passed on to the
// solver.
func (e *Environment) Solve(ctx context.Context, subdir string, extra ...solver.Option) (*solver.Solution, error) {
	ctx, span := otel.Tracer("condakit").Start(ctx, "environment.Solve")
	defer span.End()

	idx, err := e.LoadIndex(ctx, subdir)
	if err != nil {
		return nil, err
	}
	roots, err := e.RootSpecs()
	if err != nil {
		return nil, err
	}
	opts, err := e.SolverOptions(idx)
	if err != nil {
		return nil, err
	}
	return solver.Solve(ctx, roots, idx, append(opts, extra...)...)
}

// SolverOptions resolves pins and virtual packages against idx.
func (e *Environment) SolverOptions(idx *index.Index) ([]solver.Option, error) {
	pins, err := e.PinnedSpecs()
	if err != nil {
		return nil, err
	}
	var pinned []*repodata.Record
	for _, ms := range pins {
		matches := idx.Find(ms)
		if len(matches) == 0 {
			return nil, fmt.Errorf("pin %q matches no package", ms)
		}
		pinned = append(pinned, matches[0])
	}
	virtual, err := e.VirtualRecords()
	if err != nil {
		return nil, err
	}
	return []solver.Option{
		solver.WithPinned(pinned...),
		solver.WithVirtualPackages(virtual...),
	}, nil
}
