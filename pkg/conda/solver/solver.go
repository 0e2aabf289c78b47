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

// Package solver picks one record per required package name such that every
// depends and constrains edge reachable from the root specs holds.
//
// The search binds package names ("slots") in the order they are discovered,
// breadth first from the roots, and tries each slot's candidates in index
// order. When a slot runs out of candidates the search jumps back to the most
// recent choice that took part in rejecting them, so the first complete
// assignment found is the preferred one.
package solver

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"k8s.io/apimachinery/pkg/util/sets"

	"chainguard.dev/condakit/pkg/conda/index"
	"chainguard.dev/condakit/pkg/conda/matchspec"
	"chainguard.dev/condakit/pkg/conda/repodata"
	"chainguard.dev/condakit/pkg/conda/version"
)

var errNamelessDependency = errors.New("dependency does not name a package")

type parsedRecord struct {
	depends    []*matchspec.MatchSpec
	constrains []*matchspec.MatchSpec
}

type undoEntry struct {
	constrains bool
	name       string
	prev       int
}

// frame is one slot on the search path.
type frame struct {
	name  string
	cands []*repodata.Record
	next  int
	// head is the queue position the slot was taken from.
	head int

	// Valid while chosen is set.
	chosen   *repodata.Record
	queueLen int
	undo     []undoEntry
	added    []string

	// Depths of the frames whose choices rejected candidates here.
	conflicts sets.Set[int]
	why       *explanation
}

type search struct {
	ctx context.Context
	idx *index.Index
	o   *opts
	log *clog.Logger

	requires   map[string][]Edge
	constrains map[string][]Edge
	bound      map[string]int
	frames     []*frame

	queue  []string
	head   int
	queued sets.Set[string]

	candidates map[string][]*repodata.Record
	parsed     map[*repodata.Record]*parsedRecord
	stats      Stats
}

// Solve resolves roots against idx. The index is only read, so one index
// may serve concurrent solves.
func Solve(ctx context.Context, roots []*matchspec.MatchSpec, idx *index.Index, options ...Option) (*Solution, error) {
	ctx, span := otel.Tracer("condakit").Start(ctx, "solver.Solve")
	defer span.End()

	if idx == nil {
		return nil, errors.New("solve: nil index")
	}
	o := &opts{
		locked:  map[string][]repodata.Identity{},
		pinned:  map[string]*repodata.Record{},
		virtual: map[string][]*repodata.Record{},
	}
	for _, opt := range options {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	s := &search{
		ctx:        ctx,
		idx:        idx,
		o:          o,
		log:        clog.FromContext(ctx),
		requires:   map[string][]Edge{},
		constrains: map[string][]Edge{},
		bound:      map[string]int{},
		queued:     sets.New[string](),
		candidates: map[string][]*repodata.Record{},
		parsed:     map[*repodata.Record]*parsedRecord{},
	}
	if err := s.addRoots(roots); err != nil {
		return nil, err
	}
	err := s.run()
	span.SetAttributes(
		attribute.Int("condakit.solver.steps", s.stats.Steps),
		attribute.Int("condakit.solver.backtracks", s.stats.Backtracks),
	)
	if err != nil {
		s.log.Debugf("solve failed after %d steps: %v", s.stats.Steps, err)
		return nil, err
	}

	sol := s.solution()
	s.log.Infof("solved %d packages in %d steps (%d backtracks)", sol.Len(), s.stats.Steps, s.stats.Backtracks)
	return sol, nil
}

func (s *search) addRoots(roots []*matchspec.MatchSpec) error {
	for _, ms := range roots {
		if ms == nil {
			continue
		}
		name := ms.Name
		if ms.IsNameless() {
			var err error
			if name, err = s.nameFor(ms); err != nil {
				return err
			}
		}
		s.requires[name] = append(s.requires[name], Edge{Kind: EdgeRoot, Spec: ms})
		s.enqueue(name)
	}
	return nil
}

// nameFor finds the single package name a nameless root spec selects.
func (s *search) nameFor(ms *matchspec.MatchSpec) (string, error) {
	var names []string
	for _, r := range s.idx.Find(ms) {
		if !slices.Contains(names, r.Name) {
			names = append(names, r.Name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(s.o.virtual)) {
		for _, r := range s.o.virtual[name] {
			if ms.Matches(r) && !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	switch len(names) {
	case 0:
		return "", &UnsatisfiableError{Conflicts: []Conflict{{
			Package: ms.String(),
			Edges:   []Edge{{Kind: EdgeRoot, Spec: ms}},
			Reason:  reasonNoCandidates,
		}}}
	case 1:
		return names[0], nil
	}
	return "", fmt.Errorf("%w: %s matches %s", ErrAmbiguousSpec, ms, strings.Join(names, ", "))
}

func (s *search) enqueue(name string) bool {
	if s.queued.Has(name) {
		return false
	}
	s.queued.Insert(name)
	s.queue = append(s.queue, name)
	return true
}

func (s *search) run() error {
	for s.head < len(s.queue) {
		f := s.open()
		ok, err := s.advance(f)
		for err == nil && !ok {
			if f, err = s.backjump(f); err != nil {
				break
			}
			ok, err = s.advance(f)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *search) open() *frame {
	name := s.queue[s.head]
	f := &frame{
		name:      name,
		cands:     s.candidatesFor(name),
		head:      s.head,
		conflicts: sets.New[int](),
		why:       newExplanation(),
	}
	s.head++
	s.frames = append(s.frames, f)
	return f
}

// advance binds the top frame to its next acceptable candidate and reports
// whether there was one.
func (s *search) advance(f *frame) (bool, error) {
	depth := len(s.frames) - 1
	for f.next < len(f.cands) {
		if err := s.ctx.Err(); err != nil {
			return false, fmt.Errorf("solve: %w", err)
		}
		if s.o.maxSteps > 0 && s.stats.Steps >= s.o.maxSteps {
			return false, fmt.Errorf("%w after %d steps", ErrStepLimit, s.stats.Steps)
		}
		s.stats.Steps++

		c := f.cands[f.next]
		f.next++
		pr, err := s.parse(c)
		if err != nil {
			return false, err
		}
		if s.admit(f, c, pr) {
			s.bind(f, depth, c, pr)
			return true, nil
		}
	}
	return false, nil
}

// admit checks c against every edge on its slot and against the slots c's
// own edges name that are already bound.
func (s *search) admit(f *frame, c *repodata.Record, pr *parsedRecord) bool {
	for _, e := range s.requires[f.name] {
		if !e.Spec.Matches(c) {
			s.reject(f, c, f.name, e)
			return false
		}
	}
	for _, e := range s.constrains[f.name] {
		if !e.Spec.Matches(c) {
			f.conflicts.Insert(s.bound[e.Source.Name])
			s.reject(f, c, f.name, e)
			return false
		}
	}

	check := func(kind EdgeKind, specs []*matchspec.MatchSpec) bool {
		for _, ms := range specs {
			var have *repodata.Record
			d, isBound := s.bound[ms.Name]
			switch {
			case ms.Name == f.name:
				have = c
			case isBound:
				have = s.frames[d].chosen
			default:
				continue
			}
			if ms.Matches(have) {
				continue
			}
			if ms.Name != f.name {
				f.conflicts.Insert(d)
			}
			s.reject(f, c, ms.Name, Edge{Kind: kind, Source: c, Spec: ms})
			return false
		}
		return true
	}
	return check(EdgeDepends, pr.depends) && check(EdgeConstrains, pr.constrains)
}

func (s *search) reject(f *frame, c *repodata.Record, pkg string, e Edge) {
	s.log.Debugf("%s: skipping %s: %s", f.name, c, e)
	f.why.add(pkg, reasonDisagree, s.requires[pkg]...)
	f.why.add(pkg, reasonDisagree, e)
}

func (s *search) bind(f *frame, depth int, c *repodata.Record, pr *parsedRecord) {
	s.log.Debugf("%s: choosing %s", f.name, c)
	f.chosen = c
	f.queueLen = len(s.queue)
	s.bound[f.name] = depth
	for _, ms := range pr.depends {
		f.undo = append(f.undo, undoEntry{name: ms.Name, prev: len(s.requires[ms.Name])})
		s.requires[ms.Name] = append(s.requires[ms.Name], Edge{Kind: EdgeDepends, Source: c, Spec: ms})
		if s.enqueue(ms.Name) {
			f.added = append(f.added, ms.Name)
		}
	}
	for _, ms := range pr.constrains {
		f.undo = append(f.undo, undoEntry{constrains: true, name: ms.Name, prev: len(s.constrains[ms.Name])})
		s.constrains[ms.Name] = append(s.constrains[ms.Name], Edge{Kind: EdgeConstrains, Source: c, Spec: ms})
	}
}

// unbind reverts everything bind did for f, leaving f on the stack with its
// remaining candidates.
func (s *search) unbind(f *frame) {
	if f.chosen == nil {
		return
	}
	for i := len(f.undo) - 1; i >= 0; i-- {
		u := f.undo[i]
		edges := s.requires
		if u.constrains {
			edges = s.constrains
		}
		edges[u.name] = edges[u.name][:u.prev]
	}
	s.queued.Delete(f.added...)
	s.queue = s.queue[:f.queueLen]
	s.head = f.head + 1
	delete(s.bound, f.name)

	f.chosen = nil
	f.undo = f.undo[:0]
	f.added = nil
}

func (s *search) pop() *frame {
	f := s.frames[len(s.frames)-1]
	s.unbind(f)
	s.frames = s.frames[:len(s.frames)-1]
	s.head = f.head
	return f
}

// backjump handles the exhausted top frame f. It returns the frame to
// continue with, or the unsatisfiable error when no earlier choice was
// involved.
func (s *search) backjump(f *frame) (*frame, error) {
	depth := len(s.frames) - 1
	for _, e := range s.requires[f.name] {
		if e.Source != nil {
			f.conflicts.Insert(s.bound[e.Source.Name])
		}
	}
	if len(f.cands) == 0 {
		f.why.add(f.name, reasonNoCandidates, s.requires[f.name]...)
	}
	f.conflicts.Delete(depth)
	s.pop()

	if f.conflicts.Len() == 0 {
		return nil, f.why.err()
	}
	target := slices.Max(f.conflicts.UnsortedList())
	for len(s.frames)-1 > target {
		s.pop()
	}
	t := s.frames[target]
	s.unbind(t)
	f.conflicts.Delete(target)
	t.conflicts.Insert(f.conflicts.UnsortedList()...)
	t.why.merge(f.why)

	s.stats.Backtracks++
	s.log.Debugf("%s: no candidate left, jumping back to %s", f.name, t.name)
	return t, nil
}

func (s *search) candidatesFor(name string) []*repodata.Record {
	if cs, ok := s.candidates[name]; ok {
		return cs
	}
	var cs []*repodata.Record
	if r, ok := s.o.pinned[name]; ok {
		cs = []*repodata.Record{r}
	} else if vs, ok := s.o.virtual[name]; ok {
		cs = slices.Clone(vs)
		slices.SortStableFunc(cs, func(a, b *repodata.Record) int {
			return version.Compare(b.Version, a.Version)
		})
	} else {
		cs = s.idx.CandidatesFor(name)
	}
	if ids := s.o.locked[name]; len(ids) > 0 {
		cs = preferLocked(cs, ids)
	}
	s.candidates[name] = cs
	return cs
}

func preferLocked(cs []*repodata.Record, ids []repodata.Identity) []*repodata.Record {
	out := make([]*repodata.Record, 0, len(cs))
	var rest []*repodata.Record
	for _, r := range cs {
		if slices.Contains(ids, r.Identity()) {
			out = append(out, r)
		} else {
			rest = append(rest, r)
		}
	}
	return append(out, rest...)
}

func (s *search) parse(r *repodata.Record) (*parsedRecord, error) {
	if pr, ok := s.parsed[r]; ok {
		return pr, nil
	}
	pr := &parsedRecord{}
	for _, text := range r.Depends {
		ms, err := parseEdge(r, text)
		if err != nil {
			return nil, err
		}
		pr.depends = append(pr.depends, ms)
	}
	for _, text := range r.Constrains {
		ms, err := parseEdge(r, text)
		if err != nil {
			return nil, err
		}
		pr.constrains = append(pr.constrains, ms)
	}
	s.parsed[r] = pr
	return pr, nil
}

func parseEdge(r *repodata.Record, text string) (*matchspec.MatchSpec, error) {
	ms, err := matchspec.ParseCached(text)
	if err != nil {
		return nil, &DataIntegrityError{Record: r.Identity(), Spec: text, Err: err}
	}
	if ms.IsNameless() {
		return nil, &DataIntegrityError{Record: r.Identity(), Spec: text, Err: errNamelessDependency}
	}
	return ms, nil
}

func (s *search) solution() *Solution {
	sol := &Solution{
		records: make(map[string]*repodata.Record, len(s.frames)),
		deps:    make(map[string][]string, len(s.frames)),
		Stats:   s.stats,
	}
	for _, f := range s.frames {
		sol.records[f.name] = f.chosen
		var deps []string
		for _, ms := range s.parsed[f.chosen].depends {
			if ms.Name != f.name && !slices.Contains(deps, ms.Name) {
				deps = append(deps, ms.Name)
			}
		}
		sol.deps[f.name] = deps
	}
	sol.names = slices.Sorted(maps.Keys(sol.records))
	return sol
}
