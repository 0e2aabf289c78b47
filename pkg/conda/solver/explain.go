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

package solver

import (
	"slices"

	"k8s.io/apimachinery/pkg/util/sets"
)

const (
	reasonNoCandidates = "no candidates available"
	reasonDisagree     = "no candidate satisfies every requirement"
)

// explanation collects, per package name, the edges that took part in
// rejecting candidates. Each search frame owns one; it is folded into the
// frame the search jumps back to.
type explanation struct {
	order   []string
	entries map[string]*explained
}

type explained struct {
	reason string
	edges  []Edge
	seen   sets.Set[string]
}

func newExplanation() *explanation {
	return &explanation{entries: map[string]*explained{}}
}

func (x *explanation) add(pkg, reason string, edges ...Edge) {
	e, ok := x.entries[pkg]
	if !ok {
		e = &explained{reason: reason, seen: sets.New[string]()}
		x.entries[pkg] = e
		x.order = append(x.order, pkg)
	}
	for _, edge := range edges {
		k := edge.key()
		if e.seen.Has(k) {
			continue
		}
		e.seen.Insert(k)
		e.edges = append(e.edges, edge)
	}
}

func (x *explanation) merge(other *explanation) {
	for _, pkg := range other.order {
		e := other.entries[pkg]
		x.add(pkg, e.reason, e.edges...)
	}
}

func (x *explanation) err() *UnsatisfiableError {
	out := &UnsatisfiableError{Conflicts: make([]Conflict, 0, len(x.order))}
	for _, pkg := range x.order {
		e := x.entries[pkg]
		out.Conflicts = append(out.Conflicts, Conflict{
			Package: pkg,
			Edges:   slices.Clone(e.edges),
			Reason:  e.reason,
		})
	}
	return out
}
