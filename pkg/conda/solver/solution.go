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

	"chainguard.dev/condakit/pkg/conda/repodata"
)

// Stats describes the work a solve did.
type Stats struct {
	// Steps is the number of candidates tried.
	Steps int
	// Backtracks is the number of times the search jumped back to an
	// earlier choice.
	Backtracks int
}

// Solution maps every required package name to its chosen record.
type Solution struct {
	names   []string
	records map[string]*repodata.Record
	deps    map[string][]string
	Stats   Stats
}

// Get returns the record chosen for name.
func (s *Solution) Get(name string) (*repodata.Record, bool) {
	r, ok := s.records[name]
	return r, ok
}

// Records returns the chosen records sorted by name.
func (s *Solution) Records() []*repodata.Record {
	out := make([]*repodata.Record, 0, len(s.names))
	for _, n := range s.names {
		out = append(out, s.records[n])
	}
	return out
}

// Names returns the solved package names, sorted.
func (s *Solution) Names() []string {
	return slices.Clone(s.names)
}

func (s *Solution) Len() int {
	return len(s.names)
}

// Dependencies returns the package names that name's record depends on, in
// the order its depends list gives them.
func (s *Solution) Dependencies(name string) []string {
	return slices.Clone(s.deps[name])
}
