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
	"errors"
	"fmt"
	"strings"

	"chainguard.dev/condakit/pkg/conda/matchspec"
	"chainguard.dev/condakit/pkg/conda/repodata"
)

var (
	// ErrAmbiguousSpec is returned when a nameless root spec matches records
	// of more than one package name.
	ErrAmbiguousSpec = errors.New("nameless spec matches more than one package")
	// ErrStepLimit is returned when the search tries more candidates than
	// WithMaxSteps allows.
	ErrStepLimit = errors.New("solver step limit exceeded")
)

// EdgeKind says where a requirement came from.
type EdgeKind int

const (
	// EdgeRoot is a spec passed to Solve.
	EdgeRoot EdgeKind = iota
	// EdgeDepends is an entry of a chosen record's depends.
	EdgeDepends
	// EdgeConstrains is an entry of a chosen record's constrains.
	EdgeConstrains
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeRoot:
		return "root"
	case EdgeDepends:
		return "depends"
	case EdgeConstrains:
		return "constrains"
	}
	return fmt.Sprintf("EdgeKind(%d)", int(k))
}

// Edge is one match spec placed on a package name.
type Edge struct {
	Kind EdgeKind
	// Source is the record whose depends or constrains produced the edge,
	// nil for roots.
	Source *repodata.Record
	Spec   *matchspec.MatchSpec
}

func (e Edge) String() string {
	switch e.Kind {
	case EdgeRoot:
		return fmt.Sprintf("requested %s", e.Spec)
	case EdgeConstrains:
		return fmt.Sprintf("%s constrains %s", e.Source, e.Spec)
	}
	return fmt.Sprintf("%s depends on %s", e.Source, e.Spec)
}

func (e Edge) key() string {
	src := ""
	if e.Source != nil {
		src = e.Source.Channel + "::" + e.Source.String() + "/" + e.Source.Subdir
	}
	return fmt.Sprintf("%d|%s|%s", e.Kind, src, e.Spec)
}

// Conflict is a package name the edges could not agree on.
type Conflict struct {
	Package string
	Edges   []Edge
	Reason  string
}

func (c Conflict) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", c.Package, c.Reason)
	for _, e := range c.Edges {
		fmt.Fprintf(&b, "\n  - %s", e)
	}
	return b.String()
}

// UnsatisfiableError is returned when no assignment satisfies the roots.
type UnsatisfiableError struct {
	Conflicts []Conflict
}

func (e *UnsatisfiableError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		parts = append(parts, c.String())
	}
	return "unsatisfiable requirements:\n" + strings.Join(parts, "\n")
}

// DataIntegrityError reports a record whose own depends or constrains text
// could not be used.
type DataIntegrityError struct {
	Record repodata.Identity
	Spec   string
	Err    error
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("record %s has unusable requirement %q: %v", e.Record, e.Spec, e.Err)
}

func (e *DataIntegrityError) Unwrap() error {
	return e.Err
}
