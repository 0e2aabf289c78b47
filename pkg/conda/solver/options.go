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
	"fmt"

	"chainguard.dev/condakit/pkg/conda/repodata"
)

type opts struct {
	locked   map[string][]repodata.Identity
	pinned   map[string]*repodata.Record
	virtual  map[string][]*repodata.Record
	maxSteps int
}

type Option func(*opts) error

// WithLocked makes the given records the first candidate tried for their
// names, when they are present in the index.
func WithLocked(records ...*repodata.Record) Option {
	return func(o *opts) error {
		for _, r := range records {
			o.locked[r.Name] = append(o.locked[r.Name], r.Identity())
		}
		return nil
	}
}

// WithPinned restricts each record's name to that record alone.
func WithPinned(records ...*repodata.Record) Option {
	return func(o *opts) error {
		for _, r := range records {
			if prev, ok := o.pinned[r.Name]; ok && prev.Identity() != r.Identity() {
				return fmt.Errorf("%s pinned to both %s and %s", r.Name, prev, r)
			}
			o.pinned[r.Name] = r
		}
		return nil
	}
}

// WithVirtualPackages supplies records describing the host, such as
// __glibc or __cuda. Their names are served only by these records.
func WithVirtualPackages(records ...*repodata.Record) Option {
	return func(o *opts) error {
		for _, r := range records {
			if err := r.Validate(); err != nil {
				return fmt.Errorf("virtual package: %w", err)
			}
			o.virtual[r.Name] = append(o.virtual[r.Name], r)
		}
		return nil
	}
}

// WithMaxSteps bounds the number of candidates the search may try. Zero
// means unlimited.
func WithMaxSteps(n int) Option {
	return func(o *opts) error {
		if n < 0 {
			return fmt.Errorf("max steps must not be negative, got %d", n)
		}
		o.maxSteps = n
		return nil
	}
}
