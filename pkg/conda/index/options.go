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
	"fmt"
	"time"
)

// ChannelPriority controls how the order of sources affects candidates.
type ChannelPriority string

const (
	// PriorityDisabled uses source order only to break otherwise exact ties.
	PriorityDisabled ChannelPriority = "disabled"
	// PriorityFlexible ranks every record of a higher priority channel ahead
	// of records from lower ones.
	PriorityFlexible ChannelPriority = "flexible"
	// PriorityStrict drops records for a name from every channel but the
	// highest priority one that carries that name.
	PriorityStrict ChannelPriority = "strict"
)

// ParseChannelPriority accepts the ChannelPriority names; the empty string
// is PriorityDisabled.
func ParseChannelPriority(s string) (ChannelPriority, error) {
	switch ChannelPriority(s) {
	case "", PriorityDisabled:
		return PriorityDisabled, nil
	case PriorityFlexible, PriorityStrict:
		return ChannelPriority(s), nil
	}
	return "", fmt.Errorf("unknown channel priority %q", s)
}

type opts struct {
	priority     ChannelPriority
	excludeNewer time.Time
	subdirs      map[string]struct{}
}

type Option func(*opts) error

// WithChannelPriority sets the channel priority mode.
func WithChannelPriority(p ChannelPriority) Option {
	return func(o *opts) error {
		p, err := ParseChannelPriority(string(p))
		if err != nil {
			return err
		}
		o.priority = p
		return nil
	}
}

// WithExcludeNewer drops records whose timestamp is after t. Records
// without a timestamp are kept.
func WithExcludeNewer(t time.Time) Option {
	return func(o *opts) error {
		o.excludeNewer = t
		return nil
	}
}

// WithSubdirs restricts the index to records from the given subdirs.
func WithSubdirs(subdirs ...string) Option {
	return func(o *opts) error {
		if len(subdirs) == 0 {
			return nil
		}
		o.subdirs = make(map[string]struct{}, len(subdirs))
		for _, s := range subdirs {
			o.subdirs[s] = struct{}{}
		}
		return nil
	}
}
