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

package matchspec

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Dependency strings repeat heavily across a channel (think "python >=3.8"),
// so parsed specs are memoized. Entries are immutable and errors are cached
// alongside successes.
const parseCacheSize = 1 << 14

type parsed struct {
	ms  *MatchSpec
	err error
}

var parseCache = func() *lru.Cache[string, parsed] {
	c, err := lru.New[string, parsed](parseCacheSize)
	if err != nil {
		panic(err)
	}
	return c
}()

// ParseCached is Parse backed by a process wide LRU. Callers must not
// modify the returned spec.
func ParseCached(text string) (*MatchSpec, error) {
	if p, ok := parseCache.Get(text); ok {
		return p.ms, p.err
	}
	ms, err := Parse(text)
	parseCache.Add(text, parsed{ms: ms, err: err})
	return ms, err
}
