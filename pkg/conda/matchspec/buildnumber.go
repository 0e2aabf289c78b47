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
	"fmt"
	"strconv"
	"strings"
)

// BuildNumberSpec constrains a record's build number.
type BuildNumberSpec struct {
	Op    string
	Value uint64
}

var buildNumberOps = []string{"==", "!=", "<=", ">=", "<", ">", "="}

// ParseBuildNumber parses `N` or an operator followed by N.
func ParseBuildNumber(s string) (*BuildNumberSpec, error) {
	text := strings.TrimSpace(s)
	op := "=="
	for _, candidate := range buildNumberOps {
		if strings.HasPrefix(text, candidate) {
			op = candidate
			text = strings.TrimSpace(text[len(candidate):])
			break
		}
	}
	if op == "=" {
		op = "=="
	}
	n, err := strconv.ParseUint(text, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid build number %q", s)
	}
	return &BuildNumberSpec{Op: op, Value: n}, nil
}

func (b *BuildNumberSpec) Matches(n uint64) bool {
	switch b.Op {
	case "==":
		return n == b.Value
	case "!=":
		return n != b.Value
	case "<=":
		return n <= b.Value
	case ">=":
		return n >= b.Value
	case "<":
		return n < b.Value
	case ">":
		return n > b.Value
	}
	return false
}

func (b *BuildNumberSpec) String() string {
	if b.Op == "==" {
		return strconv.FormatUint(b.Value, 10)
	}
	return b.Op + strconv.FormatUint(b.Value, 10)
}
