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

// Package strmatch matches textual package fields such as build strings.
//
// A pattern wrapped in `^...$` is a regular expression, a pattern
// containing `*` or `?` is a glob, and anything else matches exactly.
package strmatch

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gobwas/glob"
)

type Kind int

const (
	Exact Kind = iota
	Glob
	Regex
)

func (k Kind) String() string {
	switch k {
	case Exact:
		return "exact"
	case Glob:
		return "glob"
	case Regex:
		return "regex"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// PatternError is returned when a glob or regex fails to compile.
type PatternError struct {
	Pattern string
	Kind    Kind
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid %s pattern %q: %v", e.Kind, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Matcher is an immutable compiled pattern.
type Matcher struct {
	kind    Kind
	pattern string
	glob    glob.Glob
	re      *regexp.Regexp
}

// Parse compiles text into a Matcher.
func Parse(text string) (Matcher, error) {
	switch {
	case len(text) >= 2 && strings.HasPrefix(text, "^") && strings.HasSuffix(text, "$"):
		re, err := regexp.Compile(text)
		if err != nil {
			return Matcher{}, &PatternError{Pattern: text, Kind: Regex, Err: err}
		}
		return Matcher{kind: Regex, pattern: text, re: re}, nil
	case strings.ContainsAny(text, "*?"):
		g, err := glob.Compile(globPattern(text))
		if err != nil {
			return Matcher{}, &PatternError{Pattern: text, Kind: Glob, Err: err}
		}
		return Matcher{kind: Glob, pattern: text, glob: g}, nil
	}
	return Matcher{kind: Exact, pattern: text}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(text string) Matcher {
	m, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return m
}

// globPattern quotes everything except the `*` and `?` wildcards so
// characters like `[` or `{` in build strings are taken literally.
func globPattern(text string) string {
	var sb strings.Builder
	for _, r := range text {
		switch r {
		case '*', '?':
			sb.WriteRune(r)
		default:
			sb.WriteString(glob.QuoteMeta(string(r)))
		}
	}
	return sb.String()
}

// Match reports whether s matches the pattern.
func (m Matcher) Match(s string) bool {
	switch m.kind {
	case Glob:
		return m.glob.Match(s)
	case Regex:
		return m.re.MatchString(s)
	}
	return s == m.pattern
}

func (m Matcher) Kind() Kind {
	return m.kind
}

// IsAny reports whether the matcher accepts every string.
func (m Matcher) IsAny() bool {
	return m.kind == Glob && strings.Trim(m.pattern, "*") == ""
}

// String returns the source pattern.
func (m Matcher) String() string {
	return m.pattern
}
