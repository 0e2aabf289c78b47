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

// Package version implements conda package versions and their ordering.
//
// A version is an optional epoch (`N!`), a sequence of segments separated by
// `.`, `-` or `_`, and an optional local version after `+`. Each segment is
// split into components at digit/letter boundaries, so `1.0a1` is parsed as
// the segments `[1]` and `[0, a, 1]`.
//
// Components are ordered as follows:
//
//	dev < other strings (lexicographic) < integers < post
//
// which yields the familiar `dev < a < b < rc < (release) < post`. Missing
// components and segments compare as the integer 0, so `1.1` equals `1.1.0`.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseError is returned when a version string cannot be parsed.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid version %q: %s", e.Input, e.Reason)
}

type componentClass int

// the order of these matters!
const (
	classDev componentClass = iota
	classString
	classNumber
	classPost
)

type component struct {
	num uint64
	str string
}

func (c component) isNum() bool { return c.str == "" }

func (c component) class() componentClass {
	switch c.str {
	case "":
		return classNumber
	case "dev":
		return classDev
	case "post":
		return classPost
	default:
		return classString
	}
}

func (c component) String() string {
	if c.isNum() {
		return strconv.FormatUint(c.num, 10)
	}
	return c.str
}

var zero = component{}

func compareComponent(a, b component) int {
	ac, bc := a.class(), b.class()
	switch {
	case ac < bc:
		return -1
	case ac > bc:
		return 1
	}
	switch ac {
	case classNumber:
		switch {
		case a.num < b.num:
			return -1
		case a.num > b.num:
			return 1
		}
		return 0
	case classString:
		return strings.Compare(a.str, b.str)
	}
	return 0
}

type segment []component

func (s segment) at(i int) component {
	if i < len(s) {
		return s[i]
	}
	return zero
}

func compareSegment(a, b segment) int {
	for i := 0; i < max(len(a), len(b)); i++ {
		if c := compareComponent(a.at(i), b.at(i)); c != 0 {
			return c
		}
	}
	return 0
}

var zeroSegment = segment{zero}

func segmentAt(segs []segment, i int) segment {
	if i < len(segs) {
		return segs[i]
	}
	return zeroSegment
}

func compareSegments(a, b []segment) int {
	for i := 0; i < max(len(a), len(b)); i++ {
		if c := compareSegment(segmentAt(a, i), segmentAt(b, i)); c != 0 {
			return c
		}
	}
	return 0
}

// Version is a parsed conda version. The zero value is not a valid version.
type Version struct {
	source   string
	epoch    uint64
	segments []segment
	local    []segment
}

// Parse parses a conda version string.
func Parse(s string) (Version, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return Version{}, &ParseError{Input: s, Reason: "empty version"}
	}
	lower := strings.ToLower(text)
	for _, r := range lower {
		if !isAllowed(r) {
			return Version{}, &ParseError{Input: s, Reason: fmt.Sprintf("invalid character %q", r)}
		}
	}

	v := Version{source: text}
	rest := lower
	if before, after, ok := strings.Cut(rest, "!"); ok {
		if strings.Contains(after, "!") {
			return Version{}, &ParseError{Input: s, Reason: "duplicated epoch separator '!'"}
		}
		epoch, err := strconv.ParseUint(before, 10, 64)
		if err != nil {
			return Version{}, &ParseError{Input: s, Reason: fmt.Sprintf("epoch %q must be an integer", before)}
		}
		v.epoch = epoch
		rest = after
	}

	if before, after, ok := strings.Cut(rest, "+"); ok {
		if strings.Contains(after, "+") {
			return Version{}, &ParseError{Input: s, Reason: "duplicated local version separator '+'"}
		}
		if after == "" {
			return Version{}, &ParseError{Input: s, Reason: "local version is empty"}
		}
		local, err := parseSegments(after)
		if err != nil {
			return Version{}, &ParseError{Input: s, Reason: "local version: " + err.Error()}
		}
		v.local = local
		rest = before
	}

	if rest == "" {
		return Version{}, &ParseError{Input: s, Reason: "missing version segments"}
	}
	segs, err := parseSegments(rest)
	if err != nil {
		return Version{}, &ParseError{Input: s, Reason: err.Error()}
	}
	v.segments = segs
	return v, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level values.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func isAllowed(r rune) bool {
	switch {
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z':
		return true
	}
	return strings.ContainsRune(".-_+!", r)
}

func isSeparator(r rune) bool {
	return r == '.' || r == '-' || r == '_'
}

func parseSegments(s string) ([]segment, error) {
	// openssl style versions like 1.0.2_ keep the trailing separator as a
	// component of its own.
	trailing := false
	if strings.HasSuffix(s, "-") || strings.HasSuffix(s, "_") {
		trailing = true
		s = s[:len(s)-1]
	}

	parts := strings.FieldsFunc(s, isSeparator)
	// FieldsFunc drops empty fields, so count separators to catch them.
	if seps := strings.Count(s, ".") + strings.Count(s, "-") + strings.Count(s, "_"); s == "" || len(parts) != seps+1 {
		return nil, fmt.Errorf("empty segment")
	}

	segs := make([]segment, 0, len(parts))
	for _, part := range parts {
		seg, err := parseSegment(part)
		if err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	if trailing {
		last := len(segs) - 1
		segs[last] = append(segs[last], component{str: "_"})
	}
	return segs, nil
}

func parseSegment(s string) (segment, error) {
	var seg segment
	for i := 0; i < len(s); {
		j := i
		digits := isDigit(s[i])
		for j < len(s) && isDigit(s[j]) == digits {
			j++
		}
		run := s[i:j]
		if digits {
			n, err := strconv.ParseUint(run, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("number %q is out of range", run)
			}
			seg = append(seg, component{num: n})
		} else {
			if i == 0 {
				seg = append(seg, zero)
			}
			seg = append(seg, component{str: run})
		}
		i = j
	}
	return seg, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// String returns the version as it was written, minus surrounding whitespace.
func (v Version) String() string {
	return v.source
}

// IsZero reports whether v is the zero value.
func (v Version) IsZero() bool {
	return v.segments == nil
}

// Epoch returns the epoch, 0 when none was given.
func (v Version) Epoch() uint64 {
	return v.epoch
}

// HasLocal reports whether the version carries a local version suffix.
func (v Version) HasLocal() bool {
	return len(v.local) > 0
}

// Segments returns the string form of every component, grouped by segment.
func (v Version) Segments() [][]string {
	return formatSegments(v.segments)
}

// Local returns the components of the local version, if any.
func (v Version) Local() [][]string {
	return formatSegments(v.local)
}

func formatSegments(segs []segment) [][]string {
	out := make([][]string, 0, len(segs))
	for _, seg := range segs {
		parts := make([]string, 0, len(seg))
		for _, c := range seg {
			parts = append(parts, c.String())
		}
		out = append(out, parts)
	}
	return out
}

// IsDev reports whether any component is a dev marker.
func (v Version) IsDev() bool {
	for _, seg := range v.segments {
		for _, c := range seg {
			if c.class() == classDev {
				return true
			}
		}
	}
	return false
}

// Compare returns -1, 0 or 1 depending on whether v sorts before, equal to
// or after o.
func (v Version) Compare(o Version) int {
	return Compare(v, o)
}

// Equal reports whether v and o compare equal.
func (v Version) Equal(o Version) bool {
	return Compare(v, o) == 0
}

// Less reports whether v sorts strictly before o.
func (v Version) Less(o Version) bool {
	return Compare(v, o) < 0
}

// Compare orders two versions; it is suitable for slices.SortFunc.
func Compare(a, b Version) int {
	switch {
	case a.epoch < b.epoch:
		return -1
	case a.epoch > b.epoch:
		return 1
	}
	if c := compareSegments(a.segments, b.segments); c != 0 {
		return c
	}
	switch {
	case !a.HasLocal() && !b.HasLocal():
		return 0
	case !a.HasLocal():
		return -1
	case !b.HasLocal():
		return 1
	}
	return compareSegments(a.local, b.local)
}

// StartsWith reports whether v falls under prefix in the `prefix.*` sense:
// every segment of prefix but the last matches exactly, and the last one
// matches the leading components of v's corresponding segment. A trailing
// string component matches as a string prefix, so `1.0.*` matches `1.0`,
// `1.0.5` and `1.0a1`, but not `1.05`.
func (v Version) StartsWith(prefix Version) bool {
	if v.epoch != prefix.epoch {
		return false
	}
	if prefix.HasLocal() {
		return compareSegments(v.segments, prefix.segments) == 0 && segmentsStartWith(v.local, prefix.local)
	}
	return segmentsStartWith(v.segments, prefix.segments)
}

func segmentsStartWith(have, prefix []segment) bool {
	if len(prefix) == 0 {
		return true
	}
	last := len(prefix) - 1
	for i := 0; i < last; i++ {
		if compareSegment(segmentAt(have, i), prefix[i]) != 0 {
			return false
		}
	}
	hs, ps := segmentAt(have, last), prefix[last]
	for j, pc := range ps {
		hc := hs.at(j)
		if j == len(ps)-1 && !pc.isNum() {
			return !hc.isNum() && strings.HasPrefix(hc.str, pc.str)
		}
		if compareComponent(hc, pc) != 0 {
			return false
		}
	}
	return true
}

// CompatiblePrefix returns v without its last segment, the prefix that
// `~=v` requires. It reports false when v has fewer than two segments.
func (v Version) CompatiblePrefix() (Version, bool) {
	if len(v.segments) < 2 {
		return Version{}, false
	}
	p := Version{
		epoch:    v.epoch,
		segments: v.segments[:len(v.segments)-1],
	}
	p.source = p.format()
	return p, true
}

func (v Version) format() string {
	var sb strings.Builder
	if v.epoch != 0 {
		sb.WriteString(strconv.FormatUint(v.epoch, 10))
		sb.WriteByte('!')
	}
	writeSegments(&sb, v.segments)
	if v.HasLocal() {
		sb.WriteByte('+')
		writeSegments(&sb, v.local)
	}
	return sb.String()
}

func writeSegments(sb *strings.Builder, segs []segment) {
	for i, seg := range segs {
		if i > 0 {
			sb.WriteByte('.')
		}
		for _, c := range seg {
			sb.WriteString(c.String())
		}
	}
}

func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.source), nil
}

func (v *Version) UnmarshalText(text []byte) error {
	p, err := Parse(string(text))
	if err != nil {
		return err
	}
	*v = p
	return nil
}
