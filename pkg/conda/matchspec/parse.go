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
	"strings"

	"chainguard.dev/condakit/pkg/conda/repodata"
	"chainguard.dev/condakit/pkg/conda/strmatch"
	"chainguard.dev/condakit/pkg/conda/versionspec"
)

const operatorChars = "<>=!~"

var bracketKeys = map[string]struct{}{
	"version":      {},
	"build":        {},
	"build_number": {},
	"channel":      {},
	"subdir":       {},
	"md5":          {},
	"sha256":       {},
	"license":      {},
	"fn":           {},
}

type spec struct {
	input string
	ms    MatchSpec
}

func (s *spec) errorf(format string, args ...any) error {
	return &ParseError{Input: s.input, Reason: fmt.Sprintf(format, args...)}
}

func (s *spec) wrap(reason string, err error) error {
	return &ParseError{Input: s.input, Reason: reason, Err: err}
}

// Parse parses match spec text.
func Parse(text string) (*MatchSpec, error) {
	s := &spec{input: text}
	if err := s.parse(); err != nil {
		return nil, err
	}
	return &s.ms, nil
}

// MustParse is like Parse but panics on error.
func MustParse(text string) *MatchSpec {
	ms, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return ms
}

func (s *spec) parse() error {
	text := strings.TrimSpace(stripComment(s.input))
	if text == "" {
		return s.errorf("empty match spec")
	}

	var pairs [][2]string
	open, stray := scanBrackets(text)
	switch {
	case open >= 0:
		if !strings.HasSuffix(text, "]") {
			return s.errorf("unterminated or misplaced bracket")
		}
		var err error
		if pairs, err = s.parseBrackets(text[open+1 : len(text)-1]); err != nil {
			return err
		}
		text = strings.TrimSpace(text[:open])
	case stray:
		return s.errorf("unexpected ']'")
	}

	if strings.Contains(text, "::") {
		parts := strings.Split(text, "::")
		if len(parts) != 2 {
			return s.errorf("more than one '::' channel separator")
		}
		if strings.TrimSpace(parts[0]) == "" {
			return s.errorf("empty channel before '::'")
		}
		s.ms.Channel, s.ms.Subdir = splitChannel(strings.TrimSpace(parts[0]))
		text = strings.TrimSpace(parts[1])
	}

	name, ver, build, err := s.splitNameVersionBuild(text)
	if err != nil {
		return err
	}
	if err := s.setName(name); err != nil {
		return err
	}
	if ver != "" {
		if err := s.setVersion(ver); err != nil {
			return err
		}
	}
	if build != "" {
		if err := s.setBuild(build); err != nil {
			return err
		}
	}
	for _, kv := range pairs {
		if err := s.apply(kv[0], kv[1]); err != nil {
			return err
		}
	}
	return nil
}

// stripComment drops a trailing `# comment`. A `#` inside a bracket clause
// or a quoted value is kept.
func stripComment(text string) string {
	var quote byte
	depth := 0
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case depth > 0 && (c == '"' || c == '\''):
			quote = c
		case c == '[':
			depth++
		case c == ']' && depth > 0:
			depth--
		case c == '#':
			return text[:i]
		}
	}
	return text
}

// scanBrackets finds the `[` opening the key=value clause, or -1, and
// reports whether a `]` shows up with no clause open. Positional regex
// builds (`^...$`) can contain brackets of their own and are skipped.
func scanBrackets(text string) (open int, stray bool) {
	inRegex := false
	for i := 0; i < len(text); i++ {
		switch c := text[i]; {
		case c == ' ' || c == '\t':
			inRegex = false
		case inRegex:
		case c == '^' && (i == 0 || text[i-1] == ' ' || text[i-1] == '\t'):
			inRegex = true
		case c == '[':
			return i, false
		case c == ']':
			stray = true
		}
	}
	return -1, stray
}

// splitChannel separates a trailing subdir from a channel, as in
// `conda-forge/linux-64`.
func splitChannel(ch string) (string, string) {
	i := strings.LastIndexByte(ch, '/')
	if i <= 0 {
		return ch, ""
	}
	if p, err := repodata.ParsePlatform(ch[i+1:]); err == nil {
		return ch[:i], string(p)
	}
	return ch, ""
}

func (s *spec) parseBrackets(body string) ([][2]string, error) {
	var pairs [][2]string
	seen := map[string]struct{}{}
	rest := strings.TrimSpace(body)
	for rest != "" {
		key, after, ok := strings.Cut(rest, "=")
		if !ok {
			return nil, s.errorf("bracket clause %q has no '='", rest)
		}
		key = strings.TrimSpace(key)
		after = strings.TrimLeft(after, " ")

		var value string
		if after != "" && (after[0] == '"' || after[0] == '\'') {
			end := strings.IndexByte(after[1:], after[0])
			if end < 0 {
				return nil, s.errorf("unterminated quote in bracket clause for %q", key)
			}
			value = after[1 : end+1]
			after = strings.TrimSpace(after[end+2:])
			if after != "" && after[0] != ',' {
				return nil, s.errorf("unexpected %q after value of %q", after, key)
			}
		} else {
			v, tail, found := strings.Cut(after, ",")
			value = strings.TrimSpace(v)
			after = ""
			if found {
				after = tail
			}
		}
		rest = strings.TrimSpace(strings.TrimPrefix(after, ","))

		if _, ok := bracketKeys[key]; !ok {
			return nil, s.errorf("unknown key %q", key)
		}
		if _, ok := seen[key]; ok {
			return nil, s.errorf("duplicate key %q", key)
		}
		seen[key] = struct{}{}
		pairs = append(pairs, [2]string{key, value})
	}
	return pairs, nil
}

func (s *spec) splitNameVersionBuild(text string) (name, ver, build string, err error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", "", "", nil
	}

	name = fields[0]
	rest := fields[1:]
	if i := strings.IndexAny(name, operatorChars); i >= 0 {
		compact := name
		name = compact[:i]
		ver, build = splitCompact(compact[i:])
		if build != "" && len(rest) > 0 {
			return "", "", "", s.errorf("unexpected %q", strings.Join(rest, " "))
		}
		for len(rest) > 0 && continuesVersion(ver, rest[0]) {
			ver += rest[0]
			rest = rest[1:]
		}
	} else if len(rest) > 0 {
		ver = rest[0]
		rest = rest[1:]
		for len(rest) > 0 && continuesVersion(ver, rest[0]) {
			ver += rest[0]
			rest = rest[1:]
		}
	}

	if len(rest) > 0 {
		if build != "" {
			return "", "", "", s.errorf("unexpected %q", strings.Join(rest, " "))
		}
		build = rest[0]
		rest = rest[1:]
	}
	if len(rest) > 0 {
		return "", "", "", s.errorf("unexpected %q", strings.Join(rest, " "))
	}
	return name, ver, build, nil
}

// continuesVersion reports whether the next whitespace separated token
// belongs to the version, as in `>= 1.0` or `>=1.0, <2`.
func continuesVersion(ver, next string) bool {
	if ver == "" {
		return false
	}
	if strings.Trim(ver, operatorChars) == "" {
		return true
	}
	return strings.ContainsAny(ver[len(ver)-1:], ",|") || strings.ContainsAny(next[:1], ",|")
}

// splitCompact handles the text after the name in `name=1.0=build`,
// `name=1.0` and `name>=1.0` forms.
func splitCompact(rest string) (ver, build string) {
	if !strings.HasPrefix(rest, "=") || strings.HasPrefix(rest, "==") {
		return rest, ""
	}
	body := rest[1:]
	for j := len(body) - 1; j > 0; j-- {
		if body[j] != '=' {
			continue
		}
		if strings.ContainsRune(operatorChars, rune(body[j-1])) || (j+1 < len(body) && body[j+1] == '=') {
			continue
		}
		return "==" + body[:j], body[j+1:]
	}
	return rest, ""
}

func (s *spec) setName(name string) error {
	if name == "" || name == "*" {
		return nil
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return s.errorf("invalid character %q in package name %q", r, name)
		}
	}
	s.ms.Name = strings.ToLower(name)
	return nil
}

func (s *spec) setVersion(ver string) error {
	if s.ms.Version != nil {
		return s.errorf("version given more than once")
	}
	vs, err := versionspec.Parse(ver)
	if err != nil {
		return s.wrap("bad version", err)
	}
	if vs.IsAny() {
		// `*` still counts as given.
		vs = versionspec.Any
	}
	s.ms.Version = &vs
	return nil
}

func (s *spec) setBuild(build string) error {
	if s.ms.Build != nil {
		return s.errorf("build given more than once")
	}
	m, err := strmatch.Parse(build)
	if err != nil {
		return s.wrap("bad build", err)
	}
	s.ms.Build = &m
	return nil
}

func (s *spec) apply(key, value string) error {
	switch key {
	case "version":
		return s.setVersion(value)
	case "build":
		return s.setBuild(value)
	case "build_number":
		bn, err := ParseBuildNumber(value)
		if err != nil {
			return s.wrap("bad build_number", err)
		}
		s.ms.BuildNumber = bn
	case "channel":
		if s.ms.Channel != "" {
			return s.errorf("channel given more than once")
		}
		if value == "" {
			return s.errorf("empty channel")
		}
		ch, subdir := splitChannel(value)
		if subdir != "" && s.ms.Subdir != "" {
			return s.errorf("subdir given more than once")
		}
		s.ms.Channel = ch
		if subdir != "" {
			s.ms.Subdir = subdir
		}
	case "subdir":
		if s.ms.Subdir != "" {
			return s.errorf("subdir given more than once")
		}
		s.ms.Subdir = value
	case "md5":
		if !isHex(value, 32) {
			return s.errorf("md5 %q is not a 32 character hex digest", value)
		}
		s.ms.MD5 = strings.ToLower(value)
	case "sha256":
		if !isHex(value, 64) {
			return s.errorf("sha256 %q is not a 64 character hex digest", value)
		}
		s.ms.SHA256 = strings.ToLower(value)
	case "license":
		s.ms.License = value
	case "fn":
		s.ms.FileName = value
	}
	return nil
}

func isHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}
