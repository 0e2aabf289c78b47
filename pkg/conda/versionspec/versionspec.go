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

// Package versionspec implements conda version constraints such as
// `>=3.10,<3.12`, `1.2.*` or `~=2.1|>=3`.
package versionspec

import (
	"fmt"
	"strings"

	"chainguard.dev/condakit/pkg/conda/version"
)

// ParseError is returned for malformed version constraints.
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid version spec %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid version spec %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Operator is the relation a single constraint applies to a version.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpStartsWith
	OpNotStartsWith
	OpCompatible
)

// operators in matching order: longer tokens first.
var operatorTokens = []struct {
	token string
	op    Operator
}{
	{"==", OpEqual},
	{"!=", OpNotEqual},
	{"<=", OpLessEqual},
	{">=", OpGreaterEqual},
	{"~=", OpCompatible},
	{"<", OpLess},
	{">", OpGreater},
	{"=", OpStartsWith},
}

const operatorChars = "<>=!~"

type constraint struct {
	op     Operator
	v      version.Version
	prefix version.Version // for OpCompatible
}

func (c constraint) matches(v version.Version) bool {
	switch c.op {
	case OpEqual:
		return version.Compare(v, c.v) == 0
	case OpNotEqual:
		return version.Compare(v, c.v) != 0
	case OpLess:
		return version.Compare(v, c.v) < 0
	case OpLessEqual:
		return version.Compare(v, c.v) <= 0
	case OpGreater:
		return version.Compare(v, c.v) > 0
	case OpGreaterEqual:
		return version.Compare(v, c.v) >= 0
	case OpStartsWith:
		return v.StartsWith(c.v)
	case OpNotStartsWith:
		return !v.StartsWith(c.v)
	case OpCompatible:
		return version.Compare(v, c.v) >= 0 && v.StartsWith(c.prefix)
	}
	return false
}

func (c constraint) String() string {
	switch c.op {
	case OpEqual:
		return "==" + c.v.String()
	case OpNotEqual:
		return "!=" + c.v.String()
	case OpLess:
		return "<" + c.v.String()
	case OpLessEqual:
		return "<=" + c.v.String()
	case OpGreater:
		return ">" + c.v.String()
	case OpGreaterEqual:
		return ">=" + c.v.String()
	case OpStartsWith:
		return c.v.String() + ".*"
	case OpNotStartsWith:
		return "!=" + c.v.String() + ".*"
	case OpCompatible:
		return "~=" + c.v.String()
	}
	return "?"
}

type nodeKind int

const (
	kindAny nodeKind = iota
	kindConstraint
	kindAnd
	kindOr
)

type node struct {
	kind     nodeKind
	c        constraint
	children []*node
}

func (n *node) matches(v version.Version) bool {
	switch n.kind {
	case kindConstraint:
		return n.c.matches(v)
	case kindAnd:
		for _, c := range n.children {
			if !c.matches(v) {
				return false
			}
		}
		return true
	case kindOr:
		for _, c := range n.children {
			if c.matches(v) {
				return true
			}
		}
		return false
	}
	return true
}

func (n *node) write(sb *strings.Builder) {
	switch n.kind {
	case kindAny:
		sb.WriteString("*")
	case kindConstraint:
		sb.WriteString(n.c.String())
	case kindAnd:
		for i, c := range n.children {
			if i > 0 {
				sb.WriteByte(',')
			}
			if c.kind == kindOr {
				sb.WriteByte('(')
				c.write(sb)
				sb.WriteByte(')')
			} else {
				c.write(sb)
			}
		}
	case kindOr:
		for i, c := range n.children {
			if i > 0 {
				sb.WriteByte('|')
			}
			c.write(sb)
		}
	}
}

// VersionSpec is an immutable predicate over versions. The zero value
// matches every version.
type VersionSpec struct {
	root *node
}

// Any matches every version.
var Any = VersionSpec{}

// Parse parses a version constraint expression.
func Parse(s string) (VersionSpec, error) {
	text := strings.TrimSpace(s)
	if text == "" || text == "*" {
		return Any, nil
	}
	p := &parser{input: s, text: text}
	root, err := p.parseOr()
	if err != nil {
		return VersionSpec{}, err
	}
	if p.pos < len(p.text) {
		return VersionSpec{}, p.errorf("unexpected %q", p.text[p.pos:])
	}
	return VersionSpec{root: root}, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) VersionSpec {
	vs, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return vs
}

// Matches reports whether v satisfies the spec.
func (vs VersionSpec) Matches(v version.Version) bool {
	if vs.root == nil {
		return true
	}
	return vs.root.matches(v)
}

// IsAny reports whether the spec matches every version.
func (vs VersionSpec) IsAny() bool {
	return vs.root == nil || vs.root.kind == kindAny
}

// String returns the canonical form of the spec.
func (vs VersionSpec) String() string {
	if vs.root == nil {
		return "*"
	}
	var sb strings.Builder
	vs.root.write(&sb)
	return sb.String()
}

func (vs VersionSpec) MarshalText() ([]byte, error) {
	return []byte(vs.String()), nil
}

func (vs *VersionSpec) UnmarshalText(text []byte) error {
	p, err := Parse(string(text))
	if err != nil {
		return err
	}
	*vs = p
	return nil
}

type parser struct {
	input string
	text  string
	pos   int
}

func (p *parser) errorf(format string, args ...any) error {
	return &ParseError{Input: p.input, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) peek() byte {
	if p.pos < len(p.text) {
		return p.text[p.pos]
	}
	return 0
}

func (p *parser) parseOr() (*node, error) {
	var children []*node
	for {
		n, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
		if p.peek() != '|' {
			break
		}
		p.pos++
	}
	return collapse(kindOr, children), nil
}

func (p *parser) parseAnd() (*node, error) {
	var children []*node
	for {
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		children = append(children, n)
		if p.peek() != ',' {
			break
		}
		p.pos++
	}
	return collapse(kindAnd, children), nil
}

func (p *parser) parseUnary() (*node, error) {
	p.skipSpace()
	if p.peek() == '(' {
		p.pos++
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ')' {
			return nil, p.errorf("missing closing parenthesis")
		}
		p.pos++
		p.skipSpace()
		return n, nil
	}

	start := p.pos
	for p.pos < len(p.text) && !strings.ContainsRune(",|()", rune(p.text[p.pos])) {
		p.pos++
	}
	term := strings.TrimSpace(p.text[start:p.pos])
	if term == "" {
		return nil, p.errorf("empty constraint at offset %d", start)
	}
	return p.parseTerm(term)
}

func (p *parser) skipSpace() {
	for p.pos < len(p.text) && p.text[p.pos] == ' ' {
		p.pos++
	}
}

// collapse drops single-child groups and flattens nested groups of the
// same kind.
func collapse(kind nodeKind, children []*node) *node {
	if len(children) == 1 {
		return children[0]
	}
	flat := make([]*node, 0, len(children))
	for _, c := range children {
		if c.kind == kind {
			flat = append(flat, c.children...)
			continue
		}
		flat = append(flat, c)
	}
	return &node{kind: kind, children: flat}
}

func (p *parser) parseTerm(term string) (*node, error) {
	if term == "*" {
		return &node{kind: kindAny}, nil
	}

	op, hasOp := OpEqual, false
	rest := term
	if strings.ContainsRune(operatorChars, rune(term[0])) {
		for _, t := range operatorTokens {
			if strings.HasPrefix(term, t.token) {
				op, hasOp = t.op, true
				rest = term[len(t.token):]
				break
			}
		}
		if !hasOp || (rest != "" && strings.ContainsRune(operatorChars, rune(rest[0]))) {
			return nil, p.errorf("unknown operator in %q", term)
		}
		rest = strings.TrimSpace(rest)
	}
	if rest == "" {
		return nil, p.errorf("missing version in %q", term)
	}
	if strings.ContainsRune(rest, ' ') {
		return nil, p.errorf("unexpected whitespace in %q", term)
	}

	glob := false
	switch {
	case strings.HasSuffix(rest, ".*"):
		rest, glob = strings.TrimSuffix(rest, ".*"), true
	case strings.HasSuffix(rest, "*"):
		rest, glob = strings.TrimSuffix(rest, "*"), true
	}
	if rest == "" || strings.Contains(rest, "*") {
		return nil, p.errorf("invalid glob in %q", term)
	}

	v, err := version.Parse(rest)
	if err != nil {
		return nil, &ParseError{Input: p.input, Reason: fmt.Sprintf("bad version in %q", term), Err: err}
	}

	c := constraint{op: op, v: v}
	switch op {
	case OpEqual:
		if glob {
			c.op = OpStartsWith
		}
	case OpNotEqual:
		if glob {
			c.op = OpNotStartsWith
		}
	case OpCompatible:
		if glob {
			return nil, p.errorf("~= cannot be combined with a glob in %q", term)
		}
		prefix, ok := v.CompatiblePrefix()
		if !ok {
			return nil, p.errorf("~= requires at least two version segments in %q", term)
		}
		c.prefix = prefix
	}
	// Ordering operators ignore a trailing glob: `>=1.2.*` means `>=1.2`.
	return &node{kind: kindConstraint, c: c}, nil
}
