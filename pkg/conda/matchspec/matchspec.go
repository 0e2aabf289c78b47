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

// Package matchspec parses conda match specs and matches them against
// package records.
//
// The accepted forms are
//
//	[channel[/subdir]::]name [version [build]][key=value, ...]
//	name=1.2        (same as name 1.2.*)
//	name=1.2=build  (exact version and build)
//	name==1.2
//	name>=1.2,<2
//
// A spec without a name (or with `*` for a name) is only useful when some
// other field such as a hash identifies the record.
package matchspec

import (
	"fmt"
	"strings"

	"chainguard.dev/condakit/pkg/conda/repodata"
	"chainguard.dev/condakit/pkg/conda/strmatch"
	"chainguard.dev/condakit/pkg/conda/versionspec"
)

// ParseError describes malformed match spec text.
type ParseError struct {
	Input  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid match spec %q: %s: %v", e.Input, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid match spec %q: %s", e.Input, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MatchSpec selects package records. Unset fields do not constrain.
type MatchSpec struct {
	Name        string
	Version     *versionspec.VersionSpec
	Build       *strmatch.Matcher
	BuildNumber *BuildNumberSpec
	Channel     string
	Subdir      string
	MD5         string
	SHA256      string
	License     string
	FileName    string
}

// IsNameless reports whether the spec has no package name.
func (ms *MatchSpec) IsNameless() bool {
	return ms.Name == ""
}

// HasHash reports whether the spec pins an artifact by content hash.
func (ms *MatchSpec) HasHash() bool {
	return ms.MD5 != "" || ms.SHA256 != ""
}

// Matches reports whether r satisfies every field set on the spec.
func (ms *MatchSpec) Matches(r *repodata.Record) bool {
	if ms.Name != "" && ms.Name != r.Name {
		return false
	}
	return ms.MatchesIgnoringName(r)
}

// MatchesIgnoringName is Matches without the name check, for nameless
// root specs that have already been tied to a package name.
func (ms *MatchSpec) MatchesIgnoringName(r *repodata.Record) bool {
	switch {
	case ms.Version != nil && !ms.Version.Matches(r.Version):
		return false
	case ms.Build != nil && !ms.Build.Match(r.Build):
		return false
	case ms.BuildNumber != nil && !ms.BuildNumber.Matches(r.BuildNumber):
		return false
	case ms.Channel != "" && !channelMatches(ms.Channel, r.Channel):
		return false
	case ms.Subdir != "" && ms.Subdir != r.Subdir:
		return false
	case ms.MD5 != "" && !strings.EqualFold(ms.MD5, r.MD5):
		return false
	case ms.SHA256 != "" && !strings.EqualFold(ms.SHA256, r.SHA256):
		return false
	case ms.License != "" && ms.License != r.License:
		return false
	case ms.FileName != "" && ms.FileName != r.FileName:
		return false
	}
	return true
}

func channelMatches(want, have string) bool {
	return strings.TrimSuffix(want, "/") == strings.TrimSuffix(have, "/")
}

// String formats the spec so that Parse reads it back to an equivalent
// spec.
func (ms *MatchSpec) String() string {
	var sb strings.Builder
	// Only a known platform survives as a `channel/subdir::` prefix; any
	// other subdir would read back as part of the channel.
	prefixSubdir := false
	if ms.Channel != "" {
		sb.WriteString(ms.Channel)
		if p, err := repodata.ParsePlatform(ms.Subdir); err == nil && string(p) == ms.Subdir {
			prefixSubdir = true
			sb.WriteString("/")
			sb.WriteString(ms.Subdir)
		}
		sb.WriteString("::")
	}
	if ms.Name == "" {
		sb.WriteString("*")
	} else {
		sb.WriteString(ms.Name)
	}

	var brackets []string
	build := ""
	if ms.Build != nil {
		if b := ms.Build.String(); b != "" && !strings.ContainsAny(b, " []=,'\"#") {
			build = b
		} else {
			brackets = append(brackets, "build="+quote(b))
		}
	}
	switch {
	case ms.Version != nil:
		sb.WriteString(" ")
		sb.WriteString(ms.Version.String())
		if build != "" {
			sb.WriteString(" ")
			sb.WriteString(build)
		}
	case build != "":
		sb.WriteString(" * ")
		sb.WriteString(build)
	}

	if ms.BuildNumber != nil {
		brackets = append(brackets, "build_number="+quote(ms.BuildNumber.String()))
	}
	if ms.Subdir != "" && !prefixSubdir {
		brackets = append(brackets, "subdir="+quote(ms.Subdir))
	}
	if ms.MD5 != "" {
		brackets = append(brackets, "md5="+ms.MD5)
	}
	if ms.SHA256 != "" {
		brackets = append(brackets, "sha256="+ms.SHA256)
	}
	if ms.License != "" {
		brackets = append(brackets, "license="+quote(ms.License))
	}
	if ms.FileName != "" {
		brackets = append(brackets, "fn="+quote(ms.FileName))
	}
	if len(brackets) > 0 {
		sb.WriteString("[")
		sb.WriteString(strings.Join(brackets, ", "))
		sb.WriteString("]")
	}
	return sb.String()
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " ,=[]'\"<>!|#") {
		if strings.Contains(s, `"`) {
			return "'" + s + "'"
		}
		return `"` + s + `"`
	}
	return s
}

func (ms *MatchSpec) MarshalText() ([]byte, error) {
	return []byte(ms.String()), nil
}

func (ms *MatchSpec) UnmarshalText(text []byte) error {
	p, err := Parse(string(text))
	if err != nil {
		return err
	}
	*ms = *p
	return nil
}
