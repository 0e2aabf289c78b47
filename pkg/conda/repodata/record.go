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

// Package repodata holds conda package records and reads channel
// repodata.json documents into them.
package repodata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"chainguard.dev/condakit/pkg/conda/version"
)

// NoArchType classifies architecture independent packages.
type NoArchType int

const (
	NoArchNone NoArchType = iota
	NoArchGeneric
	NoArchPython
)

func (n NoArchType) String() string {
	switch n {
	case NoArchGeneric:
		return "generic"
	case NoArchPython:
		return "python"
	}
	return ""
}

func (n NoArchType) MarshalJSON() ([]byte, error) {
	if n == NoArchNone {
		return []byte("null"), nil
	}
	return json.Marshal(n.String())
}

// UnmarshalJSON accepts the legacy boolean form (`true` means generic) as
// well as the string form.
func (n *NoArchType) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "null", "false", `""`:
		*n = NoArchNone
		return nil
	case "true":
		*n = NoArchGeneric
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("noarch: %w", err)
	}
	switch s {
	case "generic":
		*n = NoArchGeneric
	case "python":
		*n = NoArchPython
	default:
		return fmt.Errorf("noarch: unknown type %q", s)
	}
	return nil
}

// TrackFeatures decodes either a list of strings or a single string of
// comma and/or space separated features.
type TrackFeatures []string

func (tf TrackFeatures) MarshalJSON() ([]byte, error) {
	return json.Marshal(strings.Join(tf, ","))
}

func (tf *TrackFeatures) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*tf = TrackFeatures(list)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("track_features: %w", err)
	}
	*tf = TrackFeatures(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' '
	}))
	return nil
}

// Timestamp is a package build time in milliseconds since the epoch.
type Timestamp int64

// Repodata timestamps are in either seconds or milliseconds; anything past
// this many seconds is treated as milliseconds.
const maxSecondsTimestamp = 253402300799

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*ts = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if n <= maxSecondsTimestamp {
		n *= 1000
	}
	*ts = Timestamp(int64(n))
	return nil
}

// Time converts the timestamp; the zero Timestamp becomes the zero time.
func (ts Timestamp) Time() time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.UnixMilli(int64(ts)).UTC()
}

// TimestampFrom converts a time to a Timestamp.
func TimestampFrom(t time.Time) Timestamp {
	if t.IsZero() {
		return 0
	}
	return Timestamp(t.UnixMilli())
}

// Record is a single package artifact. Records are treated as immutable
// once they have been handed to an index.
type Record struct {
	Name          string          `json:"name"`
	Version       version.Version `json:"version"`
	Build         string          `json:"build"`
	BuildNumber   uint64          `json:"build_number"`
	Depends       []string        `json:"depends,omitempty"`
	Constrains    []string        `json:"constrains,omitempty"`
	TrackFeatures TrackFeatures   `json:"track_features,omitempty"`
	Features      string          `json:"features,omitempty"`
	Timestamp     Timestamp       `json:"timestamp,omitempty"`
	MD5           string          `json:"md5,omitempty"`
	SHA256        string          `json:"sha256,omitempty"`
	Size          uint64          `json:"size,omitempty"`
	Subdir        string          `json:"subdir,omitempty"`
	NoArch        NoArchType      `json:"noarch,omitempty"`
	License       string          `json:"license,omitempty"`
	LicenseFamily string          `json:"license_family,omitempty"`
	Arch          string          `json:"arch,omitempty"`
	Platform      string          `json:"platform,omitempty"`

	// Set when the record is read out of a channel.
	Channel  string `json:"-"`
	FileName string `json:"-"`
	URL      string `json:"-"`
}

// Identity is the tuple that distinguishes records.
type Identity struct {
	Name        string
	Version     string
	Build       string
	BuildNumber uint64
	Subdir      string
}

func (id Identity) String() string {
	return fmt.Sprintf("%s=%s=%s (build number %d, subdir %s)", id.Name, id.Version, id.Build, id.BuildNumber, id.Subdir)
}

func (r *Record) Identity() Identity {
	return Identity{
		Name:        r.Name,
		Version:     r.Version.String(),
		Build:       r.Build,
		BuildNumber: r.BuildNumber,
		Subdir:      r.Subdir,
	}
}

func (r *Record) String() string {
	return fmt.Sprintf("%s=%s=%s", r.Name, r.Version, r.Build)
}

// Validate checks the fields every record needs.
func (r *Record) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("record %q has no name", r.FileName)
	}
	if r.Version.IsZero() {
		return fmt.Errorf("record %s has no version", r.Name)
	}
	return nil
}
