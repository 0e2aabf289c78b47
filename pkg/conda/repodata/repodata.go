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

package repodata

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Channel identifies where records came from. Both fields are opaque to the
// resolver; BaseURL is only used to fill in Record.URL.
type Channel struct {
	Name    string
	BaseURL string
}

// ChannelInfo is the `info` block of a repodata document.
type ChannelInfo struct {
	Subdir  string `json:"subdir,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// RepoData is a channel subdir's repodata.json.
type RepoData struct {
	Info          *ChannelInfo       `json:"info,omitempty"`
	Packages      map[string]*Record `json:"packages"`
	CondaPackages map[string]*Record `json:"packages.conda"`
	Removed       []string           `json:"removed,omitempty"`
	Version       int                `json:"repodata_version,omitempty"`
}

// Parse decodes a repodata document.
func Parse(b []byte) (*RepoData, error) {
	var rd RepoData
	if err := json.Unmarshal(b, &rd); err != nil {
		return nil, fmt.Errorf("failed to parse repodata: %w", err)
	}
	return &rd, nil
}

// Records flattens the document into records tagged with the channel.
// `.conda` artifacts come before `.tar.bz2` ones and each group is ordered
// by file name, so the output does not depend on map iteration.
func (rd *RepoData) Records(ch Channel) ([]*Record, error) {
	removed := make(map[string]struct{}, len(rd.Removed))
	for _, fn := range rd.Removed {
		removed[fn] = struct{}{}
	}

	var subdir, baseURL string
	if rd.Info != nil {
		subdir, baseURL = rd.Info.Subdir, rd.Info.BaseURL
	}
	if baseURL == "" && ch.BaseURL != "" && subdir != "" {
		baseURL = strings.TrimSuffix(ch.BaseURL, "/") + "/" + subdir
	}

	out := make([]*Record, 0, len(rd.Packages)+len(rd.CondaPackages))
	for _, group := range []map[string]*Record{rd.CondaPackages, rd.Packages} {
		for _, fn := range slices.Sorted(maps.Keys(group)) {
			if _, ok := removed[fn]; ok {
				continue
			}
			r := group[fn]
			if r == nil {
				continue
			}
			r.FileName = fn
			r.Name = strings.ToLower(r.Name)
			r.Channel = ch.Name
			if r.Subdir == "" {
				s, err := inferSubdir(r, subdir)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", fn, err)
				}
				r.Subdir = s
			}
			if baseURL != "" {
				r.URL = strings.TrimSuffix(baseURL, "/") + "/" + fn
			}
			if err := r.Validate(); err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func inferSubdir(r *Record, fallback string) (string, error) {
	if fallback != "" {
		return fallback, nil
	}
	if r.NoArch != NoArchNone && r.Platform == "" {
		return string(NoArch), nil
	}
	p, err := DetermineSubdir(r.Platform, r.Arch)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// IndexJSON is the `info/index.json` file shipped inside a package.
type IndexJSON struct {
	Name          string        `json:"name"`
	Version       string        `json:"version"`
	Build         string        `json:"build"`
	BuildNumber   uint64        `json:"build_number"`
	Depends       []string      `json:"depends,omitempty"`
	Constrains    []string      `json:"constrains,omitempty"`
	TrackFeatures TrackFeatures `json:"track_features,omitempty"`
	Features      string        `json:"features,omitempty"`
	Timestamp     Timestamp     `json:"timestamp,omitempty"`
	Subdir        string        `json:"subdir,omitempty"`
	NoArch        NoArchType    `json:"noarch,omitempty"`
	License       string        `json:"license,omitempty"`
	LicenseFamily string        `json:"license_family,omitempty"`
	Arch          string        `json:"arch,omitempty"`
	Platform      string        `json:"platform,omitempty"`
}

// RecordFromIndexJSON builds a record from an index.json document. The
// subdir is inferred from platform and arch when the file does not have
// one.
func RecordFromIndexJSON(b []byte, size uint64, sha256, md5 string) (*Record, error) {
	var ij IndexJSON
	if err := json.Unmarshal(b, &ij); err != nil {
		return nil, fmt.Errorf("failed to parse index.json: %w", err)
	}
	r := &Record{
		Name:          strings.ToLower(ij.Name),
		Build:         ij.Build,
		BuildNumber:   ij.BuildNumber,
		Depends:       ij.Depends,
		Constrains:    ij.Constrains,
		TrackFeatures: ij.TrackFeatures,
		Features:      ij.Features,
		Timestamp:     ij.Timestamp,
		Subdir:        ij.Subdir,
		NoArch:        ij.NoArch,
		License:       ij.License,
		LicenseFamily: ij.LicenseFamily,
		Arch:          ij.Arch,
		Platform:      ij.Platform,
		Size:          size,
		SHA256:        sha256,
		MD5:           md5,
	}
	if err := r.Version.UnmarshalText([]byte(ij.Version)); err != nil {
		return nil, fmt.Errorf("index.json for %s: %w", ij.Name, err)
	}
	if r.Subdir == "" {
		p, err := DetermineSubdir(ij.Platform, ij.Arch)
		if err != nil {
			return nil, err
		}
		r.Subdir = string(p)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}
