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

package lock

import (
	"cmp"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	purl "github.com/package-url/packageurl-go"

	"chainguard.dev/condakit/pkg/conda/repodata"
	"chainguard.dev/condakit/pkg/conda/solver"
	"chainguard.dev/condakit/pkg/conda/version"
)

// FormatVersion is written to Lock.Version.
const FormatVersion = "v1"

type Lock struct {
	Version  string       `json:"version"`
	Config   *Config      `json:"config,omitempty"`
	Contents LockContents `json:"contents"`
}

// Config describes the environment file used to generate the lock file.
// Used to detect that the environment changed without regenerating the lock.
type Config struct {
	Name string `json:"name,omitempty"`
	// This checksum also covers included files and command-line settings that influence the resolution.
	DeepChecksum string `json:"checksum,omitempty"`
	// Generator names the tool and version that wrote the lock.
	Generator string `json:"generator,omitempty"`
}

type LockContents struct {
	Channels []LockChannel `json:"channels"`
	// Packages sorted by platform, then name.
	Packages []LockPkg `json:"packages"`
}

type LockChannel struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

type LockPkg struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Build       string `json:"build"`
	BuildNumber uint64 `json:"build_number"`
	// Platform is the subdir the package was solved for; Subdir is where
	// the package itself lives, which may be noarch.
	Platform string `json:"platform"`
	Subdir   string `json:"subdir"`
	Channel  string `json:"channel"`
	URL      string `json:"url,omitempty"`
	MD5      string `json:"md5,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
	PURL     string `json:"purl"`
}

// PackageURL returns the package-url of a record.
func PackageURL(r *repodata.Record) string {
	q := map[string]string{
		"build":  r.Build,
		"subdir": r.Subdir,
	}
	if r.Channel != "" {
		q["channel"] = r.Channel
	}
	return purl.NewPackageURL("conda", "", r.Name, r.Version.String(), purl.QualifiersFromMap(q), "").String()
}

// LockPkgFor describes r as solved for platform.
func LockPkgFor(platform string, r *repodata.Record) LockPkg {
	return LockPkg{
		Name:        r.Name,
		Version:     r.Version.String(),
		Build:       r.Build,
		BuildNumber: r.BuildNumber,
		Platform:    platform,
		Subdir:      r.Subdir,
		Channel:     r.Channel,
		URL:         r.URL,
		MD5:         r.MD5,
		SHA256:      r.SHA256,
		PURL:        PackageURL(r),
	}
}

// New builds a lock from per platform solutions.
func New(cfg *Config, channels []LockChannel, solutions map[string]*solver.Solution) Lock {
	l := Lock{
		Version: FormatVersion,
		Config:  cfg,
		Contents: LockContents{
			Channels: slices.Clone(channels),
			Packages: []LockPkg{},
		},
	}
	for _, platform := range slices.Sorted(maps.Keys(solutions)) {
		for _, r := range solutions[platform].Records() {
			l.Contents.Packages = append(l.Contents.Packages, LockPkgFor(platform, r))
		}
	}
	return l
}

// Record rebuilds the record a locked package was made from, as far as the
// lock file describes it.
func (p LockPkg) Record() (*repodata.Record, error) {
	v, err := version.Parse(p.Version)
	if err != nil {
		return nil, fmt.Errorf("locked package %s: %w", p.Name, err)
	}
	return &repodata.Record{
		Name:        p.Name,
		Version:     v,
		Build:       p.Build,
		BuildNumber: p.BuildNumber,
		Subdir:      p.Subdir,
		Channel:     p.Channel,
		URL:         p.URL,
		MD5:         p.MD5,
		SHA256:      p.SHA256,
	}, nil
}

// Subdir2LockedPackages groups the locked packages of the given platforms.
func (lock Lock) Subdir2LockedPackages(platforms []string) map[string][]LockPkg {
	out := make(map[string][]LockPkg, len(platforms))
	for _, p := range lock.Contents.Packages {
		if slices.Contains(platforms, p.Platform) {
			out[p.Platform] = append(out[p.Platform], p)
		}
	}
	for _, pkgs := range out {
		slices.SortStableFunc(pkgs, func(a, b LockPkg) int {
			return cmp.Compare(a.Name, b.Name)
		})
	}
	return out
}

// LockedRecords returns the records locked for platform.
func (lock Lock) LockedRecords(platform string) ([]*repodata.Record, error) {
	var out []*repodata.Record
	for _, p := range lock.Subdir2LockedPackages([]string{platform})[platform] {
		r, err := p.Record()
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func FromFile(lockFile string) (Lock, error) {
	payload, err := os.ReadFile(lockFile)
	if err != nil {
		return Lock{}, fmt.Errorf("failed to load lockfile: %w", err)
	}
	var lock Lock
	if err := json.Unmarshal(payload, &lock); err != nil {
		return Lock{}, fmt.Errorf("failed to parse lockfile %s: %w", lockFile, err)
	}
	return lock, nil
}

func (lock Lock) SaveToFile(lockFile string) error {
	jsonb, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshall json: %w", err)
	}
	// Github and pre-commit checks (like end-of-file-fixer) are expecting ASCII files
	// to end with a newline that marshal is not providing.
	jsonb = append(jsonb, '\n')
	return os.WriteFile(lockFile, jsonb, 0o644)
}
