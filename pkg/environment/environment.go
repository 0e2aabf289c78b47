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

// Package environment describes what to solve: channels, subdirs and the
// requested specs, as read from an environment file.
package environment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chainguard-dev/clog"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/util/sets"

	"chainguard.dev/condakit/pkg/conda/index"
	"chainguard.dev/condakit/pkg/conda/matchspec"
	"chainguard.dev/condakit/pkg/conda/repodata"
	"chainguard.dev/condakit/pkg/conda/version"
)

// Load reads an environment file, following includes.
func (e *Environment) Load(ctx context.Context, path string) error {
	return e.load(ctx, path, sets.New[string]())
}

func (e *Environment) load(ctx context.Context, path string, seen sets.Set[string]) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if seen.Has(abs) {
		return fmt.Errorf("include cycle through %s", path)
	}
	seen.Insert(abs)

	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("failed to read environment file: %w", err)
	}
	var cur Environment
	if err := yaml.Unmarshal(data, &cur); err != nil {
		return fmt.Errorf("failed to parse environment file %s: %w", path, err)
	}
	cur.resolveChannels(filepath.Dir(abs))

	if cur.Include != "" {
		inc := cur.Include
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(abs), inc)
		}
		var base Environment
		if err := base.load(ctx, inc, seen); err != nil {
			return fmt.Errorf("loading include %s: %w", cur.Include, err)
		}
		base.Merge(cur)
		base.Include = ""
		cur = base
	}

	clog.FromContext(ctx).Debugf("loaded environment %s with %d channels and %d specs", path, len(cur.Channels), len(cur.Specs))
	*e = cur
	return nil
}

// resolveChannels makes local channel locations absolute.
func (e *Environment) resolveChannels(dir string) {
	for i, ch := range e.Channels {
		loc := ch.URL
		if loc == "" {
			loc = ch.Name
		}
		if strings.Contains(loc, "://") || filepath.IsAbs(loc) {
			continue
		}
		e.Channels[i].URL = filepath.Join(dir, loc)
	}
}

// Merge folds other into e. Lists are appended without duplicates and set
// scalars in other win.
func (e *Environment) Merge(other Environment) {
	if other.Name != "" {
		e.Name = other.Name
	}

	names := sets.New[string]()
	for _, ch := range e.Channels {
		names.Insert(ch.Name)
	}
	for _, ch := range other.Channels {
		if !names.Has(ch.Name) {
			names.Insert(ch.Name)
			e.Channels = append(e.Channels, ch)
			continue
		}
		if ch.URL == "" {
			continue
		}
		for i := range e.Channels {
			if e.Channels[i].Name == ch.Name {
				e.Channels[i].URL = ch.URL
			}
		}
	}

	e.Subdirs = appendNew(e.Subdirs, other.Subdirs)
	e.Specs = appendNew(e.Specs, other.Specs)
	e.Pinned = appendNew(e.Pinned, other.Pinned)

	for _, vp := range other.VirtualPackages {
		i := slices.IndexFunc(e.VirtualPackages, func(have VirtualPackage) bool {
			return have.Name == vp.Name
		})
		if i >= 0 {
			e.VirtualPackages[i] = vp
		} else {
			e.VirtualPackages = append(e.VirtualPackages, vp)
		}
	}

	if other.ChannelPriority != "" {
		e.ChannelPriority = other.ChannelPriority
	}
	if !other.ExcludeNewer.IsZero() {
		e.ExcludeNewer = other.ExcludeNewer
	}
}

func appendNew(have, more []string) []string {
	seen := sets.New(have...)
	for _, s := range more {
		if !seen.Has(s) {
			seen.Insert(s)
			have = append(have, s)
		}
	}
	return have
}

// Do preflight checks and fill in defaults.
func (e *Environment) Validate() error {
	if len(e.Channels) == 0 {
		return fmt.Errorf("no channels configured")
	}
	names := sets.New[string]()
	for _, ch := range e.Channels {
		if ch.Name == "" {
			return fmt.Errorf("configured channel %v has no name", ch)
		}
		if names.Has(ch.Name) {
			return fmt.Errorf("channel %q configured more than once", ch.Name)
		}
		names.Insert(ch.Name)
	}

	if len(e.Subdirs) == 0 {
		e.Subdirs = []string{string(repodata.HostPlatform())}
	}
	subdirs := make([]string, 0, len(e.Subdirs))
	for _, s := range e.Subdirs {
		p, err := repodata.ParsePlatform(s)
		if err != nil {
			return err
		}
		if !slices.Contains(subdirs, string(p)) {
			subdirs = append(subdirs, string(p))
		}
	}
	e.Subdirs = subdirs

	if len(e.Specs) == 0 {
		return fmt.Errorf("no specs configured")
	}
	if _, err := e.RootSpecs(); err != nil {
		return err
	}
	if _, err := e.PinnedSpecs(); err != nil {
		return err
	}
	if _, err := index.ParseChannelPriority(e.ChannelPriority); err != nil {
		return err
	}
	if _, err := e.VirtualRecords(); err != nil {
		return err
	}
	return nil
}

// RootSpecs parses the requested specs.
func (e *Environment) RootSpecs() ([]*matchspec.MatchSpec, error) {
	return parseSpecs(e.Specs)
}

// PinnedSpecs parses the pins. Pins must name a package.
func (e *Environment) PinnedSpecs() ([]*matchspec.MatchSpec, error) {
	specs, err := parseSpecs(e.Pinned)
	if err != nil {
		return nil, err
	}
	for _, ms := range specs {
		if ms.IsNameless() {
			return nil, fmt.Errorf("pin %q does not name a package", ms)
		}
	}
	return specs, nil
}

func parseSpecs(texts []string) ([]*matchspec.MatchSpec, error) {
	out := make([]*matchspec.MatchSpec, 0, len(texts))
	for _, t := range texts {
		ms, err := matchspec.Parse(t)
		if err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	return out, nil
}

// VirtualRecords turns the configured virtual packages into records.
func (e *Environment) VirtualRecords() ([]*repodata.Record, error) {
	out := make([]*repodata.Record, 0, len(e.VirtualPackages))
	for _, vp := range e.VirtualPackages {
		if vp.Name == "" {
			return nil, fmt.Errorf("virtual package %v has no name", vp)
		}
		v, err := version.Parse(vp.Version)
		if err != nil {
			return nil, fmt.Errorf("virtual package %s: %w", vp.Name, err)
		}
		out = append(out, &repodata.Record{
			Name:    strings.ToLower(vp.Name),
			Version: v,
			Build:   vp.Build,
			Subdir:  string(repodata.NoArch),
			Channel: "@virtual",
		})
	}
	return out, nil
}

// IndexOptions returns the index options for solving subdir.
func (e *Environment) IndexOptions(subdir string) ([]index.Option, error) {
	priority, err := index.ParseChannelPriority(e.ChannelPriority)
	if err != nil {
		return nil, err
	}
	opts := []index.Option{
		index.WithChannelPriority(priority),
		index.WithSubdirs(searchSubdirs(subdir)...),
	}
	if !e.ExcludeNewer.IsZero() {
		opts = append(opts, index.WithExcludeNewer(e.ExcludeNewer))
	}
	return opts, nil
}

func searchSubdirs(subdir string) []string {
	if subdir == string(repodata.NoArch) {
		return []string{subdir}
	}
	return []string{subdir, string(repodata.NoArch)}
}

var repodataNames = []string{"repodata.json.zst", "repodata.json.gz", "repodata.json"}

// RepodataPaths returns the locations repodata for a channel subdir may be
// found at, in the order they should be tried.
func RepodataPaths(ch Channel, subdir string) []string {
	base := ch.URL
	if base == "" {
		base = ch.Name
	}
	out := make([]string, 0, len(repodataNames))
	for _, n := range repodataNames {
		if strings.Contains(base, "://") {
			out = append(out, strings.TrimSuffix(base, "/")+"/"+subdir+"/"+n)
		} else {
			out = append(out, filepath.Join(base, subdir, n))
		}
	}
	return out
}

func (e *Environment) Summarize(logger *clog.Logger) {
	logger.Infof("environment configuration:")
	if e.Name != "" {
		logger.Infof("  name:     %s", e.Name)
	}
	logger.Infof("  channels:")
	for _, ch := range e.Channels {
		logger.Infof("    - %s (%s)", ch.Name, ch.URL)
	}
	logger.Infof("  subdirs:  %v", e.Subdirs)
	logger.Infof("  specs:    %v", e.Specs)
	if len(e.Pinned) != 0 {
		logger.Infof("  pinned:   %v", e.Pinned)
	}
	if len(e.VirtualPackages) != 0 {
		logger.Infof("  virtual packages:")
		for _, vp := range e.VirtualPackages {
			logger.Infof("    - %s=%s=%s", vp.Name, vp.Version, vp.Build)
		}
	}
	if e.ChannelPriority != "" {
		logger.Infof("  channel priority: %s", e.ChannelPriority)
	}
	if !e.ExcludeNewer.IsZero() {
		logger.Infof("  exclude newer:    %s", e.ExcludeNewer)
	}
}
