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

package environment

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Channel struct {
	// Required: The channel name match specs refer to, e.g. conda-forge
	Name string `json:"name" yaml:"name"`
	// Optional: Where the channel's subdirs live. A local directory or a
	// file:// URI. Defaults to a directory named after the channel, next to
	// the environment file.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`
}

// RedactedURL returns the channel URL with any password masked.
func (c Channel) RedactedURL() (string, error) {
	if !strings.Contains(c.URL, "://") {
		return c.URL, nil
	}
	parsed, err := url.Parse(c.URL)
	if err != nil {
		return "", fmt.Errorf("parsing channel URL: %w", err)
	}
	return parsed.Redacted(), nil
}

// MarshalYAML redacts credentials in the channel URL.
func (c Channel) MarshalYAML() (interface{}, error) {
	type redactedChannel Channel
	u, err := c.RedactedURL()
	if err != nil {
		return nil, err
	}
	rc := redactedChannel(c)
	rc.URL = u
	return rc, nil
}

type VirtualPackage struct {
	// Required: The package name, conventionally starting with __
	Name string `json:"name" yaml:"name"`
	// Required: The version the host provides
	Version string `json:"version" yaml:"version"`
	// Optional: The build string
	Build string `json:"build,omitempty" yaml:"build,omitempty"`
}

type Environment struct {
	// Optional: A name for the environment, used in lock files
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Required: The channels to resolve against, highest priority first
	Channels []Channel `json:"channels,omitempty" yaml:"channels,omitempty"`
	// Optional: The subdirs to solve for. noarch is always searched as well.
	//
	// Defaults to the subdir of the host.
	Subdirs []string `json:"subdirs,omitempty" yaml:"subdirs,omitempty"`
	// Required: The match specs to install
	Specs []string `json:"specs,omitempty" yaml:"specs,omitempty"`
	// Optional: How channel order affects candidate order
	//
	// This can be one of: disabled, flexible, strict
	ChannelPriority string `json:"channel-priority,omitempty" yaml:"channel-priority,omitempty"`
	// Optional: Ignore packages built after this time
	ExcludeNewer time.Time `json:"exclude-newer,omitempty" yaml:"exclude-newer,omitempty"`
	// Optional: Packages the host provides, such as __glibc
	VirtualPackages []VirtualPackage `json:"virtual-packages,omitempty" yaml:"virtual-packages,omitempty"`
	// Optional: Match specs whose best record is the only one allowed for
	// its name
	Pinned []string `json:"pinned,omitempty" yaml:"pinned,omitempty"`
	// Optional: Path to a local file containing additional environment
	// configuration
	//
	// The parent configuration is merged over the included one.
	Include string `json:"include,omitempty" yaml:"include,omitempty"`
}
