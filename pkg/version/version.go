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

// Package version reports which condakit module a binary was built from.
package version

import (
	"runtime/debug"
	"sync"
)

const modulePath = "chainguard.dev/condakit"

var moduleVersion = sync.OnceValue(func() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "unknown"
	}
	return fromBuildInfo(bi)
})

// Version returns the version of the condakit module linked into the
// running binary, or "unknown".
func Version() string {
	return moduleVersion()
}

// Generator is the name recorded in files condakit writes.
func Generator() string {
	return "condakit/" + Version()
}

func fromBuildInfo(bi *debug.BuildInfo) string {
	v := "unknown"
	if bi.Main.Path == modulePath && bi.Main.Version != "" {
		v = bi.Main.Version
	}
	for _, d := range bi.Deps {
		if d.Path != modulePath {
			continue
		}
		// A replaced module reports the replacement's version.
		if d.Replace != nil {
			return d.Replace.Version
		}
		if v == "unknown" {
			v = d.Version
		}
	}
	return v
}
