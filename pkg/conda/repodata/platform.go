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
	"fmt"
	"runtime"
	"slices"
	"strings"
)

// Platform is a channel subdir name such as linux-64 or noarch.
type Platform string

const (
	NoArch           Platform = "noarch"
	Linux32          Platform = "linux-32"
	Linux64          Platform = "linux-64"
	LinuxAarch64     Platform = "linux-aarch64"
	LinuxArmV6l      Platform = "linux-armv6l"
	LinuxArmV7l      Platform = "linux-armv7l"
	LinuxPpc64le     Platform = "linux-ppc64le"
	LinuxPpc64       Platform = "linux-ppc64"
	LinuxS390X       Platform = "linux-s390x"
	LinuxRiscv64     Platform = "linux-riscv64"
	Osx64            Platform = "osx-64"
	OsxArm64         Platform = "osx-arm64"
	Win32            Platform = "win-32"
	Win64            Platform = "win-64"
	WinArm64         Platform = "win-arm64"
	EmscriptenWasm32 Platform = "emscripten-wasm32"
	WasiWasm32       Platform = "wasi-wasm32"
)

var KnownPlatforms = []Platform{
	NoArch,
	Linux32, Linux64, LinuxAarch64, LinuxArmV6l, LinuxArmV7l, LinuxPpc64le, LinuxPpc64, LinuxS390X, LinuxRiscv64,
	Osx64, OsxArm64,
	Win32, Win64, WinArm64,
	EmscriptenWasm32, WasiWasm32,
}

// ParsePlatform validates a subdir name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(KnownPlatforms, p) {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

func (p Platform) String() string {
	return string(p)
}

// SubdirInferenceError is returned when a legacy record has no subdir and
// its platform/arch pair does not name a known platform.
type SubdirInferenceError struct {
	Platform string
	Arch     string
}

func (e *SubdirInferenceError) Error() string {
	switch {
	case e.Platform == "":
		return "cannot determine subdir: platform is empty"
	case e.Arch == "":
		return "cannot determine subdir: arch is empty"
	}
	return fmt.Sprintf("cannot determine subdir: platform %q, arch %q is not a known combination", e.Platform, e.Arch)
}

var legacySubdirs = map[string]Platform{
	"linux-x86":     Linux32,
	"linux-x86_64":  Linux64,
	"linux-aarch64": LinuxAarch64,
	"linux-armv6l":  LinuxArmV6l,
	"linux-armv7l":  LinuxArmV7l,
	"linux-ppc64le": LinuxPpc64le,
	"linux-ppc64":   LinuxPpc64,
	"linux-s390x":   LinuxS390X,
	"osx-x86_64":    Osx64,
	"osx-arm64":     OsxArm64,
	"win-32":        Win32,
	"win-64":        Win64,
	"win-arm64":     WinArm64,
}

// DetermineSubdir maps the platform and arch fields of old index.json files
// to a subdir.
func DetermineSubdir(platform, arch string) (Platform, error) {
	if platform == "" || arch == "" {
		return "", &SubdirInferenceError{Platform: platform, Arch: arch}
	}
	p, ok := legacySubdirs[platform+"-"+arch]
	if !ok {
		return "", &SubdirInferenceError{Platform: platform, Arch: arch}
	}
	return p, nil
}

// PlatformFor maps a GOOS/GOARCH pair to the matching subdir.
func PlatformFor(goos, goarch string) (Platform, error) {
	var arch string
	switch goarch {
	case "386":
		arch = "32"
	case "amd64":
		arch = "64"
	case "arm64":
		if goos == "linux" {
			arch = "aarch64"
		} else {
			arch = "arm64"
		}
	case "arm":
		arch = "armv7l"
	default:
		arch = goarch
	}
	var os string
	switch goos {
	case "darwin":
		os = "osx"
	case "windows":
		os = "win"
	default:
		os = goos
	}
	return ParsePlatform(os + "-" + arch)
}

// HostPlatform returns the subdir of the running process, or noarch when
// it has none.
func HostPlatform() Platform {
	p, err := PlatformFor(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return NoArch
	}
	return p
}
