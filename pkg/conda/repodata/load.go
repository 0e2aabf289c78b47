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
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.lsp.dev/uri"
	"go.opentelemetry.io/otel"
)

// ErrRemoteLocation is returned for locations that would need network
// access; fetching remote repodata is left to the caller.
var ErrRemoteLocation = errors.New("remote repodata locations are not supported")

// Load reads an uncompressed repodata document.
func Load(ctx context.Context, r io.Reader, ch Channel) ([]*Record, error) {
	ctx, span := otel.Tracer("condakit").Start(ctx, "repodata.Load")
	defer span.End()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading repodata: %w", err)
	}
	rd, err := Parse(b)
	if err != nil {
		return nil, err
	}
	records, err := rd.Records(ch)
	if err != nil {
		return nil, err
	}
	clog.FromContext(ctx).Debugf("loaded %d records from channel %q", len(records), ch.Name)
	return records, nil
}

// LoadFile reads repodata from a local path or file:// URI. Files ending
// in .zst or .gz are decompressed.
func LoadFile(ctx context.Context, location string, ch Channel) ([]*Record, error) {
	ctx, span := otel.Tracer("condakit").Start(ctx, "repodata.LoadFile")
	defer span.End()

	p, err := LocalPath(location)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("opening repodata: %w", err)
	}
	defer f.Close()

	records, err := loadCompressed(ctx, f, p, ch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return records, nil
}

// LoadFS is like LoadFile but reads name out of fsys.
func LoadFS(ctx context.Context, fsys fs.FS, name string, ch Channel) ([]*Record, error) {
	ctx, span := otel.Tracer("condakit").Start(ctx, "repodata.LoadFS")
	defer span.End()

	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening repodata: %w", err)
	}
	defer f.Close()

	records, err := loadCompressed(ctx, f, name, ch)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return records, nil
}

func loadCompressed(ctx context.Context, r io.Reader, name string, ch Channel) ([]*Record, error) {
	switch path.Ext(name) {
	case ".zst":
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}
		defer dec.Close()
		return Load(ctx, dec, ch)
	case ".gz":
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening gzip stream: %w", err)
		}
		defer gz.Close()
		return Load(ctx, gz, ch)
	}
	return Load(ctx, r, ch)
}

// LocalPath turns a plain path or a file:// URI into a filesystem path.
func LocalPath(location string) (string, error) {
	switch {
	case strings.HasPrefix(location, "file://"):
		u, err := uri.Parse(location)
		if err != nil {
			return "", fmt.Errorf("parsing %q: %w", location, err)
		}
		return u.Filename(), nil
	case strings.Contains(location, "://"):
		return "", fmt.Errorf("%s: %w", location, ErrRemoteLocation)
	}
	return location, nil
}
