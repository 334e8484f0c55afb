// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package assets resolves script-visible paths inside an asset root: a
// directory or a zip archive. Paths are slash-separated and may not escape
// the root.
package assets

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/gogpu/gg"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// MaxFileSize bounds a single asset read.
const MaxFileSize = 16 << 20

var (
	// ErrInvalidPath indicates a path that is absolute, unclean or escapes the root
	ErrInvalidPath = errors.New("invalid asset path")

	// ErrTooLarge indicates an asset larger than MaxFileSize
	ErrTooLarge = errors.New("asset too large")
)

// Root is a read-only asset tree.
type Root struct {
	name   string
	fsys   fs.FS
	closer io.Closer
}

// Open opens a directory or, when path ends in .zip, a zip archive.
// A missing directory yields an empty root so scripts without assets run.
func Open(p string) (*Root, error) {
	if strings.EqualFold(path.Ext(p), ".zip") {
		zr, err := zip.OpenReader(p)
		if err != nil {
			return nil, fmt.Errorf("failed to open asset archive: %w", err)
		}
		return &Root{name: p, fsys: zr, closer: zr}, nil
	}

	info, err := os.Stat(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return New(p, emptyFS{}), nil
	case err != nil:
		return nil, fmt.Errorf("failed to open asset directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("asset root %s is neither a directory nor a .zip archive", p)
	}
	return New(p, os.DirFS(p)), nil
}

// New wraps an fs.FS as an asset root.
func New(name string, fsys fs.FS) *Root {
	return &Root{name: name, fsys: fsys}
}

// Empty returns a root with no files.
func Empty() *Root {
	return New("", emptyFS{})
}

// Name returns the root's location.
func (r *Root) Name() string {
	return r.name
}

// Read returns the contents of the asset at p.
func (r *Root) Read(p string) ([]byte, error) {
	clean, err := cleanPath(p)
	if err != nil {
		return nil, err
	}
	f, err := r.fsys.Open(clean)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", p, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", p, err)
	}
	if len(data) > MaxFileSize {
		return nil, fmt.Errorf("asset %s: %w", p, ErrTooLarge)
	}
	return data, nil
}

// Exists reports whether p names a regular file in the root.
func (r *Root) Exists(p string) bool {
	clean, err := cleanPath(p)
	if err != nil {
		return false
	}
	info, err := fs.Stat(r.fsys, clean)
	return err == nil && info.Mode().IsRegular()
}

// Image decodes a PNG, JPEG, BMP or WebP asset.
func (r *Root) Image(p string) (*gg.ImageBuf, error) {
	data, err := r.Read(p)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("asset %s: decode image: %w", p, err)
	}
	return gg.ImageBufFromImage(img), nil
}

// Close releases the archive behind a zip root.
func (r *Root) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// cleanPath accepts script paths like "sprites/ship.png" or
// "./sprites/ship.png" and rejects anything outside the root.
func cleanPath(p string) (string, error) {
	p = strings.TrimPrefix(p, "./")
	if !fs.ValidPath(p) || p == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
	}
	return p, nil
}

// emptyFS stands in for an asset directory that does not exist.
type emptyFS struct{}

func (emptyFS) Open(name string) (fs.File, error) {
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}
