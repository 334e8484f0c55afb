// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package assets

import (
	"archive/zip"
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestRoot_ReadAndExists(t *testing.T) {
	root := New("mem", fstest.MapFS{
		"levels/one.txt": {Data: []byte("wall wall")},
		"levels":         {Mode: os.ModeDir},
	})

	data, err := root.Read("levels/one.txt")
	if err != nil || string(data) != "wall wall" {
		t.Fatalf("Read = %q, %v", data, err)
	}
	if _, err := root.Read("./levels/one.txt"); err != nil {
		t.Errorf("leading ./ rejected: %v", err)
	}
	if !root.Exists("levels/one.txt") {
		t.Error("Exists(file) = false")
	}
	if root.Exists("levels") {
		t.Error("Exists(dir) = true, want only regular files")
	}
	if root.Exists("levels/two.txt") {
		t.Error("Exists(missing) = true")
	}
}

func TestRoot_RejectsEscapes(t *testing.T) {
	root := New("mem", fstest.MapFS{"a.txt": {Data: []byte("a")}})
	for _, p := range []string{"../secret", "/etc/passwd", "a/../../b", "", "."} {
		_, err := root.Read(p)
		if !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Read(%q): err = %v, want ErrInvalidPath", p, err)
		}
	}
}

func TestRoot_Image(t *testing.T) {
	root := New("mem", fstest.MapFS{
		"ship.png":  {Data: pngBytes(t, 3, 2)},
		"notes.txt": {Data: []byte("not an image")},
	})

	img, err := root.Image("ship.png")
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if img.Width() != 3 || img.Height() != 2 {
		t.Errorf("size = %dx%d, want 3x2", img.Width(), img.Height())
	}
	if _, err := root.Image("notes.txt"); err == nil {
		t.Error("decoding text as an image succeeded")
	}
}

func TestOpen_DirectoryZipAndMissing(t *testing.T) {
	dir := t.TempDir()

	assetDir := filepath.Join(dir, "assets")
	if err := os.MkdirAll(assetDir, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(assetDir, "hello.txt"), []byte("hi"), 0600); err != nil {
		t.Fatal(err)
	}
	root, err := Open(assetDir)
	if err != nil {
		t.Fatalf("Open(dir): %v", err)
	}
	if data, err := root.Read("hello.txt"); err != nil || string(data) != "hi" {
		t.Errorf("dir Read = %q, %v", data, err)
	}

	zipPath := filepath.Join(dir, "pack.zip")
	f, err := os.Create(zipPath)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	w, _ := zw.Create("sprites/ship.png")
	_, _ = w.Write(pngBytes(t, 4, 4))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	zroot, err := Open(zipPath)
	if err != nil {
		t.Fatalf("Open(zip): %v", err)
	}
	defer func() { _ = zroot.Close() }()
	if !zroot.Exists("sprites/ship.png") {
		t.Error("zip entry not found")
	}
	if _, err := zroot.Image("sprites/ship.png"); err != nil {
		t.Errorf("zip Image: %v", err)
	}

	missing, err := Open(filepath.Join(dir, "nope"))
	if err != nil {
		t.Fatalf("Open(missing): %v", err)
	}
	if missing.Exists("anything") {
		t.Error("empty root reports files")
	}
}
