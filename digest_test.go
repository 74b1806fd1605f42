// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"bytes"
	"errors"
	"testing"

	"github.com/zeebo/blake3"
)

func TestDigestIndependentOfLayout(t *testing.T) {
	t.Parallel()

	resources := map[string][]byte{
		"/3D/model.gcode":         bytes.Repeat([]byte("G1 X1 Y1\n"), 100),
		"/Metadata/thumbnail.png": {0x89, 'P', 'N', 'G'},
	}
	metadata := map[string]string{"/3D/model.gcode/print_time": "3600"}

	deflated := writeTestPackage(t, Options{}, resources, metadata)

	stored := ProfileUFP()
	stored.Compress = []string{}
	plain := writeTestPackage(t, Options{Profile: stored}, resources, metadata)

	if bytes.Equal(deflated, plain) {
		t.Fatal("test setup: packages must differ in layout")
	}

	first, err := openTestPackage(t, deflated).Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	second, err := openTestPackage(t, plain).Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	if first.Root != second.Root {
		t.Fatalf("root differs: %x vs %x", first.Root, second.Root)
	}

	if len(first.Resources) != 2 || first.Resources[0].Path != "/3D/model.gcode" {
		t.Fatalf("resources=%+v, want sorted by path", first.Resources)
	}

	want := blake3.Sum256(resources["/3D/model.gcode"])
	if first.Resources[0].Sum != want {
		t.Fatalf("resource sum=%x, want %x", first.Resources[0].Sum, want)
	}
	if first.Resources[0].Size != int64(len(resources["/3D/model.gcode"])) {
		t.Fatalf("resource size=%d", first.Resources[0].Size)
	}
}

func TestDigestDetectsChanges(t *testing.T) {
	t.Parallel()

	base := writeTestPackage(t, Options{}, map[string][]byte{"/a.txt": []byte("a")}, map[string]string{"/a.txt/k": "v"})
	changedData := writeTestPackage(t, Options{}, map[string][]byte{"/a.txt": []byte("b")}, map[string]string{"/a.txt/k": "v"})
	changedMeta := writeTestPackage(t, Options{}, map[string][]byte{"/a.txt": []byte("a")}, map[string]string{"/a.txt/k": "w"})

	digests := make([][32]byte, 0, 3)
	for _, data := range [][]byte{base, changedData, changedMeta} {
		digest, err := openTestPackage(t, data).Digest()
		if err != nil {
			t.Fatalf("Digest: %v", err)
		}

		digests = append(digests, digest.Root)
	}

	if digests[0] == digests[1] {
		t.Fatal("root unchanged after resource content change")
	}
	if digests[0] == digests[2] {
		t.Fatal("root unchanged after metadata change")
	}
}

func TestDigestWriteSessionMatchesFinalized(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	pkg := newTestPackage(t, Options{})
	if err := pkg.OpenStream(&buf, "", WriteOnly); err != nil {
		t.Fatalf("OpenStream: %v", err)
	}
	if err := pkg.SetData(map[string][]byte{"/hello.txt": []byte("Hello world!")}); err != nil {
		t.Fatalf("SetData: %v", err)
	}
	if err := pkg.SetMetadata(map[string]string{"/hello.txt/test": "value"}); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}

	live, err := pkg.Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}
	if err := pkg.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	final, err := openTestPackage(t, buf.Bytes()).Digest()
	if err != nil {
		t.Fatalf("Digest: %v", err)
	}

	if live.Root != final.Root {
		t.Fatalf("write-session root %x differs from finalized %x", live.Root, final.Root)
	}
}

func TestDigestNotOpen(t *testing.T) {
	t.Parallel()

	if _, err := newTestPackage(t, Options{}).Digest(); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Digest err=%v, want ErrNotOpen", err)
	}
}
