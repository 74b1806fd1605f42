// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zip"
)

func TestCompressMatcherDefaultPolicy(t *testing.T) {
	t.Parallel()

	matcher, err := newCompressMatcher(defaultCompressPatterns, false)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	cases := []struct {
		name string
		path string
		want bool
	}{
		{name: "gcode", path: "/3D/model.gcode", want: true},
		{name: "json", path: "/Metadata/UFP_Global.json", want: true},
		{name: "bookkeeping", path: "/[Content_Types].xml", want: true},
		{name: "png", path: "/Metadata/thumbnail.png", want: false},
		{name: "png upper case", path: "/Metadata/THUMB.PNG", want: false},
		{name: "nested package", path: "/inner.ufp", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := matcher.Match(tc.path)
			if got != tc.want {
				t.Fatalf("Match(%q) = %v, want %v", tc.path, got, tc.want)
			}
		})
	}
}

func TestCompressMatcherIncludeExcludeRules(t *testing.T) {
	t.Parallel()

	matcher, err := newCompressMatcher([]string{
		"scripts/**",
		"!scripts/tmp/**",
		"scripts/tmp/keep/**",
	}, false)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	if !matcher.Match("/scripts/main.c") {
		t.Fatal("/scripts/main.c must be included by rules")
	}

	if matcher.Match("/scripts/tmp/a.c") {
		t.Fatal("/scripts/tmp/a.c must be excluded by rules")
	}

	if !matcher.Match("/SCRIPTS/TMP/keep/a.c") {
		t.Fatal("/SCRIPTS/TMP/keep/a.c must be re-included by rules")
	}

	if matcher.Match("/other.c") {
		t.Fatal("/other.c must fall to default store action")
	}
}

func TestCompressMatcherCaseSensitive(t *testing.T) {
	t.Parallel()

	matcher, err := newCompressMatcher([]string{"*.gcode"}, true)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	if !matcher.Match("/a.gcode") {
		t.Fatal("/a.gcode must match")
	}

	if matcher.Match("/A.GCODE") {
		t.Fatal("/A.GCODE must not match case-sensitive rule")
	}
}

func TestCompressMatcherEmptyStoresAll(t *testing.T) {
	t.Parallel()

	matcher, err := newCompressMatcher([]string{"", "  ", "!"}, false)
	if err != nil {
		t.Fatalf("new matcher: %v", err)
	}

	if matcher != nil {
		t.Fatalf("matcher=%v, want nil for empty rule set", matcher)
	}

	if matcher.Match("/a.gcode") {
		t.Fatal("nil matcher must store every entry")
	}
}

func TestPackageCompressionMethods(t *testing.T) {
	t.Parallel()

	data := writeTestPackage(t, Options{}, map[string][]byte{
		"/3D/model.gcode":         bytes.Repeat([]byte("G1 X10 Y10\n"), 200),
		"/Metadata/thumbnail.png": {0x89, 'P', 'N', 'G'},
	}, nil)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}

	methods := make(map[string]uint16, len(zr.File))
	for _, f := range zr.File {
		methods[f.Name] = f.Method
	}

	if methods["3D/model.gcode"] != zip.Deflate {
		t.Fatalf("gcode method=%d, want deflate", methods["3D/model.gcode"])
	}

	if methods["Metadata/thumbnail.png"] != zip.Store {
		t.Fatalf("png method=%d, want store", methods["Metadata/thumbnail.png"])
	}
}

func TestPackageCompressionDisabled(t *testing.T) {
	t.Parallel()

	profile := ProfileUFP()
	profile.Compress = []string{}

	data := writeTestPackage(t, Options{Profile: profile}, map[string][]byte{
		"/3D/model.gcode": bytes.Repeat([]byte("G1 X10 Y10\n"), 200),
	}, nil)

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip.NewReader: %v", err)
	}

	for _, f := range zr.File {
		if f.Method != zip.Store {
			t.Fatalf("%s method=%d, want store", f.Name, f.Method)
		}
	}
}
