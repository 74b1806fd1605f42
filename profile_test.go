// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinProfilesValidate(t *testing.T) {
	t.Parallel()

	for _, profile := range []Profile{ProfileUFP(), ProfileOPC(), Profile3MF()} {
		profile.applyDefaults()
		if err := profile.validate(); err != nil {
			t.Fatalf("profile %s: validate: %v", profile.Name, err)
		}

		if !profile.isBookkeeping(profile.MetadataPath) ||
			!profile.isBookkeeping(DefaultContentTypesPath) ||
			!profile.isBookkeeping(DefaultRelationshipsPath) {
			t.Fatalf("profile %s: bookkeeping paths not reserved", profile.Name)
		}
	}
}

func TestParseProfile(t *testing.T) {
	t.Parallel()

	data := []byte(`
name: custom
mime_type: application/x-custom
metadata_prefix: meta
metadata_path: meta/doc.json
content_types:
  .GCODE: text/x-gcode
compress:
  - "*.gcode"
compression_level: 9
`)

	profile, err := ParseProfile(data)
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}

	if profile.MetadataPrefix != "/meta" {
		t.Fatalf("MetadataPrefix=%q, want %q", profile.MetadataPrefix, "/meta")
	}
	if profile.MetadataPath != "/meta/doc.json" {
		t.Fatalf("MetadataPath=%q, want %q", profile.MetadataPath, "/meta/doc.json")
	}
	if profile.ContentTypesPath != DefaultContentTypesPath {
		t.Fatalf("ContentTypesPath=%q, want %q", profile.ContentTypesPath, DefaultContentTypesPath)
	}
	if profile.RelationshipsPath != DefaultRelationshipsPath {
		t.Fatalf("RelationshipsPath=%q, want %q", profile.RelationshipsPath, DefaultRelationshipsPath)
	}
	if got := profile.ContentTypes["gcode"]; got != "text/x-gcode" {
		t.Fatalf("ContentTypes[gcode]=%q, want %q", got, "text/x-gcode")
	}
	if len(profile.Compress) != 1 || profile.Compress[0] != "*.gcode" {
		t.Fatalf("Compress=%v, want [*.gcode]", profile.Compress)
	}
	if profile.CompressionLevel != 9 {
		t.Fatalf("CompressionLevel=%d, want 9", profile.CompressionLevel)
	}
	if profile.MetadataRelationshipType != RelationshipTypeMetadata {
		t.Fatalf("MetadataRelationshipType=%q, want default", profile.MetadataRelationshipType)
	}
}

func TestParseProfileEmptyCompressStoresAll(t *testing.T) {
	t.Parallel()

	profile, err := ParseProfile([]byte("name: stored\ncompress: []\n"))
	if err != nil {
		t.Fatalf("ParseProfile: %v", err)
	}

	if profile.Compress == nil || len(profile.Compress) != 0 {
		t.Fatalf("Compress=%#v, want empty non-nil list", profile.Compress)
	}
}

func TestParseProfileRejects(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		data string
	}{
		{name: "unknown field", data: "name: x\nunknown: 1\n"},
		{name: "metadata outside prefix", data: "metadata_prefix: /meta\nmetadata_path: /other/doc.json\n"},
		{name: "colliding bookkeeping", data: "relationships_path: /[Content_Types].xml\n"},
		{name: "level out of range", data: "compression_level: 11\n"},
		{name: "empty inner segment", data: "content_types_path: a//b.xml\n"},
		{name: "malformed yaml", data: "name: [\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseProfile([]byte(tc.data))
			if !errors.Is(err, ErrInvalidProfile) {
				t.Fatalf("ParseProfile err=%v, want ErrInvalidProfile", err)
			}
		})
	}
}

func TestLoadProfile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte("name: file\nmime_type: application/x-file\n"), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	profile, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile: %v", err)
	}
	if profile.Name != "file" || profile.MimeType != "application/x-file" {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	if _, err := LoadProfile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing profile file")
	}
}

func TestNewRejectsInvalidProfile(t *testing.T) {
	t.Parallel()

	profile := ProfileUFP()
	profile.MetadataPath = "/elsewhere/doc.json"

	if _, err := New(Options{Profile: profile}); !errors.Is(err, ErrInvalidProfile) {
		t.Fatalf("New err=%v, want ErrInvalidProfile", err)
	}
}
