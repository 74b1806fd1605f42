// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default bookkeeping layout shared by OPC-based formats.
const (
	DefaultContentTypesPath  = "/[Content_Types].xml"
	DefaultRelationshipsPath = "/_rels/.rels"
	DefaultMetadataPrefix    = "/Metadata"
)

// Relationship types written to the package relationships descriptor.
const (
	// RelationshipTypeResource links the package root to a plain resource.
	RelationshipTypeResource = "http://schemas.openxmlformats.org/package/2006/relationships/resource"
	// RelationshipTypeMetadata links the package root to the metadata document.
	RelationshipTypeMetadata = "http://schemas.ultimaker.org/package/2018/relationships/opc_metadata"
	// RelationshipType3DModel links the package root to a 3MF model part.
	RelationshipType3DModel = "http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"
)

// defaultCompressPatterns deflates everything except formats that are already compressed.
var defaultCompressPatterns = []string{
	"*",
	"!*.png",
	"!*.jpg",
	"!*.jpeg",
	"!*.gz",
	"!*.zip",
	"!*.ufp",
	"!*.3mf",
}

// Profile describes one OPC-based package format: its bookkeeping paths,
// default MIME type, relationship types and compression policy.
type Profile struct {
	// ContentTypes maps lowercase file extensions (without dot) to content types.
	ContentTypes map[string]string `json:"content_types,omitempty" yaml:"content_types,omitempty"`
	// Name is a human-readable profile name.
	Name string `json:"name" yaml:"name"`
	// MimeType is the package MIME type used when OpenStream receives none.
	MimeType string `json:"mime_type" yaml:"mime_type"`
	// MetadataPrefix is the virtual path root of global metadata keys.
	MetadataPrefix string `json:"metadata_prefix,omitempty" yaml:"metadata_prefix,omitempty"`
	// MetadataPath is the archive entry holding the serialized metadata document.
	MetadataPath string `json:"metadata_path,omitempty" yaml:"metadata_path,omitempty"`
	// ContentTypesPath is the archive entry holding the content type table.
	ContentTypesPath string `json:"content_types_path,omitempty" yaml:"content_types_path,omitempty"`
	// RelationshipsPath is the archive entry holding package relationships.
	RelationshipsPath string `json:"relationships_path,omitempty" yaml:"relationships_path,omitempty"`
	// ResourceRelationshipType is the relationship type written for each resource.
	ResourceRelationshipType string `json:"resource_relationship_type,omitempty" yaml:"resource_relationship_type,omitempty"`
	// MetadataRelationshipType is the relationship type written for the metadata document.
	MetadataRelationshipType string `json:"metadata_relationship_type,omitempty" yaml:"metadata_relationship_type,omitempty"`
	// Compress lists gitignore-style patterns selecting deflated entries; "!" negates.
	// Nil selects the default policy, an empty list stores every entry.
	Compress []string `json:"compress,omitempty" yaml:"compress,omitempty"`
	// CompressionLevel is the deflate level (1..9); zero selects the default level.
	CompressionLevel int `json:"compression_level,omitempty" yaml:"compression_level,omitempty"`
	// CompressCaseSensitive disables case-insensitive compression pattern matching.
	CompressCaseSensitive bool `json:"compress_case_sensitive,omitempty" yaml:"compress_case_sensitive,omitempty"`
}

// ProfileUFP returns the Ultimaker Format Package profile.
func ProfileUFP() Profile {
	return Profile{
		Name:                     "ufp",
		MimeType:                 "application/x-ufp",
		MetadataPath:             DefaultMetadataPrefix + "/UFP_Global.json",
		ResourceRelationshipType: RelationshipTypeResource,
		ContentTypes: map[string]string{
			"gcode": "text/x-gcode",
			"png":   "image/png",
			"json":  "application/json",
		},
	}
}

// ProfileOPC returns a generic Open Packaging Conventions profile.
func ProfileOPC() Profile {
	return Profile{
		Name:         "opc",
		MimeType:     "application/x-opc",
		MetadataPath: DefaultMetadataPrefix + "/OPC_Global.json",
	}
}

// Profile3MF returns the 3D Manufacturing Format profile.
func Profile3MF() Profile {
	return Profile{
		Name:                     "3mf",
		MimeType:                 "application/vnd.ms-package.3dmanufacturing-3dmodel+xml",
		MetadataPath:             DefaultMetadataPrefix + "/3MF_Global.json",
		ResourceRelationshipType: RelationshipType3DModel,
		ContentTypes: map[string]string{
			"model": "application/vnd.ms-package.3dmanufacturing-3dmodel+xml",
			"png":   "image/png",
		},
	}
}

// LoadProfile reads a YAML profile from file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}

	return ParseProfile(data)
}

// ParseProfile decodes a YAML profile, fills defaults and validates bookkeeping paths.
// Unknown keys are rejected.
func ParseProfile(data []byte) (Profile, error) {
	var profile Profile

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&profile); err != nil && !errors.Is(err, io.EOF) {
		return Profile{}, fmt.Errorf("%w: decode: %w", ErrInvalidProfile, err)
	}

	profile.applyDefaults()
	if err := profile.validate(); err != nil {
		return Profile{}, err
	}

	return profile, nil
}

// isZero reports whether profile carries no configuration at all.
func (p *Profile) isZero() bool {
	return p.Name == "" &&
		p.MimeType == "" &&
		p.MetadataPrefix == "" &&
		p.MetadataPath == "" &&
		p.ContentTypesPath == "" &&
		p.RelationshipsPath == "" &&
		p.ResourceRelationshipType == "" &&
		p.MetadataRelationshipType == "" &&
		len(p.ContentTypes) == 0 &&
		p.Compress == nil &&
		p.CompressionLevel == 0 &&
		!p.CompressCaseSensitive
}

// applyDefaults fills zero-valued profile fields with OPC defaults.
func (p *Profile) applyDefaults() {
	if p.MetadataPrefix == "" {
		p.MetadataPrefix = DefaultMetadataPrefix
	}

	if p.MetadataPath == "" {
		p.MetadataPath = strings.TrimRight(p.MetadataPrefix, `/\`) + "/OPC_Global.json"
	}

	if p.ContentTypesPath == "" {
		p.ContentTypesPath = DefaultContentTypesPath
	}

	if p.RelationshipsPath == "" {
		p.RelationshipsPath = DefaultRelationshipsPath
	}

	if p.ResourceRelationshipType == "" {
		p.ResourceRelationshipType = RelationshipTypeResource
	}

	if p.MetadataRelationshipType == "" {
		p.MetadataRelationshipType = RelationshipTypeMetadata
	}

	if p.Compress == nil {
		p.Compress = append([]string(nil), defaultCompressPatterns...)
	}
}

// validate normalizes bookkeeping paths and checks they do not collide.
func (p *Profile) validate() error {
	fields := []struct {
		value *string
		name  string
	}{
		{name: "metadata_prefix", value: &p.MetadataPrefix},
		{name: "metadata_path", value: &p.MetadataPath},
		{name: "content_types_path", value: &p.ContentTypesPath},
		{name: "relationships_path", value: &p.RelationshipsPath},
	}

	for _, field := range fields {
		normalized, err := NormalizePath(*field.value)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidProfile, field.name, err)
		}

		*field.value = normalized
	}

	if !strings.HasPrefix(p.MetadataPath, p.MetadataPrefix+pathSeparator) {
		return fmt.Errorf("%w: metadata_path %q is outside metadata_prefix %q", ErrInvalidProfile, p.MetadataPath, p.MetadataPrefix)
	}

	if p.MetadataPath == p.ContentTypesPath ||
		p.MetadataPath == p.RelationshipsPath ||
		p.ContentTypesPath == p.RelationshipsPath {
		return fmt.Errorf("%w: bookkeeping paths must be distinct", ErrInvalidProfile)
	}

	if p.CompressionLevel < 0 || p.CompressionLevel > 9 {
		return fmt.Errorf("%w: compression_level %d out of range 0..9", ErrInvalidProfile, p.CompressionLevel)
	}

	if len(p.ContentTypes) > 0 {
		normalized := make(map[string]string, len(p.ContentTypes))
		for ext, contentType := range p.ContentTypes {
			normalized[strings.ToLower(strings.TrimPrefix(ext, "."))] = contentType
		}

		p.ContentTypes = normalized
	}

	return nil
}

// isBookkeeping reports whether virtual path is a reserved bookkeeping or metadata entry.
func (p *Profile) isBookkeeping(virtualPath string) bool {
	return virtualPath == p.ContentTypesPath ||
		virtualPath == p.RelationshipsPath ||
		virtualPath == p.MetadataPath
}
