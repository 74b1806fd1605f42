// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"encoding/xml"
	"fmt"
	"mime"
	"path"
	"strconv"
	"strings"
)

// Content types of bookkeeping entries.
const (
	relationshipsContentType = "application/vnd.openxmlformats-package.relationships+xml"
	metadataContentType      = "application/json"
	fallbackContentType      = "application/octet-stream"
)

// contentTypesDocument is the [Content_Types].xml root.
type contentTypesDocument struct {
	XMLName   xml.Name              `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []contentTypeDefault  `xml:"Default"`
	Overrides []contentTypeOverride `xml:"Override"`
}

// contentTypeDefault maps a file extension to a content type.
type contentTypeDefault struct {
	Extension   string `xml:"Extension,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// contentTypeOverride maps one part name to a content type.
type contentTypeOverride struct {
	PartName    string `xml:"PartName,attr"`
	ContentType string `xml:"ContentType,attr"`
}

// relationshipsDocument is the _rels/.rels root.
type relationshipsDocument struct {
	XMLName       xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Relationships []relationship `xml:"Relationship"`
}

// relationship links the package root to one part.
type relationship struct {
	ID     string `xml:"Id,attr"`
	Target string `xml:"Target,attr"`
	Type   string `xml:"Type,attr"`
}

// relationshipRegistry derives the bookkeeping entries required by OPC consumers.
type relationshipRegistry struct {
	profile *Profile
}

// contentTypeTable is a parsed content type table.
type contentTypeTable struct {
	defaults  map[string]string
	overrides map[string]string
}

// rebuild renders content types and relationships for resources in the given order.
// Output is byte-identical for identical input.
func (r relationshipRegistry) rebuild(resources []string, hasMetadata bool) ([]byte, []byte, error) {
	types := contentTypesDocument{
		Defaults: []contentTypeDefault{
			{Extension: "rels", ContentType: relationshipsContentType},
		},
	}
	rels := relationshipsDocument{
		Relationships: make([]relationship, 0, len(resources)+1),
	}

	seenExt := map[string]struct{}{"rels": {}}
	addDefault := func(ext string, contentType string) {
		if _, exists := seenExt[ext]; exists {
			return
		}

		seenExt[ext] = struct{}{}
		types.Defaults = append(types.Defaults, contentTypeDefault{Extension: ext, ContentType: contentType})
	}

	if hasMetadata {
		if ext := extensionOf(r.profile.MetadataPath); ext != "" {
			addDefault(ext, r.contentTypeFor(r.profile.MetadataPath))
		} else {
			types.Overrides = append(types.Overrides, contentTypeOverride{
				PartName:    r.profile.MetadataPath,
				ContentType: metadataContentType,
			})
		}

		rels.Relationships = append(rels.Relationships, relationship{
			ID:     relationshipID(len(rels.Relationships)),
			Target: r.profile.MetadataPath,
			Type:   r.profile.MetadataRelationshipType,
		})
	}

	for _, resource := range resources {
		contentType := r.contentTypeFor(resource)
		if ext := extensionOf(resource); ext != "" {
			addDefault(ext, contentType)
		} else {
			types.Overrides = append(types.Overrides, contentTypeOverride{
				PartName:    resource,
				ContentType: contentType,
			})
		}

		rels.Relationships = append(rels.Relationships, relationship{
			ID:     relationshipID(len(rels.Relationships)),
			Target: resource,
			Type:   r.profile.ResourceRelationshipType,
		})
	}

	typesData, err := marshalBookkeeping(types)
	if err != nil {
		return nil, nil, fmt.Errorf("encode content types: %w", err)
	}

	relsData, err := marshalBookkeeping(rels)
	if err != nil {
		return nil, nil, fmt.Errorf("encode relationships: %w", err)
	}

	return typesData, relsData, nil
}

// contentTypeFor resolves content type from profile table, system MIME table, then fallback.
func (r relationshipRegistry) contentTypeFor(virtualPath string) string {
	if virtualPath == r.profile.MetadataPath {
		return metadataContentType
	}

	ext := extensionOf(virtualPath)
	if ext == "" {
		return fallbackContentType
	}

	if ext == "rels" {
		return relationshipsContentType
	}

	if contentType, ok := r.profile.ContentTypes[ext]; ok && contentType != "" {
		return contentType
	}

	if contentType := mime.TypeByExtension("." + ext); contentType != "" {
		return contentType
	}

	return fallbackContentType
}

// parseContentTypes decodes a [Content_Types].xml document.
func parseContentTypes(data []byte) (contentTypeTable, error) {
	var doc contentTypesDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return contentTypeTable{}, fmt.Errorf("%w: decode content types: %w", ErrArchiveCorrupt, err)
	}

	table := contentTypeTable{
		defaults:  make(map[string]string, len(doc.Defaults)),
		overrides: make(map[string]string, len(doc.Overrides)),
	}
	for _, item := range doc.Defaults {
		table.defaults[strings.ToLower(item.Extension)] = item.ContentType
	}

	for _, item := range doc.Overrides {
		partName, err := NormalizePath(item.PartName)
		if err != nil {
			continue
		}

		table.overrides[partName] = item.ContentType
	}

	return table, nil
}

// lookup resolves content type of a part; overrides win over extension defaults.
func (t contentTypeTable) lookup(virtualPath string) (string, bool) {
	if contentType, ok := t.overrides[virtualPath]; ok {
		return contentType, true
	}

	contentType, ok := t.defaults[extensionOf(virtualPath)]
	return contentType, ok
}

// extensionOf returns lowercase extension without dot.
func extensionOf(virtualPath string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(virtualPath), "."))
}

// relationshipID returns deterministic relationship id for position n.
func relationshipID(n int) string {
	return "rel" + strconv.Itoa(n)
}

// marshalBookkeeping encodes one bookkeeping XML document with declaration.
func marshalBookkeeping(doc any) ([]byte, error) {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(xml.Header)+len(data)+1)
	out = append(out, xml.Header...)
	out = append(out, data...)
	return append(out, '\n'), nil
}
