// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"encoding/json"
	"fmt"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// globalScopeKey is the document key holding global metadata.
const globalScopeKey = pathSeparator

// metadataStore is the live metadata overlay of one session.
// Keys are normalized virtual paths in insertion order.
type metadataStore struct {
	entries  *orderedmap.OrderedMap[string, string]
	mimeType string
}

// metadataDocument is the serialized form of the metadata entry.
// Scopes maps scope root ("/" for global, resource path otherwise) to scope-relative keys.
type metadataDocument struct {
	Scopes   *orderedmap.OrderedMap[string, *orderedmap.OrderedMap[string, string]] `json:"scopes"`
	MimeType string                                                                 `json:"mime_type,omitempty"`
}

// newMetadataStore returns an empty metadata overlay.
func newMetadataStore() *metadataStore {
	return &metadataStore{
		entries: orderedmap.New[string, string](),
	}
}

// set merges normalized entries; keys are applied in sorted order so insertion order is reproducible.
func (s *metadataStore) set(entries map[string]string) {
	keys := make([]string, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		s.entries.Set(key, entries[key])
	}
}

// get returns entries equal to virtualPath or nested under it.
func (s *metadataStore) get(virtualPath string) map[string]string {
	return s.filter(func(key string) bool {
		return isUnderPath(key, virtualPath)
	})
}

// filter returns entries whose key satisfies match.
func (s *metadataStore) filter(match func(string) bool) map[string]string {
	out := make(map[string]string)
	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		if match(pair.Key) {
			out[pair.Key] = pair.Value
		}
	}

	return out
}

// len returns number of live entries.
func (s *metadataStore) len() int {
	return s.entries.Len()
}

// empty reports whether serialization would carry no information.
func (s *metadataStore) empty() bool {
	return s.entries.Len() == 0 && s.mimeType == ""
}

// serialize renders the metadata document, grouping keys by the scope resolve returns.
func (s *metadataStore) serialize(resolve func(string) Scope) ([]byte, error) {
	doc := metadataDocument{
		MimeType: s.mimeType,
		Scopes:   orderedmap.New[string, *orderedmap.OrderedMap[string, string]](),
	}

	for pair := s.entries.Oldest(); pair != nil; pair = pair.Next() {
		scope := resolve(pair.Key)
		bucket, ok := doc.Scopes.Get(scope.root())
		if !ok {
			bucket = orderedmap.New[string, string]()
			doc.Scopes.Set(scope.root(), bucket)
		}

		bucket.Set(scope.key(pair.Key), pair.Value)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	return append(data, '\n'), nil
}

// deserialize merges a metadata document into the live set.
func (s *metadataStore) deserialize(data []byte) error {
	var doc metadataDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: decode metadata: %w", ErrArchiveCorrupt, err)
	}

	if doc.MimeType != "" {
		s.mimeType = doc.MimeType
	}

	if doc.Scopes == nil {
		return nil
	}

	for scopePair := doc.Scopes.Oldest(); scopePair != nil; scopePair = scopePair.Next() {
		scope := GlobalScope()
		if scopePair.Key != globalScopeKey {
			resource, err := NormalizePath(scopePair.Key)
			if err != nil {
				return fmt.Errorf("%w: metadata scope: %w", ErrArchiveCorrupt, err)
			}

			scope = ResourceScope(resource)
		}

		if scopePair.Value == nil {
			continue
		}

		for pair := scopePair.Value.Oldest(); pair != nil; pair = pair.Next() {
			virtualPath, err := NormalizePath(scope.path(pair.Key))
			if err != nil {
				return fmt.Errorf("%w: metadata key: %w", ErrArchiveCorrupt, err)
			}

			s.entries.Set(virtualPath, pair.Value)
		}
	}

	return nil
}
