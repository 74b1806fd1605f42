// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"fmt"
	"strings"
)

// pathSeparator separates virtual path segments.
const pathSeparator = "/"

// NormalizePath converts a caller path to canonical virtual path form.
// It trims spaces, accepts both "/" and "\", collapses leading separators into one,
// and drops trailing separators. Dot segments are kept as is.
// Empty input, the bare root, and empty inner segments fail with ErrInvalidPath.
func NormalizePath(raw string) (string, error) {
	normalized := strings.TrimSpace(raw)
	normalized = strings.ReplaceAll(normalized, `\`, pathSeparator)
	normalized = strings.TrimLeft(normalized, pathSeparator)
	normalized = strings.TrimRight(normalized, pathSeparator)
	if normalized == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, raw)
	}

	if strings.Contains(normalized, pathSeparator+pathSeparator) {
		return "", fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, raw)
	}

	return pathSeparator + normalized, nil
}

// entryName converts a virtual path to archive entry name.
func entryName(virtualPath string) string {
	return strings.TrimPrefix(virtualPath, pathSeparator)
}

// isRootPath reports whether raw names the package root.
func isRootPath(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	return trimmed != "" && strings.Trim(trimmed, `/\`) == ""
}

// isUnderPath reports whether candidate equals prefix or is nested below it.
func isUnderPath(candidate string, prefix string) bool {
	return candidate == prefix || strings.HasPrefix(candidate, prefix+pathSeparator)
}

// ScopeKind tags a metadata scope.
type ScopeKind uint8

const (
	// ScopeGlobal holds package-wide metadata.
	ScopeGlobal ScopeKind = iota
	// ScopeResource holds metadata attached to one resource.
	ScopeResource
)

// String returns the human-readable scope kind.
func (k ScopeKind) String() string {
	switch k {
	case ScopeGlobal:
		return "global"
	case ScopeResource:
		return "resource"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Scope identifies where a metadata entry belongs.
type Scope struct {
	// Resource is the owning resource path for ScopeResource; empty for ScopeGlobal.
	Resource string `json:"resource,omitempty" yaml:"resource,omitempty"`
	// Kind tags the scope.
	Kind ScopeKind `json:"kind" yaml:"kind"`
}

// GlobalScope returns the package-wide metadata scope.
func GlobalScope() Scope {
	return Scope{Kind: ScopeGlobal}
}

// ResourceScope returns the metadata scope bound to resource path.
func ResourceScope(resource string) Scope {
	return Scope{Kind: ScopeResource, Resource: resource}
}

// root returns the path that scope keys are relative to.
func (s Scope) root() string {
	if s.Kind == ScopeResource {
		return s.Resource
	}

	return pathSeparator
}

// key converts a normalized metadata path to a key relative to scope root.
func (s Scope) key(virtualPath string) string {
	if s.Kind == ScopeResource {
		return strings.TrimPrefix(virtualPath, s.Resource+pathSeparator)
	}

	return entryName(virtualPath)
}

// path converts a scope-relative key back to a virtual path.
func (s Scope) path(key string) string {
	if s.Kind == ScopeResource {
		return s.Resource + pathSeparator + key
	}

	return pathSeparator + key
}

// ResolveScope derives metadata scope for a normalized virtual path.
// Paths under metadataPrefix are global. Otherwise the longest proper ancestor
// reported by isResource owns the entry; without one the entry is global.
func ResolveScope(virtualPath string, metadataPrefix string, isResource func(string) bool) Scope {
	if metadataPrefix != "" && strings.HasPrefix(virtualPath, metadataPrefix+pathSeparator) {
		return GlobalScope()
	}

	if isResource == nil {
		return GlobalScope()
	}

	for candidate := parentPath(virtualPath); candidate != ""; candidate = parentPath(candidate) {
		if isResource(candidate) {
			return ResourceScope(candidate)
		}
	}

	return GlobalScope()
}

// parentPath returns parent virtual path, or empty string at the root.
func parentPath(virtualPath string) string {
	idx := strings.LastIndex(virtualPath, pathSeparator)
	if idx <= 0 {
		return ""
	}

	return virtualPath[:idx]
}
