// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"fmt"
	"log/slog"
)

// OpenMode is the declared direction of a package session.
type OpenMode uint8

// Package open modes. There is no combined read-write mode.
const (
	// ReadOnly opens an existing package for reading.
	ReadOnly OpenMode = iota
	// WriteOnly creates a new package in the caller stream.
	WriteOnly
)

// String returns the human-readable open mode.
func (m OpenMode) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case WriteOnly:
		return "write-only"
	default:
		return fmt.Sprintf("unknown(%d)", m)
	}
}

// Direction is the direction of one resource stream.
type Direction uint8

const (
	// DirectionRead reads resource bytes.
	DirectionRead Direction = iota + 1
	// DirectionWrite writes resource bytes.
	DirectionWrite
)

// String returns the human-readable direction.
func (d Direction) String() string {
	switch d {
	case DirectionRead:
		return "read"
	case DirectionWrite:
		return "write"
	default:
		return fmt.Sprintf("unknown(%d)", d)
	}
}

// direction returns the stream direction allowed by open mode.
func (m OpenMode) direction() Direction {
	if m == WriteOnly {
		return DirectionWrite
	}

	return DirectionRead
}

// Stream is the caller-owned byte stream a package session runs against.
//
// ReadOnly sessions accept io.ReaderAt with Size() int64 (bytes.Reader, io.SectionReader),
// io.ReaderAt with io.Seeker (*os.File), or any io.Reader which is buffered in memory.
// WriteOnly sessions require io.Writer. The package never closes the stream.
type Stream any

// Options configures a Package.
type Options struct {
	// Logger receives session lifecycle events; nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// Backend is the archive codec; nil selects the ZIP backend.
	Backend ArchiveBackend `json:"-" yaml:"-"`
	// Profile describes bookkeeping paths and defaults of the package format.
	// Zero value selects ProfileUFP.
	Profile Profile `json:"profile,omitzero" yaml:"profile,omitzero"`
}

// ResourceDigest is the content fingerprint of one resource.
type ResourceDigest struct {
	// Path is the resource virtual path.
	Path string `json:"path" yaml:"path"`
	// Sum is BLAKE3-256 of resource bytes.
	Sum [32]byte `json:"sum" yaml:"sum"`
	// Size is resource length in bytes.
	Size int64 `json:"size" yaml:"size"`
}

// PackageDigest fingerprints package contents independently of archive layout.
type PackageDigest struct {
	// Resources are per-resource digests sorted by path.
	Resources []ResourceDigest `json:"resources" yaml:"resources"`
	// Root is BLAKE3-256 over resource paths, digests, and metadata document.
	Root [32]byte `json:"root" yaml:"root"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnResourceDone is called after one resource is fully written to disk.
	OnResourceDone func(virtualPath string, written int64, outputPath string) `json:"-" yaml:"-"`
	// Paths limits extraction to selected resources; nil means all resources.
	Paths []string `json:"paths,omitempty" yaml:"paths,omitempty"`
	// MaxWorkers is number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
	// Overwrite allows replacing existing files; otherwise existing files fail extraction.
	Overwrite bool `json:"overwrite,omitempty" yaml:"overwrite,omitempty"`
	// RawNames disables default path sanitization during extract.
	RawNames bool `json:"raw_names,omitempty" yaml:"raw_names,omitempty"`
}

// applyDefaults fills zero-valued package options with defaults.
func (opts *Options) applyDefaults() {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	if opts.Backend == nil {
		opts.Backend = ZipBackend{}
	}

	if opts.Profile.isZero() {
		opts.Profile = ProfileUFP()
	}

	opts.Profile.applyDefaults()
}
