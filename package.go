// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// sessionState is the controller lifecycle state.
type sessionState uint8

const (
	// stateClosed accepts only OpenStream.
	stateClosed sessionState = iota
	// stateOpen accepts every operation except OpenStream.
	stateOpen
)

// sizedReaderAt is a random-access source that knows its size.
type sizedReaderAt interface {
	io.ReaderAt
	Size() int64
}

// seekingReaderAt is a random-access source whose size is found by seeking.
type seekingReaderAt interface {
	io.ReaderAt
	io.Seeker
}

// flusher is implemented by buffered caller streams.
type flusher interface {
	Flush() error
}

// Package is the package controller: it owns one session over a caller stream
// and exposes virtual-path addressed resource and metadata access.
//
// A Package is not safe for concurrent use; callers serialize operations.
type Package struct {
	logger   *slog.Logger
	backend  ArchiveBackend
	compress *compressMatcher
	registry relationshipRegistry
	profile  Profile

	// Session state, valid while state is stateOpen.

	// writer is the caller stream of a write session.
	writer io.Writer
	// source is the caller stream of a read session.
	source io.ReaderAt
	// archive is the parsed archive of a read session.
	archive ArchiveReader
	// entries maps virtual paths to raw archive entry names (read).
	entries map[string]string
	// contentTypes is the parsed content type table (read).
	contentTypes contentTypeTable
	// resources holds committed resource bytes in insertion order (write).
	resources *orderedmap.OrderedMap[string, []byte]
	metadata  *metadataStore
	streams   *streamManager
	// paths lists resources in archive order (read).
	paths      []string
	sourceSize int64
	state      sessionState
	mode       OpenMode
}

// New creates a closed package controller. Profile paths are validated here.
func New(opts Options) (*Package, error) {
	opts.applyDefaults()

	if err := opts.Profile.validate(); err != nil {
		return nil, err
	}

	compress, err := newCompressMatcher(opts.Profile.Compress, opts.Profile.CompressCaseSensitive)
	if err != nil {
		return nil, err
	}

	p := &Package{
		logger:   opts.Logger,
		backend:  opts.Backend,
		compress: compress,
		profile:  opts.Profile,
	}
	p.registry = relationshipRegistry{profile: &p.profile}

	return p, nil
}

// OpenStream opens a session over stream in the declared mode.
// MimeType is recorded only for WriteOnly sessions; empty selects the profile default.
func (p *Package) OpenStream(stream Stream, mimeType string, mode OpenMode) error {
	if p.state == stateOpen {
		return fmt.Errorf("%w: package session", ErrAlreadyOpen)
	}

	if stream == nil {
		return ErrNilStream
	}

	var err error
	switch mode {
	case ReadOnly:
		err = p.openRead(stream)
	case WriteOnly:
		err = p.openWrite(stream, mimeType)
	default:
		err = fmt.Errorf("%w: unknown open mode %s", ErrModeConflict, mode)
	}
	if err != nil {
		p.reset()
		return err
	}

	p.state = stateOpen
	p.mode = mode
	p.logger.Debug("package opened",
		slog.String("profile", p.profile.Name),
		slog.String("mode", mode.String()),
		slog.Int("resources", p.resourceCount()),
		slog.Int("metadata", p.metadata.len()),
	)

	return nil
}

// openRead parses archive directory, metadata and content types of a read session.
func (p *Package) openRead(stream Stream) error {
	ra, size, err := readerAtFromStream(stream)
	if err != nil {
		return err
	}

	archive, err := p.backend.NewReader(ra, size)
	if err != nil {
		if errors.Is(err, ErrArchiveCorrupt) {
			return err
		}

		return fmt.Errorf("%w: %w", ErrArchiveCorrupt, err)
	}

	names := archive.Entries()
	entries := make(map[string]string, len(names))
	paths := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasSuffix(name, "/") || strings.HasSuffix(name, `\`) {
			continue
		}

		virtualPath, err := NormalizePath(name)
		if err != nil {
			p.logger.Warn("skip archive entry with invalid name", slog.String("entry", name))
			continue
		}

		if _, exists := entries[virtualPath]; exists {
			continue
		}

		entries[virtualPath] = name
		if !p.profile.isBookkeeping(virtualPath) {
			paths = append(paths, virtualPath)
		}
	}

	metadata := newMetadataStore()
	if name, ok := entries[p.profile.MetadataPath]; ok {
		data, err := readEntry(archive, name)
		if err != nil {
			return err
		}

		if err := metadata.deserialize(data); err != nil {
			return err
		}
	}

	var contentTypes contentTypeTable
	if name, ok := entries[p.profile.ContentTypesPath]; ok {
		data, err := readEntry(archive, name)
		if err != nil {
			return err
		}

		contentTypes, err = parseContentTypes(data)
		if err != nil {
			return err
		}
	}

	p.source = ra
	p.sourceSize = size
	p.archive = archive
	p.entries = entries
	p.paths = paths
	p.contentTypes = contentTypes
	p.metadata = metadata
	p.streams = newStreamManager(ReadOnly, p.openArchived, p.commitResource)

	return nil
}

// openWrite prepares an empty write session.
func (p *Package) openWrite(stream Stream, mimeType string) error {
	w, ok := stream.(io.Writer)
	if !ok {
		return fmt.Errorf("%w: %s requires io.Writer, got %T", ErrUnsupportedStream, WriteOnly, stream)
	}

	if mimeType == "" {
		mimeType = p.profile.MimeType
	}

	p.writer = w
	p.resources = orderedmap.New[string, []byte]()
	p.metadata = newMetadataStore()
	p.metadata.mimeType = mimeType
	p.streams = newStreamManager(WriteOnly, p.openCommitted, p.commitResource)

	return nil
}

// IsOpen reports whether a session is active.
func (p *Package) IsOpen() bool {
	return p.state == stateOpen
}

// Mode returns the open mode of the active session.
func (p *Package) Mode() OpenMode {
	return p.mode
}

// Profile returns the validated package profile.
func (p *Package) Profile() Profile {
	return p.profile
}

// MimeType returns the declared package MIME type, or the profile default when the archive declares none.
func (p *Package) MimeType() string {
	if p.metadata != nil && p.metadata.mimeType != "" {
		return p.metadata.mimeType
	}

	return p.profile.MimeType
}

// ListPaths returns resource paths, excluding bookkeeping and metadata entries.
// Read sessions list in archive order, write sessions in insertion order.
func (p *Package) ListPaths() ([]string, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	return p.resourcePaths(), nil
}

// GetStream opens a resource handle in the direction of the session mode.
func (p *Package) GetStream(virtualPath string) (*ResourceStream, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	return p.openStream(virtualPath, p.mode.direction())
}

// OpenReader opens a resource for reading. Write sessions read committed resources.
func (p *Package) OpenReader(virtualPath string) (*ResourceStream, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	return p.openStream(virtualPath, DirectionRead)
}

// OpenWriter opens a resource for writing. Fails with ErrModeConflict on read sessions.
func (p *Package) OpenWriter(virtualPath string) (*ResourceStream, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	return p.openStream(virtualPath, DirectionWrite)
}

// SetData writes resources in sorted path order. Each path is written fully or not at all;
// on failure earlier paths stay written and the error names the failing path.
func (p *Package) SetData(data map[string][]byte) error {
	if err := p.checkOpen(); err != nil {
		return err
	}

	if p.mode != WriteOnly {
		return fmt.Errorf("%w: set data on %s package", ErrModeConflict, p.mode)
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		stream, err := p.openStream(key, DirectionWrite)
		if err != nil {
			return err
		}

		_, writeErr := stream.Write(data[key])
		if writeErr != nil {
			stream.discard()
			return fmt.Errorf("write %s: %w", key, writeErr)
		}

		if err := stream.Close(); err != nil {
			return err
		}
	}

	return nil
}

// GetData reads requested resources; no paths means every resource.
// Absent paths are omitted from the result. Result keys keep the caller spelling.
func (p *Package) GetData(virtualPaths ...string) (map[string][]byte, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	if len(virtualPaths) == 0 {
		virtualPaths = p.resourcePaths()
	}

	out := make(map[string][]byte, len(virtualPaths))
	for _, raw := range virtualPaths {
		data, err := p.readResource(raw)
		if errors.Is(err, ErrResourceNotFound) {
			continue
		}

		if err != nil {
			return nil, err
		}

		out[raw] = data
	}

	return out, nil
}

// SetMetadata merges metadata entries keyed by virtual path. All keys are validated
// before any entry is applied.
func (p *Package) SetMetadata(entries map[string]string) error {
	if err := p.checkOpen(); err != nil {
		return err
	}

	if p.mode != WriteOnly {
		return fmt.Errorf("%w: set metadata on %s package", ErrModeConflict, p.mode)
	}

	normalized := make(map[string]string, len(entries))
	for raw, value := range entries {
		virtualPath, err := NormalizePath(raw)
		if err != nil {
			return err
		}

		normalized[virtualPath] = value
	}

	p.metadata.set(normalized)
	return nil
}

// GetMetadata returns metadata entries at virtualPath or nested under it,
// keyed by normalized virtual path. The package root ("/") selects every entry.
// A resource path stops at nested resources, whose keys belong to their own scope.
// No match yields an empty map.
func (p *Package) GetMetadata(virtualPath string) (map[string]string, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	if isRootPath(virtualPath) {
		return p.metadata.filter(func(string) bool { return true }), nil
	}

	normalized, err := NormalizePath(virtualPath)
	if err != nil {
		return nil, err
	}

	if !p.isResource(normalized) {
		return p.metadata.get(normalized), nil
	}

	return p.metadata.filter(func(key string) bool {
		if !isUnderPath(key, normalized) {
			return false
		}

		owner := p.resolveScope(key)
		return key == normalized || owner.Kind != ScopeResource || owner.Resource == normalized
	}), nil
}

// GetScopeMetadata returns metadata entries that resolve to scope in the current
// resource set, keyed by normalized virtual path.
func (p *Package) GetScopeMetadata(scope Scope) (map[string]string, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	switch scope.Kind {
	case ScopeGlobal:
		scope.Resource = ""
	case ScopeResource:
		normalized, err := NormalizePath(scope.Resource)
		if err != nil {
			return nil, err
		}

		scope.Resource = normalized
	default:
		return nil, fmt.Errorf("%w: scope kind %s", ErrInvalidPath, scope.Kind)
	}

	return p.metadata.filter(func(key string) bool {
		return p.resolveScope(key) == scope
	}), nil
}

// MetadataScope returns the scope a metadata path belongs to in the current resource set.
func (p *Package) MetadataScope(virtualPath string) (Scope, error) {
	if err := p.checkOpen(); err != nil {
		return Scope{}, err
	}

	normalized, err := NormalizePath(virtualPath)
	if err != nil {
		return Scope{}, err
	}

	return p.resolveScope(normalized), nil
}

// ContentType returns the content type recorded (read) or derived (write) for a resource.
func (p *Package) ContentType(virtualPath string) (string, error) {
	if err := p.checkOpen(); err != nil {
		return "", err
	}

	normalized, err := NormalizePath(virtualPath)
	if err != nil {
		return "", err
	}

	if !p.isResource(normalized) {
		return "", fmt.Errorf("%w: %s", ErrResourceNotFound, normalized)
	}

	if p.mode == ReadOnly {
		if contentType, ok := p.contentTypes.lookup(normalized); ok {
			return contentType, nil
		}
	}

	return p.registry.contentTypeFor(normalized), nil
}

// ToByteArray returns bytes [offset, offset+count) of the serialized package.
// Count < 0 or past the end means "to the end"; offset past the end yields an empty slice.
// Write sessions render metadata and bookkeeping in memory without touching the caller stream.
func (p *Package) ToByteArray(offset int, count int) ([]byte, error) {
	if err := p.checkOpen(); err != nil {
		return nil, err
	}

	var data []byte
	switch p.mode {
	case ReadOnly:
		buf := make([]byte, p.sourceSize)
		if _, err := io.ReadFull(io.NewSectionReader(p.source, 0, p.sourceSize), buf); err != nil {
			return nil, fmt.Errorf("read package: %w", err)
		}

		data = buf
	case WriteOnly:
		var buf bytes.Buffer
		if err := p.render(&buf); err != nil {
			return nil, err
		}

		data = buf.Bytes()
	}

	return sliceBytes(data, offset, count), nil
}

// Close ends the session. Write sessions commit open write handles and finalize the
// archive into the caller stream; read sessions release handles. The caller stream
// is never closed.
func (p *Package) Close() error {
	if err := p.checkOpen(); err != nil {
		return err
	}
	defer p.reset()

	startedAt := time.Now()
	streamsErr := p.streams.closeAll()
	if p.mode == ReadOnly {
		p.logger.Debug("package closed", slog.String("mode", p.mode.String()))
		return streamsErr
	}

	if streamsErr != nil {
		return streamsErr
	}

	if err := p.render(p.writer); err != nil {
		if errors.Is(err, ErrArchiveCorrupt) {
			return err
		}

		return fmt.Errorf("%w: %w", ErrArchiveCorrupt, err)
	}

	if f, ok := p.writer.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("%w: flush stream: %w", ErrArchiveCorrupt, err)
		}
	}

	p.logger.Debug("package finalized",
		slog.String("profile", p.profile.Name),
		slog.Int("resources", p.resourceCount()),
		slog.Int("metadata", p.metadata.len()),
		slog.Duration("duration", time.Since(startedAt)),
	)

	return nil
}

// render writes bookkeeping entries, resources and metadata as one archive.
func (p *Package) render(w io.Writer) error {
	resources := p.resourcePaths()
	hasMetadata := !p.metadata.empty()

	var metadataData []byte
	if hasMetadata {
		var err error
		metadataData, err = p.metadata.serialize(p.resolveScope)
		if err != nil {
			return err
		}
	}

	contentTypes, relationships, err := p.registry.rebuild(resources, hasMetadata)
	if err != nil {
		return err
	}

	aw := p.backend.NewWriter(w, p.profile.CompressionLevel)
	if err := p.writeEntry(aw, p.profile.ContentTypesPath, contentTypes); err != nil {
		return err
	}

	if err := p.writeEntry(aw, p.profile.RelationshipsPath, relationships); err != nil {
		return err
	}

	for _, resource := range resources {
		data, _ := p.resources.Get(resource)
		if err := p.writeEntry(aw, resource, data); err != nil {
			return err
		}
	}

	if hasMetadata {
		if err := p.writeEntry(aw, p.profile.MetadataPath, metadataData); err != nil {
			return err
		}
	}

	return aw.Close()
}

// writeEntry writes one archive entry using the profile compression policy.
func (p *Package) writeEntry(aw ArchiveWriter, virtualPath string, data []byte) error {
	w, err := aw.Create(entryName(virtualPath), p.compress.Match(virtualPath))
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write entry %s: %w", virtualPath, err)
	}

	return nil
}

// openStream normalizes path and opens a handle through the stream manager.
func (p *Package) openStream(raw string, direction Direction) (*ResourceStream, error) {
	virtualPath, err := NormalizePath(raw)
	if err != nil {
		return nil, err
	}

	return p.streams.open(virtualPath, direction)
}

// readResource reads full resource content through a read handle.
func (p *Package) readResource(raw string) ([]byte, error) {
	stream, err := p.openStream(raw, DirectionRead)
	if err != nil {
		return nil, err
	}

	data, readErr := io.ReadAll(stream)
	closeErr := stream.Close()
	if readErr != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrArchiveCorrupt, stream.Path(), readErr)
	}

	if closeErr != nil {
		return nil, closeErr
	}

	return data, nil
}

// openArchived opens archived entry of a read session.
func (p *Package) openArchived(virtualPath string) (io.ReadCloser, error) {
	name, ok := p.entries[virtualPath]
	if !ok || p.profile.isBookkeeping(virtualPath) {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, virtualPath)
	}

	return p.archive.Open(name)
}

// openCommitted opens committed bytes of a write session.
// Bookkeeping paths are replaced on finalize and never read back.
func (p *Package) openCommitted(virtualPath string) (io.ReadCloser, error) {
	data, ok := p.resources.Get(virtualPath)
	if !ok || p.profile.isBookkeeping(virtualPath) {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, virtualPath)
	}

	return io.NopCloser(bytes.NewReader(data)), nil
}

// commitResource stores written bytes; the first commit fixes insertion order.
func (p *Package) commitResource(virtualPath string, data []byte) error {
	if p.mode != WriteOnly || p.resources == nil {
		return fmt.Errorf("%w: commit %s on %s package", ErrModeConflict, virtualPath, p.mode)
	}

	if p.profile.isBookkeeping(virtualPath) {
		p.logger.Warn("bookkeeping entry is regenerated on finalize, written content is discarded",
			slog.String("path", virtualPath),
		)
	}

	p.resources.Set(virtualPath, bytes.Clone(data))
	return nil
}

// resourcePaths lists resources of the active session.
func (p *Package) resourcePaths() []string {
	if p.mode == ReadOnly {
		out := make([]string, len(p.paths))
		copy(out, p.paths)
		return out
	}

	out := make([]string, 0, p.resources.Len())
	for pair := p.resources.Oldest(); pair != nil; pair = pair.Next() {
		if p.profile.isBookkeeping(pair.Key) {
			continue
		}

		out = append(out, pair.Key)
	}

	return out
}

// resourceCount returns number of resources in the active session.
func (p *Package) resourceCount() int {
	return len(p.resourcePaths())
}

// isResource reports whether virtual path is a resource of the active session.
func (p *Package) isResource(virtualPath string) bool {
	if p.profile.isBookkeeping(virtualPath) {
		return false
	}

	if p.mode == ReadOnly {
		_, ok := p.entries[virtualPath]
		return ok
	}

	_, ok := p.resources.Get(virtualPath)
	return ok
}

// resolveScope derives metadata scope against the current resource set.
func (p *Package) resolveScope(virtualPath string) Scope {
	return ResolveScope(virtualPath, p.profile.MetadataPrefix, p.isResource)
}

// checkOpen is the state check at the top of every session operation.
func (p *Package) checkOpen() error {
	if p.state != stateOpen {
		return ErrNotOpen
	}

	return nil
}

// reset drops session state and returns controller to closed state.
func (p *Package) reset() {
	p.state = stateClosed
	p.writer = nil
	p.source = nil
	p.sourceSize = 0
	p.archive = nil
	p.entries = nil
	p.paths = nil
	p.contentTypes = contentTypeTable{}
	p.resources = nil
	p.metadata = nil
	p.streams = nil
}

// readerAtFromStream resolves random-access view and size of a read session stream.
func readerAtFromStream(stream Stream) (io.ReaderAt, int64, error) {
	switch s := stream.(type) {
	case sizedReaderAt:
		return s, s.Size(), nil
	case seekingReaderAt:
		current, err := s.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, 0, fmt.Errorf("seek stream: %w", err)
		}

		size, err := s.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, 0, fmt.Errorf("seek stream end: %w", err)
		}

		if _, err := s.Seek(current, io.SeekStart); err != nil {
			return nil, 0, fmt.Errorf("restore stream offset: %w", err)
		}

		return s, size, nil
	case io.Reader:
		data, err := io.ReadAll(s)
		if err != nil {
			return nil, 0, fmt.Errorf("read stream: %w", err)
		}

		return bytes.NewReader(data), int64(len(data)), nil
	default:
		return nil, 0, fmt.Errorf("%w: %s requires io.Reader, got %T", ErrUnsupportedStream, ReadOnly, stream)
	}
}

// sliceBytes returns a copy of data[offset:offset+count] clamped to data bounds.
func sliceBytes(data []byte, offset int, count int) []byte {
	if offset < 0 {
		offset = 0
	}

	if offset >= len(data) {
		return []byte{}
	}

	end := len(data)
	if count >= 0 && count < end-offset {
		end = offset + count
	}

	out := make([]byte, end-offset)
	copy(out, data[offset:end])
	return out
}
