// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// ArchiveBackend opens the archive codec over caller streams.
type ArchiveBackend interface {
	// NewReader parses archive directory from a random-access source.
	NewReader(ra io.ReaderAt, size int64) (ArchiveReader, error)
	// NewWriter starts a new archive written sequentially to w.
	// Level is the deflate level; zero selects the codec default.
	NewWriter(w io.Writer, level int) ArchiveWriter
}

// ArchiveReader is the read side of an archive codec.
type ArchiveReader interface {
	// Entries returns raw entry names in archive order.
	Entries() []string
	// Open opens named entry for reading.
	Open(name string) (io.ReadCloser, error)
}

// ArchiveWriter is the write side of an archive codec.
// Entries are written one at a time; Create finishes the previous entry.
type ArchiveWriter interface {
	// Create starts a new entry and returns its payload writer.
	Create(name string, compress bool) (io.Writer, error)
	// Close writes the archive directory. It does not close the underlying writer.
	Close() error
}

// ZipBackend is the ZIP archive codec.
type ZipBackend struct{}

// zipArchiveReader serves entries of a parsed ZIP directory.
type zipArchiveReader struct {
	// files maps raw entry names to directory records.
	files map[string]*zip.File
	// names keeps archive order of first occurrence of each name.
	names []string
}

// zipArchiveWriter writes ZIP entries sequentially.
type zipArchiveWriter struct {
	zw *zip.Writer
}

// NewReader parses ZIP directory. Parse failures wrap ErrArchiveCorrupt.
func (ZipBackend) NewReader(ra io.ReaderAt, size int64) (ArchiveReader, error) {
	if ra == nil {
		return nil, ErrNilStream
	}

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArchiveCorrupt, err)
	}

	r := &zipArchiveReader{
		files: make(map[string]*zip.File, len(zr.File)),
		names: make([]string, 0, len(zr.File)),
	}
	for _, f := range zr.File {
		if _, exists := r.files[f.Name]; exists {
			continue
		}

		r.files[f.Name] = f
		r.names = append(r.names, f.Name)
	}

	return r, nil
}

// NewWriter starts a ZIP archive over w with the given deflate level.
func (ZipBackend) NewWriter(w io.Writer, level int) ArchiveWriter {
	zw := zip.NewWriter(w)
	if level != 0 {
		zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
	}

	return &zipArchiveWriter{zw: zw}
}

// Entries returns raw entry names in archive order.
func (r *zipArchiveReader) Entries() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Open opens named entry; returned stream yields decompressed content.
func (r *zipArchiveReader) Open(name string) (io.ReadCloser, error) {
	f, ok := r.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, name)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open entry %s: %w", ErrArchiveCorrupt, name, err)
	}

	return rc, nil
}

// Create starts a stored or deflated entry.
func (a *zipArchiveWriter) Create(name string, compress bool) (io.Writer, error) {
	method := zip.Store
	if compress {
		method = zip.Deflate
	}

	w, err := a.zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: method,
	})
	if err != nil {
		return nil, fmt.Errorf("create entry %s: %w", name, err)
	}

	return w, nil
}

// Close writes ZIP central directory.
func (a *zipArchiveWriter) Close() error {
	if err := a.zw.Close(); err != nil {
		return fmt.Errorf("%w: finalize: %w", ErrArchiveCorrupt, err)
	}

	return nil
}

// readEntry reads full content of one archive entry.
func readEntry(r ArchiveReader, name string) ([]byte, error) {
	rc, err := r.Open(name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return nil, fmt.Errorf("%w: read entry %s: %w", ErrArchiveCorrupt, name, err)
	}

	return buf.Bytes(), nil
}
