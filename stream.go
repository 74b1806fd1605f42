// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// ResourceStream is a live handle to one resource opened for reading or writing.
// Written bytes are buffered and committed as the resource content on Close.
type ResourceStream struct {
	manager   *streamManager
	reader    io.ReadCloser
	buf       *bytes.Buffer
	path      string
	direction Direction
	closed    bool
}

// streamManager tracks live resource handles of one session.
// At most one handle per path is open at a time.
type streamManager struct {
	// live holds open handles in open order.
	live *orderedmap.OrderedMap[string, *ResourceStream]
	// openRead opens committed or archived resource content.
	openRead func(virtualPath string) (io.ReadCloser, error)
	// commit stores written bytes as resource content.
	commit func(virtualPath string, data []byte) error
	mode   OpenMode
}

// newStreamManager creates handle registry bound to session mode.
func newStreamManager(
	mode OpenMode,
	openRead func(virtualPath string) (io.ReadCloser, error),
	commit func(virtualPath string, data []byte) error,
) *streamManager {
	return &streamManager{
		live:     orderedmap.New[string, *ResourceStream](),
		openRead: openRead,
		commit:   commit,
		mode:     mode,
	}
}

// open moves path from idle to open state in the requested direction.
func (m *streamManager) open(virtualPath string, direction Direction) (*ResourceStream, error) {
	if direction == DirectionWrite && m.mode != WriteOnly {
		return nil, fmt.Errorf("%w: %s stream on %s package: %s", ErrModeConflict, direction, m.mode, virtualPath)
	}

	if _, live := m.live.Get(virtualPath); live {
		return nil, fmt.Errorf("%w: stream for %s", ErrAlreadyOpen, virtualPath)
	}

	stream := &ResourceStream{
		manager:   m,
		path:      virtualPath,
		direction: direction,
	}

	switch direction {
	case DirectionRead:
		rc, err := m.openRead(virtualPath)
		if err != nil {
			return nil, err
		}

		stream.reader = rc
	case DirectionWrite:
		stream.buf = new(bytes.Buffer)
	default:
		return nil, fmt.Errorf("%w: unknown direction %s", ErrModeConflict, direction)
	}

	m.live.Set(virtualPath, stream)
	return stream, nil
}

// isOpen reports whether a handle for path is live.
func (m *streamManager) isOpen(virtualPath string) bool {
	_, live := m.live.Get(virtualPath)
	return live
}

// release returns path to idle state.
func (m *streamManager) release(stream *ResourceStream) {
	if current, ok := m.live.Get(stream.path); ok && current == stream {
		m.live.Delete(stream.path)
	}
}

// closeAll commits live write handles and releases read handles in open order.
func (m *streamManager) closeAll() error {
	var errs []error
	for pair := m.live.Oldest(); pair != nil; {
		next := pair.Next()
		if err := pair.Value.Close(); err != nil {
			errs = append(errs, err)
		}

		pair = next
	}

	return errors.Join(errs...)
}

// Path returns the normalized virtual path of the handle.
func (s *ResourceStream) Path() string {
	return s.path
}

// Direction returns the handle direction.
func (s *ResourceStream) Direction() Direction {
	return s.direction
}

// Read reads resource bytes from a read handle.
func (s *ResourceStream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, ErrStreamClosed
	}

	if s.direction != DirectionRead {
		return 0, fmt.Errorf("%w: read from %s stream %s", ErrModeConflict, s.direction, s.path)
	}

	return s.reader.Read(p)
}

// Write buffers bytes into a write handle.
func (s *ResourceStream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, ErrStreamClosed
	}

	if s.direction != DirectionWrite {
		return 0, fmt.Errorf("%w: write to %s stream %s", ErrModeConflict, s.direction, s.path)
	}

	return s.buf.Write(p)
}

// discard releases a write handle without committing its bytes.
func (s *ResourceStream) discard() {
	if s.closed {
		return
	}

	s.closed = true
	s.buf = nil
	s.manager.release(s)
}

// Close releases the handle. Closing a write handle commits its bytes as resource content.
// Repeated Close is a no-op.
func (s *ResourceStream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	defer s.manager.release(s)

	switch s.direction {
	case DirectionRead:
		if err := s.reader.Close(); err != nil {
			return fmt.Errorf("close %s: %w", s.path, err)
		}
	case DirectionWrite:
		data := s.buf.Bytes()
		s.buf = nil
		if err := s.manager.commit(s.path, data); err != nil {
			return fmt.Errorf("commit %s: %w", s.path, err)
		}
	}

	return nil
}
