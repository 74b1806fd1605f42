// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import "errors"

// Sentinel errors for package operations. Use errors.Is in callers.
var (
	// ErrNotOpen means the operation requires an open package session.
	ErrNotOpen = errors.New("package is not open")
	// ErrAlreadyOpen means the package is already open, or a stream for the path is already live.
	ErrAlreadyOpen = errors.New("already open")
	// ErrModeConflict means the requested direction disagrees with the session open mode.
	ErrModeConflict = errors.New("operation conflicts with open mode")
	// ErrResourceNotFound means no resource exists at the requested virtual path.
	ErrResourceNotFound = errors.New("resource not found")
	// ErrInvalidPath means a virtual path is empty or malformed.
	ErrInvalidPath = errors.New("invalid virtual path")
	// ErrArchiveCorrupt means the archive failed to parse on open or to finalize on close.
	ErrArchiveCorrupt = errors.New("archive is corrupt")
	// ErrNilStream means the caller passed a nil stream to OpenStream.
	ErrNilStream = errors.New("stream is nil")
	// ErrUnsupportedStream means the stream lacks the capability required by the open mode.
	ErrUnsupportedStream = errors.New("stream does not support open mode")
	// ErrStreamClosed means a resource stream handle was used after Close.
	ErrStreamClosed = errors.New("resource stream already closed")
	// ErrInvalidProfile means a package profile misses required bookkeeping paths.
	ErrInvalidProfile = errors.New("invalid package profile")
	// ErrInvalidCompressPattern means one or more compression rules are invalid.
	ErrInvalidCompressPattern = errors.New("invalid compress rules")
	// ErrInvalidExtractPath means a resource path is invalid for extraction destination.
	ErrInvalidExtractPath = errors.New("invalid extract path")
	// ErrExtractPathOutsideRoot means resolved extraction path escapes destination root.
	ErrExtractPathOutsideRoot = errors.New("extract path escapes destination root")
)
