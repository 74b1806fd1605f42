// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// extractCopyBufferSize defines per-worker buffer size for file copy during extraction.
const extractCopyBufferSize = 64 * 1024

// extractWorkItem stores one selected resource with prepared output relative paths.
type extractWorkItem struct {
	virtualPath string
	relPath     string
	relDir      string
}

// Extract writes resources of the active session to dstDir. Extraction is parallelized
// by MaxWorkers; on failure it returns the first encountered error.
//
// Write sessions extract committed resources. Live handles are not touched.
func (p *Package) Extract(ctx context.Context, dstDir string, opts ExtractOptions) error {
	if err := p.checkOpen(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	paths, err := p.selectExtractPaths(opts.Paths)
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		return nil
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}

	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	workItems, err := prepareExtractWorkItems(paths, opts.RawNames)
	if err != nil {
		return err
	}

	if err := prepareExtractDirs(dstRootAbs, workItems); err != nil {
		return err
	}

	taskCh := make(chan extractWorkItem, len(workItems))
	errCh := make(chan error, len(workItems))
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			copyBuf := make([]byte, extractCopyBufferSize)
			for task := range taskCh {
				err := p.extractResource(ctx, dstRootAbs, task, opts.Overwrite, copyBuf, opts.OnResourceDone)
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		})
	}

	for _, task := range workItems {
		select {
		case <-ctx.Done():
			close(taskCh)
			wg.Wait()
			return ctx.Err()
		case taskCh <- task:
		}
	}

	close(taskCh)
	wg.Wait()
	close(errCh)

	var first error
	for err := range errCh {
		if err != nil && first == nil {
			first = err
		}
	}

	if first == nil {
		p.logger.Debug("package extracted",
			slog.String("dir", dstRootAbs),
			slog.Int("resources", len(workItems)),
			slog.Int("workers", workers),
		)
	}

	return first
}

// selectExtractPaths resolves requested resources; nil selects every resource.
func (p *Package) selectExtractPaths(requested []string) ([]string, error) {
	if requested == nil {
		return p.resourcePaths(), nil
	}

	out := make([]string, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, raw := range requested {
		virtualPath, err := NormalizePath(raw)
		if err != nil {
			return nil, err
		}

		if !p.isResource(virtualPath) {
			return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, virtualPath)
		}

		if _, dup := seen[virtualPath]; dup {
			continue
		}

		seen[virtualPath] = struct{}{}
		out = append(out, virtualPath)
	}

	return out, nil
}

// prepareExtractWorkItems validates selected resources and prepares relative fs paths.
func prepareExtractWorkItems(paths []string, rawNames bool) ([]extractWorkItem, error) {
	var sanitized map[string]string
	if !rawNames {
		var err error
		sanitized, err = sanitizeResourcePaths(paths)
		if err != nil {
			return nil, err
		}
	}

	workItems := make([]extractWorkItem, 0, len(paths))
	for _, virtualPath := range paths {
		name := entryName(virtualPath)
		if sanitized != nil {
			name = sanitized[virtualPath]
		}

		normalizedPath, err := normalizeExtractEntryPath(name)
		if err != nil {
			return nil, fmt.Errorf("normalize resource path %s: %w", virtualPath, err)
		}

		relPath := filepath.FromSlash(normalizedPath)
		relDir := filepath.Dir(relPath)
		if relDir == "." {
			relDir = ""
		}

		workItems = append(workItems, extractWorkItem{
			virtualPath: virtualPath,
			relPath:     relPath,
			relDir:      relDir,
		})
	}

	return workItems, nil
}

// prepareExtractDirs creates all unique parent directories needed by work items.
func prepareExtractDirs(dstRootAbs string, workItems []extractWorkItem) error {
	seen := make(map[string]struct{}, len(workItems))
	for _, task := range workItems {
		if task.relDir == "" {
			continue
		}

		dirPath := filepath.Join(dstRootAbs, task.relDir)
		if _, exists := seen[dirPath]; exists {
			continue
		}

		seen[dirPath] = struct{}{}
		if err := os.MkdirAll(dirPath, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dirPath, err)
		}
	}

	return nil
}

// extractResource writes one prepared work item under destination root.
// Resource content is opened directly, bypassing the handle registry, so workers do not share state.
func (p *Package) extractResource(
	ctx context.Context,
	dstRootAbs string,
	task extractWorkItem,
	overwrite bool,
	copyBuf []byte,
	onResourceDone func(virtualPath string, written int64, outputPath string),
) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	outPath := filepath.Join(dstRootAbs, task.relPath)
	if err := ensureUnderRoot(dstRootAbs, outPath); err != nil {
		return fmt.Errorf("%s: %w", task.virtualPath, err)
	}

	var (
		rc  io.ReadCloser
		err error
	)
	if p.mode == ReadOnly {
		rc, err = p.openArchived(task.virtualPath)
	} else {
		rc, err = p.openCommitted(task.virtualPath)
	}
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	file, err := openExtractFile(outPath, overwrite)
	if err != nil {
		return fmt.Errorf("open %s: %w", task.virtualPath, err)
	}

	written, copyErr := io.CopyBuffer(file, rc, copyBuf)
	closeErr := file.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", task.virtualPath, copyErr)
	}

	if closeErr != nil {
		return fmt.Errorf("close %s: %w", task.virtualPath, closeErr)
	}

	if onResourceDone != nil {
		onResourceDone(task.virtualPath, written, outPath)
	}

	return nil
}

// openExtractFile creates output file; existing files are truncated only with overwrite.
func openExtractFile(path string, overwrite bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}

	return os.OpenFile(path, flags, 0o600)
}

// ensureUnderRoot rejects output paths resolving outside destination root.
func ensureUnderRoot(rootAbs string, outPath string) error {
	rel, err := filepath.Rel(rootAbs, outPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtractPathOutsideRoot, err)
	}

	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return ErrExtractPathOutsideRoot
	}

	return nil
}

// normalizeExtractEntryPath normalizes relative path and rejects absolute or traversal inputs.
func normalizeExtractEntryPath(entryPath string) (string, error) {
	raw := strings.TrimSpace(entryPath)
	if raw == "" || strings.ContainsRune(raw, 0) {
		return "", ErrInvalidExtractPath
	}

	if strings.HasPrefix(raw, `/`) || strings.HasPrefix(raw, `\`) {
		return "", ErrInvalidExtractPath
	}

	raw = strings.ReplaceAll(raw, `\`, `/`)
	if hasWindowsDrivePrefix(raw) {
		return "", ErrInvalidExtractPath
	}

	parts := strings.Split(raw, `/`)
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidExtractPath
		default:
			cleanParts = append(cleanParts, part)
		}
	}
	if len(cleanParts) == 0 {
		return "", ErrInvalidExtractPath
	}

	return strings.Join(cleanParts, `/`), nil
}

// hasWindowsDrivePrefix reports whether path starts with drive prefix like C:.
func hasWindowsDrivePrefix(path string) bool {
	if len(path) < 2 || path[1] != ':' {
		return false
	}

	c := path[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
