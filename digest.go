// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/opc

package opc

import (
	"fmt"
	"io"
	"sort"

	"github.com/zeebo/blake3"
)

const digestCopyBufferSize = 32 * 1024

// Digest computes BLAKE3 content digests of the active session.
//
// Resources are hashed by content; Root covers sorted resource paths with their sums
// and the metadata document, so it does not depend on archive layout, entry order
// or compression.
func (p *Package) Digest() (PackageDigest, error) {
	if err := p.checkOpen(); err != nil {
		return PackageDigest{}, err
	}

	paths := p.resourcePaths()
	sort.Strings(paths)

	out := PackageDigest{
		Resources: make([]ResourceDigest, 0, len(paths)),
	}

	var copyBufArr [digestCopyBufferSize]byte
	copyBuf := copyBufArr[:]
	for _, virtualPath := range paths {
		item, err := p.digestResource(virtualPath, copyBuf)
		if err != nil {
			return PackageDigest{}, err
		}

		out.Resources = append(out.Resources, item)
	}

	var metadataData []byte
	if !p.metadata.empty() {
		var err error
		metadataData, err = p.metadata.serialize(p.resolveScope)
		if err != nil {
			return PackageDigest{}, err
		}
	}

	out.Root = computeDigestRoot(out.Resources, metadataData)
	return out, nil
}

// digestResource hashes one resource through a read handle.
func (p *Package) digestResource(virtualPath string, copyBuf []byte) (ResourceDigest, error) {
	stream, err := p.openStream(virtualPath, DirectionRead)
	if err != nil {
		return ResourceDigest{}, err
	}
	defer func() { _ = stream.Close() }()

	h := blake3.New()
	n, err := io.CopyBuffer(h, stream, copyBuf)
	if err != nil {
		return ResourceDigest{}, fmt.Errorf("digest %s: %w", virtualPath, err)
	}

	item := ResourceDigest{
		Path: virtualPath,
		Size: n,
	}
	copy(item.Sum[:], h.Sum(nil))

	return item, nil
}

// computeDigestRoot hashes path/sum pairs followed by metadata document bytes.
func computeDigestRoot(resources []ResourceDigest, metadata []byte) [32]byte {
	h := blake3.New()
	for _, item := range resources {
		_, _ = h.Write([]byte(item.Path))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(item.Sum[:])
	}

	_, _ = h.Write([]byte{0})
	_, _ = h.Write(metadata)

	var root [32]byte
	copy(root[:], h.Sum(nil))
	return root
}
