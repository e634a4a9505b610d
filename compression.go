// Copyright 2025 ekazakov. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seekzip

import (
	"compress/bzip2"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
)

// CompressionMethod represents the compression algorithm used for an entry in the ZIP archive
type CompressionMethod uint16

// Compression methods according to ZIP specification
const (
	Stored    CompressionMethod = 0  // No compression - file stored as-is
	Deflated  CompressionMethod = 8  // DEFLATE compression (most common)
	Deflate64 CompressionMethod = 9  // DEFLATE64(tm) enhanced compression
	BZIP2     CompressionMethod = 12 // BZIP2 compression (more efficient but slower compression)
	LZMA      CompressionMethod = 14 // LZMA compression (high compression ratio)
	ZStandard CompressionMethod = 93 // Zstandard compression (fastest decompression)
)

// Decompressor turns the raw payload stream of an entry into a decoded
// stream. Implementations must not read past the source they are given; the
// reader bounds the source to the entry's payload.
type Decompressor interface {
	Decompress(src io.Reader) (io.ReadCloser, error)
}

type decompressorsMap map[CompressionMethod]Decompressor

// StoredDecompressor implements the "Store" method (no compression)
type StoredDecompressor struct{}

func (sd *StoredDecompressor) Decompress(src io.Reader) (io.ReadCloser, error) {
	if rc, ok := src.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(src), nil
}

// DeflateDecompressor implements the "Deflate" method
type DeflateDecompressor struct{}

func (dd *DeflateDecompressor) Decompress(src io.Reader) (io.ReadCloser, error) {
	return flate.NewReader(src), nil
}

// Bzip2Decompressor implements the "BZIP2" method
type Bzip2Decompressor struct{}

func (bd *Bzip2Decompressor) Decompress(src io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(bzip2.NewReader(src)), nil
}

// ZstdDecompressor implements the "Zstandard" method
type ZstdDecompressor struct{}

func (zd *ZstdDecompressor) Decompress(src io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(src, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

// builtinDecompressors returns the registry of methods supported out of the
// box. Additional methods are registered with WithDecompressor.
func builtinDecompressors() decompressorsMap {
	return decompressorsMap{
		Stored:    new(StoredDecompressor),
		Deflated:  new(DeflateDecompressor),
		BZIP2:     new(Bzip2Decompressor),
		ZStandard: new(ZstdDecompressor),
	}
}
