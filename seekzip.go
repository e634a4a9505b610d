// Copyright 2025 ekazakov. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package seekzip reads ZIP archives from any seekable byte source.
//
// The archive's central directory is discovered once, at open time, by a
// bounded backward scan for the end of central directory record. After that
// any entry can be opened for streaming decompression in any order and any
// number of times, independent of the order entries were written.
//
// A Reader owns its byte source exclusively. At most one entry stream may be
// open at a time, because all streams share the source's single seek cursor;
// a second OpenEntry before Close fails with ErrStreamOpen.
//
//	r, err := seekzip.OpenFile("archive.zip")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//
//	for i, e := range r.Entries() {
//		rc, err := r.OpenEntry(i)
//		if err != nil {
//			log.Fatal(err)
//		}
//		_, err = io.Copy(os.Stdout, rc)
//		rc.Close()
//		if err != nil {
//			log.Fatalf("%s: %v", e.Name(), err)
//		}
//	}
package seekzip

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
)

// Option configures a Reader before the directory load runs.
type Option func(*Reader)

// WithContext sets the context used to cancel the directory load and
// subsequent extractions. If not set, context.Background() is used.
func WithContext(ctx context.Context) Option {
	return func(r *Reader) {
		r.ctx = ctx
	}
}

// WithDecompressor registers a decompressor for a compression method,
// overriding any built-in for the same method. Methods present in the
// archive but absent from the registry fail the open with ErrAlgorithm.
func WithDecompressor(method CompressionMethod, d Decompressor) Option {
	return func(r *Reader) {
		r.decompressors[method] = d
	}
}

// WithTextDecoder overrides the decoding of filename and comment bytes.
// The default treats bytes as UTF-8 when flagged or well-formed, and as
// CP437 otherwise.
func WithTextDecoder(decode func([]byte) string) Option {
	return func(r *Reader) {
		r.textDecoder = decode
	}
}

// Reader provides random access to the entries of a ZIP archive.
//
// The entry list and the archive comment are built once by OpenReader and
// are immutable afterwards. Entries are kept in the directory's on-disk
// order, which is stable for the Reader's lifetime.
type Reader struct {
	mu            sync.Mutex
	src           io.ReadSeeker
	size          int64
	entries       []*Entry
	comment       string
	decompressors decompressorsMap
	textDecoder   func([]byte) string
	ctx           context.Context
	streamOpen    bool
	closer        io.Closer
}

// OpenReader reads the archive's central directory from src and returns a
// Reader over it. src must support sequential reads and absolute/relative
// seeking; no other capability is required. The Reader takes exclusive
// ownership of src.
func OpenReader(src io.ReadSeeker, opts ...Option) (*Reader, error) {
	r := &Reader{
		src:           src,
		decompressors: builtinDecompressors(),
		ctx:           context.Background(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(r)
	}

	if err := r.readDirectory(r.ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// OpenFile opens the named file and reads it as a ZIP archive. The file is
// closed by the Reader's Close method.
func OpenFile(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := OpenReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// Entries returns the archive's entries in on-disk directory order. The
// returned slice is a read-only view; callers must not modify it.
func (r *Reader) Entries() []*Entry {
	return r.entries
}

// Comment returns the archive-level comment, empty if none was recorded.
func (r *Reader) Comment() string {
	return r.comment
}

// FindEntry searches for an entry by name with a linear scan and returns its
// index. Duplicate names may exist in an archive; the first match in on-disk
// order wins. Returns ErrEntryNotFound if no entry has the given name.
func (r *Reader) FindEntry(name string) (int, *Entry, error) {
	for i, e := range r.entries {
		if e.name == name {
			return i, e, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: %q", ErrEntryNotFound, name)
}

// FS returns a read-only fs.FS view of the archive. Opening a file through
// it is subject to the same single-stream rule as OpenEntry.
func (r *Reader) FS() fs.FS {
	return &zipFS{r: r}
}

// Close releases the underlying source if the Reader owns it (see OpenFile).
// It does not invalidate already-opened entry streams.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}
