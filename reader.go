// Copyright 2025 ekazakov. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seekzip

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"

	"github.com/ekazakov/seekzip/internal"
)

const maxCommentLength = math.MaxUint16

// readDirectory locates the end of central directory record, rejects
// spanned archives, reads the archive comment and decodes every central
// directory entry. It runs exactly once per Reader; either the full entry
// list is built or the open fails.
func (r *Reader) readDirectory(ctx context.Context) error {
	size, err := r.src.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}
	r.size = size

	if size < internal.EndOfCentralDirLen {
		return fmt.Errorf("%w: file too small", ErrFormat)
	}

	// The trailer's position cannot be computed from the end because of the
	// variable-length comment. Scan forward from the earliest offset that
	// could still hold the signature.
	scanStart := size - (maxCommentLength + internal.EndOfCentralDirLen)
	if scanStart < 0 {
		scanStart = 0
	}
	if _, err := r.src.Seek(scanStart, io.SeekStart); err != nil {
		return fmt.Errorf("seek to trailer window: %w", err)
	}

	dr := newDelimiterReader(
		&contextReader{ctx: ctx, r: r.src},
		internal.SignatureBytes(internal.EndOfCentralDirSignature),
	)
	if _, err := io.Copy(io.Discard, dr); err != nil {
		return fmt.Errorf("scan for end of central directory: %w", err)
	}
	if !dr.Matched() {
		return fmt.Errorf("%w: no end of central directory signature found", ErrFormat)
	}

	dr.Reset()
	eocdOffset := scanStart + dr.Scanned()

	end, err := internal.ReadEndOfCentralDir(dr)
	if err != nil {
		return fmt.Errorf("decode end of central directory: %w", err)
	}

	if end.ThisDiskNum != end.DiskNumWithTheStartOfCentralDir ||
		end.TotalNumberOfEntriesOnThisDisk != end.TotalNumberOfEntries {
		return fmt.Errorf("%w: spanned/split archives", ErrUnsupported)
	}

	if end.CommentLength > 0 {
		buf := make([]byte, end.CommentLength)
		if _, err := io.ReadFull(dr, buf); err != nil {
			return fmt.Errorf("read archive comment: %w", err)
		}
		r.comment = decodeText(buf, 0, r.textDecoder)
	}

	centralDirOffset, entriesNum := int64(end.CentralDirOffset), int64(end.TotalNumberOfEntries)

	if end.CentralDirOffset == math.MaxUint32 || end.TotalNumberOfEntries == math.MaxUint16 {
		zip64End, err := r.readZip64EndOfCentralDir(eocdOffset)
		if err != nil {
			return err
		}
		if zip64End.ThisDiskNum != zip64End.DiskNumWithTheStartOfCentralDir ||
			zip64End.TotalNumberOfEntriesOnThisDisk != zip64End.TotalNumberOfEntries {
			return fmt.Errorf("%w: spanned/split archives", ErrUnsupported)
		}
		centralDirOffset, entriesNum = int64(zip64End.CentralDirOffset), int64(zip64End.TotalNumberOfEntries)
	}

	return r.readCentralDir(ctx, centralDirOffset, entriesNum)
}

// readZip64EndOfCentralDir resolves the zip64 trailer chain: the fixed-size
// locator sits immediately before the end of central directory record and
// carries the absolute offset of the zip64 record.
func (r *Reader) readZip64EndOfCentralDir(eocdOffset int64) (internal.Zip64EndOfCentralDirectory, error) {
	var zip64End internal.Zip64EndOfCentralDirectory

	locatorOffset := eocdOffset - internal.Zip64LocatorLen
	if locatorOffset < 0 {
		return zip64End, fmt.Errorf("%w: invalid zip64 locator offset", ErrFormat)
	}
	if _, err := r.src.Seek(locatorOffset, io.SeekStart); err != nil {
		return zip64End, fmt.Errorf("seek to zip64 locator: %w", err)
	}
	sig, err := readSignature(r.src)
	if err != nil {
		return zip64End, fmt.Errorf("read zip64 locator: %w", err)
	}
	if sig != internal.Zip64EndOfCentralDirLocatorSignature {
		return zip64End, fmt.Errorf("%w: expected zip64 end of central directory locator signature", ErrFormat)
	}
	locator, err := internal.ReadZip64EndOfCentralDirLocator(r.src)
	if err != nil {
		return zip64End, fmt.Errorf("decode zip64 locator: %w", err)
	}

	if _, err := r.src.Seek(int64(locator.Zip64EndOfCentralDirOffset), io.SeekStart); err != nil {
		return zip64End, fmt.Errorf("seek to zip64 end of central directory: %w", err)
	}
	sig, err = readSignature(r.src)
	if err != nil {
		return zip64End, fmt.Errorf("read zip64 end of central directory: %w", err)
	}
	if sig != internal.Zip64EndOfCentralDirSignature {
		return zip64End, fmt.Errorf("%w: expected zip64 end of central directory signature", ErrFormat)
	}
	zip64End, err = internal.ReadZip64EndOfCentralDir(r.src)
	if err != nil {
		return zip64End, fmt.Errorf("decode zip64 end of central directory: %w", err)
	}
	return zip64End, nil
}

// readCentralDir decodes exactly entriesNum directory records starting at
// the given offset. Each record's own length fields bound its trailing
// variable fields, so no scanning is involved. Any decode failure aborts
// the whole load.
func (r *Reader) readCentralDir(ctx context.Context, offset int64, entriesNum int64) error {
	if _, err := r.src.Seek(offset, io.SeekStart); err != nil {
		return fmt.Errorf("seek to central directory: %w", err)
	}

	safeCap := entriesNum
	if safeCap > 1024 {
		safeCap = 1024
	}
	entries := make([]*Entry, 0, safeCap)

	cdReader := bufio.NewReader(&contextReader{ctx: ctx, r: r.src})

	for i := int64(0); i < entriesNum; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		sig, err := readSignature(cdReader)
		if err != nil {
			return fmt.Errorf("read central directory entry %d: %w", i, err)
		}
		if sig != internal.CentralDirectorySignature {
			return fmt.Errorf("%w: expected central directory signature at entry %d", ErrFormat, i)
		}

		rec, err := internal.ReadCentralDirEntry(cdReader)
		if err != nil {
			return fmt.Errorf("decode central directory entry %d: %w", i, err)
		}

		entry, err := r.newEntryFromCentralDir(rec)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}

	r.entries = entries
	return nil
}

// newEntryFromCentralDir builds an Entry from a decoded central directory
// record, resolving the compression method against the registry and folding
// in zip64 extra field overrides for saturated 32-bit values.
func (r *Reader) newEntryFromCentralDir(rec internal.CentralDirectory) (*Entry, error) {
	name := decodeText(rec.Filename, rec.GeneralPurposeBitFlag, r.textDecoder)
	comment := decodeText(rec.Comment, rec.GeneralPurposeBitFlag, r.textDecoder)

	method := CompressionMethod(rec.CompressionMethod)
	if _, ok := r.decompressors[method]; !ok {
		return nil, fmt.Errorf("%w: method %d (entry %q)", ErrAlgorithm, rec.CompressionMethod, name)
	}

	var isDir bool
	if len(name) > 1 && name[len(name)-1] == '/' {
		isDir = true
		name = name[:len(name)-1]
	}

	uncompressedSize := uint64(rec.UncompressedSize)
	compressedSize := uint64(rec.CompressedSize)
	localHeaderOffset := uint64(rec.LocalHeaderOffset)

	// Saturated 32-bit fields carry their real values in the zip64 extra
	// field, in this fixed order.
	if zip64Data, ok := internal.ParseExtraField(rec.ExtraField)[Zip64ExtraFieldTag]; ok {
		pos := 0

		if uncompressedSize == math.MaxUint32 && len(zip64Data) >= pos+8 {
			uncompressedSize = binary.LittleEndian.Uint64(zip64Data[pos : pos+8])
			pos += 8
		}
		if compressedSize == math.MaxUint32 && len(zip64Data) >= pos+8 {
			compressedSize = binary.LittleEndian.Uint64(zip64Data[pos : pos+8])
			pos += 8
		}
		if localHeaderOffset == math.MaxUint32 && len(zip64Data) >= pos+8 {
			localHeaderOffset = binary.LittleEndian.Uint64(zip64Data[pos : pos+8])
		}
	}

	return &Entry{
		name:              name,
		comment:           comment,
		isDir:             isDir,
		mode:              parseExternalAttributes(rec),
		crc32:             rec.CRC32,
		compressedSize:    int64(compressedSize),
		uncompressedSize:  int64(uncompressedSize),
		modTime:           msDosToTime(rec.LastModFileDate, rec.LastModFileTime),
		extra:             rec.ExtraField,
		method:            method,
		flags:             rec.GeneralPurposeBitFlag,
		localHeaderOffset: int64(localHeaderOffset),
		usesDescriptor:    rec.GeneralPurposeBitFlag&flagDataDescriptor != 0,
	}, nil
}

// OpenEntry opens the entry at the given index for streaming decompression.
//
// The returned stream borrows the Reader's byte source exclusively: a second
// OpenEntry call fails with ErrStreamOpen until the stream is closed.
// Abandoning the stream mid-read and closing it is safe; no state outlives
// the stream object. Reading to the end verifies the payload against the
// directory's CRC-32 and size, surfacing ErrChecksum or ErrSizeMismatch in
// place of io.EOF on mismatch.
func (r *Reader) OpenEntry(index int) (io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.streamOpen {
		return nil, ErrStreamOpen
	}
	if index < 0 || index >= len(r.entries) {
		return nil, fmt.Errorf("%w: index %d with %d entries", ErrIndexOutOfBounds, index, len(r.entries))
	}
	entry := r.entries[index]
	if entry.encrypted() {
		return nil, fmt.Errorf("%w: entry %q", ErrEncryption, entry.name)
	}

	if _, err := r.src.Seek(entry.localHeaderOffset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to local header: %w", err)
	}
	sig, err := readSignature(r.src)
	if err != nil {
		return nil, fmt.Errorf("read local header: %w", err)
	}
	if sig != internal.LocalFileHeaderSignature {
		return nil, fmt.Errorf("%w: expected local file header signature", ErrFormat)
	}

	header, err := internal.ReadLocalFileHeader(r.src)
	if err != nil {
		return nil, fmt.Errorf("decode local header: %w", err)
	}

	// The directory copy is authoritative for name and extra field; skip
	// the local copies without decoding them.
	skip := int64(header.FilenameLength) + int64(header.ExtraFieldLength)
	if _, err := r.src.Seek(skip, io.SeekCurrent); err != nil {
		return nil, fmt.Errorf("seek past local header fields: %w", err)
	}

	var raw io.Reader
	if entry.usesDescriptor {
		// The payload length was unknown at write time; it runs up to the
		// descriptor record's signature. A payload that happens to contain
		// those four bytes is truncated early, an ambiguity the format
		// itself does not resolve.
		raw = newDelimiterReader(r.src, internal.SignatureBytes(internal.DataDescriptorSignature))
	} else {
		raw = io.LimitReader(r.src, entry.compressedSize)
	}

	decompressor, ok := r.decompressors[entry.method]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrAlgorithm, entry.method)
	}
	rc, err := decompressor.Decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("decompress data: %w", err)
	}

	r.streamOpen = true
	return &entryReader{
		rc:   rc,
		hash: crc32.NewIEEE(),
		want: entry.crc32,
		size: uint64(entry.uncompressedSize),
		release: func() {
			r.mu.Lock()
			r.streamOpen = false
			r.mu.Unlock()
		},
	}, nil
}

// readSignature reads the next 4 bytes as a little-endian record signature.
func readSignature(src io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(src, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

// entryReader is the stream handed out by OpenEntry. It hashes the
// decompressed payload as it passes through and verifies checksum and size
// once the stream is exhausted. Close releases the Reader for the next
// extraction; closing before EOF skips verification.
type entryReader struct {
	rc      io.ReadCloser
	hash    hash.Hash32
	want    uint32
	read    uint64
	size    uint64
	release func()
	err     error
	closed  bool
}

func (er *entryReader) Read(p []byte) (int, error) {
	if er.err != nil {
		return 0, er.err
	}
	n, err := er.rc.Read(p)
	if n > 0 {
		er.read += uint64(n)
		er.hash.Write(p[:n])
	}
	if err == io.EOF {
		if er.read != er.size {
			er.err = fmt.Errorf("%w: read %d, want %d", ErrSizeMismatch, er.read, er.size)
			return n, er.err
		}
		if got := er.hash.Sum32(); got != er.want {
			er.err = fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, got, er.want)
			return n, er.err
		}
	}
	return n, err
}

func (er *entryReader) Close() error {
	if er.closed {
		return nil
	}
	er.closed = true
	er.release()
	return er.rc.Close()
}
