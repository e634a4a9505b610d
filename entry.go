// Copyright 2025 ekazakov. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seekzip

import (
	"io/fs"
	"strings"
	"time"

	"github.com/ekazakov/seekzip/internal"
)

// Zip64ExtraFieldTag identifies the zip64 extended information extra field.
const Zip64ExtraFieldTag uint16 = 0x0001

// General purpose bit flags consumed by the reader.
const (
	flagEncrypted      = 0x0001 // entry payload is encrypted
	flagDataDescriptor = 0x0008 // sizes/checksum follow the payload in a descriptor record
	flagUTF8           = 0x0800 // filename and comment are UTF-8
)

// Host system identifiers from the upper byte of "version made by".
const (
	hostFAT  = 0
	hostUnix = 3
	hostNTFS = 11
	hostVFAT = 14
	hostOSX  = 19
)

// Unix file type bits carried in the upper half of external attributes.
const (
	s_IFMT   = 0xf000
	s_IFIFO  = 0x1000
	s_IFCHR  = 0x2000
	s_IFDIR  = 0x4000
	s_IFBLK  = 0x6000
	s_IFLNK  = 0xa000
	s_IFSOCK = 0xc000
)

// Entry describes one member of the archive, as recorded in the central
// directory. The directory copy of sizes and checksum is authoritative even
// for entries written with a trailing data descriptor, where the local copy
// holds placeholders.
type Entry struct {
	name              string
	comment           string
	isDir             bool
	mode              fs.FileMode
	crc32             uint32
	compressedSize    int64
	uncompressedSize  int64
	modTime           time.Time
	extra             []byte
	method            CompressionMethod
	flags             uint16
	localHeaderOffset int64
	usesDescriptor    bool
}

// Name returns the entry's name as stored in the directory, with any
// trailing directory slash removed.
func (e *Entry) Name() string { return e.name }

// Comment returns the entry's comment, empty if none was recorded.
func (e *Entry) Comment() string { return e.comment }

// IsDir reports whether the entry denotes a directory.
func (e *Entry) IsDir() bool { return e.isDir }

// Mode returns the file mode derived from the entry's external attributes.
func (e *Entry) Mode() fs.FileMode { return e.mode }

// ModTime returns the modification time decoded from the MS-DOS date and
// time fields. The resolution is two seconds and the zone is unspecified by
// the format; UTC is assumed.
func (e *Entry) ModTime() time.Time { return e.modTime }

// CRC32 returns the IEEE CRC-32 of the uncompressed payload as recorded in
// the directory.
func (e *Entry) CRC32() uint32 { return e.crc32 }

// CompressedSize returns the stored payload size in bytes.
func (e *Entry) CompressedSize() int64 { return e.compressedSize }

// UncompressedSize returns the payload size after decompression.
func (e *Entry) UncompressedSize() int64 { return e.uncompressedSize }

// Method returns the entry's compression method identifier.
func (e *Entry) Method() CompressionMethod { return e.method }

// Extra returns the raw extra field bytes, uninterpreted.
func (e *Entry) Extra() []byte { return e.extra }

// UsesDataDescriptor reports whether the entry's sizes and checksum were
// unknown at write time and recorded in a descriptor after the payload.
func (e *Entry) UsesDataDescriptor() bool { return e.usesDescriptor }

func (e *Entry) encrypted() bool { return e.flags&flagEncrypted != 0 }

// FileInfo returns an fs.FileInfo view of the entry.
func (e *Entry) FileInfo() fs.FileInfo { return fileInfoAdapter{e} }

// parseExternalAttributes derives a file mode from the host system recorded
// in "version made by" and the external attribute bits.
func parseExternalAttributes(rec internal.CentralDirectory) fs.FileMode {
	var mode fs.FileMode
	hostSystem := rec.VersionMadeBy >> 8

	switch hostSystem {
	case hostUnix, hostOSX:
		unixMode := uint32(rec.ExternalFileAttributes >> 16)
		mode = fs.FileMode(unixMode & 0777)

		switch unixMode & s_IFMT {
		case s_IFDIR:
			mode |= fs.ModeDir
		case s_IFLNK:
			mode |= fs.ModeSymlink
		case s_IFSOCK:
			mode |= fs.ModeSocket
		case s_IFIFO:
			mode |= fs.ModeNamedPipe
		case s_IFCHR:
			mode |= fs.ModeCharDevice
		case s_IFBLK:
			mode |= fs.ModeDevice
		}
		return mode

	case hostFAT, hostVFAT, hostNTFS:
		isDir := strings.HasSuffix(string(rec.Filename), "/") || (rec.ExternalFileAttributes&0x10 != 0)

		if isDir {
			mode = 0755 | fs.ModeDir
		} else {
			mode = 0644
		}

		if rec.ExternalFileAttributes&0x01 != 0 {
			mode &^= 0222 // Remove write permission (a-w)
		}
		return mode
	}

	if strings.HasSuffix(string(rec.Filename), "/") {
		return 0755 | fs.ModeDir
	}
	return 0644
}
