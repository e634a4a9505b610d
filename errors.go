package seekzip

import "errors"

var (
	// ErrFormat is returned when the input is not a structurally valid ZIP archive.
	ErrFormat = errors.New("zip: not a valid zip file")

	// ErrUnsupported is returned when the archive uses a recognized but
	// unimplemented format feature, such as spanned/split volumes.
	ErrUnsupported = errors.New("zip: unsupported feature")

	// ErrAlgorithm is returned when a compression method has no registered decompressor.
	ErrAlgorithm = errors.New("zip: unsupported compression algorithm")

	// ErrEncryption is returned when an entry is encrypted.
	ErrEncryption = errors.New("zip: encrypted entries are not supported")

	// ErrIndexOutOfBounds is returned when an entry index is outside the directory's bounds.
	ErrIndexOutOfBounds = errors.New("zip: entry index out of bounds")

	// ErrEntryNotFound is returned when the requested entry name is not found in the archive.
	ErrEntryNotFound = errors.New("zip: entry not found")

	// ErrStreamOpen is returned when an extraction is attempted while a
	// previously opened entry stream has not been closed.
	ErrStreamOpen = errors.New("zip: previous entry stream is still open")

	// ErrChecksum is returned when a fully read entry does not match its recorded checksum.
	ErrChecksum = errors.New("zip: checksum mismatch")

	// ErrSizeMismatch is returned when the uncompressed size does not match the directory record.
	ErrSizeMismatch = errors.New("zip: uncompressed size mismatch")
)
