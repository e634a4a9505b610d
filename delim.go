// Copyright 2025 ekazakov. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seekzip

import (
	"bytes"
	"io"
)

const delimiterChunkSize = 4096

// delimiterReader streams bytes from src up to, but not including, the first
// byte-for-byte occurrence of a fixed marker. Once the marker has been
// consumed, Read reports io.EOF. If the source ends before the marker is
// seen, the remaining bytes are yielded and the source's error is returned;
// Matched distinguishes the two outcomes.
//
// Reset switches the reader into pass-through mode: bytes that were buffered
// past the marker are re-exposed first, followed by the untouched source.
type delimiterReader struct {
	src     io.Reader
	delim   []byte
	scratch []byte
	pending []byte
	emitted int64
	srcErr  error

	matched     bool
	passthrough bool
}

func newDelimiterReader(src io.Reader, delim []byte) *delimiterReader {
	return &delimiterReader{src: src, delim: delim}
}

func (d *delimiterReader) Read(p []byte) (int, error) {
	if d.passthrough {
		if len(d.pending) > 0 {
			n := copy(p, d.pending)
			d.pending = d.pending[n:]
			return n, nil
		}
		return d.src.Read(p)
	}

	if d.matched {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}

	// Buffer at least one marker's worth of bytes so a marker crossing a
	// chunk boundary cannot be missed.
	for len(d.pending) < len(d.delim) && d.srcErr == nil {
		d.fill()
	}

	if i := bytes.Index(d.pending, d.delim); i >= 0 {
		if i == 0 {
			d.matched = true
			d.pending = d.pending[len(d.delim):]
			return 0, io.EOF
		}
		n := copy(p, d.pending[:i])
		d.pending = d.pending[n:]
		d.emitted += int64(n)
		return n, nil
	}

	if d.srcErr != nil {
		if len(d.pending) == 0 {
			return 0, d.srcErr
		}
		n := copy(p, d.pending)
		d.pending = d.pending[n:]
		d.emitted += int64(n)
		return n, nil
	}

	// No match buffered and more input remains: everything except the last
	// len(delim)-1 bytes is safe to emit.
	emit := len(d.pending) - (len(d.delim) - 1)
	n := copy(p, d.pending[:emit])
	d.pending = d.pending[n:]
	d.emitted += int64(n)
	return n, nil
}

func (d *delimiterReader) fill() {
	if d.scratch == nil {
		d.scratch = make([]byte, delimiterChunkSize)
	}
	n, err := d.src.Read(d.scratch)
	if n > 0 {
		d.pending = append(d.pending, d.scratch[:n]...)
	}
	if err != nil {
		d.srcErr = err
	}
}

// Matched reports whether the marker was found in the stream.
func (d *delimiterReader) Matched() bool {
	return d.matched
}

// Scanned returns the number of payload bytes yielded before the marker.
func (d *delimiterReader) Scanned() int64 {
	return d.emitted
}

// Reset re-exposes buffered-but-unconsumed bytes and disables further
// scanning, so reads continue from the byte immediately after the marker.
func (d *delimiterReader) Reset() {
	d.passthrough = true
}
