// Copyright 2025 ekazakov. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seekzip

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMsDosToTime(t *testing.T) {
	// 2024-08-15, 11:32:08
	dosDate := uint16((2024-1980)<<9 | 8<<5 | 15)
	dosTime := uint16(11<<11 | 32<<5 | 8/2)

	got := msDosToTime(dosDate, dosTime)
	assert.Equal(t, time.Date(2024, time.August, 15, 11, 32, 8, 0, time.UTC), got)
}

func TestMsDosToTime_InvalidFields(t *testing.T) {
	// Zero month and day are clamped instead of producing a bogus date.
	got := msDosToTime(uint16((2020-1980)<<9), 0)
	assert.Equal(t, time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestDecodeText(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		flags  uint16
		custom func([]byte) string
		want   string
	}{
		{
			name:  "Plain ASCII",
			input: []byte("readme.txt"),
			want:  "readme.txt",
		},
		{
			name:  "Valid UTF-8 without flag",
			input: []byte("naïve.txt"),
			want:  "naïve.txt",
		},
		{
			name:  "UTF-8 flag set",
			input: []byte("привет.txt"),
			flags: flagUTF8,
			want:  "привет.txt",
		},
		{
			name:  "CP437 fallback",
			input: []byte{'c', 'a', 'f', 0x82}, // 0x82 is é in CP437
			want:  "café",
		},
		{
			name:   "Custom decoder wins",
			input:  []byte("lower"),
			custom: func(b []byte) string { return strings.ToUpper(string(b)) },
			want:   "LOWER",
		},
		{
			name:  "Empty",
			input: nil,
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, decodeText(tt.input, tt.flags, tt.custom))
		})
	}
}

func TestContextReader(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cr := &contextReader{ctx: ctx, r: bytes.NewReader([]byte("data"))}

	buf := make([]byte, 2)
	_, err := cr.Read(buf)
	require.NoError(t, err)

	cancel()
	_, err = cr.Read(buf)
	assert.ErrorIs(t, err, context.Canceled)
}
