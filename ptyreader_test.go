//go:build darwin || linux

package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPtyReaderSplitsOnNewline(t *testing.T) {
	r := newPtyReader()
	lines := r.feed([]byte("hello\nworld\n"))
	require.Len(t, lines, 2)
	assert.Equal(t, "hello\n", lines[0])
	assert.Equal(t, "world\n", lines[1])
}

func TestPtyReaderNormalizesCRLF(t *testing.T) {
	r := newPtyReader()
	lines := r.feed([]byte("a\r\nb\n"))
	require.Len(t, lines, 2)
	assert.Equal(t, "a\n", lines[0], "trailing CRLF collapses to a single LF")
	assert.Equal(t, "b\n", lines[1])
}

func TestPtyReaderTerminatesOnNullByte(t *testing.T) {
	r := newPtyReader()
	lines := r.feed([]byte("abc\x00def\n"))
	require.Len(t, lines, 2)
	assert.Equal(t, "abc\x00", lines[0])
	assert.Equal(t, "def\n", lines[1])
}

func TestPtyReaderForceFlushesAtBufferCap(t *testing.T) {
	r := newPtyReader()
	data := strings.Repeat("x", maxLineBuffer-1)
	lines := r.feed([]byte(data))
	require.Len(t, lines, 1, "a 2047-byte run with no newline must force a flush")
	assert.Equal(t, data+"\n", lines[0])
	assert.Empty(t, r.buf, "the buffer must be empty after a forced flush")
}

func TestPtyReaderBuffersPartialLineAcrossFeeds(t *testing.T) {
	r := newPtyReader()
	lines := r.feed([]byte("partial"))
	assert.Empty(t, lines)
	lines = r.feed([]byte(" line\n"))
	require.Len(t, lines, 1)
	assert.Equal(t, "partial line\n", lines[0])
}
