//go:build darwin || linux

package main

import (
	"golang.org/x/sys/unix"
)

const maxLineBuffer = 2048

// ptyReader reassembles raw PTY master bytes into lines for logging,
// normalizing a trailing CRLF to LF and forcing a flush before the line
// buffer would exceed 2048 bytes.
type ptyReader struct {
	buf []byte
}

func newPtyReader() *ptyReader {
	return &ptyReader{buf: make([]byte, 0, maxLineBuffer)}
}

// readResult describes what happened on one readChunk call.
type readResult struct {
	lines []string // complete lines produced by this chunk, in order
	eof   bool      // PTY read returned 0, EIO, or another terminal error
}

// readChunk reads up to 1024 bytes from fd and feeds them through the line
// reassembler. It loops until the read would block, matching "reads in
// 1024-byte chunks until would-block or zero or an error".
func (r *ptyReader) readChunk(fd int) readResult {
	var res readResult
	buf := make([]byte, 1024)
	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			res.lines = append(res.lines, r.feed(buf[:n])...)
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return res
			}
			if err == unix.EINTR {
				continue
			}
			// EIO is the normal "child exited" signal; any other error is
			// also treated as termination per spec (logged at info by the
			// caller either way).
			res.eof = true
			return res
		}
		if n == 0 {
			res.eof = true
			return res
		}
	}
}

// feed appends data to the buffer byte-by-byte-equivalent, splitting
// completed lines on '\n' or '\x00', normalizing a trailing CRLF to a bare
// LF, and force-flushing at 2047 buffered bytes.
func (r *ptyReader) feed(data []byte) []string {
	var lines []string
	for _, b := range data {
		r.buf = append(r.buf, b)

		if b == '\n' || b == 0 {
			if b == '\n' && len(r.buf) >= 2 && r.buf[len(r.buf)-2] == '\r' {
				// Overwrite the CR so the line ends with a single LF.
				r.buf[len(r.buf)-2] = '\n'
				r.buf = r.buf[:len(r.buf)-1]
			}
			lines = append(lines, string(r.buf))
			r.buf = r.buf[:0]
			continue
		}

		if len(r.buf) >= maxLineBuffer-1 {
			r.buf = append(r.buf, '\n')
			lines = append(lines, string(r.buf))
			r.buf = r.buf[:0]
		}
	}
	return lines
}
