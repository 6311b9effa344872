//go:build darwin || linux

package main

import (
	"golang.org/x/sys/unix"
)

// selfPipe is a unidirectional byte pipe bridging the signal-translation
// goroutine and the event loop. The read end is non-blocking and owned by
// the event loop's poll set. Both ends are close-on-exec (see newSelfPipe)
// and never placed in ExtraFiles, so children do not keep them past exec.
type selfPipe struct {
	readFD  int
	writeFD int
}

func newSelfPipe() (*selfPipe, error) {
	var fds [2]int
	// O_CLOEXEC here is what "close the self-pipe fds in the child" (spec's
	// start_child step 1) becomes in Go: there is no safe place to run that
	// close between fork and exec, so the fds are marked non-inheritable up
	// front instead.
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, err
	}
	return &selfPipe{readFD: fds[0], writeFD: fds[1]}, nil
}

func (p *selfPipe) close() {
	if p.readFD >= 0 {
		unix.Close(p.readFD)
	}
	if p.writeFD >= 0 {
		unix.Close(p.writeFD)
	}
}

// writeToken writes a single-byte signal token. Called from the signal
// translation goroutine; a full pipe is a coalescable event, so the error
// (other than EAGAIN, which can't happen for a 1-byte write to an empty
// slot) is not acted upon.
func (p *selfPipe) writeToken(b byte) {
	buf := [1]byte{b}
	unix.Write(p.writeFD, buf[:])
}

// drain reads every currently-available byte off the pipe, returning them
// and whether the pipe needs to be recreated (EOF on read, or the pipe
// otherwise appears broken).
func (p *selfPipe) drain() (tokens []byte, broken bool) {
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(p.readFD, buf)
		if n > 0 {
			tokens = append(tokens, buf[:n]...)
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return tokens, false
			}
			if err == unix.EINTR {
				continue
			}
			return tokens, true
		}
		if n == 0 {
			return tokens, true
		}
	}
}
