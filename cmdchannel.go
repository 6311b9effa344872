//go:build darwin || linux

package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Command-FIFO byte protocol, one ASCII byte per command, no framing.
const (
	cmdStartMonitor = '+'
	cmdStopMonitor  = '-'
	cmdHangupChild  = 'h'
	cmdInterrupt    = 'i'
	cmdExit         = 'x'
)

const commandFifoMode = 0610

// commandChannel holds the FIFO's read fd (polled by the event loop) and a
// write fd kept open purely so the read side never observes EOF during
// normal operation.
type commandChannel struct {
	path    string
	readFD  int
	writeFD int
}

// enableCommandChannel creates the FIFO if absent (failing if the path
// exists and is not a FIFO), then opens both ends.
func enableCommandChannel(path string) (*commandChannel, error) {
	var st unix.Stat_t
	err := unix.Stat(path, &st)
	switch {
	case err == nil:
		if st.Mode&unix.S_IFMT != unix.S_IFIFO {
			return nil, fmt.Errorf("command pipe %s exists and is not a FIFO", path)
		}
	case err == unix.ENOENT:
		if err := unix.Mkfifo(path, commandFifoMode); err != nil {
			return nil, fmt.Errorf("create command fifo %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("stat command fifo %s: %w", path, err)
	}

	c := &commandChannel{path: path}
	if err := c.open(); err != nil {
		return nil, err
	}
	return c, nil
}

// open (re)opens both ends of the FIFO. Read end first, non-blocking;
// then the write-only end that exists solely to hold the FIFO open.
func (c *commandChannel) open() error {
	// O_CLOEXEC: see the matching note in selfpipe.go — this is how "close
	// the command-FIFO fds in the child" is expressed without Go code
	// running between fork and exec.
	rfd, err := unix.Open(c.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open command fifo %s for read: %w", c.path, err)
	}
	wfd, err := unix.Open(c.path, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		unix.Close(rfd)
		return fmt.Errorf("open command fifo %s for write: %w", c.path, err)
	}
	c.readFD = rfd
	c.writeFD = wfd
	return nil
}

func (c *commandChannel) close() {
	if c.readFD >= 0 {
		unix.Close(c.readFD)
	}
	if c.writeFD >= 0 {
		unix.Close(c.writeFD)
	}
}

// reopen closes and reopens the FIFO, used after the read end reports EOF.
func (c *commandChannel) reopen() error {
	c.close()
	return c.open()
}

// read drains whatever bytes are currently available on the read end.
// eof is true if the read end hit EOF and should be reopened by the caller.
func (c *commandChannel) read() (bytes []byte, eof bool) {
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(c.readFD, buf)
		if n > 0 {
			bytes = append(bytes, buf[:n]...)
		}
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return bytes, false
			}
			if err == unix.EINTR {
				continue
			}
			return bytes, true
		}
		if n == 0 {
			return bytes, true
		}
	}
}
