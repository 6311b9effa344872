//go:build darwin || linux

package main

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// commandNames maps the -c argument's human-readable names to the same
// single-byte protocol the event loop reads off the FIFO.
var commandNames = map[string]byte{
	"start": cmdStartMonitor,
	"stop":  cmdStopMonitor,
	"exit":  cmdExit,
	"hup":   cmdHangupChild,
	"int":   cmdInterrupt,
}

// runSendCommand implements the one-shot "-c NAME -P fifo" mode: write a
// single command byte to an already-running supervisor's command FIFO and
// report the outcome via exit code, never starting an event loop itself.
func runSendCommand(fifoPath, name string) int {
	b, ok := commandNames[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "tendr: unknown command %q\n", name)
		return exitUsageError
	}

	fd, err := unix.Open(fifoPath, unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		if err == unix.ENXIO {
			fmt.Fprintf(os.Stderr, "tendr: no tendr listening on %s\n", fifoPath)
		} else {
			fmt.Fprintf(os.Stderr, "tendr: open %s: %v\n", fifoPath, err)
		}
		return exitFatal
	}
	defer unix.Close(fd)

	buf := [1]byte{b}
	if _, err := unix.Write(fd, buf[:]); err != nil {
		fmt.Fprintf(os.Stderr, "tendr: write %s: %v\n", fifoPath, err)
		return exitFatal
	}
	return exitOK
}
