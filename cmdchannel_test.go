//go:build darwin || linux

package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestEnableCommandChannelCreatesFIFO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.fifo")

	c, err := enableCommandChannel(path)
	require.NoError(t, err)
	defer c.close()

	var st unix.Stat_t
	require.NoError(t, unix.Stat(path, &st))
	assert.Equal(t, uint32(unix.S_IFIFO), st.Mode&unix.S_IFMT)
}

func TestEnableCommandChannelRejectsNonFIFO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notafifo")
	_, err := createRegularFile(path)
	require.NoError(t, err)

	_, err = enableCommandChannel(path)
	assert.Error(t, err)
}

func TestCommandChannelReadDeliversBytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.fifo")
	c, err := enableCommandChannel(path)
	require.NoError(t, err)
	defer c.close()

	_, werr := unix.Write(c.writeFD, []byte{cmdStartMonitor, cmdExit})
	require.NoError(t, werr)

	bytes, eof := c.read()
	assert.False(t, eof)
	assert.Equal(t, []byte{cmdStartMonitor, cmdExit}, bytes)
}

func TestCommandChannelReopenAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cmd.fifo")
	c, err := enableCommandChannel(path)
	require.NoError(t, err)
	defer c.close()

	require.NoError(t, c.reopen())

	_, werr := unix.Write(c.writeFD, []byte{cmdStopMonitor})
	require.NoError(t, werr)
	bytes, eof := c.read()
	assert.False(t, eof)
	assert.Equal(t, []byte{cmdStopMonitor}, bytes)
}

func createRegularFile(path string) (int, error) {
	fd, err := unix.Open(path, unix.O_CREATE|unix.O_WRONLY, 0644)
	if err != nil {
		return -1, err
	}
	unix.Close(fd)
	return fd, nil
}
