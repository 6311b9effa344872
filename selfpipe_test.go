//go:build darwin || linux

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestSelfPipeWriteAndDrain(t *testing.T) {
	p, err := newSelfPipe()
	require.NoError(t, err)
	defer p.close()

	p.writeToken(tokenChild)
	p.writeToken(tokenAlarm)

	tokens, broken := p.drain()
	assert.False(t, broken)
	assert.Equal(t, []byte{tokenChild, tokenAlarm}, tokens)
}

func TestSelfPipeDrainIsEmptyWhenIdle(t *testing.T) {
	p, err := newSelfPipe()
	require.NoError(t, err)
	defer p.close()

	tokens, broken := p.drain()
	assert.Empty(t, tokens)
	assert.False(t, broken)
}

func TestSelfPipeDrainReportsBrokenAfterClose(t *testing.T) {
	p, err := newSelfPipe()
	require.NoError(t, err)

	p.writeToken(tokenTerminate)
	// Closing the write end makes a subsequent read observe EOF once the
	// buffered byte is consumed, which drain reports as broken.
	unix.Close(p.writeFD)

	tokens, broken := p.drain()
	assert.Equal(t, []byte{tokenTerminate}, tokens)
	assert.True(t, broken)

	p.close()
}

func TestSignalTokenMapping(t *testing.T) {
	for _, sig := range trampolineSignals {
		tok, ok := signalToken(sig)
		assert.True(t, ok, "every trampoline signal must map to a token")
		assert.NotZero(t, tok)
	}
}
