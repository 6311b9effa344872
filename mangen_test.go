//go:build darwin || linux

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintManPageListsEveryFlag(t *testing.T) {
	var buf bytes.Buffer
	printManPage(&buf)
	out := buf.String()

	for _, flag := range []string{
		"--dir", "--daemon", "--clear-env", "--env", "--child-log-name",
		"--log-name", "--max-wait-time", "--min-wait-time", "--command-pipe",
		"--pid-file", "--startup-script", "--user", "--command",
		"--release-allfd", "--version", "--email", "--help",
	} {
		assert.Contains(t, out, flag)
	}
}
