//go:build darwin || linux

package main

import (
	"fmt"
	"os"
)

// exitHooks runs, in LIFO order, immediately before the process actually
// terminates. Go has no atexit(3); every exit path in tendr that can run
// after a hook is registered funnels through exitClean/exitCode below
// instead of calling os.Exit directly, so the hooks always get a chance to
// run (e.g. removing the PID file).
var exitHooks []func()

func registerExitHook(fn func()) {
	exitHooks = append(exitHooks, fn)
}

func runExitHooks() {
	for i := len(exitHooks) - 1; i >= 0; i-- {
		exitHooks[i]()
	}
}

// exitClean runs registered hooks and exits 0.
func exitClean() {
	runExitHooks()
	os.Exit(0)
}

// exitCode runs registered hooks and exits with the given code.
func exitCode(code int) {
	runExitHooks()
	os.Exit(code)
}

// writePidFile creates the PID file (decimal PID + LF) and registers an
// exit hook that removes it. Called by runSupervisor before the command
// channel, self-pipe and first child are set up; a startup failure after
// this point exits through exitCode, so the file is removed again.
func writePidFile(path string, pid int) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("open pid file %s: %w", path, err)
	}
	if _, err := fmt.Fprintf(f, "%d\n", pid); err != nil {
		f.Close()
		return fmt.Errorf("write pid file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close pid file %s: %w", path, err)
	}
	registerExitHook(func() { os.Remove(path) })
	return nil
}
