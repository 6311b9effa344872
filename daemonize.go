//go:build darwin || linux

package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// tendrDaemonizedEnv marks the re-executed child so it knows not to fork
// again; Go cannot fork(2) safely mid-process (goroutines, the runtime's
// own threads), so "double fork to a session leader" becomes "re-exec
// ourselves once under a new session, with stdio redirected to /dev/null".
const tendrDaemonizedEnv = "TENDR_DAEMONIZED=1"

// daemonize detaches tendr from its controlling terminal. If this process
// hasn't already been re-exec'd for that purpose, it re-execs itself in a
// new session with stdin/stdout/stderr redirected to /dev/null and exits;
// the re-exec'd copy returns from daemonize normally and continues as the
// real supervisor.
func daemonize() {
	for _, e := range os.Environ() {
		if e == tendrDaemonizedEnv {
			return
		}
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tendr: daemonize: open %s: %v\n", os.DevNull, err)
		os.Exit(exitFatal)
	}
	defer devNull.Close()

	self, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tendr: daemonize: resolve own path: %v\n", err)
		os.Exit(exitFatal)
	}

	cmd := exec.Command(self, os.Args[1:]...)
	cmd.Env = append(os.Environ(), tendrDaemonizedEnv)
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = sessionLeaderAttr()

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "tendr: daemonize: re-exec: %v\n", err)
		os.Exit(exitFatal)
	}
	cmd.Process.Release()
	os.Exit(exitOK)
}

// sessionLeaderAttr starts the re-exec'd copy as a new session leader, the
// Go-idiomatic half of "setsid" in the classic double-fork daemonize.
func sessionLeaderAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

