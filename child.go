//go:build darwin || linux

package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// sentinelExecFailure is the child-side exit status used for "failed
// before exec" (env apply failures are warnings only, not this sentinel).
const sentinelExecFailure = 99

// startChild forks (via os/exec + a fresh PTY) the configured program.
// On success it records the child's PID and PTY master in state. On
// failure it does not exit the supervisor: it sets the next restart delay
// to 60s, per spec.md §4.4/§7.
func startChild(cfg *SupervisorConfig, st *SupervisorState, log *logDest) {
	master, slave, err := openPTY()
	if err != nil {
		log.Warn("fork-via-pty failed: %v", err)
		st.CurrentRestartDelayS = 60
		return
	}
	setWinsize(slave.Fd(), defaultWinsize())

	cmd := exec.Command(cfg.ProgramPath, cfg.ProgramArgv...)
	cmd.Stdin = slave
	cmd.Stdout = slave
	cmd.Stderr = slave
	cmd.Dir = cfg.WorkDir
	cmd.Env = resolveChildEnv(cfg)
	cmd.ExtraFiles = []*os.File{slave}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:  true,
		Setctty: true,
		Ctty:    3, // index of slave within ExtraFiles + the three standard fds
	}
	if cfg.HaveRunAsUID || cfg.HaveRunAsGID {
		cred := &syscall.Credential{}
		if cfg.HaveRunAsGID {
			cred.Gid = uint32(cfg.RunAsGID)
		}
		if cfg.HaveRunAsUID {
			cred.Uid = uint32(cfg.RunAsUID)
		}
		// The Go runtime's raw-fork child applies Gid before Uid, matching
		// "group id set while root privilege is still available".
		cmd.SysProcAttr.Credential = cred
	}

	if cfg.StartupScript != "" {
		wrapWithStartupScript(cmd, cfg)
	}

	if err := cmd.Start(); err != nil {
		log.Warn("start child failed: %v", err)
		slave.Close()
		master.Close()
		st.CurrentRestartDelayS = 60
		return
	}

	slave.Close() // parent no longer needs it

	st.ChildPID = cmd.Process.Pid
	st.PTYMaster = master
	unix.SetNonblock(int(master.Fd()), true)

	// cmd.Process is detached from cmd.Wait's bookkeeping below: tendr
	// reaps the child itself (see reapChild), since spec.md's event loop
	// owns the reap, not a blocking cmd.Wait call. Releasing here prevents
	// the exec package's internal goroutine from racing our own Wait4.
	cmd.Process.Release()
}

// wrapWithStartupScript rewrites cmd to exec "/bin/sh -c '<script>; ...;
// exec program args...'" instead of exec'ing the program directly. See
// SPEC_FULL.md §4.4 for why this single extra exec, rather than an
// in-process fork/exec stage, is how tendr runs a pre-exec script: Go
// cannot safely run further Go code in a raw-forked child before execve,
// so the two logical stages (script, then real exec) become two real
// execs chained by the shell instead of two Go-side steps.
func wrapWithStartupScript(cmd *exec.Cmd, cfg *SupervisorConfig) {
	shArgs := []string{
		"-c",
		cfg.StartupScript + `; rc=$?; ` +
			`if [ $rc -ge 128 ]; then sig=$((rc-128)); ` +
			`if [ "$sig" = 2 ] || [ "$sig" = 3 ]; then exit ` + fmt.Sprint(sentinelExecFailure) + `; fi; ` +
			`fi; exec "$0" "$@"`,
		cfg.ProgramPath,
	}
	shArgs = append(shArgs, cfg.ProgramArgv...)
	cmd.Path = "/bin/sh"
	cmd.Args = append([]string{"/bin/sh"}, shArgs...)
}

// reapResult is what happened when the event loop handled a SIGCHLD token.
type reapResult struct {
	reaped   bool
	pid      int
	sentinel bool // true if the child exited with status 99
	signaled bool
	sig      syscall.Signal
	exitCode int
}

// reapChild performs a non-blocking wait for any exited child, per
// spec.md §4.4: "reap without blocking. If the reaped PID does not match
// child_pid, ignore."
func reapChild(st *SupervisorState) reapResult {
	var ws syscall.WaitStatus
	pid, err := syscall.Wait4(-1, &ws, syscall.WNOHANG, nil)
	if err != nil || pid <= 0 {
		return reapResult{}
	}
	if pid != st.ChildPID {
		return reapResult{}
	}

	res := reapResult{reaped: true, pid: pid}
	if ws.Exited() {
		res.exitCode = ws.ExitStatus()
		res.sentinel = res.exitCode == sentinelExecFailure
	} else if ws.Signaled() {
		res.signaled = true
		res.sig = ws.Signal()
	}
	return res
}

// logChildExit logs the exit reason, except for the sentinel status 99
// (the startup-script wrapper's abort status), for which no line is written.
func logChildExit(res reapResult, log *logDest) {
	if res.sentinel {
		return
	}
	if res.signaled {
		log.Info("child pid %d terminated by signal %v", res.pid, res.sig)
		return
	}
	log.Info("child pid %d exited with status %d", res.pid, res.exitCode)
}

// forwardSignal sends sig to the running child, if any.
func forwardSignal(st *SupervisorState, sig syscall.Signal) {
	if st.hasChild() {
		syscall.Kill(st.ChildPID, sig)
	}
}
