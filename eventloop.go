//go:build darwin || linux

package main

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// eventLoop owns the single poll-based multiplex wait and dispatches
// events in the fixed order PTY -> self-pipe -> command FIFO.
type eventLoop struct {
	cfg        *SupervisorConfig
	state      *SupervisorState
	log        *logDest
	childLog   *logDest
	trampoline *signalTrampoline
	daemon     bool

	// shuttingDown marks the 6-second bounded re-entrant wait for the
	// graceful-shutdown command; it is the only recursion in the design.
	shuttingDown bool
	shutdownEnd  time.Time
}

// run is the top-level event loop. It returns only via one of the
// exitClean/exitCode helpers (never by a normal Go "return" reaching main),
// so a literal return here would be the "event loop returned" impossible
// condition from spec.md §6.
func (el *eventLoop) run() {
	for {
		el.iterate()
	}
}

// iterate runs exactly one poll-and-dispatch cycle. It is also what the
// graceful-shutdown command re-enters in a bounded loop (see handleGracefulExit).
func (el *eventLoop) iterate() {
	fds := el.buildPollSet()
	timeoutMS := el.pollTimeoutMS()

	n, err := unix.Poll(fds, timeoutMS)
	if err != nil {
		if err == unix.EINTR {
			return
		}
		el.log.Warn("poll failed: %v", err)
		return
	}
	if n == 0 {
		// Poll timed out: this is what actually drives the back-off clock.
		// A bare SIGALRM (self-raised or sent from outside) is handled
		// identically via handleAlarm, should one arrive instead.
		el.handleAlarm()
		return
	}

	el.dispatchPTY(fds)
	el.dispatchSelfPipe(fds)
	el.dispatchCommands(fds)
}

// buildPollSet returns the poll fd list in priority order: PTY, self-pipe,
// command FIFO. Index bookkeeping is recomputed each call since the PTY
// and FIFO fds can come and go.
func (el *eventLoop) buildPollSet() []unix.PollFd {
	var fds []unix.PollFd
	if el.state.PTYMaster != nil {
		fds = append(fds, unix.PollFd{Fd: int32(el.state.PTYMaster.Fd()), Events: unix.POLLIN})
	}
	fds = append(fds, unix.PollFd{Fd: int32(el.state.SelfPipe.readFD), Events: unix.POLLIN})
	if el.state.Commands != nil {
		fds = append(fds, unix.PollFd{Fd: int32(el.state.Commands.readFD), Events: unix.POLLIN})
	}
	return fds
}

func (el *eventLoop) pollTimeoutMS() int {
	if el.shuttingDown {
		remaining := time.Until(el.shutdownEnd)
		if remaining <= 0 {
			return 0
		}
		return int(remaining / time.Millisecond)
	}
	return el.state.CurrentRestartDelayS * 1000
}

func (el *eventLoop) dispatchPTY(fds []unix.PollFd) {
	if el.state.PTYMaster == nil {
		return
	}
	var pf *unix.PollFd
	for i := range fds {
		if fds[i].Fd == int32(el.state.PTYMaster.Fd()) {
			pf = &fds[i]
			break
		}
	}
	if pf == nil || pf.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
		return
	}
	el.drainPTY()
}

// drainPTY reads and logs whatever lines are available, closing the PTY on
// EOF/EIO. Exposed separately from dispatchPTY so child-exit handling can
// call it directly before reaping (spec.md §4.4: "drain the PTY before
// reaping; the child may have flushed data that arrives only after the
// exit signal").
func (el *eventLoop) drainPTY() {
	if el.state.PTYMaster == nil {
		return
	}
	res := el.state.reader.readChunk(int(el.state.PTYMaster.Fd()))
	for _, line := range res.lines {
		el.childLog.Info("%s", line)
	}
	if res.eof {
		el.log.Info("child pty closed")
		el.state.PTYMaster.Close()
		el.state.PTYMaster = nil
	}
}

func (el *eventLoop) dispatchSelfPipe(fds []unix.PollFd) {
	var pf *unix.PollFd
	for i := range fds {
		if fds[i].Fd == int32(el.state.SelfPipe.readFD) {
			pf = &fds[i]
			break
		}
	}
	if pf == nil || pf.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
		return
	}

	tokens, broken := el.state.SelfPipe.drain()
	if broken {
		np, err := newSelfPipe()
		if err == nil {
			el.state.SelfPipe.close()
			el.state.SelfPipe = np
			el.trampoline.rebind(np)
		} else {
			el.log.Warn("failed to recreate self-pipe: %v", err)
		}
	}
	for _, tok := range tokens {
		el.handleToken(tok)
	}
}

func (el *eventLoop) dispatchCommands(fds []unix.PollFd) {
	if el.state.Commands == nil {
		return
	}
	var pf *unix.PollFd
	for i := range fds {
		if fds[i].Fd == int32(el.state.Commands.readFD) {
			pf = &fds[i]
			break
		}
	}
	if pf == nil || pf.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) == 0 {
		return
	}

	bytes, eof := el.state.Commands.read()
	for _, b := range bytes {
		el.handleCommandByte(b)
	}
	if eof {
		if err := el.state.Commands.reopen(); err != nil {
			el.log.Warn("failed to reopen command fifo: %v", err)
		}
	}
}

// handleToken dispatches one self-pipe byte per the fixed signal table in
// spec.md §4.4.
func (el *eventLoop) handleToken(tok byte) {
	switch tok {
	case tokenChild:
		el.handleChildExit()
	case tokenAlarm:
		el.handleAlarm()
	case tokenHangup:
		el.handleHangup()
	case tokenInterrupt:
		el.handleInterrupt()
	case tokenTerminate:
		el.handleTerminate()
	case tokenUsr1:
		el.state.RestartEnabled = false
	case tokenUsr2:
		el.state.resetBackoff(el.cfg)
		el.state.RestartEnabled = true
		if !el.state.hasChild() {
			startChild(el.cfg, el.state, el.log)
		}
	default:
		el.log.Warn("unknown self-pipe token %q", tok)
	}
}

func (el *eventLoop) handleChildExit() {
	el.drainPTY()

	res := reapChild(el.state)
	if !res.reaped {
		return
	}

	logChildExit(res, el.log)
	el.state.ChildPID = 0
	if el.state.PTYMaster != nil {
		el.state.PTYMaster.Close()
		el.state.PTYMaster = nil
	}

	if el.state.ShutdownPending {
		exitCode(el.state.ShutdownExitCode)
		return
	}
}

func (el *eventLoop) handleAlarm() {
	if el.state.RestartEnabled && !el.state.hasChild() {
		startChild(el.cfg, el.state, el.log)
		// The delay just waited out was this restart's back-off; double it
		// (capped at max) for the next one. A failed start has already set
		// the delay to 60s and is left as is.
		if el.state.hasChild() {
			el.state.advanceBackoff(el.cfg)
		}
	}
	// el.shuttingDown's own bounded re-entrant loop (handleGracefulExit)
	// owns the "no child after the timeout" outcome (SIGKILL, then exit
	// 0); a poll timeout during that window must not short-circuit it.
	if el.state.ShutdownPending && !el.shuttingDown {
		exitCode(el.state.ShutdownExitCode)
	}
}

func (el *eventLoop) handleHangup() {
	if el.daemon {
		forwardSignal(el.state, syscall.SIGHUP)
		return
	}
	forwardSignal(el.state, syscall.SIGHUP)
	el.state.ShutdownPending = true
	el.state.ShutdownExitCode = 1
	if el.state.ChildPID <= 0 {
		exitCode(1)
	}
}

func (el *eventLoop) handleInterrupt() {
	forwardSignal(el.state, syscall.SIGINT)
	if el.daemon {
		return
	}
	el.state.ShutdownPending = true
	el.state.ShutdownExitCode = 1
	el.state.RestartEnabled = false
	if el.state.ChildPID <= 0 {
		exitCode(1)
	}
}

func (el *eventLoop) handleTerminate() {
	forwardSignal(el.state, syscall.SIGTERM)
	el.state.ShutdownPending = true
	el.state.ShutdownExitCode = 1
	el.state.RestartEnabled = false
	if el.state.ChildPID <= 0 {
		exitCode(1)
	}
}

// handleCommandByte dispatches one command-FIFO byte per the table in
// spec.md §4.3.
func (el *eventLoop) handleCommandByte(b byte) {
	switch b {
	case cmdStartMonitor:
		el.state.resetBackoff(el.cfg)
		el.state.RestartEnabled = true
		if !el.state.hasChild() {
			startChild(el.cfg, el.state, el.log)
		}
	case cmdStopMonitor:
		el.state.RestartEnabled = false
	case cmdHangupChild:
		forwardSignal(el.state, syscall.SIGHUP)
	case cmdInterrupt:
		forwardSignal(el.state, syscall.SIGINT)
	case cmdExit:
		el.handleGracefulExit()
	default:
		el.log.Warn("unknown command byte %q", b)
	}
}

// handleGracefulExit implements spec.md §4.4's graceful shutdown: forward
// SIGTERM, clamp both back-off bounds to 5s, then re-enter the normal
// event loop (still servicing PTY and FIFO) for up to 6 wall-clock
// seconds; if the child is still alive at the end of that window, send
// SIGKILL, then exit 0.
func (el *eventLoop) handleGracefulExit() {
	el.state.ShutdownPending = true
	el.state.ShutdownExitCode = 0
	el.cfg.MinRestartDelayS = 5
	el.cfg.MaxRestartDelayS = 5
	forwardSignal(el.state, syscall.SIGTERM)

	el.shuttingDown = true
	el.shutdownEnd = time.Now().Add(6 * time.Second)
	for time.Now().Before(el.shutdownEnd) {
		if !el.state.hasChild() {
			break
		}
		el.iterate()
	}
	el.shuttingDown = false

	if el.state.hasChild() {
		forwardSignal(el.state, syscall.SIGKILL)
	}
	exitClean()
}
