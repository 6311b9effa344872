//go:build darwin || linux

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

// version is set at build time via -ldflags "-X main.version=..."
var version string

// exitUsageError / exitFatal mirror the exit-code convention spelled out in
// spec.md §6: 0 clean, 1 usage/config error, 2 fatal OS setup error, 88 the
// "event loop returned" impossible condition, 99 reserved for the child-side
// startup-script sentinel and never returned by the supervisor itself.
const (
	exitOK         = 0
	exitUsageError = 1
	exitFatal      = 2
	exitLoopExited = 88
)

func main() {
	flags := pflag.NewFlagSet("tendr", pflag.ContinueOnError)
	flags.Usage = func() { printUsage(flags) }

	var (
		dir           string
		daemon        bool
		clearEnv      bool
		commandName   string
		envFlags      []string
		email         string
		childLogName  string
		logName       string
		maxWaitTime   int
		minWaitTime   int
		commandPipe   string
		pidFile       string
		startupScript string
		userSpec      string
		showVersion   bool
		releaseAllFDs bool
		showMan       bool
	)

	flags.StringVarP(&dir, "dir", "D", "", "working directory for the supervised program")
	flags.BoolVarP(&daemon, "daemon", "d", false, "detach from the controlling terminal")
	flags.BoolVarP(&clearEnv, "clear-env", "C", false, "start the child with an empty environment")
	flags.StringVarP(&commandName, "command", "c", "", "send a one-shot command (start|stop|exit|hup|int) instead of supervising")
	flags.StringArrayVarP(&envFlags, "env", "E", nil, "KEY=VALUE to set, or KEY to unset, in the child's environment")
	flags.StringVarP(&email, "email", "e", "", "notification address (accepted, not acted on)")
	flags.StringVarP(&childLogName, "child-log-name", "L", "", "log tag for the supervised program's output")
	flags.StringVarP(&logName, "log-name", "l", "", "log tag for tendr's own messages")
	flags.IntVarP(&maxWaitTime, "max-wait-time", "M", -1, "maximum restart back-off, in seconds")
	flags.IntVarP(&minWaitTime, "min-wait-time", "m", -1, "minimum restart back-off, in seconds")
	flags.StringVarP(&commandPipe, "command-pipe", "P", "", "path to the command FIFO")
	flags.StringVarP(&pidFile, "pid-file", "p", "", "path to write tendr's PID to")
	flags.StringVarP(&startupScript, "startup-script", "S", "", "shell script to run before exec'ing the program")
	flags.StringVarP(&userSpec, "user", "u", "", "user[:group] to run the child as")
	flags.BoolVarP(&showVersion, "version", "V", false, "print version and exit")
	flags.BoolVarP(&releaseAllFDs, "release-allfd", "z", false, "close inherited file descriptors 3 to 255 before anything else")
	flags.BoolVar(&showMan, "man", false, "print a man page and exit")
	flags.MarkHidden("man")

	if err := flags.Parse(os.Args[1:]); err != nil {
		os.Exit(exitUsageError)
	}

	// closeInheritedFDs must run before the logger exists, so its errors are
	// silently discarded (see DESIGN.md's Open Question resolutions).
	if releaseAllFDs {
		closeInheritedFDs()
	}

	if showVersion {
		printVersion()
		os.Exit(exitOK)
	}
	if showMan {
		printManPage(os.Stdout)
		os.Exit(exitOK)
	}

	cfg := newDefaultConfig()
	cfg.WorkDir = dir
	cfg.DetachFromTerminal = daemon
	cfg.ClearEnv = clearEnv
	cfg.Email = email
	cfg.CommandFifoPath = commandPipe
	cfg.PidFilePath = pidFile
	cfg.StartupScript = startupScript
	cfg.CloseInheritedFDs = releaseAllFDs
	if childLogName != "" {
		cfg.ChildLogTag = childLogName
	}
	if logName != "" {
		cfg.ParentLogTag = logName
	}
	if maxWaitTime >= 0 {
		cfg.MaxRestartDelayS = maxWaitTime
	}
	if minWaitTime >= 0 {
		cfg.MinRestartDelayS = minWaitTime
	}
	for _, e := range envFlags {
		cfg.applyEnvFlag(e)
	}
	if userSpec != "" {
		if err := cfg.parseUserGroup(userSpec); err != nil {
			fmt.Fprintf(os.Stderr, "tendr: %v\n", err)
			os.Exit(exitUsageError)
		}
	}

	args := flags.Args()

	if commandName != "" {
		if cfg.CommandFifoPath == "" {
			fmt.Fprintln(os.Stderr, "tendr: -c requires -P/--command-pipe")
			os.Exit(exitUsageError)
		}
		os.Exit(runSendCommand(cfg.CommandFifoPath, commandName))
	}

	if len(args) == 0 {
		printUsage(flags)
		os.Exit(exitUsageError)
	}
	cfg.ProgramPath = args[0]
	cfg.ProgramArgv = args[1:]

	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "tendr: %v\n", err)
		os.Exit(exitUsageError)
	}

	runSupervisor(cfg)
}

// closeInheritedFDs closes fds 3 through 255, best effort; descriptors
// numbered 256 and above are left open. It runs
// before any logger exists (spec.md §9), so failures here have nowhere to
// go and are discarded.
func closeInheritedFDs() {
	max := 256
	for fd := 3; fd < max; fd++ {
		unix.Close(fd)
	}
}

// runSupervisor wires config -> logging -> pid file -> command channel ->
// signal trampoline -> child -> event loop, and never returns: every exit
// path goes through exitClean/exitCode/exitLoopExited.
func runSupervisor(cfg *SupervisorConfig) {
	if cfg.DetachFromTerminal {
		daemonize()
	}

	var log *logDest
	if cfg.DetachFromTerminal {
		l, err := newSyslogLog(cfg.ParentLogTag, os.Getpid())
		if err != nil {
			// No terminal left to report to in daemon mode; fall back to a
			// foreground-style logger writing to stdout/stderr, which are
			// /dev/null post-daemonize, so this is intentionally a no-op
			// sink rather than a startup failure.
			l = newForegroundLog(cfg.ParentLogTag, os.Getpid())
		}
		log = l
	} else {
		log = newForegroundLog(cfg.ParentLogTag, os.Getpid())
	}
	childLog := log.retag(cfg.ChildLogTag, os.Getpid())

	if err := writePidFile(cfg.PidFilePath, os.Getpid()); err != nil {
		log.Error("%v", err)
		exitCode(exitFatal)
	}

	var cmdChan *commandChannel
	if cfg.CommandFifoPath != "" {
		c, err := enableCommandChannel(cfg.CommandFifoPath)
		if err != nil {
			log.Error("%v", err)
			exitCode(exitFatal)
		}
		cmdChan = c
		registerExitHook(func() { cmdChan.close() })
	}

	pipe, err := newSelfPipe()
	if err != nil {
		log.Error("self-pipe: %v", err)
		exitCode(exitFatal)
	}
	trampoline := startSignalTrampoline(pipe)
	registerExitHook(func() { trampoline.stop() })

	st := newSupervisorState(cfg)
	st.SelfPipe = pipe
	st.Commands = cmdChan

	startChild(cfg, st, log)

	el := &eventLoop{
		cfg:        cfg,
		state:      st,
		log:        log,
		childLog:   childLog,
		trampoline: trampoline,
		daemon:     cfg.DetachFromTerminal,
	}
	el.run()

	// run() never returns in practice (every path exits via exitClean /
	// exitCode); this is the "impossible condition" exit code from spec.md
	// §6, kept as a backstop rather than an unreachable-panic.
	os.Exit(exitLoopExited)
}

func printVersion() {
	v := version
	if v == "" {
		v = "dev"
	}
	fmt.Printf("tendr %s\n", v)
}

func printUsage(flags *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `tendr: a single-host process supervisor

Usage:
  tendr [flags] -- program [args...]
  tendr -c <start|stop|exit|hup|int> -P <fifo>

Flags:
`)
	flags.PrintDefaults()
}
