//go:build darwin || linux

package main

import (
	"fmt"
	"log"
	"log/syslog"
	"os"
)

// logDest is the destination-agnostic logger tendr's components write to.
// In daemon mode it wraps a syslog writer; in foreground mode it wraps
// stdout (info) and stderr (warn/error), each tag-prefixed the way the
// teacher's single redirected *log.Logger does for its own messages.
type logDest struct {
	tag    string
	daemon bool

	sw *syslog.Writer // daemon mode only

	infoLog *log.Logger // foreground mode only
	errLog  *log.Logger // foreground mode only
}

// newForegroundLog builds a logDest that writes info to stdout and
// warn/error to stderr, each line prefixed "tag[pid]: ".
func newForegroundLog(tag string, pid int) *logDest {
	prefix := fmt.Sprintf("%s[%d]: ", tag, pid)
	return &logDest{
		tag:     tag,
		infoLog: log.New(os.Stdout, prefix, log.LstdFlags),
		errLog:  log.New(os.Stderr, prefix, log.LstdFlags),
	}
}

// newSyslogLog builds a logDest that writes to the system log facility for
// daemons, tagged "tag[pid]".
func newSyslogLog(tag string, pid int) (*logDest, error) {
	w, err := syslog.New(syslog.LOG_DAEMON, fmt.Sprintf("%s[%d]", tag, pid))
	if err != nil {
		return nil, err
	}
	return &logDest{tag: tag, daemon: true, sw: w}, nil
}

func (l *logDest) Info(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.daemon {
		l.sw.Info(msg)
		return
	}
	l.infoLog.Print(msg)
}

func (l *logDest) Warn(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.daemon {
		l.sw.Warning(msg)
		return
	}
	l.errLog.Print("warning: " + msg)
}

func (l *logDest) Error(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.daemon {
		l.sw.Err(msg)
		return
	}
	l.errLog.Print("error: " + msg)
}

// retag returns a copy of l that prefixes messages under a different tag
// and pid — used for child-originated log lines (child_log_tag[child_pid])
// while the supervisor's own messages keep parent_log_tag[pid].
func (l *logDest) retag(tag string, pid int) *logDest {
	if l.daemon {
		sw, err := syslog.New(syslog.LOG_DAEMON, fmt.Sprintf("%s[%d]", tag, pid))
		if err != nil {
			// Fall back to the existing writer rather than fail the child
			// output path over a logging setup error.
			return l
		}
		return &logDest{tag: tag, daemon: true, sw: sw}
	}
	prefix := fmt.Sprintf("%s[%d]: ", tag, pid)
	return &logDest{
		tag:     tag,
		infoLog: log.New(os.Stdout, prefix, log.LstdFlags),
		errLog:  log.New(os.Stderr, prefix, log.LstdFlags),
	}
}
