//go:build darwin || linux

package main

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"
)

// SupervisorConfig is not changed after it is parsed from the command line,
// except that graceful shutdown (handleGracefulExit) sets both restart-delay
// bounds to 5s.
type SupervisorConfig struct {
	ProgramPath string
	ProgramArgv []string

	DetachFromTerminal bool

	EnvSet   []string // ordered "KEY=VALUE" entries
	EnvUnset []string // ordered bare "KEY" entries
	ClearEnv bool

	WorkDir       string
	StartupScript string

	RunAsUID     int
	RunAsGID     int
	HaveRunAsUID bool
	HaveRunAsGID bool

	PidFilePath     string
	CommandFifoPath string

	MinRestartDelayS int
	MaxRestartDelayS int

	CloseInheritedFDs bool

	ParentLogTag string
	ChildLogTag  string

	// Email is accepted for CLI compatibility but never acted on.
	Email string
}

const (
	defaultMinRestartDelayS = 2
	defaultMaxRestartDelayS = 300
)

// newDefaultConfig returns a config with the documented defaults applied.
func newDefaultConfig() *SupervisorConfig {
	return &SupervisorConfig{
		MinRestartDelayS: defaultMinRestartDelayS,
		MaxRestartDelayS: defaultMaxRestartDelayS,
		ParentLogTag:     "tendr",
		ChildLogTag:      "tendr-child",
	}
}

// validate clamps and cross-checks fields, returning a human-readable error
// for anything that can't be sanitized automatically. The clamp of max up
// to min is not logged, neither here nor by the caller (main).
func (c *SupervisorConfig) validate() error {
	if c.ProgramPath == "" {
		return fmt.Errorf("no program given to supervise")
	}
	if c.MinRestartDelayS < 0 {
		return fmt.Errorf("min wait time cannot be negative")
	}
	if c.MaxRestartDelayS < c.MinRestartDelayS {
		// spec: max < min at startup => max <- min, informational only.
		c.MaxRestartDelayS = c.MinRestartDelayS
	}
	return nil
}

// applyEnvFlag classifies a -E/--env value as a set ("KEY=VALUE") or an
// unset (bare "KEY"), appending it to the right ordered list. Repeatable,
// order-preserving; duplicates are resolved last-wins only when applied.
func (c *SupervisorConfig) applyEnvFlag(v string) {
	if k, val, ok := strings.Cut(v, "="); ok {
		c.EnvSet = append(c.EnvSet, k+"="+val)
	} else {
		c.EnvUnset = append(c.EnvUnset, v)
	}
}

// parseUserGroup parses a "-u" value of the form "user[:group]", where each
// half may be a name or a decimal id. Only fields that were actually
// supplied are marked as recognized/applied.
func (c *SupervisorConfig) parseUserGroup(spec string) error {
	userPart, groupPart, hasGroup := strings.Cut(spec, ":")

	if userPart != "" {
		uid, err := resolveUID(userPart)
		if err != nil {
			return fmt.Errorf("unknown user %q: %w", userPart, err)
		}
		c.RunAsUID = uid
		c.HaveRunAsUID = true
	}
	if hasGroup && groupPart != "" {
		gid, err := resolveGID(groupPart)
		if err != nil {
			return fmt.Errorf("unknown group %q: %w", groupPart, err)
		}
		c.RunAsGID = gid
		c.HaveRunAsGID = true
	}
	return nil
}

func resolveUID(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	u, err := user.Lookup(s)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(u.Uid)
}

func resolveGID(s string) (int, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	g, err := user.LookupGroup(s)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(g.Gid)
}
