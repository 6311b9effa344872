//go:build darwin || linux

package main

import (
	"os"
	"strings"
)

// resolveChildEnv builds the final, ordered environment slice for the
// child process: start from the parent's environment (or empty, if
// clear_env was requested), then remove every env_unset key from that base
// and append the env_set entries, each list in command-line order; unsets
// never remove an env_set entry. No
// deduplication is performed beyond what this ordering naturally produces;
// "KEY=V1" followed later by "KEY=V2" keeps both entries, and whichever the
// OS sees last when it builds its own environment table wins (last-wins is
// delegated to the OS, never computed here).
func resolveChildEnv(cfg *SupervisorConfig) []string {
	var base []string
	if !cfg.ClearEnv {
		base = os.Environ()
	}

	if len(cfg.EnvUnset) > 0 {
		base = removeKeys(base, cfg.EnvUnset)
	}

	env := make([]string, 0, len(base)+len(cfg.EnvSet))
	env = append(env, base...)
	env = append(env, cfg.EnvSet...)
	return env
}

// removeKeys drops every entry of env whose KEY matches one of keys.
func removeKeys(env []string, keys []string) []string {
	if len(keys) == 0 {
		return env
	}
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	out := env[:0:0]
	for _, e := range env {
		k, _, _ := strings.Cut(e, "=")
		if drop[k] {
			continue
		}
		out = append(out, e)
	}
	return out
}
