//go:build darwin || linux

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEffectiveMinDelay(t *testing.T) {
	assert.Equal(t, 1, effectiveMinDelay(0))
	assert.Equal(t, 1, effectiveMinDelay(-5))
	assert.Equal(t, 3, effectiveMinDelay(3))
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	cfg := newDefaultConfig()
	cfg.MinRestartDelayS = 2
	cfg.MaxRestartDelayS = 10
	st := newSupervisorState(cfg)
	require.Equal(t, 2, st.CurrentRestartDelayS)

	st.advanceBackoff(cfg)
	assert.Equal(t, 4, st.CurrentRestartDelayS)

	st.advanceBackoff(cfg)
	assert.Equal(t, 8, st.CurrentRestartDelayS)

	st.advanceBackoff(cfg)
	assert.Equal(t, 10, st.CurrentRestartDelayS, "delay must cap at max")

	st.advanceBackoff(cfg)
	assert.Equal(t, 10, st.CurrentRestartDelayS, "delay must stay capped")
}

func TestResetBackoffReturnsToMinimum(t *testing.T) {
	cfg := newDefaultConfig()
	cfg.MinRestartDelayS = 2
	cfg.MaxRestartDelayS = 60
	st := newSupervisorState(cfg)
	st.advanceBackoff(cfg)
	st.advanceBackoff(cfg)
	require.NotEqual(t, 2, st.CurrentRestartDelayS)

	st.resetBackoff(cfg)
	assert.Equal(t, 2, st.CurrentRestartDelayS)
}

func TestMinZeroClampsToOneAtUse(t *testing.T) {
	cfg := newDefaultConfig()
	cfg.MinRestartDelayS = 0
	cfg.MaxRestartDelayS = 5
	st := newSupervisorState(cfg)
	assert.Equal(t, 1, st.CurrentRestartDelayS)
}

func TestHasChild(t *testing.T) {
	st := &SupervisorState{}
	assert.False(t, st.hasChild())
	st.ChildPID = 1234
	assert.True(t, st.hasChild())
	st.ChildPID = -1
	assert.False(t, st.hasChild(), "a negative pid is still 'no child'")
}
