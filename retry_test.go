package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// fakeQueuePage serves a scripted sequence of states and counts the loop's
// side effects. Once the script is exhausted every further check sees a clean
// page.
type fakeQueuePage struct {
	states    []PageState
	next      int
	solves    int
	refreshes int
	solved    bool
}

func (f *fakeQueuePage) CurrentState() PageState {
	if f.next >= len(f.states) {
		return StateOK
	}
	s := f.states[f.next]
	f.next++
	return s
}

func (f *fakeQueuePage) Refresh() error { f.refreshes++; return nil }

func (f *fakeQueuePage) Sleep(base, jitter float64) {}

func (f *fakeQueuePage) SolveChallenge() bool { f.solves++; return f.solved }

func TestDrainQueueSolvesFirewallOnce(t *testing.T) {
	p := &fakeQueuePage{
		states: []PageState{StateQueue, StateQueue, StateFirewall, StateOK},
		solved: true,
	}

	state := drainQueue(p, zap.NewNop(), 100)

	assert.Equal(t, StateOK, state)
	assert.Equal(t, 1, p.solves)
	assert.Equal(t, 1, p.refreshes)
}

func TestDrainQueueCeilingDoesExactlyOneFallbackRefresh(t *testing.T) {
	states := make([]PageState, 150)
	for i := range states {
		states[i] = StateQueue
	}
	p := &fakeQueuePage{states: states}

	state := drainQueue(p, zap.NewNop(), 100)

	assert.Equal(t, StateQueue, state)
	assert.Equal(t, 100, p.next, "checks stop at the ceiling")
	assert.Equal(t, 1, p.refreshes)
	assert.Zero(t, p.solves)
}

func TestDrainQueueReturnsNonBlockedStatesImmediately(t *testing.T) {
	for _, s := range []PageState{StateOK, StateLoginRequired, StateError} {
		p := &fakeQueuePage{states: []PageState{s}}

		assert.Equal(t, s, drainQueue(p, zap.NewNop(), 100))
		assert.Zero(t, p.refreshes)
		assert.Zero(t, p.solves)
	}
}

func TestDrainQueueFailedSolveStillRefreshes(t *testing.T) {
	p := &fakeQueuePage{
		states: []PageState{StateFirewall, StateOK},
		solved: false,
	}

	state := drainQueue(p, zap.NewNop(), 100)

	assert.Equal(t, StateOK, state)
	assert.Equal(t, 1, p.solves)
	assert.Equal(t, 1, p.refreshes)
}
