package main

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGame(t *testing.T, area Area, onEnd func(GameSnapshot)) (*GameSession, *manualClock) {
	t.Helper()
	clock := &manualClock{}
	s := NewGameSession("game-1", area, GameOptions{
		Duration:   30,
		TargetSize: 50,
		Clock:      clock,
		Rand:       rand.New(rand.NewPCG(1, 2)),
		OnEnd:      onEnd,
	})
	t.Cleanup(s.Close)
	return s, clock
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestGameStartsIdle(t *testing.T) {
	s, clock := newTestGame(t, Area{Width: 400, Height: 300}, nil)

	snap := s.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, 30, snap.RemainingTime)
	assert.Nil(t, snap.Target)
	assert.Zero(t, clock.count())
}

func TestGameCountdownEndsAtZero(t *testing.T) {
	ended := make(chan GameSnapshot, 1)
	s, clock := newTestGame(t, Area{Width: 400, Height: 300}, func(snap GameSnapshot) { ended <- snap })

	require.NoError(t, s.Start())
	require.True(t, s.Hit())
	require.True(t, s.Hit())

	ticker := clock.latest(t)
	last := 30
	for i := range 30 {
		require.True(t, ticker.Fire(), "tick %d", i+1)
		want := 29 - i
		eventually(t, func() bool { return s.Snapshot().RemainingTime == want })
		remaining := s.Snapshot().RemainingTime
		assert.LessOrEqual(t, remaining, last)
		last = remaining
	}

	snap := s.Snapshot()
	assert.Equal(t, PhaseEnded, snap.Phase)
	assert.Equal(t, 0, snap.RemainingTime)
	assert.Equal(t, 2, snap.Score)
	assert.Nil(t, snap.Target)

	select {
	case final := <-ended:
		assert.Equal(t, 2, final.Score)
		assert.Equal(t, PhaseEnded, final.Phase)
	case <-time.After(2 * time.Second):
		t.Fatal("OnEnd not called")
	}

	eventually(t, ticker.isStopped)
	assert.False(t, ticker.Fire(), "ticker must be released after the round ends")
	assert.False(t, s.Hit())
	assert.Equal(t, 2, s.Snapshot().Score)
}

func TestGameNeverGoesBelowZero(t *testing.T) {
	s, _ := newTestGame(t, Area{Width: 400, Height: 300}, nil)
	require.NoError(t, s.Start())

	s.mu.Lock()
	gen := s.generation
	s.remaining = 1
	s.mu.Unlock()

	assert.False(t, s.tick(gen))
	assert.False(t, s.tick(gen))

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.RemainingTime)
	assert.Equal(t, PhaseEnded, snap.Phase)
}

func TestGameStaleTickIgnored(t *testing.T) {
	s, clock := newTestGame(t, Area{Width: 400, Height: 300}, nil)
	require.NoError(t, s.Start())

	s.mu.Lock()
	gen := s.generation
	s.mu.Unlock()
	old := clock.latest(t)

	require.NoError(t, s.Reset())
	assert.True(t, old.isStopped())

	require.NoError(t, s.Start())
	assert.False(t, s.tick(gen), "tick from the released ticker")
	assert.Equal(t, 30, s.Snapshot().RemainingTime)
	assert.False(t, old.Fire())
	assert.Equal(t, 2, clock.count())
}

func TestGameHitOnlyWhileRunning(t *testing.T) {
	s, _ := newTestGame(t, Area{Width: 400, Height: 300}, nil)

	assert.False(t, s.Hit())
	assert.Equal(t, 0, s.Snapshot().Score)

	require.NoError(t, s.Start())
	before := *s.Snapshot().Target
	moved := false
	for range 10 {
		require.True(t, s.Hit())
		if *s.Snapshot().Target != before {
			moved = true
		}
	}
	assert.Equal(t, 10, s.Snapshot().Score)
	assert.True(t, moved, "target should move after hits")
}

func TestGameTargetStaysInBounds(t *testing.T) {
	s, _ := newTestGame(t, Area{Width: 300, Height: 200}, nil)
	require.NoError(t, s.Start())

	for range 500 {
		s.Hit()
		target := s.Snapshot().Target
		require.NotNil(t, target)
		assert.GreaterOrEqual(t, target.X, 0)
		assert.LessOrEqual(t, target.X, 250)
		assert.GreaterOrEqual(t, target.Y, 0)
		assert.LessOrEqual(t, target.Y, 150)
	}
}

func TestGameTinyAreaPinsTargetToOrigin(t *testing.T) {
	s, _ := newTestGame(t, Area{Width: 30, Height: -5}, nil)
	require.NoError(t, s.Start())

	for range 20 {
		s.Hit()
		assert.Equal(t, Position{}, *s.Snapshot().Target)
	}
}

func TestGameOversizedAreaIsCapped(t *testing.T) {
	s := NewGameSession("game-1", Area{Width: math.MaxInt, Height: 10}, GameOptions{
		TargetSize: 0,
		Clock:      &manualClock{},
		Rand:       rand.New(rand.NewPCG(1, 2)),
	})
	t.Cleanup(s.Close)

	require.NoError(t, s.Start())
	snap := s.Snapshot()
	assert.Equal(t, PhaseRunning, snap.Phase)
	assert.Equal(t, defaultTargetSize, snap.TargetSize)
	assert.Equal(t, Area{Width: maxAreaSide, Height: 10}, snap.Area)
	require.NotNil(t, snap.Target)
	assert.LessOrEqual(t, snap.Target.X, maxAreaSide-defaultTargetSize)

	s.Resize(Area{Width: math.MaxInt, Height: math.MaxInt})
	assert.Equal(t, Area{Width: maxAreaSide, Height: maxAreaSide}, s.Snapshot().Area)
	assert.True(t, s.Hit())
}

func TestGameResizeClampsTarget(t *testing.T) {
	s, _ := newTestGame(t, Area{Width: 1000, Height: 1000}, nil)
	require.NoError(t, s.Start())

	s.mu.Lock()
	s.target = Position{X: 900, Y: 900}
	s.mu.Unlock()

	s.Resize(Area{Width: 200, Height: 100})
	snap := s.Snapshot()
	assert.Equal(t, Area{Width: 200, Height: 100}, snap.Area)
	assert.Equal(t, Position{X: 150, Y: 50}, *snap.Target)
}

func TestGamePhaseTransitions(t *testing.T) {
	s, clock := newTestGame(t, Area{Width: 400, Height: 300}, nil)

	assert.ErrorIs(t, s.Reset(), ErrInvalidPhase)

	require.NoError(t, s.Start())
	assert.ErrorIs(t, s.Start(), ErrInvalidPhase)
	s.Hit()

	require.NoError(t, s.Reset())
	snap := s.Snapshot()
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, 30, snap.RemainingTime)
	assert.True(t, clock.latest(t).isStopped())

	// Play again from ended.
	require.NoError(t, s.Start())
	s.mu.Lock()
	gen := s.generation
	s.remaining = 1
	s.mu.Unlock()
	s.Hit()
	s.tick(gen)
	require.Equal(t, PhaseEnded, s.Snapshot().Phase)

	require.NoError(t, s.Start())
	snap = s.Snapshot()
	assert.Equal(t, PhaseRunning, snap.Phase)
	assert.Equal(t, 0, snap.Score)
	assert.Equal(t, 30, snap.RemainingTime)

	require.NoError(t, s.Reset())
	require.NoError(t, s.Start())
	s.mu.Lock()
	gen = s.generation
	s.remaining = 1
	s.mu.Unlock()
	s.tick(gen)
	require.NoError(t, s.Reset(), "reset is allowed from ended")
}

func TestGameClosedSession(t *testing.T) {
	s, _ := newTestGame(t, Area{Width: 400, Height: 300}, nil)
	require.NoError(t, s.Start())
	s.Close()

	assert.ErrorIs(t, s.Start(), ErrGameNotFound)
	assert.ErrorIs(t, s.Reset(), ErrGameNotFound)
	assert.False(t, s.Hit())
}

func TestGameSubscribe(t *testing.T) {
	s, _ := newTestGame(t, Area{Width: 400, Height: 300}, nil)

	updates, cancel := s.Subscribe()
	first := <-updates
	assert.Equal(t, PhaseIdle, first.Phase)

	require.NoError(t, s.Start())
	s.Hit()

	// Only the latest snapshot is kept for a slow reader.
	latest := <-updates
	assert.Equal(t, PhaseRunning, latest.Phase)
	assert.Equal(t, 1, latest.Score)

	cancel()
	_, ok := <-updates
	assert.False(t, ok)
}

func TestGameSubscribeClosedOnClose(t *testing.T) {
	s, _ := newTestGame(t, Area{Width: 400, Height: 300}, nil)
	updates, cancel := s.Subscribe()
	defer cancel()
	<-updates

	s.Close()
	_, ok := <-updates
	assert.False(t, ok)
}
