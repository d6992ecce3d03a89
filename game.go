package main

import (
	"math/rand/v2"
	"sync"
	"time"
)

type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseRunning Phase = "running"
	PhaseEnded   Phase = "ended"
)

const (
	defaultGameDuration = 30
	defaultTargetSize   = 50
	// maxAreaSide caps client-reported dimensions.
	maxAreaSide = 1 << 14
)

type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Area is the measured play area in pixels.
type Area struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type GameSnapshot struct {
	ID            string    `json:"id"`
	Phase         Phase     `json:"phase"`
	Score         int       `json:"score"`
	RemainingTime int       `json:"remainingTime"`
	Target        *Position `json:"target,omitempty"`
	Area          Area      `json:"area"`
	TargetSize    int       `json:"targetSize"`
}

type GameOptions struct {
	Duration   int // seconds
	TargetSize int
	Clock      Clock
	Rand       *rand.Rand
	// OnEnd runs after the countdown ends, outside the session lock.
	OnEnd func(GameSnapshot)
}

// GameSession is one reflex game: idle -> running -> ended -> running.
// While running it owns a one-second ticker; every phase exit releases it.
type GameSession struct {
	id         string
	duration   int
	targetSize int
	clock      Clock
	onEnd      func(GameSnapshot)

	mu         sync.Mutex
	rng        *rand.Rand
	phase      Phase
	score      int
	remaining  int
	target     Position
	area       Area
	ticker     Ticker
	stop       chan struct{}
	generation uint64
	lastActive time.Time
	subs       map[int]chan GameSnapshot
	nextSub    int
	closed     bool
}

func NewGameSession(id string, area Area, opts GameOptions) *GameSession {
	if opts.Duration <= 0 {
		opts.Duration = defaultGameDuration
	}
	if opts.TargetSize <= 0 {
		opts.TargetSize = defaultTargetSize
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &GameSession{
		id:         id,
		duration:   opts.Duration,
		targetSize: opts.TargetSize,
		clock:      opts.Clock,
		onEnd:      opts.OnEnd,
		rng:        opts.Rand,
		phase:      PhaseIdle,
		remaining:  opts.Duration,
		area:       clampArea(area),
		lastActive: time.Now(),
		subs:       make(map[int]chan GameSnapshot),
	}
}

func (s *GameSession) ID() string { return s.id }

// Start begins a round from idle or ended.
func (s *GameSession) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrGameNotFound
	}
	if s.phase == PhaseRunning {
		return ErrInvalidPhase
	}
	s.placeTargetLocked()
	s.score = 0
	s.remaining = s.duration
	s.phase = PhaseRunning
	s.startTickerLocked()
	s.touchLocked()
	return nil
}

// Reset returns a running or ended session to idle.
func (s *GameSession) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrGameNotFound
	}
	if s.phase == PhaseIdle {
		return ErrInvalidPhase
	}
	s.stopTickerLocked()
	s.phase = PhaseIdle
	s.score = 0
	s.remaining = s.duration
	s.touchLocked()
	return nil
}

// Hit scores one point and moves the target. It reports false, changing
// nothing, unless the session is running.
func (s *GameSession) Hit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase != PhaseRunning {
		return false
	}
	s.score++
	s.placeTargetLocked()
	s.touchLocked()
	gameHitsTotal.Inc()
	return true
}

// Resize records a new play-area measurement and pulls the target back
// inside it.
func (s *GameSession) Resize(area Area) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.area = clampArea(area)
	maxX, maxY := s.boundsLocked()
	s.target.X = min(s.target.X, maxX)
	s.target.Y = min(s.target.Y, maxY)
	s.touchLocked()
}

func (s *GameSession) Snapshot() GameSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe streams a snapshot after every change. A slow reader only sees
// the latest one. The channel is closed on cancel or Close.
func (s *GameSession) Subscribe() (<-chan GameSnapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan GameSnapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// Close releases the ticker and all subscribers.
func (s *GameSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopTickerLocked()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *GameSession) lastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *GameSession) startTickerLocked() {
	s.stopTickerLocked()
	s.generation++
	t := s.clock.NewTicker(time.Second)
	stop := make(chan struct{})
	s.ticker = t
	s.stop = stop
	go s.countdown(s.generation, t, stop)
}

func (s *GameSession) stopTickerLocked() {
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.ticker = nil
		s.stop = nil
	}
	s.generation++
}

func (s *GameSession) countdown(generation uint64, t Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !s.tick(generation) {
				return
			}
		}
	}
}

// tick applies one second of countdown. A tick from a released ticker is
// ignored. Reaching zero ends the round in the same critical section.
func (s *GameSession) tick(generation uint64) bool {
	s.mu.Lock()
	if generation != s.generation || s.phase != PhaseRunning {
		s.mu.Unlock()
		return false
	}
	s.remaining--
	ended := s.remaining <= 0
	if ended {
		s.remaining = 0
		s.phase = PhaseEnded
		s.stopTickerLocked()
	}
	snap := s.snapshotLocked()
	s.notifyLocked(snap)
	s.mu.Unlock()

	if ended {
		gamesFinishedTotal.Inc()
		if s.onEnd != nil {
			s.onEnd(snap)
		}
	}
	return !ended
}

func (s *GameSession) touchLocked() {
	s.lastActive = time.Now()
	s.notifyLocked(s.snapshotLocked())
}

func (s *GameSession) notifyLocked(snap GameSnapshot) {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *GameSession) snapshotLocked() GameSnapshot {
	snap := GameSnapshot{
		ID:            s.id,
		Phase:         s.phase,
		Score:         s.score,
		RemainingTime: s.remaining,
		Area:          s.area,
		TargetSize:    s.targetSize,
	}
	if s.phase == PhaseRunning {
		target := s.target
		snap.Target = &target
	}
	return snap
}

// boundsLocked is the largest valid target coordinate on each axis. An
// area smaller than the target, or not yet measured, collapses to 0.
func (s *GameSession) boundsLocked() (int, int) {
	return max(s.area.Width-s.targetSize, 0), max(s.area.Height-s.targetSize, 0)
}

func (s *GameSession) placeTargetLocked() {
	maxX, maxY := s.boundsLocked()
	s.target = Position{
		X: s.rng.IntN(maxX + 1),
		Y: s.rng.IntN(maxY + 1),
	}
}

func clampArea(a Area) Area {
	return Area{
		Width:  min(max(a.Width, 0), maxAreaSide),
		Height: min(max(a.Height, 0), maxAreaSide),
	}
}
