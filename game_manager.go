package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ScoreRecorder persists finished rounds.
type ScoreRecorder interface {
	RecordScore(ctx context.Context, sessionID string, score int) error
	TopScores(ctx context.Context, limit int) ([]ScoreEntry, error)
}

// GameManager owns every live GameSession.
type GameManager struct {
	cfg    GameConfig
	clock  Clock
	scores ScoreRecorder

	mu       sync.RWMutex
	sessions map[string]*GameSession
}

func NewGameManager(cfg GameConfig, clock Clock, scores ScoreRecorder) *GameManager {
	if clock == nil {
		clock = realClock{}
	}
	return &GameManager{
		cfg:      cfg,
		clock:    clock,
		scores:   scores,
		sessions: make(map[string]*GameSession),
	}
}

// Create registers a new idle session for a play area.
func (m *GameManager) Create(area Area) *GameSession {
	id := uuid.New().String()
	s := NewGameSession(id, area, GameOptions{
		Duration:   m.cfg.Duration,
		TargetSize: m.cfg.TargetSize,
		Clock:      m.clock,
		OnEnd:      m.recordFinal,
	})

	m.mu.Lock()
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	gameSessionsActive.Set(float64(n))
	return s
}

func (m *GameManager) Get(id string) (*GameSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return s, nil
}

// Remove tears a session down.
func (m *GameManager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return ErrGameNotFound
	}
	s.Close()
	gameSessionsActive.Set(float64(n))
	return nil
}

func (m *GameManager) Leaderboard(ctx context.Context, limit int) ([]ScoreEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	if m.scores == nil {
		return []ScoreEntry{}, nil
	}
	return m.scores.TopScores(ctx, limit)
}

func (m *GameManager) recordFinal(snap GameSnapshot) {
	if m.scores == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.scores.RecordScore(ctx, snap.ID, snap.Score); err != nil {
		logger().Error("failed to record game score",
			zap.String("session", snap.ID),
			zap.Int("score", snap.Score),
			zap.Error(err),
		)
	}
}

// Sweep closes sessions untouched for longer than the configured TTL.
func (m *GameManager) Sweep(now time.Time) int {
	cutoff := now.Add(-m.cfg.SessionTTL)

	m.mu.Lock()
	var stale []*GameSession
	for id, s := range m.sessions {
		if s.lastActivity().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	gameSessionsActive.Set(float64(n))
	return len(stale)
}

// Run sweeps periodically until ctx is done, then closes every session.
func (m *GameManager) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.Close()
			return
		case now := <-ticker.C:
			if n := m.Sweep(now); n > 0 {
				logger().Debug("evicted idle game sessions", zap.Int("count", n))
			}
		}
	}
}

func (m *GameManager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*GameSession)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	gameSessionsActive.Set(0)
}
