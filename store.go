package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// KVStore is the durable key-value store behind visitor preferences and
// the visitor counter. Reads and writes are not transactional.
type KVStore interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Set(ctx context.Context, namespace, key, value string) error
	Ping(ctx context.Context) error
}

// SQLStore keeps the KV table, page visits and game scores in sqlite.
type SQLStore struct {
	db  *sql.DB
	now func() time.Time
}

// openSQLite opens the database file and applies the schema.
func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// sqlite serializes writers; one connection also keeps ":memory:"
	// databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (namespace, key)
		)`,
		`CREATE TABLE IF NOT EXISTS visitors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hashed_ip TEXT NOT NULL,
			user_agent TEXT,
			path TEXT,
			visited_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS visitors_visited_at ON visitors (visited_at)`,
		`CREATE TABLE IF NOT EXISTS game_scores (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			score INTEGER NOT NULL,
			played_at INTEGER NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) Get(ctx context.Context, namespace, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, namespace, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv get %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

func (s *SQLStore) Set(ctx context.Context, namespace, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, namespace, key, value, s.now().Unix())
	if err != nil {
		return fmt.Errorf("kv set %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ScoreEntry is one finished game on the leaderboard.
type ScoreEntry struct {
	SessionID string    `json:"sessionId"`
	Score     int       `json:"score"`
	PlayedAt  time.Time `json:"playedAt"`
}

func (s *SQLStore) RecordScore(ctx context.Context, sessionID string, score int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO game_scores (session_id, score, played_at) VALUES (?, ?, ?)`,
		sessionID, score, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record score: %w", err)
	}
	return nil
}

func (s *SQLStore) TopScores(ctx context.Context, limit int) ([]ScoreEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, score, played_at FROM game_scores
		ORDER BY score DESC, played_at ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top scores: %w", err)
	}
	defer rows.Close()

	entries := []ScoreEntry{}
	for rows.Next() {
		var e ScoreEntry
		var playedAt int64
		if err := rows.Scan(&e.SessionID, &e.Score, &playedAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		e.PlayedAt = time.Unix(playedAt, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ScoreSummary feeds the admin dashboard.
type ScoreSummary struct {
	GamesPlayed int64 `json:"games_played"`
	BestScore   int64 `json:"best_score"`
}

func (s *SQLStore) ScoreSummary(ctx context.Context) (ScoreSummary, error) {
	var sum ScoreSummary
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(score), 0) FROM game_scores`,
	).Scan(&sum.GamesPlayed, &sum.BestScore)
	if err != nil {
		return ScoreSummary{}, fmt.Errorf("score summary: %w", err)
	}
	return sum, nil
}
