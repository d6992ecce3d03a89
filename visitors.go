package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// VisitorCountKey holds the cosmetic page-view counter.
	VisitorCountKey  = "portfolio-visitor-count"
	siteNamespace    = "site"
	baseVisitorCount = 1247
	visitRetention   = 365 * 24 * time.Hour
)

// VisitorStats is what the live-stats widget shows. Only PageViews is
// stored; the rest is derived for display.
type VisitorStats struct {
	PageViews      int    `json:"pageViews"`
	UniqueVisitors int    `json:"uniqueVisitors"`
	GrowthRate     string `json:"growthRate"`
	Countries      string `json:"countries"`
}

// VisitorCounter is a monotonically increasing display counter. It is
// read-modify-write on the KV store; the mutex only orders bumps within
// this process.
type VisitorCounter struct {
	store KVStore

	mu  sync.Mutex
	rng *mrand.Rand
}

func NewVisitorCounter(store KVStore) *VisitorCounter {
	return &VisitorCounter{
		store: store,
		rng:   mrand.New(mrand.NewPCG(mrand.Uint64(), mrand.Uint64())),
	}
}

func (c *VisitorCounter) Current(ctx context.Context) (int, error) {
	raw, err := c.store.Get(ctx, siteNamespace, VisitorCountKey)
	if errors.Is(err, ErrNotFound) {
		return baseVisitorCount, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return baseVisitorCount, nil
	}
	return n, nil
}

// Bump adds 1 or 2 to the counter and returns the new value.
func (c *VisitorCounter) Bump(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, err := c.Current(ctx)
	if err != nil {
		return 0, err
	}
	n += c.rng.IntN(2) + 1
	if err := c.store.Set(ctx, siteNamespace, VisitorCountKey, strconv.Itoa(n)); err != nil {
		return 0, err
	}
	return n, nil
}

func (c *VisitorCounter) Stats(ctx context.Context) (VisitorStats, error) {
	n, err := c.Current(ctx)
	if err != nil {
		return VisitorStats{}, err
	}
	return VisitorStats{
		PageViews:      n,
		UniqueVisitors: n * 7 / 10,
		GrowthRate:     "+12.5%",
		Countries:      "45+",
	}, nil
}

// VisitMetric is one recorded page view, with the IP hashed.
type VisitMetric struct {
	ID        int       `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// VisitorTracker records page views with salted IP hashes and bumps the
// display counter.
type VisitorTracker struct {
	store   *SQLStore
	counter *VisitorCounter
	salt    string
}

func NewVisitorTracker(store *SQLStore, counter *VisitorCounter) *VisitorTracker {
	return &VisitorTracker{store: store, counter: counter, salt: randomToken()}
}

func randomToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand: %v", err))
	}
	return hex.EncodeToString(b)
}

// hashIP is stable per IP for the life of the process.
func (t *VisitorTracker) hashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip + t.salt))
	return hex.EncodeToString(sum[:])[:16]
}

var untrackedPrefixes = []string{
	"/static/", "/images/", "/admin", "/api/", "/favicon", "/metrics", "/healthz",
}

// Middleware records page views in the background. Static, API and admin
// paths are skipped, and so is any request carrying DNT: 1.
func (t *VisitorTracker) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, prefix := range untrackedPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}
		if c.GetHeader("DNT") == "1" {
			c.Next()
			return
		}

		go t.track(c.ClientIP(), c.GetHeader("User-Agent"), path)
		c.Next()
	}
}

func (t *VisitorTracker) track(ip, userAgent, path string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := t.store.RecordVisit(ctx, t.hashIP(ip), userAgent, path); err != nil {
		logger().Warn("error recording visitor", zap.Error(err))
	}
	if _, err := t.counter.Bump(ctx); err != nil {
		logger().Warn("error bumping visitor counter", zap.Error(err))
	}
}

func (s *SQLStore) RecordVisit(ctx context.Context, hashedIP, userAgent, path string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visitors (hashed_ip, user_agent, path, visited_at) VALUES (?, ?, ?, ?)`,
		hashedIP, userAgent, path, s.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

// CleanupVisits deletes page views older than the retention window.
func (s *SQLStore) CleanupVisits(ctx context.Context, retention time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM visitors WHERE visited_at < ?`, s.now().Add(-retention).Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup visits: %w", err)
	}
	return result.RowsAffected()
}

// VisitSummary feeds the admin dashboard.
type VisitSummary struct {
	TotalVisitors    int64         `json:"total_visitors"`
	UniqueVisitors   int64         `json:"unique_visitors"`
	VisitorsToday    int64         `json:"visitors_today"`
	VisitorsThisWeek int64         `json:"visitors_this_week"`
	RecentVisitors   []VisitMetric `json:"recent_visitors"`
}

func (s *SQLStore) VisitSummary(ctx context.Context, recent int) (*VisitSummary, error) {
	now := s.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	sum := &VisitSummary{RecentVisitors: []VisitMetric{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(DISTINCT hashed_ip),
			COALESCE(SUM(CASE WHEN visited_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN visited_at >= ? THEN 1 ELSE 0 END), 0)
		FROM visitors
	`, startOfDay.Unix(), weekAgo.Unix()).Scan(
		&sum.TotalVisitors, &sum.UniqueVisitors, &sum.VisitorsToday, &sum.VisitorsThisWeek,
	)
	if err != nil {
		return nil, fmt.Errorf("visit summary: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_ip, COALESCE(user_agent, ''), COALESCE(path, ''), visited_at
		FROM visitors
		ORDER BY visited_at DESC, id DESC
		LIMIT ?
	`, recent)
	if err != nil {
		return nil, fmt.Errorf("recent visits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var v VisitMetric
		var visitedAt int64
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &visitedAt); err != nil {
			continue
		}
		v.Timestamp = time.Unix(visitedAt, 0).UTC()
		sum.RecentVisitors = append(sum.RecentVisitors, v)
	}
	return sum, rows.Err()
}
