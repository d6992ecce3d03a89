package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// memKV is an in-memory KVStore.
type memKV struct {
	mu      sync.Mutex
	data    map[string]string
	getErr  error
	setErr  error
	setHits int
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]string)}
}

func (m *memKV) Get(_ context.Context, namespace, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[namespace+"/"+key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *memKV) Set(_ context.Context, namespace, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setHits++
	if m.setErr != nil {
		return m.setErr
	}
	m.data[namespace+"/"+key] = value
	return nil
}

func (m *memKV) Ping(context.Context) error { return nil }

func (m *memKV) value(namespace, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[namespace+"/"+key]
	return v, ok
}

// prefixTranslator tags every text with the target language. Texts listed
// in fail are rejected; calls counts requests per text.
type prefixTranslator struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls map[string]int
	// block, when set, holds every call for the given language until
	// the channel is closed.
	block map[string]chan struct{}
}

var errTranslatorDown = errors.New("translator down")

func newPrefixTranslator() *prefixTranslator {
	return &prefixTranslator{
		fail:  make(map[string]bool),
		calls: make(map[string]int),
		block: make(map[string]chan struct{}),
	}
}

func (p *prefixTranslator) Translate(_ context.Context, text, lang string) (string, error) {
	p.mu.Lock()
	p.calls[text]++
	fail := p.fail[text]
	gate := p.block[lang]
	p.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return "", errTranslatorDown
	}
	return "[" + lang + "] " + text, nil
}

func (p *prefixTranslator) callsFor(text string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[text]
}

func (p *prefixTranslator) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

// manualClock hands out tickers that only fire when told to.
type manualClock struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (c *manualClock) NewTicker(time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time), stopped: make(chan struct{})}
	c.mu.Lock()
	c.tickers = append(c.tickers, t)
	c.mu.Unlock()
	return t
}

func (c *manualClock) latest(t *testing.T) *manualTicker {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.tickers, "no ticker created")
	return c.tickers[len(c.tickers)-1]
}

func (c *manualClock) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tickers)
}

type manualTicker struct {
	ch       chan time.Time
	stopOnce sync.Once
	stopped  chan struct{}
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.stopOnce.Do(func() { close(t.stopped) })
}

// Fire delivers one tick. It reports false once the ticker was stopped.
func (t *manualTicker) Fire() bool {
	select {
	case t.ch <- time.Now():
		return true
	case <-t.stopped:
		return false
	}
}

func (t *manualTicker) isStopped() bool {
	select {
	case <-t.stopped:
		return true
	default:
		return false
	}
}

func newTestSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := openSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLStore(db)
}

const testContentTOML = `
[hero]
title = "Hello"
description = "I build things"
blank = ""

[game]
score = "Score"
instructions = ["Click the target", "Hello"]

[contact]
successMessage = "Thanks!"
errorMessage = "Oops"
`

func testContent(t *testing.T) Branch {
	t.Helper()
	tree, err := ParseContent([]byte(testContentTOML))
	require.NoError(t, err)
	return tree
}

func waitSettled(t *testing.T, l *Localizer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.WaitSettled(ctx))
}
