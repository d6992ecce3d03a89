package main

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type localizerEntry struct {
	localizer *Localizer
	lastSeen  time.Time
}

// LocalizerRegistry keeps one Localizer per visitor and evicts idle ones.
type LocalizerRegistry struct {
	store      KVStore
	translator treeTranslator
	content    Branch
	idleTTL    time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*localizerEntry
}

func NewLocalizerRegistry(store KVStore, translator treeTranslator, content Branch, idleTTL time.Duration) *LocalizerRegistry {
	return &LocalizerRegistry{
		store:      store,
		translator: translator,
		content:    content,
		idleTTL:    idleTTL,
		now:        time.Now,
		entries:    make(map[string]*localizerEntry),
	}
}

// Get returns the visitor's Localizer, creating it on first use.
func (r *LocalizerRegistry) Get(ctx context.Context, visitorID, acceptLanguage string) *Localizer {
	r.mu.Lock()
	if e, ok := r.entries[visitorID]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e.localizer
	}
	r.mu.Unlock()

	l := NewLocalizer(ctx, LocalizerOptions{
		VisitorID:      visitorID,
		AcceptLanguage: acceptLanguage,
		Store:          r.store,
		Translator:     r.translator,
		Content:        r.content,
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[visitorID]; ok {
		// Lost a race with a concurrent first request.
		l.Close()
		e.lastSeen = r.now()
		return e.localizer
	}
	r.entries[visitorID] = &localizerEntry{localizer: l, lastSeen: r.now()}
	return l
}

func (r *LocalizerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep closes and drops localizers idle for longer than the TTL.
func (r *LocalizerRegistry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var stale []*Localizer
	for id, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e.localizer)
			delete(r.entries, id)
		}
	}
	r.mu.Unlock()

	for _, l := range stale {
		l.Close()
	}
	return len(stale)
}

// Run sweeps periodically until ctx is done, then closes everything.
func (r *LocalizerRegistry) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger().Debug("evicted idle localizers", zap.Int("count", n))
			}
		}
	}
}

func (r *LocalizerRegistry) closeAll() {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*localizerEntry)
	r.mu.Unlock()

	for _, e := range entries {
		e.localizer.Close()
	}
}
