package main

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Retranslator produces a translated copy of a content tree. Leaves are
// translated concurrently; a failed leaf keeps its source text.
type Retranslator struct {
	translator  MachineTranslator
	sourceLang  string
	concurrency int

	inflight singleflight.Group

	mu   sync.RWMutex
	memo map[string]string // lang + "\x00" + source text
}

func NewRetranslator(translator MachineTranslator, sourceLang string, concurrency int) *Retranslator {
	if concurrency < 1 {
		concurrency = 1
	}
	if sourceLang == "" {
		sourceLang = DefaultLanguage
	}
	return &Retranslator{
		translator:  translator,
		sourceLang:  sourceLang,
		concurrency: concurrency,
		memo:        make(map[string]string),
	}
}

func (r *Retranslator) SourceLanguage() string {
	return r.sourceLang
}

// Retranslate returns tree itself for the source language. Otherwise it
// returns a new tree with the same shape, assembled only after every leaf
// has settled.
func (r *Retranslator) Retranslate(ctx context.Context, tree Branch, lang string) Branch {
	if lang == r.sourceLang {
		return tree
	}

	texts := tree.Texts()
	results := make([]string, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			results[i] = r.translateLeaf(gctx, text, lang)
			return nil
		})
	}
	_ = g.Wait()

	next := 0
	return tree.rebuild(func() string {
		s := results[next]
		next++
		return s
	})
}

func (r *Retranslator) translateLeaf(ctx context.Context, text, lang string) string {
	if strings.TrimSpace(text) == "" {
		translationLeavesTotal.WithLabelValues("skipped").Inc()
		return text
	}

	key := lang + "\x00" + text
	r.mu.RLock()
	cached, ok := r.memo[key]
	r.mu.RUnlock()
	if ok {
		translationLeavesTotal.WithLabelValues("cached").Inc()
		return cached
	}

	// A superseded batch stops issuing new requests.
	if ctx.Err() != nil {
		translationLeavesTotal.WithLabelValues("fallback").Inc()
		return text
	}

	// Detached from ctx: other batches may be waiting on the same leaf.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.inflight.Do(key, func() (interface{}, error) {
		r.mu.RLock()
		cached, ok := r.memo[key]
		r.mu.RUnlock()
		if ok {
			return cached, nil
		}
		translated, err := r.translator.Translate(shared, text, lang)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.memo[key] = translated
		r.mu.Unlock()
		return translated, nil
	})
	if err != nil {
		translationLeavesTotal.WithLabelValues("fallback").Inc()
		logger().Debug("leaf translation failed, keeping source text",
			zap.String("language", lang),
			zap.Int("length", len(text)),
			zap.Error(err),
		)
		return text
	}
	translationLeavesTotal.WithLabelValues("translated").Inc()
	return v.(string)
}

// CachedCount reports how many leaf translations are memoized.
func (r *Retranslator) CachedCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.memo)
}
