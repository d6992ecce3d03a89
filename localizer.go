package main

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// treeTranslator is the part of Retranslator a Localizer needs.
type treeTranslator interface {
	Retranslate(ctx context.Context, tree Branch, lang string) Branch
	SourceLanguage() string
}

type LocalizerOptions struct {
	VisitorID      string
	AcceptLanguage string
	Store          KVStore
	Translator     treeTranslator
	Content        Branch
}

// Localizer holds one visitor's language and the content tree currently
// visible to them. Lookups never block on translation: until a
// retranslation settles, they see the previous tree.
type Localizer struct {
	visitorID  string
	store      KVStore
	translator treeTranslator
	canonical  Branch

	// changeMu orders preference writes with the changes that apply them.
	changeMu sync.Mutex

	mu           sync.RWMutex
	language     string
	autoDetected bool
	tree         Branch
	loading      bool
	generation   uint64
	cancel       context.CancelFunc
	settled      chan struct{} // closed when loading clears
	closed       bool
}

// LocalizerSnapshot is the externally visible state of a Localizer.
type LocalizerSnapshot struct {
	Language     string `json:"language"`
	Loading      bool   `json:"loading"`
	AutoDetected bool   `json:"autoDetected"`
	Content      Branch `json:"content"`
}

// NewLocalizer resolves the visitor's initial language and starts
// translating the content into it.
func NewLocalizer(ctx context.Context, opts LocalizerOptions) *Localizer {
	l := &Localizer{
		visitorID:  opts.VisitorID,
		store:      opts.Store,
		translator: opts.Translator,
		canonical:  opts.Content,
		tree:       opts.Content,
		settled:    closedChan(),
	}

	lang, detected := initialLanguage(ctx, opts.Store, opts.VisitorID, opts.AcceptLanguage)

	l.mu.Lock()
	l.language = lang
	l.autoDetected = detected
	l.startLocked(lang)
	l.mu.Unlock()
	return l
}

// ChangeLanguage persists code as the visitor's preference and starts a
// full retranslation. Any batch still running for an earlier change is
// cancelled and its result discarded.
func (l *Localizer) ChangeLanguage(ctx context.Context, code string) error {
	lang, err := normalizeLanguage(code)
	if err != nil {
		return err
	}

	l.changeMu.Lock()
	defer l.changeMu.Unlock()

	if err := l.store.Set(ctx, l.visitorID, PreferenceKey, lang); err != nil {
		logger().Warn("failed to persist language preference",
			zap.String("visitor", l.visitorID),
			zap.String("language", lang),
			zap.Error(err),
		)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || lang == l.language {
		return nil
	}
	l.language = lang
	l.autoDetected = false
	l.startLocked(lang)
	return nil
}

func (l *Localizer) startLocked(lang string) {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.generation++

	if lang == l.translator.SourceLanguage() {
		l.tree = l.canonical
		l.settleLocked()
		return
	}

	if !l.loading {
		l.loading = true
		l.settled = make(chan struct{})
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	go l.run(ctx, l.generation, lang)
}

func (l *Localizer) run(ctx context.Context, generation uint64, lang string) {
	tree := l.translator.Retranslate(ctx, l.canonical, lang)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || generation != l.generation {
		translationBatchesTotal.WithLabelValues("superseded").Inc()
		logger().Debug("discarding superseded translation",
			zap.String("visitor", l.visitorID),
			zap.String("language", lang),
		)
		return
	}
	l.tree = tree
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.settleLocked()
	translationBatchesTotal.WithLabelValues("applied").Inc()
}

func (l *Localizer) settleLocked() {
	if l.loading {
		l.loading = false
		close(l.settled)
	}
}

// T resolves a dotted key in the visible tree, echoing the key when it is
// missing.
func (l *Localizer) T(path string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Resolve(path)
}

func (l *Localizer) Strings(path string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.Strings(path)
}

func (l *Localizer) Language() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.language
}

func (l *Localizer) Loading() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loading
}

func (l *Localizer) AutoDetected() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.autoDetected
}

func (l *Localizer) Snapshot() LocalizerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return LocalizerSnapshot{
		Language:     l.language,
		Loading:      l.loading,
		AutoDetected: l.autoDetected,
		Content:      l.tree,
	}
}

// WaitSettled blocks until no retranslation is pending or ctx is done.
func (l *Localizer) WaitSettled(ctx context.Context) error {
	l.mu.RLock()
	settled := l.settled
	l.mu.RUnlock()

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any running batch. The visible tree stays readable.
func (l *Localizer) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.settleLocked()
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
