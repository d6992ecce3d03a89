package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestLocalizer(t *testing.T, store KVStore, translator MachineTranslator, acceptLanguage string) *Localizer {
	t.Helper()
	l := NewLocalizer(context.Background(), LocalizerOptions{
		VisitorID:      "visitor-1",
		AcceptLanguage: acceptLanguage,
		Store:          store,
		Translator:     NewRetranslator(translator, "en", 4),
		Content:        testContent(t),
	})
	t.Cleanup(l.Close)
	return l
}

func TestLocalizerStartsInSourceLanguage(t *testing.T) {
	store := newMemKV()
	translator := newPrefixTranslator()
	l := newTestLocalizer(t, store, translator, "")

	assert.Equal(t, "en", l.Language())
	assert.False(t, l.Loading())
	assert.True(t, l.AutoDetected())
	assert.Equal(t, "I build things", l.T("hero.description"))
	assert.Zero(t, translator.totalCalls())

	saved, ok := store.value("visitor-1", PreferenceKey)
	require.True(t, ok)
	assert.Equal(t, "en", saved)
}

func TestLocalizerMissingKeyEchoesKey(t *testing.T) {
	l := newTestLocalizer(t, newMemKV(), newPrefixTranslator(), "")
	assert.Equal(t, "hero.subtitle", l.T("hero.subtitle"))
	assert.Equal(t, "", l.T(""))
}

func TestLocalizerDetectsBrowserLanguage(t *testing.T) {
	store := newMemKV()
	l := newTestLocalizer(t, store, newPrefixTranslator(), "es-ES,es;q=0.9,en;q=0.8")
	waitSettled(t, l)

	assert.Equal(t, "es", l.Language())
	assert.True(t, l.AutoDetected())
	assert.Equal(t, "[es] I build things", l.T("hero.description"))

	saved, _ := store.value("visitor-1", PreferenceKey)
	assert.Equal(t, "es", saved)
}

func TestLocalizerWildcardHeaderFallsBackToSource(t *testing.T) {
	store := newMemKV()
	translator := newPrefixTranslator()
	l := newTestLocalizer(t, store, translator, "*")
	waitSettled(t, l)

	assert.Equal(t, "en", l.Language())
	assert.Equal(t, "I build things", l.T("hero.description"))
	assert.Zero(t, translator.totalCalls())

	saved, _ := store.value("visitor-1", PreferenceKey)
	assert.Equal(t, "en", saved)
}

func TestLocalizerStoredPreferenceWins(t *testing.T) {
	store := newMemKV()
	require.NoError(t, store.Set(context.Background(), "visitor-1", PreferenceKey, "fr"))

	l := newTestLocalizer(t, store, newPrefixTranslator(), "es-ES")
	waitSettled(t, l)

	assert.Equal(t, "fr", l.Language())
	assert.False(t, l.AutoDetected())
	assert.Equal(t, "[fr] Score", l.T("game.score"))
}

func TestLocalizerIgnoresCorruptPreference(t *testing.T) {
	store := newMemKV()
	require.NoError(t, store.Set(context.Background(), "visitor-1", PreferenceKey, "!!"))

	l := newTestLocalizer(t, store, newPrefixTranslator(), "")
	assert.Equal(t, "en", l.Language())
	assert.True(t, l.AutoDetected())
}

func TestLocalizerChangeLanguage(t *testing.T) {
	store := newMemKV()
	l := newTestLocalizer(t, store, newPrefixTranslator(), "")

	require.NoError(t, l.ChangeLanguage(context.Background(), "es-MX"))
	waitSettled(t, l)

	assert.Equal(t, "es", l.Language())
	assert.False(t, l.AutoDetected())
	assert.False(t, l.Loading())
	assert.Equal(t, "[es] Hello", l.T("hero.title"))
	assert.Equal(t, []string{"[es] Click the target", "[es] Hello"}, l.Strings("game.instructions"))

	saved, _ := store.value("visitor-1", PreferenceKey)
	assert.Equal(t, "es", saved)

	require.NoError(t, l.ChangeLanguage(context.Background(), "en"))
	assert.False(t, l.Loading())
	assert.Equal(t, "Hello", l.T("hero.title"))
}

func TestLocalizerRejectsInvalidLanguage(t *testing.T) {
	store := newMemKV()
	l := newTestLocalizer(t, store, newPrefixTranslator(), "")
	before := store.setHits

	err := l.ChangeLanguage(context.Background(), "not a language")
	assert.ErrorIs(t, err, ErrInvalidLanguage)
	assert.Equal(t, "en", l.Language())
	assert.Equal(t, before, store.setHits)
}

func TestLocalizerFailedLeafKeepsSourceText(t *testing.T) {
	translator := newPrefixTranslator()
	translator.fail["I build things"] = true
	l := newTestLocalizer(t, newMemKV(), translator, "")

	require.NoError(t, l.ChangeLanguage(context.Background(), "fr"))
	waitSettled(t, l)

	assert.Equal(t, "I build things", l.T("hero.description"))
	assert.Equal(t, "[fr] Hello", l.T("hero.title"))
}

func TestLocalizerTranslatorDownShowsSource(t *testing.T) {
	translator := new(MockTranslator)
	translator.On("Translate", mock.Anything, mock.Anything, "de").Return("", ErrCircuitOpen)
	l := newTestLocalizer(t, newMemKV(), translator, "")

	require.NoError(t, l.ChangeLanguage(context.Background(), "de"))
	waitSettled(t, l)

	assert.Equal(t, "de", l.Language())
	assert.Equal(t, "I build things", l.T("hero.description"))
	assert.Equal(t, testContent(t), l.Snapshot().Content)
}

func TestLocalizerKeepsPreviousTreeWhileLoading(t *testing.T) {
	translator := newPrefixTranslator()
	gate := make(chan struct{})
	translator.block["fr"] = gate
	l := newTestLocalizer(t, newMemKV(), translator, "")

	require.NoError(t, l.ChangeLanguage(context.Background(), "fr"))
	assert.True(t, l.Loading())
	assert.Equal(t, "fr", l.Language())
	assert.Equal(t, "Hello", l.T("hero.title"))

	close(gate)
	waitSettled(t, l)
	assert.Equal(t, "[fr] Hello", l.T("hero.title"))
}

func TestLocalizerDiscardsSupersededBatch(t *testing.T) {
	translator := newPrefixTranslator()
	gate := make(chan struct{})
	translator.block["fr"] = gate
	l := newTestLocalizer(t, newMemKV(), translator, "")

	require.NoError(t, l.ChangeLanguage(context.Background(), "fr"))
	require.NoError(t, l.ChangeLanguage(context.Background(), "es"))
	waitSettled(t, l)

	assert.Equal(t, "es", l.Language())
	assert.Equal(t, "[es] Hello", l.T("hero.title"))

	// Let the stale fr batch finish; its tree must never become visible.
	close(gate)
	assert.Never(t, func() bool {
		return l.T("hero.title") != "[es] Hello"
	}, 200*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, "es", l.Language())
}

func TestLocalizerConcurrentChangesPersistVisibleLanguage(t *testing.T) {
	store := newMemKV()
	l := newTestLocalizer(t, store, newPrefixTranslator(), "")

	codes := []string{"es", "fr", "de", "en"}
	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func(code string) {
			defer wg.Done()
			assert.NoError(t, l.ChangeLanguage(context.Background(), code))
		}(codes[i%len(codes)])
	}
	wg.Wait()
	waitSettled(t, l)

	saved, ok := store.value("visitor-1", PreferenceKey)
	require.True(t, ok)
	assert.Equal(t, l.Language(), saved)
}

func TestLocalizerPersistFailureStillSwitches(t *testing.T) {
	store := newMemKV()
	l := newTestLocalizer(t, store, newPrefixTranslator(), "")
	store.setErr = errors.New("disk full")

	require.NoError(t, l.ChangeLanguage(context.Background(), "es"))
	waitSettled(t, l)
	assert.Equal(t, "es", l.Language())
}

func TestLocalizerSnapshot(t *testing.T) {
	l := newTestLocalizer(t, newMemKV(), newPrefixTranslator(), "")
	snap := l.Snapshot()

	assert.Equal(t, "en", snap.Language)
	assert.False(t, snap.Loading)
	assert.Equal(t, "Thanks!", snap.Content.Resolve("contact.successMessage"))
}

func TestLocalizerCloseSettles(t *testing.T) {
	translator := newPrefixTranslator()
	gate := make(chan struct{})
	defer close(gate)
	translator.block["fr"] = gate
	l := newTestLocalizer(t, newMemKV(), translator, "")

	require.NoError(t, l.ChangeLanguage(context.Background(), "fr"))
	l.Close()

	waitSettled(t, l)
	assert.False(t, l.Loading())
	assert.Equal(t, "Hello", l.T("hero.title"))
}
