package main

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTranslator struct {
	mock.Mock
}

func (m *MockTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	args := m.Called(ctx, text, targetLang)
	return args.String(0), args.Error(1)
}

func TestRetranslateSourceLanguageIsIdentity(t *testing.T) {
	translator := new(MockTranslator)
	r := NewRetranslator(translator, "en", 4)
	tree := testContent(t)

	out := r.Retranslate(context.Background(), tree, "en")

	assert.Equal(t, tree, out)
	translator.AssertNotCalled(t, "Translate", mock.Anything, mock.Anything, mock.Anything)
}

func TestRetranslateKeepsShape(t *testing.T) {
	translator := newPrefixTranslator()
	r := NewRetranslator(translator, "en", 4)
	tree := testContent(t)

	out := r.Retranslate(context.Background(), tree, "es")

	require.Equal(t, tree.Paths(), out.Paths())
	for _, path := range tree.Paths() {
		source := tree.Resolve(path)
		if path == "hero.blank" {
			continue
		}
		assert.Equal(t, "[es] "+source, out.Resolve(path), path)
	}
}

func TestRetranslateFallsBackPerLeaf(t *testing.T) {
	translator := newPrefixTranslator()
	translator.fail["I build things"] = true
	r := NewRetranslator(translator, "en", 2)
	tree := testContent(t)

	out := r.Retranslate(context.Background(), tree, "fr")

	assert.Equal(t, "I build things", out.Resolve("hero.description"))
	assert.Equal(t, "[fr] Score", out.Resolve("game.score"))
	assert.Equal(t, "[fr] Oops", out.Resolve("contact.errorMessage"))
}

func TestRetranslateSkipsBlankLeaves(t *testing.T) {
	translator := newPrefixTranslator()
	r := NewRetranslator(translator, "en", 2)

	out := r.Retranslate(context.Background(), testContent(t), "es")

	node, ok := out.Lookup("hero.blank")
	require.True(t, ok)
	assert.Equal(t, Leaf(""), node)
	assert.Zero(t, translator.callsFor(""))
}

func TestRetranslateDeduplicatesRequests(t *testing.T) {
	translator := newPrefixTranslator()
	r := NewRetranslator(translator, "en", 8)
	tree := testContent(t)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Retranslate(context.Background(), tree, "es")
		}()
	}
	wg.Wait()

	// "Hello" appears twice in the tree.
	assert.Equal(t, 1, translator.callsFor("Hello"))
	assert.Equal(t, 1, translator.callsFor("Score"))
	assert.Equal(t, 6, r.CachedCount())

	r.Retranslate(context.Background(), tree, "fr")
	assert.Equal(t, 2, translator.callsFor("Hello"))
}

func TestRetranslateDoesNotMemoizeFailures(t *testing.T) {
	translator := newPrefixTranslator()
	translator.fail["Score"] = true
	r := NewRetranslator(translator, "en", 2)
	tree := testContent(t)

	r.Retranslate(context.Background(), tree, "es")
	r.Retranslate(context.Background(), tree, "es")

	assert.Equal(t, 2, translator.callsFor("Score"))
	assert.Equal(t, 1, translator.callsFor("I build things"))
}

func TestRetranslateCanceledContextFallsBack(t *testing.T) {
	translator := newPrefixTranslator()
	r := NewRetranslator(translator, "en", 2)
	tree := testContent(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := r.Retranslate(ctx, tree, "es")

	assert.Equal(t, tree, out)
	assert.Zero(t, translator.totalCalls())
}
