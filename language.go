package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

const (
	// PreferenceKey holds a visitor's language code in the KV store.
	PreferenceKey = "portfolio-language"
	// DefaultLanguage is used when nothing usable can be detected.
	DefaultLanguage = "en"
)

// LanguageOption is an entry of the language switcher.
type LanguageOption struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Flag string `json:"flag"`
}

var SupportedLanguages = []LanguageOption{
	{Code: "en", Name: "English", Flag: "🇺🇸"},
	{Code: "es", Name: "Español", Flag: "🇪🇸"},
	{Code: "fr", Name: "Français", Flag: "🇫🇷"},
}

// normalizeLanguage reduces a BCP 47 tag ("en-US", "ES") to its base code.
func normalizeLanguage(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLanguage)
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidLanguage, code, err)
	}
	base, ok := usableBase(tag)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguage, code)
	}
	return base, nil
}

// Special-purpose ISO 639 codes that name no actual language.
var nonLanguageBases = map[string]bool{
	"und": true, // undetermined
	"mul": true, // multiple, also what "*" parses to
	"mis": true, // uncoded
	"zxx": true, // no linguistic content
}

func usableBase(tag language.Tag) (string, bool) {
	if tag == language.Und {
		return "", false
	}
	base, confidence := tag.Base()
	if confidence == language.No || nonLanguageBases[base.String()] {
		return "", false
	}
	return base.String(), true
}

// detectLanguage picks the highest-weighted usable base language from an
// Accept-Language header, or DefaultLanguage.
func detectLanguage(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil {
		return DefaultLanguage
	}
	for _, tag := range tags {
		if base, ok := usableBase(tag); ok {
			return base
		}
	}
	return DefaultLanguage
}

// initialLanguage returns the stored preference for a visitor. Without one,
// it detects a language from acceptLanguage and persists it. The boolean
// reports whether the language was detected rather than recalled.
func initialLanguage(ctx context.Context, store KVStore, visitorID, acceptLanguage string) (string, bool) {
	saved, err := store.Get(ctx, visitorID, PreferenceKey)
	if err == nil {
		if lang, nerr := normalizeLanguage(saved); nerr == nil {
			return lang, false
		}
	} else if !errors.Is(err, ErrNotFound) {
		logger().Warn("failed to read language preference",
			zap.String("visitor", visitorID),
			zap.Error(err),
		)
	}

	lang := detectLanguage(acceptLanguage)
	if err := store.Set(ctx, visitorID, PreferenceKey, lang); err != nil {
		logger().Warn("failed to persist detected language",
			zap.String("visitor", visitorID),
			zap.String("language", lang),
			zap.Error(err),
		)
	}
	return lang, true
}
