package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MachineTranslator translates one piece of text into targetLang.
type MachineTranslator interface {
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// GoogleTranslator calls the unauthenticated translate_a/single endpoint.
type GoogleTranslator struct {
	endpoint   string
	sourceLang string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *Breaker
}

func NewGoogleTranslator(cfg TranslationConfig) *GoogleTranslator {
	return &GoogleTranslator{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		sourceLang: "auto",
		timeout:    cfg.RequestTimeout,
		httpClient: &http.Client{},
		breaker: NewBreaker(BreakerSettings{
			Name:             "google-translate",
			FailureThreshold: uint32(cfg.BreakerFailures),
			OpenTimeout:      cfg.BreakerOpenDelay,
		}),
	}
}

func (g *GoogleTranslator) Translate(ctx context.Context, text, targetLang string) (string, error) {
	return g.breaker.Execute(ctx, func(ctx context.Context) (string, error) {
		return g.fetch(ctx, text, targetLang)
	})
}

func (g *GoogleTranslator) fetch(ctx context.Context, text, targetLang string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", g.sourceLang)
	q.Set("tl", targetLang)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"/translate_a/single?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build translation request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("%w: %d", ErrTranslationStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read translation response: %w", err)
	}
	return parseGoogleResponse(body)
}

// parseGoogleResponse extracts data[0][0][0], the first translated segment.
func parseGoogleResponse(body []byte) (string, error) {
	var data []any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedTranslation, err)
	}
	segments, ok := firstElement(data).([]any)
	if !ok {
		return "", fmt.Errorf("%w: missing segment list", ErrMalformedTranslation)
	}
	segment, ok := firstElement(segments).([]any)
	if !ok {
		return "", fmt.Errorf("%w: missing first segment", ErrMalformedTranslation)
	}
	translated, ok := firstElement(segment).(string)
	if !ok || translated == "" {
		return "", fmt.Errorf("%w: empty translation", ErrMalformedTranslation)
	}
	return translated, nil
}

func firstElement(v []any) any {
	if len(v) == 0 {
		return nil
	}
	return v[0]
}
