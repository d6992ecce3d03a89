package main

import "errors"

var (
	ErrNotFound             = errors.New("key not found")
	ErrInvalidContent       = errors.New("invalid content tree")
	ErrInvalidLanguage      = errors.New("invalid language code")
	ErrTranslationStatus    = errors.New("translation endpoint returned non-2xx status")
	ErrMalformedTranslation = errors.New("malformed translation response")
	ErrCircuitOpen          = errors.New("translation circuit breaker is open")
	ErrInvalidPhase         = errors.New("operation not valid in current game phase")
	ErrGameNotFound         = errors.New("game session not found")
	ErrSMTPNotConfigured    = errors.New("SMTP credentials not configured")
)
