// Package llm implements the chat-completion providers that back answer
// generation. Both providers expose the same capability set: one blocking
// completion call and one incremental streaming call.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"docqa/internal/config"
)

// defaultTimeout bounds a single provider call, streaming included.
const defaultTimeout = 120 * time.Second

// StreamFunc receives one generated text chunk. Chunks arrive in emission
// order; concatenating them reconstructs the full answer. Returning an
// error stops the stream.
type StreamFunc func(chunk string) error

// Provider is the closed capability set implemented by every backend.
type Provider interface {
	// Name identifies the provider in errors and logs.
	Name() string

	// Complete makes one blocking call and returns the full answer text.
	Complete(ctx context.Context, prompt string) (string, error)

	// Stream requests incremental delivery and invokes fn once per chunk.
	// The stream is finite and not restartable; calling Stream again issues
	// a new backend request.
	Stream(ctx context.Context, prompt string, fn StreamFunc) error
}

// Sentinel causes carried inside a GenerationError.
var (
	// ErrUnknownProvider means configuration names a provider this package
	// does not implement. Raised at dispatch time, before any network call.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMalformedResponse means the backend replied but an expected field
	// (choices, message content) was missing.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// GenerationError is the single failure class callers see when no answer
// was produced. The original cause stays reachable through Unwrap and is
// logged with full context where the failure happened.
type GenerationError struct {
	Provider string
	Op       string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s %s: generation failed: %v", e.Provider, e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// generationErr logs the failure and wraps it into a GenerationError.
func generationErr(provider, op string, err error) error {
	slog.Error("generation failed", "provider", provider, "op", op, "error", err)
	return &GenerationError{Provider: provider, Op: op, Err: err}
}

// New creates the provider named by the configuration. Selection depends on
// configuration only, never on request content.
func New(cfg *config.Config) (Provider, error) {
	switch cfg.Provider {
	case config.ProviderPortkey:
		return NewPortkey(cfg), nil
	case config.ProviderOllama:
		return NewOllama(cfg), nil
	default:
		err := fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
		slog.Error("provider dispatch failed", "provider", cfg.Provider)
		return nil, &GenerationError{Provider: cfg.Provider, Op: "dispatch", Err: err}
	}
}
