// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llmclient defines the abstract LLM-backed classifier boundary
// and a fallback chain over concrete providers. No provider commits the
// core pipeline to a transport: callers depend only on the Provider
// interface and Prompt/Decision types in this package.
package llmclient

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/aegish/internal/policy"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 30 * time.Second

// DefaultQueriesPerMinute is the token-bucket rate limiter's default.
const DefaultQueriesPerMinute = 30

// ErrAllProvidersFailed is the failure sentinel consumed by the policy
// engine's Hard Rule 8 when no provider yields a well-formed decision.
var ErrAllProvidersFailed = errors.New("llmclient: all providers failed to yield a well-formed decision")

// Prompt is the structured classification request built by the
// validator from a command's canonical text, resolution log, and
// analysis flags.
type Prompt struct {
	Command            string
	ResolvedContent    []string
	UnresolvedContent  []string
	HereStringContent  []string
	ParseUnreliable    bool
}

// Provider performs one classification call against a concrete LLM
// backend. The openrouter implementation retries transient errors
// internally; the ollama implementation makes a single request per call
// with no retry. Validate is expected to respect ctx's deadline.
type Provider interface {
	Name() string
	Validate(ctx context.Context, prompt Prompt) (policy.Decision, error)
}

// FallbackChain tries providers in order and returns the first
// well-formed decision. A provider's error (including a malformed
// response) is not propagated — the chain tries the next provider
// silently and only surfaces ErrAllProvidersFailed if every provider
// fails.
type FallbackChain struct {
	providers []Provider
	limiter   *rate.Limiter
	timeout   time.Duration
}

// NewFallbackChain builds a chain over the given providers in priority
// order, throttled by a token-bucket limiter at queriesPerMinute.
func NewFallbackChain(providers []Provider, queriesPerMinute int, timeout time.Duration) *FallbackChain {
	if queriesPerMinute <= 0 {
		queriesPerMinute = DefaultQueriesPerMinute
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ratePerSecond := rate.Limit(float64(queriesPerMinute) / 60.0)
	return &FallbackChain{
		providers: providers,
		limiter:   rate.NewLimiter(ratePerSecond, queriesPerMinute),
		timeout:   timeout,
	}
}

// Validate waits for a rate-limiter token, then tries each provider in
// order under its own bounded timeout, returning the first well-formed
// decision. If none succeeds, it returns ErrAllProvidersFailed.
func (f *FallbackChain) Validate(ctx context.Context, prompt Prompt) (policy.Decision, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return policy.Decision{}, err
	}

	for _, p := range f.providers {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		decision, err := p.Validate(callCtx, prompt)
		cancel()
		if err == nil {
			return decision, nil
		}
	}

	return policy.Decision{}, ErrAllProvidersFailed
}
