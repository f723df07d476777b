// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llmclient

import (
	"encoding/json"
	"errors"
	"math"
	"strings"

	"github.com/jeranaias/aegish/internal/policy"
)

// ErrMalformedResponse is returned when a provider's raw text never
// yields a well-formed decision per spec.md's four-part definition.
var ErrMalformedResponse = errors.New("llmclient: response is not well-formed")

type rawVerdict struct {
	Action     string  `json:"action"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// ParseVerdict extracts a well-formed Decision from a provider's raw
// text response. It tolerates markdown code fences and leading/trailing
// prose by locating the first balanced {...} span before attempting to
// unmarshal. A response is well-formed iff: it parses as a JSON object
// (not array/scalar); action case-folds to allow/warn/block; confidence
// parses to a finite float (clipped to [0,1]); and reason is non-empty
// after trimming and ANSI-stripping.
func ParseVerdict(raw string) (policy.Decision, error) {
	// An object that is only an element of a top-level array is not a
	// JSON object response.
	if start := strings.IndexByte(raw, '{'); start > 0 && strings.HasSuffix(strings.TrimSpace(raw[:start]), "[") {
		return policy.Decision{}, ErrMalformedResponse
	}

	jsonText, ok := extractBalancedObject(raw)
	if !ok {
		return policy.Decision{}, ErrMalformedResponse
	}

	var v rawVerdict
	if err := json.Unmarshal([]byte(jsonText), &v); err != nil {
		return policy.Decision{}, ErrMalformedResponse
	}

	action, ok := parseAction(v.Action)
	if !ok {
		return policy.Decision{}, ErrMalformedResponse
	}

	if math.IsNaN(v.Confidence) || math.IsInf(v.Confidence, 0) {
		return policy.Decision{}, ErrMalformedResponse
	}

	reason := policy.SanitizeReason(v.Reason)
	if strings.TrimSpace(reason) == "" {
		return policy.Decision{}, ErrMalformedResponse
	}

	return policy.NewDecision(action, reason, v.Confidence, policy.SourceLLMOnly), nil
}

func parseAction(s string) (policy.Action, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "allow":
		return policy.Allow, true
	case "warn":
		return policy.Warn, true
	case "block":
		return policy.Block, true
	default:
		return "", false
	}
}

// extractBalancedObject locates the first JSON object in s by finding
// the first '{' and scanning for its matching '}', respecting string
// literals so braces inside a quoted reason string don't confuse the
// depth counter. This is what lets the caller ignore markdown fences
// and any prose the model wraps the JSON in.
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't affect depth
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}

	return "", false
}
