// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package validator orchestrates the full nine-step pipeline over one
// command: canonicalize, blocklist, AST predicates (which recurse over
// compound decomposition), substitution resolution (which recurses
// into this same Validate), a blocklist re-check, the LLM classifier,
// and finally policy aggregation. No teacher analog exists for this
// orchestration shape; it mirrors the layering the rest of this module
// already committed to package-by-package.
package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/aegish/internal/astanalyze"
	"github.com/jeranaias/aegish/internal/blocklist"
	"github.com/jeranaias/aegish/internal/canon"
	"github.com/jeranaias/aegish/internal/executor"
	"github.com/jeranaias/aegish/internal/llmclient"
	"github.com/jeranaias/aegish/internal/policy"
	"github.com/jeranaias/aegish/internal/resolve"
)

// Validator wires every pipeline stage and can be shared across an
// entire process lifetime; it carries no per-command state of its own.
type Validator struct {
	Blocklist *blocklist.List
	LLM       *llmclient.FallbackChain
	Executor  *executor.Executor
	FailOpen  bool
}

// New builds a Validator over the given blocklist, LLM fallback chain,
// and executor. failOpen selects Hard Rule 8's behavior when every LLM
// provider fails: false blocks (fail-mode "safe", the default), true
// warns (fail-mode "open").
func New(bl *blocklist.List, chain *llmclient.FallbackChain, exec *executor.Executor, failOpen bool) *Validator {
	return &Validator{Blocklist: bl, LLM: chain, Executor: exec, FailOpen: failOpen}
}

// Validate runs the full pipeline over command as it would be typed at
// cwd with env, returning the final Decision. cwd/env are only consumed
// by nested substitution execution (§4.4) — the caller's SessionState
// owns them across calls, not the Validator.
func (v *Validator) Validate(ctx context.Context, command string, cwd string, env map[string]string) (policy.Decision, error) {
	// Step 1: reject oversized input at the entry point, before any
	// other stage sees it.
	if len(command) > canon.MaxCommandLength {
		return policy.NewDecision(policy.Block, "command exceeds the maximum allowed length", 1.0, policy.SourcePolicy), nil
	}

	// Step 2: canonicalize.
	result := canon.Canonicalize(command)
	if result.Has(canon.Oversized) {
		return policy.NewDecision(policy.Block, "command exceeds the maximum allowed length", 1.0, policy.SourcePolicy), nil
	}

	// Step 3: static blocklist on primary + variants.
	if decision, hit := v.Blocklist.Check(result.Text, result.Variants); hit {
		return decision, nil
	}

	// Step 4: AST predicates. Compound decomposition recurses into this
	// same Validate for every segment, combined most-restrictive-wins;
	// a single-segment Analysis (the common case of a non-compound
	// command) is never re-validated against itself.
	analysis := astanalyze.Analyze(result.Text)

	var segmentDecision *policy.Decision
	if len(analysis.Segments) > 1 {
		for _, seg := range analysis.Segments {
			d, err := v.Validate(ctx, seg, cwd, env)
			if err != nil {
				return policy.Decision{}, fmt.Errorf("validator: segment validation failed: %w", err)
			}
			if segmentDecision == nil {
				segmentDecision = &d
			} else {
				combined := policy.MostRestrictive(*segmentDecision, d)
				segmentDecision = &combined
			}
		}
	}

	// Step 5: substitution resolution, recursing into this same
	// Validate/Executor for every $(...) occurrence.
	innerValidate := resolve.InnerValidator(func(ctx context.Context, cmd string) (policy.Decision, error) {
		return v.Validate(ctx, cmd, cwd, env)
	})
	innerExecute := resolve.InnerExecutor(func(ctx context.Context, cmd string, timeout time.Duration) ([]byte, error) {
		res, err := v.Executor.Run(ctx, cmd, cwd, env, 0)
		if err != nil {
			return nil, err
		}
		if res.TimedOut {
			return nil, errors.New("inner command substitution timed out")
		}
		return []byte(res.Stdout), nil
	})
	resolver := resolve.New(innerValidate, innerExecute)
	resolvedText, resolutionLog := resolver.Resolve(ctx, result.Text)

	// Step 6: blocklist re-check on the post-resolution text.
	if decision, hit := v.Blocklist.Check(resolvedText, nil); hit {
		return decision, nil
	}

	// Step 7: LLM call with the fully structured prompt.
	prompt := buildPrompt(result, resolutionLog)
	var llmDecision *policy.Decision
	if v.LLM != nil {
		if d, err := v.LLM.Validate(ctx, prompt); err == nil {
			llmDecision = &d
		}
	}

	// Step 8: policy engine aggregation.
	signals := policy.Signals{
		BlocklistHit:              false,
		AstParseFailed:            analysis.ParseFailed,
		AstFlagged:                analysis.VariableInCommandPosition || analysis.CommandSubstitutionInExecPosition || len(analysis.FlagNormalizedFindings) > 0,
		AstFlaggedReason:          astFlaggedReason(analysis),
		ParseUnreliable:           result.Has(canon.ParseUnreliable),
		ResolutionHasBlocked:      resolutionLog.HasBlocked(),
		ResolutionHasUnresolvable: resolutionLog.HasUnresolvable(),
		ResolutionHasWarned:       resolutionLog.HasWarned(),
		LLM:                       llmDecision,
		FailOpen:                  v.FailOpen,
	}
	decision := policy.Evaluate(signals)

	// Step 9: fold in the compound-decomposition verdict, if any segment
	// was itself more restrictive than the whole-command verdict.
	if segmentDecision != nil {
		decision = policy.MostRestrictive(decision, *segmentDecision)
	}
	return decision, nil
}

func astFlaggedReason(a astanalyze.Analysis) string {
	if a.VariableInCommandPosition {
		return a.VariableReason
	}
	if a.CommandSubstitutionInExecPosition {
		return a.ExecPositionReason
	}
	if len(a.FlagNormalizedFindings) > 0 {
		return strings.Join(a.FlagNormalizedFindings, "; ")
	}
	return ""
}

// buildPrompt assembles the LLM classification request from the
// canonicalizer's output and the substitution resolver's log.
func buildPrompt(result *canon.Result, log resolve.Log) llmclient.Prompt {
	var resolvedContent, unresolvedContent []string
	for _, e := range log {
		if e.Status == resolve.Resolved {
			resolvedContent = append(resolvedContent, e.Content)
		} else {
			unresolvedContent = append(unresolvedContent, e.Pattern)
		}
	}
	return llmclient.Prompt{
		Command:           result.Text,
		ResolvedContent:   resolvedContent,
		UnresolvedContent: unresolvedContent,
		HereStringContent: result.HereStrings,
		ParseUnreliable:   result.Has(canon.ParseUnreliable),
	}
}
