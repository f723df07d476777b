// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package policy

// Signals aggregates everything the earlier pipeline stages learned about
// one command. The engine never re-derives a signal; it only combines them.
type Signals struct {
	// BlocklistHit is true if the static blocklist matched the canonical
	// text, any variant, or the post-resolution text.
	BlocklistHit   bool
	BlocklistLabel string

	// AstParseFailed marks that AstAnalyzer could not parse the command at
	// all ({_parse_failed: true} per spec). Distinct from AstFlagged.
	AstParseFailed bool

	// AstFlagged is true if variable-in-command-position or a $(...) in
	// command-word position was detected.
	AstFlagged       bool
	AstFlaggedReason string

	// ParseUnreliable mirrors CanonicalText.annotations containing
	// PARSE_UNRELIABLE.
	ParseUnreliable bool

	// ResolutionHasBlocked / Unresolvable / Warned summarize the
	// ResolutionLog produced by SubstitutionResolver.
	ResolutionHasBlocked     bool
	ResolutionHasUnresolvable bool
	ResolutionHasWarned      bool

	// LLM is the classifier's verdict, or nil if every provider failed to
	// produce a well-formed response.
	LLM *Decision

	// FailOpen selects Rule 8's behavior when LLM is nil: Block (default,
	// fail-mode "safe") or Warn (fail-mode "open").
	FailOpen bool
}

// Evaluate runs the nine hard rules in precedence order and returns the
// final Decision. No rule here may be skipped by an earlier rule returning
// early except where the table itself says so — rules 1-3 are genuinely
// terminal; 4-9 fall through to the next check when they do not apply.
func Evaluate(s Signals) Decision {
	// Rule 1: static blocklist matched (canonical, variant, or
	// post-resolution text).
	if s.BlocklistHit {
		return NewDecision(Block, s.BlocklistLabel, 1.0, SourceBlocklist)
	}

	// Rule 2: any resolved substitution was itself Blocked.
	if s.ResolutionHasBlocked {
		return NewDecision(Block, "a command substitution resolved to a blocked inner command", 1.0, SourcePolicy)
	}

	// Rule 3: any resolved substitution was Unresolvable (budget exceeded).
	if s.ResolutionHasUnresolvable {
		return NewDecision(Block, "a command substitution could not be safely resolved within budget", 1.0, SourcePolicy)
	}

	llmAction, llmConfidence, llmReason, llmWellFormed := extractLLM(s.LLM)

	// Rule 4: AST flagged variable-in-command-position or $(...)-in-exec-
	// position. If the LLM said Allow, escalate to Warn; otherwise defer
	// to the LLM's (already more restrictive) verdict.
	if s.AstFlagged {
		if !llmWellFormed {
			return blockOnFailure(s, SourceAst, s.AstFlaggedReason)
		}
		if llmAction == Allow {
			return NewDecision(Warn, s.AstFlaggedReason, llmConfidence, SourceAst)
		}
		return NewDecision(llmAction, llmReason, llmConfidence, SourceLLMOnly)
	}

	// AstParseFailed: no predicate may produce a non-block conclusion on a
	// marker-bearing command. Treated like ParseUnreliable below but always
	// escalates regardless of what the LLM said.
	if s.AstParseFailed {
		if !llmWellFormed || llmAction != Allow {
			return blockOnFailure(s, SourceAst, "shell parser failed to analyze this command")
		}
		return NewDecision(Warn, "shell parser failed to analyze this command", llmConfidence, SourceAst)
	}

	// Rule 5: PARSE_UNRELIABLE set and LLM said Allow -> Warn.
	if s.ParseUnreliable {
		if !llmWellFormed {
			return blockOnFailure(s, SourcePolicy, "canonicalization was unreliable for this command")
		}
		if llmAction == Allow {
			return NewDecision(Warn, "canonicalization was unreliable for this command", llmConfidence, SourcePolicy)
		}
	}

	// Rule 6: a resolved substitution was Warned and LLM said Allow -> Warn.
	if s.ResolutionHasWarned && llmWellFormed && llmAction == Allow {
		return NewDecision(Warn, "a command substitution resolved to a warned inner command", llmConfidence, SourcePolicy)
	}

	// Rule 8: all LLM providers failed (no well-formed response).
	if !llmWellFormed {
		return blockOnFailure(s, SourcePolicy, "no classifier produced a usable response")
	}

	// Rule 9: action parsed to a value outside {allow, warn, block}. By
	// construction llmWellFormed already guarantees this can't happen for
	// Decisions built via NewDecision/well-formed LLM parsing, but a
	// defensive check keeps the invariant visible at the aggregation point.
	switch llmAction {
	case Allow, Warn, Block:
	default:
		return NewDecision(Block, "classifier returned an unrecognized action", 1.0, SourcePolicy)
	}

	// Rule 7: LLM's action stands, no hard rule overrode it.
	return NewDecision(llmAction, llmReason, llmConfidence, SourceLLMOnly)
}

func extractLLM(d *Decision) (action Action, confidence float64, reason string, wellFormed bool) {
	if d == nil {
		return Block, 0, "", false
	}
	switch d.Action {
	case Allow, Warn, Block:
	default:
		return Block, 0, "", false
	}
	return d.Action, d.Confidence, d.Reason, true
}

// blockOnFailure applies Rule 8's fail-mode semantics whenever a higher
// rule needs to fall back because the LLM produced nothing usable.
func blockOnFailure(s Signals, source Source, reason string) Decision {
	if s.FailOpen {
		return NewDecision(Warn, reason, 0, source)
	}
	return NewDecision(Block, reason, 1.0, source)
}
