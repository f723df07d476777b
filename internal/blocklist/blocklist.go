// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package blocklist implements the static regex blocklist: a compiled set
// of patterns, each with a human-readable reason, checked against a
// command's canonical text and every expansion variant. A match is a
// terminal Block — this is the cheapest, highest-confidence layer in the
// pipeline and runs before and after substitution resolution.
package blocklist

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/aegish/internal/policy"
)

// Rule is one compiled pattern plus its label.
type Rule struct {
	Label   string
	Pattern *regexp.Regexp
}

// List is an ordered set of rules, checked in order; the first match wins.
type List struct {
	rules []Rule
}

// New builds a List seeded with the built-in default rules.
func New() *List {
	return &List{rules: append([]Rule(nil), defaultRules...)}
}

// overlayFile is the on-disk shape for operator-supplied extensions,
// mirroring the pack's policy.Rule match/reason shape (adapted: a flat
// regex list, not the full structural/dataflow rule language — blocklist
// is deliberately the cheap regex layer, not a rule engine).
type overlayFile struct {
	Rules []struct {
		Label   string `yaml:"label"`
		Pattern string `yaml:"pattern"`
	} `yaml:"rules"`
}

// LoadOverlay parses additional patterns from YAML bytes and appends them
// after the built-in defaults, so operators can extend the list without
// recompiling.
func (l *List) LoadOverlay(data []byte) error {
	var f overlayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("blocklist overlay: %w", err)
	}
	for _, r := range f.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return fmt.Errorf("blocklist overlay: invalid pattern %q: %w", r.Pattern, err)
		}
		l.rules = append(l.rules, Rule{Label: r.Label, Pattern: re})
	}
	return nil
}

// Check matches primary and every variant against every rule. Per the
// matching contract, the primary is checked first (it is never itself a
// variant), then each variant in order; the first match anywhere is
// terminal.
func (l *List) Check(primary string, variants []string) (policy.Decision, bool) {
	texts := make([]string, 0, 1+len(variants))
	texts = append(texts, primary)
	texts = append(texts, variants...)

	// The empty-input rule (spec.md §8 boundary behavior): a command that
	// is only whitespace never reaches the LLM.
	if len(primary) == 0 {
		return policy.NewDecision(policy.Block, "empty command", 1.0, policy.SourceBlocklist), true
	}

	for _, text := range texts {
		for _, rule := range l.rules {
			if rule.Pattern.MatchString(text) {
				return policy.NewDecision(policy.Block, rule.Label, 1.0, policy.SourceBlocklist), true
			}
		}
	}
	return policy.Decision{}, false
}
