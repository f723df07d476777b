// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package astanalyze parses a canonicalized command with a real bash
// grammar and runs structural predicates regex alone cannot express:
// variable-in-command-position, compound-command decomposition, and
// command-substitution-in-execution-position. Grounded on the
// mvdan.cc/sh/v3 walk-and-classify shape shown in the retrieved
// AI-Agentic-Shield structural analyzer; the teacher has no AST parser of
// its own.
package astanalyze

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Analysis is everything AstAnalyzer learned about one command.
type Analysis struct {
	// ParseFailed is the {_parse_failed: true} marker from spec.md §4.3:
	// when set, none of the three predicates below may be trusted, and the
	// policy engine must never let the command through as Allow.
	ParseFailed bool

	// VariableInCommandPosition is true when the command word of some
	// simple command is a bare parameter expansion, e.g. `$a$b` in
	// `a=ba; b=sh; $a$b`.
	VariableInCommandPosition bool
	VariableReason            string

	// CommandSubstitutionInExecPosition is true when a $(...) appears as
	// the command word itself, e.g. `$(fetch_payload)`.
	CommandSubstitutionInExecPosition bool
	ExecPositionReason                string

	// Segments is the compound-command decomposition: every sub-command
	// text split on unquoted ; && || |, in order. The validator recurses
	// into each of these independently (AstAnalyzer itself does not call
	// back into the validator, which would be a layering cycle).
	Segments []string

	// FlagNormalizedFindings holds the supplemental structural checks
	// (sudo-stripped, long-flag-aware rm -rf / chmod detection) restored
	// from the Agentic-Shield reference file. These supplement, never
	// substitute for, the three required predicates above.
	FlagNormalizedFindings []string
}

// Analyze parses text with the bash grammar and runs every predicate. A
// parse error is never swallowed: it is recorded as ParseFailed and
// analysis continues with whatever partial segmentation a best-effort
// split can recover, per spec.md's "not a silently swallowed exception"
// requirement.
func Analyze(text string) Analysis {
	var a Analysis

	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(text), "")
	if err != nil {
		a.ParseFailed = true
		a.Segments = splitCompoundFallback(text)
		return a
	}

	for _, stmt := range file.Stmts {
		walkStmt(&a, stmt)
	}

	a.Segments = segmentsFromFile(file)
	a.FlagNormalizedFindings = flagNormalizedChecks(text)

	return a
}

// walkStmt performs a total traversal of every statement — no node kind is
// skipped silently, which spec.md §4.3 calls out as a prior vulnerability.
// It uses syntax.Walk so new node kinds added to the grammar are visited
// automatically rather than requiring an exhaustive switch to be kept in
// sync by hand.
func walkStmt(a *Analysis, stmt *syntax.Stmt) {
	syntax.Walk(stmt, func(node syntax.Node) bool {
		if call, ok := node.(*syntax.CallExpr); ok {
			inspectCallExpr(a, call)
		}
		return true
	})
}

// inspectCallExpr checks a single simple command's command word (Args[0])
// for the two exec-position predicates.
func inspectCallExpr(a *Analysis, call *syntax.CallExpr) {
	if len(call.Args) == 0 {
		return
	}
	word := call.Args[0]
	if len(word.Parts) == 0 {
		return
	}

	for _, part := range word.Parts {
		switch p := part.(type) {
		case *syntax.ParamExp:
			a.VariableInCommandPosition = true
			if a.VariableReason == "" {
				a.VariableReason = "command word is a variable expansion ($" + paramName(p) + ")"
			}
		case *syntax.CmdSubst:
			a.CommandSubstitutionInExecPosition = true
			if a.ExecPositionReason == "" {
				a.ExecPositionReason = "command word is itself a command substitution"
			}
		}
	}

	// A bare word built entirely of consecutive ParamExp parts with no
	// literal text (e.g. $a$b) is the canonical variable-in-command-
	// position case the spec names explicitly.
	if len(word.Parts) >= 1 {
		allParam := true
		for _, part := range word.Parts {
			if _, ok := part.(*syntax.ParamExp); !ok {
				allParam = false
				break
			}
		}
		if allParam {
			a.VariableInCommandPosition = true
			a.VariableReason = "command word is composed entirely of variable expansions"
		}
	}
}

func paramName(p *syntax.ParamExp) string {
	if p.Param != nil {
		return p.Param.Value
	}
	return "?"
}

// segmentsFromFile decomposes the top-level statement list on ; && || |
// by re-printing each statement, which mvdan.cc/sh/v3 already separates
// from its neighbors via the parsed Stmt boundaries and BinaryCmd nodes.
func segmentsFromFile(file *syntax.File) []string {
	var segs []string
	for _, stmt := range file.Stmts {
		segs = append(segs, collectBinarySegments(stmt.Cmd)...)
	}
	return segs
}

func collectBinarySegments(cmd syntax.Command) []string {
	if bc, ok := cmd.(*syntax.BinaryCmd); ok {
		var out []string
		out = append(out, collectBinarySegments(bc.X.Cmd)...)
		out = append(out, collectBinarySegments(bc.Y.Cmd)...)
		return out
	}
	var buf strings.Builder
	printer := syntax.NewPrinter()
	stmt := &syntax.Stmt{Cmd: cmd}
	if err := printer.Print(&buf, stmt); err != nil {
		return nil
	}
	return []string{buf.String()}
}

// splitCompoundFallback does a best-effort textual split on unquoted
// separators when the real parser failed, so a command that can't be
// parsed can still have its obviously-separate pieces looked at by the
// blocklist. This is explicitly advisory: ParseFailed is already set, so
// the policy engine will not let the overall command through as Allow
// regardless of what these fragments look like individually.
func splitCompoundFallback(text string) []string {
	var segs []string
	var cur strings.Builder
	depth := 0
	inSingle, inDouble := false, false
	runes := []rune(text)
	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			segs = append(segs, s)
		}
		cur.Reset()
	}
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\'' && !inDouble:
			inSingle = !inSingle
			cur.WriteRune(r)
		case r == '"' && !inSingle:
			inDouble = !inDouble
			cur.WriteRune(r)
		case inSingle || inDouble:
			cur.WriteRune(r)
		case r == '(' :
			depth++
			cur.WriteRune(r)
		case r == ')':
			depth--
			cur.WriteRune(r)
		case depth == 0 && (r == ';' || r == '|'):
			// handle && || by consuming the doubled character
			if r == '|' && i+1 < len(runes) && runes[i+1] == '|' {
				i++
			}
			flush()
		case depth == 0 && r == '&' && i+1 < len(runes) && runes[i+1] == '&':
			i++
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return segs
}

// flagNormalizedChecks restores the Agentic-Shield supplemental structural
// predicate: rm -rf / chmod detection that recognizes sudo-prefixed
// commands and long-form flags (--recursive, --force) a plain regex
// blocklist would miss when flags are reordered or spelled out.
func flagNormalizedChecks(text string) []string {
	var findings []string
	parser := syntax.NewParser(syntax.Variant(syntax.LangBash))
	file, err := parser.Parse(strings.NewReader(text), "")
	if err != nil {
		return nil
	}
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok || len(call.Args) == 0 {
			return true
		}
		words := wordsToStrings(call.Args)
		words = stripSudo(words)
		if len(words) == 0 {
			return true
		}
		switch words[0] {
		case "rm":
			if hasFlag(words[1:], "r", "recursive") && hasFlag(words[1:], "f", "force") {
				findings = append(findings, "rm with recursive+force flags (possibly long-form or sudo-wrapped)")
			}
		case "chmod":
			if hasArg(words[1:], "777") || hasFlag(words[1:], "R", "recursive") {
				findings = append(findings, "chmod with recursive or world-writable mode (possibly sudo-wrapped)")
			}
		}
		return true
	})
	return findings
}

func wordsToStrings(words []*syntax.Word) []string {
	printer := syntax.NewPrinter()
	out := make([]string, len(words))
	for i, w := range words {
		var buf strings.Builder
		if err := printer.Print(&buf, w); err == nil {
			out[i] = buf.String()
		}
	}
	return out
}

func stripSudo(words []string) []string {
	if len(words) > 0 && (words[0] == "sudo" || words[0] == "doas") {
		return words[1:]
	}
	return words
}

func hasFlag(args []string, short, long string) bool {
	for _, a := range args {
		if a == "-"+short || a == "--"+long {
			return true
		}
		if strings.HasPrefix(a, "-") && !strings.HasPrefix(a, "--") && strings.Contains(a, short) {
			return true
		}
	}
	return false
}

func hasArg(args []string, val string) bool {
	for _, a := range args {
		if a == val {
			return true
		}
	}
	return false
}
