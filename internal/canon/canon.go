// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package canon implements the canonicalization pipeline: it collapses
// shell obfuscation (quote tricks, ANSI-C escapes, brace expansion, glob
// resolution, backtick conversion) into a form the static blocklist, AST
// analyzer, and LLM classifier can meaningfully inspect.
package canon

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/aegish/internal/lexer"
)

// Annotation flags surfaced to the policy engine.
type Annotation string

const (
	ParseUnreliable Annotation = "PARSE_UNRELIABLE"
	AnsiCPartial    Annotation = "ANSI_C_PARTIAL"
	HereString      Annotation = "HERE_STRING"
	Oversized       Annotation = "OVERSIZED"
)

// MaxCommandLength is the hard cap enforced at the validator entry point
// (spec.md §4.8/§4.9): commands over this size are rejected, never
// truncated for validation while executed in full.
const MaxCommandLength = 4096

// maxBraceVariants is the safety cap on brace-expansion output (stage 4).
const maxBraceVariants = 64

// maxGlobMatchesPerToken is the safety cap on glob resolution (stage 5).
const maxGlobMatchesPerToken = 64

// Result is the product of canonicalizing one command.
type Result struct {
	Text        string
	Variants    []string
	Annotations map[Annotation]bool
	HereStrings []string
}

func newResult(text string) *Result {
	return &Result{Text: text, Annotations: map[Annotation]bool{}}
}

func (r *Result) flag(a Annotation) { r.Annotations[a] = true }

// Has reports whether annotation a was set.
func (r *Result) Has(a Annotation) bool { return r.Annotations[a] }

// Canonicalize runs all six stages over raw in order and returns the
// canonical text, its expansion variants, and any annotations. Oversized
// input is flagged but still canonicalized up to the rules below — the
// validator is responsible for rejecting it before this is ever called
// with execution intent.
func Canonicalize(raw string) *Result {
	r := newResult(raw)
	if len(raw) > MaxCommandLength {
		r.flag(Oversized)
	}

	text := raw

	// Stage 0 (supplemental): Unicode NFKC normalization, closing the
	// homoglyph gap noted in the teacher's normalizeCommand comment.
	text = norm.NFKC.String(text)

	// Stage 1: ANSI-C quote resolution.
	text = resolveAnsiC(text, r)

	// Stage 2: backtick -> $(...) conversion.
	text = convertBackticks(text, r)

	// Stage 3: quote normalization, only when no metacharacters are
	// present — correctness over coverage.
	text = normalizeQuotes(text)

	// Stage 4: brace expansion. Contributes variants; primary text is the
	// pre-expansion text (stages 1-4 applied to the original, in order).
	r.Text = text
	r.Variants = expandBraces(text)

	// Stage 5: glob resolution contributes variants only.
	r.Variants = append(r.Variants, resolveGlobs(text)...)

	// Stage 6: here-string body extraction.
	r.HereStrings = extractHereStrings(text)
	if len(r.HereStrings) > 0 {
		r.flag(HereString)
	}

	return r
}

// resolveAnsiC replaces every $'...' with the literal bytes it denotes.
// Malformed sequences are left intact and flagged ANSI_C_PARTIAL rather
// than raising — per spec.md §4.1's failure policy, no stage may throw an
// exception that gets silently swallowed.
func resolveAnsiC(s string, r *Result) string {
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '$' && i+1 < len(s) && s[i+1] == '\'' {
			end := findUnescapedQuote(s, i+2)
			if end < 0 {
				r.flag(AnsiCPartial)
				out.WriteString(s[i:])
				break
			}
			body := s[i+2 : end]
			decoded, ok := decodeAnsiCBody(body)
			if !ok {
				r.flag(AnsiCPartial)
				out.WriteString(s[i : end+1])
				i = end + 1
				continue
			}
			if strings.ContainsAny(decoded, "$`") {
				out.WriteByte('\'')
				out.WriteString(strings.ReplaceAll(decoded, "'", `'\''`))
				out.WriteByte('\'')
			} else {
				out.WriteString(decoded)
			}
			i = end + 1
			continue
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String()
}

func findUnescapedQuote(s string, from int) int {
	for i := from; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == '\'' {
			return i
		}
	}
	return -1
}

func decodeAnsiCBody(body string) (string, bool) {
	var out strings.Builder
	i := 0
	for i < len(body) {
		if body[i] != '\\' || i+1 >= len(body) {
			out.WriteByte(body[i])
			i++
			continue
		}
		esc := body[i+1]
		switch esc {
		case 'n':
			out.WriteByte('\n')
			i += 2
		case 't':
			out.WriteByte('\t')
			i += 2
		case '\\':
			out.WriteByte('\\')
			i += 2
		case 'a':
			out.WriteByte('\a')
			i += 2
		case 'b':
			out.WriteByte('\b')
			i += 2
		case 'f':
			out.WriteByte('\f')
			i += 2
		case 'r':
			out.WriteByte('\r')
			i += 2
		case 'v':
			out.WriteByte('\v')
			i += 2
		case '\'':
			out.WriteByte('\'')
			i += 2
		case 'x':
			if i+4 <= len(body) {
				v, err := strconv.ParseUint(body[i+2:i+4], 16, 8)
				if err == nil {
					out.WriteByte(byte(v))
					i += 4
					continue
				}
			}
			return "", false
		case 'u':
			if i+6 <= len(body) {
				v, err := strconv.ParseUint(body[i+2:i+6], 16, 32)
				if err == nil {
					out.WriteRune(rune(v))
					i += 6
					continue
				}
			}
			return "", false
		default:
			if esc >= '0' && esc <= '7' {
				end := i + 2
				for end < len(body) && end < i+4 && body[end] >= '0' && body[end] <= '7' {
					end++
				}
				v, err := strconv.ParseUint(body[i+1:end], 8, 8)
				if err != nil {
					return "", false
				}
				out.WriteByte(byte(v))
				i = end
				continue
			}
			return "", false
		}
	}
	return out.String(), true
}

// convertBackticks replaces every non-nested `X` with $(X). Nested
// backticks are flagged via PARSE_UNRELIABLE but left unconverted, per
// spec.md §4.1 stage 2.
func convertBackticks(s string, r *Result) string {
	if !strings.Contains(s, "`") {
		return s
	}
	var out strings.Builder
	i := 0
	for i < len(s) {
		if s[i] == '`' {
			end := -1
			for j := i + 1; j < len(s); j++ {
				if s[j] == '\\' {
					j++
					continue
				}
				if s[j] == '`' {
					end = j
					break
				}
			}
			if end < 0 {
				out.WriteString(s[i:])
				break
			}
			inner := s[i+1 : end]
			if strings.Contains(inner, "`") {
				r.flag(ParseUnreliable)
				out.WriteString(s[i : end+1])
			} else {
				out.WriteString("$(")
				out.WriteString(inner)
				out.WriteString(")")
			}
			i = end + 1
			continue
		}
		out.WriteByte(s[i])
		i++
	}
	return out.String()
}

// normalizeQuotes collapses quote-only obfuscation (ba""sh, 'mk'fs) when
// the command contains none of the shell metacharacters listed in
// spec.md §4.1 stage 3. It skips otherwise: correctness over coverage.
func normalizeQuotes(s string) string {
	if lexer.ContainsMetacharacter(s) {
		return s
	}
	toks := lexer.Tokenize(s)
	if len(toks) == 0 {
		return s
	}
	return lexer.JoinedText(toks)
}
