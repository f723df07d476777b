// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package canon

import (
	"path/filepath"
	"strconv"
	"strings"
)

// expandBraces expands {a,b,c} and {1..5} sequences, returning every
// variant distinct from text. If expansion would exceed maxBraceVariants
// the cap discards all variants for the primary text (stage 4's safety
// cap) and returns nil — the caller still sees the original text.
func expandBraces(text string) []string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return nil
	}
	depth := 0
	end := -1
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				end = i
			}
		}
		if end >= 0 {
			break
		}
	}
	if end < 0 {
		return nil
	}

	prefix := text[:start]
	body := text[start+1 : end]
	suffix := text[end+1:]

	var parts []string
	if seq := expandSequence(body); seq != nil {
		parts = seq
	} else {
		parts = splitTopLevelCommas(body)
		if len(parts) < 2 {
			return nil
		}
	}

	variants := make([]string, 0, len(parts))
	for _, p := range parts {
		variants = append(variants, prefix+p+suffix)
	}

	// Recursively expand remaining braces in each variant (and in the
	// suffix/prefix of the unexpanded text for multi-brace commands).
	var all []string
	for _, v := range variants {
		if strings.Contains(v, "{") {
			inner := expandBraces(v)
			if inner == nil {
				all = append(all, v)
			} else {
				all = append(all, inner...)
			}
		} else {
			all = append(all, v)
		}
	}

	seen := map[string]bool{text: true}
	out := make([]string, 0, len(all))
	for _, v := range all {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}

	if len(out) > maxBraceVariants {
		return nil
	}
	return out
}

// expandSequence handles {1..5} / {a..e} style sequences. Returns nil if
// body is not a valid sequence expression.
func expandSequence(body string) []string {
	parts := strings.SplitN(body, "..", 2)
	if len(parts) != 2 || strings.Contains(parts[1], ",") {
		return nil
	}
	lo, hi := parts[0], parts[1]

	if n1, err1 := strconv.Atoi(lo); err1 == nil {
		if n2, err2 := strconv.Atoi(hi); err2 == nil {
			var out []string
			if n1 <= n2 {
				for n := n1; n <= n2; n++ {
					out = append(out, strconv.Itoa(n))
				}
			} else {
				for n := n1; n >= n2; n-- {
					out = append(out, strconv.Itoa(n))
				}
			}
			return out
		}
	}

	if len(lo) == 1 && len(hi) == 1 {
		a, b := rune(lo[0]), rune(hi[0])
		var out []string
		if a <= b {
			for r := a; r <= b; r++ {
				out = append(out, string(r))
			}
		} else {
			for r := a; r >= b; r-- {
				out = append(out, string(r))
			}
		}
		return out
	}
	return nil
}

func splitTopLevelCommas(body string) []string {
	var parts []string
	depth := 0
	last := 0
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, body[last:i])
				last = i + 1
			}
		}
	}
	parts = append(parts, body[last:])
	return parts
}

// resolveGlobs resolves every token containing * ? [ against the live
// filesystem. A single match substitutes directly into a variant; multiple
// matches each produce their own variant (full blocklist scrutiny); zero
// matches leave the token unchanged. Per-token match count is capped at
// maxGlobMatchesPerToken.
func resolveGlobs(text string) []string {
	toksRaw := strings.Fields(text)
	var variants []string

	for idx, tok := range toksRaw {
		if !strings.ContainsAny(tok, "*?[") {
			continue
		}
		matches, err := filepath.Glob(tok)
		if err != nil || len(matches) == 0 {
			continue
		}
		if len(matches) > maxGlobMatchesPerToken {
			matches = matches[:maxGlobMatchesPerToken]
		}
		for _, m := range matches {
			rebuilt := make([]string, len(toksRaw))
			copy(rebuilt, toksRaw)
			rebuilt[idx] = m
			variants = append(variants, strings.Join(rebuilt, " "))
		}
	}
	return variants
}

// extractHereStrings pulls the literal body out of `cmd <<< "body"` and
// `cmd <<< 'body'` forms for downstream untrusted-content marking. Bodies
// are extracted verbatim, quotes stripped.
func extractHereStrings(text string) []string {
	var out []string
	idx := 0
	for {
		pos := strings.Index(text[idx:], "<<<")
		if pos < 0 {
			break
		}
		pos += idx
		rest := strings.TrimLeft(text[pos+3:], " \t")
		if rest == "" {
			idx = pos + 3
			continue
		}
		quote := rest[0]
		if quote == '"' || quote == '\'' {
			end := strings.IndexByte(rest[1:], quote)
			if end >= 0 {
				out = append(out, rest[1:1+end])
				idx = pos + 3 + 1 + end + 1
				continue
			}
		}
		end := strings.IndexAny(rest, " \t\n;|&")
		if end < 0 {
			end = len(rest)
		}
		if end > 0 {
			out = append(out, rest[:end])
		}
		idx = pos + 3 + end
		if idx <= pos {
			break
		}
	}
	return out
}
