// Package grading implements the answer grading engine: text normalization,
// the deterministic matcher, and the orchestrator that composes them with the
// external judge.
package grading

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	framePrefixRe = regexp.MustCompile(`(?i)^(what|who|where|when)\s+(is|are|was|were)\s+`)
	articleRe     = regexp.MustCompile(`(?i)^(the|a|an)\s+`)
	parenAltRe    = regexp.MustCompile(`\((?:or\s+)?(.+?)\)`)
	parenOrRe     = regexp.MustCompile(`(?i)\(\s*or\b`)
	punctRe       = regexp.MustCompile(`[^\w\s]`)
	multiSpaceRe  = regexp.MustCompile(`\s+`)
	tokenRe       = regexp.MustCompile(`[a-z0-9]+`)
)

// diacriticFold strips combining marks after NFD decomposition so that
// "Élysées" and "Elysees" normalize identically.
var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes free text for comparison:
//  1. Fold diacritics
//  2. Strip a response-frame prefix ("what is", "who are", ...)
//  3. Strip a leading article
//  4. Strip punctuation
//  5. Collapse whitespace, trim, lowercase
//
// Empty input normalizes to the empty string, which the matcher treats as an
// explicit deterministic reject. Pure; no I/O.
func Normalize(text string) string {
	if folded, _, err := transform.String(diacriticFold, text); err == nil {
		text = folded
	}
	text = framePrefixRe.ReplaceAllString(text, "")
	text = articleRe.ReplaceAllString(text, "")
	text = punctRe.ReplaceAllString(text, "")
	text = multiSpaceRe.ReplaceAllString(text, " ")
	return strings.ToLower(strings.TrimSpace(text))
}

// HasParentheticalOr reports whether the expected response carries an
// "(or ...)" alternate form. Recorded on grading events for audit.
func HasParentheticalOr(expected string) bool {
	return parenOrRe.MatchString(expected)
}

// ExtractAlternates splits an expected response like "Nihon (or Nippon)" into
// the base form plus each parenthetical alternate, then appends any
// explicitly stored alternates. The base form always comes first.
func ExtractAlternates(expected string, stored []string) []string {
	var alts []string
	for _, m := range parenAltRe.FindAllStringSubmatch(expected, -1) {
		alts = append(alts, m[1])
	}
	base := strings.TrimSpace(parenAltRe.ReplaceAllString(expected, ""))
	out := make([]string, 0, 1+len(alts)+len(stored))
	out = append(out, base)
	out = append(out, alts...)
	out = append(out, stored...)
	return out
}

// Tokens returns the lowercase alphanumeric tokens of an already-normalized
// string.
func Tokens(normalized string) []string {
	return tokenRe.FindAllString(normalized, -1)
}

// TokenOverlap scores the token-set overlap between two normalized strings,
// as overlap / max(|a|, |b|). Zero when either side is empty.
func TokenOverlap(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}
	overlap := 0
	for tok := range aTokens {
		if bTokens[tok] {
			overlap++
		}
	}
	denom := len(aTokens)
	if len(bTokens) > denom {
		denom = len(bTokens)
	}
	return float64(overlap) / float64(denom)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range Tokens(s) {
		set[tok] = true
	}
	return set
}

// LooksLikePersonName is a cheap heuristic the judge prompt and audit trail
// use: at least two capitalized tokens and no digits in the raw expected
// response.
func LooksLikePersonName(expected string) bool {
	if strings.ContainsAny(expected, "0123456789") {
		return false
	}
	capitalized := 0
	for _, word := range strings.Fields(expected) {
		r := []rune(word)[0]
		if unicode.IsUpper(r) {
			capitalized++
		}
	}
	return capitalized >= 2
}
