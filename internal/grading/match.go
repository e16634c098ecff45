package grading

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cluegrid/cluegrid/internal/model"
)

// DefaultFuzzyThreshold is the legacy fuzzy-match acceptance threshold,
// tunable via config.
const DefaultFuzzyThreshold = 0.80

var numericListRe = regexp.MustCompile(`^\d+(\s+\d+)+$`)

// numberWords maps spelled-out numbers to digit strings for the variant
// stage. Covers zero through twenty and the tens; larger numbers are left to
// the fuzzy stage or the judge.
var numberWords = map[string]string{
	"zero": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9",
	"ten": "10", "eleven": "11", "twelve": "12", "thirteen": "13",
	"fourteen": "14", "fifteen": "15", "sixteen": "16", "seventeen": "17",
	"eighteen": "18", "nineteen": "19", "twenty": "20",
	"thirty": "30", "forty": "40", "fifty": "50", "sixty": "60",
	"seventy": "70", "eighty": "80", "ninety": "90",
}

// MatchResult is the deterministic matcher's outcome. SimilarityScore is the
// best fuzzy score seen, recorded on the grading event even when the stage
// was decided earlier.
type MatchResult struct {
	Stage           model.DeterministicStage
	Decision        model.DeterministicDecision
	SimilarityScore float64
}

// Matcher performs rule-based comparison of a normalized response against the
// canonical expected response and its alternates.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a Matcher with the given fuzzy-acceptance threshold.
// Non-positive thresholds fall back to the default.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	return &Matcher{threshold: threshold}
}

// Match runs the deterministic tie-break order:
//
//	blank      -> reject (no judge call for empty submissions)
//	exact      -> normalized equality with the canonical expected response
//	normalized -> equality with an alternate, or fuzzy similarity >= threshold
//	variant    -> digit/word or numeric-list equivalence
//	otherwise  -> defer to the judge
//
// Match never mutates anything.
func (m *Matcher) Match(rawResponse, expected string, storedAlternates []string) MatchResult {
	userNorm := Normalize(rawResponse)
	if userNorm == "" {
		return MatchResult{Stage: model.StageNone, Decision: model.DecisionReject}
	}

	canonical, alternates := normalizedForms(expected, storedAlternates)
	forms := alternates
	if canonical != "" {
		forms = append([]string{canonical}, alternates...)
	}
	similarity := bestSimilarity(userNorm, forms)

	if canonical != "" && userNorm == canonical {
		return MatchResult{Stage: model.StageExact, Decision: model.DecisionAccept, SimilarityScore: similarity}
	}
	for _, altNorm := range alternates {
		if userNorm == altNorm {
			return MatchResult{Stage: model.StageNormalized, Decision: model.DecisionAccept, SimilarityScore: similarity}
		}
	}

	for _, form := range forms {
		if numericEquivalent(userNorm, form) {
			return MatchResult{Stage: model.StageVariant, Decision: model.DecisionAccept, SimilarityScore: similarity}
		}
	}

	if similarity >= m.threshold {
		return MatchResult{Stage: model.StageNormalized, Decision: model.DecisionAccept, SimilarityScore: similarity}
	}

	return MatchResult{Stage: model.StageNone, Decision: model.DecisionDeferToLLM, SimilarityScore: similarity}
}

// normalizedForms splits the expected response into its normalized canonical
// form and the normalized alternates. The canonical form may be empty when
// the expected text is nothing but a parenthetical; equality against an
// alternate is never reported as an exact match.
func normalizedForms(expected string, stored []string) (string, []string) {
	all := ExtractAlternates(expected, stored)
	canonical := Normalize(all[0])
	alternates := make([]string, 0, len(all)-1)
	for _, alt := range all[1:] {
		if n := Normalize(alt); n != "" {
			alternates = append(alternates, n)
		}
	}
	return canonical, alternates
}

// bestSimilarity takes the best plain or token-sorted similarity between the
// response and any alternate form.
func bestSimilarity(userNorm string, altNorms []string) float64 {
	best := 0.0
	for _, altNorm := range altNorms {
		if s := Similarity(userNorm, altNorm); s > best {
			best = s
		}
		if s := Similarity(sortTokens(userNorm), sortTokens(altNorm)); s > best {
			best = s
		}
	}
	return best
}

// Similarity computes an edit-based ratio between two normalized strings:
// (total - distance) / total, where distance counts insertions and deletions
// at cost 1 and substitutions at cost 2. A one-letter typo in a ten-letter
// word scores ~0.9.
func Similarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	ra := []rune(a)
	rb := []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0
	}
	return float64(total-editDistance(ra, rb)) / float64(total)
}

// editDistance is Levenshtein with substitutions costing 2, computed over a
// single rolling row.
func editDistance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			sub := prev[j-1]
			if a[i-1] != b[j-1] {
				sub += 2
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			min := sub
			if del < min {
				min = del
			}
			if ins < min {
				min = ins
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func sortTokens(s string) string {
	tokens := Tokens(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// numericEquivalent reports whether two normalized strings denote the same
// number(s) in different forms: "4" vs "four", or the same digit list in a
// different order ("9 3 1" vs "1 3 9").
func numericEquivalent(a, b string) bool {
	if da, ok := asDigits(a); ok {
		if db, okb := asDigits(b); okb {
			return da == db
		}
	}
	la, oka := asDigitList(a)
	lb, okb := asDigitList(b)
	return oka && okb && la == lb
}

// asDigits canonicalizes a single small number, spelled out or in digits.
func asDigits(s string) (string, bool) {
	if d, ok := numberWords[s]; ok {
		return d, true
	}
	if n, err := strconv.Atoi(s); err == nil {
		return strconv.Itoa(n), true
	}
	return "", false
}

// asDigitList canonicalizes a whitespace-separated multi-number response to
// its sorted digit sequence.
func asDigitList(s string) (string, bool) {
	if !numericListRe.MatchString(s) {
		return "", false
	}
	parts := strings.Fields(s)
	sort.Strings(parts)
	return strings.Join(parts, " "), true
}
