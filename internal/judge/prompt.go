package judge

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a strict trivia answer judge. Decide whether the user's response identifies the same intended entity as the expected response. Return only a valid JSON object matching this shape:

{
  "overturn": boolean,
  "final_correct": boolean,
  "reason_code": "already_correct" | "empty_response" | "exact_match" | "last_name_match" | "minor_typo_match" | "insufficient_specificity" | "strong_fuzzy_match" | "no_match" | "semantic_equivalence",
  "match_type": "exact" | "alias" | "last_name" | "minor_typo" | "no_match",
  "same_entity_likelihood": number between 0 and 1,
  "confidence": number between 0 and 1,
  "reason": string
}

No prose outside the JSON object.`

const policyText = `Policy:
1) Last-name-only is usually acceptable for person clues.
2) Minor typos should be accepted only when they clearly indicate the same entity.
3) Deny when the response could plausibly indicate a different valid entity.
4) Subset-only responses for non-person entities should be denied.
5) Allow clear aliases and equivalent forms.
6) Be conservative when uncertain.

Examples:
- Expected: Warren Buffett | User: Buffet => Accept (minor_typo)
- Expected: Stephen Hawking | User: Hawkins => Accept (minor_typo)
- Expected: Marlon Brando | User: Brendan => Deny (no_match)`

// buildUserPrompt renders the judging context for one request. The
// justification is already truncated by the caller.
func buildUserPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(policyText)
	b.WriteString("\n\n")
	if req.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", req.Category)
	}
	fmt.Fprintf(&b, "Clue: %s\n", req.ClueText)
	fmt.Fprintf(&b, "Expected: %s\n", req.Expected)
	fmt.Fprintf(&b, "User response: %s\n", req.Response)
	justification := req.Justification
	if justification == "" {
		justification = "(none)"
	}
	fmt.Fprintf(&b, "User appeal note: %s", justification)
	return b.String()
}

// truncateJustification trims and caps a player-supplied appeal note,
// truncating on rune boundaries.
func truncateJustification(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > MaxJustificationChars {
		s = string(r[:MaxJustificationChars])
	}
	return s
}
