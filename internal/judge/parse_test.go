package judge

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluegrid/cluegrid/pkg/anthropic"
)

func TestCleanJSON_Fenced(t *testing.T) {
	raw := "```json\n{\"overturn\": true}\n```"
	assert.Equal(t, `{"overturn": true}`, cleanJSON(raw))
}

func TestCleanJSON_Surrounded(t *testing.T) {
	raw := "Here is my decision:\n{\"overturn\": false}\nThanks."
	assert.Equal(t, `{"overturn": false}`, cleanJSON(raw))
}

func TestExtractText(t *testing.T) {
	resp := &anthropic.MessageResponse{Content: []anthropic.ContentBlock{
		{Type: "text", Text: "part one"},
		{Type: "text", Text: "part two"},
	}}
	assert.Equal(t, "part one\npart two", extractText(resp))
	assert.Equal(t, "", extractText(nil))
}

func TestParseVerdict_Accept(t *testing.T) {
	raw := `{"overturn": true, "final_correct": true, "reason_code": "minor_typo_match", "match_type": "minor_typo", "same_entity_likelihood": 0.96, "confidence": 0.92, "reason": "Clearly the same person."}`
	v, err := parseVerdict(raw, "test-model")
	require.NoError(t, err)

	assert.True(t, v.Correct)
	assert.Equal(t, ReasonMinorTypoMatch, v.ReasonCode)
	assert.InDelta(t, 0.92, v.Confidence, 1e-9)
	assert.Empty(t, v.GuardrailFlags)
}

func TestParseVerdict_LowConfidenceForcesReject(t *testing.T) {
	raw := `{"overturn": true, "final_correct": true, "reason_code": "semantic_equivalence", "match_type": "alias", "same_entity_likelihood": 0.95, "confidence": 0.60, "reason": "Probably the same."}`
	v, err := parseVerdict(raw, "test-model")
	require.NoError(t, err)

	assert.False(t, v.Correct)
	assert.Equal(t, ReasonNoMatch, v.ReasonCode)
	assert.Contains(t, v.GuardrailFlags, "low_confidence_no_overturn")
	assert.Equal(t, "Response does not meet matching policy.", v.Reason)
}

func TestParseVerdict_LowSameEntityForcesReject(t *testing.T) {
	raw := `{"overturn": true, "final_correct": true, "reason_code": "semantic_equivalence", "match_type": "alias", "same_entity_likelihood": 0.50, "confidence": 0.95, "reason": "Maybe."}`
	v, err := parseVerdict(raw, "test-model")
	require.NoError(t, err)

	assert.False(t, v.Correct)
	assert.Contains(t, v.GuardrailFlags, "low_same_entity_no_overturn")
}

func TestParseVerdict_UnknownReasonCodeNormalized(t *testing.T) {
	raw := `{"overturn": true, "final_correct": true, "reason_code": "vibes", "match_type": "last_name", "same_entity_likelihood": 0.95, "confidence": 0.95, "reason": "ok"}`
	v, err := parseVerdict(raw, "test-model")
	require.NoError(t, err)

	assert.True(t, v.Correct)
	// Unknown code collapses to no_match, then the match type restores an
	// accept-consistent code.
	assert.Equal(t, ReasonLastNameMatch, v.ReasonCode)
	assert.Contains(t, v.GuardrailFlags, "normalized_accept_reason_code")
}

func TestParseVerdict_RejectReasonCodeNormalized(t *testing.T) {
	raw := `{"overturn": false, "final_correct": false, "reason_code": "exact_match", "match_type": "no_match", "same_entity_likelihood": 0.2, "confidence": 0.9, "reason": "no"}`
	v, err := parseVerdict(raw, "test-model")
	require.NoError(t, err)

	assert.False(t, v.Correct)
	assert.Equal(t, ReasonNoMatch, v.ReasonCode)
	assert.Contains(t, v.GuardrailFlags, "normalized_reject_reason_code")
}

func TestParseVerdict_InconsistentAcceptFlags(t *testing.T) {
	raw := `{"overturn": true, "final_correct": false, "reason_code": "semantic_equivalence", "match_type": "alias", "same_entity_likelihood": 0.95, "confidence": 0.95, "reason": "alias"}`
	v, err := parseVerdict(raw, "test-model")
	require.NoError(t, err)

	assert.True(t, v.Correct)
	assert.Contains(t, v.GuardrailFlags, "normalized_accept_flag_consistency")
}

func TestParseVerdict_NonNumericScoresRejected(t *testing.T) {
	raw := `{"overturn": true, "final_correct": true, "reason_code": "exact_match", "match_type": "exact", "same_entity_likelihood": "high", "confidence": "very", "reason": "sure"}`
	v, err := parseVerdict(raw, "test-model")
	require.NoError(t, err)

	// Unparseable scores coerce to 0.5, below both thresholds.
	assert.False(t, v.Correct)
}

func TestParseVerdict_ReasonTruncated(t *testing.T) {
	long := strings.Repeat("x", 2*MaxReasonChars)
	raw := `{"overturn": false, "final_correct": false, "reason_code": "no_match", "match_type": "no_match", "same_entity_likelihood": 0.1, "confidence": 0.9, "reason": "` + long + `"}`
	v, err := parseVerdict(raw, "test-model")
	require.NoError(t, err)

	assert.Len(t, v.Reason, MaxReasonChars)
}

func TestParseVerdict_ReasonTruncatedOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", MaxReasonChars+10)
	raw := `{"overturn": false, "final_correct": false, "reason_code": "no_match", "match_type": "no_match", "same_entity_likelihood": 0.1, "confidence": 0.9, "reason": "` + long + `"}`
	v, err := parseVerdict(raw, "test-model")
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(v.Reason))
	assert.Equal(t, MaxReasonChars, utf8.RuneCountInString(v.Reason))
}

func TestParseVerdict_Garbage(t *testing.T) {
	_, err := parseVerdict("not json at all", "test-model")
	assert.Error(t, err)

	_, err = parseVerdict("", "test-model")
	assert.Error(t, err)
}

func TestTruncateJustification(t *testing.T) {
	assert.Equal(t, "", truncateJustification("   "))
	long := strings.Repeat("y", MaxJustificationChars+50)
	assert.Len(t, truncateJustification(long), MaxJustificationChars)

	accented := strings.Repeat("ü", MaxJustificationChars+50)
	got := truncateJustification(accented)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, MaxJustificationChars, utf8.RuneCountInString(got))
}
