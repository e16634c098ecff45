package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cluegrid/cluegrid/internal/model"
)

func TestMatch_ExactAfterNormalization(t *testing.T) {
	m := NewMatcher(0)
	res := m.Match("What is the Eiffel Tower?", "the Eiffel Tower", nil)
	assert.Equal(t, model.StageExact, res.Stage)
	assert.Equal(t, model.DecisionAccept, res.Decision)
}

func TestMatch_BlankRejectsWithoutJudge(t *testing.T) {
	m := NewMatcher(0)

	res := m.Match("", "Abraham Lincoln", nil)
	assert.Equal(t, model.StageNone, res.Stage)
	assert.Equal(t, model.DecisionReject, res.Decision)

	// A response that normalizes to nothing is blank too.
	res = m.Match("what is", "Abraham Lincoln", nil)
	assert.Equal(t, model.DecisionReject, res.Decision)
}

func TestMatch_ParentheticalAlternate(t *testing.T) {
	m := NewMatcher(0)
	res := m.Match("Nippon", "Nihon (or Nippon)", nil)
	assert.Equal(t, model.StageNormalized, res.Stage)
	assert.Equal(t, model.DecisionAccept, res.Decision)
}

func TestMatch_ParentheticalOnlyExpected(t *testing.T) {
	// When the expected text is nothing but a parenthetical, the canonical
	// form is empty and a hit on the alternate is not an exact match.
	m := NewMatcher(0)
	res := m.Match("Nippon", "(or Nippon)", nil)
	assert.Equal(t, model.StageNormalized, res.Stage)
	assert.Equal(t, model.DecisionAccept, res.Decision)
}

func TestMatch_StoredAlternate(t *testing.T) {
	m := NewMatcher(0)
	res := m.Match("Samuel Clemens", "Mark Twain", []string{"Samuel Clemens"})
	assert.Equal(t, model.StageNormalized, res.Stage)
	assert.Equal(t, model.DecisionAccept, res.Decision)
}

func TestMatch_NumberWordVariant(t *testing.T) {
	m := NewMatcher(0)

	res := m.Match("four", "4", nil)
	assert.Equal(t, model.StageVariant, res.Stage)
	assert.Equal(t, model.DecisionAccept, res.Decision)

	res = m.Match("12", "twelve", nil)
	assert.Equal(t, model.StageVariant, res.Stage)
	assert.Equal(t, model.DecisionAccept, res.Decision)
}

func TestMatch_NumericListOrderInsensitive(t *testing.T) {
	m := NewMatcher(0)
	res := m.Match("9 3 1", "1, 3, 9", nil)
	assert.Equal(t, model.StageVariant, res.Stage)
	assert.Equal(t, model.DecisionAccept, res.Decision)
}

func TestMatch_FuzzyTypoAccepted(t *testing.T) {
	m := NewMatcher(0)
	res := m.Match("shakespere", "Shakespeare", nil)
	assert.Equal(t, model.StageNormalized, res.Stage)
	assert.Equal(t, model.DecisionAccept, res.Decision)
	assert.Greater(t, res.SimilarityScore, 0.9)
}

func TestMatch_TokenOrderInsensitive(t *testing.T) {
	m := NewMatcher(0)
	res := m.Match("Clemens, Samuel", "Samuel Clemens", nil)
	assert.Equal(t, model.DecisionAccept, res.Decision)
}

func TestMatch_BorderlineDefersToJudge(t *testing.T) {
	m := NewMatcher(0)
	res := m.Match("Brendan", "Marlon Brando", nil)
	assert.Equal(t, model.StageNone, res.Stage)
	assert.Equal(t, model.DecisionDeferToLLM, res.Decision)
	assert.Less(t, res.SimilarityScore, DefaultFuzzyThreshold)
}

func TestMatch_ThresholdConfigurable(t *testing.T) {
	// At a very low threshold even weak matches clear the fuzzy stage.
	loose := NewMatcher(0.10)
	res := loose.Match("Hawkins", "Stephen Hawking", nil)
	assert.Equal(t, model.DecisionAccept, res.Decision)

	strict := NewMatcher(0.99)
	res = strict.Match("Hawkins", "Stephen Hawking", nil)
	assert.Equal(t, model.DecisionDeferToLLM, res.Decision)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("lincoln", "lincoln"), 1e-9)
	assert.Zero(t, Similarity("", ""))
	assert.Greater(t, Similarity("mississippi", "missisippi"), 0.9)
	assert.Less(t, Similarity("lincoln", "roosevelt"), 0.5)
}

func TestMatch_DefaultThresholdApplied(t *testing.T) {
	m := NewMatcher(-1)
	assert.InDelta(t, DefaultFuzzyThreshold, m.threshold, 1e-9)
}
