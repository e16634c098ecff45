// Package judge adjudicates borderline responses the deterministic matcher
// could not decide, via an LLM behind a strict guardrail layer. The adapter
// never returns a Go error: any transport, timeout, or parse problem comes
// back as a *Failure so callers apply the fail-closed policy explicitly.
package judge

import "context"

const (
	// HighConfidenceThreshold is the minimum model confidence required to
	// grant credit.
	HighConfidenceThreshold = 0.85

	// SameEntityThreshold is the minimum same-entity likelihood required to
	// grant credit.
	SameEntityThreshold = 0.90

	// MaxReasonChars caps the stored reason text.
	MaxReasonChars = 600

	// MaxJustificationChars caps the player-supplied appeal note forwarded to
	// the model.
	MaxJustificationChars = 280
)

// Reason codes the judge may emit. Anything outside the allowlist collapses
// to no_match.
const (
	ReasonExactMatch              = "exact_match"
	ReasonLastNameMatch           = "last_name_match"
	ReasonMinorTypoMatch          = "minor_typo_match"
	ReasonStrongFuzzyMatch        = "strong_fuzzy_match"
	ReasonSemanticEquivalence     = "semantic_equivalence"
	ReasonEmptyResponse           = "empty_response"
	ReasonInsufficientSpecificity = "insufficient_specificity"
	ReasonNoMatch                 = "no_match"
)

var allowedReasonCodes = map[string]bool{
	ReasonExactMatch:              true,
	ReasonLastNameMatch:           true,
	ReasonMinorTypoMatch:          true,
	ReasonStrongFuzzyMatch:        true,
	ReasonSemanticEquivalence:     true,
	ReasonEmptyResponse:           true,
	ReasonInsufficientSpecificity: true,
	ReasonNoMatch:                 true,
}

var acceptReasonCodes = map[string]bool{
	ReasonExactMatch:          true,
	ReasonLastNameMatch:       true,
	ReasonMinorTypoMatch:      true,
	ReasonStrongFuzzyMatch:    true,
	ReasonSemanticEquivalence: true,
}

var rejectReasonCodes = map[string]bool{
	ReasonEmptyResponse:           true,
	ReasonInsufficientSpecificity: true,
	ReasonNoMatch:                 true,
}

var allowedMatchTypes = map[string]bool{
	"exact":      true,
	"alias":      true,
	"last_name":  true,
	"minor_typo": true,
	"no_match":   true,
}

// matchTypeReasons maps a model-reported match type to the accept reason code
// used when the model's own reason code was not on the accept list.
var matchTypeReasons = map[string]string{
	"exact":      ReasonExactMatch,
	"alias":      ReasonSemanticEquivalence,
	"last_name":  ReasonLastNameMatch,
	"minor_typo": ReasonMinorTypoMatch,
}

// Request carries one borderline response to adjudicate. Justification is the
// optional player appeal note; it is truncated, never trusted.
type Request struct {
	ClueText      string
	Category      string
	Expected      string
	Response      string
	Justification string
}

// Verdict is a guardrail-normalized judge decision.
type Verdict struct {
	Correct              bool
	ReasonCode           string
	Reason               string
	Confidence           float64
	SameEntityLikelihood float64
	MatchType            string
	GuardrailFlags       []string
	Model                string
	RawOutput            string
}

// Failure describes why the judge could not produce a verdict. Callers treat
// any Failure as a reject under the fail-closed policy.
type Failure struct {
	ErrorType    string
	ErrorMessage string
}

// Adapter is the single seam between grading and the LLM. Exactly one of the
// return values is non-nil.
type Adapter interface {
	Judge(ctx context.Context, req Request) (*Verdict, *Failure)
}
