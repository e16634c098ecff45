package judge

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cluegrid/cluegrid/pkg/anthropic"
)

// verdictPayload mirrors the JSON object the model is asked to emit.
type verdictPayload struct {
	Overturn             bool            `json:"overturn"`
	FinalCorrect         bool            `json:"final_correct"`
	ReasonCode           string          `json:"reason_code"`
	MatchType            string          `json:"match_type"`
	SameEntityLikelihood json.RawMessage `json:"same_entity_likelihood"`
	Confidence           json.RawMessage `json:"confidence"`
	Reason               string          `json:"reason"`
}

// parseVerdict decodes the model output and applies every guardrail. The
// returned verdict is always internally consistent: accept verdicts carry an
// accept reason code, reject verdicts a reject one.
func parseVerdict(raw, model string) (*Verdict, error) {
	cleaned := cleanJSON(raw)
	if cleaned == "" {
		return nil, eris.New("judge: empty model output")
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, eris.Wrap(err, "judge: decode verdict")
	}

	confidence := coerceScore(payload.Confidence)
	sameEntity := coerceScore(payload.SameEntityLikelihood)

	reasonCode := payload.ReasonCode
	if !allowedReasonCodes[reasonCode] {
		reasonCode = ReasonNoMatch
	}
	matchType := payload.MatchType
	if !allowedMatchTypes[matchType] {
		matchType = "no_match"
	}
	reason := payload.Reason
	if reason == "" {
		reason = "Response judged."
	}
	// Truncate on rune boundaries; a byte slice could split a multi-byte
	// character and store invalid UTF-8 on the event.
	if r := []rune(reason); len(r) > MaxReasonChars {
		reason = string(r[:MaxReasonChars])
	}

	var guardrails []string

	// Either accept flag counts as a positive candidate before guardrails.
	accept := payload.Overturn || payload.FinalCorrect
	if accept && payload.Overturn != payload.FinalCorrect {
		guardrails = append(guardrails, "normalized_accept_flag_consistency")
	}

	if accept && confidence < HighConfidenceThreshold {
		guardrails = append(guardrails, "low_confidence_no_overturn")
		accept = false
		reasonCode = ReasonNoMatch
		zap.L().Warn("judge guardrail applied",
			zap.String("guardrail", "low_confidence_no_overturn"),
			zap.Float64("confidence", confidence))
	}
	if accept && sameEntity < SameEntityThreshold {
		guardrails = append(guardrails, "low_same_entity_no_overturn")
		accept = false
		reasonCode = ReasonNoMatch
		zap.L().Warn("judge guardrail applied",
			zap.String("guardrail", "low_same_entity_no_overturn"),
			zap.Float64("same_entity_likelihood", sameEntity))
	}

	if accept {
		if !acceptReasonCodes[reasonCode] {
			if mapped, ok := matchTypeReasons[matchType]; ok {
				reasonCode = mapped
			} else {
				reasonCode = ReasonSemanticEquivalence
			}
			guardrails = append(guardrails, "normalized_accept_reason_code")
		}
	} else if !rejectReasonCodes[reasonCode] {
		reasonCode = ReasonNoMatch
		guardrails = append(guardrails, "normalized_reject_reason_code")
	}

	// Guardrail rewrites replace the model's free-text reason so stored
	// reasons never contradict the stored decision.
	if hasAny(guardrails, "low_confidence_no_overturn", "low_same_entity_no_overturn", "normalized_reject_reason_code") {
		reason = "Response does not meet matching policy."
	} else if hasAny(guardrails, "normalized_accept_reason_code") {
		reason = "Response matches the same intended entity."
	}

	return &Verdict{
		Correct:              accept,
		ReasonCode:           reasonCode,
		Reason:               reason,
		Confidence:           confidence,
		SameEntityLikelihood: sameEntity,
		MatchType:            matchType,
		GuardrailFlags:       guardrails,
		Model:                model,
		RawOutput:            cleaned,
	}, nil
}

// coerceScore clamps a JSON number to [0, 1]; anything non-numeric scores a
// neutral 0.5, which the thresholds then reject.
func coerceScore(raw json.RawMessage) float64 {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0.5
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func hasAny(flags []string, wanted ...string) bool {
	for _, f := range flags {
		for _, w := range wanted {
			if f == w {
				return true
			}
		}
	}
	return false
}

// extractText concatenates all text content blocks from a message response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
