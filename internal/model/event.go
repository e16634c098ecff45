package model

import "time"

// DeterministicStage identifies which rule-based comparison matched.
type DeterministicStage string

const (
	StageExact      DeterministicStage = "exact"
	StageNormalized DeterministicStage = "normalized"
	StageVariant    DeterministicStage = "variant"
	StageNone       DeterministicStage = "none"
)

// DeterministicDecision is the outcome of the rule-based matcher.
type DeterministicDecision string

const (
	DecisionAccept     DeterministicDecision = "accept"
	DecisionReject     DeterministicDecision = "reject"
	DecisionDeferToLLM DeterministicDecision = "defer_to_llm"
)

// Decision is a final correct/incorrect verdict. Grading never returns
// "unknown": an unreachable judge resolves to incorrect.
type Decision string

const (
	DecisionCorrect   Decision = "correct"
	DecisionIncorrect Decision = "incorrect"
)

// DecisionSource records which component produced the final decision.
type DecisionSource string

const (
	SourceDeterministic DecisionSource = "deterministic"
	SourceLLM           DecisionSource = "llm"
)

// ReasonJudgeUnavailable is the sentinel reason code written when the judge
// could not be reached and the fail-closed policy rejected the response.
const ReasonJudgeUnavailable = "llm_unavailable_auto_reject"

// GradingEvent is the immutable audit record of one grading decision. Events
// are append-only; a correction after an appeal is a new event pointing at
// the original via OverturnOfEventID.
type GradingEvent struct {
	ID            string `json:"id"`
	TraceID       string `json:"trace_id"`
	ChallengeDate string `json:"challenge_date,omitempty"`
	PlayerToken   string `json:"player_token,omitempty"`
	ClueID        int64  `json:"clue_id"`

	RawResponse        string `json:"raw_response"`
	ExpectedSnapshot   string `json:"expected_snapshot"`
	ResponseNormalized string `json:"response_normalized"`
	ExpectedNormalized string `json:"expected_normalized"`

	DeterministicStage    DeterministicStage    `json:"deterministic_stage"`
	DeterministicDecision DeterministicDecision `json:"deterministic_decision"`

	SimilarityScore     float64 `json:"similarity_score"`
	TokenOverlapScore   float64 `json:"token_overlap_score"`
	HasParentheticalOr  bool    `json:"has_parenthetical_or"`
	LooksLikePersonName bool    `json:"looks_like_person_name"`

	JudgeInvoked    bool    `json:"judge_invoked"`
	JudgeConfidence float64 `json:"judge_confidence,omitempty"`
	JudgeReasonCode string  `json:"judge_reason_code,omitempty"`
	JudgeReasonText string  `json:"judge_reason_text,omitempty"`

	FinalDecision  Decision       `json:"final_decision"`
	DecisionSource DecisionSource `json:"decision_source"`

	OverturnOfEventID string `json:"overturn_of_event_id,omitempty"`

	LatencyTotalMS         int64  `json:"latency_ms_total"`
	LatencyDeterministicMS int64  `json:"latency_ms_deterministic"`
	LatencyJudgeMS         *int64 `json:"latency_ms_llm,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Correct reports whether the event's final decision granted credit.
func (e *GradingEvent) Correct() bool {
	return e.FinalDecision == DecisionCorrect
}
