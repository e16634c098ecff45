package grading

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/cluegrid/cluegrid/internal/judge"
	"github.com/cluegrid/cluegrid/internal/model"
	"github.com/cluegrid/cluegrid/internal/resilience"
)

// EventSink persists grading events. Satisfied by store.Store.
type EventSink interface {
	InsertGradingEvent(ctx context.Context, ev *model.GradingEvent) error
}

// Grader orchestrates the deterministic matcher and the LLM judge and writes
// one audit event per decision.
type Grader struct {
	matcher *Matcher
	judge   judge.Adapter
	sink    EventSink
	retry   resilience.RetryConfig
}

// GradeRequest is one response to grade.
type GradeRequest struct {
	Clue          *model.Clue
	RawResponse   string
	ChallengeDate string
	PlayerToken   string
	TraceID       string

	// Justification is an optional player note forwarded to the judge on the
	// appeal path only.
	Justification string
}

// New builds a Grader. The judge adapter may be nil, in which case every
// deferred response resolves incorrect under the fail-closed policy.
func New(matcher *Matcher, adapter judge.Adapter, sink EventSink) *Grader {
	return &Grader{
		matcher: matcher,
		judge:   adapter,
		sink:    sink,
		retry:   resilience.DefaultRetryConfig(),
	}
}

// Grade runs the full decision tree for one response and persists the
// resulting event. The event is written whole or not at all; a persistence
// failure returns an error and no decision.
func (g *Grader) Grade(ctx context.Context, req GradeRequest) (*model.GradingEvent, error) {
	start := time.Now()

	ev := g.newEvent(req)

	match := g.matcher.Match(req.RawResponse, req.Clue.Expected, req.Clue.Alternates)
	ev.DeterministicStage = match.Stage
	ev.DeterministicDecision = match.Decision
	ev.SimilarityScore = match.SimilarityScore
	ev.LatencyDeterministicMS = time.Since(start).Milliseconds()

	switch match.Decision {
	case model.DecisionAccept:
		ev.FinalDecision = model.DecisionCorrect
		ev.DecisionSource = model.SourceDeterministic
	case model.DecisionReject:
		ev.FinalDecision = model.DecisionIncorrect
		ev.DecisionSource = model.SourceDeterministic
	case model.DecisionDeferToLLM:
		g.consultJudge(ctx, ev, req)
	}

	ev.LatencyTotalMS = time.Since(start).Milliseconds()

	if err := g.persist(ctx, ev); err != nil {
		return nil, err
	}

	zap.L().Info("response graded",
		zap.String("event_id", ev.ID),
		zap.Int64("clue_id", ev.ClueID),
		zap.String("stage", string(ev.DeterministicStage)),
		zap.String("decision", string(ev.FinalDecision)),
		zap.String("source", string(ev.DecisionSource)),
		zap.Int64("latency_ms", ev.LatencyTotalMS),
	)
	return ev, nil
}

// Regrade is the appeal path: it skips the deterministic matcher and puts the
// response straight to the judge, linking the new event to the one under
// appeal. Judge unavailability denies the appeal.
func (g *Grader) Regrade(ctx context.Context, prior *model.GradingEvent, req GradeRequest) (*model.GradingEvent, error) {
	start := time.Now()

	ev := g.newEvent(req)
	ev.OverturnOfEventID = prior.ID
	ev.DeterministicStage = model.StageNone
	ev.DeterministicDecision = model.DecisionDeferToLLM

	g.consultJudge(ctx, ev, req)
	ev.LatencyTotalMS = time.Since(start).Milliseconds()

	if err := g.persist(ctx, ev); err != nil {
		return nil, err
	}

	zap.L().Info("appeal regraded",
		zap.String("event_id", ev.ID),
		zap.String("prior_event_id", prior.ID),
		zap.String("decision", string(ev.FinalDecision)),
	)
	return ev, nil
}

func (g *Grader) newEvent(req GradeRequest) *model.GradingEvent {
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.New().String()
	}
	expectedNorm := Normalize(req.Clue.Expected)
	responseNorm := Normalize(req.RawResponse)

	return &model.GradingEvent{
		ID:                  uuid.New().String(),
		TraceID:             traceID,
		ChallengeDate:       req.ChallengeDate,
		PlayerToken:         req.PlayerToken,
		ClueID:              req.Clue.ID,
		RawResponse:         req.RawResponse,
		ExpectedSnapshot:    req.Clue.Expected,
		ResponseNormalized:  responseNorm,
		ExpectedNormalized:  expectedNorm,
		TokenOverlapScore:   TokenOverlap(responseNorm, expectedNorm),
		HasParentheticalOr:  HasParentheticalOr(req.Clue.Expected),
		LooksLikePersonName: LooksLikePersonName(req.Clue.Expected),
		CreatedAt:           time.Now().UTC(),
	}
}

// consultJudge resolves a deferred decision. Any failure, including a missing
// adapter, rejects with the auto-reject sentinel.
func (g *Grader) consultJudge(ctx context.Context, ev *model.GradingEvent, req GradeRequest) {
	ev.JudgeInvoked = true
	judgeStart := time.Now()

	var verdict *judge.Verdict
	var failure *judge.Failure
	if g.judge == nil {
		failure = &judge.Failure{ErrorType: "not_configured", ErrorMessage: "judge adapter not configured"}
	} else {
		verdict, failure = g.judge.Judge(ctx, judge.Request{
			ClueText:      req.Clue.ClueText,
			Category:      req.Clue.Category,
			Expected:      req.Clue.Expected,
			Response:      req.RawResponse,
			Justification: req.Justification,
		})
	}

	judgeMS := time.Since(judgeStart).Milliseconds()
	ev.LatencyJudgeMS = &judgeMS

	// A failed judge call never produced an LLM decision: the fail-closed
	// reject is attributed to the deterministic policy.
	if failure != nil {
		ev.FinalDecision = model.DecisionIncorrect
		ev.DecisionSource = model.SourceDeterministic
		ev.JudgeReasonCode = model.ReasonJudgeUnavailable
		ev.JudgeReasonText = failure.ErrorType + ": " + failure.ErrorMessage
		zap.L().Warn("judge unavailable, rejecting",
			zap.String("trace_id", ev.TraceID),
			zap.String("error_type", failure.ErrorType),
		)
		return
	}

	ev.DecisionSource = model.SourceLLM

	if verdict.Correct {
		ev.FinalDecision = model.DecisionCorrect
	} else {
		ev.FinalDecision = model.DecisionIncorrect
	}
	ev.JudgeConfidence = verdict.Confidence
	ev.JudgeReasonCode = verdict.ReasonCode
	ev.JudgeReasonText = verdict.Reason
}

func (g *Grader) persist(ctx context.Context, ev *model.GradingEvent) error {
	err := resilience.Do(ctx, g.retry, func(ctx context.Context) error {
		return g.sink.InsertGradingEvent(ctx, ev)
	})
	return eris.Wrap(err, "grading: persist event")
}
