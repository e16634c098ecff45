// Package daily implements the daily challenge state machine: board
// progression, wagers, final, reset, and appeals over the grading engine.
package daily

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/cluegrid/cluegrid/internal/grading"
	"github.com/cluegrid/cluegrid/internal/model"
	"github.com/cluegrid/cluegrid/internal/store"
)

// Sentinel errors mapped to HTTP statuses by the server.
var (
	ErrChallengeNotFound  = eris.New("daily: no challenge for date")
	ErrClueNotFound       = eris.New("daily: clue not found")
	ErrInvalidStage       = eris.New("daily: invalid stage")
	ErrInvalidSlot        = eris.New("daily: invalid slot index")
	ErrChallengeComplete  = eris.New("daily: challenge already completed")
	ErrBoardIncomplete    = eris.New("daily: board not complete")
	ErrWagerRequired      = eris.New("daily: wager required")
	ErrWagerOutOfRange    = eris.New("daily: wager out of range")
	ErrWagerNotLocked     = eris.New("daily: final wager not locked")
	ErrWagerAlreadyLocked = eris.New("daily: final wager already locked")
	ErrAppealNotEligible  = eris.New("daily: answer not eligible for appeal")
)

// MinDailyDoubleWager is the floor for a Daily Double wager.
const MinDailyDoubleWager = 5

// casAttempts bounds optimistic-concurrency replays on the progress row.
const casAttempts = 3

// challengeTZ is the zone the challenge day rolls over in.
const challengeTZ = "America/New_York"

// Service drives a player's run through a day's challenge. Safe for
// concurrent use; per-row conflicts are resolved by version checks.
type Service struct {
	store  store.Store
	grader *grading.Grader
	sf     singleflight.Group
	loc    *time.Location
	now    func() time.Time
}

// NewService builds a Service. The America/New_York zone must be present in
// the tzdata the binary ships with.
func NewService(st store.Store, grader *grading.Grader) (*Service, error) {
	loc, err := time.LoadLocation(challengeTZ)
	if err != nil {
		return nil, eris.Wrapf(err, "daily: load location %s", challengeTZ)
	}
	return &Service{
		store:  st,
		grader: grader,
		loc:    loc,
		now:    time.Now,
	}, nil
}

// Today returns the current challenge date in Eastern time.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format("2006-01-02")
}

// challenge loads a day's challenge, deduplicating concurrent fetches for the
// same date.
func (s *Service) challenge(ctx context.Context, date string) (*model.DailyChallenge, error) {
	v, err, _ := s.sf.Do("challenge:"+date, func() (any, error) {
		ch, err := s.store.GetChallenge(ctx, date)
		if err != nil {
			return nil, err
		}
		if ch == nil {
			return nil, ErrChallengeNotFound
		}
		return ch, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.DailyChallenge), nil
}

func (s *Service) clue(ctx context.Context, id int64) (*model.Clue, error) {
	c, err := s.store.GetClue(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrClueNotFound
	}
	return c, nil
}

// SubmitRequest is one board answer. Wager is required only when the slot's
// clue is a Daily Double.
type SubmitRequest struct {
	ChallengeDate string
	PlayerToken   string
	Stage         model.Stage
	Index         int
	Response      string
	Skipped       bool
	Wager         *int
}

// SubmitResult reports the outcome of a board submission.
type SubmitResult struct {
	Record   *model.AnswerRecord `json:"record"`
	Score    int                 `json:"score"`
	Next     model.NextStep      `json:"next"`
	Replayed bool                `json:"replayed"`
}

// Submit grades one board answer and advances the player's progress. A
// resubmission against a filled slot returns the stored outcome unchanged.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if req.Stage != model.StageSingle && req.Stage != model.StageDouble {
		return nil, ErrInvalidStage
	}
	if req.Index < 0 || req.Index >= model.BoardSize {
		return nil, ErrInvalidSlot
	}

	ch, err := s.challenge(ctx, req.ChallengeDate)
	if err != nil {
		return nil, err
	}
	clueID, ok := ch.ClueID(req.Stage, req.Index)
	if !ok {
		return nil, ErrInvalidSlot
	}
	clue, err := s.clue(ctx, clueID)
	if err != nil {
		return nil, err
	}

	progress, err := s.loadProgress(ctx, req.ChallengeDate, req.PlayerToken)
	if err != nil {
		return nil, err
	}
	if progress.Completed() {
		return nil, ErrChallengeComplete
	}
	if rec := progress.Slot(req.Stage, req.Index); rec != nil {
		return &SubmitResult{Record: rec, Score: progress.CurrentScore, Next: progress.Next(), Replayed: true}, nil
	}

	value := slotValue(req.Stage, req.Index)
	wager, err := s.resolveWager(clue, req, progress.CurrentScore, req.Stage)
	if err != nil {
		return nil, err
	}
	stake := value
	if wager != nil {
		stake = *wager
	}

	rec := &model.AnswerRecord{
		ClueID:   clue.ID,
		Response: req.Response,
		Skipped:  req.Skipped,
		Expected: clue.Expected,
		Value:    value,
		Wager:    wager,
	}

	// Grade outside the progress write so a slow judge call never holds the
	// row. Skips record as incorrect with no grading event.
	if !req.Skipped {
		ev, err := s.grader.Grade(ctx, grading.GradeRequest{
			Clue:          clue,
			RawResponse:   req.Response,
			ChallengeDate: req.ChallengeDate,
			PlayerToken:   req.PlayerToken,
		})
		if err != nil {
			return nil, err
		}
		rec.EventID = ev.ID
		rec.Correct = ev.Correct()
		if rec.Correct {
			rec.ScoreDelta = stake
		} else {
			rec.ScoreDelta = -stake
		}
	}

	return s.applySlot(ctx, req, rec)
}

// applySlot writes the record under the version check, replaying against a
// fresh snapshot on conflict. If a concurrent writer filled the slot first,
// their outcome wins and this submission reports as a replay.
func (s *Service) applySlot(ctx context.Context, req SubmitRequest, rec *model.AnswerRecord) (*SubmitResult, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		progress, err := s.loadProgress(ctx, req.ChallengeDate, req.PlayerToken)
		if err != nil {
			return nil, err
		}
		if progress.Completed() {
			return nil, ErrChallengeComplete
		}
		if existing := progress.Slot(req.Stage, req.Index); existing != nil {
			return &SubmitResult{Record: existing, Score: progress.CurrentScore, Next: progress.Next(), Replayed: true}, nil
		}

		progress.SetSlot(req.Stage, req.Index, rec)
		progress.CurrentScore += rec.ScoreDelta

		err = s.store.UpdateProgress(ctx, progress)
		if errors.Is(err, store.ErrVersionConflict) {
			zap.L().Debug("progress version conflict, replaying",
				zap.String("player_token", req.PlayerToken),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		return &SubmitResult{Record: rec, Score: progress.CurrentScore, Next: progress.Next()}, nil
	}
	return nil, store.ErrVersionConflict
}

// resolveWager validates a Daily Double wager against [5, max(score, round
// ceiling)]. Non-Daily-Double slots carry no wager.
func (s *Service) resolveWager(clue *model.Clue, req SubmitRequest, score int, stage model.Stage) (*int, error) {
	if !clue.IsDailyDouble {
		return nil, nil
	}
	if req.Skipped {
		return nil, nil
	}
	if req.Wager == nil {
		return nil, ErrWagerRequired
	}
	ceiling := model.RoundCeiling(stage)
	if score > ceiling {
		ceiling = score
	}
	if *req.Wager < MinDailyDoubleWager || *req.Wager > ceiling {
		return nil, ErrWagerOutOfRange
	}
	w := *req.Wager
	return &w, nil
}

// LockFinalWager records the final wager. The board must be complete, and a
// locked wager never changes.
func (s *Service) LockFinalWager(ctx context.Context, challengeDate, playerToken string, wager int) (*model.PlayerProgress, error) {
	for attempt := 0; attempt < casAttempts; attempt++ {
		progress, err := s.loadProgress(ctx, challengeDate, playerToken)
		if err != nil {
			return nil, err
		}
		if progress.Completed() {
			return nil, ErrChallengeComplete
		}
		if !progress.BoardComplete() {
			return nil, ErrBoardIncomplete
		}
		if progress.FinalWager != nil {
			return nil, ErrWagerAlreadyLocked
		}

		max := progress.CurrentScore
		if max < 0 {
			max = 0
		}
		if wager < 0 || wager > max {
			return nil, ErrWagerOutOfRange
		}

		w := wager
		progress.FinalWager = &w
		err = s.store.UpdateProgress(ctx, progress)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return progress, nil
	}
	return nil, store.ErrVersionConflict
}

// FinalResult reports the outcome of the final submission.
type FinalResult struct {
	Final *model.FinalRecord `json:"final"`
	Score int                `json:"score"`
}

// SubmitFinal grades the final response against the locked wager and closes
// out the run. Resubmission after completion returns the stored outcome.
func (s *Service) SubmitFinal(ctx context.Context, challengeDate, playerToken, response string) (*FinalResult, error) {
	ch, err := s.challenge(ctx, challengeDate)
	if err != nil {
		return nil, err
	}
	clue, err := s.clue(ctx, ch.FinalClueID)
	if err != nil {
		return nil, err
	}

	progress, err := s.loadProgress(ctx, challengeDate, playerToken)
	if err != nil {
		return nil, err
	}
	if progress.Completed() {
		return &FinalResult{Final: progress.Final, Score: progress.CurrentScore}, nil
	}
	if progress.FinalWager == nil {
		return nil, ErrWagerNotLocked
	}

	ev, err := s.grader.Grade(ctx, grading.GradeRequest{
		Clue:          clue,
		RawResponse:   response,
		ChallengeDate: challengeDate,
		PlayerToken:   playerToken,
	})
	if err != nil {
		return nil, err
	}

	wager := *progress.FinalWager
	delta := -wager
	if ev.Correct() {
		delta = wager
	}
	now := s.now().UTC()
	final := &model.FinalRecord{
		EventID:     ev.ID,
		Response:    response,
		Correct:     ev.Correct(),
		Expected:    clue.Expected,
		Wager:       wager,
		ScoreDelta:  delta,
		CompletedAt: &now,
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		progress, err = s.loadProgress(ctx, challengeDate, playerToken)
		if err != nil {
			return nil, err
		}
		if progress.Completed() {
			return &FinalResult{Final: progress.Final, Score: progress.CurrentScore}, nil
		}
		if progress.FinalWager == nil {
			return nil, ErrWagerNotLocked
		}

		progress.Final = final
		progress.CurrentScore += delta
		err = s.store.UpdateProgress(ctx, progress)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &FinalResult{Final: final, Score: progress.CurrentScore}, nil
	}
	return nil, store.ErrVersionConflict
}

// Reset wipes a player's run for the date so they can start over.
func (s *Service) Reset(ctx context.Context, challengeDate, playerToken string) error {
	return s.store.DeleteProgress(ctx, challengeDate, playerToken)
}

// AppealRequest targets one graded board or final answer.
type AppealRequest struct {
	ChallengeDate string
	PlayerToken   string
	Stage         model.Stage
	Index         int
	Justification string
}

// AppealResult reports the appeal outcome.
type AppealResult struct {
	Overturned bool                `json:"overturned"`
	EventID    string              `json:"event_id"`
	ReasonCode string              `json:"reason_code"`
	Reason     string              `json:"reason"`
	Confidence float64             `json:"confidence"`
	Score      int                 `json:"score"`
	Record     *model.AnswerRecord `json:"record,omitempty"`
	Final      *model.FinalRecord  `json:"final,omitempty"`
}

// Appeal re-judges a graded incorrect answer. Skipped slots and answers
// already marked correct are not eligible. On overturn the stored record
// flips and the score moves by the difference between the new and prior
// deltas.
func (s *Service) Appeal(ctx context.Context, req AppealRequest) (*AppealResult, error) {
	if !req.Stage.Valid() {
		return nil, ErrInvalidStage
	}

	progress, err := s.loadProgress(ctx, req.ChallengeDate, req.PlayerToken)
	if err != nil {
		return nil, err
	}

	var response, eventID string
	var prevDelta, stake int
	if req.Stage == model.StageFinal {
		if progress.Final == nil || progress.Final.Correct || progress.Final.EventID == "" {
			return nil, ErrAppealNotEligible
		}
		response = progress.Final.Response
		eventID = progress.Final.EventID
		prevDelta = progress.Final.ScoreDelta
		stake = progress.Final.Wager
	} else {
		if req.Index < 0 || req.Index >= model.BoardSize {
			return nil, ErrInvalidSlot
		}
		rec := progress.Slot(req.Stage, req.Index)
		if rec == nil || rec.Correct || rec.Skipped || rec.EventID == "" {
			return nil, ErrAppealNotEligible
		}
		response = rec.Response
		eventID = rec.EventID
		prevDelta = rec.ScoreDelta
		stake = rec.Value
		if rec.Wager != nil {
			stake = *rec.Wager
		}
	}

	prior, err := s.store.GetGradingEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, ErrAppealNotEligible
	}

	clue, err := s.clue(ctx, prior.ClueID)
	if err != nil {
		return nil, err
	}

	ev, err := s.grader.Regrade(ctx, prior, grading.GradeRequest{
		Clue:          clue,
		RawResponse:   response,
		ChallengeDate: req.ChallengeDate,
		PlayerToken:   req.PlayerToken,
		TraceID:       prior.TraceID,
		Justification: req.Justification,
	})
	if err != nil {
		return nil, err
	}

	result := &AppealResult{
		Overturned: ev.Correct(),
		EventID:    ev.ID,
		ReasonCode: ev.JudgeReasonCode,
		Reason:     ev.JudgeReasonText,
		Confidence: ev.JudgeConfidence,
		Score:      progress.CurrentScore,
	}
	if !ev.Correct() {
		return result, nil
	}

	adjustment := stake - prevDelta
	for attempt := 0; attempt < casAttempts; attempt++ {
		progress, err = s.loadProgress(ctx, req.ChallengeDate, req.PlayerToken)
		if err != nil {
			return nil, err
		}

		if req.Stage == model.StageFinal {
			if progress.Final == nil || progress.Final.Correct {
				return nil, ErrAppealNotEligible
			}
			progress.Final.Correct = true
			progress.Final.ScoreDelta = stake
			progress.Final.EventID = ev.ID
			result.Final = progress.Final
		} else {
			rec := progress.Slot(req.Stage, req.Index)
			if rec == nil || rec.Correct {
				return nil, ErrAppealNotEligible
			}
			rec.Correct = true
			rec.ScoreDelta = stake
			rec.EventID = ev.ID
			result.Record = rec
		}
		progress.CurrentScore += adjustment

		err = s.store.UpdateProgress(ctx, progress)
		if errors.Is(err, store.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		result.Score = progress.CurrentScore
		return result, nil
	}
	return nil, store.ErrVersionConflict
}

func (s *Service) loadProgress(ctx context.Context, challengeDate, playerToken string) (*model.PlayerProgress, error) {
	p, err := s.store.GetProgress(ctx, challengeDate, playerToken)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return s.store.CreateProgress(ctx, challengeDate, playerToken)
	}
	return p, nil
}

func slotValue(stage model.Stage, index int) int {
	if stage == model.StageDouble {
		return model.DoubleValues[index]
	}
	return model.SingleValues[index]
}
