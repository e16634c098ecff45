package model

import "time"

// Stage identifies a section of the daily challenge board.
type Stage string

const (
	StageSingle Stage = "single"
	StageDouble Stage = "double"
	StageFinal  Stage = "final"
)

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	return s == StageSingle || s == StageDouble || s == StageFinal
}

// BoardSize is the number of clues per board stage.
const BoardSize = 5

// SingleValues and DoubleValues are the fixed dollar values per slot.
var (
	SingleValues = [BoardSize]int{200, 400, 600, 800, 1000}
	DoubleValues = [BoardSize]int{400, 800, 1200, 1600, 2000}
)

// RoundCeiling returns the highest clue value on the given stage's board,
// used as the Daily Double wager ceiling for players below that score.
func RoundCeiling(stage Stage) int {
	if stage == StageDouble {
		return DoubleValues[BoardSize-1]
	}
	return SingleValues[BoardSize-1]
}

// AnswerRecord is one graded (or skipped) board slot.
type AnswerRecord struct {
	ClueID     int64  `json:"clue_id"`
	EventID    string `json:"event_id,omitempty"`
	Response   string `json:"response"`
	Correct    bool   `json:"correct"`
	Skipped    bool   `json:"skipped"`
	Expected   string `json:"expected"`
	Value      int    `json:"value"`
	ScoreDelta int    `json:"score_delta"`
	Wager      *int   `json:"wager,omitempty"`
}

// FinalRecord is the final-stage outcome. The wager is locked before the
// response is submitted; CompletedAt is set only once the response lands.
type FinalRecord struct {
	EventID     string     `json:"event_id,omitempty"`
	Response    string     `json:"response"`
	Correct     bool       `json:"correct"`
	Expected    string     `json:"expected"`
	Wager       int        `json:"wager"`
	ScoreDelta  int        `json:"score_delta"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Answers is the fixed-size board state stored as one JSON document on the
// progress row. Nil entries are unanswered slots.
type Answers struct {
	Single [BoardSize]*AnswerRecord `json:"single"`
	Double [BoardSize]*AnswerRecord `json:"double"`
}

// PlayerProgress is one player's run through a day's challenge. Mutated only
// by the daily state machine; the Version column guards concurrent writers.
type PlayerProgress struct {
	ID            string
	ChallengeDate string
	PlayerToken   string
	CurrentScore  int
	Answers       Answers
	FinalWager    *int
	Final         *FinalRecord
	Version       int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Completed reports whether the final response has been submitted.
func (p *PlayerProgress) Completed() bool {
	return p.Final != nil && p.Final.CompletedAt != nil
}

// BoardComplete reports whether all ten single and double slots are filled.
func (p *PlayerProgress) BoardComplete() bool {
	for _, rec := range p.Answers.Single {
		if rec == nil {
			return false
		}
	}
	for _, rec := range p.Answers.Double {
		if rec == nil {
			return false
		}
	}
	return true
}

// Slot returns the answer record at (stage, index), or nil if unanswered.
func (p *PlayerProgress) Slot(stage Stage, index int) *AnswerRecord {
	switch stage {
	case StageSingle:
		if index >= 0 && index < BoardSize {
			return p.Answers.Single[index]
		}
	case StageDouble:
		if index >= 0 && index < BoardSize {
			return p.Answers.Double[index]
		}
	}
	return nil
}

// SetSlot stores an answer record at (stage, index).
func (p *PlayerProgress) SetSlot(stage Stage, index int, rec *AnswerRecord) {
	switch stage {
	case StageSingle:
		p.Answers.Single[index] = rec
	case StageDouble:
		p.Answers.Double[index] = rec
	}
}

// NextStep is the derived "what should the player do next" view.
type NextStep struct {
	Stage Stage `json:"stage,omitempty"`
	Index int   `json:"index"`
	Done  bool  `json:"done"`
}

// Next returns the first actionable step: the first empty single slot, then
// the first empty double slot, then final, then done. A pure function of
// state so progression is trivially testable.
func (p *PlayerProgress) Next() NextStep {
	for i, rec := range p.Answers.Single {
		if rec == nil {
			return NextStep{Stage: StageSingle, Index: i}
		}
	}
	for i, rec := range p.Answers.Double {
		if rec == nil {
			return NextStep{Stage: StageDouble, Index: i}
		}
	}
	if !p.Completed() {
		return NextStep{Stage: StageFinal}
	}
	return NextStep{Done: true}
}
