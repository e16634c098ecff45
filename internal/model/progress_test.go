package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStageValid(t *testing.T) {
	assert.True(t, StageSingle.Valid())
	assert.True(t, StageDouble.Valid())
	assert.True(t, StageFinal.Valid())
	assert.False(t, Stage("bonus").Valid())
	assert.False(t, Stage("").Valid())
}

func TestRoundCeiling(t *testing.T) {
	assert.Equal(t, 1000, RoundCeiling(StageSingle))
	assert.Equal(t, 2000, RoundCeiling(StageDouble))
}

func TestProgressNext(t *testing.T) {
	p := &PlayerProgress{}
	assert.Equal(t, NextStep{Stage: StageSingle, Index: 0}, p.Next())

	for i := 0; i < BoardSize; i++ {
		p.SetSlot(StageSingle, i, &AnswerRecord{ClueID: int64(i + 1)})
	}
	assert.Equal(t, NextStep{Stage: StageDouble, Index: 0}, p.Next())

	p.SetSlot(StageDouble, 0, &AnswerRecord{ClueID: 6})
	assert.Equal(t, NextStep{Stage: StageDouble, Index: 1}, p.Next())

	for i := 1; i < BoardSize; i++ {
		p.SetSlot(StageDouble, i, &AnswerRecord{ClueID: int64(i + 6)})
	}
	assert.True(t, p.BoardComplete())
	assert.Equal(t, NextStep{Stage: StageFinal}, p.Next())

	now := time.Now()
	p.Final = &FinalRecord{Correct: true, CompletedAt: &now}
	assert.True(t, p.Completed())
	assert.Equal(t, NextStep{Done: true}, p.Next())
}

func TestProgressSlotBounds(t *testing.T) {
	p := &PlayerProgress{}
	assert.Nil(t, p.Slot(StageSingle, -1))
	assert.Nil(t, p.Slot(StageDouble, BoardSize))
	assert.Nil(t, p.Slot(StageFinal, 0))
}

func TestFinalWithoutCompletionIsNotComplete(t *testing.T) {
	p := &PlayerProgress{Final: &FinalRecord{Wager: 500}}
	assert.False(t, p.Completed())
}
