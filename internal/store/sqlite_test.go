package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cluegrid/cluegrid/internal/model"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLiteClueRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	n, err := st.InsertClues(ctx, []model.Clue{
		{ID: 1, Category: "POTUS", ClueText: "Gettysburg Address", Expected: "Abraham Lincoln", Alternates: []string{"Honest Abe"}, Value: 400, Round: 1},
		{ID: 2, Category: "POTUS", ClueText: "New Deal", Expected: "Franklin Roosevelt (or FDR)", Value: 800, Round: 1, IsDailyDouble: true},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	clue, err := st.GetClue(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, clue)
	assert.Equal(t, "Abraham Lincoln", clue.Expected)
	assert.Equal(t, []string{"Honest Abe"}, clue.Alternates)

	missing, err := st.GetClue(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, missing)

	clues, err := st.GetClues(ctx, []int64{1, 2, 99})
	require.NoError(t, err)
	assert.Len(t, clues, 2)
	assert.True(t, clues[2].IsDailyDouble)
}

func TestSQLiteChallengeRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	ch := &model.DailyChallenge{
		ChallengeDate:      "2026-09-01",
		SingleCategoryName: "US HISTORY",
		SingleClueIDs:      []int64{1, 2, 3, 4, 5},
		DoubleCategoryName: "WORLD CAPITALS",
		DoubleClueIDs:      []int64{6, 7, 8, 9, 10},
		FinalCategoryName:  "SHAKESPEARE",
		FinalClueID:        11,
	}
	require.NoError(t, st.UpsertChallenge(ctx, ch))

	got, err := st.GetChallenge(ctx, "2026-09-01")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, ch.SingleClueIDs, got.SingleClueIDs)
	assert.Equal(t, int64(11), got.FinalClueID)

	// Upsert replaces in place.
	ch.FinalClueID = 12
	require.NoError(t, st.UpsertChallenge(ctx, ch))
	got, err = st.GetChallenge(ctx, "2026-09-01")
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.FinalClueID)

	none, err := st.GetChallenge(ctx, "1999-12-31")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSQLiteGradingEventRoundTrip(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	ev := &model.GradingEvent{
		TraceID:            "trace-1",
		ChallengeDate:      "2026-09-01",
		PlayerToken:        "tok-1",
		ClueID:             7,
		RawResponse:        "Lincoln",
		ExpectedSnapshot:   "Abraham Lincoln",
		FinalDecision:      model.DecisionIncorrect,
		DecisionSource:     model.SourceLLM,
		JudgeInvoked:       true,
		JudgeReasonCode:    "no_match",
		SimilarityScore:    0.64,
		LatencyTotalMS:     120,
	}
	require.NoError(t, st.InsertGradingEvent(ctx, ev))
	require.NotEmpty(t, ev.ID)

	got, err := st.GetGradingEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "trace-1", got.TraceID)
	assert.Equal(t, model.DecisionIncorrect, got.FinalDecision)
	assert.True(t, got.JudgeInvoked)
	assert.InDelta(t, 0.64, got.SimilarityScore, 1e-9)
}

func TestSQLiteProgressLifecycle(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	p, err := st.CreateProgress(ctx, "2026-09-01", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.Version)

	// A second create returns the existing row.
	again, err := st.CreateProgress(ctx, "2026-09-01", "tok-1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)

	p.CurrentScore = 200
	p.SetSlot(model.StageSingle, 0, &model.AnswerRecord{ClueID: 1, Response: "Lincoln", Correct: true, Value: 200, ScoreDelta: 200})
	require.NoError(t, st.UpdateProgress(ctx, p))
	assert.Equal(t, int64(2), p.Version)

	got, err := st.GetProgress(ctx, "2026-09-01", "tok-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 200, got.CurrentScore)
	require.NotNil(t, got.Answers.Single[0])
	assert.True(t, got.Answers.Single[0].Correct)

	// Stale version loses.
	stale := *got
	stale.Version = 1
	assert.ErrorIs(t, st.UpdateProgress(ctx, &stale), ErrVersionConflict)

	require.NoError(t, st.DeleteProgress(ctx, "2026-09-01", "tok-1"))
	gone, err := st.GetProgress(ctx, "2026-09-01", "tok-1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestSQLiteProgressFinalFields(t *testing.T) {
	st := newTestSQLite(t)
	ctx := context.Background()

	p, err := st.CreateProgress(ctx, "2026-09-01", "tok-2")
	require.NoError(t, err)

	wager := 500
	p.FinalWager = &wager
	require.NoError(t, st.UpdateProgress(ctx, p))

	got, err := st.GetProgress(ctx, "2026-09-01", "tok-2")
	require.NoError(t, err)
	require.NotNil(t, got.FinalWager)
	assert.Equal(t, 500, *got.FinalWager)
	assert.Nil(t, got.Final)
}
