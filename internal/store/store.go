// Package store persists clues, daily challenges, grading events, and player
// progress. Two implementations: PostgresStore for deployments, SQLiteStore
// for local play and tests.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/cluegrid/cluegrid/internal/model"
)

// ErrVersionConflict is returned by UpdateProgress when the row's version no
// longer matches the snapshot the caller mutated. Callers reload and replay.
var ErrVersionConflict = eris.New("store: progress version conflict")

// Store defines the persistence interface for the grading engine and the
// daily challenge state machine.
type Store interface {
	// Clues
	GetClue(ctx context.Context, id int64) (*model.Clue, error)
	GetClues(ctx context.Context, ids []int64) (map[int64]*model.Clue, error)
	InsertClues(ctx context.Context, clues []model.Clue) (int64, error)

	// Daily challenges
	GetChallenge(ctx context.Context, challengeDate string) (*model.DailyChallenge, error)
	UpsertChallenge(ctx context.Context, ch *model.DailyChallenge) error

	// Grading events (append-only)
	InsertGradingEvent(ctx context.Context, ev *model.GradingEvent) error
	GetGradingEvent(ctx context.Context, id string) (*model.GradingEvent, error)

	// Player progress
	GetProgress(ctx context.Context, challengeDate, playerToken string) (*model.PlayerProgress, error)
	CreateProgress(ctx context.Context, challengeDate, playerToken string) (*model.PlayerProgress, error)
	UpdateProgress(ctx context.Context, p *model.PlayerProgress) error
	DeleteProgress(ctx context.Context, challengeDate, playerToken string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
