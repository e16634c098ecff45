package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/cluegrid/cluegrid/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given DSN and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS clues (
	id                INTEGER PRIMARY KEY,
	category          TEXT NOT NULL,
	clue_text         TEXT NOT NULL,
	expected_response TEXT NOT NULL,
	alternates        TEXT NOT NULL DEFAULT '[]',
	value             INTEGER NOT NULL DEFAULT 0,
	round             INTEGER NOT NULL DEFAULT 1,
	is_daily_double   INTEGER NOT NULL DEFAULT 0,
	air_date          TEXT
);

CREATE INDEX IF NOT EXISTS idx_clues_category ON clues(category);

CREATE TABLE IF NOT EXISTS daily_challenges (
	challenge_date       TEXT PRIMARY KEY,
	single_category_name TEXT NOT NULL,
	single_clue_ids      TEXT NOT NULL,
	double_category_name TEXT NOT NULL,
	double_clue_ids      TEXT NOT NULL,
	final_category_name  TEXT NOT NULL,
	final_clue_id        INTEGER NOT NULL,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS grading_events (
	id                   TEXT PRIMARY KEY,
	trace_id             TEXT NOT NULL,
	challenge_date       TEXT,
	player_token         TEXT,
	clue_id              INTEGER NOT NULL,
	final_decision       TEXT NOT NULL,
	decision_source      TEXT NOT NULL,
	overturn_of_event_id TEXT,
	detail               TEXT NOT NULL,
	created_at           DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_grading_events_clue_id ON grading_events(clue_id);
CREATE INDEX IF NOT EXISTS idx_grading_events_player ON grading_events(player_token, challenge_date);

CREATE TABLE IF NOT EXISTS daily_player_progress (
	id             TEXT PRIMARY KEY,
	challenge_date TEXT NOT NULL,
	player_token   TEXT NOT NULL,
	current_score  INTEGER NOT NULL DEFAULT 0,
	answers        TEXT NOT NULL,
	final_wager    INTEGER,
	final          TEXT,
	version        INTEGER NOT NULL DEFAULT 1,
	created_at     DATETIME NOT NULL,
	updated_at     DATETIME NOT NULL,
	UNIQUE (challenge_date, player_token)
);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetClue(ctx context.Context, id int64) (*model.Clue, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, category, clue_text, expected_response, alternates, value, round, is_daily_double, air_date
		 FROM clues WHERE id = ?`,
		id,
	)
	c, err := scanClue(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get clue %d", id)
	}
	return c, nil
}

func (s *SQLiteStore) GetClues(ctx context.Context, ids []int64) (map[int64]*model.Clue, error) {
	if len(ids) == 0 {
		return map[int64]*model.Clue{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, category, clue_text, expected_response, alternates, value, round, is_daily_double, air_date
		 FROM clues WHERE id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get clues")
	}
	defer rows.Close()

	out := make(map[int64]*model.Clue, len(ids))
	for rows.Next() {
		c, err := scanClue(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan clue")
		}
		out[c.ID] = c
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate clues")
}

func scanClue(scan func(dest ...any) error) (*model.Clue, error) {
	var c model.Clue
	var alternatesJSON string
	var airDate sql.NullString
	if err := scan(&c.ID, &c.Category, &c.ClueText, &c.Expected, &alternatesJSON, &c.Value, &c.Round, &c.IsDailyDouble, &airDate); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(alternatesJSON), &c.Alternates); err != nil {
		return nil, err
	}
	c.AirDate = airDate.String
	return &c, nil
}

func (s *SQLiteStore) InsertClues(ctx context.Context, clues []model.Clue) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin insert clues")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO clues (id, category, clue_text, expected_response, alternates, value, round, is_daily_double, air_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert clues")
	}
	defer stmt.Close()

	var n int64
	for _, c := range clues {
		alternatesJSON, err := json.Marshal(alternatesOrEmpty(c.Alternates))
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal alternates")
		}
		if _, err := stmt.ExecContext(ctx, c.ID, c.Category, c.ClueText, c.Expected, string(alternatesJSON), c.Value, c.Round, c.IsDailyDouble, c.AirDate); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert clue %d", c.ID)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit insert clues")
	}
	return n, nil
}

func (s *SQLiteStore) GetChallenge(ctx context.Context, challengeDate string) (*model.DailyChallenge, error) {
	var ch model.DailyChallenge
	var singleJSON, doubleJSON string

	err := s.db.QueryRowContext(ctx,
		`SELECT challenge_date, single_category_name, single_clue_ids, double_category_name, double_clue_ids, final_category_name, final_clue_id
		 FROM daily_challenges WHERE challenge_date = ?`,
		challengeDate,
	).Scan(&ch.ChallengeDate, &ch.SingleCategoryName, &singleJSON, &ch.DoubleCategoryName, &doubleJSON, &ch.FinalCategoryName, &ch.FinalClueID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get challenge %s", challengeDate)
	}

	if err := json.Unmarshal([]byte(singleJSON), &ch.SingleClueIDs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal single clue ids")
	}
	if err := json.Unmarshal([]byte(doubleJSON), &ch.DoubleClueIDs); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal double clue ids")
	}
	return &ch, nil
}

func (s *SQLiteStore) UpsertChallenge(ctx context.Context, ch *model.DailyChallenge) error {
	singleJSON, err := json.Marshal(ch.SingleClueIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal single clue ids")
	}
	doubleJSON, err := json.Marshal(ch.DoubleClueIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal double clue ids")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO daily_challenges (challenge_date, single_category_name, single_clue_ids, double_category_name, double_clue_ids, final_category_name, final_clue_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (challenge_date) DO UPDATE SET
			single_category_name = excluded.single_category_name,
			single_clue_ids      = excluded.single_clue_ids,
			double_category_name = excluded.double_category_name,
			double_clue_ids      = excluded.double_clue_ids,
			final_category_name  = excluded.final_category_name,
			final_clue_id        = excluded.final_clue_id`,
		ch.ChallengeDate, ch.SingleCategoryName, string(singleJSON), ch.DoubleCategoryName, string(doubleJSON), ch.FinalCategoryName, ch.FinalClueID,
	)
	return eris.Wrapf(err, "sqlite: upsert challenge %s", ch.ChallengeDate)
}

func (s *SQLiteStore) InsertGradingEvent(ctx context.Context, ev *model.GradingEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	detail, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal grading event")
	}

	var overturn any
	if ev.OverturnOfEventID != "" {
		overturn = ev.OverturnOfEventID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO grading_events (id, trace_id, challenge_date, player_token, clue_id, final_decision, decision_source, overturn_of_event_id, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TraceID, ev.ChallengeDate, ev.PlayerToken, ev.ClueID,
		string(ev.FinalDecision), string(ev.DecisionSource), overturn, string(detail), ev.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert grading event")
}

func (s *SQLiteStore) GetGradingEvent(ctx context.Context, id string) (*model.GradingEvent, error) {
	var detail string
	err := s.db.QueryRowContext(ctx,
		`SELECT detail FROM grading_events WHERE id = ?`,
		id,
	).Scan(&detail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get grading event %s", id)
	}

	var ev model.GradingEvent
	if err := json.Unmarshal([]byte(detail), &ev); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal grading event")
	}
	return &ev, nil
}

func (s *SQLiteStore) GetProgress(ctx context.Context, challengeDate, playerToken string) (*model.PlayerProgress, error) {
	var p model.PlayerProgress
	var answersJSON string
	var finalJSON sql.NullString
	var finalWager sql.NullInt64

	err := s.db.QueryRowContext(ctx,
		`SELECT id, challenge_date, player_token, current_score, answers, final_wager, final, version, created_at, updated_at
		 FROM daily_player_progress WHERE challenge_date = ? AND player_token = ?`,
		challengeDate, playerToken,
	).Scan(&p.ID, &p.ChallengeDate, &p.PlayerToken, &p.CurrentScore, &answersJSON, &finalWager, &finalJSON, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get progress %s/%s", challengeDate, playerToken)
	}

	if err := json.Unmarshal([]byte(answersJSON), &p.Answers); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal answers")
	}
	if finalWager.Valid {
		w := int(finalWager.Int64)
		p.FinalWager = &w
	}
	if finalJSON.Valid && finalJSON.String != "" {
		if err := json.Unmarshal([]byte(finalJSON.String), &p.Final); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal final")
		}
	}
	return &p, nil
}

func (s *SQLiteStore) CreateProgress(ctx context.Context, challengeDate, playerToken string) (*model.PlayerProgress, error) {
	now := time.Now().UTC()
	p := &model.PlayerProgress{
		ID:            uuid.New().String(),
		ChallengeDate: challengeDate,
		PlayerToken:   playerToken,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	answersJSON, err := json.Marshal(p.Answers)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal answers")
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_player_progress (id, challenge_date, player_token, current_score, answers, version, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, 1, ?, ?)
		 ON CONFLICT (challenge_date, player_token) DO NOTHING`,
		p.ID, challengeDate, playerToken, string(answersJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create progress")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.GetProgress(ctx, challengeDate, playerToken)
	}
	return p, nil
}

func (s *SQLiteStore) UpdateProgress(ctx context.Context, p *model.PlayerProgress) error {
	answersJSON, err := json.Marshal(p.Answers)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal answers")
	}
	var finalJSON any
	if p.Final != nil {
		raw, err := json.Marshal(p.Final)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal final")
		}
		finalJSON = string(raw)
	}
	var finalWager any
	if p.FinalWager != nil {
		finalWager = *p.FinalWager
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE daily_player_progress
		 SET current_score = ?, answers = ?, final_wager = ?, final = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		p.CurrentScore, string(answersJSON), finalWager, finalJSON, now, p.ID, p.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update progress %s", p.ID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrVersionConflict
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) DeleteProgress(ctx context.Context, challengeDate, playerToken string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM daily_player_progress WHERE challenge_date = ? AND player_token = ?`,
		challengeDate, playerToken,
	)
	return eris.Wrapf(err, "sqlite: delete progress %s/%s", challengeDate, playerToken)
}
