package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/cluegrid/cluegrid/internal/db"
	"github.com/cluegrid/cluegrid/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., the clue bulk loader).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS clues (
	id                BIGINT PRIMARY KEY,
	category          TEXT NOT NULL,
	clue_text         TEXT NOT NULL,
	expected_response TEXT NOT NULL,
	alternates        JSONB NOT NULL DEFAULT '[]',
	value             INTEGER NOT NULL DEFAULT 0,
	round             INTEGER NOT NULL DEFAULT 1,
	is_daily_double   BOOLEAN NOT NULL DEFAULT FALSE,
	air_date          TEXT
);

CREATE INDEX IF NOT EXISTS idx_clues_category ON clues(category);

CREATE TABLE IF NOT EXISTS daily_challenges (
	challenge_date       TEXT PRIMARY KEY,
	single_category_name TEXT NOT NULL,
	single_clue_ids      JSONB NOT NULL,
	double_category_name TEXT NOT NULL,
	double_clue_ids      JSONB NOT NULL,
	final_category_name  TEXT NOT NULL,
	final_clue_id        BIGINT NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS grading_events (
	id                  TEXT PRIMARY KEY,
	trace_id            TEXT NOT NULL,
	challenge_date      TEXT,
	player_token        TEXT,
	clue_id             BIGINT NOT NULL,
	final_decision      TEXT NOT NULL,
	decision_source     TEXT NOT NULL,
	overturn_of_event_id TEXT,
	detail              JSONB NOT NULL,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_grading_events_clue_id ON grading_events(clue_id);
CREATE INDEX IF NOT EXISTS idx_grading_events_player ON grading_events(player_token, challenge_date);

CREATE TABLE IF NOT EXISTS daily_player_progress (
	id             TEXT PRIMARY KEY,
	challenge_date TEXT NOT NULL,
	player_token   TEXT NOT NULL,
	current_score  INTEGER NOT NULL DEFAULT 0,
	answers        JSONB NOT NULL,
	final_wager    INTEGER,
	final          JSONB,
	version        BIGINT NOT NULL DEFAULT 1,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (challenge_date, player_token)
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetClue(ctx context.Context, id int64) (*model.Clue, error) {
	var c model.Clue
	var alternatesJSON []byte
	var airDate *string

	err := s.pool.QueryRow(ctx,
		`SELECT id, category, clue_text, expected_response, alternates, value, round, is_daily_double, air_date
		 FROM clues WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.Category, &c.ClueText, &c.Expected, &alternatesJSON, &c.Value, &c.Round, &c.IsDailyDouble, &airDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get clue %d", id)
	}

	if err := json.Unmarshal(alternatesJSON, &c.Alternates); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal alternates")
	}
	if airDate != nil {
		c.AirDate = *airDate
	}
	return &c, nil
}

func (s *PostgresStore) GetClues(ctx context.Context, ids []int64) (map[int64]*model.Clue, error) {
	if len(ids) == 0 {
		return map[int64]*model.Clue{}, nil
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, category, clue_text, expected_response, alternates, value, round, is_daily_double, air_date
		 FROM clues WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get clues")
	}
	defer rows.Close()

	out := make(map[int64]*model.Clue, len(ids))
	for rows.Next() {
		var c model.Clue
		var alternatesJSON []byte
		var airDate *string
		if err := rows.Scan(&c.ID, &c.Category, &c.ClueText, &c.Expected, &alternatesJSON, &c.Value, &c.Round, &c.IsDailyDouble, &airDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan clue")
		}
		if err := json.Unmarshal(alternatesJSON, &c.Alternates); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal alternates")
		}
		if airDate != nil {
			c.AirDate = *airDate
		}
		out[c.ID] = &c
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate clues")
}

func (s *PostgresStore) InsertClues(ctx context.Context, clues []model.Clue) (int64, error) {
	columns := []string{"id", "category", "clue_text", "expected_response", "alternates", "value", "round", "is_daily_double", "air_date"}
	rows := make([][]any, 0, len(clues))
	for _, c := range clues {
		alternatesJSON, err := json.Marshal(alternatesOrEmpty(c.Alternates))
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal alternates")
		}
		rows = append(rows, []any{c.ID, c.Category, c.ClueText, c.Expected, alternatesJSON, c.Value, c.Round, c.IsDailyDouble, c.AirDate})
	}
	return db.CopyFrom(ctx, s.pool, "clues", columns, rows)
}

func (s *PostgresStore) GetChallenge(ctx context.Context, challengeDate string) (*model.DailyChallenge, error) {
	var ch model.DailyChallenge
	var singleJSON, doubleJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT challenge_date, single_category_name, single_clue_ids, double_category_name, double_clue_ids, final_category_name, final_clue_id
		 FROM daily_challenges WHERE challenge_date = $1`,
		challengeDate,
	).Scan(&ch.ChallengeDate, &ch.SingleCategoryName, &singleJSON, &ch.DoubleCategoryName, &doubleJSON, &ch.FinalCategoryName, &ch.FinalClueID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get challenge %s", challengeDate)
	}

	if err := json.Unmarshal(singleJSON, &ch.SingleClueIDs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal single clue ids")
	}
	if err := json.Unmarshal(doubleJSON, &ch.DoubleClueIDs); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal double clue ids")
	}
	return &ch, nil
}

func (s *PostgresStore) UpsertChallenge(ctx context.Context, ch *model.DailyChallenge) error {
	singleJSON, err := json.Marshal(ch.SingleClueIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal single clue ids")
	}
	doubleJSON, err := json.Marshal(ch.DoubleClueIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal double clue ids")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO daily_challenges (challenge_date, single_category_name, single_clue_ids, double_category_name, double_clue_ids, final_category_name, final_clue_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (challenge_date) DO UPDATE SET
			single_category_name = EXCLUDED.single_category_name,
			single_clue_ids      = EXCLUDED.single_clue_ids,
			double_category_name = EXCLUDED.double_category_name,
			double_clue_ids      = EXCLUDED.double_clue_ids,
			final_category_name  = EXCLUDED.final_category_name,
			final_clue_id        = EXCLUDED.final_clue_id`,
		ch.ChallengeDate, ch.SingleCategoryName, singleJSON, ch.DoubleCategoryName, doubleJSON, ch.FinalCategoryName, ch.FinalClueID,
	)
	return eris.Wrapf(err, "postgres: upsert challenge %s", ch.ChallengeDate)
}

func (s *PostgresStore) InsertGradingEvent(ctx context.Context, ev *model.GradingEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	detail, err := json.Marshal(ev)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal grading event")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO grading_events (id, trace_id, challenge_date, player_token, clue_id, final_decision, decision_source, overturn_of_event_id, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)`,
		ev.ID, ev.TraceID, ev.ChallengeDate, ev.PlayerToken, ev.ClueID,
		string(ev.FinalDecision), string(ev.DecisionSource), ev.OverturnOfEventID, detail, ev.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert grading event")
}

func (s *PostgresStore) GetGradingEvent(ctx context.Context, id string) (*model.GradingEvent, error) {
	var detail []byte
	err := s.pool.QueryRow(ctx,
		`SELECT detail FROM grading_events WHERE id = $1`,
		id,
	).Scan(&detail)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get grading event %s", id)
	}

	var ev model.GradingEvent
	if err := json.Unmarshal(detail, &ev); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal grading event")
	}
	return &ev, nil
}

func (s *PostgresStore) GetProgress(ctx context.Context, challengeDate, playerToken string) (*model.PlayerProgress, error) {
	var p model.PlayerProgress
	var answersJSON []byte
	var finalJSON []byte

	err := s.pool.QueryRow(ctx,
		`SELECT id, challenge_date, player_token, current_score, answers, final_wager, final, version, created_at, updated_at
		 FROM daily_player_progress WHERE challenge_date = $1 AND player_token = $2`,
		challengeDate, playerToken,
	).Scan(&p.ID, &p.ChallengeDate, &p.PlayerToken, &p.CurrentScore, &answersJSON, &p.FinalWager, &finalJSON, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get progress %s/%s", challengeDate, playerToken)
	}

	if err := json.Unmarshal(answersJSON, &p.Answers); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal answers")
	}
	if len(finalJSON) > 0 {
		if err := json.Unmarshal(finalJSON, &p.Final); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal final")
		}
	}
	return &p, nil
}

func (s *PostgresStore) CreateProgress(ctx context.Context, challengeDate, playerToken string) (*model.PlayerProgress, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal answers")
	}

	// The unique constraint arbitrates concurrent first submissions; the
	// loser reads back the winner's row.
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO daily_player_progress (id, challenge_date, player_token, current_score, answers, version, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, 1, $5, $6)
		 ON CONFLICT (challenge_date, player_token) DO NOTHING`,
		p.ID, challengeDate, playerToken, answersJSON, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create progress")
	}
	if tag.RowsAffected() == 0 {
		return s.GetProgress(ctx, challengeDate, playerToken)
	}
	return p, nil
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, p *model.PlayerProgress) error {
	answersJSON, err := json.Marshal(p.Answers)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal answers")
	}
	var finalJSON []byte
	if p.Final != nil {
		finalJSON, err = json.Marshal(p.Final)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal final")
		}
	}

	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE daily_player_progress
		 SET current_score = $1, answers = $2, final_wager = $3, final = $4, version = version + 1, updated_at = $5
		 WHERE id = $6 AND version = $7`,
		p.CurrentScore, answersJSON, p.FinalWager, finalJSON, now, p.ID, p.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update progress %s", p.ID)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	p.Version++
	p.UpdatedAt = now
	return nil
}

func (s *PostgresStore) DeleteProgress(ctx context.Context, challengeDate, playerToken string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM daily_player_progress WHERE challenge_date = $1 AND player_token = $2`,
		challengeDate, playerToken,
	)
	return eris.Wrapf(err, "postgres: delete progress %s/%s", challengeDate, playerToken)
}

func alternatesOrEmpty(alts []string) []string {
	if alts == nil {
		return []string{}
	}
	return alts
}
