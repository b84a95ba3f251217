package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonathan/yecs/internal/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS applicant_profiles (
	identity   TEXT PRIMARY KEY,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS credit_scores (
	id         BIGSERIAL PRIMARY KEY,
	identity   TEXT NOT NULL,
	yecs_score INTEGER NOT NULL,
	risk_level TEXT NOT NULL,
	source     TEXT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_credit_scores_identity ON credit_scores (identity, created_at DESC);
`

// PostgresStore wraps a PostgreSQL connection pool
type PostgresStore struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database and creates the
// tables if they are missing.
func Connect(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// GetDocument implements Store.
func (s *PostgresStore) GetDocument(ctx context.Context, identity string) (*types.ApplicantProfile, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM applicant_profiles WHERE identity = $1`,
		identity,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return decodeProfile(data)
}

// PutDocument implements Store.
func (s *PostgresStore) PutDocument(ctx context.Context, identity string, profile types.ApplicantProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO applicant_profiles (identity, data)
		 VALUES ($1, $2)
		 ON CONFLICT (identity) DO UPDATE SET data = $2, updated_at = NOW()`,
		identity, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

// SaveScore implements Store.
func (s *PostgresStore) SaveScore(ctx context.Context, identity string, score *types.ScoreResult) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("failed to marshal score: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO credit_scores (identity, yecs_score, risk_level, source, result)
		 VALUES ($1, $2, $3, $4, $5)`,
		identity, score.YECSScore, string(score.RiskLevel), string(score.Source), data,
	)
	if err != nil {
		return fmt.Errorf("failed to save score: %w", err)
	}
	return nil
}

// ListScores implements Store.
func (s *PostgresStore) ListScores(ctx context.Context, identity string, limit int) ([]ScoreRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, identity, result, created_at
		 FROM credit_scores WHERE identity = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		identity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scores: %w", err)
	}
	defer rows.Close()

	records := []ScoreRecord{}
	for rows.Next() {
		var rec ScoreRecord
		var data []byte
		if err := rows.Scan(&rec.ID, &rec.Identity, &data, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		if err := json.Unmarshal(data, &rec.Result); err != nil {
			return nil, fmt.Errorf("failed to decode score %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Ping implements Store.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool
func (s *PostgresStore) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func decodeProfile(data []byte) (*types.ApplicantProfile, error) {
	profile := types.NewApplicantProfile()
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	if profile.Documents == nil {
		profile.Documents = []types.Document{}
	}
	return &profile, nil
}
