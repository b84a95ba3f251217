package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jonathan/yecs/internal/types"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS applicant_profiles (
	identity   TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS credit_scores (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	identity   TEXT NOT NULL,
	yecs_score INTEGER NOT NULL,
	risk_level TEXT NOT NULL,
	source     TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_credit_scores_identity ON credit_scores (identity, created_at);
`

// SQLiteStore implements Store on a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the SQLite database at path.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One writer at a time avoids SQLITE_BUSY under concurrent saves
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// GetDocument implements Store.
func (s *SQLiteStore) GetDocument(ctx context.Context, identity string) (*types.ApplicantProfile, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM applicant_profiles WHERE identity = ?`,
		identity,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return decodeProfile([]byte(data))
}

// PutDocument implements Store.
func (s *SQLiteStore) PutDocument(ctx context.Context, identity string, profile types.ApplicantProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO applicant_profiles (identity, data, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(identity) DO UPDATE SET
		data = excluded.data,
		updated_at = excluded.updated_at`,
		identity, string(data), now, now,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

// SaveScore implements Store.
func (s *SQLiteStore) SaveScore(ctx context.Context, identity string, score *types.ScoreResult) error {
	data, err := json.Marshal(score)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO credit_scores (identity, yecs_score, risk_level, source, result, created_at)
	VALUES (?, ?, ?, ?, ?, ?)`,
		identity, score.YECSScore, string(score.RiskLevel), string(score.Source), string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("save score: %w", err)
	}
	return nil
}

// ListScores implements Store.
func (s *SQLiteStore) ListScores(ctx context.Context, identity string, limit int) ([]ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, identity, result, created_at
		FROM credit_scores WHERE identity = ?
		ORDER BY id DESC LIMIT ?`,
		identity, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []ScoreRecord{}
	for rows.Next() {
		var rec ScoreRecord
		var data string
		var createdAt int64
		if err := rows.Scan(&rec.ID, &rec.Identity, &data, &createdAt); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rec.Result); err != nil {
			return nil, fmt.Errorf("decode score %d: %w", rec.ID, err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scores: %w", err)
	}
	return records, nil
}

// Ping implements Store.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
