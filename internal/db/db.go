// Package db persists applicant profile documents and score history.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/yecs/internal/types"
)

// Store is a durable document store keyed by applicant identity.
type Store interface {
	// GetDocument returns the stored profile, or nil if there is none.
	GetDocument(ctx context.Context, identity string) (*types.ApplicantProfile, error)
	// PutDocument stores the full profile, replacing any previous document.
	PutDocument(ctx context.Context, identity string, profile types.ApplicantProfile) error
	// SaveScore appends a score to the identity's history.
	SaveScore(ctx context.Context, identity string, score *types.ScoreResult) error
	// ListScores returns up to limit scores, newest first.
	ListScores(ctx context.Context, identity string, limit int) ([]ScoreRecord, error)
	Ping(ctx context.Context) error
	Close() error
}

// ScoreRecord is one entry of an identity's score history.
type ScoreRecord struct {
	ID        int64             `json:"id"`
	Identity  string            `json:"identity"`
	Result    types.ScoreResult `json:"result"`
	CreatedAt time.Time         `json:"created_at"`
}

// Open connects to the store named by databaseURL:
//
//	postgres://... or postgresql://...   PostgreSQL
//	sqlite://path or sqlite:///path      SQLite file (relative path)
//	sqlite:////abs/path                  SQLite file (absolute path)
//	memory://                            in-process, not durable
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return Connect(ctx, databaseURL)
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return NewSQLite(ctx, SQLitePath(databaseURL))
	case strings.HasPrefix(databaseURL, "memory://"):
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported database URL scheme: %q", databaseURL)
	}
}

// SQLitePath extracts the file path from a sqlite:// URL. Three slashes
// denote a relative path and four an absolute one.
func SQLitePath(databaseURL string) string {
	return strings.TrimPrefix(strings.TrimPrefix(databaseURL, "sqlite://"), "/")
}
