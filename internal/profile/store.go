// Package profile holds an applicant's profile for one session and mirrors
// it to a durable document store on a best-effort basis.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jonathan/yecs/internal/observability"
	"github.com/jonathan/yecs/internal/types"
	"go.uber.org/zap"
)

// DefaultPersistTimeout bounds one background write.
const DefaultPersistTimeout = 10 * time.Second

// DocumentStore is the durable side of a Store. db.Store satisfies it.
type DocumentStore interface {
	GetDocument(ctx context.Context, identity string) (*types.ApplicantProfile, error)
	PutDocument(ctx context.Context, identity string, profile types.ApplicantProfile) error
}

// PersistenceError reports a failed load or save. It never invalidates the
// in-memory profile.
type PersistenceError struct {
	Op       string
	Identity string
	Cause    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to %s profile for %s: %v", e.Op, e.Identity, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// Store is the authoritative in-memory profile for one identity.
// It is safe for concurrent use.
type Store struct {
	identity string
	docs     DocumentStore
	logger   *zap.Logger
	timeout  time.Duration

	mu      sync.RWMutex
	profile types.ApplicantProfile

	// putMu orders background writes; each write sends the latest profile.
	putMu    sync.Mutex
	inflight sync.WaitGroup
}

// New creates an empty Store. docs may be nil, in which case nothing is persisted.
func New(identity string, docs DocumentStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		identity: identity,
		docs:     docs,
		logger:   logger.Named("profile").With(zap.String("identity", identity)),
		timeout:  DefaultPersistTimeout,
		profile:  types.NewApplicantProfile(),
	}
}

// Identity returns the identity the profile belongs to.
func (s *Store) Identity() string {
	return s.identity
}

// Get returns a deep copy of the current profile.
func (s *Store) Get() types.ApplicantProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.Clone()
}

// MergeSection unions partial into one section and schedules a background
// save. It does not validate and does not wait for the save.
func (s *Store) MergeSection(ctx context.Context, section types.Section, partial json.RawMessage) (types.ApplicantProfile, error) {
	s.mu.Lock()
	merged, err := Merge(s.profile, section, partial)
	if err != nil {
		s.mu.Unlock()
		return types.ApplicantProfile{}, err
	}
	s.profile = merged
	s.mu.Unlock()

	s.persist(ctx)
	return merged.Clone(), nil
}

// Restore loads the stored document, if any, as the current profile.
// Call it once at session start, before any merge.
func (s *Store) Restore(ctx context.Context) error {
	if s.docs == nil {
		return nil
	}

	doc, err := s.docs.GetDocument(ctx, s.identity)
	if err != nil {
		observability.PersistenceFailures.WithLabelValues("restore").Inc()
		s.logger.Warn("profile restore failed", zap.Error(err))
		return &PersistenceError{Op: "restore", Identity: s.identity, Cause: err}
	}
	if doc == nil {
		return nil
	}

	s.mu.Lock()
	s.profile = doc.Clone()
	if s.profile.Documents == nil {
		s.profile.Documents = []types.Document{}
	}
	s.mu.Unlock()

	s.logger.Debug("profile restored")
	return nil
}

// Flush blocks until every scheduled save has finished.
func (s *Store) Flush() {
	s.inflight.Wait()
}

func (s *Store) persist(ctx context.Context) {
	if s.docs == nil {
		return
	}

	// Saves outlive the request that caused them
	ctx = context.WithoutCancel(ctx)

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		s.putMu.Lock()
		defer s.putMu.Unlock()

		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		if err := s.docs.PutDocument(ctx, s.identity, s.Get()); err != nil {
			observability.PersistenceFailures.WithLabelValues("save").Inc()
			s.logger.Warn("profile save failed",
				zap.Error(&PersistenceError{Op: "save", Identity: s.identity, Cause: err}))
		}
	}()
}
