package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/jonathan/yecs/internal/assistant"
	"github.com/jonathan/yecs/internal/profile"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultRestoreTimeout bounds the profile and snapshot reads made when a
// session is opened.
const DefaultRestoreTimeout = profile.DefaultPersistTimeout

// Session bundles the per-identity workflow and chat assistant.
type Session struct {
	Workflow  *Workflow
	Assistant *assistant.Assistant
}

type registryEntry struct {
	session  *Session
	lastUsed time.Time
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithIdleTTL evicts sessions not looked up for ttl. Evicted sessions are
// closed; the next Get resumes them from the stores.
func WithIdleTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		r.idleTTL = ttl
	}
}

// WithRestoreTimeout bounds the reads made when a session is opened.
func WithRestoreTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.restoreTimeout = d
		}
	}
}

// Registry holds one Session per identity.
type Registry struct {
	deps Deps
	docs profile.DocumentStore
	chat assistant.ChatModel

	idleTTL        time.Duration
	restoreTimeout time.Duration
	now            func() time.Time

	opening singleflight.Group

	mu       sync.Mutex
	sessions map[string]*registryEntry
	closed   bool

	stopOnce sync.Once
	stop     chan struct{}
}

// NewRegistry creates a Registry. docs and chat may be nil. With an idle TTL
// a background sweep evicts idle sessions until Close.
func NewRegistry(deps Deps, docs profile.DocumentStore, chat assistant.ChatModel, opts ...RegistryOption) *Registry {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	r := &Registry{
		deps:           deps,
		docs:           docs,
		chat:           chat,
		restoreTimeout: DefaultRestoreTimeout,
		now:            time.Now,
		sessions:       make(map[string]*registryEntry),
		stop:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.idleTTL > 0 {
		go r.sweepLoop(max(r.idleTTL/4, time.Second))
	}
	return r
}

// Get returns the session for identity, creating it on first use. A new
// session restores the saved profile and workflow snapshot; a failed profile
// restore is reported on the snapshot banner, not as an error. Restores run
// outside the registry lock, one at a time per identity.
func (r *Registry) Get(ctx context.Context, identity string) *Session {
	if s := r.lookup(identity); s != nil {
		return s
	}

	v, _, _ := r.opening.Do(identity, func() (any, error) {
		if s := r.lookup(identity); s != nil {
			return s, nil
		}
		s := r.open(ctx, identity)

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			s.Workflow.Close()
			return s, nil
		}
		r.sessions[identity] = &registryEntry{session: s, lastUsed: r.now()}
		r.mu.Unlock()
		return s, nil
	})
	return v.(*Session)
}

func (r *Registry) lookup(identity string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[identity]
	if !ok {
		return nil
	}
	e.lastUsed = r.now()
	return e.session
}

// open builds a session and restores it. The reads are shared by every
// caller waiting on the identity, so they detach from the caller's
// cancellation and use their own deadline.
func (r *Registry) open(ctx context.Context, identity string) *Session {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.restoreTimeout)
	defer cancel()

	store := profile.New(identity, r.docs, r.deps.Logger)
	wf := New(identity, store, r.deps)

	if err := store.Restore(ctx); err != nil {
		wf.SetRestoreError(err)
	}
	if r.deps.Sessions != nil {
		snap, err := r.deps.Sessions.Load(ctx, identity)
		if err != nil {
			r.deps.Logger.Warn("session load failed", zap.String("identity", identity), zap.Error(err))
		} else if snap != nil {
			wf.resume(snap)
		}
	}

	return &Session{
		Workflow:  wf,
		Assistant: assistant.New(r.chat, wf, r.deps.Logger),
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes and removes sessions idle for longer than the idle TTL and
// returns how many were evicted. It is a no-op without a TTL.
func (r *Registry) Sweep() int {
	if r.idleTTL <= 0 {
		return 0
	}

	cutoff := r.now().Add(-r.idleTTL)
	r.mu.Lock()
	var idle []*Session
	for identity, e := range r.sessions {
		if e.lastUsed.Before(cutoff) {
			idle = append(idle, e.session)
			delete(r.sessions, identity)
		}
	}
	r.mu.Unlock()

	closeAll(idle)
	if len(idle) > 0 {
		r.deps.Logger.Debug("evicted idle sessions", zap.Int("count", len(idle)))
	}
	return len(idle)
}

func (r *Registry) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Sweep()
		case <-r.stop:
			return
		}
	}
}

// Close stops every session and waits for its background work.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, e := range r.sessions {
		sessions = append(sessions, e.session)
	}
	r.sessions = make(map[string]*registryEntry)
	r.closed = true
	r.mu.Unlock()

	closeAll(sessions)
}

func closeAll(sessions []*Session) {
	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func(wf *Workflow) {
			defer wg.Done()
			wf.Close()
		}(s.Workflow)
	}
	wg.Wait()
}
