package session

import (
	"fmt"
	"sync"

	"mindshift/internal/logging"
	"mindshift/internal/protocol"
)

// Repository is the external session-context collaborator. Save errors are
// non-fatal to the engine; the in-memory copy stays authoritative.
type Repository interface {
	Load(sessionID string) (*Context, bool, error)
	Save(ctx *Context) error
	Delete(sessionID string) error
}

// Store is the in-process context cache with asynchronous mirroring to the
// repository. One entry per active session; sessions never share state.
type Store struct {
	mu    sync.RWMutex
	cache map[string]*Context
	repo  Repository // nil means in-memory only
	reg   *protocol.Registry
}

// NewStore creates a context store backed by the given repository.
// repo may be nil for purely in-memory operation (tests, dry runs).
func NewStore(reg *protocol.Registry, repo Repository) *Store {
	return &Store{
		cache: make(map[string]*Context),
		repo:  repo,
		reg:   reg,
	}
}

// CreateFresh builds a new context at the protocol's initial step,
// discarding any existing in-memory or persisted context for the session.
// Required because a user may restart a session id.
func (s *Store) CreateFresh(sessionID, userID string) (*Context, error) {
	if sessionID == "" || userID == "" {
		return nil, fmt.Errorf("session: sessionID and userID are required")
	}

	ctx := NewContext(sessionID, userID, s.reg.InitialPhase(), s.reg.InitialStep())

	s.mu.Lock()
	s.cache[sessionID] = ctx
	s.mu.Unlock()

	if s.repo != nil {
		// Best effort: a stale persisted row must not resurrect on the
		// next load.
		if err := s.repo.Delete(sessionID); err != nil {
			logging.Get(logging.CategorySession).Warn("CreateFresh: could not delete persisted context for %s: %v", sessionID, err)
		}
	}

	logging.Session("Created fresh context: session=%s user=%s", sessionID, userID)
	return ctx, nil
}

// GetOrCreate returns the cached context, falls back to loading from the
// repository, and creates fresh as a last resort. Safe to call repeatedly;
// only the first call can have a load side effect.
func (s *Store) GetOrCreate(sessionID, userID string) (*Context, error) {
	if sessionID == "" || userID == "" {
		return nil, fmt.Errorf("session: sessionID and userID are required")
	}

	s.mu.RLock()
	if ctx, ok := s.cache[sessionID]; ok {
		s.mu.RUnlock()
		return ctx, nil
	}
	s.mu.RUnlock()

	if s.repo != nil {
		loaded, found, err := s.repo.Load(sessionID)
		if err != nil {
			logging.Get(logging.CategorySession).Warn("GetOrCreate: load failed for %s: %v", sessionID, err)
		} else if found {
			s.mu.Lock()
			// Another caller may have raced us; keep the first entry.
			if existing, ok := s.cache[sessionID]; ok {
				s.mu.Unlock()
				return existing, nil
			}
			s.cache[sessionID] = loaded
			s.mu.Unlock()
			logging.SessionDebug("Loaded persisted context: session=%s step=%s", sessionID, loaded.CurrentStep)
			return loaded, nil
		}
	}

	return s.CreateFresh(sessionID, userID)
}

// Get returns the cached context without loading or creating.
func (s *Store) Get(sessionID string) (*Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.cache[sessionID]
	return ctx, ok
}

// Update applies a patch to the cached context under the store lock.
func (s *Store) Update(sessionID string, patch func(*Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, ok := s.cache[sessionID]
	if !ok {
		return fmt.Errorf("session: no context for %s", sessionID)
	}
	patch(ctx)
	return nil
}

// SnapshotForUndo returns a read reference for the undo manager. The
// caller must not mutate it except through Update.
func (s *Store) SnapshotForUndo(sessionID string) (*Context, bool) {
	return s.Get(sessionID)
}

// Persist mirrors the context to the repository, fire-and-forget. The
// turn's result is returned to the caller without waiting for the write;
// failures are logged and the in-memory copy remains authoritative.
func (s *Store) Persist(sessionID string) {
	if s.repo == nil {
		return
	}

	s.mu.RLock()
	ctx, ok := s.cache[sessionID]
	if !ok {
		s.mu.RUnlock()
		return
	}
	snapshot := ctx.Clone()
	s.mu.RUnlock()

	go func() {
		if err := s.repo.Save(snapshot); err != nil {
			logging.Get(logging.CategorySession).Error("Persist failed for %s: %v", sessionID, err)
		}
	}()
}

// PersistSync mirrors the context synchronously. Used at shutdown.
func (s *Store) PersistSync(sessionID string) error {
	if s.repo == nil {
		return nil
	}

	s.mu.RLock()
	ctx, ok := s.cache[sessionID]
	if !ok {
		s.mu.RUnlock()
		return nil
	}
	snapshot := ctx.Clone()
	s.mu.RUnlock()

	return s.repo.Save(snapshot)
}

// Clear drops the in-memory context and best-effort deletes the persisted
// row.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	delete(s.cache, sessionID)
	s.mu.Unlock()

	if s.repo != nil {
		if err := s.repo.Delete(sessionID); err != nil {
			logging.Get(logging.CategorySession).Warn("Clear: could not delete persisted context for %s: %v", sessionID, err)
		}
	}
	logging.SessionDebug("Cleared context: session=%s", sessionID)
}

// ActiveSessions returns the ids of all cached sessions.
func (s *Store) ActiveSessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.cache))
	for id := range s.cache {
		out = append(out, id)
	}
	return out
}
