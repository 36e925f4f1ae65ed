package publications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/birabittoh/pr-manager/internal/api"
	"github.com/birabittoh/pr-manager/internal/logging"
	"github.com/birabittoh/pr-manager/internal/remote"
)

// ErrMutationPending is returned when another mutation on the same publication is still outstanding.
var ErrMutationPending = errors.New("a change to this publication is still pending")

// Backend is the subset of the remote client the store needs.
type Backend interface {
	Publications(ctx context.Context) ([]api.Publication, error)
	CreatePublication(ctx context.Context, in api.PublicationCreate) (api.Publication, error)
	PatchPublication(ctx context.Context, name string, patch api.PublicationPatch) error
	DeletePublication(ctx context.Context, name string) error
}

// Input carries the fields of a new publication.
type Input struct {
	Name        string
	DisplayName string
	IssueID     string
	MaxScale    int
	Language    string
}

// Patch is a partial edit. Nil fields are left unchanged.
type Patch struct {
	DisplayName *string
	IssueID     *string
	MaxScale    *int
	Language    *string
}

func (p Patch) wire() api.PublicationPatch {
	return api.PublicationPatch{
		DisplayName: p.DisplayName,
		IssueID:     p.IssueID,
		MaxScale:    p.MaxScale,
		Language:    p.Language,
	}
}

// Store caches every publication known to the backend.
type Store struct {
	backend Backend
	logger  *slog.Logger
	group   singleflight.Group

	mu           sync.RWMutex
	items        map[string]api.Publication
	pending      map[string]struct{}
	generation   uint64
	loaded       bool
	needsRefresh bool
	onChange     func()
}

// New creates an empty store backed by backend.
func New(backend Backend, logger *slog.Logger) *Store {
	return &Store{
		backend: backend,
		logger:  logging.NewComponentLogger(logger, "publications"),
		items:   make(map[string]api.Publication),
		pending: make(map[string]struct{}),
	}
}

// OnChange registers fn to run after every cache change. fn must not call back into mutations.
func (s *Store) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// List returns the cached publications ordered by display label, case-insensitively.
func (s *Store) List() []api.Publication {
	s.mu.RLock()
	out := make([]api.Publication, 0, len(s.items))
	for _, pub := range s.items {
		out = append(out, pub)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		li, lj := strings.ToLower(out[i].Label()), strings.ToLower(out[j].Label())
		if li != lj {
			return li < lj
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Get returns the cached publication called name.
func (s *Store) Get(name string) (api.Publication, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pub, ok := s.items[name]
	return pub, ok
}

// Label returns the display label for name if it is cached.
func (s *Store) Label(name string) (string, bool) {
	pub, ok := s.Get(name)
	if !ok {
		return "", false
	}
	return pub.Label(), true
}

// Len returns the number of cached publications.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Loaded reports whether a refresh has ever succeeded.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// NeedsRefresh reports whether a failed mutation left the cache possibly out of sync.
func (s *Store) NeedsRefresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.needsRefresh
}

// Pending reports whether a mutation on name is outstanding.
func (s *Store) Pending(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pending[name]
	return ok
}

// Refresh replaces the cache with the backend's list. Concurrent calls share one request.
func (s *Store) Refresh(ctx context.Context) error {
	_, err, _ := s.group.Do("refresh", func() (any, error) {
		items, err := s.backend.Publications(ctx)
		if err != nil {
			return nil, err
		}
		next := make(map[string]api.Publication, len(items))
		for _, pub := range items {
			next[pub.Name] = pub
		}

		s.mu.Lock()
		s.items = next
		s.generation++
		s.loaded = true
		s.needsRefresh = false
		s.mu.Unlock()
		s.changed()

		s.logger.Debug("publications refreshed", logging.Int("count", len(next)))
		return nil, nil
	})
	return err
}

// Add validates in, creates it on the backend and merges the confirmed record.
func (s *Store) Add(ctx context.Context, in Input) (api.Publication, error) {
	const op = "add publication"
	in.Name = strings.TrimSpace(in.Name)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.IssueID = strings.TrimSpace(in.IssueID)
	in.Language = strings.TrimSpace(in.Language)
	if err := validateInput(op, in); err != nil {
		return api.Publication{}, err
	}
	if _, exists := s.Get(in.Name); exists {
		return api.Publication{}, &remote.ConflictError{Name: in.Name}
	}
	if err := s.acquire(in.Name); err != nil {
		return api.Publication{}, err
	}
	defer s.release(in.Name)

	created, err := s.backend.CreatePublication(ctx, api.PublicationCreate{
		Name:        in.Name,
		DisplayName: in.DisplayName,
		IssueID:     in.IssueID,
		MaxScale:    in.MaxScale,
		Language:    in.Language,
	})
	if err != nil {
		s.logger.Warn("create publication rejected", logging.Publication(in.Name), logging.Error(err))
		return api.Publication{}, err
	}

	if strings.TrimSpace(created.Name) == "" {
		// The backend answered without a full record; fetch the authoritative one.
		s.markStale()
		if err := s.Refresh(ctx); err != nil {
			return api.Publication{}, fmt.Errorf("%s: reload after create: %w", op, err)
		}
		pub, _ := s.Get(in.Name)
		return pub, nil
	}

	s.mu.Lock()
	s.items[created.Name] = created
	s.mu.Unlock()
	s.changed()
	s.logger.Info("publication added", logging.Publication(created.Name))
	return created, nil
}

// Update sends patch for name and applies it to the cache once the backend confirms.
func (s *Store) Update(ctx context.Context, name string, patch Patch) error {
	const op = "update publication"
	if _, ok := s.Get(name); !ok {
		return remote.NotFound(op, name)
	}
	if err := validatePatch(op, patch); err != nil {
		return err
	}
	if err := s.acquire(name); err != nil {
		return err
	}
	defer s.release(name)

	wire := patch.wire()
	if err := s.backend.PatchPublication(ctx, name, wire); err != nil {
		s.logger.Warn("update publication failed", logging.Publication(name), logging.Error(err))
		return err
	}

	s.mu.Lock()
	if pub, ok := s.items[name]; ok {
		s.items[name] = wire.Apply(pub)
	}
	s.mu.Unlock()
	s.changed()
	return nil
}

// SetEnabled flips the cached flag immediately, then confirms with the backend.
// On failure the flag is reverted and the store is marked for a full refresh.
func (s *Store) SetEnabled(ctx context.Context, name string, enabled bool) error {
	const op = "toggle publication"
	if err := s.acquire(name); err != nil {
		return err
	}
	defer s.release(name)

	s.mu.Lock()
	pub, ok := s.items[name]
	if !ok {
		s.mu.Unlock()
		return remote.NotFound(op, name)
	}
	prior := pub.Enabled
	generation := s.generation
	pub.Enabled = enabled
	s.items[name] = pub
	s.mu.Unlock()
	s.changed()

	err := s.backend.PatchPublication(ctx, name, api.PublicationPatch{Enabled: &enabled})
	if err == nil {
		return nil
	}

	s.mu.Lock()
	// A refresh since the flip already holds the backend's value.
	if current, ok := s.items[name]; ok && s.generation == generation && current.Enabled == enabled {
		current.Enabled = prior
		s.items[name] = current
	}
	s.needsRefresh = true
	s.mu.Unlock()
	s.changed()

	s.logger.Warn("toggle publication failed; reverted",
		logging.Publication(name),
		logging.Bool("enabled", prior),
		logging.Error(err),
	)
	return err
}

// Remove deletes name on the backend and drops it from the cache once confirmed.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := s.acquire(name); err != nil {
		return err
	}
	defer s.release(name)

	if err := s.backend.DeletePublication(ctx, name); err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			s.markStale()
		}
		s.logger.Warn("delete publication failed", logging.Publication(name), logging.Error(err))
		return err
	}

	s.mu.Lock()
	delete(s.items, name)
	s.mu.Unlock()
	s.changed()
	s.logger.Info("publication removed", logging.Publication(name))
	return nil
}

func (s *Store) acquire(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.pending[name]; busy {
		return ErrMutationPending
	}
	s.pending[name] = struct{}{}
	return nil
}

func (s *Store) release(name string) {
	s.mu.Lock()
	delete(s.pending, name)
	s.mu.Unlock()
}

func (s *Store) changed() {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (s *Store) markStale() {
	s.mu.Lock()
	s.needsRefresh = true
	s.mu.Unlock()
}

func validateInput(op string, in Input) error {
	switch {
	case in.Name == "":
		return remote.Invalid(op, "name is required")
	case in.IssueID == "":
		return remote.Invalid(op, "issue_id is required")
	case in.MaxScale <= 0:
		return remote.Invalid(op, "max_scale must be a positive integer")
	case in.Language == "":
		return remote.Invalid(op, "language is required")
	}
	return nil
}

func validatePatch(op string, p Patch) error {
	if p.wire().Empty() {
		return remote.Invalid(op, "nothing to update")
	}
	if p.IssueID != nil && strings.TrimSpace(*p.IssueID) == "" {
		return remote.Invalid(op, "issue_id cannot be empty")
	}
	if p.Language != nil && strings.TrimSpace(*p.Language) == "" {
		return remote.Invalid(op, "language cannot be empty")
	}
	if p.MaxScale != nil && *p.MaxScale <= 0 {
		return remote.Invalid(op, "max_scale must be a positive integer")
	}
	return nil
}
