package form

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"imagestudio/internal/domain"
	"imagestudio/internal/infra"
)

// Store owns the live views of the web front end and tears down the ones that
// have been idle for longer than the configured TTL.
type Store struct {
	opts   Options
	ttl    time.Duration
	now    func() time.Time
	logger *infra.Logger

	mu    sync.Mutex
	views map[string]*View
}

// NewStore creates a store. Views it creates share opts.
func NewStore(opts Options, ttl time.Duration) *Store {
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	return &Store{
		opts:   opts,
		ttl:    ttl,
		now:    now,
		logger: logger,
		views:  make(map[string]*View),
	}
}

// Create registers a fresh view.
func (s *Store) Create() *View {
	v := NewView(uuid.NewString(), s.opts)
	s.mu.Lock()
	s.views[v.ID()] = v
	s.mu.Unlock()
	return v
}

// Get looks a view up by id.
func (s *Store) Get(id string) (*View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[id]
	if !ok {
		return nil, fmt.Errorf("view %q: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

// Close tears the view down and forgets it.
func (s *Store) Close(id string) error {
	s.mu.Lock()
	v, ok := s.views[id]
	delete(s.views, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("view %q: %w", id, domain.ErrNotFound)
	}
	v.Close()
	return nil
}

// Len returns the number of live views.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.views)
}

// Sweep closes views idle for longer than the TTL and returns how many were
// removed. Views with an outstanding submission are kept.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	now := s.now()
	var expired []*View
	s.mu.Lock()
	for id, v := range s.views {
		if v.idleFor(now) > s.ttl && !v.Loading() {
			expired = append(expired, v)
			delete(s.views, id)
		}
	}
	s.mu.Unlock()
	for _, v := range expired {
		v.Close()
	}
	if len(expired) > 0 {
		s.logger.Debug().Int("views", len(expired)).Msg("swept idle views")
	}
	return len(expired)
}

// Run sweeps on a ticker until ctx is done, then closes every view.
func (s *Store) Run(ctx context.Context) {
	interval := s.ttl / 2
	if interval <= 0 || interval > time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.CloseAll()
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// CloseAll tears down every view.
func (s *Store) CloseAll() {
	s.mu.Lock()
	views := s.views
	s.views = make(map[string]*View)
	s.mu.Unlock()
	for _, v := range views {
		v.Close()
	}
}
