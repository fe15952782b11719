package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wasco/mapcore/internal/metrics"
	"wasco/mapcore/internal/regiondata"
	"wasco/mapcore/internal/store"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
)

const defaultWidth = 760

type ManagerOptions struct {
	// Fetcher loads region detail for every session's cache.
	Fetcher      regiondata.Fetcher
	FetchTimeout time.Duration
	MaxSessions  int
	IdleTimeout  time.Duration
	SweepEvery   time.Duration
}

// Manager owns the live sessions.
type Manager struct {
	log          zerolog.Logger
	catalog      Catalog
	metrics      *metrics.Metrics
	fetcher      regiondata.Fetcher
	fetchTimeout time.Duration
	maxSessions  int
	idleTimeout  time.Duration
	sweepEvery   time.Duration
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(log zerolog.Logger, catalog Catalog, opts ManagerOptions, m *metrics.Metrics) *Manager {
	maxSessions := opts.MaxSessions
	if maxSessions <= 0 {
		maxSessions = 256
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	sweep := opts.SweepEvery
	if sweep <= 0 {
		sweep = time.Minute
	}
	return &Manager{
		log:          log,
		catalog:      catalog,
		metrics:      m,
		fetcher:      opts.Fetcher,
		fetchTimeout: opts.FetchTimeout,
		maxSessions:  maxSessions,
		idleTimeout:  idle,
		sweepEvery:   sweep,
		now:          time.Now,
		sessions:     make(map[string]*Session),
	}
}

// OpenOptions configure a new session. Zero values take defaults.
type OpenOptions struct {
	Width float64
	State *store.State
}

func (m *Manager) Open(ctx context.Context, opts OpenOptions) (*Session, error) {
	width := opts.Width
	if width < 0 {
		return nil, ErrInvalidWidth
	}
	if width == 0 {
		width = defaultWidth
	}
	st := store.DefaultState()
	if opts.State != nil {
		st = *opts.State
	}

	m.mu.Lock()
	if len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, ErrTooManySessions
	}
	id := uuid.NewString()
	// Reserve the id so concurrent opens respect the limit.
	m.sessions[id] = nil
	m.mu.Unlock()

	cache := regiondata.NewCache(regiondata.Options{
		Fetcher: m.fetcher,
		Log:     m.log,
		Metrics: m.metrics,
		Timeout: m.fetchTimeout,
	})
	s := newSession(ctx, options{
		id:      id,
		log:     m.log,
		catalog: m.catalog,
		cache:   cache,
		width:   width,
		state:   st,
		now:     m.now(),
	})

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	m.metrics.SessionOpened()
	m.log.Info().Str("session_id", id).Float64("width", width).Msg("session opened")
	return s, nil
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s == nil {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok || s == nil {
		m.mu.Unlock()
		return ErrNotFound
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	s.Close()
	m.metrics.SessionClosed()
	m.log.Info().Str("session_id", id).Msg("session closed")
	return nil
}

// IDs returns the live session ids in sorted order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id, s := range m.sessions {
		if s != nil {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Sweep closes sessions idle for longer than the idle timeout and returns
// how many it closed.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.idleTimeout)
	var stale []string
	m.mu.Lock()
	for id, s := range m.sessions {
		if s != nil && s.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	closed := 0
	for _, id := range stale {
		if m.Close(id) == nil {
			closed++
		}
	}
	if closed > 0 {
		m.log.Info().Int("closed", closed).Msg("idle sessions swept")
	}
	return closed
}

// Run sweeps idle sessions until ctx is done, then closes every session.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			for _, id := range m.IDs() {
				_ = m.Close(id)
			}
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}
