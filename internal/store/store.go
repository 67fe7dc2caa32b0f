// Package store provides storage backends for the Echoes session and
// profile documents.
//
// It includes an in-memory store for tests and single-process runs, plus
// SQLite, PostgreSQL, and Redis backends selected by DSN.
package store

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/Someone-anon-coder/echoes-ai-friend/internal/models"
)

// Store persists the session aggregate and the user profile. Loads return
// nil, nil when the document does not exist; saves are upserts that
// replace the whole document.
type Store interface {
	GetUserProfile(userID string) (*models.UserProfile, error)
	SaveUserProfile(profile models.UserProfile) error
	GetSession(userID string) (*models.Session, error)
	SaveSession(session models.Session) error
	DeleteSession(userID string) error
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option configures store construction.
type Option func(*Opts)

// WithDSN sets the backend DSN (file path, postgres://, or redis://).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets a PostgreSQL DSN.
func WithPostgresDSN(dsn string) Option { return WithDSN(dsn) }

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option { return WithDSN(dsn) }

// WithRedisDSN sets a Redis URL.
func WithRedisDSN(dsn string) Option { return WithDSN(dsn) }

// DetectDSNType classifies a DSN string into a backend kind: "postgres",
// "redis", "memory" (empty DSN), or "sqlite" (anything else is treated as
// a file path).
func DetectDSNType(dsn string) string {
	switch {
	case dsn == "":
		return "memory"
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return "postgres"
	case strings.HasPrefix(dsn, "redis://"), strings.HasPrefix(dsn, "rediss://"):
		return "redis"
	default:
		return "sqlite"
	}
}

// New constructs the store backend matching the configured DSN.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	kind := DetectDSNType(cfg.DSN)
	slog.Debug("store.New: selecting backend", "kind", kind, "dsn_set", cfg.DSN != "")
	switch kind {
	case "postgres":
		return NewPostgresStore(opts...)
	case "redis":
		return NewRedisStore(opts...)
	case "sqlite":
		return NewSQLiteStore(opts...)
	default:
		return NewInMemoryStore(), nil
	}
}

// InMemoryStore keeps documents in process memory. Used in tests and when
// no DSN is configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
	sessions map[string]models.Session
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		profiles: make(map[string]models.UserProfile),
		sessions: make(map[string]models.Session),
	}
}

func (s *InMemoryStore) GetUserProfile(userID string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *InMemoryStore) SaveUserProfile(profile models.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return nil
}

func (s *InMemoryStore) GetSession(userID string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *InMemoryStore) SaveSession(session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.UserID] = session
	return nil
}

func (s *InMemoryStore) DeleteSession(userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
