package session

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/debemdeboas/pages-admin/internal/db"
)

const defaultSlot = "default"

// SQLiteStore persists the credential so it survives a restart of the console
// or between cmsctl invocations. Reads are served from memory after the first hit.
type SQLiteStore struct {
	db   db.DB
	slot string

	mu     sync.RWMutex
	cached *Credential
}

func NewSQLiteStore(database db.DB) (*SQLiteStore, error) {
	if err := database.InitDB(); err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	return &SQLiteStore{db: database, slot: defaultSlot}, nil
}

func (s *SQLiteStore) Get() (Credential, bool) {
	s.mu.RLock()
	if s.cached != nil {
		c := *s.cached
		s.mu.RUnlock()
		return c, c != ""
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return *s.cached, *s.cached != ""
	}

	var token string
	err := s.db.QueryRow(`SELECT token FROM credentials WHERE slot = ?`, s.slot).Scan(&token)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		// Treat as logged out; the next login rewrites the row.
		sessionLogger.Error().Err(err).Msg("Failed to read stored credential")
		return "", false
	}

	c := Credential(token)
	s.cached = &c
	return c, c != ""
}

func (s *SQLiteStore) Set(c Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
INSERT INTO credentials (slot, token, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(slot) DO UPDATE SET token = excluded.token, updated_at = CURRENT_TIMESTAMP`, s.slot, string(c))
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	s.cached = &c
	sessionLogger.Info().Msg("Credential stored")
	return nil
}

func (s *SQLiteStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM credentials WHERE slot = ?`, s.slot); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	empty := Credential("")
	s.cached = &empty
	sessionLogger.Info().Msg("Credential cleared")
	return nil
}
