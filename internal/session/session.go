// Package session holds the single bearer credential of the operator's session.
//
// The store is read on every outbound request, written on login and cleared on
// logout or when the backend reports the credential as invalid. Expiry is never
// computed locally.
package session

import (
	"sync"

	"github.com/rs/zerolog"
)

// Credential is the opaque bearer token returned by the backend on login.
type Credential string

type Store interface {
	Get() (Credential, bool)
	Set(c Credential) error
	Clear() error
}

var sessionLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	sessionLogger = l
}

// MemoryStore keeps the credential for the lifetime of the process.
type MemoryStore struct {
	mu    sync.RWMutex
	token Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Get() (Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

func (m *MemoryStore) Set(c Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = c
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
