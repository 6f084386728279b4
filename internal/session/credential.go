package session

import (
	"sync"
	"time"
)

// Credential is what a successful token exchange leaves on the client side.
// The session cookie itself lives in the HTTP cookie jar; CSRFToken is only
// set for the web device type.
type Credential struct {
	CSRFToken  string
	DeviceType DeviceType
	IssuedAt   time.Time
}

// CredentialStore holds the credential for one lifecycle. The callback
// handler is its only writer and writes at most once.
type CredentialStore struct {
	mu     sync.RWMutex
	cred   *Credential
	lapsed bool
}

// NewCredentialStore returns an empty store.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{}
}

// Set stores c. A second call returns ErrCredentialWritten.
func (s *CredentialStore) Set(c Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cred != nil {
		return ErrCredentialWritten
	}
	s.cred = &c
	return nil
}

// Get returns the stored credential.
func (s *CredentialStore) Get() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return Credential{}, false
	}
	return *s.cred, true
}

// CSRFToken returns the stored CSRF token, or "" when none is held or the
// session has lapsed.
func (s *CredentialStore) CSRFToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil || s.lapsed {
		return ""
	}
	return s.cred.CSRFToken
}

// MarkLapsed records that the backend reported the session as expired.
func (s *CredentialStore) MarkLapsed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lapsed = true
}

// Lapsed reports whether the session has been reported expired.
func (s *CredentialStore) Lapsed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lapsed
}
