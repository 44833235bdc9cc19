/*
Package session holds the signed-in user's identity, credential and display preferences.

The credential is the only persisted value. On Load the identity is restored
provisionally from the token's claims and replaced once the profile has been fetched.
The store makes no network calls.
*/
package session

import (
	"errors"
	"sync"
	"time"

	"xalvion/internal/app/model"
	"xalvion/internal/app/storage"
	"xalvion/internal/pkg/auth/jwt"
	"xalvion/internal/pkg/errs"
	"xalvion/internal/pkg/logx"
)

// Preferences are the user's display settings.
type Preferences struct {
	Theme        string `json:"theme"`
	CustomStatus string `json:"custom_status"`
}

// Store is the session holder. It is safe for concurrent use.
type Store struct {
	kv  storage.KVStore
	key string
	now func() time.Time

	mu          sync.RWMutex
	identity    *model.Identity
	credential  string
	preferences Preferences
	onClear     []func()
}

// NewStore creates a Store persisting its credential in kv under key.
func NewStore(kv storage.KVStore, key string) *Store {
	return &Store{
		kv:          kv,
		key:         key,
		now:         time.Now,
		preferences: Preferences{Theme: "dark"},
	}
}

// Load restores the credential from storage. It reports whether a usable session was found.
// An undecodable or expired credential is removed and Load reports false.
func (s *Store) Load() (bool, error) {
	raw, err := s.kv.Get(s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, errs.Wrap(errs.ErrStorage, err)
	}

	token := string(raw)
	claims, err := jwt.ParseClaims(token)
	if err != nil {
		logx.Warn("Stored credential is unreadable, discarding it", "error", err.Error())
		return false, s.deleteCredential()
	}
	if claims.Expired(s.now()) {
		logx.Info("Stored credential has expired, discarding it", "user_id", claims.UserID)
		return false, s.deleteCredential()
	}

	s.mu.Lock()
	s.credential = token
	s.identity = &model.Identity{UserID: claims.UserID, Username: claims.Username}
	s.mu.Unlock()

	return true, nil
}

// Set persists credential and holds identity as the current session.
func (s *Store) Set(identity model.Identity, credential string) error {
	if err := s.kv.Put(s.key, []byte(credential)); err != nil {
		return errs.Wrap(errs.ErrStorage, err)
	}

	s.mu.Lock()
	s.credential = credential
	s.identity = &identity
	s.applyIdentityPreferences(identity)
	s.mu.Unlock()

	return nil
}

// SetIdentity replaces the held identity wholesale, as on a profile refresh.
func (s *Store) SetIdentity(identity model.Identity) {
	s.mu.Lock()
	s.identity = &identity
	s.applyIdentityPreferences(identity)
	s.mu.Unlock()
}

// applyIdentityPreferences must be called with mu held.
func (s *Store) applyIdentityPreferences(identity model.Identity) {
	if identity.Theme != "" {
		s.preferences.Theme = identity.Theme
	}
	s.preferences.CustomStatus = identity.CustomStatus
}

// Clear removes the credential from storage, drops the identity and runs the OnClear hooks.
// Hooks run even when the storage delete fails.
func (s *Store) Clear() error {
	err := s.deleteCredential()

	s.mu.Lock()
	s.credential = ""
	s.identity = nil
	hooks := append([]func(){}, s.onClear...)
	s.mu.Unlock()

	for _, hook := range hooks {
		hook()
	}

	return err
}

func (s *Store) deleteCredential() error {
	if err := s.kv.Delete(s.key); err != nil {
		return errs.Wrap(errs.ErrStorage, err)
	}
	return nil
}

// OnClear registers fn to run after every Clear.
func (s *Store) OnClear(fn func()) {
	s.mu.Lock()
	s.onClear = append(s.onClear, fn)
	s.mu.Unlock()
}

// Credential returns the current credential, or "" when signed out.
func (s *Store) Credential() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.credential
}

// Identity returns a copy of the current identity and whether one is held.
func (s *Store) Identity() (model.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return model.Identity{}, false
	}
	return *s.identity, true
}

// Preferences returns the current display preferences.
func (s *Store) Preferences() Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preferences
}

// SetPreferences replaces the display preferences. They are not persisted.
func (s *Store) SetPreferences(p Preferences) {
	s.mu.Lock()
	s.preferences = p
	s.mu.Unlock()
}
