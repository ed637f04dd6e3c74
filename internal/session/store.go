package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"aidesk/internal/models"
)

// ErrNotFound is returned for operations on unknown or ended sessions.
var ErrNotFound = errors.New("session not found")

// Defaults seed every new session exactly once at creation time.
type Defaults struct {
	Provider string
	Model    string
	Language string
	Speed    float64
}

// Store owns all live sessions. It is the only place session state is
// mutated; every mutation happens under the store lock so callers never
// observe partial state. Nothing is persisted across process restarts.
type Store struct {
	mu       sync.RWMutex
	defaults Defaults
	sessions map[string]*models.Session
}

func NewStore(defaults Defaults) *Store {
	return &Store{
		defaults: defaults,
		sessions: make(map[string]*models.Session),
	}
}

// Create mints a new session with an empty transcript and default settings.
func (s *Store) Create() (*models.Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &models.Session{
		ID:        id,
		Provider:  s.defaults.Provider,
		Model:     s.defaults.Model,
		Language:  s.defaults.Language,
		Speed:     s.defaults.Speed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.sessions[id] = sess
	s.mu.Unlock()
	return snapshot(sess), nil
}

// Get returns a copy of the session so callers cannot mutate stored state.
func (s *Store) Get(id string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(sess), nil
}

// Delete ends a session. Deleting an unknown session is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// AppendMessage adds one transcript entry.
func (s *Store) AppendMessage(id string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.Transcript = append(sess.Transcript, msg)
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

// MarkLastFailed flags the most recent transcript entry as having no
// generated reply. No-op on an empty transcript.
func (s *Store) MarkLastFailed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if n := len(sess.Transcript); n > 0 {
		sess.Transcript[n-1].Failed = true
	}
	return nil
}

// ClearTranscript atomically empties the transcript. Idempotent.
func (s *Store) ClearTranscript(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	sess.Transcript = nil
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

// Transcript returns a copy of the ordered message sequence.
func (s *Store) Transcript(id string) ([]models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]models.Message, len(sess.Transcript))
	copy(out, sess.Transcript)
	return out, nil
}

// Settings carries a partial settings update; nil fields are left unchanged.
type Settings struct {
	Credential *string
	Provider   *string
	Model      *string
	Language   *string
	Speed      *float64
}

// UpdateSettings applies the non-nil fields. Every field is validated before
// any is applied; a rejected update leaves the session untouched.
func (s *Store) UpdateSettings(id string, upd Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if upd.Language != nil && !models.SupportedLanguage(*upd.Language) {
		return fmt.Errorf("unsupported language: %s", *upd.Language)
	}
	if upd.Speed != nil && *upd.Speed <= 0 {
		return fmt.Errorf("speed must be positive")
	}
	if upd.Credential != nil {
		sess.Credential = *upd.Credential
	}
	if upd.Provider != nil {
		sess.Provider = *upd.Provider
	}
	if upd.Model != nil {
		sess.Model = *upd.Model
	}
	if upd.Language != nil {
		sess.Language = *upd.Language
	}
	if upd.Speed != nil {
		sess.Speed = *upd.Speed
	}
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

func snapshot(sess *models.Session) *models.Session {
	cp := *sess
	cp.Transcript = make([]models.Message, len(sess.Transcript))
	copy(cp.Transcript, sess.Transcript)
	return &cp
}

func newID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
