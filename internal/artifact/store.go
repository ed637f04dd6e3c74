package artifact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultTTL             = time.Hour
	DefaultCleanupInterval = 10 * time.Minute

	wavMimeType = "audio/wav"
)

// Artifact is a generated audio file handed to the user. Artifacts are
// transient: each new synthesis for a session replaces the previous one, and
// a background sweeper removes anything past its TTL.
type Artifact struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Path      string    `json:"-"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store writes audio artifacts under baseDir and tracks them in a ledger so
// orphaned files can be swept after a restart.
type Store struct {
	db      *sql.DB
	baseDir string
	ttl     time.Duration
}

func NewStore(db *sql.DB, baseDir string, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{db: db, baseDir: baseDir, ttl: ttl}
}

// Save stores a new audio artifact for the session, replacing any previous
// artifacts the session owned.
func (s *Store) Save(ctx context.Context, sessionID string, data []byte) (*Artifact, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	if err := s.PurgeSession(ctx, sessionID); err != nil {
		log.Printf("purge previous artifacts for %s failed: %v", sessionID, err)
	}

	destDir := filepath.Join(s.baseDir, sessionID)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	now := time.Now().UTC()
	destPath := filepath.Join(destDir, fmt.Sprintf("speech-%d.wav", now.UnixNano()))
	if err := os.WriteFile(destPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write artifact: %w", err)
	}

	expiresAt := now.Add(s.ttl)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (session_id, stored_path, mime_type, size, created_at, expires_at) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, destPath, wavMimeType, int64(len(data)), now, expiresAt,
	)
	if err != nil {
		_ = os.Remove(destPath)
		return nil, fmt.Errorf("record artifact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("artifact id: %w", err)
	}
	return &Artifact{
		ID:        id,
		SessionID: sessionID,
		Path:      destPath,
		MimeType:  wavMimeType,
		Size:      int64(len(data)),
		CreatedAt: now,
		ExpiresAt: expiresAt,
	}, nil
}

// Get returns the artifact if it belongs to the session.
func (s *Store) Get(ctx context.Context, sessionID string, id int64) (*Artifact, error) {
	var a Artifact
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, stored_path, mime_type, size, created_at, expires_at FROM artifacts WHERE id = ? AND session_id = ?`,
		id, sessionID,
	).Scan(&a.ID, &a.SessionID, &a.Path, &a.MimeType, &a.Size, &a.CreatedAt, &a.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get artifact: %w", err)
	}
	return &a, nil
}

// PurgeSession removes every artifact the session owns, files included.
func (s *Store) PurgeSession(ctx context.Context, sessionID string) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, stored_path FROM artifacts WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("list session artifacts: %w", err)
	}
	defer rows.Close()

	type fileRow struct {
		id   int64
		path string
	}
	var files []fileRow
	for rows.Next() {
		var fr fileRow
		if err := rows.Scan(&fr.id, &fr.path); err != nil {
			return fmt.Errorf("scan artifact: %w", err)
		}
		files = append(files, fr)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, f := range files {
		s.removeArtifact(f.id, f.path)
	}
	return nil
}

// StartCleaner launches the TTL sweeper until ctx is cancelled.
func (s *Store) StartCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Store) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cleanupExpired(); err != nil {
				log.Printf("cleanup artifacts error: %v", err)
			}
		}
	}
}

func (s *Store) cleanupExpired() error {
	rows, err := s.db.Query(
		`SELECT id, stored_path FROM artifacts WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return err
	}
	defer rows.Close()

	type fileRow struct {
		id   int64
		path string
	}
	var files []fileRow
	for rows.Next() {
		var fr fileRow
		if err := rows.Scan(&fr.id, &fr.path); err != nil {
			return err
		}
		files = append(files, fr)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, f := range files {
		s.removeArtifact(f.id, f.path)
	}
	return nil
}

func (s *Store) removeArtifact(id int64, path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("remove artifact file %s failed: %v", path, err)
		return
	}
	if _, err := s.db.Exec(`DELETE FROM artifacts WHERE id = ?`, id); err != nil {
		log.Printf("delete artifact record %d failed: %v", id, err)
	}

	// prune empty session directories
	_ = os.Remove(filepath.Dir(path))
}
