// Package session records detached runs so that list, attach, logs and stop
// can find their containers later. Records live in a SQLite database shared
// by every ccs process on the machine.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration

	"github.com/majorcontext/ccs/internal/config"
	"github.com/majorcontext/ccs/internal/id"
	"github.com/majorcontext/ccs/internal/log"
)

// ContainerPrefix starts every container name ccs creates.
const ContainerPrefix = "ccs-"

var (
	// ErrNotFound is returned when no session matches.
	ErrNotFound = errors.New("session not found")
	// ErrExists is returned when a container name is already registered.
	ErrExists = errors.New("session already registered")
)

// validSessionID matches IDs produced by New.
var validSessionID = regexp.MustCompile(`^[a-z]+_[0-9a-f]+$`)

// Session is one detached run.
type Session struct {
	ID            string    `json:"id"`
	ContainerName string    `json:"container_name"`
	RepoName      string    `json:"repo_name"`
	Workspace     string    `json:"workspace"`
	CreatedAt     time.Time `json:"created_at"`
}

// New returns a session record with a fresh ID.
func New(containerName, repoName, workspace string, now time.Time) *Session {
	return &Session{
		ID:            id.Generate("ses"),
		ContainerName: containerName,
		RepoName:      repoName,
		Workspace:     workspace,
		CreatedAt:     now.UTC(),
	}
}

// AmbiguousError is returned when a prefix matches more than one session.
type AmbiguousError struct {
	Ref     string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%q matches %d sessions: %s", e.Ref, len(e.Matches), strings.Join(e.Matches, ", "))
}

// Store is the session registry.
type Store struct {
	db *sql.DB
}

// DefaultPath returns ~/.ccs/sessions.db (or under $CCS_HOME).
func DefaultPath() string {
	return filepath.Join(config.Dir(), "sessions.db")
}

// Open opens or creates the registry at path. Write transactions take the
// database lock up front and wait for other processes rather than failing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating registry directory: %w", err)
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening session registry: %w", err)
	}
	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing session registry: %w", err)
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id             TEXT PRIMARY KEY,
			container_name TEXT NOT NULL UNIQUE,
			repo_name      TEXT NOT NULL,
			workspace      TEXT NOT NULL,
			created_at     TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
	`)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add registers sess.
func (s *Store) Add(ctx context.Context, sess *Session) error {
	if !validSessionID.MatchString(sess.ID) {
		return fmt.Errorf("invalid session ID: %s", sess.ID)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sessions WHERE id = ? OR container_name = ?`,
			sess.ID, sess.ContainerName).Scan(&n)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", ErrExists, sess.ContainerName)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (id, container_name, repo_name, workspace, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, sess.ID, sess.ContainerName, sess.RepoName, sess.Workspace,
			sess.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("inserting session: %w", err)
		}
		log.Debug("registered session", "id", sess.ID, "container", sess.ContainerName)
		return nil
	})
}

// List returns all sessions, newest first.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, container_name, repo_name, workspace, created_at
		FROM sessions ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Get finds a session by ID, exact container name, or unique prefix of
// either. The ccs- prefix on container names may be omitted.
func (s *Store) Get(ctx context.Context, ref string) (*Session, error) {
	if ref == "" {
		return nil, ErrNotFound
	}
	sessions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return match(sessions, ref)
}

func match(sessions []*Session, ref string) (*Session, error) {
	long := ref
	if !strings.HasPrefix(ref, ContainerPrefix) {
		long = ContainerPrefix + ref
	}
	for _, sess := range sessions {
		if sess.ID == ref || sess.ContainerName == ref || sess.ContainerName == long {
			return sess, nil
		}
	}

	var found []*Session
	for _, sess := range sessions {
		if strings.HasPrefix(sess.ID, ref) ||
			strings.HasPrefix(sess.ContainerName, ref) ||
			strings.HasPrefix(sess.ContainerName, long) {
			found = append(found, sess)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	case 1:
		return found[0], nil
	}
	names := make([]string, len(found))
	for i, sess := range found {
		names[i] = sess.ContainerName
	}
	return nil, &AmbiguousError{Ref: ref, Matches: names}
}

// Remove deletes the sessions with the given IDs. Unknown IDs are ignored.
func (s *Store) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
				return fmt.Errorf("removing session %s: %w", id, err)
			}
		}
		log.Debug("removed sessions", "ids", ids)
		return nil
	})
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var created string
	if err := row.Scan(&sess.ID, &sess.ContainerName, &sess.RepoName, &sess.Workspace, &created); err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parsing session timestamp: %w", err)
	}
	sess.CreatedAt = t
	return &sess, nil
}
