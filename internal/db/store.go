package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		userId TEXT NOT NULL,
		createdAt REAL NOT NULL,
		expiresAt REAL NOT NULL,
		revokedAt REAL
	);
	CREATE INDEX IF NOT EXISTS sessions_user ON sessions(userId);
	CREATE INDEX IF NOT EXISTS sessions_expires ON sessions(expiresAt);
`

// Store is the session database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1) // one writer

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateSession starts a session for userID lasting ttl.
func (s *Store) CreateSession(ctx context.Context, userID string, ttl time.Duration) (Session, error) {
	if userID == "" {
		return Session{}, errors.New("user id is required")
	}
	if ttl <= 0 {
		return Session{}, fmt.Errorf("session ttl must be positive, got %v", ttl)
	}
	now := s.now()
	sess := Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, userId, createdAt, expiresAt)
		VALUES (?, ?, ?, ?)
	`, sess.ID, sess.UserID, unixFromTime(sess.CreatedAt), unixFromTime(sess.ExpiresAt))
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// Session returns the session with id, or nil if there is none.
func (s *Store) Session(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, userId, createdAt, expiresAt, revokedAt
		FROM sessions
		WHERE id = ?
	`, id)

	var sess Session
	var createdAt, expiresAt float64
	var revokedAt sql.NullFloat64

	if err := row.Scan(&sess.ID, &sess.UserID, &createdAt, &expiresAt, &revokedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	sess.CreatedAt = timeFromUnix(createdAt)
	sess.ExpiresAt = timeFromUnix(expiresAt)
	if revokedAt.Valid {
		t := timeFromUnix(revokedAt.Float64)
		sess.RevokedAt = &t
	}
	return &sess, nil
}

// SessionsForUser returns a user's sessions, newest first.
func (s *Store) SessionsForUser(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, userId, createdAt, expiresAt, revokedAt
		FROM sessions
		WHERE userId = ?
		ORDER BY createdAt DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var createdAt, expiresAt float64
		var revokedAt sql.NullFloat64
		if err := rows.Scan(&sess.ID, &sess.UserID, &createdAt, &expiresAt, &revokedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.CreatedAt = timeFromUnix(createdAt)
		sess.ExpiresAt = timeFromUnix(expiresAt)
		if revokedAt.Valid {
			t := timeFromUnix(revokedAt.Float64)
			sess.RevokedAt = &t
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// RevokeSession marks a session revoked. It reports false if the session does not
// exist or was already revoked.
func (s *Store) RevokeSession(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET revokedAt = ?
		WHERE id = ? AND revokedAt IS NULL
	`, unixFromTime(s.now()), id)
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke session: %w", err)
	}
	return n > 0, nil
}

// PruneExpired deletes sessions that expired before now and returns how many.
func (s *Store) PruneExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expiresAt <= ?`, unixFromTime(s.now()))
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return res.RowsAffected()
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
