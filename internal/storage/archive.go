// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/g4chat/internal/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its configuration in package globals.
var gooseMu sync.Mutex

// =============================================================================
// ARCHIVE
// =============================================================================

// Archive is a local SQLite copy of the last reconciled sessions and
// transcripts, readable without the backend.
type Archive struct {
	db   *sql.DB
	path string
}

// OpenArchive opens or creates the archive at path and migrates it.
func OpenArchive(path string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// One writer; SQLite serializes anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Archive{db: db, path: path}, nil
}

func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate archive: %w", err)
	}
	return nil
}

// Path returns the archive file path.
func (a *Archive) Path() string {
	return a.path
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// withTx runs fn in a transaction, rolling back when it fails.
func (a *Archive) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// SESSIONS
// =============================================================================

// SaveSessions replaces the archived session list with sessions, in order.
func (a *Archive) SaveSessions(ctx context.Context, sessions []model.Session) error {
	return a.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions`); err != nil {
			return fmt.Errorf("clear sessions: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO sessions (
				id, position, title, status, is_public, message_count, model,
				token_usage, created_at, updated_at, last_accessed_at, expires_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, s := range sessions {
			if s.ID == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx,
				s.ID, i, s.Title, string(s.Status), s.IsPublic, s.MessageCount, s.Model,
				s.TokenUsage, unixNano(s.CreatedAt), unixNano(s.UpdatedAt),
				unixNano(s.LastAccessedAt), unixNano(s.ExpiresAt),
			); err != nil {
				return fmt.Errorf("archive session %s: %w", s.ID, err)
			}
		}
		return nil
	})
}

// SaveSession inserts or updates one archived session. A new session goes to
// the end of the list; an existing one keeps its place.
func (a *Archive) SaveSession(ctx context.Context, s model.Session) error {
	if s.ID == "" {
		return nil
	}
	return a.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (
				id, position, title, status, is_public, message_count, model,
				token_usage, created_at, updated_at, last_accessed_at, expires_at
			) VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM sessions), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				status = excluded.status,
				is_public = excluded.is_public,
				message_count = excluded.message_count,
				model = excluded.model,
				token_usage = excluded.token_usage,
				created_at = excluded.created_at,
				updated_at = excluded.updated_at,
				last_accessed_at = excluded.last_accessed_at,
				expires_at = excluded.expires_at`,
			s.ID, s.Title, string(s.Status), s.IsPublic, s.MessageCount, s.Model,
			s.TokenUsage, unixNano(s.CreatedAt), unixNano(s.UpdatedAt),
			unixNano(s.LastAccessedAt), unixNano(s.ExpiresAt),
		)
		if err != nil {
			return fmt.Errorf("archive session %s: %w", s.ID, err)
		}
		return nil
	})
}

// LoadSessions returns the archived session list.
func (a *Archive) LoadSessions(ctx context.Context) ([]model.Session, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, title, status, is_public, message_count, model, token_usage,
		       created_at, updated_at, last_accessed_at, expires_at
		FROM sessions ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	defer rows.Close()

	var out []model.Session
	for rows.Next() {
		var (
			s                                  model.Session
			status                             string
			created, updated, accessed, expiry int64
		)
		if err := rows.Scan(&s.ID, &s.Title, &status, &s.IsPublic, &s.MessageCount,
			&s.Model, &s.TokenUsage, &created, &updated, &accessed, &expiry); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		s.Status = model.ParseStatus(status)
		s.CreatedAt = fromUnixNano(created)
		s.UpdatedAt = fromUnixNano(updated)
		s.LastAccessedAt = fromUnixNano(accessed)
		s.ExpiresAt = fromUnixNano(expiry)
		out = append(out, s)
	}
	return out, rows.Err()
}

// =============================================================================
// MESSAGES
// =============================================================================

// SaveMessages replaces the archived transcript of sessionID. Messages still
// streaming are not archived.
func (a *Archive) SaveMessages(ctx context.Context, sessionID string, msgs []model.Message) error {
	if sessionID == "" {
		return nil
	}
	return a.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
			return fmt.Errorf("clear messages: %w", err)
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO messages (
				id, session_id, position, role, content, timestamp, is_edited, token_count, model
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		pos := 0
		for _, m := range msgs {
			if m.IsStreaming || m.ID == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx,
				m.ID, sessionID, pos, m.Role.String(), m.Content, unixNano(m.Timestamp),
				m.IsEdited, m.TokenCount, m.Model,
			); err != nil {
				return fmt.Errorf("archive message %s: %w", m.ID, err)
			}
			pos++
		}
		return nil
	})
}

// LoadMessages returns the archived transcript of sessionID.
func (a *Archive) LoadMessages(ctx context.Context, sessionID string) ([]model.Message, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, role, content, timestamp, is_edited, token_count, model
		FROM messages WHERE session_id = ? ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var (
			m    model.Message
			role string
			ts   int64
		)
		if err := rows.Scan(&m.ID, &role, &m.Content, &ts, &m.IsEdited, &m.TokenCount, &m.Model); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.SessionID = sessionID
		m.Role = model.ParseRole(role)
		m.Timestamp = fromUnixNano(ts)
		out = append(out, m)
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
