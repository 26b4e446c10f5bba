// Package auth implements the optional student login: a numeric student ID
// exchanged for a token kept in the local kv table.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/masskarem1/PHYS.101-Ebook/internal/config"
	"github.com/masskarem1/PHYS.101-Ebook/internal/db"
)

const (
	keyStudentID = "login_student_id"
	keyToken     = "login_token"
)

var (
	// ErrMalformedID is returned for IDs that are not all digits or have
	// the wrong length.
	ErrMalformedID = errors.New("student ID must be digits only")
	// ErrNotLoggedIn is returned when no login is stored.
	ErrNotLoggedIn = errors.New("not logged in")
	// ErrBadToken is returned when a presented token does not match.
	ErrBadToken = errors.New("invalid login token")
)

// Session is the stored login.
type Session struct {
	StudentID string `json:"student_id"`
	Token     string `json:"token"`
}

// ValidateID trims id and checks it against the configured digit bounds.
func ValidateID(id string, cfg config.LoginConfig) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrMalformedID
	}
	for _, r := range id {
		if !unicode.IsDigit(r) || r > unicode.MaxASCII {
			return "", ErrMalformedID
		}
	}
	if cfg.MinDigits > 0 && len(id) < cfg.MinDigits {
		return "", fmt.Errorf("%w: at least %d digits", ErrMalformedID, cfg.MinDigits)
	}
	if cfg.MaxDigits > 0 && len(id) > cfg.MaxDigits {
		return "", fmt.Errorf("%w: at most %d digits", ErrMalformedID, cfg.MaxDigits)
	}
	return id, nil
}

// Store keeps the login in the kv table.
type Store struct {
	db  *db.DB
	cfg config.LoginConfig
}

func NewStore(database *db.DB, cfg config.LoginConfig) *Store {
	return &Store{db: database, cfg: cfg}
}

// Required reports whether the viewer must be unlocked by a login. A nil
// Store never requires one.
func (s *Store) Required() bool { return s != nil && s.cfg.Required }

// Login validates id and replaces any previous login with a fresh token.
func (s *Store) Login(ctx context.Context, id string) (Session, error) {
	id, err := ValidateID(id, s.cfg)
	if err != nil {
		return Session{}, err
	}
	sess := Session{StudentID: id, Token: uuid.New().String()}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("beginning login: %w", err)
	}
	defer tx.Rollback()
	for k, v := range map[string]string{keyStudentID: sess.StudentID, keyToken: sess.Token} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, datetime('now'))
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v,
		); err != nil {
			return Session{}, fmt.Errorf("storing login: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("committing login: %w", err)
	}
	return sess, nil
}

// Current returns the stored login.
func (s *Store) Current(ctx context.Context) (Session, error) {
	var sess Session
	for k, dst := range map[string]*string{keyStudentID: &sess.StudentID, keyToken: &sess.Token} {
		err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, k).Scan(dst)
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, ErrNotLoggedIn
		}
		if err != nil {
			return Session{}, fmt.Errorf("reading login: %w", err)
		}
	}
	return sess, nil
}

// Verify checks token against the stored login.
func (s *Store) Verify(ctx context.Context, token string) (Session, error) {
	sess, err := s.Current(ctx)
	if err != nil {
		return Session{}, err
	}
	if token == "" || token != sess.Token {
		return Session{}, ErrBadToken
	}
	return sess, nil
}

// Logout forgets the stored login.
func (s *Store) Logout(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key IN (?, ?)`, keyStudentID, keyToken); err != nil {
		return fmt.Errorf("clearing login: %w", err)
	}
	return nil
}
