package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/delinked/delinked/core"
)

// SQLiteStore is a durable UserStore backed by a local SQLite database.
// Nonce consumption is a conditional UPDATE, so the compare-and-swap happens
// inside the engine.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite store at the given path. Parent
// directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for better concurrent performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("sqlite store initialized", "path", path)
	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			address TEXT NOT NULL UNIQUE,
			nonce TEXT NOT NULL,
			role TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS profiles (
			user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			name TEXT NOT NULL DEFAULT '',
			organization_name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			skills TEXT NOT NULL DEFAULT '[]',
			experience INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateUser(ctx context.Context, user *core.User, profile *core.Profile) error {
	skills, err := json.Marshal(emptyIfNil(profile.Skills))
	if err != nil {
		return fmt.Errorf("failed to marshal skills: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, address, nonce, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.Address, user.Nonce, string(user.Role), user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ErrAlreadyExists
		}
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO profiles (user_id, name, organization_name, email, skills, experience, completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		profile.UserID, profile.Name, profile.OrganizationName, profile.Email,
		string(skills), profile.Experience, boolToInt(profile.Completed),
		profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	return nil
}

func (s *SQLiteStore) UserByAddress(ctx context.Context, address string) (*core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, address, nonce, role, created_at, updated_at FROM users WHERE address = ?`, address))
}

func (s *SQLiteStore) UserByID(ctx context.Context, id string) (*core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, address, nonce, role, created_at, updated_at FROM users WHERE id = ?`, id))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	var role string
	err := row.Scan(&u.ID, &u.Address, &u.Nonce, &role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	u.Role = core.Role(role)
	return &u, nil
}

func (s *SQLiteStore) SetNonce(ctx context.Context, address, nonce string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET nonce = ?, updated_at = ? WHERE address = ?`,
		nonce, time.Now().UTC(), address)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ConsumeNonce(ctx context.Context, address, presented, next string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET nonce = ?, updated_at = ? WHERE address = ? AND nonce = ?`,
		next, time.Now().UTC(), address, presented)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	if affected > 0 {
		return nil
	}

	// Distinguish an unknown address from a consumed nonce.
	if _, err := s.UserByAddress(ctx, address); err != nil {
		return err
	}
	return core.ErrNonceMismatch
}

func (s *SQLiteStore) Profile(ctx context.Context, userID string) (*core.Profile, error) {
	var p core.Profile
	var skills string
	var completed int
	err := s.db.QueryRowContext(ctx,
		`SELECT p.user_id, u.role, p.name, p.organization_name, p.email, p.skills, p.experience, p.completed, p.created_at, p.updated_at
		 FROM profiles p JOIN users u ON u.id = p.user_id
		 WHERE p.user_id = ?`, userID).
		Scan(&p.UserID, &p.Role, &p.Name, &p.OrganizationName, &p.Email, &skills, &p.Experience, &completed, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrStore, err)
	}

	if err := json.Unmarshal([]byte(skills), &p.Skills); err != nil {
		return nil, fmt.Errorf("invalid skills column for user %s: %w", userID, err)
	}
	if len(p.Skills) == 0 {
		p.Skills = nil
	}
	p.Completed = completed != 0
	return &p, nil
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, profile *core.Profile) error {
	skills, err := json.Marshal(emptyIfNil(profile.Skills))
	if err != nil {
		return fmt.Errorf("failed to marshal skills: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE profiles
		 SET name = ?, organization_name = ?, email = ?, skills = ?, experience = ?, completed = ?, updated_at = ?
		 WHERE user_id = ?`,
		profile.Name, profile.OrganizationName, profile.Email, string(skills),
		profile.Experience, boolToInt(profile.Completed), profile.UpdatedAt, profile.UserID)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrStore, err)
	}
	if affected == 0 {
		return core.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
