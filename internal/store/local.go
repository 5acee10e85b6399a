package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const (
	KeyAuth     = "auth"
	KeyUsername = "username"

	dbFileName = "local.sqlite"
)

// Local is the client's persisted key/value storage. It holds the credential token
// and the username it belongs to, nothing else.
type Local struct {
	Dir string
}

// Saved is the persisted credential pair. Both fields are set or neither is.
type Saved struct {
	Username string
	Auth     string
}

func (s Local) Path() string {
	return filepath.Join(filepath.Clean(s.Dir), dbFileName)
}

func (s Local) open(ctx context.Context) (*sql.DB, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return nil, errors.New("local storage: empty dir")
	}
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return nil, err
	}
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", s.Path())
	if err != nil {
		return nil, err
	}
	// CLI and TUI may run side by side; busy_timeout avoids "database is locked".
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS local_storage (
		k TEXT PRIMARY KEY,
		v TEXT NOT NULL
	);`); err != nil {
		_ = db.Close()
		return nil, err
	}
	_ = os.Chmod(s.Path(), 0o600)
	return db, nil
}

// Load returns the persisted pair, or nil when nothing (or only half a pair) is stored.
func (s Local) Load(ctx context.Context) (*Saved, error) {
	db, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `SELECT k, v FROM local_storage WHERE k IN (?, ?)`, KeyAuth, KeyUsername)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out Saved
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		switch k {
		case KeyAuth:
			out.Auth = v
		case KeyUsername:
			out.Username = v
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if out.Auth == "" || out.Username == "" {
		return nil, nil
	}
	return &out, nil
}

// Save writes both keys in one transaction.
func (s Local) Save(ctx context.Context, v Saved) error {
	if v.Auth == "" || v.Username == "" {
		return errors.New("local storage: auth and username are required")
	}
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for k, val := range map[string]string{KeyAuth: v.Auth, KeyUsername: v.Username} {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO local_storage(k, v) VALUES(?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
			k, val,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Clear removes both keys in one transaction. Missing storage is not an error.
func (s Local) Clear(ctx context.Context) error {
	if _, err := os.Stat(s.Path()); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	db, err := s.open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM local_storage WHERE k IN (?, ?)`, KeyAuth, KeyUsername); err != nil {
		return err
	}
	return tx.Commit()
}
