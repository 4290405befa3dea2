package store

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// schema matches spec §6 exactly: two relations, video_hash referencing
// file_digests by shared id.
const schema = `
CREATE TABLE IF NOT EXISTS file_digests (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	path   TEXT UNIQUE NOT NULL,
	digest BLOB,
	size   INTEGER
);

CREATE TABLE IF NOT EXISTS video_hash (
	id        INTEGER PRIMARY KEY,
	histogram BLOB,
	FOREIGN KEY (id) REFERENCES file_digests (id) ON DELETE CASCADE
);
`

// openDB opens (creating if absent) the sqlite file at path, pings it,
// enables foreign keys, and ensures the schema exists. Mirrors the
// teacher's sqlite.InitDB shape.
func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting PRAGMA foreign_keys: %w", err)
	}

	// sqlite only supports one writer at a time; the Concurrency Fabric
	// additionally serializes at the application level, but this keeps
	// the driver itself from fanning out concurrent writer connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	slog.Debug("store schema ready", slog.String("path", path))
	return db, nil
}

// resetSchema drops and recreates both relations atomically, used by
// open(path, reset=true) per spec §4.1.
func resetSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin reset transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DROP TABLE IF EXISTS video_hash;`); err != nil {
		return fmt.Errorf("dropping video_hash: %w", err)
	}
	if _, err = tx.Exec(`DROP TABLE IF EXISTS file_digests;`); err != nil {
		return fmt.Errorf("dropping file_digests: %w", err)
	}
	if _, err = tx.Exec(schema); err != nil {
		return fmt.Errorf("recreating schema: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit reset transaction: %w", err)
	}
	return nil
}
