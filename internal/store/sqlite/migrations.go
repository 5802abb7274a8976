package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/agentstation/orgsync/pkg/directory"
)

// schema creates the directory tables. Every uniqueness rule of the
// directory is a constraint here; the outbox lives in the same database
// so a mutation and the task it triggers commit together.
const schema = `
CREATE TABLE IF NOT EXISTS people (
	id                       INTEGER PRIMARY KEY AUTOINCREMENT,
	username                 TEXT NOT NULL,
	username_key             TEXT NOT NULL,
	first_name               TEXT NOT NULL DEFAULT '',
	last_name                TEXT NOT NULL DEFAULT '',
	email                    TEXT NOT NULL DEFAULT '',
	is_active                INTEGER NOT NULL DEFAULT 1,
	apiary_user_id           INTEGER UNIQUE,
	keycloak_user_id         TEXT UNIQUE,
	ramp_user_id             TEXT UNIQUE,
	google_workspace_user_id TEXT UNIQUE,
	hubspot_user_id          INTEGER UNIQUE,
	title                    TEXT,
	manual_hierarchy         INTEGER NOT NULL DEFAULT 0,
	reports_to_position_id   INTEGER REFERENCES positions(id) ON DELETE SET NULL,
	primary_team_id          INTEGER
);

CREATE TABLE IF NOT EXISTS positions (
	id                     INTEGER PRIMARY KEY AUTOINCREMENT,
	name                   TEXT NOT NULL,
	manages_team_id        INTEGER UNIQUE,
	primary_team_id        INTEGER NOT NULL,
	reports_to_position_id INTEGER REFERENCES positions(id) ON DELETE SET NULL,
	person_id              INTEGER UNIQUE REFERENCES people(id) ON DELETE SET NULL,
	UNIQUE (name, primary_team_id)
);

CREATE TABLE IF NOT EXISTS outbox_tasks (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	kind       TEXT NOT NULL,
	subject_id INTEGER NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	attempts   INTEGER NOT NULL DEFAULT 0,
	last_error TEXT NOT NULL DEFAULT '',
	available_at INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_people_username_key ON people(username_key);
CREATE INDEX IF NOT EXISTS idx_people_reports_to ON people(reports_to_position_id);
CREATE INDEX IF NOT EXISTS idx_positions_reports_to ON positions(reports_to_position_id);
CREATE INDEX IF NOT EXISTS idx_outbox_tasks_status ON outbox_tasks(status, available_at, id);
`

// runMigrations creates the schema if it doesn't exist and fills in
// username keys for databases created before they were stored.
func runMigrations(db *sql.DB) error {
	if err := addUsernameKey(db); err != nil {
		return err
	}
	_, err := db.Exec(schema)
	return err
}

// addUsernameKey adds people.username_key to an existing table. The key is
// directory.NormalizeUsername of the username, computed here rather than by
// SQLite, whose NOCASE collation only folds ASCII.
func addUsernameKey(db *sql.DB) error {
	var tables int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'people'`).Scan(&tables); err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if tables == 0 {
		return nil
	}
	var columns int
	if err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('people') WHERE name = 'username_key'`).Scan(&columns); err != nil {
		return fmt.Errorf("failed to inspect people table: %w", err)
	}
	if columns > 0 {
		return nil
	}

	if _, err := db.Exec(`ALTER TABLE people ADD COLUMN username_key TEXT NOT NULL DEFAULT ''`); err != nil {
		return fmt.Errorf("failed to add username_key: %w", err)
	}
	rows, err := db.Query(`SELECT id, username FROM people`)
	if err != nil {
		return fmt.Errorf("failed to read usernames: %w", err)
	}
	keys := make(map[int64]string)
	for rows.Next() {
		var (
			id       int64
			username string
		)
		if err := rows.Scan(&id, &username); err != nil {
			rows.Close()
			return fmt.Errorf("failed to read usernames: %w", err)
		}
		keys[id] = directory.NormalizeUsername(username)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read usernames: %w", err)
	}
	for id, key := range keys {
		if _, err := db.Exec(`UPDATE people SET username_key = ? WHERE id = ?`, key, id); err != nil {
			return fmt.Errorf("failed to backfill username_key: %w", err)
		}
	}
	return nil
}
