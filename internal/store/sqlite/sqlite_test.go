package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/store/sqlite"
	"github.com/agentstation/orgsync/internal/store/storetest"
	"github.com/agentstation/orgsync/pkg/directory"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "orgsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) directory.Store {
		return newStore(t)
	})
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "orgsync.db")

	store, err := sqlite.New(path)
	require.NoError(t, err)
	p := &directory.Person{Username: "gburdell3", HubSpotUserID: directory.Int64(9001)}
	storetest.Seed(t, store, []*directory.Person{p}, nil)
	require.NoError(t, store.Close())

	store, err = sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()

	err = store.View(ctx, func(r directory.Reader) error {
		got, err := r.PersonByExternalID(ctx, directory.SystemHubSpot, "9001")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestOpenBackfillsUsernameKeys(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "orgsync.db")

	// A people table from before usernames had a stored folding key.
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE people (
		id                       INTEGER PRIMARY KEY AUTOINCREMENT,
		username                 TEXT NOT NULL COLLATE NOCASE UNIQUE,
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
		reports_to_position_id   INTEGER,
		primary_team_id          INTEGER
	);
	INSERT INTO people (username) VALUES ('Ünal4'), ('GBurdell3');`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := sqlite.New(path)
	require.NoError(t, err)
	defer store.Close()

	err = store.View(ctx, func(r directory.Reader) error {
		got, err := r.PersonByUsername(ctx, "ünal4")
		require.NoError(t, err)
		assert.Equal(t, "Ünal4", got.Username)

		got, err = r.PersonByUsername(ctx, "gburdell3")
		require.NoError(t, err)
		assert.Equal(t, "GBurdell3", got.Username)
		return nil
	})
	require.NoError(t, err)
}
