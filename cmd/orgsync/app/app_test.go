package app

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/store/memory"
	"github.com/agentstation/orgsync/internal/store/storetest"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/sources"
	"github.com/agentstation/orgsync/pkg/sources/sourcestest"
)

func newTestApp(t *testing.T, store *memory.Store, clients sources.Clients) *App {
	t.Helper()
	t.Setenv("LOG_OUTPUT", "discard")
	t.Setenv("LOG_LEVEL", "")

	app, err := New("1.0.0", "abc123", "2026-01-01", "test",
		WithStore(store),
		WithClients(clients),
		WithLogger(logging.NewNopLogger()),
	)
	require.NoError(t, err)
	return app
}

// run executes the CLI and returns what it printed.
func run(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := app.createRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestApp_New(t *testing.T) {
	app := newTestApp(t, memory.New(), sources.Clients{})

	assert.Equal(t, "1.0.0", app.Version())
	assert.Equal(t, "abc123", app.Commit())
	assert.Equal(t, "2026-01-01", app.Date())
	assert.Equal(t, "test", app.BuiltBy())
	assert.NotNil(t, app.Logger())
	assert.NotNil(t, app.Config())
}

func TestApp_Shutdown(t *testing.T) {
	app := newTestApp(t, memory.New(), sources.Clients{})
	_, err := app.Store()
	require.NoError(t, err)
	assert.NoError(t, app.Shutdown(context.Background()))
	assert.NoError(t, app.Shutdown(context.Background()))
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, newTestApp(t, memory.New(), sources.Clients{}), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "orgsync version 1.0.0")
	assert.Contains(t, out, "commit: abc123")
}

func TestReconcileCommand(t *testing.T) {
	store := memory.New()
	keycloak := sourcestest.NewKeycloak(sources.KeycloakUser{
		ID:        "kc-1",
		Username:  "gburdell3",
		FirstName: "George",
		LastName:  "Burdell",
		Enabled:   true,
	})
	app := newTestApp(t, store, sources.Clients{Keycloak: keycloak})

	out, err := run(t, app, "reconcile", "keycloak", "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, "Added 1 person.\n", out)

	out, err = run(t, app, "reconcile", "fetch_users_from_keycloak", "-o", "json")
	require.NoError(t, err)
	var reports []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "fetch_users_from_keycloak", reports[0]["procedure"])
	assert.Empty(t, reports[0]["counters"])
}

func TestReconcileCommand_Errors(t *testing.T) {
	app := newTestApp(t, memory.New(), sources.Clients{})

	t.Run("unknown procedure", func(t *testing.T) {
		_, err := run(t, app, "reconcile", "payroll")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown procedure "payroll"`)
	})

	t.Run("missing client", func(t *testing.T) {
		_, err := run(t, app, "reconcile", "hubspot", "-o", "text")
		assert.True(t, errors.IsNotConfigured(err))
	})

	t.Run("all stops at the first failure", func(t *testing.T) {
		out, err := run(t, app, "reconcile", "all", "-o", "json")
		assert.True(t, errors.IsNotConfigured(err))
		var reports []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &reports))
		assert.Len(t, reports, 1)
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := run(t, app, "reconcile", "keycloak", "-o", "xml")
		assert.Error(t, err)
	})
}

func TestImportCommand_Validation(t *testing.T) {
	app := newTestApp(t, memory.New(), sources.Clients{})

	_, err := run(t, app, "import", "ramp-user", "not-a-uuid")
	assert.True(t, errors.IsValidationError(err))

	_, err = run(t, app, "import", "workspace-user", "abc")
	assert.True(t, errors.IsValidationError(err))
}

func TestPersonCommands(t *testing.T) {
	store := memory.New()
	p := &directory.Person{Username: "gburdell3", FirstName: "George", LastName: "Burdell", Active: true}
	storetest.Seed(t, store, []*directory.Person{p}, nil)
	app := newTestApp(t, store, sources.Clients{})

	out, err := run(t, app, "person", "set", "gburdell3", "--title", "Captain", "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, "No changes made.\n", out)

	out, err = run(t, app, "person", "list", "-o", "json")
	require.NoError(t, err)
	var people []directory.Person
	require.NoError(t, json.Unmarshal([]byte(out), &people))
	require.Len(t, people, 1)
	require.NotNil(t, people[0].Title)
	assert.Equal(t, "Captain", *people[0].Title)

	out, err = run(t, app, "tasks", "-o", "json")
	require.NoError(t, err)
	var pending []directory.Task
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, p.ID, pending[0].SubjectID)

	_, err = run(t, app, "person", "show", "nobody")
	assert.True(t, errors.IsNotFound(err))
}

func TestPositionCommands(t *testing.T) {
	app := newTestApp(t, memory.New(), sources.Clients{})

	out, err := run(t, app, "position", "create", "--name", "Lead", "--team", "5", "-o", "text")
	require.NoError(t, err)
	assert.Equal(t, "Added 1 position.\n", out)

	out, err = run(t, app, "position", "list", "-o", "json")
	require.NoError(t, err)
	var positions []directory.Position
	require.NoError(t, json.Unmarshal([]byte(out), &positions))
	require.Len(t, positions, 1)
	assert.Equal(t, "Lead", positions[0].Name)

	_, err = run(t, app, "position", "set", "x", "--name", "Chief")
	assert.True(t, errors.IsValidationError(err))
}

func TestWorkerCommand_Once(t *testing.T) {
	store := memory.New()
	p := &directory.Person{Username: "gburdell3", Active: true}
	storetest.Seed(t, store, []*directory.Person{p}, nil)
	require.NoError(t, store.Update(context.Background(), func(tx directory.Tx) error {
		return tx.Enqueue(context.Background(), directory.TaskKindDirectoryUpdate, p.ID)
	}))

	// Without a Workspace client the update fails and waits for a retry.
	app := newTestApp(t, store, sources.Clients{})
	out, err := run(t, app, "worker", "--once", "-o", "json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"succeeded":0,"failed":1}`, out)

	pending, err := store.Tasks(context.Background(), directory.TaskPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, "configuration error")
}
