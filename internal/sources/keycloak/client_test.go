package keycloak

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/sources/testhelper"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
)

const tokenPath = "/realms/master/protocol/openid-connect/token"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := testhelper.NewServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tokenPath {
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			assert.Equal(t, "orgsync", r.PostForm.Get("client_id"))
			assert.Equal(t, "shh", r.PostForm.Get("client_secret"))
			testhelper.WriteTestdata(t, w, "token.json")
			return
		}
		assert.Equal(t, "Bearer keycloak-access-token", r.Header.Get("Authorization"))
		handler(w, r)
	})

	client, err := NewClient(context.Background(), Config{
		Server:       server.URL,
		ClientID:     "orgsync",
		ClientSecret: "shh",
		HTTPClient:   server.Client(),
	})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Server: "https://sso.example.org"})
	assert.True(t, errors.IsNotConfigured(err))
}

func TestUsers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/realms/robojackets/users", r.URL.Path)
		assert.Equal(t, "0", r.URL.Query().Get("first"))
		assert.Equal(t, strconv.Itoa(constants.KeycloakPageSize), r.URL.Query().Get("max"))
		testhelper.WriteTestdata(t, w, "users.json")
	})

	users, err := client.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.Equal(t, "gburdell3", users[0].Username)
	assert.Equal(t, "George", users[0].FirstName)
	assert.True(t, users[0].Enabled)
	rampID, ok := users[0].RampUserID()
	assert.True(t, ok)
	assert.Equal(t, "2b5b1f4e-7a37-4b2a-9a2e-0e9b1c0d8f11", rampID)

	assert.False(t, users[1].Enabled)
	_, ok = users[1].WorkspaceAccount()
	assert.False(t, ok)
}

func TestUsersPaging(t *testing.T) {
	var pages atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		pages.Add(1)
		first, _ := strconv.Atoi(r.URL.Query().Get("first"))
		if first == 0 {
			users := make([]map[string]any, constants.KeycloakPageSize)
			for i := range users {
				users[i] = map[string]any{"id": strconv.Itoa(i), "username": "user" + strconv.Itoa(i)}
			}
			testhelper.WriteJSON(t, w, users)
			return
		}
		assert.Equal(t, constants.KeycloakPageSize, first)
		testhelper.WriteJSON(t, w, []map[string]any{{"id": "last", "username": "last"}})
	})

	users, err := client.Users(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, constants.KeycloakPageSize+1)
	assert.Equal(t, int32(2), pages.Load())
}

func TestFindByUsername(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("exact"))
		switch r.URL.Query().Get("username") {
		case "gburdell3":
			testhelper.WriteJSON(t, w, []map[string]any{{"id": "1", "username": "gburdell3"}})
		case "twins":
			testhelper.WriteJSON(t, w, []map[string]any{{"id": "1"}, {"id": "2"}})
		default:
			testhelper.WriteJSON(t, w, []map[string]any{})
		}
	})
	ctx := context.Background()

	user, err := client.FindByUsername(ctx, "gburdell3")
	require.NoError(t, err)
	assert.Equal(t, "1", user.ID)

	_, err = client.FindByUsername(ctx, "nobody")
	assert.True(t, errors.IsNotFound(err))

	_, err = client.FindByUsername(ctx, "twins")
	assert.ErrorIs(t, err, errors.ErrAmbiguous)
}

func TestSearchAttribute(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "googleWorkspaceAccount:george.burdell@robojackets.org", r.URL.Query().Get("q"))
		testhelper.WriteTestdata(t, w, "users.json")
	})

	users, err := client.SearchAttribute(context.Background(), "googleWorkspaceAccount", "george.burdell@robojackets.org")
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/admin/realms/robojackets/users/abc" {
			testhelper.WriteJSON(t, w, map[string]any{"id": "abc", "username": "gburdell3", "enabled": true})
			return
		}
		http.NotFound(w, r)
	})
	ctx := context.Background()

	user, err := client.User(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "gburdell3", user.Username)

	_, err = client.User(ctx, "missing")
	var notFound *errors.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestTokenFailure(t *testing.T) {
	server := testhelper.NewServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"unauthorized_client"}`, http.StatusUnauthorized)
	})
	client, err := NewClient(context.Background(), Config{
		Server: server.URL, ClientID: "orgsync", ClientSecret: "wrong", HTTPClient: server.Client(),
	})
	require.NoError(t, err)

	_, err = client.Users(context.Background())
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "keycloak", apiErr.System)
}
