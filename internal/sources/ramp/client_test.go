package ramp

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/sources/testhelper"
	"github.com/agentstation/orgsync/pkg/errors"
)

func newTestClient(t *testing.T, handler func(serverURL string, w http.ResponseWriter, r *http.Request)) *Client {
	t.Helper()
	var serverURL string
	server := testhelper.NewServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/developer/v1/token" {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok, "client credentials use basic auth")
			assert.Equal(t, "ramp-client", user)
			assert.Equal(t, "ramp-secret", pass)
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "users:read users:write", r.PostForm.Get("scope"))
			testhelper.WriteTestdata(t, w, "token.json")
			return
		}
		assert.Equal(t, "Bearer ramp-access-token", r.Header.Get("Authorization"))
		handler(serverURL, w, r)
	})
	serverURL = server.URL

	client, err := NewClient(context.Background(), Config{
		Server:       server.URL,
		ClientID:     "ramp-client",
		ClientSecret: "ramp-secret",
		HTTPClient:   server.Client(),
	})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.True(t, errors.IsNotConfigured(err))
}

func TestUsersFollowsNextPage(t *testing.T) {
	client := newTestClient(t, func(serverURL string, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/developer/v1/users", r.URL.Path)
		if r.URL.Query().Get("start") == "" {
			assert.Equal(t, "100", r.URL.Query().Get("page_size"))
			body := strings.Replace(string(testhelper.LoadTestdata(t, "users_page1.json")),
				"NEXT_URL", serverURL+"/developer/v1/users?page_size=100&start=9d8c7b6a", 1)
			_, _ = w.Write([]byte(body))
			return
		}
		assert.Equal(t, "9d8c7b6a", r.URL.Query().Get("start"))
		testhelper.WriteTestdata(t, w, "users_page2.json")
	})

	users, err := client.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)

	assert.True(t, users[0].Active())
	require.NotNil(t, users[0].Phone)
	assert.Equal(t, "+14045550100", *users[0].Phone)
	require.NotNil(t, users[0].ManagerID)
	assert.Equal(t, users[1].ID, *users[0].ManagerID)

	assert.False(t, users[1].Active())
	assert.Nil(t, users[1].Phone)
	assert.Nil(t, users[1].ManagerID)
}

func TestUsersMissingData(t *testing.T) {
	client := newTestClient(t, func(_ string, w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error_v2":{}}`))
	})

	_, err := client.Users(context.Background())
	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestUser(t *testing.T) {
	client := newTestClient(t, func(_ string, w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/developer/v1/users/abc" {
			testhelper.WriteJSON(t, w, map[string]any{"id": "abc", "status": "USER_ACTIVE"})
			return
		}
		http.NotFound(w, r)
	})
	ctx := context.Background()

	user, err := client.User(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, user.Active())

	_, err = client.User(ctx, "nope")
	assert.True(t, errors.IsNotFound(err))
}

func TestSetManager(t *testing.T) {
	client := newTestClient(t, func(_ string, w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/developer/v1/users/abc", r.URL.Path)
		var body map[string]any
		testhelper.DecodeBody(t, r, &body)
		assert.Equal(t, "def", body["direct_manager_id"])
		assert.Equal(t, true, body["auto_promote"])
		testhelper.WriteJSON(t, w, map[string]any{"id": "abc"})
	})

	require.NoError(t, client.SetManager(context.Background(), "abc", "def"))
}

func TestSetManagerRejected(t *testing.T) {
	client := newTestClient(t, func(_ string, w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error_v2":{"error_code":"DEVELOPER_7003"}}`, http.StatusBadRequest)
	})

	err := client.SetManager(context.Background(), "abc", "def")
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}
