package workspace

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/sources/testhelper"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/sources"
)

const usersPath = "/admin/directory/v1/users"

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := testhelper.NewServer(t, handler)
	client, err := NewClient(context.Background(), Config{
		Endpoint:   server.URL + "/",
		HTTPClient: server.Client(),
	})
	require.NoError(t, err)
	return client
}

func notFound(t *testing.T, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write(testhelper.LoadTestdata(t, "not_found.json"))
}

func TestNewClientRequiresCredentials(t *testing.T) {
	_, err := NewClient(context.Background(), Config{})
	assert.True(t, errors.IsNotConfigured(err))

	_, err = NewClient(context.Background(), Config{CredentialsJSON: []byte(`{}`), Subject: "admin@robojackets.org"})
	assert.True(t, errors.IsUnauthorized(err))
}

func TestUsers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, usersPath, r.URL.Path)
		assert.Equal(t, "my_customer", r.URL.Query().Get("customer"))
		assert.Equal(t, "500", r.URL.Query().Get("maxResults"))
		if r.URL.Query().Get("pageToken") == "page-2" {
			testhelper.WriteTestdata(t, w, "users_page2.json")
			return
		}
		testhelper.WriteTestdata(t, w, "users_page1.json")
	})

	users, err := client.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, sources.WorkspaceUser{
		ID:           "104857600000000000001",
		PrimaryEmail: "george.burdell@robojackets.org",
		GivenName:    "George",
		FamilyName:   "Burdell",
	}, users[0])
	assert.True(t, users[1].Suspended)
}

func TestUser(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == usersPath+"/george.burdell@robojackets.org" {
			testhelper.WriteTestdata(t, w, "user.json")
			return
		}
		notFound(t, w)
	})
	ctx := context.Background()

	user, err := client.User(ctx, "george.burdell@robojackets.org")
	require.NoError(t, err)
	assert.Equal(t, "104857600000000000001", user.ID)

	_, err = client.User(ctx, "ghost@robojackets.org")
	var nf *errors.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "ghost@robojackets.org", nf.ID)
}

func TestUpdateSendsFullProfile(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/104857600000000000001"))
		testhelper.DecodeBody(t, r, &body)
		testhelper.WriteTestdata(t, w, "user.json")
	})

	err := client.Update(context.Background(), "104857600000000000001", sources.WorkspaceProfile{
		Organizations: []sources.Organization{{Title: "Project Manager", Department: "RoboRacing", Primary: true}},
		Relations:     []sources.Relation{},
		Phones:        []sources.Phone{{Value: "+14045550100", Type: sources.PhoneMobile}},
	})
	require.NoError(t, err)

	orgs, ok := body["organizations"].([]any)
	require.True(t, ok)
	require.Len(t, orgs, 1)
	org := orgs[0].(map[string]any)
	assert.Equal(t, "Project Manager", org["title"])
	assert.Equal(t, "RoboRacing", org["department"])
	assert.Equal(t, true, org["primary"])

	relations, ok := body["relations"].([]any)
	require.True(t, ok, "empty relations are still sent")
	assert.Empty(t, relations)

	phones := body["phones"].([]any)
	assert.Equal(t, "mobile", phones[0].(map[string]any)["type"])
}

func TestUpdateOmitsPhonesWhenUnknown(t *testing.T) {
	var body map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		testhelper.DecodeBody(t, r, &body)
		testhelper.WriteTestdata(t, w, "user.json")
	})

	err := client.Update(context.Background(), "104857600000000000001", sources.WorkspaceProfile{
		Organizations: []sources.Organization{},
		Relations:     []sources.Relation{},
	})
	require.NoError(t, err)

	assert.Contains(t, body, "organizations")
	assert.NotContains(t, body, "phones")
}

func TestUpdateNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		notFound(t, w)
	})

	err := client.Update(context.Background(), "104857600000000000009", sources.WorkspaceProfile{})
	assert.True(t, errors.IsNotFound(err))
}

func TestServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"Not Authorized to access this resource/api"}}`))
	})

	_, err := client.Users(context.Background())
	assert.True(t, errors.IsUnauthorized(err))
}
