package transport

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/pkg/errors"
)

func TestBearerAuth(t *testing.T) {
	req := &http.Request{Header: make(http.Header)}
	(&BearerAuth{Token: "secret"}).Apply(req)
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))

	req = &http.Request{Header: make(http.Header)}
	(&BearerAuth{}).Apply(req)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestNoAuth(t *testing.T) {
	req := &http.Request{Header: make(http.Header)}
	(&NoAuth{}).Apply(req)
	assert.Empty(t, req.Header)
}

func TestClientURL(t *testing.T) {
	c := New("apiary", "https://my.example.org/")
	assert.Equal(t, "https://my.example.org/api/v1/users/gburdell3", c.URL("/api/v1/users/gburdell3", nil))
	assert.Equal(t, "https://my.example.org/api/v1/teams?include=projectManager",
		c.URL("api/v1/teams", url.Values{"include": {"projectManager"}}))
}

func TestClientGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"name":"RoboRacing"}`))
		case "/missing":
			http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
		case "/broken":
			http.Error(w, "oops", http.StatusInternalServerError)
		case "/garbage":
			_, _ = w.Write([]byte(`{not json`))
		}
	}))
	defer server.Close()

	c := New("apiary", server.URL, WithAuth(&BearerAuth{Token: "token"}))
	ctx := context.Background()

	var out struct {
		Name string `json:"name"`
	}
	require.NoError(t, c.Get(ctx, "/ok", nil, &out))
	assert.Equal(t, "RoboRacing", out.Name)

	err := c.Get(ctx, "/missing", nil, &out)
	assert.True(t, errors.IsNotFound(err))
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "apiary", apiErr.System)
	assert.Contains(t, apiErr.Endpoint, "/missing")

	err = c.Get(ctx, "/broken", nil, &out)
	assert.True(t, errors.IsUpstreamUnavailable(err))
	assert.False(t, errors.IsNotFound(err))

	err = c.Get(ctx, "/garbage", nil, &out)
	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestClientSend(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(body, &payload))
		assert.Equal(t, float64(42), payload["project_manager_id"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"team":{"id":5}}`))
	}))
	defer server.Close()

	c := New("apiary", server.URL)
	var out struct {
		Team struct {
			ID int64 `json:"id"`
		} `json:"team"`
	}
	err := c.Send(context.Background(), http.MethodPatch, "/api/v1/teams/5", nil,
		map[string]any{"project_manager_id": 42}, &out, http.StatusOK, http.StatusCreated)
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.Team.ID)

	err = c.Send(context.Background(), http.MethodPatch, "/api/v1/teams/5", nil,
		map[string]any{"project_manager_id": 42}, nil)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusCreated, apiErr.StatusCode)
}

func TestClientConnectionFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	err := New("ramp", server.URL).Get(context.Background(), "/users", nil, nil)
	var apiErr *errors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.Equal(t, "ramp", apiErr.System)
}
