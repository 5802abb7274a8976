package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/orgsync/internal/store/memory"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/logging"
)

func TestHealth(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.Update(ctx, func(tx directory.Tx) error {
		if err := tx.Enqueue(ctx, directory.TaskKindDirectoryUpdate, 1); err != nil {
			return err
		}
		return tx.Enqueue(ctx, directory.TaskKindDirectoryUpdate, 2)
	}))

	srv := httptest.NewServer(New(":0", store, logging.NewNopLogger()).Handler())
	defer srv.Close()

	get := func() Health {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var h Health
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
		return h
	}

	h := get()
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 2, h.Pending)
	assert.Zero(t, h.Failed)

	claimed, err := store.ClaimTasks(ctx, 1, time.Hour)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, store.FailTask(ctx, claimed[0].ID, errors.New("boom"), time.Minute, 1))

	h = get()
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, 1, h.Pending)
	assert.Equal(t, 1, h.Failed)
}

func TestMetrics(t *testing.T) {
	srv := httptest.NewServer(New(":0", memory.New(), logging.NewNopLogger()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/metrics", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestStartAndShutdown(t *testing.T) {
	s := New("127.0.0.1:0", memory.New(), logging.NewNopLogger())
	require.NoError(t, s.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Shutdown(ctx))
}
