// Package testhelper provides utilities for serving recorded API responses
// to the source client tests.
package testhelper

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// LoadTestdata loads a file from the caller's testdata directory.
func LoadTestdata(t *testing.T, filename string) []byte {
	t.Helper()

	testdataPath := filepath.Join("testdata", filename)

	data, err := os.ReadFile(testdataPath) //nolint:gosec // Test file paths are controlled
	if err != nil {
		t.Fatalf("Failed to load testdata file %s: %v", testdataPath, err)
	}

	return data
}

// LoadJSON loads and unmarshals JSON from a testdata file.
func LoadJSON(t *testing.T, filename string, v any) {
	t.Helper()

	data := LoadTestdata(t, filename)

	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("Failed to unmarshal JSON from testdata file %s: %v", filename, err)
	}
}

// WriteTestdata writes a testdata file as a JSON response.
func WriteTestdata(t *testing.T, w http.ResponseWriter, filename string) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(LoadTestdata(t, filename))
}

// NewServer starts an httptest server that is closed when the test ends.
func NewServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// DecodeBody decodes a JSON request body.
func DecodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode request body: %v", err)
	}
}

// WriteJSON encodes v as a JSON response.
func WriteJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("Failed to encode response: %v", err)
	}
}
