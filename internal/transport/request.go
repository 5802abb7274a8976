package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"slices"

	"github.com/agentstation/orgsync/pkg/errors"
)

// DecodeResponse closes the body, returns an *errors.APIError for any status
// outside accepted (default 200), and decodes the JSON body into target.
// A 404 therefore satisfies errors.IsNotFound.
func DecodeResponse(system string, resp *http.Response, target any, accepted ...int) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}

	if len(accepted) == 0 {
		accepted = []int{http.StatusOK}
	}
	if !slices.Contains(accepted, resp.StatusCode) {
		endpoint := ""
		if resp.Request != nil && resp.Request.URL != nil {
			endpoint = resp.Request.URL.String()
		}
		return &errors.APIError{
			System:     system,
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   endpoint,
		}
	}

	if target == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", system+" response", err)
	}
	return nil
}
