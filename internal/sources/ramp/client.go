// Package ramp provides a client for the Ramp developer API.
package ramp

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/agentstation/orgsync/internal/transport"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/sources"
)

// OAuth scopes requested from Ramp.
const (
	ScopeUsersRead  = "users:read"
	ScopeUsersWrite = "users:write"
)

const usersPath = "/developer/v1/users"

// Response structures for the Ramp API.
type usersResponse struct {
	Data *[]sources.RampUser `json:"data"`
	Page struct {
		Next *string `json:"next"`
	} `json:"page"`
}

type updateUserRequest struct {
	DirectManagerID string `json:"direct_manager_id"`
	AutoPromote     bool   `json:"auto_promote"`
}

// Config holds the connection settings for Ramp.
type Config struct {
	Server       string
	ClientID     string
	ClientSecret string
	Scopes       []string
	HTTPClient   *http.Client
}

// Client implements sources.Ramp.
type Client struct {
	transport *transport.Client
}

// NewClient creates a Ramp client. The client credentials are sent with
// HTTP basic auth, as Ramp requires.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.NewConfigError("ramp", "RAMP_CLIENT_ID and RAMP_CLIENT_SECRET must be set", nil)
	}
	if cfg.Server == "" {
		cfg.Server = constants.DefaultRampServer
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{ScopeUsersRead, ScopeUsersWrite}
	}
	server := strings.TrimRight(cfg.Server, "/")

	credentials := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     server + "/developer/v1/token",
		Scopes:       cfg.Scopes,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	httpClient := credentials.Client(ctx)
	httpClient.Timeout = transport.DefaultHTTPTimeout

	return &Client{
		transport: transport.New(directory.SystemRamp.String(), server, transport.WithHTTPClient(httpClient)),
	}, nil
}

// Users lists every Ramp user, following page.next.
func (c *Client) Users(ctx context.Context) ([]sources.RampUser, error) {
	var all []sources.RampUser
	query := url.Values{"page_size": {strconv.Itoa(constants.RampPageSize)}}
	for {
		var result usersResponse
		if err := c.transport.Get(ctx, usersPath, query, &result); err != nil {
			return nil, err
		}
		if result.Data == nil {
			return nil, errors.NewParseError("json", "ramp users response", "missing data", nil)
		}
		all = append(all, *result.Data...)

		if result.Page.Next == nil || *result.Page.Next == "" {
			return all, nil
		}
		next, err := url.Parse(*result.Page.Next)
		if err != nil {
			return nil, errors.WrapParse("url", "ramp page.next", err)
		}
		query = next.Query()
	}
}

// User fetches a user by ID.
func (c *Client) User(ctx context.Context, id string) (*sources.RampUser, error) {
	var user sources.RampUser
	if err := c.transport.Get(ctx, usersPath+"/"+url.PathEscape(id), nil, &user); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFoundError("ramp user", id)
		}
		return nil, err
	}
	if user.ID == "" {
		return nil, errors.NewParseError("json", "ramp user response", "missing id", nil)
	}
	return &user, nil
}

// SetManager sets the user's direct manager, promoting the manager to a
// manager role if needed.
func (c *Client) SetManager(ctx context.Context, id, managerID string) error {
	body := updateUserRequest{DirectManagerID: managerID, AutoPromote: true}
	return c.transport.Send(ctx, http.MethodPatch, usersPath+"/"+url.PathEscape(id), nil, body, nil)
}

var _ sources.Ramp = (*Client)(nil)
