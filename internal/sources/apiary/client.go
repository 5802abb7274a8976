// Package apiary provides a client for the Apiary membership API.
package apiary

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/agentstation/orgsync/internal/transport"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/sources"
)

// Response envelopes for the Apiary API.
type userResponse struct {
	User *sources.ApiaryUser `json:"user"`
}

type teamsResponse struct {
	Teams *[]sources.ApiaryTeam `json:"teams"`
}

type teamResponse struct {
	Team *sources.ApiaryTeam `json:"team"`
}

type updateTeamRequest struct {
	ProjectManagerID *int64 `json:"project_manager_id"`
}

// Client implements sources.Apiary over HTTP with a static bearer token.
type Client struct {
	transport *transport.Client
}

// NewClient creates an Apiary client.
func NewClient(server, token string, opts ...transport.Option) (*Client, error) {
	if server == "" || token == "" {
		return nil, errors.NewConfigError("apiary", "APIARY_SERVER and APIARY_TOKEN must be set", nil)
	}
	opts = append([]transport.Option{transport.WithAuth(&transport.BearerAuth{Token: token})}, opts...)
	return &Client{
		transport: transport.New(directory.SystemApiary.String(), server, opts...),
	}, nil
}

// User fetches a user by numeric ID or username.
func (c *Client) User(ctx context.Context, key string) (*sources.ApiaryUser, error) {
	var result userResponse
	if err := c.transport.Get(ctx, "/api/v1/users/"+url.PathEscape(key), nil, &result); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFoundError("apiary user", key)
		}
		return nil, err
	}
	if result.User == nil {
		return nil, errors.NewParseError("json", "apiary user response", "missing user", nil)
	}
	return result.User, nil
}

// Teams lists every team with its project manager.
func (c *Client) Teams(ctx context.Context) ([]sources.ApiaryTeam, error) {
	var result teamsResponse
	query := url.Values{"include": {"projectManager"}}
	if err := c.transport.Get(ctx, "/api/v1/teams", query, &result); err != nil {
		return nil, err
	}
	if result.Teams == nil {
		return nil, errors.NewParseError("json", "apiary teams response", "missing teams", nil)
	}
	return *result.Teams, nil
}

// Team fetches one team with its project manager.
func (c *Client) Team(ctx context.Context, id int64) (*sources.ApiaryTeam, error) {
	var result teamResponse
	query := url.Values{"include": {"projectManager"}}
	key := strconv.FormatInt(id, 10)
	if err := c.transport.Get(ctx, "/api/v1/teams/"+key, query, &result); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFoundError("apiary team", key)
		}
		return nil, err
	}
	if result.Team == nil {
		return nil, errors.NewParseError("json", "apiary team response", "missing team", nil)
	}
	return result.Team, nil
}

// SetProjectManager replaces the team's project manager.
func (c *Client) SetProjectManager(ctx context.Context, teamID int64, userID *int64) (*sources.ApiaryTeam, error) {
	var result teamResponse
	path := "/api/v1/teams/" + strconv.FormatInt(teamID, 10)
	body := updateTeamRequest{ProjectManagerID: userID}
	if err := c.transport.Send(ctx, http.MethodPatch, path, nil, body, &result, http.StatusOK, http.StatusCreated); err != nil {
		return nil, err
	}
	if result.Team == nil {
		return nil, errors.NewParseError("json", "apiary team response", "missing team", nil)
	}
	return result.Team, nil
}

var _ sources.Apiary = (*Client)(nil)
