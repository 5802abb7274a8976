// Package hubspot provides a read-only client for HubSpot user provisioning.
package hubspot

import (
	"context"
	"net/url"
	"strconv"

	"github.com/agentstation/orgsync/internal/transport"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/sources"
)

// Response structures for the HubSpot settings API.
type usersResponse struct {
	Results *[]userResponse `json:"results"`
	Paging  *struct {
		Next *struct {
			After string `json:"after"`
		} `json:"next"`
	} `json:"paging"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Client implements sources.HubSpot with a private app access token.
type Client struct {
	transport *transport.Client
}

// NewClient creates a HubSpot client.
func NewClient(server, accessToken string, opts ...transport.Option) (*Client, error) {
	if accessToken == "" {
		return nil, errors.NewConfigError("hubspot", "HUBSPOT_ACCESS_TOKEN must be set", nil)
	}
	if server == "" {
		server = constants.DefaultHubSpotServer
	}
	opts = append([]transport.Option{transport.WithAuth(&transport.BearerAuth{Token: accessToken})}, opts...)
	return &Client{
		transport: transport.New(directory.SystemHubSpot.String(), server, opts...),
	}, nil
}

// Users lists every user, following paging.next.after.
func (c *Client) Users(ctx context.Context) ([]sources.HubSpotUser, error) {
	var all []sources.HubSpotUser
	after := ""
	for {
		query := url.Values{"limit": {strconv.Itoa(constants.HubSpotPageSize)}}
		if after != "" {
			query.Set("after", after)
		}

		var result usersResponse
		if err := c.transport.Get(ctx, "/settings/v3/users", query, &result); err != nil {
			return nil, err
		}
		if result.Results == nil {
			return nil, errors.NewParseError("json", "hubspot users response", "missing results", nil)
		}
		for _, u := range *result.Results {
			user, err := convertUser(u)
			if err != nil {
				return nil, err
			}
			all = append(all, user)
		}

		if result.Paging == nil || result.Paging.Next == nil || result.Paging.Next.After == "" {
			return all, nil
		}
		after = result.Paging.Next.After
	}
}

func convertUser(u userResponse) (sources.HubSpotUser, error) {
	id, err := strconv.ParseInt(u.ID, 10, 64)
	if err != nil {
		return sources.HubSpotUser{}, errors.NewParseError("json", "hubspot users response", "invalid user id "+strconv.Quote(u.ID), err)
	}
	return sources.HubSpotUser{ID: id, Email: u.Email}, nil
}

var _ sources.HubSpot = (*Client)(nil)
