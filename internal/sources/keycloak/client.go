// Package keycloak provides a client for the Keycloak admin REST API.
package keycloak

import (
	"context"
	"fmt"
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

// Config holds the connection settings for Keycloak.
type Config struct {
	Server       string
	Realm        string
	ClientID     string
	ClientSecret string

	// HTTPClient is used for token and API requests. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

// Client implements sources.Keycloak. Tokens are obtained from the master
// realm with the client credentials grant and refreshed automatically.
type Client struct {
	transport *transport.Client
	realm     string
}

// NewClient creates a Keycloak client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Server == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.NewConfigError("keycloak",
			"KEYCLOAK_SERVER, KEYCLOAK_ADMIN_CLIENT_ID and KEYCLOAK_ADMIN_CLIENT_SECRET must be set", nil)
	}
	if cfg.Realm == "" {
		cfg.Realm = constants.DefaultKeycloakRealm
	}
	server := strings.TrimRight(cfg.Server, "/")

	credentials := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     server + "/realms/master/protocol/openid-connect/token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	httpClient := credentials.Client(ctx)
	httpClient.Timeout = transport.DefaultHTTPTimeout

	return &Client{
		transport: transport.New(directory.SystemKeycloak.String(), server, transport.WithHTTPClient(httpClient)),
		realm:     cfg.Realm,
	}, nil
}

func (c *Client) usersPath() string {
	return "/admin/realms/" + url.PathEscape(c.realm) + "/users"
}

// Users lists every user in the realm, paging until a short page.
func (c *Client) Users(ctx context.Context) ([]sources.KeycloakUser, error) {
	var all []sources.KeycloakUser
	for first := 0; ; first += constants.KeycloakPageSize {
		query := url.Values{
			"first": {strconv.Itoa(first)},
			"max":   {strconv.Itoa(constants.KeycloakPageSize)},
		}
		page, err := c.search(ctx, query)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < constants.KeycloakPageSize {
			return all, nil
		}
	}
}

// User fetches a user by ID.
func (c *Client) User(ctx context.Context, id string) (*sources.KeycloakUser, error) {
	var user sources.KeycloakUser
	if err := c.transport.Get(ctx, c.usersPath()+"/"+url.PathEscape(id), nil, &user); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NewNotFoundError("keycloak user", id)
		}
		return nil, err
	}
	if user.ID == "" {
		return nil, errors.NewParseError("json", "keycloak user response", "missing id", nil)
	}
	return &user, nil
}

// FindByUsername performs an exact username search.
func (c *Client) FindByUsername(ctx context.Context, username string) (*sources.KeycloakUser, error) {
	users, err := c.search(ctx, url.Values{"username": {username}, "exact": {"true"}})
	if err != nil {
		return nil, err
	}
	switch len(users) {
	case 0:
		return nil, errors.NewNotFoundError("keycloak user", username)
	case 1:
		return &users[0], nil
	default:
		return nil, fmt.Errorf("%w: keycloak returned %d users for username %q", errors.ErrAmbiguous, len(users), username)
	}
}

// SearchAttribute searches users by a custom attribute.
func (c *Client) SearchAttribute(ctx context.Context, name, value string) ([]sources.KeycloakUser, error) {
	return c.search(ctx, url.Values{"q": {name + ":" + value}})
}

// FindByEmail performs an exact email search.
func (c *Client) FindByEmail(ctx context.Context, email string) ([]sources.KeycloakUser, error) {
	return c.search(ctx, url.Values{"email": {email}, "exact": {"true"}})
}

func (c *Client) search(ctx context.Context, query url.Values) ([]sources.KeycloakUser, error) {
	var users []sources.KeycloakUser
	if err := c.transport.Get(ctx, c.usersPath(), query, &users); err != nil {
		return nil, err
	}
	return users, nil
}

var _ sources.Keycloak = (*Client)(nil)
