// Package workspace provides a client for the Google Workspace Admin SDK
// Directory API.
package workspace

import (
	"context"
	"net/http"

	"golang.org/x/oauth2/google"
	admin "google.golang.org/api/admin/directory/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/sources"
)

// Config holds the connection settings for Google Workspace.
type Config struct {
	// CredentialsJSON is a service account key with domain-wide delegation.
	CredentialsJSON []byte
	// Subject is the admin user the service account impersonates.
	Subject  string
	Customer string

	// Endpoint and HTTPClient override the API location and transport.
	// When HTTPClient is set no service account token is requested.
	Endpoint   string
	HTTPClient *http.Client
}

// Client implements sources.Workspace.
type Client struct {
	users    *admin.UsersService
	customer string
}

// NewClient creates a Workspace client.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Customer == "" {
		cfg.Customer = constants.DefaultWorkspaceCustomer
	}

	var opts []option.ClientOption
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	} else {
		if len(cfg.CredentialsJSON) == 0 || cfg.Subject == "" {
			return nil, errors.NewConfigError("google_workspace",
				"GOOGLE_SERVICE_ACCOUNT_CREDENTIALS and GOOGLE_SUBJECT must be set", nil)
		}
		jwtConfig, err := google.JWTConfigFromJSON(cfg.CredentialsJSON, admin.AdminDirectoryUserScope)
		if err != nil {
			return nil, errors.NewAuthenticationError("google_workspace", "service_account",
				"invalid service account credentials", err)
		}
		jwtConfig.Subject = cfg.Subject
		opts = append(opts, option.WithHTTPClient(jwtConfig.Client(ctx)))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := admin.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.NewConfigError("google_workspace", "failed to create directory service", err)
	}
	return &Client{users: service.Users, customer: cfg.Customer}, nil
}

// Users lists every user in the customer.
func (c *Client) Users(ctx context.Context) ([]sources.WorkspaceUser, error) {
	var all []sources.WorkspaceUser
	err := c.users.List().
		Customer(c.customer).
		MaxResults(constants.WorkspacePageSize).
		Pages(ctx, func(page *admin.Users) error {
			for _, u := range page.Users {
				all = append(all, convertUser(u))
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err, "")
	}
	return all, nil
}

// User fetches a user by ID or primary email.
func (c *Client) User(ctx context.Context, key string) (*sources.WorkspaceUser, error) {
	u, err := c.users.Get(key).Context(ctx).Do()
	if err != nil {
		return nil, wrapError(err, key)
	}
	user := convertUser(u)
	return &user, nil
}

// Update writes the user's organizational profile.
func (c *Client) Update(ctx context.Context, key string, profile sources.WorkspaceProfile) error {
	_, err := c.users.Update(key, toAdminUser(profile)).Context(ctx).Do()
	if err != nil {
		return wrapError(err, key)
	}
	return nil
}

func toAdminUser(profile sources.WorkspaceProfile) *admin.User {
	organizations := make([]*admin.UserOrganization, 0, len(profile.Organizations))
	for _, o := range profile.Organizations {
		organizations = append(organizations, &admin.UserOrganization{
			Title:           o.Title,
			Department:      o.Department,
			Primary:         o.Primary,
			ForceSendFields: []string{"Primary"},
		})
	}
	relations := make([]*admin.UserRelation, 0, len(profile.Relations))
	for _, r := range profile.Relations {
		relations = append(relations, &admin.UserRelation{Value: r.Value, Type: r.Type})
	}

	user := &admin.User{
		Organizations:   organizations,
		Relations:       relations,
		ForceSendFields: []string{"Organizations", "Relations"},
	}
	if profile.Phones != nil {
		phones := make([]*admin.UserPhone, 0, len(profile.Phones))
		for _, p := range profile.Phones {
			phones = append(phones, &admin.UserPhone{Value: p.Value, Type: p.Type})
		}
		user.Phones = phones
	}
	return user
}

func convertUser(u *admin.User) sources.WorkspaceUser {
	user := sources.WorkspaceUser{
		ID:           u.Id,
		PrimaryEmail: u.PrimaryEmail,
		Suspended:    u.Suspended,
	}
	if u.Name != nil {
		user.GivenName = u.Name.GivenName
		user.FamilyName = u.Name.FamilyName
	}
	return user
}

// wrapError maps googleapi errors onto pkg/errors. A 404 for a keyed
// lookup becomes a NotFoundError.
func wrapError(err error, key string) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return errors.WrapAPI("google_workspace", 0, err)
	}
	if apiErr.Code == http.StatusNotFound && key != "" {
		return errors.NewNotFoundError("workspace user", key)
	}
	return &errors.APIError{
		System:     "google_workspace",
		StatusCode: apiErr.Code,
		Message:    apiErr.Message,
		Err:        err,
	}
}

var _ sources.Workspace = (*Client)(nil)
