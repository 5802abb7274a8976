// Package app wires the orgsync CLI together. Configuration, the directory
// store and the external clients are built once and shared by every command.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/orgsync/internal/sources/apiary"
	"github.com/agentstation/orgsync/internal/sources/hubspot"
	"github.com/agentstation/orgsync/internal/sources/keycloak"
	"github.com/agentstation/orgsync/internal/sources/ramp"
	"github.com/agentstation/orgsync/internal/sources/workspace"
	"github.com/agentstation/orgsync/internal/store/sqlite"
	"github.com/agentstation/orgsync/pkg/cache"
	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/orgedit"
	"github.com/agentstation/orgsync/pkg/reconcile"
	"github.com/agentstation/orgsync/pkg/sources"
	"github.com/agentstation/orgsync/pkg/tasks"
)

// BuildInfo is stamped into the binary at release time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
	BuiltBy string
}

// App holds the loaded configuration and the lazily built dependencies of
// every command.
type App struct {
	build BuildInfo

	config *Config
	logger *zerolog.Logger

	// Lazily built, shared by all commands.
	mu      sync.Mutex
	store   directory.Store
	clients *sources.Clients
	cache   cache.Cache
}

// New loads configuration from the environment and applies opts.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{build: BuildInfo{Version: version, Commit: commit, Date: date, BuiltBy: builtBy}}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

func (a *App) Version() string { return a.build.Version }
func (a *App) Commit() string  { return a.build.Commit }
func (a *App) Date() string    { return a.build.Date }
func (a *App) BuiltBy() string { return a.build.BuiltBy }

func (a *App) Config() *Config          { return a.config }
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Store returns the directory store, opening the database on first use.
func (a *App) Store() (directory.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.storeLocked()
}

func (a *App) storeLocked() (directory.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := sqlite.New(a.config.DatabasePath)
	if err != nil {
		return nil, errors.WrapResource("open", "database", a.config.DatabasePath, err)
	}
	a.logger.Debug().Str("path", a.config.DatabasePath).Msg("Opened directory database")
	a.store = store
	return store, nil
}

// Clients returns the external clients, building those that are configured.
// Unconfigured systems are left nil; procedures that need them fail with a
// configuration error.
func (a *App) Clients(ctx context.Context) (sources.Clients, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clientsLocked(ctx)
}

func (a *App) clientsLocked(ctx context.Context) (sources.Clients, error) {
	if a.clients != nil {
		return *a.clients, nil
	}

	var clients sources.Clients
	cfg := a.config

	if cfg.ApiaryServer != "" && cfg.ApiaryToken != "" {
		client, err := apiary.NewClient(cfg.ApiaryServer, cfg.ApiaryToken)
		if err != nil {
			return clients, err
		}
		c, err := cache.New(cfg.CacheURL)
		if err != nil {
			return clients, err
		}
		a.cache = c
		clients.Apiary = apiary.NewCachedClient(client, c)
	}

	if cfg.KeycloakServer != "" && cfg.KeycloakClientID != "" && cfg.KeycloakClientSecret != "" {
		client, err := keycloak.NewClient(ctx, keycloak.Config{
			Server:       cfg.KeycloakServer,
			Realm:        cfg.KeycloakRealm,
			ClientID:     cfg.KeycloakClientID,
			ClientSecret: cfg.KeycloakClientSecret,
		})
		if err != nil {
			return clients, err
		}
		clients.Keycloak = client
	}

	if cfg.RampClientID != "" && cfg.RampClientSecret != "" {
		client, err := ramp.NewClient(ctx, ramp.Config{
			Server:       cfg.RampServer,
			ClientID:     cfg.RampClientID,
			ClientSecret: cfg.RampClientSecret,
		})
		if err != nil {
			return clients, err
		}
		clients.Ramp = client
	}

	if cfg.GoogleCredentials != "" && cfg.GoogleSubject != "" {
		creds, err := cfg.WorkspaceCredentials()
		if err != nil {
			return clients, err
		}
		client, err := workspace.NewClient(ctx, workspace.Config{
			CredentialsJSON: creds,
			Subject:         cfg.GoogleSubject,
			Customer:        cfg.GoogleCustomer,
		})
		if err != nil {
			return clients, err
		}
		clients.Workspace = client
	}

	if cfg.HubSpotAccessToken != "" {
		client, err := hubspot.NewClient(cfg.HubSpotServer, cfg.HubSpotAccessToken)
		if err != nil {
			return clients, err
		}
		clients.HubSpot = client
	}

	a.logger.Debug().
		Bool("apiary", clients.Apiary != nil).
		Bool("keycloak", clients.Keycloak != nil).
		Bool("ramp", clients.Ramp != nil).
		Bool("google_workspace", clients.Workspace != nil).
		Bool("hubspot", clients.HubSpot != nil).
		Msg("Configured clients")

	a.clients = &clients
	return clients, nil
}

// Reconciler returns a reconciler over the store and configured clients.
func (a *App) Reconciler(ctx context.Context) (*reconcile.Reconciler, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	store, err := a.storeLocked()
	if err != nil {
		return nil, err
	}
	clients, err := a.clientsLocked(ctx)
	if err != nil {
		return nil, err
	}
	return reconcile.New(store, clients), nil
}

// Editor returns the admin edit path.
func (a *App) Editor(ctx context.Context) (*orgedit.Editor, error) {
	r, err := a.Reconciler(ctx)
	if err != nil {
		return nil, err
	}
	return orgedit.New(r), nil
}

// Worker returns an outbox worker with the directory update handler registered.
func (a *App) Worker(ctx context.Context, opts ...tasks.WorkerOption) (*tasks.Worker, error) {
	r, err := a.Reconciler(ctx)
	if err != nil {
		return nil, err
	}
	clients := r.Clients()

	opts = append([]tasks.WorkerOption{
		tasks.WithBatchSize(constants.WorkerBatchSize),
		tasks.WithMaxAttempts(constants.MaxTaskAttempts),
		tasks.WithInterval(a.config.WorkerInterval),
	}, opts...)
	worker := tasks.NewWorker(r.Store(), opts...)
	worker.Register(directory.TaskKindDirectoryUpdate,
		tasks.NewDirectoryUpdater(r.Store(), clients.Keycloak, clients.Ramp, clients.Workspace))
	return worker, nil
}

// Shutdown closes the database and the cache connection.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	if closer, ok := a.cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close cache during shutdown")
			firstErr = err
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.store = nil
	}
	return firstErr
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithStore sets the directory store (useful for testing).
func WithStore(store directory.Store) Option {
	return func(a *App) error {
		a.store = store
		return nil
	}
}

// WithClients sets the external clients (useful for testing).
func WithClients(clients sources.Clients) Option {
	return func(a *App) error {
		a.clients = &clients
		return nil
	}
}
