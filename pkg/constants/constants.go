// Package constants provides shared constants used throughout orgsync.
// This includes timeouts, page sizes, retry limits and default endpoints
// that should be consistent across the source clients and the worker.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultHTTPTimeout is the standard timeout for HTTP requests to external systems
	DefaultHTTPTimeout = 30 * time.Second

	// ShutdownTimeout bounds graceful shutdown after a failed command
	ShutdownTimeout = 5 * time.Second

	// ProcedureTimeout is the timeout for a single reconciliation procedure
	ProcedureTimeout = 30 * time.Minute

	// WorkerPollInterval is the default interval between outbox polls
	WorkerPollInterval = 5 * time.Second
)

// Retry constants for directory updates that race account creation
const (
	// DirectoryUpdateMaxRetries is the number of retries after a not-found response
	DirectoryUpdateMaxRetries = 5

	// DirectoryUpdateInitialBackoff is the first retry delay
	DirectoryUpdateInitialBackoff = 1 * time.Second

	// DirectoryUpdateMaxBackoff caps the delay between retries
	DirectoryUpdateMaxBackoff = 60 * time.Second

	// DirectoryUpdateJitter is the randomization factor applied to each delay
	DirectoryUpdateJitter = 0.5
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644
)

// Limit constants define page sizes and batch sizes
const (
	// KeycloakPageSize is the number of users requested per Keycloak page
	KeycloakPageSize = 1000

	// RampPageSize is the number of users requested per Ramp page
	RampPageSize = 100

	// HubSpotPageSize is the number of users requested per HubSpot page
	HubSpotPageSize = 100

	// WorkspacePageSize is the number of users requested per Workspace page
	WorkspacePageSize = 500

	// WorkerBatchSize is the number of outbox tasks claimed per poll
	WorkerBatchSize = 20

	// MaxTaskAttempts is the number of failed attempts after which a task is parked
	MaxTaskAttempts = 10
)

// TaskMaxBackoff caps the delay before a failed outbox task becomes claimable again
const TaskMaxBackoff = 10 * time.Minute

// TaskLease is how long a claimed task may stay running before another
// worker may claim it again. It must outlast the directory updater's retries.
const TaskLease = 15 * time.Minute

// Default endpoints and identifiers
const (
	// DefaultRampServer is the Ramp API base URL
	DefaultRampServer = "https://api.ramp.com"

	// DefaultHubSpotServer is the HubSpot API base URL
	DefaultHubSpotServer = "https://api.hubapi.com"

	// DefaultKeycloakRealm is the realm holding member accounts
	DefaultKeycloakRealm = "robojackets"

	// DefaultWorkspaceCustomer is the Workspace customer alias for the caller's own domain
	DefaultWorkspaceCustomer = "my_customer"

	// DefaultDatabasePath is the default SQLite database location
	DefaultDatabasePath = "~/.orgsync/orgsync.db"
)
