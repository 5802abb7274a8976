package tasks

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/agentstation/orgsync/pkg/constants"
	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/sources"
)

// RetryPolicy bounds the retries of a directory update.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Jitter          float64
}

// DefaultRetryPolicy allows five retries, exponentially spaced up to a minute.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries:      constants.DirectoryUpdateMaxRetries,
	InitialInterval: constants.DirectoryUpdateInitialBackoff,
	MaxInterval:     constants.DirectoryUpdateMaxBackoff,
	Jitter:          constants.DirectoryUpdateJitter,
}

// BackOff returns a fresh backoff that stops after MaxRetries or when ctx is done.
func (p RetryPolicy) BackOff(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.MaxInterval = p.MaxInterval
	bo.RandomizationFactor = p.Jitter
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, p.MaxRetries), ctx)
}

// DirectoryUpdater recomputes a person's organizational profile from the
// current directory state and writes it to Google Workspace.
type DirectoryUpdater struct {
	store     directory.Store
	keycloak  sources.Keycloak
	ramp      sources.Ramp
	workspace sources.Workspace
	policy    RetryPolicy
}

// UpdaterOption configures a DirectoryUpdater.
type UpdaterOption func(*DirectoryUpdater)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(policy RetryPolicy) UpdaterOption {
	return func(u *DirectoryUpdater) {
		u.policy = policy
	}
}

// NewDirectoryUpdater creates an updater. keycloak and ramp may be nil, in
// which case the corresponding backfills are skipped.
func NewDirectoryUpdater(store directory.Store, keycloak sources.Keycloak, ramp sources.Ramp, workspace sources.Workspace, opts ...UpdaterOption) *DirectoryUpdater {
	u := &DirectoryUpdater{
		store:     store,
		keycloak:  keycloak,
		ramp:      ramp,
		workspace: workspace,
		policy:    DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Handle implements Handler. Only not-found answers from Workspace are
// retried, since a freshly created account takes a while to become
// visible; every other error is returned as is.
func (u *DirectoryUpdater) Handle(ctx context.Context, task directory.Task) error {
	return u.Update(ctx, task.SubjectID)
}

// Update runs the update for one person with retries.
func (u *DirectoryUpdater) Update(ctx context.Context, personID int64) error {
	if u.workspace == nil {
		return errors.NewConfigError("google_workspace", "directory updates need a Workspace client", nil)
	}
	logger := logging.Ctx(ctx)

	operation := func() error {
		err := u.update(ctx, personID)
		if err == nil {
			return nil
		}
		var retry *retryableError
		if errors.As(err, &retry) {
			return retry.err
		}
		return backoff.Permanent(err)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Int64("person_id", personID).Dur("retry_in", wait).
			Msg("Workspace user not found yet, retrying directory update")
	}
	return backoff.RetryNotify(operation, u.policy.BackOff(ctx), notify)
}

// retryableError marks a Workspace not-found answer.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

func workspaceError(err error) error {
	if errors.IsNotFound(err) {
		return &retryableError{err: err}
	}
	return err
}

func (u *DirectoryUpdater) update(ctx context.Context, personID int64) error {
	person, err := u.person(ctx, personID)
	if err != nil {
		return err
	}
	ctx = logging.WithPerson(ctx, person.ID, person.Username)
	logger := logging.Ctx(ctx)

	account, err := u.keycloakAccount(ctx, person)
	if err != nil {
		return err
	}

	if person.RampUserID == nil && account != nil {
		if rampID, ok := account.RampUserID(); ok {
			if person, err = u.backfill(ctx, person.ID, directory.SystemRamp, rampID); err != nil {
				return err
			}
		}
	}

	var phones []sources.Phone
	if person.RampUserID != nil && u.ramp != nil {
		rampUser, err := u.ramp.User(ctx, *person.RampUserID)
		if err != nil {
			return errors.NewProcedureError("directory_update", person.Username, err)
		}
		if rampUser.Phone != nil && *rampUser.Phone != "" {
			phones = []sources.Phone{{Value: *rampUser.Phone, Type: sources.PhoneMobile}}
		}
	}

	if person.WorkspaceUserID == nil && account != nil {
		if email, ok := account.WorkspaceAccount(); ok {
			workspaceUser, err := u.workspace.User(ctx, email)
			if err != nil {
				return workspaceError(err)
			}
			if person, err = u.backfill(ctx, person.ID, directory.SystemWorkspace, workspaceUser.ID); err != nil {
				return err
			}
		}
	}

	if person.WorkspaceUserID == nil {
		logger.Info().Msg("Person has no Google Workspace account, skipping directory update")
		return nil
	}

	profile, err := u.profile(ctx, person)
	if err != nil {
		return err
	}
	profile.Phones = phones

	if err := u.workspace.Update(ctx, *person.WorkspaceUserID, profile); err != nil {
		return workspaceError(err)
	}
	logger.Info().
		Int("organizations", len(profile.Organizations)).
		Int("relations", len(profile.Relations)).
		Msg("Updated Google Workspace profile")
	return nil
}

func (u *DirectoryUpdater) person(ctx context.Context, personID int64) (*directory.Person, error) {
	var person *directory.Person
	err := u.store.View(ctx, func(r directory.Reader) error {
		var err error
		person, err = r.Person(ctx, personID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return person, nil
}

// keycloakAccount returns the person's Keycloak account, backfilling the
// Keycloak ID through an exact username search when it is unknown. It
// returns nil when the person has no account.
func (u *DirectoryUpdater) keycloakAccount(ctx context.Context, person *directory.Person) (*sources.KeycloakUser, error) {
	if u.keycloak == nil {
		return nil, nil
	}
	if person.KeycloakUserID != nil {
		account, err := u.keycloak.User(ctx, *person.KeycloakUserID)
		if err != nil {
			return nil, err
		}
		return account, nil
	}

	account, err := u.keycloak.FindByUsername(ctx, person.Username)
	switch {
	case errors.IsNotFound(err):
		return nil, nil
	case err != nil:
		return nil, err
	}
	updated, err := u.backfill(ctx, person.ID, directory.SystemKeycloak, account.ID)
	if err != nil {
		return nil, err
	}
	*person = *updated
	return account, nil
}

// backfill sets an external ID if it is still empty and returns the
// stored person.
func (u *DirectoryUpdater) backfill(ctx context.Context, personID int64, system directory.System, id string) (*directory.Person, error) {
	var stored *directory.Person
	err := u.store.Update(ctx, func(tx directory.Tx) error {
		p, err := tx.Person(ctx, personID)
		if err != nil {
			return err
		}
		if _, ok := p.ExternalID(system); !ok {
			if err := p.SetExternalID(system, id); err != nil {
				return err
			}
			if err := tx.SavePerson(ctx, p); err != nil {
				return err
			}
			logging.Ctx(ctx).Info().Str("system", system.String()).Str("external_id", id).Msg("Backfilled external ID")
		}
		stored = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// profile derives organizations and the manager relation. The position's
// title and team take precedence over the person's own title and team.
func (u *DirectoryUpdater) profile(ctx context.Context, person *directory.Person) (sources.WorkspaceProfile, error) {
	profile := sources.WorkspaceProfile{
		Organizations: []sources.Organization{},
		Relations:     []sources.Relation{},
	}

	var manager *directory.Person
	err := u.store.View(ctx, func(r directory.Reader) error {
		position, err := r.PositionByOccupant(ctx, person.ID)
		switch {
		case err == nil:
			profile.Organizations = append(profile.Organizations, sources.Organization{
				Title:      position.Name,
				Department: directory.TeamName(position.PrimaryTeamID),
				Primary:    true,
			})
		case errors.IsNotFound(err):
			org := sources.Organization{Primary: true}
			if person.Title != nil {
				org.Title = *person.Title
			}
			if person.PrimaryTeamID != nil {
				org.Department = directory.TeamName(*person.PrimaryTeamID)
			}
			if org.Title != "" || org.Department != "" {
				profile.Organizations = append(profile.Organizations, org)
			}
		default:
			return err
		}

		_, manager, err = directory.Manager(ctx, r, person)
		return err
	})
	if err != nil {
		return profile, err
	}

	if manager != nil && manager.WorkspaceUserID != nil {
		managerAccount, err := u.workspace.User(ctx, *manager.WorkspaceUserID)
		if err != nil {
			return profile, workspaceError(err)
		}
		profile.Relations = append(profile.Relations, sources.Relation{
			Value: managerAccount.PrimaryEmail,
			Type:  sources.RelationManager,
		})
	}
	return profile, nil
}
