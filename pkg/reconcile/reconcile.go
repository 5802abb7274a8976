// Package reconcile implements the reconciliation procedures that compare
// the directory with each external system, correct what can be corrected
// safely and report the rest as warnings.
//
// Every procedure is a single-threaded pass. Each remote record is handled
// in its own store transaction, so a fatal error partway through leaves the
// records already processed in place. Running a procedure twice without a
// remote change yields an empty report the second time.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/identity"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/metrics"
	"github.com/agentstation/orgsync/pkg/report"
	"github.com/agentstation/orgsync/pkg/sources"
	"github.com/agentstation/orgsync/pkg/tasks"
)

// Procedure names.
const (
	ProcedureKeycloak            = "fetch_users_from_keycloak"
	ProcedureApiaryHierarchy     = "fetch_hierarchy_from_apiary"
	ProcedureApiaryPositions     = "fetch_positions_from_apiary"
	ProcedureRamp                = "reconcile_ramp_users"
	ProcedureWorkspace           = "reconcile_google_workspace_users"
	ProcedureHubSpot             = "reconcile_hubspot_users"
	ProcedureImportRampUser      = "import_ramp_user"
	ProcedureImportWorkspaceUser = "import_google_workspace_user"
)

// Reconciler runs procedures against one store and one set of clients.
type Reconciler struct {
	store    directory.Store
	clients  sources.Clients
	resolver *identity.Resolver
	retry    tasks.RetryPolicy
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithRetryPolicy sets the policy used when a freshly created Workspace
// account is not visible yet.
func WithRetryPolicy(policy tasks.RetryPolicy) Option {
	return func(r *Reconciler) {
		r.retry = policy
	}
}

// New creates a Reconciler. Clients may be partially configured; a
// procedure that needs a missing client fails with a configuration error.
func New(store directory.Store, clients sources.Clients, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:    store,
		clients:  clients,
		resolver: identity.NewResolver(clients.Apiary),
		retry:    tasks.DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the directory store.
func (r *Reconciler) Store() directory.Store {
	return r.store
}

// Clients returns the configured clients.
func (r *Reconciler) Clients() sources.Clients {
	return r.clients
}

// Bulk lists the bulk procedures in the order "all" runs them.
var Bulk = []string{
	ProcedureKeycloak,
	ProcedureApiaryHierarchy,
	ProcedureApiaryPositions,
	ProcedureRamp,
	ProcedureWorkspace,
	ProcedureHubSpot,
}

// Run runs a bulk procedure by name.
func (r *Reconciler) Run(ctx context.Context, procedure string) (*report.Report, error) {
	switch procedure {
	case ProcedureKeycloak:
		return r.FetchUsersFromKeycloak(ctx)
	case ProcedureApiaryHierarchy:
		return r.FetchHierarchyFromApiary(ctx)
	case ProcedureApiaryPositions:
		return r.FetchPositionsFromApiary(ctx)
	case ProcedureRamp:
		return r.ReconcileRampUsers(ctx)
	case ProcedureWorkspace:
		return r.ReconcileWorkspaceUsers(ctx)
	case ProcedureHubSpot:
		return r.ReconcileHubSpotUsers(ctx)
	}
	return nil, errors.NewValidationError("procedure", procedure, "unknown procedure")
}

// run wraps a procedure with a run ID, logging and metrics.
func (r *Reconciler) run(ctx context.Context, procedure string, fn func(ctx context.Context, rep *report.Report) error) (*report.Report, error) {
	if logging.RunID(ctx) == "" {
		ctx = logging.WithRunID(ctx, uuid.NewString())
	}
	ctx = logging.WithProcedure(ctx, procedure)
	logger := logging.Ctx(ctx)
	logger.Info().Msg("Starting procedure")

	start := time.Now()
	rep := report.New(procedure)
	err := fn(ctx, rep)
	elapsed := time.Since(start)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
		var procErr *errors.ProcedureError
		if !errors.As(err, &procErr) {
			err = errors.NewProcedureError(procedure, "", err)
		}
	}
	metrics.RecordRun(procedure, outcome, elapsed.Seconds(), rep.CounterMap(), len(rep.Warnings))

	event := logger.Info()
	if err != nil {
		event = logger.Error().Err(err)
	}
	event.Dur("duration", elapsed).
		Interface("counters", rep.Counters).
		Int("warnings", len(rep.Warnings)).
		Msg("Finished procedure")
	return rep, err
}

func requireClient(configured bool, system directory.System) error {
	if configured {
		return nil
	}
	return errors.NewConfigError(system.String(), fmt.Sprintf("%s is not configured", system.Label()), nil)
}

// person reads one person outside a transaction.
func (r *Reconciler) person(ctx context.Context, id int64) (*directory.Person, error) {
	var p *directory.Person
	err := r.store.View(ctx, func(rd directory.Reader) error {
		var err error
		p, err = rd.Person(ctx, id)
		return err
	})
	return p, err
}

// claimExternalID stores id on p unless another person already holds it.
// It reports whether p was changed.
func claimExternalID(ctx context.Context, tx directory.Tx, p *directory.Person, system directory.System, id string) (bool, error) {
	_, err := tx.PersonByExternalID(ctx, system, id)
	switch {
	case err == nil:
		return false, nil
	case !errors.IsNotFound(err):
		return false, err
	}
	if err := p.SetExternalID(system, id); err != nil {
		return false, err
	}
	return true, nil
}

func heldElsewhere(rep *report.Report, p *directory.Person, system directory.System, id string) {
	rep.Warn(report.Ref(report.KindPerson, p.ID),
		"%s could not be linked to %s user %s because another person already holds that ID.",
		p, system.Label(), id)
}

// positionOf returns the position occupied by the person holding the given
// external ID, or nil when there is no such person or position.
func positionOf(ctx context.Context, rd directory.Reader, system directory.System, id string) (*directory.Position, error) {
	p, err := rd.PersonByExternalID(ctx, system, id)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return occupiedBy(ctx, rd, p.ID)
}

func occupiedBy(ctx context.Context, rd directory.Reader, personID int64) (*directory.Position, error) {
	pos, err := rd.PositionByOccupant(ctx, personID)
	if errors.IsNotFound(err) {
		return nil, nil
	}
	return pos, err
}
