// Package orgedit applies operator edits to people and positions and
// propagates their side effects: the Ramp manager of everyone whose
// effective manager changed, Google Workspace profile updates through the
// outbox, and the project manager of a team in Apiary.
package orgedit

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/hierarchy"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/reconcile"
	"github.com/agentstation/orgsync/pkg/report"
	"github.com/agentstation/orgsync/pkg/tasks"
)

// Report procedure names for edits.
const (
	ProcedureSavePerson     = "save_person"
	ProcedureSavePosition   = "save_position"
	ProcedureCreatePosition = "create_position"
)

// PersonEdit changes a person. Nil fields are left as they are. Zero IDs
// and empty strings clear the field.
type PersonEdit struct {
	ID                  int64
	Title               *string
	PrimaryTeamID       *int64
	ReportsToPositionID *int64
	ManualHierarchy     *bool
	RampUserID          *string
}

// PositionEdit changes a position. Nil fields are left as they are. Zero
// IDs clear the field; a zero PersonID vacates the position.
type PositionEdit struct {
	ID                  int64
	Name                *string
	PrimaryTeamID       *int64
	ManagesTeamID       *int64
	ReportsToPositionID *int64
	PersonID            *int64
}

// Editor is the admin save path.
type Editor struct {
	store      directory.Store
	reconciler *reconcile.Reconciler
}

// New creates an Editor sharing the reconciler's store and clients.
func New(r *reconcile.Reconciler) *Editor {
	return &Editor{store: r.Store(), reconciler: r}
}

// effects collects the remote work an edit requires once it is committed.
type effects struct {
	// rampPush lists people whose effective manager changed.
	rampPush []int64
	// team is set when the project manager of a team may have changed.
	team *directory.Position
}

func (e *effects) push(ids ...int64) {
	for _, id := range ids {
		if !slices.Contains(e.rampPush, id) {
			e.rampPush = append(e.rampPush, id)
		}
	}
}

// SavePerson applies a person edit.
func (e *Editor) SavePerson(ctx context.Context, edit PersonEdit) (*report.Report, error) {
	ctx = withRun(ctx, ProcedureSavePerson)
	rep := report.New(ProcedureSavePerson)
	var fx effects

	err := e.store.Update(ctx, func(tx directory.Tx) error {
		p, err := tx.Person(ctx, edit.ID)
		if err != nil {
			return err
		}
		before := p.Clone()
		if err := applyPersonEdit(p, edit); err != nil {
			return err
		}
		if err := tx.SavePerson(ctx, p); err != nil {
			return err
		}

		pos, err := tx.PositionByOccupant(ctx, p.ID)
		if err != nil && !errors.IsNotFound(err) {
			return err
		}
		occupies := err == nil
		if occupies && directory.EqualInt64(p.ReportsToPositionID, &pos.ID) {
			return errors.NewValidationError("reports_to_position_id", pos.ID, "a person cannot report to their own position")
		}

		edgeChanged := !directory.EqualInt64(before.ReportsToPositionID, p.ReportsToPositionID)
		if edgeChanged {
			rep.Inc(report.ReportsToUpdated)
			// An occupant's own edge has no effect on who they report to.
			if !occupies {
				fx.push(p.ID)
			}
		}
		if !directory.EqualInt64(before.PrimaryTeamID, p.PrimaryTeamID) {
			rep.Inc(report.PrimaryTeamUpdated)
		}

		if !directory.EqualString(before.RampUserID, p.RampUserID) {
			rep.Inc(report.RampIDUpdated)
			if p.RampUserID != nil {
				fx.push(p.ID)
			}
			if occupies {
				reports, err := directory.DirectReports(ctx, tx, pos.ID)
				if err != nil {
					return err
				}
				for _, r := range reports {
					fx.push(r.ID)
				}
			}
		}

		if edgeChanged || !directory.EqualInt64(before.PrimaryTeamID, p.PrimaryTeamID) || !directory.EqualString(before.Title, p.Title) {
			return tasks.ScheduleDirectoryUpdate(ctx, tx, p.ID)
		}
		return nil
	})
	if err != nil {
		return rep, err
	}
	return rep, e.propagate(ctx, rep, fx)
}

func applyPersonEdit(p *directory.Person, edit PersonEdit) error {
	if edit.Title != nil {
		p.Title = optional(*edit.Title)
	}
	if edit.PrimaryTeamID != nil {
		p.PrimaryTeamID = optionalID(*edit.PrimaryTeamID)
	}
	if edit.ReportsToPositionID != nil {
		p.ReportsToPositionID = optionalID(*edit.ReportsToPositionID)
	}
	if edit.ManualHierarchy != nil {
		p.ManualHierarchy = *edit.ManualHierarchy
	}
	if edit.RampUserID != nil {
		if *edit.RampUserID != "" {
			if _, err := uuid.Parse(*edit.RampUserID); err != nil {
				return errors.NewValidationError("ramp_user_id", *edit.RampUserID, "must be a UUID")
			}
		}
		p.RampUserID = optional(*edit.RampUserID)
	}
	return nil
}

// SavePosition applies a position edit.
func (e *Editor) SavePosition(ctx context.Context, edit PositionEdit) (*report.Report, error) {
	ctx = withRun(ctx, ProcedureSavePosition)
	rep := report.New(ProcedureSavePosition)
	var fx effects

	err := e.store.Update(ctx, func(tx directory.Tx) error {
		pos, err := tx.Position(ctx, edit.ID)
		if err != nil {
			return err
		}
		before := pos.Clone()
		applyPositionEdit(pos, edit)
		return e.savePosition(ctx, tx, rep, &fx, before, pos)
	})
	if err != nil {
		return rep, err
	}
	return rep, e.propagate(ctx, rep, fx)
}

// CreatePosition stores a new position. Its occupant and reporting edge
// are propagated the same way as an edit.
func (e *Editor) CreatePosition(ctx context.Context, pos *directory.Position) (*report.Report, error) {
	ctx = withRun(ctx, ProcedureCreatePosition)
	rep := report.New(ProcedureCreatePosition)
	if pos.ID != 0 {
		return rep, errors.NewValidationError("id", pos.ID, "must be zero for a new position")
	}
	var fx effects

	err := e.store.Update(ctx, func(tx directory.Tx) error {
		return e.savePosition(ctx, tx, rep, &fx, &directory.Position{}, pos)
	})
	if err != nil {
		return rep, err
	}
	rep.Inc(report.PositionsAdded)
	return rep, e.propagate(ctx, rep, fx)
}

func applyPositionEdit(pos *directory.Position, edit PositionEdit) {
	if edit.Name != nil {
		pos.Name = *edit.Name
	}
	if edit.PrimaryTeamID != nil {
		pos.PrimaryTeamID = *edit.PrimaryTeamID
	}
	if edit.ManagesTeamID != nil {
		pos.ManagesTeamID = optionalID(*edit.ManagesTeamID)
	}
	if edit.ReportsToPositionID != nil {
		pos.ReportsToPositionID = optionalID(*edit.ReportsToPositionID)
	}
	if edit.PersonID != nil {
		pos.PersonID = optionalID(*edit.PersonID)
	}
}

// savePosition validates and stores pos, then works out which people need a
// new directory profile or Ramp manager. before is the stored position, or
// an empty one when pos is new.
func (e *Editor) savePosition(ctx context.Context, tx directory.Tx, rep *report.Report, fx *effects, before, pos *directory.Position) error {
	if pos.ReportsToPositionID != nil {
		cycle, err := hierarchy.WouldCycle(ctx, tx, pos, *pos.ReportsToPositionID)
		if err != nil {
			return err
		}
		if cycle || *pos.ReportsToPositionID == pos.ID {
			return errors.NewValidationError("reports_to_position_id", *pos.ReportsToPositionID, "would create a reporting cycle")
		}
	}
	if err := tx.SavePosition(ctx, pos); err != nil {
		return err
	}

	var schedule []int64
	edgeChanged := !directory.EqualInt64(before.ReportsToPositionID, pos.ReportsToPositionID)
	occupantChanged := !directory.EqualInt64(before.PersonID, pos.PersonID)
	if edgeChanged && before.ID != 0 {
		rep.Inc(report.ReportsToUpdated)
	}

	if pos.PersonID != nil {
		if edgeChanged || occupantChanged {
			fx.push(*pos.PersonID)
		}
		if edgeChanged || occupantChanged || before.Name != pos.Name || before.PrimaryTeamID != pos.PrimaryTeamID {
			schedule = append(schedule, *pos.PersonID)
		}
	}

	if occupantChanged && before.ID != 0 {
		// The previous occupant loses the title, and everyone reporting to
		// the position gets a new manager.
		if before.PersonID != nil {
			schedule = append(schedule, *before.PersonID)
			fx.push(*before.PersonID)
		}
		reports, err := directory.DirectReports(ctx, tx, pos.ID)
		if err != nil {
			return err
		}
		for _, r := range reports {
			schedule = append(schedule, r.ID)
			fx.push(r.ID)
		}
	}

	if pos.ManagesTeamID != nil && (occupantChanged || !directory.EqualInt64(before.ManagesTeamID, pos.ManagesTeamID)) {
		fx.team = pos.Clone()
	}

	slices.Sort(schedule)
	for _, id := range slices.Compact(schedule) {
		if err := tasks.ScheduleDirectoryUpdate(ctx, tx, id); err != nil {
			return err
		}
	}
	return nil
}

// propagate performs the remote side effects of a committed edit.
func (e *Editor) propagate(ctx context.Context, rep *report.Report, fx effects) error {
	for _, id := range fx.rampPush {
		if err := e.pushRampManager(ctx, rep, id); err != nil {
			return err
		}
	}
	if fx.team != nil {
		return e.syncProjectManager(ctx, rep, fx.team)
	}
	return nil
}

func withRun(ctx context.Context, procedure string) context.Context {
	if logging.RunID(ctx) == "" {
		ctx = logging.WithRunID(ctx, uuid.NewString())
	}
	return logging.WithProcedure(ctx, procedure)
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func optionalID(v int64) *int64 {
	if v == 0 {
		return nil
	}
	return &v
}
