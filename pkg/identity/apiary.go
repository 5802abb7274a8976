package identity

import (
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/report"
	"github.com/agentstation/orgsync/pkg/sources"
	"github.com/agentstation/orgsync/pkg/tasks"
)

// OutcomeKind tells how an Apiary user resolved.
type OutcomeKind int

// Outcome kinds.
const (
	Resolved OutcomeKind = iota
	CycleDetected
	NotFound
)

// String returns the kind name.
func (k OutcomeKind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case CycleDetected:
		return "cycle_detected"
	case NotFound:
		return "not_found"
	}
	return fmt.Sprintf("OutcomeKind(%d)", int(k))
}

// Outcome is the result of resolving an Apiary user and their management
// chain.
type Outcome struct {
	Kind OutcomeKind
	// Person is set only when Kind is Resolved.
	Person *directory.Person
	// Created counts people inserted, including managers.
	Created  int
	Warnings []report.Warning
}

// Resolver resolves Apiary users, creating their management chain.
type Resolver struct {
	apiary sources.Apiary
}

// NewResolver creates a resolver reading from apiary.
func NewResolver(apiary sources.Apiary) *Resolver {
	return &Resolver{apiary: apiary}
}

// RecordFromApiary converts an Apiary user to a Record.
func RecordFromApiary(u *sources.ApiaryUser) Record {
	return Record{
		System:        directory.SystemApiary,
		ExternalID:    strconv.FormatInt(u.ID, 10),
		Username:      u.UID,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Email:         u.GTEmail,
		Active:        u.IsAccessActive,
		PrimaryTeamID: u.PrimaryTeamID(),
	}
}

// ResolveApiaryUser finds or creates the person with the given Apiary ID.
// A newly created person gets their primary team from Apiary, and their
// manager is resolved the same way so the person can report to the
// manager's position. Managers already on the resolution stack are not
// followed; the reference is left unset and a warning returned.
func (r *Resolver) ResolveApiaryUser(ctx context.Context, tx directory.Tx, apiaryID int64) (Outcome, error) {
	if r.apiary == nil {
		return Outcome{}, errors.NewConfigError("apiary", "resolving Apiary users needs an Apiary client", nil)
	}
	return r.resolve(ctx, tx, apiaryID, nil)
}

func (r *Resolver) resolve(ctx context.Context, tx directory.Tx, apiaryID int64, stack []int64) (Outcome, error) {
	if slices.Contains(stack, apiaryID) {
		return Outcome{
			Kind: CycleDetected,
			Warnings: []report.Warning{{
				Message: fmt.Sprintf("Apiary user %d is their own indirect manager; the reporting position was left unset.", apiaryID),
				Ref:     report.Ref(report.KindApiaryUser, apiaryID),
			}},
		}, nil
	}

	key := strconv.FormatInt(apiaryID, 10)
	if p, err := tx.PersonByExternalID(ctx, directory.SystemApiary, key); err == nil {
		return Outcome{Kind: Resolved, Person: p}, nil
	} else if !errors.IsNotFound(err) {
		return Outcome{}, err
	}

	user, err := r.apiary.User(ctx, key)
	switch {
	case errors.IsNotFound(err):
		return Outcome{
			Kind: NotFound,
			Warnings: []report.Warning{{
				Message: fmt.Sprintf("Apiary user %d was not found in Apiary.", apiaryID),
				Ref:     report.Ref(report.KindApiaryUser, apiaryID),
			}},
		}, nil
	case err != nil:
		return Outcome{}, err
	}

	res, err := Resolve(ctx, tx, RecordFromApiary(user))
	if err != nil {
		return Outcome{}, err
	}
	out := Outcome{Kind: Resolved, Person: res.Person}
	if res.Conflict {
		out.Warnings = append(out.Warnings, ConflictWarning(res.Person, directory.SystemApiary))
	}
	if !res.Created {
		return out, nil
	}
	out.Created = 1

	person := res.Person
	if managerID := user.ManagerID(); managerID != nil {
		manager, err := r.resolve(ctx, tx, *managerID, append(stack, apiaryID))
		if err != nil {
			return Outcome{}, err
		}
		out.Created += manager.Created
		out.Warnings = append(out.Warnings, manager.Warnings...)

		if manager.Kind == Resolved {
			pos, err := tx.PositionByOccupant(ctx, manager.Person.ID)
			switch {
			case err == nil:
				person.ReportsToPositionID = directory.Int64(pos.ID)
				if err := tx.SavePerson(ctx, person); err != nil {
					return Outcome{}, err
				}
			case !errors.IsNotFound(err):
				return Outcome{}, err
			}
		}
	}

	if person.PrimaryTeamID != nil || person.ReportsToPositionID != nil {
		if err := tasks.ScheduleDirectoryUpdate(ctx, tx, person.ID); err != nil {
			return Outcome{}, err
		}
	}

	logging.Ctx(ctx).Debug().
		Int64("apiary_user_id", apiaryID).
		Int("depth", len(stack)).
		Int("created", out.Created).
		Msg("Resolved Apiary management chain")
	return out, nil
}

// ConflictWarning reports a person whose stored ID for system differs from
// the one observed remotely.
func ConflictWarning(p *directory.Person, system directory.System) report.Warning {
	label := system.Label()
	return report.Warning{
		Message: fmt.Sprintf("%s has a %s user ID in the directory, but it does not match their actual %s user ID.", p, label, label),
		Ref:     report.Ref(report.KindPerson, p.ID),
	}
}
