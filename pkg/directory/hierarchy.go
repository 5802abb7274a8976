package directory

import (
	"context"

	"github.com/agentstation/orgsync/pkg/errors"
)

// EffectiveReportsTo returns the position a person reports to for every
// computed output: the edge of the position they occupy if any, otherwise
// their own edge.
func EffectiveReportsTo(ctx context.Context, r Reader, p *Person) (*int64, error) {
	pos, err := r.PositionByOccupant(ctx, p.ID)
	switch {
	case err == nil:
		return pos.ReportsToPositionID, nil
	case errors.IsNotFound(err):
		return p.ReportsToPositionID, nil
	default:
		return nil, err
	}
}

// Occupant returns the person holding the position, or nil when the
// position ID is nil, the position does not exist, or it is vacant.
func Occupant(ctx context.Context, r Reader, positionID *int64) (*Position, *Person, error) {
	if positionID == nil {
		return nil, nil, nil
	}
	pos, err := r.Position(ctx, *positionID)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	if pos.PersonID == nil {
		return pos, nil, nil
	}
	occupant, err := r.Person(ctx, *pos.PersonID)
	if err != nil {
		if errors.IsNotFound(err) {
			return pos, nil, nil
		}
		return nil, nil, err
	}
	return pos, occupant, nil
}

// Manager resolves the person's effective reports-to position and its occupant.
func Manager(ctx context.Context, r Reader, p *Person) (*Position, *Person, error) {
	reportsTo, err := EffectiveReportsTo(ctx, r, p)
	if err != nil {
		return nil, nil, err
	}
	return Occupant(ctx, r, reportsTo)
}

// DirectReports returns the people whose effective reports-to position is positionID.
func DirectReports(ctx context.Context, r Reader, positionID int64) ([]*Person, error) {
	people, err := r.People(ctx)
	if err != nil {
		return nil, err
	}
	var reports []*Person
	for _, p := range people {
		reportsTo, err := EffectiveReportsTo(ctx, r, p)
		if err != nil {
			return nil, err
		}
		if reportsTo != nil && *reportsTo == positionID {
			reports = append(reports, p)
		}
	}
	return reports, nil
}
