// Package identity matches records from external systems to people in the
// directory.
//
// Resolution order, first match wins:
//
//  1. the source system's external ID
//  2. the username, case-insensitively
//  3. nothing, in which case a new person is created
//
// Two existing people are never merged. When the username matches a person
// whose stored ID for the source differs from the record's, the resolver
// reports a conflict and leaves the person untouched.
package identity

import (
	"context"
	"strings"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
)

// Record is the identity-relevant view of a remote user.
type Record struct {
	System     directory.System
	ExternalID string
	Username   string
	FirstName  string
	LastName   string
	Email      string
	Active     bool

	// Extra external IDs applied only when a person is created.
	Extra map[directory.System]string
	// PrimaryTeamID is applied only when a person is created.
	PrimaryTeamID *int64
}

// Resolution describes how a record was matched.
type Resolution struct {
	Person *directory.Person
	// Created is set when no person matched and one was inserted.
	Created bool
	// Backfilled is set when the person matched by username and the
	// record's external ID was stored on it.
	Backfilled bool
	// Conflict is set when the person matched by username already holds
	// a different ID for the source system.
	Conflict bool
}

// Resolve finds or creates the person for rec inside tx.
func Resolve(ctx context.Context, tx directory.Tx, rec Record) (Resolution, error) {
	if rec.ExternalID != "" {
		p, err := tx.PersonByExternalID(ctx, rec.System, rec.ExternalID)
		switch {
		case err == nil:
			return Resolution{Person: p}, nil
		case !errors.IsNotFound(err):
			return Resolution{}, err
		}
	}

	if rec.Username != "" {
		p, err := tx.PersonByUsername(ctx, rec.Username)
		switch {
		case err == nil:
			return matchByUsername(ctx, tx, p, rec)
		case !errors.IsNotFound(err):
			return Resolution{}, err
		}
	}

	return create(ctx, tx, rec)
}

func matchByUsername(ctx context.Context, tx directory.Tx, p *directory.Person, rec Record) (Resolution, error) {
	if rec.ExternalID == "" {
		return Resolution{Person: p}, nil
	}
	stored, ok := p.ExternalID(rec.System)
	if ok {
		return Resolution{Person: p, Conflict: !strings.EqualFold(stored, rec.ExternalID)}, nil
	}

	if err := p.SetExternalID(rec.System, rec.ExternalID); err != nil {
		return Resolution{}, err
	}
	if err := tx.SavePerson(ctx, p); err != nil {
		return Resolution{}, err
	}
	logging.Ctx(ctx).Debug().
		Str("system", rec.System.String()).
		Str("external_id", rec.ExternalID).
		Str("username", p.Username).
		Msg("Linked person by username")
	return Resolution{Person: p, Backfilled: true}, nil
}

func create(ctx context.Context, tx directory.Tx, rec Record) (Resolution, error) {
	if rec.Username == "" {
		return Resolution{}, errors.NewValidationError("username", rec.Username,
			"cannot create a person from a "+rec.System.Label()+" record without a username")
	}

	p := &directory.Person{
		Username:      rec.Username,
		FirstName:     rec.FirstName,
		LastName:      rec.LastName,
		Email:         rec.Email,
		Active:        rec.Active,
		PrimaryTeamID: rec.PrimaryTeamID,
	}
	for _, system := range directory.Systems {
		id, ok := rec.Extra[system]
		if !ok || id == "" {
			continue
		}
		if err := p.SetExternalID(system, id); err != nil {
			return Resolution{}, err
		}
	}
	if rec.ExternalID != "" {
		if err := p.SetExternalID(rec.System, rec.ExternalID); err != nil {
			return Resolution{}, err
		}
	}

	if err := tx.SavePerson(ctx, p); err != nil {
		return Resolution{}, err
	}
	logging.Ctx(ctx).Info().
		Int64("person_id", p.ID).
		Str("username", p.Username).
		Str("system", rec.System.String()).
		Msg("Created person")
	return Resolution{Person: p, Created: true}, nil
}
