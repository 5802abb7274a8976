package reconcile

import (
	"context"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/agentstation/orgsync/pkg/directory"
	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/logging"
	"github.com/agentstation/orgsync/pkg/report"
	"github.com/agentstation/orgsync/pkg/sources"
	"github.com/agentstation/orgsync/pkg/tasks"
)

// ReconcileWorkspaceUsers links every Google Workspace account to a person,
// going through Keycloak for accounts the directory does not know yet.
func (r *Reconciler) ReconcileWorkspaceUsers(ctx context.Context) (*report.Report, error) {
	return r.run(ctx, ProcedureWorkspace, func(ctx context.Context, rep *report.Report) error {
		if err := requireClient(r.clients.Workspace != nil, directory.SystemWorkspace); err != nil {
			return err
		}
		if err := requireClient(r.clients.Keycloak != nil, directory.SystemKeycloak); err != nil {
			return err
		}
		users, err := r.clients.Workspace.Users(ctx)
		if err != nil {
			return err
		}

		for i := range users {
			if err := r.reconcileWorkspaceUser(ctx, rep, &users[i]); err != nil {
				return errors.NewProcedureError(ProcedureWorkspace, users[i].PrimaryEmail, err)
			}
		}
		return nil
	})
}

func (r *Reconciler) reconcileWorkspaceUser(ctx context.Context, rep *report.Report, u *sources.WorkspaceUser) error {
	var account *sources.KeycloakUser
	known := false
	err := r.store.View(ctx, func(rd directory.Reader) error {
		_, err := rd.PersonByExternalID(ctx, directory.SystemWorkspace, u.ID)
		if err == nil {
			known = true
			return nil
		}
		if errors.IsNotFound(err) {
			return nil
		}
		return err
	})
	if err != nil {
		return err
	}
	if !known {
		if account, err = r.findKeycloakAccount(ctx, u.PrimaryEmail, true); err != nil {
			return err
		}
		if account == nil {
			rep.Warn(report.Ref(report.KindWorkspace, u.ID),
				"%s exists in Google Workspace, but has no Keycloak account.", u.PrimaryEmail)
			return nil
		}
	}

	return r.store.Update(ctx, func(tx directory.Tx) error {
		p, err := tx.PersonByExternalID(ctx, directory.SystemWorkspace, u.ID)
		switch {
		case errors.IsNotFound(err) && account != nil:
			link, err := linkAccount(ctx, tx, rep, account, directory.SystemWorkspace, u.ID, report.WorkspaceIDUpdated)
			if err != nil || link.person == nil {
				return err
			}
			p = link.person
			if link.claimed {
				if err := tasks.ScheduleDirectoryUpdate(ctx, tx, p.ID); err != nil {
					return err
				}
			}
		case err != nil:
			return err
		}

		if !u.Suspended && !p.Active {
			rep.Warn(report.Ref(report.KindPerson, p.ID),
				"%s has an active Google Workspace account, but is inactive in the directory.", p)
		}
		return nil
	})
}

// ImportWorkspaceUser links one Google Workspace account, typically right
// after it was created, and schedules a directory update for its person.
// The account may take a while to become visible, so not-found answers are
// retried.
func (r *Reconciler) ImportWorkspaceUser(ctx context.Context, workspaceUserID string) (*report.Report, error) {
	return r.run(ctx, ProcedureImportWorkspaceUser, func(ctx context.Context, rep *report.Report) error {
		if _, err := strconv.ParseUint(workspaceUserID, 10, 64); err != nil {
			return errors.NewValidationError("google_workspace_user_id", workspaceUserID, "must be numeric")
		}
		if err := requireClient(r.clients.Workspace != nil, directory.SystemWorkspace); err != nil {
			return err
		}
		if err := requireClient(r.clients.Keycloak != nil, directory.SystemKeycloak); err != nil {
			return err
		}

		user, err := r.fetchWorkspaceUser(ctx, workspaceUserID)
		if err != nil {
			return err
		}
		account, err := r.findKeycloakAccount(ctx, user.PrimaryEmail, false)
		if err != nil {
			return err
		}
		if account == nil {
			return errors.NewNotFoundError("keycloak user", user.PrimaryEmail)
		}

		return r.store.Update(ctx, func(tx directory.Tx) error {
			p, err := tx.PersonByExternalID(ctx, directory.SystemWorkspace, user.ID)
			switch {
			case errors.IsNotFound(err):
				link, err := linkAccount(ctx, tx, rep, account, directory.SystemWorkspace, user.ID, report.WorkspaceIDUpdated)
				if err != nil || link.person == nil {
					return err
				}
				p = link.person
			case err != nil:
				return err
			}
			return tasks.ScheduleDirectoryUpdate(ctx, tx, p.ID)
		})
	})
}

func (r *Reconciler) fetchWorkspaceUser(ctx context.Context, id string) (*sources.WorkspaceUser, error) {
	var user *sources.WorkspaceUser
	operation := func() error {
		var err error
		user, err = r.clients.Workspace.User(ctx, id)
		if err != nil && !errors.IsNotFound(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logging.Ctx(ctx).Warn().Err(err).Str("workspace_user_id", id).Dur("retry_in", wait).
			Msg("Google Workspace user not found yet, retrying")
	}
	if err := backoff.RetryNotify(operation, r.retry.BackOff(ctx), notify); err != nil {
		return nil, err
	}
	return user, nil
}
