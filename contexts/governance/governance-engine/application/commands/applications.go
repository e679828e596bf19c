package commands

import (
	"context"
	"errors"
	"log/slog"

	application "consortium/contexts/governance/governance-engine/application"
	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"
)

// ApplicationWorkflow runs the invite -> apply -> confirm lifecycle over the
// invitee and applicant sets. It knows nothing about members; the three hooks
// decide who may manage applications, who may be invited, and what a
// confirmed application turns into.
//
// The workflow performs no locking or rollback of its own and must run inside
// a unit of work.
type ApplicationWorkflow struct {
	Sets         ports.IdentitySetRepository
	CanManage    func(p Principal) error
	CanBeInvited func(ctx context.Context, addr entities.Address) error
	OnConfirmed  func(ctx context.Context, addr entities.Address) error
	Events       eventSink
	Logger       *slog.Logger
}

func (w ApplicationWorkflow) Invite(ctx context.Context, p Principal, addr entities.Address) error {
	if err := w.canManage(p); err != nil {
		return err
	}
	if w.CanBeInvited != nil {
		if err := w.CanBeInvited(ctx, addr); err != nil {
			w.logRejected("invite", addr, err)
			return err
		}
	}
	if err := w.Sets.SetAdd(ctx, entities.InviteesSet(), addr); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyPresent) {
			w.logRejected("invite", addr, domainerrors.ErrAlreadyInvitee)
			return domainerrors.ErrAlreadyInvitee
		}
		return err
	}
	logCommitted(ctx, w.Logger, "address invited",
		"event", "governance_invitation_created",
		"module", "governance/governance-engine",
		"layer", "application",
		"address", addr.Hex(),
	)
	return w.Events.emit(ctx, eventInvitationCreated, "address", addr.Hex(), map[string]any{
		"address": addr.Hex(),
	})
}

func (w ApplicationWorkflow) CancelInvitation(ctx context.Context, p Principal, addr entities.Address) error {
	if err := w.canManage(p); err != nil {
		return err
	}
	applied, err := w.Sets.SetContains(ctx, entities.ApplicantsSet(), addr)
	if err != nil {
		return err
	}
	if applied {
		w.logRejected("cancel_invitation", addr, domainerrors.ErrCannotCancelApplied)
		return domainerrors.ErrCannotCancelApplied
	}
	if err := w.Sets.SetRemove(ctx, entities.InviteesSet(), addr); err != nil {
		if errors.Is(err, domainerrors.ErrNotPresent) {
			return domainerrors.ErrNotInvitee
		}
		return err
	}
	logCommitted(ctx, w.Logger, "invitation cancelled",
		"event", "governance_invitation_cancelled",
		"module", "governance/governance-engine",
		"layer", "application",
		"address", addr.Hex(),
	)
	return w.Events.emit(ctx, eventInvitationCancelled, "address", addr.Hex(), map[string]any{
		"address": addr.Hex(),
	})
}

// SubmitApplication is called by the invitee itself.
func (w ApplicationWorkflow) SubmitApplication(ctx context.Context, p Principal) error {
	addr := p.Address()
	invited, err := w.Sets.SetContains(ctx, entities.InviteesSet(), addr)
	if err != nil {
		return err
	}
	if !invited {
		w.logRejected("submit_application", addr, domainerrors.ErrNotInvited)
		return domainerrors.ErrNotInvited
	}
	if err := w.Sets.SetAdd(ctx, entities.ApplicantsSet(), addr); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyPresent) {
			w.logRejected("submit_application", addr, domainerrors.ErrAlreadyApplied)
			return domainerrors.ErrAlreadyApplied
		}
		return err
	}
	logCommitted(ctx, w.Logger, "application submitted",
		"event", "governance_application_submitted",
		"module", "governance/governance-engine",
		"layer", "application",
		"address", addr.Hex(),
	)
	return w.Events.emit(ctx, eventApplicationSubmitted, "address", addr.Hex(), map[string]any{
		"address": addr.Hex(),
	})
}

func (w ApplicationWorkflow) RevokeApplication(ctx context.Context, p Principal, addr entities.Address) error {
	if err := w.close(ctx, p, addr); err != nil {
		return err
	}
	logCommitted(ctx, w.Logger, "application revoked",
		"event", "governance_application_revoked",
		"module", "governance/governance-engine",
		"layer", "application",
		"address", addr.Hex(),
	)
	return w.Events.emit(ctx, eventApplicationRevoked, "address", addr.Hex(), map[string]any{
		"address": addr.Hex(),
	})
}

// ConfirmApplication clears addr from both sets before OnConfirmed runs.
func (w ApplicationWorkflow) ConfirmApplication(ctx context.Context, p Principal, addr entities.Address) error {
	if err := w.close(ctx, p, addr); err != nil {
		return err
	}
	if err := w.Events.emit(ctx, eventApplicationConfirmed, "address", addr.Hex(), map[string]any{
		"address": addr.Hex(),
	}); err != nil {
		return err
	}
	logCommitted(ctx, w.Logger, "application confirmed",
		"event", "governance_application_confirmed",
		"module", "governance/governance-engine",
		"layer", "application",
		"address", addr.Hex(),
	)
	if w.OnConfirmed == nil {
		return nil
	}
	return w.OnConfirmed(ctx, addr)
}

func (w ApplicationWorkflow) IsInvitee(ctx context.Context, addr entities.Address) (bool, error) {
	return w.Sets.SetContains(ctx, entities.InviteesSet(), addr)
}

func (w ApplicationWorkflow) IsApplicant(ctx context.Context, addr entities.Address) (bool, error) {
	return w.Sets.SetContains(ctx, entities.ApplicantsSet(), addr)
}

func (w ApplicationWorkflow) close(ctx context.Context, p Principal, addr entities.Address) error {
	if err := w.canManage(p); err != nil {
		return err
	}
	if err := w.Sets.SetRemove(ctx, entities.ApplicantsSet(), addr); err != nil {
		if errors.Is(err, domainerrors.ErrNotPresent) {
			return domainerrors.ErrNotApplicant
		}
		return err
	}
	if err := w.Sets.SetRemove(ctx, entities.InviteesSet(), addr); err != nil && !errors.Is(err, domainerrors.ErrNotPresent) {
		return err
	}
	return nil
}

func (w ApplicationWorkflow) canManage(p Principal) error {
	if w.CanManage == nil {
		return domainerrors.ErrNotSelf
	}
	return w.CanManage(p)
}

func (w ApplicationWorkflow) logRejected(operation string, addr entities.Address, err error) {
	application.ResolveLogger(w.Logger).Warn("application workflow rejected",
		"event", "governance_application_rejected",
		"module", "governance/governance-engine",
		"layer", "application",
		"operation", operation,
		"address", addr.Hex(),
		"error", err.Error(),
	)
}
