package commands

import (
	"context"
	"testing"

	"consortium/contexts/governance/governance-engine/adapters/memory"
	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWorkflow(store *memory.Store, confirmed *[]entities.Address) ApplicationWorkflow {
	return ApplicationWorkflow{
		Sets:      store,
		CanManage: requireSelf,
		CanBeInvited: func(_ context.Context, addr entities.Address) error {
			if addr == memberA {
				return domainerrors.ErrAlreadyMember
			}
			return nil
		},
		OnConfirmed: func(_ context.Context, addr entities.Address) error {
			*confirmed = append(*confirmed, addr)
			return nil
		},
		Logger: discardLogger(),
	}
}

func TestApplicationWorkflowLifecycle(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	var confirmed []entities.Address
	w := newWorkflow(store, &confirmed)
	self := selfPrincipal()

	require.ErrorIs(t, w.SubmitApplication(ctx, External(memberD)), domainerrors.ErrNotInvited)
	require.ErrorIs(t, w.Invite(ctx, self, memberA), domainerrors.ErrAlreadyMember)

	require.NoError(t, w.Invite(ctx, self, memberD))
	require.ErrorIs(t, w.Invite(ctx, self, memberD), domainerrors.ErrAlreadyInvitee)

	invitee, err := w.IsInvitee(ctx, memberD)
	require.NoError(t, err)
	assert.True(t, invitee)

	require.ErrorIs(t, w.ConfirmApplication(ctx, self, memberD), domainerrors.ErrNotApplicant)
	require.NoError(t, w.SubmitApplication(ctx, External(memberD)))
	require.ErrorIs(t, w.SubmitApplication(ctx, External(memberD)), domainerrors.ErrAlreadyApplied)

	applicant, err := w.IsApplicant(ctx, memberD)
	require.NoError(t, err)
	assert.True(t, applicant)

	require.NoError(t, w.ConfirmApplication(ctx, self, memberD))
	assert.Equal(t, []entities.Address{memberD}, confirmed)

	invitee, err = w.IsInvitee(ctx, memberD)
	require.NoError(t, err)
	assert.False(t, invitee)
	applicant, err = w.IsApplicant(ctx, memberD)
	require.NoError(t, err)
	assert.False(t, applicant)
}

func TestApplicationWorkflowCancelAndRevoke(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	var confirmed []entities.Address
	w := newWorkflow(store, &confirmed)
	self := selfPrincipal()

	require.ErrorIs(t, w.CancelInvitation(ctx, self, memberD), domainerrors.ErrNotInvitee)
	require.NoError(t, w.Invite(ctx, self, memberD))
	require.NoError(t, w.CancelInvitation(ctx, self, memberD))

	require.NoError(t, w.Invite(ctx, self, memberE))
	require.NoError(t, w.SubmitApplication(ctx, External(memberE)))
	require.ErrorIs(t, w.CancelInvitation(ctx, self, memberE), domainerrors.ErrCannotCancelApplied)

	require.NoError(t, w.RevokeApplication(ctx, self, memberE))
	require.ErrorIs(t, w.RevokeApplication(ctx, self, memberE), domainerrors.ErrNotApplicant)
	assert.Empty(t, confirmed)

	invitee, err := w.IsInvitee(ctx, memberE)
	require.NoError(t, err)
	assert.False(t, invitee)
}

func TestApplicationWorkflowRequiresManager(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	var confirmed []entities.Address
	w := newWorkflow(store, &confirmed)

	require.ErrorIs(t, w.Invite(ctx, External(memberA), memberD), domainerrors.ErrNotSelf)
	require.ErrorIs(t, w.CancelInvitation(ctx, External(memberA), memberD), domainerrors.ErrNotSelf)
	require.ErrorIs(t, w.ConfirmApplication(ctx, External(memberA), memberD), domainerrors.ErrNotSelf)
	require.ErrorIs(t, w.RevokeApplication(ctx, External(memberA), memberD), domainerrors.ErrAuthorization)

	w.CanManage = nil
	require.ErrorIs(t, w.Invite(ctx, selfPrincipal(), memberD), domainerrors.ErrNotSelf)
}
