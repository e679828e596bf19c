package commands

import (
	"context"
	"testing"
	"time"

	"consortium/contexts/governance/governance-engine/adapters/memory"
	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionRegistry(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	registry := ActionRegistry{Actions: store, Logger: discardLogger()}
	self := selfPrincipal()

	action := validatorAction("addValidator", 51, 2*time.Hour)
	require.ErrorIs(t, registry.AllowAction(ctx, External(memberA), action), domainerrors.ErrNotSelf)
	require.ErrorIs(t, registry.UpdateAction(ctx, self, action), domainerrors.ErrActionNotAllowed)
	require.ErrorIs(t, registry.DisallowAction(ctx, self, action.Key), domainerrors.ErrActionNotAllowed)
	require.ErrorIs(t, registry.UpdateAction(ctx, self, action), domainerrors.ErrStateConflict)
	require.NotErrorIs(t, registry.UpdateAction(ctx, self, action), domainerrors.ErrActionDisallowed)

	require.NoError(t, registry.AllowAction(ctx, self, action))
	require.ErrorIs(t, registry.AllowAction(ctx, self, action), domainerrors.ErrActionAlreadyAllowed)

	invalid := action
	invalid.RequiredPercentage = 101
	require.ErrorIs(t, registry.UpdateAction(ctx, self, invalid), domainerrors.ErrInvalidPercentage)

	updated := action
	updated.TimeOut = 0
	updated.RequiredPercentage = 80
	require.NoError(t, registry.UpdateAction(ctx, self, updated))
	stored, found, err := store.GetAction(ctx, action.Key)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint8(80), stored.RequiredPercentage)
	assert.Zero(t, stored.TimeOut)
	assert.True(t, stored.Allowed)

	require.NoError(t, registry.DisallowAction(ctx, self, action.Key))
	stored, _, err = store.GetAction(ctx, action.Key)
	require.NoError(t, err)
	assert.False(t, stored.Allowed)
	assert.Zero(t, stored.RequiredPercentage)

	// A disallowed key may be allowed again.
	require.NoError(t, registry.AllowAction(ctx, self, action))
}

func TestProtectedActionsCannotBeDisallowed(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	registry := ActionRegistry{Actions: store, Logger: discardLogger()}
	self := selfPrincipal()

	for _, name := range []string{entities.ActionAllowAction, entities.ActionDisallowAction, entities.ActionUpdateAction} {
		require.NoError(t, registry.AllowAction(ctx, self, selfAction(name, 50)))
		require.ErrorIs(t, registry.DisallowAction(ctx, self, entities.ActionKeyOf(name)), domainerrors.ErrProtectedAction)
	}
}
