package queries

import (
	"context"
	"math/big"
	"testing"
	"time"

	"consortium/contexts/governance/governance-engine/adapters/memory"
	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")

	t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func seededLedger(t *testing.T) (LedgerUseCase, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	for _, addr := range []common.Address{alice, bob} {
		require.NoError(t, store.SetAdd(ctx, entities.MembersSet(), addr))
	}
	require.NoError(t, store.SetAdd(ctx, entities.InviteesSet(), carol))

	key := entities.ActionKeyOf("addValidator")
	require.NoError(t, store.SaveAction(ctx, entities.Action{Key: key, RequiredPercentage: 50, Allowed: true}))

	statuses := []entities.TransactionStatus{entities.StatusExecuted, entities.StatusSubmitted, entities.StatusRevoked}
	for i, status := range statuses {
		id, err := store.AppendTransaction(ctx, entities.Transaction{
			Items:       []entities.TransactionItem{{ActionKey: key, Value: big.NewInt(0)}},
			Status:      status,
			SubmittedAt: t0.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.NoError(t, store.SetAdd(ctx, entities.ConfirmationsOf(id), alice))
	}
	require.NoError(t, store.SetAdd(ctx, entities.RevocationsOf(2), bob))

	return LedgerUseCase{Repo: store}, store
}

func TestLedgerRanges(t *testing.T) {
	ctx := context.Background()
	ledger, _ := seededLedger(t)

	count, err := ledger.TransactionCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)

	statuses, err := ledger.Statuses(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []entities.TransactionStatus{entities.StatusSubmitted, entities.StatusRevoked}, statuses)

	timestamps, err := ledger.Timestamps(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{t0, t0.Add(time.Minute)}, timestamps)

	revocations, err := ledger.Revocations(ctx, 0, 3)
	require.NoError(t, err)
	require.Len(t, revocations, 3)
	assert.Empty(t, revocations[0])
	assert.Equal(t, []common.Address{bob}, revocations[2])

	confirmations, err := ledger.Confirmations(ctx, 2, 2)
	require.NoError(t, err)
	assert.Empty(t, confirmations)

	views, err := ledger.Transactions(ctx, 0, 3)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, uint64(2), views[2].Transaction.ID)
	assert.Equal(t, []common.Address{alice}, views[2].Confirmations)
}

func TestLedgerRejectsInvalidRanges(t *testing.T) {
	ctx := context.Background()
	ledger, _ := seededLedger(t)

	_, err := ledger.Statuses(ctx, 2, 1)
	require.ErrorIs(t, err, domainerrors.ErrInvalidRange)
	_, err = ledger.Confirmations(ctx, 0, 4)
	require.ErrorIs(t, err, domainerrors.ErrInvalidRange)
	_, err = ledger.Transactions(ctx, 0, 4)
	require.ErrorIs(t, err, domainerrors.ErrInvariantViolation)
}

func TestLedgerAccessors(t *testing.T) {
	ctx := context.Background()
	ledger, _ := seededLedger(t)

	members, err := ledger.Members(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{alice, bob}, members)

	invitees, err := ledger.Invitees(ctx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{carol}, invitees)

	applicants, err := ledger.Applicants(ctx)
	require.NoError(t, err)
	assert.Empty(t, applicants)

	isMember, err := ledger.IsMember(ctx, carol)
	require.NoError(t, err)
	assert.False(t, isMember)
	isInvitee, err := ledger.IsInvitee(ctx, carol)
	require.NoError(t, err)
	assert.True(t, isInvitee)

	action, err := ledger.Action(ctx, entities.ActionKeyOf("addValidator"))
	require.NoError(t, err)
	assert.Equal(t, uint8(50), action.RequiredPercentage)
	_, err = ledger.Action(ctx, entities.ActionKeyOf("missing"))
	require.ErrorIs(t, err, domainerrors.ErrActionNotFound)

	view, err := ledger.Transaction(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusSubmitted, view.Transaction.Status)
	_, err = ledger.Transaction(ctx, 9)
	require.ErrorIs(t, err, domainerrors.ErrNotFound)

	balance, err := ledger.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Sign())
}
