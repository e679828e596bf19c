package memory

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

func TestWithinTxRestoresStateOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	require.NoError(t, store.SetAdd(ctx, entities.MembersSet(), alice))

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.SetAdd(ctx, entities.MembersSet(), bob))
		_, err := store.AppendTransaction(ctx, entities.Transaction{Status: entities.StatusSubmitted})
		require.NoError(t, err)
		_, err = store.AdjustBalance(ctx, big.NewInt(5))
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	members, err := store.SetMembers(ctx, entities.MembersSet())
	require.NoError(t, err)
	assert.Equal(t, []entities.Address{alice}, members)
	count, err := store.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	balance, err := store.Balance(ctx)
	require.NoError(t, err)
	assert.Zero(t, balance.Sign())
}

func TestNestedWithinTxActsAsSavepoint(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.SetAdd(ctx, entities.MembersSet(), alice))
		inner := store.WithinTx(ctx, func(ctx context.Context) error {
			require.NoError(t, store.SetAdd(ctx, entities.MembersSet(), bob))
			return domainerrors.ErrAlreadyVoted
		})
		require.ErrorIs(t, inner, domainerrors.ErrAlreadyVoted)
		return nil
	})
	require.NoError(t, err)

	members, err := store.SetMembers(ctx, entities.MembersSet())
	require.NoError(t, err)
	assert.Equal(t, []entities.Address{alice}, members)
}

func TestTransactionLedger(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for i := 0; i < 3; i++ {
		id, err := store.AppendTransaction(ctx, entities.Transaction{
			Items:  []entities.TransactionItem{{ActionKey: entities.ActionKeyOf("a"), Value: big.NewInt(int64(i))}},
			Status: entities.StatusSubmitted,
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), id)
	}
	require.NoError(t, store.UpdateTransactionStatus(ctx, 1, entities.StatusExecuted))
	require.ErrorIs(t, store.UpdateTransactionStatus(ctx, 7, entities.StatusExecuted), domainerrors.ErrTransactionNotFound)

	pending, err := store.ListPendingTransactions(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, uint64(0), pending[0].ID)
	assert.Equal(t, uint64(2), pending[1].ID)

	pending, err = store.ListPendingTransactions(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(2), pending[0].ID)

	txs, err := store.ListTransactions(ctx, 1, 3)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, entities.StatusExecuted, txs[0].Status)

	// Returned transactions are copies.
	txs[1].Items[0].Value.SetInt64(99)
	stored, err := store.GetTransaction(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Items[0].Value.Int64())

	_, err = store.ListTransactions(ctx, 2, 4)
	require.ErrorIs(t, err, domainerrors.ErrInvalidRange)
}

func TestBalanceCannotGoNegative(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	balance, err := store.AdjustBalance(ctx, big.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3), balance)

	_, err = store.AdjustBalance(ctx, big.NewInt(-4))
	require.ErrorIs(t, err, domainerrors.ErrInsufficientFunds)
	balance, err = store.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3), balance)
}

func TestIdempotencyRecords(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.PutIdempotency(ctx, ports.IdempotencyRecord{
		Key:           " key-1 ",
		RequestHash:   "abc",
		TransactionID: 4,
		ExpiresAt:     now.Add(time.Hour),
	}))
	record, found, err := store.GetIdempotency(ctx, "key-1", now)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(4), record.TransactionID)

	_, found, err = store.GetIdempotency(ctx, "key-1", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.PutIdempotency(ctx, ports.IdempotencyRecord{
		Key:           "key-1",
		RequestHash:   "def",
		TransactionID: 9,
		ExpiresAt:     now.Add(3 * time.Hour),
	}))
	record, found, err = store.GetIdempotency(ctx, "key-1", now.Add(2*time.Hour))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "def", record.RequestHash)
}

func TestOutboxOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, eventType := range []string{"governance.b", "governance.a", "governance.c"} {
		require.NoError(t, store.AppendOutbox(ctx, ports.EventEnvelope{EventID: eventType, EventType: eventType, OccurredAt: at}))
	}
	pending, err := store.ListPendingOutbox(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "governance.b", pending[0].EventType)
	assert.Equal(t, "governance.a", pending[1].EventType)

	require.NoError(t, store.MarkOutboxPublished(ctx, pending[0].OutboxID, at))
	assert.Equal(t, 2, store.PendingOutboxCount())
}

func TestWithinTxStagesWritesUntilCommit(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.SetAdd(ctx, entities.MembersSet(), alice))
		require.NoError(t, store.AppendOutbox(ctx, ports.EventEnvelope{EventID: "e1", EventType: "governance.member.added"}))

		inside, err := store.SetContains(ctx, entities.MembersSet(), alice)
		require.NoError(t, err)
		assert.True(t, inside)

		outside, err := store.SetContains(context.Background(), entities.MembersSet(), alice)
		require.NoError(t, err)
		assert.False(t, outside)
		pending, err := store.ListPendingOutbox(context.Background(), 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
		return nil
	})
	require.NoError(t, err)

	member, err := store.SetContains(ctx, entities.MembersSet(), alice)
	require.NoError(t, err)
	assert.True(t, member)
	assert.Equal(t, 1, store.PendingOutboxCount())
}

func TestPublishDuringFailedUnitIsKept(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendOutbox(ctx, ports.EventEnvelope{EventID: "e1", EventType: "governance.a", OccurredAt: at}))
	pending, err := store.ListPendingOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	published := make(chan error, 1)
	err = store.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.AppendOutbox(ctx, ports.EventEnvelope{EventID: "e2", EventType: "governance.b", OccurredAt: at}))
		go func() {
			published <- store.MarkOutboxPublished(context.Background(), pending[0].OutboxID, at)
		}()
		time.Sleep(20 * time.Millisecond)
		return errors.New("rollback")
	})
	require.Error(t, err)

	require.NoError(t, <-published)
	assert.Equal(t, 0, store.PendingOutboxCount())
}
