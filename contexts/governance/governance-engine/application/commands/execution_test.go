package commands

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"consortium/contexts/governance/governance-engine/adapters/memory"
	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// observingDispatcher reads the store from outside the running call, the way
// the outbox relay or an API reader would, and then fails or succeeds.
type observingDispatcher struct {
	store *memory.Store
	fail  bool

	pending []ports.OutboxMessage
	txErr   error
	calls   int
}

func (d *observingDispatcher) Dispatch(_ context.Context, _ entities.Address, _ ports.Call) ([]byte, error) {
	ctx := context.Background()
	d.calls++
	d.pending, _ = d.store.ListPendingOutbox(ctx, 100)
	_, d.txErr = d.store.GetTransaction(ctx, 0)
	if d.fail {
		return []byte("reverted"), errors.New("destination reverted")
	}
	return nil, nil
}

func newObservedEngine(t *testing.T, fail bool, logger *slog.Logger) (*Governance, *memory.Store, *observingDispatcher) {
	t.Helper()
	store := memory.NewStore()
	observer := &observingDispatcher{store: store, fail: fail}
	gov := NewGovernance(GovernanceDependencies{
		Repository:  store,
		Dispatcher:  observer,
		Outbox:      store,
		Idempotency: store,
		Clock:       &testClock{now: startTime},
		IDGen:       store,
		Self:        selfAddr,
		Logger:      logger,
	})
	require.NoError(t, gov.Initialize(context.Background(), InitializeCommand{
		Members: []entities.Address{memberA},
		Actions: []entities.Action{validatorAction("addValidator", 100, 0)},
	}))
	return gov, store, observer
}

func TestRunningCallIsInvisibleToOutsideReaders(t *testing.T) {
	ctx := context.Background()
	gov, store, observer := newObservedEngine(t, true, discardLogger())

	before, err := store.ListPendingOutbox(ctx, 100)
	require.NoError(t, err)

	_, err = gov.SubmitTransaction(ctx, External(memberA), single("addValidator", packAddress(t, outsider), true))
	require.ErrorIs(t, err, domainerrors.ErrDispatchFailure)
	require.Equal(t, 1, observer.calls)

	// While the call was running an outside reader saw neither the new
	// transaction nor the events queued for it.
	require.ErrorIs(t, observer.txErr, domainerrors.ErrTransactionNotFound)
	assert.Equal(t, before, observer.pending)
	for _, msg := range observer.pending {
		assert.NotContains(t, msg.EventType, "governance.transaction.")
	}

	after, err := store.ListPendingOutbox(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	count, err := store.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestCommittedCallBecomesVisible(t *testing.T) {
	ctx := context.Background()
	gov, store, observer := newObservedEngine(t, false, discardLogger())

	before, err := store.ListPendingOutbox(ctx, 100)
	require.NoError(t, err)

	result, err := gov.SubmitTransaction(ctx, External(memberA), single("addValidator", packAddress(t, outsider), true))
	require.NoError(t, err)
	assert.Equal(t, entities.StatusExecuted, result.Evaluation.Status)
	require.ErrorIs(t, observer.txErr, domainerrors.ErrTransactionNotFound)

	tx, err := store.GetTransaction(ctx, result.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusExecuted, tx.Status)
	after, err := store.ListPendingOutbox(ctx, 100)
	require.NoError(t, err)
	assert.Greater(t, len(after), len(before))
}

func TestInfoLogsOnlyDescribeCommittedChanges(t *testing.T) {
	ctx := context.Background()

	var rolledBack bytes.Buffer
	gov, _, _ := newObservedEngine(t, true, slog.New(slog.NewJSONHandler(&rolledBack, nil)))
	rolledBack.Reset()

	_, err := gov.SubmitTransaction(ctx, External(memberA), single("addValidator", packAddress(t, outsider), true))
	require.ErrorIs(t, err, domainerrors.ErrDispatchFailure)
	assert.NotContains(t, rolledBack.String(), "governance_transaction_submitted")
	assert.NotContains(t, rolledBack.String(), "governance_transaction_vote_recorded")
	assert.NotContains(t, rolledBack.String(), "governance_transaction_resolved")
	assert.Contains(t, rolledBack.String(), "governance_command_rejected")

	var committed bytes.Buffer
	gov, _, _ = newObservedEngine(t, false, slog.New(slog.NewJSONHandler(&committed, nil)))
	committed.Reset()

	_, err = gov.SubmitTransaction(ctx, External(memberA), single("addValidator", packAddress(t, outsider), true))
	require.NoError(t, err)
	assert.Contains(t, committed.String(), "governance_transaction_submitted")
	assert.Contains(t, committed.String(), "governance_transaction_vote_recorded")
	assert.Contains(t, committed.String(), "governance_transaction_resolved")
}

func TestAfterCommitDropsWorkOfRolledBackNestedCall(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, []entities.Address{memberA})

	var ran []string
	err := h.gov.run(ctx, func(ctx context.Context) error {
		afterCommit(ctx, func() { ran = append(ran, "outer") })
		nestedErr := h.gov.run(ctx, func(ctx context.Context) error {
			afterCommit(ctx, func() { ran = append(ran, "nested") })
			return domainerrors.ErrInvalidInput
		})
		require.ErrorIs(t, nestedErr, domainerrors.ErrInvalidInput)
		assert.Empty(t, ran)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"outer"}, ran)

	ran = nil
	err = h.gov.run(ctx, func(ctx context.Context) error {
		afterCommit(ctx, func() { ran = append(ran, "outer") })
		return domainerrors.ErrInvalidInput
	})
	require.ErrorIs(t, err, domainerrors.ErrInvalidInput)
	assert.Empty(t, ran)
}
