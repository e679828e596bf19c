package commands

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"consortium/contexts/governance/governance-engine/adapters/dispatch"
	"consortium/contexts/governance/governance-engine/adapters/memory"
	"consortium/contexts/governance/governance-engine/domain/entities"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	selfAddr       = common.HexToAddress("0x0000000000000000000000000000000000001000")
	validatorsAddr = common.HexToAddress("0x0000000000000000000000000000000000002000")
	hooksAddr      = common.HexToAddress("0x0000000000000000000000000000000000003000")

	memberA  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	memberB  = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	memberC  = common.HexToAddress("0x00000000000000000000000000000000000000c3")
	memberD  = common.HexToAddress("0x00000000000000000000000000000000000000d4")
	memberE  = common.HexToAddress("0x00000000000000000000000000000000000000e5")
	outsider = common.HexToAddress("0x00000000000000000000000000000000000000ff")

	startTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	gov        *Governance
	store      *memory.Store
	router     *dispatch.Router
	clock      *testClock
	validators *dispatch.Journal
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, members []entities.Address, actions ...entities.Action) *harness {
	t.Helper()

	store := memory.NewStore()
	router := dispatch.NewRouter(discardLogger())
	validators, err := dispatch.NewJournal([]string{
		"addValidator(address)",
		"rejectValidator(address)",
		"expireValidator(address)",
	})
	require.NoError(t, err)
	require.NoError(t, router.Register("validators", validatorsAddr, validators))

	clock := &testClock{now: startTime}
	gov := NewGovernance(GovernanceDependencies{
		Repository:  store,
		Dispatcher:  router,
		Outbox:      store,
		Idempotency: store,
		Clock:       clock,
		IDGen:       store,
		Self:        selfAddr,
		Logger:      discardLogger(),
	})
	require.NoError(t, gov.Initialize(context.Background(), InitializeCommand{
		Members: members,
		Actions: actions,
	}))

	return &harness{
		gov:        gov,
		store:      store,
		router:     router,
		clock:      clock,
		validators: validators,
	}
}

func validatorAction(name string, pct uint8, timeout time.Duration) entities.Action {
	return entities.Action{
		Key:                entities.ActionKeyOf(name),
		Destination:        validatorsAddr,
		RequiredPercentage: pct,
		TimeOut:            timeout,
		SuccessFunction:    entities.SelectorOf("addValidator(address)"),
		RevokeFunction:     entities.SelectorOf("rejectValidator(address)"),
		TimeOutFunction:    entities.SelectorOf("expireValidator(address)"),
	}
}

func selfAction(name string, pct uint8) entities.Action {
	return entities.Action{
		Key:                entities.ActionKeyOf(name),
		Destination:        selfAddr,
		RequiredPercentage: pct,
		SuccessFunction:    SelfSelector(name),
	}
}

func packAddress(t *testing.T, addr entities.Address) []byte {
	t.Helper()
	typ, err := abi.NewType("address", "", nil)
	require.NoError(t, err)
	payload, err := abi.Arguments{{Type: typ}}.Pack(addr)
	require.NoError(t, err)
	return payload
}

func selfPayload(t *testing.T, method string, args ...any) []byte {
	t.Helper()
	_, payload, err := EncodeSelfCall(method, args...)
	require.NoError(t, err)
	return payload
}

func single(key string, payload []byte, confirm bool) SubmitTransactionCommand {
	return SubmitTransactionCommand{
		Actions:   []entities.ActionKey{entities.ActionKeyOf(key)},
		Values:    []*big.Int{big.NewInt(0)},
		Payloads:  [][]byte{payload},
		AuditData: [][]byte{[]byte("audit:" + key)},
		Confirm:   confirm,
	}
}

func selfPrincipal() Principal {
	return Principal{address: selfAddr, self: true}
}

func (h *harness) setLen(t *testing.T, ref entities.SetRef) int {
	t.Helper()
	n, err := h.store.SetLen(context.Background(), ref)
	require.NoError(t, err)
	return n
}

func (h *harness) contains(t *testing.T, ref entities.SetRef, addr entities.Address) bool {
	t.Helper()
	ok, err := h.store.SetContains(context.Background(), ref, addr)
	require.NoError(t, err)
	return ok
}

func (h *harness) status(t *testing.T, id uint64) entities.TransactionStatus {
	t.Helper()
	tx, err := h.store.GetTransaction(context.Background(), id)
	require.NoError(t, err)
	return tx.Status
}
