package dispatch

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	engine     = common.HexToAddress("0x0000000000000000000000000000000000001000")
	validators = common.HexToAddress("0x0000000000000000000000000000000000002000")
	wallet     = common.HexToAddress("0x00000000000000000000000000000000000000ff")
)

func newTestRouter(t *testing.T) (*Router, *Journal) {
	t.Helper()
	router := NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)))
	journal, err := NewJournal([]string{"addValidator(address)", "setMinGasPrice(uint256)"})
	require.NoError(t, err)
	require.NoError(t, router.Register("validators", validators, journal))
	return router, journal
}

func TestRouterDeliversDeclaredCalls(t *testing.T) {
	ctx := context.Background()
	router, journal := newTestRouter(t)

	method, err := ParseSignature("setMinGasPrice(uint256)")
	require.NoError(t, err)
	payload, err := method.Inputs.Pack(big.NewInt(7))
	require.NoError(t, err)

	_, err = router.Dispatch(ctx, engine, ports.Call{
		Destination: validators,
		Value:       big.NewInt(2),
		Selector:    entities.SelectorOf("setMinGasPrice(uint256)"),
		Payload:     payload,
	})
	require.NoError(t, err)

	entries := journal.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "setMinGasPrice", entries[0].Method)
	assert.Equal(t, engine, entries[0].Caller)
	assert.Equal(t, []any{big.NewInt(7)}, entries[0].Args)
	assert.Equal(t, big.NewInt(2), journal.Balance())
}

func TestRouterRejectsUndeclaredOrUnknown(t *testing.T) {
	ctx := context.Background()
	router, journal := newTestRouter(t)

	_, err := router.Dispatch(ctx, engine, ports.Call{
		Destination: validators,
		Selector:    entities.SelectorOf("removeAllValidators()"),
	})
	require.ErrorIs(t, err, domainerrors.ErrUnknownSelector)

	_, err = router.Dispatch(ctx, engine, ports.Call{
		Destination: wallet,
		Selector:    entities.SelectorOf("addValidator(address)"),
	})
	require.ErrorIs(t, err, domainerrors.ErrUnknownDestination)

	_, err = router.Dispatch(ctx, engine, ports.Call{
		Destination: validators,
		Selector:    entities.SelectorOf("addValidator(address)"),
		Payload:     []byte{0x01},
	})
	require.ErrorIs(t, err, domainerrors.ErrMalformedCallParams)
	assert.Empty(t, journal.Entries())

	require.Error(t, router.Register("again", validators, journal))
}

func TestRouterTransfers(t *testing.T) {
	ctx := context.Background()
	router, journal := newTestRouter(t)

	_, err := router.Dispatch(ctx, engine, ports.Call{Destination: wallet, Value: big.NewInt(5)})
	require.NoError(t, err)
	_, err = router.Dispatch(ctx, engine, ports.Call{Destination: validators, Value: big.NewInt(3)})
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3), journal.Balance())
	assert.Empty(t, journal.Entries())

	plain, err := NewABISubsystem(`[{"type":"function","name":"ping","inputs":[],"outputs":[]}]`, map[string]HandlerFunc{
		"ping": func(context.Context, InboundCall, []any) ([]byte, error) { return nil, nil },
	})
	require.NoError(t, err)
	plainAddr := common.HexToAddress("0x0000000000000000000000000000000000003000")
	require.NoError(t, router.Register("plain", plainAddr, plain))

	_, err = router.Dispatch(ctx, engine, ports.Call{Destination: plainAddr, Value: big.NewInt(1)})
	require.ErrorIs(t, err, domainerrors.ErrUnknownSelector)
}

func TestParseSignature(t *testing.T) {
	method, err := ParseSignature(" transfer(address, uint256) ")
	require.NoError(t, err)
	assert.Equal(t, "transfer(address,uint256)", method.Sig)
	assert.Equal(t, []byte{0xa9, 0x05, 0x9c, 0xbb}, method.ID)
	assert.Len(t, method.Inputs, 2)
	assert.Equal(t, abi.AddressTy, method.Inputs[0].Type.T)

	_, err = ParseSignature("broken(")
	require.Error(t, err)
	_, err = ParseSignature("bad(notatype)")
	require.Error(t, err)
}

func TestNewABISubsystemRequiresMethods(t *testing.T) {
	_, err := NewABISubsystem(`[]`, map[string]HandlerFunc{
		"missing": func(context.Context, InboundCall, []any) ([]byte, error) { return nil, nil },
	})
	require.Error(t, err)
}
