package commands

import (
	"math"
	"math/big"
	"strings"
	"time"

	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// SelfABIJSON declares the entry points the engine accepts from its own
// dispatcher. Action records use seconds for timeOut.
const SelfABIJSON = `[
	{"type":"function","name":"allowAction","inputs":[
		{"name":"key","type":"bytes32"},
		{"name":"destination","type":"address"},
		{"name":"requiredPercentage","type":"uint8"},
		{"name":"timeOut","type":"uint64"},
		{"name":"successFunction","type":"bytes4"},
		{"name":"revokeFunction","type":"bytes4"},
		{"name":"timeOutFunction","type":"bytes4"}],"outputs":[]},
	{"type":"function","name":"updateAction","inputs":[
		{"name":"key","type":"bytes32"},
		{"name":"destination","type":"address"},
		{"name":"requiredPercentage","type":"uint8"},
		{"name":"timeOut","type":"uint64"},
		{"name":"successFunction","type":"bytes4"},
		{"name":"revokeFunction","type":"bytes4"},
		{"name":"timeOutFunction","type":"bytes4"}],"outputs":[]},
	{"type":"function","name":"disallowAction","inputs":[{"name":"key","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"removeMember","inputs":[{"name":"member","type":"address"}],"outputs":[]},
	{"type":"function","name":"sendEther","inputs":[{"name":"destination","type":"address"},{"name":"value","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"upgradeTo","inputs":[{"name":"implementation","type":"address"}],"outputs":[]},
	{"type":"function","name":"upgradeToAndCall","inputs":[{"name":"implementation","type":"address"},{"name":"data","type":"bytes"}],"outputs":[{"name":"","type":"bytes"}]},
	{"type":"function","name":"invite","inputs":[{"name":"addr","type":"address"}],"outputs":[]},
	{"type":"function","name":"cancelInvitation","inputs":[{"name":"addr","type":"address"}],"outputs":[]},
	{"type":"function","name":"confirmApplication","inputs":[{"name":"addr","type":"address"}],"outputs":[]},
	{"type":"function","name":"revokeApplication","inputs":[{"name":"addr","type":"address"}],"outputs":[]}
]`

var selfABI = mustParseABI(SelfABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// SelfABI returns the parsed self-interface.
func SelfABI() abi.ABI {
	return selfABI
}

// EncodeSelfCall packs args for a self-interface method and returns the
// selector and payload separately, as stored in a transaction item.
func EncodeSelfCall(name string, args ...any) (entities.Selector, []byte, error) {
	method, ok := selfABI.Methods[name]
	if !ok {
		return entities.Selector{}, nil, domainerrors.ErrUnknownSelector
	}
	payload, err := method.Inputs.Pack(args...)
	if err != nil {
		return entities.Selector{}, nil, err
	}
	sel, _ := entities.SelectorFromBytes(method.ID)
	return sel, payload, nil
}

// ActionCallArgs orders an action record the way allowAction and
// updateAction expect it.
func ActionCallArgs(action entities.Action) []any {
	return []any{
		[32]byte(action.Key),
		action.Destination,
		action.RequiredPercentage,
		uint64(action.TimeOut / time.Second),
		[4]byte(action.SuccessFunction),
		[4]byte(action.RevokeFunction),
		[4]byte(action.TimeOutFunction),
	}
}

type selfArgs []any

func (a selfArgs) action() (entities.Action, error) {
	if len(a) != 7 {
		return entities.Action{}, domainerrors.ErrMalformedCallParams
	}
	key, err := a.actionKey(0)
	if err != nil {
		return entities.Action{}, err
	}
	destination, err := a.address(1)
	if err != nil {
		return entities.Action{}, err
	}
	pct, ok := a[2].(uint8)
	if !ok {
		return entities.Action{}, domainerrors.ErrMalformedCallParams
	}
	seconds, ok := a[3].(uint64)
	if !ok || seconds > uint64(math.MaxInt64/int64(time.Second)) {
		return entities.Action{}, domainerrors.ErrMalformedCallParams
	}
	selectors := make([]entities.Selector, 0, 3)
	for i := 4; i < 7; i++ {
		raw, ok := a[i].([4]byte)
		if !ok {
			return entities.Action{}, domainerrors.ErrMalformedCallParams
		}
		selectors = append(selectors, entities.Selector(raw))
	}
	return entities.Action{
		Key:                key,
		Destination:        destination,
		RequiredPercentage: pct,
		TimeOut:            time.Duration(seconds) * time.Second,
		SuccessFunction:    selectors[0],
		RevokeFunction:     selectors[1],
		TimeOutFunction:    selectors[2],
	}, nil
}

func (a selfArgs) actionKey(i int) (entities.ActionKey, error) {
	if i >= len(a) {
		return entities.ActionKey{}, domainerrors.ErrMalformedCallParams
	}
	raw, ok := a[i].([32]byte)
	if !ok {
		return entities.ActionKey{}, domainerrors.ErrMalformedCallParams
	}
	return entities.ActionKey(raw), nil
}

func (a selfArgs) address(i int) (entities.Address, error) {
	if i >= len(a) {
		return entities.Address{}, domainerrors.ErrMalformedCallParams
	}
	addr, ok := a[i].(common.Address)
	if !ok {
		return entities.Address{}, domainerrors.ErrMalformedCallParams
	}
	return addr, nil
}

func (a selfArgs) bigInt(i int) (*big.Int, error) {
	if i >= len(a) {
		return nil, domainerrors.ErrMalformedCallParams
	}
	value, ok := a[i].(*big.Int)
	if !ok {
		return nil, domainerrors.ErrMalformedCallParams
	}
	return value, nil
}

func (a selfArgs) bytes(i int) ([]byte, error) {
	if i >= len(a) {
		return nil, domainerrors.ErrMalformedCallParams
	}
	value, ok := a[i].([]byte)
	if !ok {
		return nil, domainerrors.ErrMalformedCallParams
	}
	return value, nil
}
