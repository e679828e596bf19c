package entities

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// Address identifies a member, a managed subsystem, or the engine itself.
type Address = common.Address

// ActionKey is the keccak-256 hash of an action name.
type ActionKey = common.Hash

// ActionKeyOf derives the registry key for a named action.
func ActionKeyOf(name string) ActionKey {
	return crypto.Keccak256Hash([]byte(name))
}

// Selector is the 4-byte identifier of an entry point on a destination.
// The zero selector means "no call".
type Selector [4]byte

// SelectorOf derives a selector from a canonical signature such as
// "addValidator(address)". An empty signature yields the zero selector.
func SelectorOf(signature string) Selector {
	var s Selector
	if signature == "" {
		return s
	}
	copy(s[:], crypto.Keccak256([]byte(signature))[:4])
	return s
}

// SelectorFromBytes reads the leading four bytes of b.
func SelectorFromBytes(b []byte) (Selector, bool) {
	var s Selector
	if len(b) < len(s) {
		return s, false
	}
	copy(s[:], b[:len(s)])
	return s, true
}

func (s Selector) IsZero() bool {
	return s == Selector{}
}

func (s Selector) String() string {
	return hexutil.Encode(s[:])
}
