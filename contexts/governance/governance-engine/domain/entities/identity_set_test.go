package entities

import (
	"math/rand"
	"testing"

	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(n byte) Address {
	return common.BytesToAddress([]byte{n})
}

func TestIdentitySetAddRemove(t *testing.T) {
	set := &IdentitySet{}
	require.NoError(t, set.Add(addr(1)))
	require.NoError(t, set.Add(addr(2)))
	require.NoError(t, set.Add(addr(3)))

	require.ErrorIs(t, set.Add(addr(2)), domainerrors.ErrAlreadyPresent)
	require.ErrorIs(t, set.Add(addr(2)), domainerrors.ErrStateConflict)

	require.NoError(t, set.Remove(addr(1)))
	assert.Equal(t, []Address{addr(3), addr(2)}, set.All())
	assert.False(t, set.Contains(addr(1)))
	assert.True(t, set.Contains(addr(2)))
	assert.True(t, set.Contains(addr(3)))

	require.ErrorIs(t, set.Remove(addr(1)), domainerrors.ErrNotPresent)
	require.ErrorIs(t, set.Remove(addr(9)), domainerrors.ErrNotFound)
}

func TestIdentitySetRemoveLastElement(t *testing.T) {
	set, err := NewIdentitySet(addr(1), addr(2))
	require.NoError(t, err)

	require.NoError(t, set.Remove(addr(2)))
	assert.Equal(t, []Address{addr(1)}, set.All())
	require.NoError(t, set.Remove(addr(1)))
	assert.Empty(t, set.All())
	assert.Equal(t, 0, set.Len())

	require.NoError(t, set.Add(addr(2)))
	assert.Equal(t, []Address{addr(2)}, set.All())
}

func TestNewIdentitySetRejectsDuplicates(t *testing.T) {
	_, err := NewIdentitySet(addr(1), addr(1))
	require.ErrorIs(t, err, domainerrors.ErrAlreadyPresent)
}

func TestIdentitySetMatchesReferenceModel(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	set := &IdentitySet{}
	model := map[Address]bool{}

	for step := 0; step < 2000; step++ {
		a := addr(byte(rng.Intn(24)))
		if rng.Intn(2) == 0 {
			err := set.Add(a)
			if model[a] {
				require.ErrorIs(t, err, domainerrors.ErrAlreadyPresent)
			} else {
				require.NoError(t, err)
				model[a] = true
			}
		} else {
			err := set.Remove(a)
			if model[a] {
				require.NoError(t, err)
				delete(model, a)
			} else {
				require.ErrorIs(t, err, domainerrors.ErrNotPresent)
			}
		}

		require.Equal(t, len(model), set.Len())
		for _, member := range set.All() {
			require.True(t, model[member])
		}
		for member := range model {
			require.True(t, set.Contains(member))
		}
	}
}

func TestIdentitySetCloneIsIndependent(t *testing.T) {
	set, err := NewIdentitySet(addr(1), addr(2))
	require.NoError(t, err)

	clone := set.Clone()
	require.NoError(t, clone.Remove(addr(1)))

	assert.True(t, set.Contains(addr(1)))
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, 1, clone.Len())
}

func TestSetRefString(t *testing.T) {
	assert.Equal(t, "members", MembersSet().String())
	assert.Equal(t, "confirmations/12", ConfirmationsOf(12).String())
	assert.Equal(t, "revocations/0", RevocationsOf(0).String())
}
