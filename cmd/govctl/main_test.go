package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"consortium/contexts/governance/governance-engine/application/commands"
	"consortium/contexts/governance/governance-engine/domain/entities"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestSelectorCommand(t *testing.T) {
	out, err := run(t, "selector", "addValidator( address )")
	require.NoError(t, err)
	assert.Contains(t, out, entities.SelectorOf("addValidator(address)").String())
	assert.Contains(t, out, "addValidator(address)")

	_, err = run(t, "selector", "addValidator")
	require.Error(t, err)
}

func TestActionKeyCommand(t *testing.T) {
	out, err := run(t, "action-key", "allowAction")
	require.NoError(t, err)
	assert.Contains(t, out, entities.ActionKeyOf("allowAction").Hex())
	assert.Contains(t, out, "(protected)")

	out, err = run(t, "action-key", "addValidator")
	require.NoError(t, err)
	assert.NotContains(t, out, "protected")
}

func TestEncodeSelfMethod(t *testing.T) {
	member := "0x00000000000000000000000000000000000000b2"
	out, err := run(t, "encode", "removeMember", member)
	require.NoError(t, err)

	sel, payload, err := commands.EncodeSelfCall("removeMember", common.HexToAddress(member))
	require.NoError(t, err)
	assert.Contains(t, out, sel.String())
	assert.Contains(t, out, hexutil.Encode(payload))
}

func TestEncodeSubsystemSignature(t *testing.T) {
	out, err := run(t, "encode", "setContractDeployerAllowed(address,bool)", "0x0000000000000000000000000000000000007777", "true")
	require.NoError(t, err)
	assert.Contains(t, out, entities.SelectorOf("setContractDeployerAllowed(address,bool)").String())

	_, err = run(t, "encode", "setMinGasPrice(uint256)")
	require.ErrorContains(t, err, "expected 1 arguments")

	_, err = run(t, "encode", "setFee(uint8)", "300")
	require.ErrorContains(t, err, "overflows")

	_, err = run(t, "encode", "notAMethod", "x")
	require.ErrorContains(t, err, "unknown engine method")
}

func TestParseArgFixedBytes(t *testing.T) {
	method, err := resolveMethod("addPeer(bytes32)")
	require.NoError(t, err)
	v, err := parseArg(method.Inputs[0].Type, "0x01")
	require.NoError(t, err)
	peer, ok := v.([32]byte)
	require.True(t, ok)
	assert.Equal(t, byte(0x01), peer[0])
}

func TestGenesisCheck(t *testing.T) {
	out, err := run(t, "genesis", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "members: 3")
	assert.Contains(t, out, "addValidator")

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("members: []\n"), 0o600))
	_, err = run(t, "genesis", "check", path)
	require.ErrorContains(t, err, "at least one member")

	_, err = run(t, "genesis", "check", "--self", "nope")
	require.ErrorContains(t, err, "--self")
}
