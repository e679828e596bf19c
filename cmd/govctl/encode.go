package main

import (
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"consortium/contexts/governance/governance-engine/adapters/dispatch"
	"consortium/contexts/governance/governance-engine/application/commands"
	"consortium/contexts/governance/governance-engine/domain/entities"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(encodeCmd)
}

var encodeCmd = &cobra.Command{
	Use:   "encode <method|signature> [args...]",
	Short: "Pack a transaction item payload",
	Long: "Pack the arguments of a call into the payload submitted with a transaction item.\n" +
		"A bare method name is looked up on the engine's own interface; anything with\n" +
		"parentheses is treated as a subsystem signature.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		method, err := resolveMethod(args[0])
		if err != nil {
			return err
		}
		values, err := parseArgs(method.Inputs, args[1:])
		if err != nil {
			return err
		}
		payload, err := method.Inputs.Pack(values...)
		if err != nil {
			return fmt.Errorf("pack %s: %w", method.Sig, err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "signature: %s\n", method.Sig)
		fmt.Fprintf(out, "selector:  %s\n", entities.SelectorOf(method.Sig))
		fmt.Fprintf(out, "payload:   %s\n", hexutil.Encode(payload))
		return nil
	},
}

func resolveMethod(name string) (abi.Method, error) {
	if strings.Contains(name, "(") {
		return dispatch.ParseSignature(name)
	}
	method, ok := commands.SelfABI().Methods[name]
	if !ok {
		return abi.Method{}, fmt.Errorf("unknown engine method %q", name)
	}
	return method, nil
}

func parseArgs(inputs abi.Arguments, raw []string) ([]any, error) {
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("expected %d arguments, got %d", len(inputs), len(raw))
	}
	values := make([]any, len(inputs))
	for i, input := range inputs {
		v, err := parseArg(input.Type, raw[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, input.Type.String(), err)
		}
		values[i] = v
	}
	return values, nil
}

func parseArg(t abi.Type, raw string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(raw) {
			return nil, fmt.Errorf("invalid address %q", raw)
		}
		return common.HexToAddress(raw), nil
	case abi.BoolTy:
		return strconv.ParseBool(raw)
	case abi.StringTy:
		return raw, nil
	case abi.BytesTy:
		return hexutil.Decode(raw)
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(raw)
		if err != nil {
			return nil, err
		}
		if len(b) > t.Size {
			return nil, fmt.Errorf("%d bytes do not fit bytes%d", len(b), t.Size)
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v.Interface(), nil
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(raw, 0)
		if !ok {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		if t.T == abi.UintTy && n.Sign() < 0 {
			return nil, fmt.Errorf("negative value %q for unsigned type", raw)
		}
		if t.Size > 64 {
			return n, nil
		}
		if n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s overflows %s", raw, t.String())
		}
		if t.T == abi.UintTy {
			return reflect.ValueOf(n.Uint64()).Convert(t.GetType()).Interface(), nil
		}
		return reflect.ValueOf(n.Int64()).Convert(t.GetType()).Interface(), nil
	default:
		return nil, fmt.Errorf("type %s is not supported", t.String())
	}
}
