package dispatch

import (
	"context"
	"fmt"
	"strings"

	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// HandlerFunc serves one decoded method call.
type HandlerFunc func(ctx context.Context, call InboundCall, args []any) ([]byte, error)

// ABISubsystem adapts Go handlers to a subsystem whose interface is declared
// by an ABI. Only methods with a handler are declared.
type ABISubsystem struct {
	methods  map[entities.Selector]abi.Method
	handlers map[string]HandlerFunc
}

func NewABISubsystem(abiJSON string, handlers map[string]HandlerFunc) (*ABISubsystem, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse subsystem abi: %w", err)
	}
	methods := make([]abi.Method, 0, len(handlers))
	for name := range handlers {
		method, ok := parsed.Methods[name]
		if !ok {
			return nil, fmt.Errorf("handler %q has no method in abi", name)
		}
		methods = append(methods, method)
	}
	return newABISubsystem(methods, handlers), nil
}

func newABISubsystem(methods []abi.Method, handlers map[string]HandlerFunc) *ABISubsystem {
	s := &ABISubsystem{
		methods:  make(map[entities.Selector]abi.Method, len(methods)),
		handlers: handlers,
	}
	for _, method := range methods {
		sel, _ := entities.SelectorFromBytes(method.ID)
		s.methods[sel] = method
	}
	return s
}

func (s *ABISubsystem) Selectors() []entities.Selector {
	out := make([]entities.Selector, 0, len(s.methods))
	for sel := range s.methods {
		out = append(out, sel)
	}
	return out
}

func (s *ABISubsystem) Invoke(ctx context.Context, call InboundCall) ([]byte, error) {
	method, ok := s.methods[call.Selector]
	if !ok {
		return nil, domainerrors.ErrUnknownSelector
	}
	args, err := method.Inputs.Unpack(call.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domainerrors.ErrMalformedCallParams, method.Sig, err)
	}
	return s.handlers[method.Name](ctx, call, args)
}

// ParseSignature builds a method from a canonical signature such as
// "setMinGasPrice(uint256)". Tuple types are not supported.
func ParseSignature(signature string) (abi.Method, error) {
	signature = strings.TrimSpace(signature)
	open := strings.IndexByte(signature, '(')
	if open <= 0 || !strings.HasSuffix(signature, ")") {
		return abi.Method{}, fmt.Errorf("malformed signature %q", signature)
	}
	name := signature[:open]
	rawArgs := strings.TrimSpace(signature[open+1 : len(signature)-1])

	var inputs abi.Arguments
	if rawArgs != "" {
		for i, rawType := range strings.Split(rawArgs, ",") {
			typ, err := abi.NewType(strings.TrimSpace(rawType), "", nil)
			if err != nil {
				return abi.Method{}, fmt.Errorf("signature %q argument %d: %w", signature, i, err)
			}
			inputs = append(inputs, abi.Argument{Name: fmt.Sprintf("arg%d", i), Type: typ})
		}
	}
	return abi.NewMethod(name, name, abi.Function, "nonpayable", false, false, inputs, nil), nil
}
