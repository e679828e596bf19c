package commands

import (
	"context"
	"errors"
	"math/big"

	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"
)

// dispatch is the only place the self principal is handed out: calls aimed
// at the engine's own address go through the self-interface, everything else
// through the Dispatcher port. Value leaves the governance balance before
// the call is made.
func (g *Governance) dispatch(ctx context.Context, call ports.Call) ([]byte, error) {
	if call.Destination == g.Self {
		if call.Selector.IsZero() {
			return nil, nil
		}
		return g.invokeSelf(ctx, call)
	}

	destination := call.Destination.Hex()
	if call.Value != nil && call.Value.Sign() > 0 {
		if _, err := g.Repo.AdjustBalance(ctx, new(big.Int).Neg(call.Value)); err != nil {
			return nil, domainerrors.NewDispatchError(destination, call.Selector.String(), nil, err)
		}
	}
	if g.Dispatcher == nil {
		return nil, domainerrors.NewDispatchError(destination, call.Selector.String(), nil, domainerrors.ErrUnknownDestination)
	}

	out, err := g.Dispatcher.Dispatch(ctx, g.Self, call)
	if err != nil {
		var dispatchErr *domainerrors.DispatchError
		if errors.As(err, &dispatchErr) {
			return nil, err
		}
		return nil, domainerrors.NewDispatchError(destination, call.Selector.String(), out, err)
	}
	return out, nil
}

func (g *Governance) invokeSelf(ctx context.Context, call ports.Call) ([]byte, error) {
	destination := g.Self.Hex()
	method, err := selfABI.MethodById(call.Selector[:])
	if err != nil {
		return nil, domainerrors.NewDispatchError(destination, call.Selector.String(), nil, domainerrors.ErrUnknownSelector)
	}
	args, err := method.Inputs.Unpack(call.Payload)
	if err != nil {
		return nil, domainerrors.NewDispatchError(destination, method.Sig, nil, domainerrors.ErrMalformedCallParams)
	}

	self := Principal{address: g.Self, self: true}
	out, err := g.callSelf(ctx, self, method.Name, selfArgs(args))
	if err != nil {
		return nil, domainerrors.NewDispatchError(destination, method.Sig, out, err)
	}
	return out, nil
}

func (g *Governance) callSelf(ctx context.Context, self Principal, name string, args selfArgs) ([]byte, error) {
	switch name {
	case selfAllowAction, selfUpdateAction:
		action, err := args.action()
		if err != nil {
			return nil, err
		}
		if name == selfAllowAction {
			return nil, g.AllowAction(ctx, self, action)
		}
		return nil, g.UpdateAction(ctx, self, action)
	case selfDisallowAction:
		key, err := args.actionKey(0)
		if err != nil {
			return nil, err
		}
		return nil, g.DisallowAction(ctx, self, key)
	case selfRemoveMember:
		addr, err := args.address(0)
		if err != nil {
			return nil, err
		}
		return nil, g.RemoveMember(ctx, self, addr)
	case selfSendEther:
		addr, err := args.address(0)
		if err != nil {
			return nil, err
		}
		value, err := args.bigInt(1)
		if err != nil {
			return nil, err
		}
		return nil, g.SendEther(ctx, self, addr, value)
	case selfUpgradeTo:
		addr, err := args.address(0)
		if err != nil {
			return nil, err
		}
		return nil, g.UpgradeTo(ctx, self, addr)
	case selfUpgradeToAndCall:
		addr, err := args.address(0)
		if err != nil {
			return nil, err
		}
		data, err := args.bytes(1)
		if err != nil {
			return nil, err
		}
		return g.UpgradeToAndCall(ctx, self, addr, data)
	case selfInvite, selfCancelInvitation, selfConfirmApplication, selfRevokeApplication:
		addr, err := args.address(0)
		if err != nil {
			return nil, err
		}
		switch name {
		case selfInvite:
			return nil, g.Invite(ctx, self, addr)
		case selfCancelInvitation:
			return nil, g.CancelInvitation(ctx, self, addr)
		case selfConfirmApplication:
			return nil, g.ConfirmApplication(ctx, self, addr)
		default:
			return nil, g.RevokeApplication(ctx, self, addr)
		}
	default:
		return nil, domainerrors.ErrUnknownSelector
	}
}

// Self-interface method names.
const (
	selfAllowAction        = "allowAction"
	selfUpdateAction       = "updateAction"
	selfDisallowAction     = "disallowAction"
	selfRemoveMember       = "removeMember"
	selfSendEther          = "sendEther"
	selfUpgradeTo          = "upgradeTo"
	selfUpgradeToAndCall   = "upgradeToAndCall"
	selfInvite             = "invite"
	selfCancelInvitation   = "cancelInvitation"
	selfConfirmApplication = "confirmApplication"
	selfRevokeApplication  = "revokeApplication"
)

// SelfSelector returns the selector of a self-interface method, or the zero
// selector for an unknown name.
func SelfSelector(name string) entities.Selector {
	method, ok := selfABI.Methods[name]
	if !ok {
		return entities.Selector{}
	}
	sel, _ := entities.SelectorFromBytes(method.ID)
	return sel
}
