package commands

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"sync"
	"time"

	application "consortium/contexts/governance/governance-engine/application"
	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"
)

type GovernanceDependencies struct {
	Repository     ports.Repository
	Dispatcher     ports.Dispatcher
	Proxy          ports.Proxy
	Outbox         ports.OutboxWriter
	Idempotency    ports.IdempotencyStore
	Metrics        ports.Metrics
	Clock          ports.Clock
	IDGen          ports.IDGenerator
	Self           entities.Address
	IdempotencyTTL time.Duration
	Logger         *slog.Logger
}

// Governance exposes the governance entry points. Every mutating call runs
// to completion under a single mutex inside one unit of work; calls that
// re-enter from a dispatch join the running call instead.
type Governance struct {
	Repo           ports.Repository
	Dispatcher     ports.Dispatcher
	Proxy          ports.Proxy
	Idempotency    ports.IdempotencyStore
	Metrics        ports.Metrics
	Clock          ports.Clock
	Self           entities.Address
	IdempotencyTTL time.Duration
	Logger         *slog.Logger

	Applications ApplicationWorkflow
	Registry     ActionRegistry

	events eventSink
	mu     sync.Mutex
}

func NewGovernance(deps GovernanceDependencies) *Governance {
	events := eventSink{Outbox: deps.Outbox, IDGen: deps.IDGen, Clock: deps.Clock}
	g := &Governance{
		Repo:           deps.Repository,
		Dispatcher:     deps.Dispatcher,
		Proxy:          deps.Proxy,
		Idempotency:    deps.Idempotency,
		Metrics:        deps.Metrics,
		Clock:          deps.Clock,
		Self:           deps.Self,
		IdempotencyTTL: deps.IdempotencyTTL,
		Logger:         deps.Logger,
		events:         events,
	}
	g.Registry = ActionRegistry{
		Actions: deps.Repository,
		Events:  events,
		Logger:  deps.Logger,
	}
	g.Applications = ApplicationWorkflow{
		Sets:         deps.Repository,
		CanManage:    requireSelf,
		CanBeInvited: g.notMember,
		OnConfirmed:  g.addMember,
		Events:       events,
		Logger:       deps.Logger,
	}
	return g
}

// InitializeCommand seeds a fresh engine.
type InitializeCommand struct {
	Members []entities.Address
	Actions []entities.Action
}

// Initialize runs once. Actions are stored allowed.
func (g *Governance) Initialize(ctx context.Context, cmd InitializeCommand) error {
	logger := application.ResolveLogger(g.Logger)
	if len(cmd.Members) == 0 {
		return domainerrors.ErrEmptyMembers
	}
	err := g.run(ctx, func(ctx context.Context) error {
		initialized, err := g.Repo.IsInitialized(ctx)
		if err != nil {
			return err
		}
		if initialized {
			return domainerrors.ErrAlreadyInitialized
		}
		for _, member := range cmd.Members {
			if err := g.addMember(ctx, member); err != nil {
				return err
			}
		}
		for _, action := range cmd.Actions {
			if err := action.Validate(); err != nil {
				return err
			}
			action.Allowed = true
			if err := g.Repo.SaveAction(ctx, action); err != nil {
				return err
			}
		}
		return g.Repo.MarkInitialized(ctx)
	})
	if err != nil {
		logger.Warn("governance initialization rejected",
			"event", "governance_initialize_rejected",
			"module", "governance/governance-engine",
			"layer", "application",
			"error", err.Error(),
		)
		return err
	}
	logger.Info("governance initialized",
		"event", "governance_initialized",
		"module", "governance/governance-engine",
		"layer", "application",
		"members", len(cmd.Members),
		"actions", len(cmd.Actions),
	)
	return nil
}

// RemoveMember is self-authorized.
func (g *Governance) RemoveMember(ctx context.Context, p Principal, addr entities.Address) error {
	if err := requireSelf(p); err != nil {
		return err
	}
	return g.run(ctx, func(ctx context.Context) error {
		return g.removeMember(ctx, addr)
	})
}

// Leave removes the calling member.
func (g *Governance) Leave(ctx context.Context, p Principal) error {
	return g.run(ctx, func(ctx context.Context) error {
		if err := g.requireMember(ctx, p); err != nil {
			return err
		}
		return g.removeMember(ctx, p.Address())
	})
}

func (g *Governance) AllowAction(ctx context.Context, p Principal, action entities.Action) error {
	return g.run(ctx, func(ctx context.Context) error {
		return g.Registry.AllowAction(ctx, p, action)
	})
}

func (g *Governance) UpdateAction(ctx context.Context, p Principal, action entities.Action) error {
	return g.run(ctx, func(ctx context.Context) error {
		return g.Registry.UpdateAction(ctx, p, action)
	})
}

func (g *Governance) DisallowAction(ctx context.Context, p Principal, key entities.ActionKey) error {
	return g.run(ctx, func(ctx context.Context) error {
		return g.Registry.DisallowAction(ctx, p, key)
	})
}

// SendEther transfers value from the governance balance to dest.
func (g *Governance) SendEther(ctx context.Context, p Principal, dest entities.Address, value *big.Int) error {
	if err := requireSelf(p); err != nil {
		return err
	}
	return g.run(ctx, func(ctx context.Context) error {
		if value == nil || value.Sign() <= 0 {
			return domainerrors.ErrInvalidInput
		}
		if _, err := g.dispatch(ctx, ports.Call{Destination: dest, Value: value}); err != nil {
			return err
		}
		logCommitted(ctx, g.Logger, "value sent",
			"event", "governance_value_sent",
			"module", "governance/governance-engine",
			"layer", "application",
			"destination", dest.Hex(),
			"value", value.String(),
		)
		return g.events.emit(ctx, eventValueSent, "destination", dest.Hex(), map[string]any{
			"destination": dest.Hex(),
			"value":       value.String(),
		})
	})
}

func (g *Governance) UpgradeTo(ctx context.Context, p Principal, implementation entities.Address) error {
	if err := requireSelf(p); err != nil {
		return err
	}
	return g.run(ctx, func(ctx context.Context) error {
		if g.Proxy == nil {
			return domainerrors.NewDispatchError(implementation.Hex(), "upgradeTo", nil, domainerrors.ErrUnknownDestination)
		}
		if err := g.Proxy.UpgradeTo(ctx, g.Self, implementation); err != nil {
			return domainerrors.NewDispatchError(implementation.Hex(), "upgradeTo", nil, err)
		}
		return g.upgraded(ctx, implementation, false)
	})
}

// UpgradeToAndCall returns the proxy's raw result.
func (g *Governance) UpgradeToAndCall(ctx context.Context, p Principal, implementation entities.Address, data []byte) ([]byte, error) {
	if err := requireSelf(p); err != nil {
		return nil, err
	}
	var out []byte
	err := g.run(ctx, func(ctx context.Context) error {
		if g.Proxy == nil {
			return domainerrors.NewDispatchError(implementation.Hex(), "upgradeToAndCall", nil, domainerrors.ErrUnknownDestination)
		}
		result, err := g.Proxy.UpgradeToAndCall(ctx, g.Self, implementation, data)
		if err != nil {
			return domainerrors.NewDispatchError(implementation.Hex(), "upgradeToAndCall", result, err)
		}
		out = result
		return g.upgraded(ctx, implementation, true)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Deposit accepts value sent to the engine without a call. Anyone may
// deposit.
func (g *Governance) Deposit(ctx context.Context, from entities.Address, value *big.Int) (*big.Int, error) {
	if value == nil || value.Sign() <= 0 {
		return nil, domainerrors.ErrInvalidInput
	}
	var balance *big.Int
	err := g.run(ctx, func(ctx context.Context) error {
		next, err := g.Repo.AdjustBalance(ctx, value)
		if err != nil {
			return err
		}
		balance = next
		return g.events.emit(ctx, eventValueDeposited, "from", from.Hex(), map[string]any{
			"from":    from.Hex(),
			"value":   value.String(),
			"balance": next.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	application.ResolveLogger(g.Logger).Info("value deposited",
		"event", "governance_value_deposited",
		"module", "governance/governance-engine",
		"layer", "application",
		"from", from.Hex(),
		"value", value.String(),
		"balance", balance.String(),
	)
	return balance, nil
}

func (g *Governance) Invite(ctx context.Context, p Principal, addr entities.Address) error {
	return g.run(ctx, func(ctx context.Context) error {
		return g.Applications.Invite(ctx, p, addr)
	})
}

func (g *Governance) CancelInvitation(ctx context.Context, p Principal, addr entities.Address) error {
	return g.run(ctx, func(ctx context.Context) error {
		return g.Applications.CancelInvitation(ctx, p, addr)
	})
}

func (g *Governance) SubmitApplication(ctx context.Context, p Principal) error {
	return g.run(ctx, func(ctx context.Context) error {
		return g.Applications.SubmitApplication(ctx, p)
	})
}

func (g *Governance) RevokeApplication(ctx context.Context, p Principal, addr entities.Address) error {
	return g.run(ctx, func(ctx context.Context) error {
		return g.Applications.RevokeApplication(ctx, p, addr)
	})
}

func (g *Governance) ConfirmApplication(ctx context.Context, p Principal, addr entities.Address) error {
	return g.run(ctx, func(ctx context.Context) error {
		return g.Applications.ConfirmApplication(ctx, p, addr)
	})
}

func (g *Governance) removeMember(ctx context.Context, addr entities.Address) error {
	count, err := g.Repo.SetLen(ctx, entities.MembersSet())
	if err != nil {
		return err
	}
	if count <= 1 {
		return domainerrors.ErrLastMember
	}
	if err := g.Repo.SetRemove(ctx, entities.MembersSet(), addr); err != nil {
		if errors.Is(err, domainerrors.ErrNotPresent) {
			return domainerrors.ErrMemberNotFound
		}
		return err
	}
	logCommitted(ctx, g.Logger, "member removed",
		"event", "governance_member_removed",
		"module", "governance/governance-engine",
		"layer", "application",
		"member", addr.Hex(),
		"remaining", count-1,
	)
	return g.events.emit(ctx, eventMemberRemoved, "member", addr.Hex(), map[string]any{
		"member": addr.Hex(),
	})
}

func (g *Governance) addMember(ctx context.Context, addr entities.Address) error {
	if err := g.Repo.SetAdd(ctx, entities.MembersSet(), addr); err != nil {
		if errors.Is(err, domainerrors.ErrAlreadyPresent) {
			return domainerrors.ErrAlreadyMember
		}
		return err
	}
	logCommitted(ctx, g.Logger, "member added",
		"event", "governance_member_added",
		"module", "governance/governance-engine",
		"layer", "application",
		"member", addr.Hex(),
	)
	return g.events.emit(ctx, eventMemberAdded, "member", addr.Hex(), map[string]any{
		"member": addr.Hex(),
	})
}

func (g *Governance) notMember(ctx context.Context, addr entities.Address) error {
	member, err := g.Repo.SetContains(ctx, entities.MembersSet(), addr)
	if err != nil {
		return err
	}
	if member {
		return domainerrors.ErrAlreadyMember
	}
	return nil
}

func (g *Governance) requireMember(ctx context.Context, p Principal) error {
	member, err := g.Repo.SetContains(ctx, entities.MembersSet(), p.Address())
	if err != nil {
		return err
	}
	if !member {
		return domainerrors.ErrNotMember
	}
	return nil
}

func (g *Governance) upgraded(ctx context.Context, implementation entities.Address, withCall bool) error {
	logCommitted(ctx, g.Logger, "implementation upgraded",
		"event", "governance_implementation_upgraded",
		"module", "governance/governance-engine",
		"layer", "application",
		"implementation", implementation.Hex(),
		"with_call", withCall,
	)
	return g.events.emit(ctx, eventImplementationUpgraded, "implementation", implementation.Hex(), map[string]any{
		"implementation": implementation.Hex(),
		"with_call":      withCall,
	})
}

func (g *Governance) now() time.Time {
	if g.Clock == nil {
		return time.Now().UTC()
	}
	return g.Clock.Now().UTC()
}
