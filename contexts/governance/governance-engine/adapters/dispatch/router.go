package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"
)

// InboundCall is what a subsystem receives from the router.
type InboundCall struct {
	Caller   entities.Address
	Value    *big.Int
	Selector entities.Selector
	Payload  []byte
}

// Subsystem is a managed subsystem. Selectors is its declared interface; the
// router refuses anything outside it.
type Subsystem interface {
	Selectors() []entities.Selector
	Invoke(ctx context.Context, call InboundCall) ([]byte, error)
}

// ValueReceiver is implemented by subsystems that accept plain value
// transfers.
type ValueReceiver interface {
	Receive(ctx context.Context, from entities.Address, value *big.Int) error
}

type route struct {
	name      string
	subsystem Subsystem
	selectors map[entities.Selector]struct{}
}

// Router delivers governance calls to registered subsystems by address.
// Plain value transfers to unregistered addresses are treated as payments
// to external accounts and succeed.
type Router struct {
	mu     sync.RWMutex
	routes map[entities.Address]route
	logger *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		routes: make(map[entities.Address]route),
		logger: logger,
	}
}

func (r *Router) Register(name string, addr entities.Address, subsystem Subsystem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.routes[addr]; ok {
		return fmt.Errorf("address %s already routed to %s", addr.Hex(), existing.name)
	}
	selectors := make(map[entities.Selector]struct{})
	for _, sel := range subsystem.Selectors() {
		selectors[sel] = struct{}{}
	}
	r.routes[addr] = route{name: name, subsystem: subsystem, selectors: selectors}
	r.logger.Info("subsystem registered",
		"event", "governance_subsystem_registered",
		"module", "governance/governance-engine",
		"layer", "adapter",
		"subsystem", name,
		"address", addr.Hex(),
		"selectors", len(selectors),
	)
	return nil
}

func (r *Router) Dispatch(ctx context.Context, caller entities.Address, call ports.Call) ([]byte, error) {
	r.mu.RLock()
	target, ok := r.routes[call.Destination]
	r.mu.RUnlock()

	value := new(big.Int)
	if call.Value != nil {
		value.Set(call.Value)
	}

	if call.Selector.IsZero() {
		return nil, r.transfer(ctx, caller, call.Destination, target, ok, value)
	}
	if !ok {
		return nil, domainerrors.ErrUnknownDestination
	}
	if _, declared := target.selectors[call.Selector]; !declared {
		r.logger.Warn("undeclared selector rejected",
			"event", "governance_dispatch_selector_rejected",
			"module", "governance/governance-engine",
			"layer", "adapter",
			"subsystem", target.name,
			"selector", call.Selector.String(),
		)
		return nil, domainerrors.ErrUnknownSelector
	}

	out, err := target.subsystem.Invoke(ctx, InboundCall{
		Caller:   caller,
		Value:    value,
		Selector: call.Selector,
		Payload:  append([]byte(nil), call.Payload...),
	})
	if err != nil {
		r.logger.Warn("subsystem call failed",
			"event", "governance_dispatch_failed",
			"module", "governance/governance-engine",
			"layer", "adapter",
			"subsystem", target.name,
			"selector", call.Selector.String(),
			"error", err.Error(),
		)
		return out, err
	}
	r.logger.Info("subsystem call delivered",
		"event", "governance_dispatch_delivered",
		"module", "governance/governance-engine",
		"layer", "adapter",
		"subsystem", target.name,
		"selector", call.Selector.String(),
		"value", value.String(),
	)
	return out, nil
}

func (r *Router) transfer(
	ctx context.Context,
	from entities.Address,
	to entities.Address,
	target route,
	routed bool,
	value *big.Int,
) error {
	if routed {
		receiver, ok := target.subsystem.(ValueReceiver)
		if !ok {
			return domainerrors.ErrUnknownSelector
		}
		if err := receiver.Receive(ctx, from, value); err != nil {
			return err
		}
	}
	r.logger.Info("value transferred",
		"event", "governance_value_transferred",
		"module", "governance/governance-engine",
		"layer", "adapter",
		"to", to.Hex(),
		"value", value.String(),
		"routed", routed,
	)
	return nil
}

var _ ports.Dispatcher = (*Router)(nil)
