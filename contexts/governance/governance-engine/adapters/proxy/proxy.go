package proxy

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"consortium/contexts/governance/governance-engine/domain/entities"
	domainerrors "consortium/contexts/governance/governance-engine/domain/errors"
	"consortium/contexts/governance/governance-engine/ports"
)

var ErrNotValidImplementation = errors.New("implementation does not carry the valid implementation marker")

type Upgrade struct {
	Implementation entities.Address
	WithCall       bool
	UpgradedAt     time.Time
}

// Proxy is an in-process upgradeable proxy. Only the owner may upgrade, and
// only to implementations registered as valid. UpgradeToAndCall delivers the
// call data to the new implementation through Calls.
type Proxy struct {
	mu             sync.Mutex
	owner          entities.Address
	implementation entities.Address
	valid          map[entities.Address]struct{}
	history        []Upgrade
	calls          ports.Dispatcher
	logger         *slog.Logger
}

func New(owner entities.Address, calls ports.Dispatcher, logger *slog.Logger) *Proxy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Proxy{
		owner:  owner,
		valid:  make(map[entities.Address]struct{}),
		calls:  calls,
		logger: logger,
	}
}

// MarkValid registers impl as carrying the identification marker.
func (p *Proxy) MarkValid(impl entities.Address) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.valid[impl] = struct{}{}
}

func (p *Proxy) Implementation() entities.Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.implementation
}

func (p *Proxy) History() []Upgrade {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Upgrade(nil), p.history...)
}

func (p *Proxy) UpgradeTo(_ context.Context, caller entities.Address, implementation entities.Address) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.upgradeLocked(caller, implementation, false)
}

func (p *Proxy) UpgradeToAndCall(
	ctx context.Context,
	caller entities.Address,
	implementation entities.Address,
	data []byte,
) ([]byte, error) {
	p.mu.Lock()
	previous := p.implementation
	previousHistory := len(p.history)
	if err := p.upgradeLocked(caller, implementation, true); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	p.mu.Unlock()

	sel, ok := entities.SelectorFromBytes(data)
	if !ok || p.calls == nil {
		return nil, nil
	}
	out, err := p.calls.Dispatch(ctx, caller, ports.Call{
		Destination: implementation,
		Selector:    sel,
		Payload:     data[len(sel):],
	})
	if err != nil {
		p.mu.Lock()
		p.implementation = previous
		p.history = p.history[:previousHistory]
		p.mu.Unlock()
		return out, err
	}
	return out, nil
}

func (p *Proxy) upgradeLocked(caller entities.Address, implementation entities.Address, withCall bool) error {
	if caller != p.owner {
		return domainerrors.ErrNotOwner
	}
	if _, ok := p.valid[implementation]; !ok {
		return ErrNotValidImplementation
	}
	p.implementation = implementation
	p.history = append(p.history, Upgrade{
		Implementation: implementation,
		WithCall:       withCall,
		UpgradedAt:     time.Now().UTC(),
	})
	p.logger.Info("proxy implementation upgraded",
		"event", "governance_proxy_upgraded",
		"module", "governance/governance-engine",
		"layer", "adapter",
		"implementation", implementation.Hex(),
		"with_call", withCall,
	)
	return nil
}

var _ ports.Proxy = (*Proxy)(nil)
